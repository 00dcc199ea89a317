// Package guardrail provides static pre-execution safety screening.
//
// The guardrail package scans submitted source text against an ordered,
// data-driven table of dangerous pattern categories before it is ever
// handed to the sandbox. Matching is deliberately conservative: a false
// positive costs one retry, a false negative costs an escape.
package guardrail
