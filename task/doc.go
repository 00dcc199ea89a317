// Package task defines the problem model for the solving loop.
//
// A Task is an immutable problem specification: a function signature, a
// natural-language description, and an ordered list of test assertions.
// Tasks are created once per evaluation and never mutated. The package
// also loads task suites from YAML files for benchmark runs.
package task
