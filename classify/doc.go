// Package classify turns raw execution output into structured failure records.
//
// The classifier parses the captured pytest output of a failed run and maps
// it onto a small error taxonomy through an ordered, data-driven table:
// first matching kind wins, and new patterns are additions to the table
// rather than new control flow. Classification is a pure function of the
// execution result.
package classify
