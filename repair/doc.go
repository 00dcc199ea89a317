// Package repair builds structured repair requests from classified failures.
//
// A RepairRequest carries everything the generator needs to produce a fix:
// the original task, the previous submission in full, the classified error,
// and an explicit instruction to reason step by step before emitting code.
// The prompt strategy adapts to the error kind: syntax failures get a
// narrow fix-the-parse prompt, logic failures get the failing assertions
// and the expected-versus-actual diff, everything else gets a generic
// template. Building a request is pure data transformation.
package repair
