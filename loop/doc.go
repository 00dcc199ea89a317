// Package loop drives the self-correction cycle for one task.
//
// The Orchestrator owns an explicit finite-state machine:
//
//	Generating -> Screening -> Executing -> Succeeded
//	                 |             |
//	                 |             v
//	                 +------- Classifying
//	                 |             |
//	                 v             v
//	              Repairing <------+
//	                 |
//	                 v
//	             Generating ... until Succeeded or Exhausted
//
// Each attempt appends exactly one record to an append-only ledger the
// orchestrator alone writes; the machine is deterministic given
// deterministic generator and executor behavior, and every evaluation ends
// in exactly one terminal Outcome. Attempts within one evaluation are
// strictly sequential; independent evaluations share no mutable state.
package loop
