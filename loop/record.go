package loop

import (
	"time"

	"github.com/solvekit/solvent/classify"
	"github.com/solvekit/solvent/sandbox"
	"github.com/solvekit/solvent/task"
)

// State names one node of the orchestrator's machine.
type State string

const (
	StateGenerating  State = "generating"
	StateScreening   State = "screening"
	StateExecuting   State = "executing"
	StateClassifying State = "classifying"
	StateRepairing   State = "repairing"
	StateSucceeded   State = "succeeded"
	StateExhausted   State = "exhausted"
)

// Terminal reports whether the state ends an evaluation.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateExhausted
}

// AttemptRecord captures everything observed during a single attempt. Result
// is nil when the attempt never reached the sandbox (generation failure or a
// guardrail block); Error is nil only on the succeeding attempt.
type AttemptRecord struct {
	Attempt      int                       `json:"attempt"`
	Submission   task.Submission           `json:"submission"`
	Result       *sandbox.ExecutionResult  `json:"result,omitempty"`
	Error        *classify.ClassifiedError `json:"error,omitempty"`
	GenDuration  time.Duration             `json:"gen_duration_ns"`
	ExecDuration time.Duration             `json:"exec_duration_ns"`
}

// Succeeded reports whether this attempt passed the full test run.
func (r *AttemptRecord) Succeeded() bool {
	return r.Error == nil && r.Result != nil && r.Result.Passed()
}

// Exhaustion reasons carried on a failed Outcome.
const (
	ReasonMaxAttempts   = "max attempts reached"
	ReasonRepeatedError = "same failure signature on consecutive attempts"
)

// Outcome is the terminal verdict of one evaluation. Exactly one of the two
// shapes holds: Solved with SolvedAttempt set, or not Solved with FinalError
// and Reason describing why the loop gave up.
type Outcome struct {
	TaskID        string                    `json:"task_id"`
	Solved        bool                      `json:"solved"`
	SolvedAttempt int                       `json:"solved_attempt,omitempty"`
	Attempts      int                       `json:"attempts"`
	FinalError    *classify.ClassifiedError `json:"final_error,omitempty"`
	Reason        string                    `json:"reason,omitempty"`
	Duration      time.Duration             `json:"duration_ns"`
}
