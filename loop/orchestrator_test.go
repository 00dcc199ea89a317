package loop

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solvekit/solvent/classify"
	"github.com/solvekit/solvent/generator"
	"github.com/solvekit/solvent/repair"
	"github.com/solvekit/solvent/sandbox"
	"github.com/solvekit/solvent/task"
)

// scriptedGenerator returns canned sources in order; a step with err set
// simulates a generation failure.
type scriptedGenerator struct {
	steps []genStep
	calls int
	// repairPrompts records the prompt of every Repair call, in order.
	repairPrompts []string
}

type genStep struct {
	source string
	err    error
}

func (g *scriptedGenerator) Generate(_ context.Context, _ *task.Task) (generator.Result, error) {
	return g.take()
}

func (g *scriptedGenerator) Repair(_ context.Context, req repair.Request) (generator.Result, error) {
	g.repairPrompts = append(g.repairPrompts, req.Prompt)
	return g.take()
}

func (g *scriptedGenerator) Available(_ context.Context) error { return nil }

func (g *scriptedGenerator) take() (generator.Result, error) {
	if g.calls >= len(g.steps) {
		return generator.Result{}, errors.New("generator script exhausted")
	}
	step := g.steps[g.calls]
	g.calls++
	if step.err != nil {
		return generator.Result{}, step.err
	}
	return generator.Result{Code: step.source, Raw: step.source, Duration: time.Millisecond}, nil
}

// scriptedExecutor returns canned results in order and counts invocations.
type scriptedExecutor struct {
	steps []execStep
	calls int
}

type execStep struct {
	result sandbox.ExecutionResult
	err    error
}

func (e *scriptedExecutor) Run(_ context.Context, _ *task.Submission, _ *task.Task) (sandbox.ExecutionResult, error) {
	if e.calls >= len(e.steps) {
		return sandbox.ExecutionResult{}, errors.New("executor script exhausted")
	}
	step := e.steps[e.calls]
	e.calls++
	return step.result, step.err
}

func (e *scriptedExecutor) Available(_ context.Context) error { return nil }

func passing() execStep {
	return execStep{result: sandbox.ExecutionResult{
		Status:   sandbox.StatusPassed,
		Stdout:   "1 passed in 0.02s",
		Duration: 20 * time.Millisecond,
	}}
}

// failing builds a pytest-looking failure whose classification is driven by
// errType and line, so tests can vary the error signature per attempt.
func failing(errType string, line int) execStep {
	return execStep{result: sandbox.ExecutionResult{
		Status:   sandbox.StatusFailed,
		ExitCode: 1,
		Stdout: fmt.Sprintf(
			"____ test_case_1 ____\nE       %s: something went wrong\n\nsolution.py:%d: %s\nFAILED test_solution.py::test_case_1 - %s\n",
			errType, line, errType, errType),
		Duration: 30 * time.Millisecond,
	}}
}

func cleanSource(marker int) string {
	return fmt.Sprintf("def add(a, b):\n    # revision %d\n    return a + b\n", marker)
}

const blockedSource = "import socket\n\ndef add(a, b):\n    return a + b\n"

func loopTask() *task.Task {
	return &task.Task{
		ID:          "add",
		EntryPoint:  "add",
		Signature:   "def add(a, b):",
		Description: "Return the sum of a and b.",
		Assertions:  []task.Assertion{{Expr: "add(2, 3) == 5"}},
	}
}

func defaultLoopConfig() Config {
	return Config{MaxAttempts: 3, BlockedConsumesAttempt: true, StopOnRepeatedError: true}
}

func newOrchestrator(t *testing.T, gen generator.Generator, exec sandbox.Executor, cfg Config) *Orchestrator {
	t.Helper()
	return New(zaptest.NewLogger(t), gen, exec, cfg)
}

func TestEvaluateSolvedFirstAttempt(t *testing.T) {
	gen := &scriptedGenerator{steps: []genStep{{source: cleanSource(1)}}}
	exec := &scriptedExecutor{steps: []execStep{passing()}}
	orch := newOrchestrator(t, gen, exec, defaultLoopConfig())

	outcome, ledger, err := orch.Evaluate(context.Background(), loopTask())
	require.NoError(t, err)

	assert.True(t, outcome.Solved)
	assert.Equal(t, 1, outcome.SolvedAttempt)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Nil(t, outcome.FinalError)
	assert.Equal(t, "add", outcome.TaskID)

	require.Len(t, ledger, 1)
	assert.True(t, ledger[0].Succeeded())
	assert.Equal(t, 1, ledger[0].Attempt)
	assert.Equal(t, cleanSource(1), ledger[0].Submission.Source)
	assert.Empty(t, gen.repairPrompts)
}

func TestEvaluateRepairsLogicFailure(t *testing.T) {
	gen := &scriptedGenerator{steps: []genStep{
		{source: cleanSource(1)},
		{source: cleanSource(2)},
	}}
	exec := &scriptedExecutor{steps: []execStep{
		failing("AssertionError", 2),
		passing(),
	}}
	orch := newOrchestrator(t, gen, exec, defaultLoopConfig())

	outcome, ledger, err := orch.Evaluate(context.Background(), loopTask())
	require.NoError(t, err)

	assert.True(t, outcome.Solved)
	assert.Equal(t, 2, outcome.SolvedAttempt)

	require.Len(t, ledger, 2)
	require.NotNil(t, ledger[0].Error)
	assert.Equal(t, classify.KindLogic, ledger[0].Error.Kind)
	assert.Equal(t, []string{"test_case_1"}, ledger[0].Error.FailingTests)
	assert.True(t, ledger[1].Succeeded())

	// The second attempt was prompted with the failure context.
	require.Len(t, gen.repairPrompts, 1)
	assert.Contains(t, gen.repairPrompts[0], "WRONG OUTPUT")
	assert.Contains(t, gen.repairPrompts[0], cleanSource(1))
}

func TestEvaluateExhaustsAttemptBudget(t *testing.T) {
	gen := &scriptedGenerator{steps: []genStep{
		{source: cleanSource(1)},
		{source: cleanSource(2)},
		{source: cleanSource(3)},
	}}
	// Distinct signatures each attempt so the repeated-error stop does not
	// trigger before the budget runs out.
	exec := &scriptedExecutor{steps: []execStep{
		failing("NameError", 2),
		failing("TypeError", 3),
		failing("AssertionError", 4),
	}}
	orch := newOrchestrator(t, gen, exec, defaultLoopConfig())

	outcome, ledger, err := orch.Evaluate(context.Background(), loopTask())
	require.NoError(t, err)

	assert.False(t, outcome.Solved)
	assert.Equal(t, ReasonMaxAttempts, outcome.Reason)
	assert.Equal(t, 3, outcome.Attempts)
	require.NotNil(t, outcome.FinalError)
	assert.Equal(t, classify.KindLogic, outcome.FinalError.Kind)

	require.Len(t, ledger, 3)
	assert.Equal(t, classify.KindName, ledger[0].Error.Kind)
	assert.Equal(t, classify.KindType, ledger[1].Error.Kind)
	assert.Equal(t, classify.KindLogic, ledger[2].Error.Kind)
	for i, rec := range ledger {
		assert.Equal(t, i+1, rec.Attempt)
	}
	assert.Equal(t, 3, exec.calls)
}

func TestEvaluateStopsOnRepeatedError(t *testing.T) {
	gen := &scriptedGenerator{steps: []genStep{
		{source: cleanSource(1)},
		{source: cleanSource(2)},
		{source: cleanSource(3)},
	}}
	exec := &scriptedExecutor{steps: []execStep{
		failing("TypeError", 3),
		failing("TypeError", 3),
		failing("TypeError", 3),
	}}
	orch := newOrchestrator(t, gen, exec, defaultLoopConfig())

	outcome, ledger, err := orch.Evaluate(context.Background(), loopTask())
	require.NoError(t, err)

	assert.False(t, outcome.Solved)
	assert.Equal(t, ReasonRepeatedError, outcome.Reason)
	// Two attempts produced the same signature; the third never ran.
	require.Len(t, ledger, 2)
	assert.Equal(t, 2, exec.calls)
}

func TestEvaluateRepeatedErrorDisabled(t *testing.T) {
	gen := &scriptedGenerator{steps: []genStep{
		{source: cleanSource(1)},
		{source: cleanSource(2)},
		{source: cleanSource(3)},
	}}
	exec := &scriptedExecutor{steps: []execStep{
		failing("TypeError", 3),
		failing("TypeError", 3),
		failing("TypeError", 3),
	}}
	cfg := defaultLoopConfig()
	cfg.StopOnRepeatedError = false
	orch := newOrchestrator(t, gen, exec, cfg)

	outcome, ledger, err := orch.Evaluate(context.Background(), loopTask())
	require.NoError(t, err)
	assert.Equal(t, ReasonMaxAttempts, outcome.Reason)
	assert.Len(t, ledger, 3)
}

func TestEvaluateBlockedNeverExecutes(t *testing.T) {
	gen := &scriptedGenerator{steps: []genStep{
		{source: blockedSource},
		{source: cleanSource(2)},
	}}
	exec := &scriptedExecutor{steps: []execStep{passing()}}
	orch := newOrchestrator(t, gen, exec, defaultLoopConfig())

	outcome, ledger, err := orch.Evaluate(context.Background(), loopTask())
	require.NoError(t, err)

	assert.True(t, outcome.Solved)
	assert.Equal(t, 2, outcome.SolvedAttempt)

	require.Len(t, ledger, 2)
	require.NotNil(t, ledger[0].Error)
	assert.Equal(t, classify.KindBlocked, ledger[0].Error.Kind)
	assert.Nil(t, ledger[0].Result, "blocked submission must not reach the sandbox")
	assert.Equal(t, 1, exec.calls, "only the clean attempt runs")

	require.Len(t, gen.repairPrompts, 1)
	assert.Contains(t, gen.repairPrompts[0], "safety screen")
	assert.Contains(t, gen.repairPrompts[0], "never ran")
}

func TestEvaluateBlockedExemptFromBudget(t *testing.T) {
	gen := &scriptedGenerator{steps: []genStep{
		{source: blockedSource},
		{source: cleanSource(2)},
	}}
	exec := &scriptedExecutor{steps: []execStep{passing()}}
	cfg := Config{MaxAttempts: 1, BlockedConsumesAttempt: false, StopOnRepeatedError: false}
	orch := newOrchestrator(t, gen, exec, cfg)

	outcome, ledger, err := orch.Evaluate(context.Background(), loopTask())
	require.NoError(t, err)

	// The block did not burn the single attempt.
	assert.True(t, outcome.Solved)
	assert.Equal(t, 1, outcome.SolvedAttempt)
	assert.Len(t, ledger, 2)
}

func TestEvaluateBlockedRerollsAreBounded(t *testing.T) {
	// A generator that only ever emits blocked code must still terminate
	// when blocks are exempt from the budget.
	steps := make([]genStep, 0, 8)
	for i := 0; i < 8; i++ {
		steps = append(steps, genStep{source: blockedSource})
	}
	gen := &scriptedGenerator{steps: steps}
	exec := &scriptedExecutor{}
	cfg := Config{MaxAttempts: 2, BlockedConsumesAttempt: false, StopOnRepeatedError: false}
	orch := newOrchestrator(t, gen, exec, cfg)

	outcome, ledger, err := orch.Evaluate(context.Background(), loopTask())
	require.NoError(t, err)

	assert.False(t, outcome.Solved)
	assert.Equal(t, 0, exec.calls)
	// At most MaxAttempts free re-rolls on top of the budget itself.
	assert.LessOrEqual(t, len(ledger), 2*cfg.MaxAttempts)
}

func TestEvaluateGenerationFailure(t *testing.T) {
	gen := &scriptedGenerator{steps: []genStep{
		{err: errors.New("upstream overloaded")},
		{source: cleanSource(2)},
	}}
	exec := &scriptedExecutor{steps: []execStep{passing()}}
	orch := newOrchestrator(t, gen, exec, defaultLoopConfig())

	outcome, ledger, err := orch.Evaluate(context.Background(), loopTask())
	require.NoError(t, err)

	assert.True(t, outcome.Solved)
	require.Len(t, ledger, 2)
	require.NotNil(t, ledger[0].Error)
	assert.Equal(t, classify.KindGenerationFailed, ledger[0].Error.Kind)
	assert.Contains(t, ledger[0].Error.Message, "upstream overloaded")
	assert.Nil(t, ledger[0].Result)
	assert.Empty(t, ledger[0].Submission.Source)
	assert.Equal(t, 1, exec.calls, "generation failure must not consume a sandbox run")
	// No repair context exists after a generation failure, so the retry is a
	// fresh Generate call, not a Repair call.
	assert.Empty(t, gen.repairPrompts)
}

func TestEvaluateRepeatedGenerationFailureStops(t *testing.T) {
	gen := &scriptedGenerator{steps: []genStep{
		{err: errors.New("boom")},
		{err: errors.New("boom")},
		{err: errors.New("boom")},
	}}
	exec := &scriptedExecutor{}
	orch := newOrchestrator(t, gen, exec, defaultLoopConfig())

	outcome, ledger, err := orch.Evaluate(context.Background(), loopTask())
	require.NoError(t, err)

	assert.False(t, outcome.Solved)
	assert.Equal(t, ReasonRepeatedError, outcome.Reason)
	assert.Len(t, ledger, 2)
	assert.Equal(t, 0, exec.calls)
}

func TestEvaluateSandboxFaultAborts(t *testing.T) {
	gen := &scriptedGenerator{steps: []genStep{{source: cleanSource(1)}}}
	exec := &scriptedExecutor{steps: []execStep{
		{err: errors.New("docker daemon not reachable")},
	}}
	orch := newOrchestrator(t, gen, exec, defaultLoopConfig())

	_, ledger, err := orch.Evaluate(context.Background(), loopTask())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sandbox execution")
	assert.Contains(t, err.Error(), "docker daemon not reachable")
	assert.Empty(t, ledger, "a provisioning fault is not an attempt")
}

func TestEvaluateInvalidTask(t *testing.T) {
	orch := newOrchestrator(t, &scriptedGenerator{}, &scriptedExecutor{}, defaultLoopConfig())

	_, _, err := orch.Evaluate(context.Background(), &task.Task{ID: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid task")
}

func TestEvaluateCanceledContext(t *testing.T) {
	orch := newOrchestrator(t, &scriptedGenerator{}, &scriptedExecutor{}, defaultLoopConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := orch.Evaluate(ctx, loopTask())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluateLedgerIsOrdered(t *testing.T) {
	gen := &scriptedGenerator{steps: []genStep{
		{source: cleanSource(1)},
		{source: cleanSource(2)},
		{source: cleanSource(3)},
	}}
	exec := &scriptedExecutor{steps: []execStep{
		failing("NameError", 1),
		failing("TypeError", 2),
		passing(),
	}}
	orch := newOrchestrator(t, gen, exec, defaultLoopConfig())

	outcome, ledger, err := orch.Evaluate(context.Background(), loopTask())
	require.NoError(t, err)
	require.Len(t, ledger, 3)

	for i, rec := range ledger {
		assert.Equal(t, i+1, rec.Attempt)
		assert.Equal(t, cleanSource(i+1), rec.Submission.Source)
	}
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, 3, outcome.SolvedAttempt)
}
