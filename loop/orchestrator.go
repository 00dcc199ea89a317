package loop

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/solvekit/solvent/classify"
	"github.com/solvekit/solvent/config"
	"github.com/solvekit/solvent/generator"
	"github.com/solvekit/solvent/guardrail"
	"github.com/solvekit/solvent/repair"
	"github.com/solvekit/solvent/sandbox"
	"github.com/solvekit/solvent/task"
)

// Config bounds the retry behavior of an Orchestrator.
type Config struct {
	// MaxAttempts is the retry budget, counting the initial attempt.
	MaxAttempts int
	// BlockedConsumesAttempt controls whether a guardrail rejection burns an
	// attempt. When false a blocked attempt is re-rolled at the same attempt
	// number, with at most MaxAttempts such re-rolls per evaluation so the
	// ledger stays bounded.
	BlockedConsumesAttempt bool
	// StopOnRepeatedError ends the evaluation early when two consecutive
	// attempts fail with the same error signature, on the grounds that the
	// generator is not making progress.
	StopOnRepeatedError bool
}

// Orchestrator evaluates tasks by alternating generation, screening,
// sandboxed execution and repair until the tests pass or the budget runs
// out. It is safe for concurrent use; each Evaluate call keeps its state on
// the stack.
type Orchestrator struct {
	logger *zap.Logger
	gen    generator.Generator
	exec   sandbox.Executor
	cfg    Config
}

// New creates an Orchestrator with the given collaborators.
func New(logger *zap.Logger, gen generator.Generator, exec sandbox.Executor, cfg Config) *Orchestrator {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Orchestrator{
		logger: logger.Named("loop"),
		gen:    gen,
		exec:   exec,
		cfg:    cfg,
	}
}

// NewFromConfig builds an Orchestrator from the application configuration.
func NewFromConfig(logger *zap.Logger, cfg *config.Config, gen generator.Generator, exec sandbox.Executor) *Orchestrator {
	return New(logger, gen, exec, Config{
		MaxAttempts:            cfg.Loop.MaxAttempts,
		BlockedConsumesAttempt: cfg.Loop.BlockedConsumesAttempt,
		StopOnRepeatedError:    cfg.Loop.StopOnRepeatedError,
	})
}

// evaluation holds the mutable state of one Evaluate call.
type evaluation struct {
	o       *Orchestrator
	task    *task.Task
	started time.Time

	attempt    int
	freeRolls  int
	ledger     []AttemptRecord
	current    task.Submission
	genTime    time.Duration
	classified *classify.ClassifiedError
	repairReq  *repair.Request
	prevSig    string

	outcome Outcome
	fault   error
}

// Evaluate runs the full loop for one task and returns the terminal Outcome
// together with the per-attempt ledger. A non-nil error means an
// infrastructure fault (generator transport aside, typically sandbox
// provisioning); the partial ledger is still returned so callers can see how
// far the evaluation got.
func (o *Orchestrator) Evaluate(ctx context.Context, t *task.Task) (Outcome, []AttemptRecord, error) {
	if err := t.Validate(); err != nil {
		return Outcome{}, nil, fmt.Errorf("invalid task: %w", err)
	}

	e := &evaluation{o: o, task: t, started: time.Now(), attempt: 1}
	state := StateGenerating
	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			return Outcome{}, e.ledger, fmt.Errorf("evaluation canceled: %w", err)
		}

		o.logger.Debug("state transition",
			zap.String("task_id", t.ID),
			zap.String("state", string(state)),
			zap.Int("attempt", e.attempt))

		switch state {
		case StateGenerating:
			state = e.generate(ctx)
		case StateScreening:
			state = e.screen()
		case StateExecuting:
			state = e.execute(ctx)
		case StateClassifying:
			state = e.classifyResult()
		case StateRepairing:
			state = e.repairStep()
		}
		if e.fault != nil {
			return Outcome{}, e.ledger, e.fault
		}
	}

	e.outcome.TaskID = t.ID
	e.outcome.Attempts = len(e.ledger)
	e.outcome.Duration = time.Since(e.started)

	if e.outcome.Solved {
		o.logger.Info("task solved",
			zap.String("task_id", t.ID),
			zap.Int("attempt", e.outcome.SolvedAttempt))
	} else {
		o.logger.Info("task exhausted",
			zap.String("task_id", t.ID),
			zap.String("reason", e.outcome.Reason),
			zap.Int("attempts", e.outcome.Attempts))
	}
	return e.outcome, e.ledger, nil
}

// generate produces the next candidate, either from the task prompt (first
// attempt, or after a generation failure with no repair context yet) or from
// the pending repair request.
func (e *evaluation) generate(ctx context.Context) State {
	var (
		res generator.Result
		err error
	)
	start := time.Now()
	if e.repairReq == nil {
		res, err = e.o.gen.Generate(ctx, e.task)
	} else {
		res, err = e.o.gen.Repair(ctx, *e.repairReq)
	}
	e.genTime = time.Since(start)

	if err != nil || res.Code == "" {
		reason := "generator returned no code"
		if err != nil {
			reason = err.Error()
		}
		e.o.logger.Warn("generation failed",
			zap.String("task_id", e.task.ID),
			zap.Int("attempt", e.attempt),
			zap.String("reason", reason))

		ce := classify.NewGenerationFailure(reason)
		e.classified = &ce
		e.ledger = append(e.ledger, AttemptRecord{
			Attempt:     e.attempt,
			Submission:  task.Submission{Attempt: e.attempt},
			Error:       &ce,
			GenDuration: e.genTime,
		})
		return StateRepairing
	}

	e.current = task.Submission{Source: res.Code, Attempt: e.attempt}
	return StateScreening
}

// screen runs the guardrail over the candidate before anything executes.
func (e *evaluation) screen() State {
	decision := guardrail.Screen(e.current.Source)
	if decision.Allowed {
		return StateExecuting
	}

	e.o.logger.Warn("submission blocked",
		zap.String("task_id", e.task.ID),
		zap.Int("attempt", e.attempt),
		zap.String("category", decision.Category),
		zap.String("reason", decision.Reason))

	ce := classify.NewBlocked(decision.Reason)
	e.classified = &ce
	e.ledger = append(e.ledger, AttemptRecord{
		Attempt:     e.attempt,
		Submission:  e.current,
		Error:       &ce,
		GenDuration: e.genTime,
	})
	return StateRepairing
}

// execute runs the candidate in the sandbox. Executor errors are
// infrastructure faults, not task failures, and abort the evaluation.
func (e *evaluation) execute(ctx context.Context) State {
	res, err := e.o.exec.Run(ctx, &e.current, e.task)
	if err != nil {
		e.fault = fmt.Errorf("sandbox execution, attempt %d: %w", e.attempt, err)
		return StateExhausted
	}

	if res.Passed() {
		e.ledger = append(e.ledger, AttemptRecord{
			Attempt:      e.attempt,
			Submission:   e.current,
			Result:       &res,
			GenDuration:  e.genTime,
			ExecDuration: res.Duration,
		})
		e.outcome.Solved = true
		e.outcome.SolvedAttempt = e.attempt
		return StateSucceeded
	}

	ce := classify.Classify(&res)
	e.classified = &ce
	e.ledger = append(e.ledger, AttemptRecord{
		Attempt:      e.attempt,
		Submission:   e.current,
		Result:       &res,
		Error:        &ce,
		GenDuration:  e.genTime,
		ExecDuration: res.Duration,
	})
	return StateClassifying
}

// classifyResult is a pass-through today: classification happens as soon as
// the sandbox result lands so the ledger entry is complete, and this state
// only decides where to go next.
func (e *evaluation) classifyResult() State {
	return StateRepairing
}

// repairStep decides whether another attempt is worth making, and if so
// prepares the repair request for it.
func (e *evaluation) repairStep() State {
	ce := e.classified

	sig := ce.Signature()
	if e.o.cfg.StopOnRepeatedError && sig == e.prevSig {
		e.outcome.FinalError = ce
		e.outcome.Reason = ReasonRepeatedError
		return StateExhausted
	}
	e.prevSig = sig

	// A generation failure carries no new signal, so the next attempt
	// re-issues whatever prompt produced it rather than repairing nothing.
	if ce.Kind != classify.KindGenerationFailed {
		req := repair.Build(e.task, e.current, *ce)
		e.repairReq = &req
	}

	if ce.Kind == classify.KindBlocked && !e.o.cfg.BlockedConsumesAttempt && e.freeRolls < e.o.cfg.MaxAttempts {
		e.freeRolls++
		return StateGenerating
	}

	e.attempt++
	if e.attempt > e.o.cfg.MaxAttempts {
		e.outcome.FinalError = ce
		e.outcome.Reason = ReasonMaxAttempts
		return StateExhausted
	}
	return StateGenerating
}
