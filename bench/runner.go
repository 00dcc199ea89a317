package bench

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/solvekit/solvent/config"
	"github.com/solvekit/solvent/loop"
	"github.com/solvekit/solvent/task"
)

// Runner evaluates every task in a suite and persists the results.
type Runner struct {
	logger     *zap.Logger
	orch       *loop.Orchestrator
	workers    int
	resultsDir string
}

// NewRunner builds a Runner from the application configuration.
func NewRunner(logger *zap.Logger, cfg *config.Config, orch *loop.Orchestrator) *Runner {
	return &Runner{
		logger:     logger.Named("bench"),
		orch:       orch,
		workers:    cfg.Bench.Workers,
		resultsDir: cfg.Bench.ResultsDir,
	}
}

// Run evaluates the suite with bounded parallelism, writes one report per
// task plus an aggregate summary under a fresh run directory, and returns
// the summary. Per-task infrastructure faults are collected and joined; the
// tasks that did complete are still summarized and persisted.
func (r *Runner) Run(ctx context.Context, suite *task.Suite) (*Summary, string, error) {
	runDir, err := CreateRunDir(r.resultsDir)
	if err != nil {
		return nil, "", err
	}

	r.logger.Info("starting benchmark run",
		zap.String("suite", suite.Name),
		zap.Int("tasks", len(suite.Tasks)),
		zap.Int("workers", r.workers),
		zap.String("run_dir", runDir))

	reports := make([]*TaskReport, len(suite.Tasks))
	jobs := make([]Job, 0, len(suite.Tasks))
	for i := range suite.Tasks {
		i := i
		t := &suite.Tasks[i]
		jobs = append(jobs, func() error {
			outcome, ledger, err := r.orch.Evaluate(ctx, t)
			if err != nil {
				return fmt.Errorf("task %s: %w", t.ID, err)
			}
			report := &TaskReport{Outcome: outcome, Ledger: ledger}
			reports[i] = report
			if err := WriteTaskReport(runDir, report); err != nil {
				return fmt.Errorf("task %s: %w", t.ID, err)
			}
			return nil
		})
	}

	runErrs := RunPool(r.workers, jobs)
	for _, err := range runErrs {
		r.logger.Error("task evaluation failed", zap.Error(err))
	}

	completed := make([]*TaskReport, 0, len(reports))
	for _, report := range reports {
		if report != nil {
			completed = append(completed, report)
		}
	}

	summary := Summarize(completed)
	if err := WriteSummary(runDir, summary); err != nil {
		return nil, "", err
	}
	return summary, runDir, errors.Join(runErrs...)
}
