package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solvekit/solvent/config"
	"github.com/solvekit/solvent/generator"
	"github.com/solvekit/solvent/logger"
	"github.com/solvekit/solvent/loop"
	"github.com/solvekit/solvent/sandbox"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "solvent",
		Short:         "Self-correcting code generation against executable tests",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newSolveCmd())
	root.AddCommand(newBenchCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newScreenCmd())
	return root
}

// bootstrap assembles the orchestrator and its collaborators from the
// application configuration.
func bootstrap() (*config.Config, *zap.Logger, *loop.Orchestrator, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	gen, err := generator.New(log, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating generator: %w", err)
	}
	exec, err := sandbox.NewExecutor(log, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating sandbox executor: %w", err)
	}
	return cfg, log, loop.NewFromConfig(log, cfg, gen, exec), nil
}
