package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solvekit/solvent/bench"
	"github.com/solvekit/solvent/task"
)

var flagWorkers int

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench <suite.yaml>",
		Short: "Evaluate every task in a suite and store the results",
		Args:  cobra.ExactArgs(1),
		RunE:  runBench,
	}
	cmd.Flags().IntVar(&flagWorkers, "workers", 0, "override configured worker count")
	return cmd
}

func runBench(cmd *cobra.Command, args []string) error {
	suite, err := task.LoadSuite(args[0])
	if err != nil {
		return err
	}

	cfg, log, orch, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()
	if flagWorkers > 0 {
		cfg.Bench.Workers = flagWorkers
	}

	runner := bench.NewRunner(log, cfg, orch)
	summary, runDir, runErr := runner.Run(cmd.Context(), suite)
	if summary == nil {
		return runErr
	}

	fmt.Printf("Run directory: %s\n\n", runDir)
	if err := bench.Report(runDir, "table", os.Stdout); err != nil {
		return err
	}
	return runErr
}
