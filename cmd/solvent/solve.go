package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/solvekit/solvent/task"
)

var (
	flagSuiteFile   string
	flagTaskID      string
	flagDescription string
	flagEntryPoint  string
	flagSignature   string
	flagAsserts     []string
	flagOutFile     string
)

func newSolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Run the evaluation loop for a single task",
		Long: `Run the generate/screen/execute/repair loop for one task.

The task comes either from a suite file (--suite plus --task) or inline from
--description, --entry-point and one or more --assert expressions.`,
		RunE: runSolve,
	}
	cmd.Flags().StringVar(&flagSuiteFile, "suite", "", "suite YAML file to read the task from")
	cmd.Flags().StringVar(&flagTaskID, "task", "", "task ID within the suite file")
	cmd.Flags().StringVar(&flagDescription, "description", "", "what the function should do")
	cmd.Flags().StringVar(&flagEntryPoint, "entry-point", "", "function name the solution must define")
	cmd.Flags().StringVar(&flagSignature, "signature", "", "Python signature of the function")
	cmd.Flags().StringArrayVar(&flagAsserts, "assert", nil, "boolean expression that must hold (repeatable)")
	cmd.Flags().StringVar(&flagOutFile, "out", "", "write the accepted solution to this file")
	return cmd
}

func runSolve(cmd *cobra.Command, args []string) error {
	t, err := resolveTask()
	if err != nil {
		return err
	}

	_, log, orch, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	outcome, ledger, err := orch.Evaluate(cmd.Context(), t)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&outcome); err != nil {
		return err
	}

	if outcome.Solved && flagOutFile != "" {
		final := ledger[len(ledger)-1].Submission.Source
		if err := os.WriteFile(flagOutFile, []byte(final), 0o644); err != nil {
			return fmt.Errorf("writing solution: %w", err)
		}
		fmt.Fprintf(os.Stderr, "solution written to %s\n", flagOutFile)
	}
	if !outcome.Solved {
		return fmt.Errorf("task %s not solved: %s", outcome.TaskID, outcome.Reason)
	}
	return nil
}

func resolveTask() (*task.Task, error) {
	if flagSuiteFile != "" {
		if flagTaskID == "" {
			return nil, fmt.Errorf("--task is required with --suite")
		}
		suite, err := task.LoadSuite(flagSuiteFile)
		if err != nil {
			return nil, err
		}
		for i := range suite.Tasks {
			if suite.Tasks[i].ID == flagTaskID {
				return &suite.Tasks[i], nil
			}
		}
		return nil, fmt.Errorf("task %q not found in %s", flagTaskID, flagSuiteFile)
	}

	if flagDescription == "" || flagEntryPoint == "" || len(flagAsserts) == 0 {
		return nil, fmt.Errorf("either --suite/--task or --description, --entry-point and --assert are required")
	}
	signature := flagSignature
	if signature == "" {
		signature = fmt.Sprintf("def %s(...):", flagEntryPoint)
	}
	t := task.Task{
		ID:          "cli-" + uuid.NewString()[:8],
		EntryPoint:  flagEntryPoint,
		Signature:   signature,
		Description: flagDescription,
	}
	for _, expr := range flagAsserts {
		t.Assertions = append(t.Assertions, task.Assertion{Expr: expr})
	}
	return &t, nil
}
