package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solvekit/solvent/guardrail"
)

func newScreenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "screen <file.py>",
		Short: "Run the guardrail scanner over a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			decision := guardrail.Screen(string(source))
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(decision); err != nil {
				return err
			}
			if !decision.Allowed {
				return fmt.Errorf("blocked: %s", decision.Reason)
			}
			return nil
		},
	}
}
