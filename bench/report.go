package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
)

// Report renders a run directory's results in the given format, one of
// "table" (default), "markdown" or "json".
func Report(runDir, format string, w io.Writer) error {
	reports, err := CollectTaskReports(runDir)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return fmt.Errorf("no task reports under %s", runDir)
	}

	summary := Summarize(reports)
	switch format {
	case "markdown":
		return writeMarkdown(summary, w)
	case "json":
		return writeJSON(summary, w)
	default:
		return writeTable(summary, w)
	}
}

func writeTable(s *Summary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "tasks\t%d\n", s.Tasks)
	fmt.Fprintf(tw, "solved\t%d\n", s.Solved)
	fmt.Fprintf(tw, "pass@1\t%.2f\n", s.PassAt1)
	fmt.Fprintf(tw, "pass rate\t%.2f\n", s.PassRate)
	fmt.Fprintf(tw, "mean attempts\t%.2f\n", s.MeanAttempts)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "ERROR KIND\tCOUNT\tREPAIRED\tREPAIR RATE")
	for _, ks := range s.ErrorKinds {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\n", ks.Kind, ks.Count, ks.Repaired, ks.RepairRate)
	}
	return tw.Flush()
}

func writeMarkdown(s *Summary, w io.Writer) error {
	fmt.Fprintf(w, "# Benchmark Summary\n\n")
	fmt.Fprintf(w, "- Tasks: %d\n", s.Tasks)
	fmt.Fprintf(w, "- Solved: %d\n", s.Solved)
	fmt.Fprintf(w, "- Pass@1: %.2f\n", s.PassAt1)
	fmt.Fprintf(w, "- Pass rate: %.2f\n", s.PassRate)
	fmt.Fprintf(w, "- Mean attempts: %.2f\n\n", s.MeanAttempts)
	fmt.Fprintln(w, "| Error kind | Count | Repaired | Repair rate |")
	fmt.Fprintln(w, "|------------|-------|----------|-------------|")
	for _, ks := range s.ErrorKinds {
		fmt.Fprintf(w, "| %s | %d | %d | %.2f |\n", ks.Kind, ks.Count, ks.Repaired, ks.RepairRate)
	}
	return nil
}

func writeJSON(s *Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
