package bench

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/solvekit/solvent/loop"
)

// TaskReport is everything recorded about one task's evaluation.
type TaskReport struct {
	Outcome loop.Outcome         `json:"outcome"`
	Ledger  []loop.AttemptRecord `json:"ledger"`
}

// CreateRunDir makes a fresh timestamped directory under baseDir/runs and
// points the baseDir/latest symlink at it.
func CreateRunDir(baseDir string) (string, error) {
	runsDir := filepath.Join(baseDir, "runs")
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	runDir := filepath.Join(runsDir, stamp)
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return runDir, nil
}

// TaskReportPath is where one task's report lands inside a run directory.
func TaskReportPath(runDir, taskID string) string {
	return filepath.Join(runDir, "tasks", taskID+".json")
}

// WriteTaskReport persists one task's report as indented JSON.
func WriteTaskReport(runDir string, report *TaskReport) error {
	path := TaskReportPath(runDir, report.Outcome.TaskID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating tasks dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadTaskReport loads a report written by WriteTaskReport.
func ReadTaskReport(path string) (*TaskReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var report TaskReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &report, nil
}

// CollectTaskReports loads every task report under a run directory.
func CollectTaskReports(runDir string) ([]*TaskReport, error) {
	var reports []*TaskReport
	err := filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".json" || filepath.Base(filepath.Dir(path)) != "tasks" {
			return nil
		}
		report, err := ReadTaskReport(path)
		if err != nil {
			return nil
		}
		reports = append(reports, report)
		return nil
	})
	return reports, err
}

// WriteSummary persists the aggregate summary next to the task reports.
func WriteSummary(runDir string, summary *Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	return os.WriteFile(filepath.Join(runDir, "summary.json"), data, 0o644)
}
