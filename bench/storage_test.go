package bench

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solvekit/solvent/classify"
	"github.com/solvekit/solvent/loop"
)

func TestCreateRunDir(t *testing.T) {
	base := t.TempDir()

	runDir, err := CreateRunDir(base)
	require.NoError(t, err)

	info, err := os.Stat(runDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	target, err := os.Readlink(filepath.Join(base, "latest"))
	require.NoError(t, err)
	assert.Equal(t, runDir, target)
}

func TestCreateRunDirReplacesLatest(t *testing.T) {
	base := t.TempDir()

	first, err := CreateRunDir(base)
	require.NoError(t, err)
	_ = first

	second, err := CreateRunDir(base)
	require.NoError(t, err)

	target, err := os.Readlink(filepath.Join(base, "latest"))
	require.NoError(t, err)
	assert.Equal(t, second, target)
}

func TestWriteAndReadTaskReport(t *testing.T) {
	runDir := t.TempDir()
	report := &TaskReport{
		Outcome: loop.Outcome{
			TaskID:   "two-sum",
			Attempts: 2,
			Reason:   loop.ReasonMaxAttempts,
			FinalError: &classify.ClassifiedError{
				Kind:    classify.KindLogic,
				ErrType: "AssertionError",
			},
		},
		Ledger: []loop.AttemptRecord{
			{Attempt: 1, Error: &classify.ClassifiedError{Kind: classify.KindLogic}},
			{Attempt: 2, Error: &classify.ClassifiedError{Kind: classify.KindLogic}},
		},
	}

	require.NoError(t, WriteTaskReport(runDir, report))

	got, err := ReadTaskReport(TaskReportPath(runDir, "two-sum"))
	require.NoError(t, err)
	assert.Equal(t, report.Outcome.TaskID, got.Outcome.TaskID)
	assert.Equal(t, report.Outcome.Reason, got.Outcome.Reason)
	require.Len(t, got.Ledger, 2)
	assert.Equal(t, classify.KindLogic, got.Ledger[0].Error.Kind)
}

func TestCollectTaskReports(t *testing.T) {
	runDir := t.TempDir()
	for _, id := range []string{"alpha", "beta"} {
		report := &TaskReport{Outcome: loop.Outcome{TaskID: id, Solved: true, SolvedAttempt: 1}}
		require.NoError(t, WriteTaskReport(runDir, report))
	}
	// Files outside tasks/ are not reports.
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "summary.json"), []byte("{}"), 0o644))

	reports, err := CollectTaskReports(runDir)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}

func TestReadTaskReportErrors(t *testing.T) {
	t.Run("Missing", func(t *testing.T) {
		_, err := ReadTaskReport(filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading report")
	})

	t.Run("Corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, err := ReadTaskReport(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing report")
	})
}
