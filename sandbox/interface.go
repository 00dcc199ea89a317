package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/solvekit/solvent/task"
)

// Status is the terminal state of one sandboxed run.
type Status string

const (
	// StatusPassed means every test assertion passed.
	StatusPassed Status = "passed"
	// StatusFailed means the suite ran and at least one assertion or
	// collection step failed.
	StatusFailed Status = "failed"
	// StatusTimedOut means the environment was force-terminated at the
	// wall-clock deadline.
	StatusTimedOut Status = "timed_out"
	// StatusCrashed means the process died from a signal or the runtime
	// aborted outside normal test reporting.
	StatusCrashed Status = "crashed"
)

// ExecutionResult is the immutable outcome of running a submission against
// its task's tests.
type ExecutionResult struct {
	Status         Status
	ExitCode       int
	Stdout         string
	Stderr         string
	Duration       time.Duration
	MemoryExceeded bool
}

// Passed reports whether every assertion passed.
func (r *ExecutionResult) Passed() bool {
	return r.Status == StatusPassed
}

// TimedOut reports whether the run was force-terminated at the deadline.
func (r *ExecutionResult) TimedOut() bool {
	return r.Status == StatusTimedOut
}

// Executor runs a submission plus its task's test suite in an isolated,
// resource-bounded environment.
type Executor interface {
	Run(ctx context.Context, sub *task.Submission, t *task.Task) (ExecutionResult, error)
	// Available checks that the backing environment-provisioning service is
	// reachable. Provisioning failure is an infrastructure fault, distinct
	// from any per-run failure.
	Available(ctx context.Context) error
}

// Config holds resource limits shared by all executor backends
type Config struct {
	Image     string
	Timeout   time.Duration
	MemoryMB  int
	CPULimit  float64
	PidsLimit int
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// RunCommand executes the given command with arguments
func (RealCommandRunner) RunCommand(ctx context.Context, args []string) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // Safe as this is controlled input

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()

	exitCode = 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else if ctx.Err() != nil {
			// Deadline or cancellation: callers inspect ctx themselves.
			return stdoutBuf.String(), stderrBuf.String(), -1, nil
		} else {
			return "", "", 0, err
		}
	}

	return stdoutBuf.String(), stderrBuf.String(), exitCode, nil
}

// FileSystem defines an interface for file system operations
type FileSystem interface {
	MkdirTemp(dir, pattern string) (string, error)
	WriteFile(filename string, data []byte, perm os.FileMode) error
	RemoveAll(path string) error
}

// RealFileSystem implements FileSystem using actual file system operations
type RealFileSystem struct{}

func (RealFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

func (RealFileSystem) WriteFile(filename string, data []byte, perm os.FileMode) error {
	return os.WriteFile(filename, data, perm)
}

func (RealFileSystem) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// File permission constants
const (
	DirPermission  = 0o755
	FilePermission = 0o644
)

// Filename constants for the materialized run unit.
const (
	SolutionFilename = "solution.py"
	TestFilename     = "test_solution.py"
)

// materialize writes the submission and the generated test file into dir.
func materialize(fs FileSystem, dir string, sub *task.Submission, t *task.Task) error {
	if err := fs.WriteFile(filepath.Join(dir, SolutionFilename), []byte(sub.Source), FilePermission); err != nil {
		return fmt.Errorf("failed to write solution: %w", err)
	}
	if err := fs.WriteFile(filepath.Join(dir, TestFilename), []byte(t.TestSource()), FilePermission); err != nil {
		return fmt.Errorf("failed to write test file: %w", err)
	}
	return nil
}

// statusFromExit maps a test-runner exit code to a run status. Exit 137 is
// SIGKILL, which under a memory ceiling means the kernel OOM-killed the run.
func statusFromExit(exitCode int) (Status, bool) {
	switch {
	case exitCode == 0:
		return StatusPassed, false
	case exitCode == 137:
		return StatusCrashed, true
	case exitCode >= 128:
		return StatusCrashed, false
	default:
		return StatusFailed, false
	}
}
