package sandbox

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/solvekit/solvent/task"
)

// LocalExecutor implements Executor by running pytest directly on the host
// (for development only). It provides no isolation beyond the timeout, which
// is why the factory refuses to build it unless explicitly enabled.
type LocalExecutor struct {
	logger    *zap.Logger
	config    *Config
	cmdRunner CommandRunner
	fs        FileSystem
}

// LocalExecutorOption defines a functional option for LocalExecutor
type LocalExecutorOption func(*LocalExecutor)

// WithLocalCommandRunner sets the CommandRunner for LocalExecutor
func WithLocalCommandRunner(cmdRunner CommandRunner) LocalExecutorOption {
	return func(l *LocalExecutor) {
		l.cmdRunner = cmdRunner
	}
}

// WithLocalFileSystem sets the FileSystem for LocalExecutor
func WithLocalFileSystem(fs FileSystem) LocalExecutorOption {
	return func(l *LocalExecutor) {
		l.fs = fs
	}
}

// NewLocalExecutor creates a new LocalExecutor with default implementations and optional interfaces
func NewLocalExecutor(logger *zap.Logger, config *Config, opts ...LocalExecutorOption) *LocalExecutor {
	executor := &LocalExecutor{
		logger:    logger,
		config:    config,
		cmdRunner: &RealCommandRunner{}, // Default implementation
		fs:        &RealFileSystem{},    // Default implementation
	}

	// Apply options
	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Run executes the suite on the host (WARNING: not isolated, development only)
func (l *LocalExecutor) Run(ctx context.Context, sub *task.Submission, t *task.Task) (ExecutionResult, error) {
	tempDir, err := l.fs.MkdirTemp("", "solvent-run-*")
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if rmErr := l.fs.RemoveAll(tempDir); rmErr != nil {
			l.logger.Error("failed to remove temp directory", zap.String("path", tempDir), zap.Error(rmErr))
		}
	}()

	if err := materialize(l.fs, tempDir, sub, t); err != nil {
		return ExecutionResult{}, err
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	// Absolute test path: pytest puts the test file's directory on sys.path,
	// which is what lets the generated file import solution.py.
	cmdArgs := []string{
		"python3", "-m", "pytest", "-q", filepath.Join(tempDir, TestFilename), "-x",
		"--rootdir", tempDir, "-p", "no:cacheprovider",
	}

	start := time.Now()
	stdout, stderr, exitCode, err := l.cmdRunner.RunCommand(ctxWithTimeout, cmdArgs)
	elapsed := time.Since(start)

	if ctxWithTimeout.Err() == context.DeadlineExceeded {
		return ExecutionResult{
			Status:   StatusTimedOut,
			ExitCode: -1,
			Stdout:   stdout,
			Stderr:   stderr,
			Duration: elapsed,
		}, nil
	}

	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to execute pytest: %w", err)
	}

	status, oom := statusFromExit(exitCode)
	return ExecutionResult{
		Status:         status,
		ExitCode:       exitCode,
		Stdout:         stdout,
		Stderr:         stderr,
		Duration:       elapsed,
		MemoryExceeded: oom,
	}, nil
}

// Available checks that a host python with pytest is present.
func (l *LocalExecutor) Available(ctx context.Context) error {
	if _, _, code, err := l.cmdRunner.RunCommand(ctx, []string{"python3", "-m", "pytest", "--version"}); err != nil || code != 0 {
		return fmt.Errorf("host pytest not available: exit %d: %v", code, err)
	}
	return nil
}
