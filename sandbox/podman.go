package sandbox

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solvekit/solvent/task"
)

// PodmanExecutor implements Executor using Podman
type PodmanExecutor struct {
	logger    *zap.Logger
	config    *Config
	cmdRunner CommandRunner
	fs        FileSystem
}

// PodmanExecutorOption defines a functional option for PodmanExecutor
type PodmanExecutorOption func(*PodmanExecutor)

// WithPodmanCommandRunner sets the CommandRunner for PodmanExecutor
func WithPodmanCommandRunner(cmdRunner CommandRunner) PodmanExecutorOption {
	return func(p *PodmanExecutor) {
		p.cmdRunner = cmdRunner
	}
}

// WithPodmanFileSystem sets the FileSystem for PodmanExecutor
func WithPodmanFileSystem(fs FileSystem) PodmanExecutorOption {
	return func(p *PodmanExecutor) {
		p.fs = fs
	}
}

// NewPodmanExecutor creates a new PodmanExecutor with default implementations and optional interfaces
func NewPodmanExecutor(logger *zap.Logger, config *Config, opts ...PodmanExecutorOption) *PodmanExecutor {
	executor := &PodmanExecutor{
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

// Run executes the submission's test suite in a disposable Podman container
func (p *PodmanExecutor) Run(ctx context.Context, sub *task.Submission, t *task.Task) (ExecutionResult, error) {
	// Create a temporary directory for this run
	tempDir, err := p.fs.MkdirTemp("", "solvent-run-*")
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if rmErr := p.fs.RemoveAll(tempDir); rmErr != nil {
			p.logger.Error("failed to remove temp directory", zap.String("path", tempDir), zap.Error(rmErr))
		}
	}()

	if err := materialize(p.fs, tempDir, sub, t); err != nil {
		return ExecutionResult{}, err
	}

	containerName := fmt.Sprintf("solvent-run-%s", uuid.NewString()[:8])

	// Podman run command with security restrictions
	cmdArgs := []string{
		"podman", "run",
		"--name", containerName,
		"--rm", // Remove container after execution
		"-v", fmt.Sprintf("%s:/work:ro", tempDir),
		"--workdir", "/work",
		"--memory", fmt.Sprintf("%dm", p.config.MemoryMB),
		"--cpus", fmt.Sprintf("%.1f", p.config.CPULimit),
		"--pids-limit", strconv.Itoa(p.config.PidsLimit),
		"--network", "none", // No network reachability
		"--security-opt", "no-new-privileges:true",
		"--user", "nobody", // Run as non-privileged user
		"--cap-drop", "ALL", // Drop all capabilities
	}
	cmdArgs = append(cmdArgs, p.config.Image, "pytest", "-q", TestFilename, "-x")

	// Execute with timeout
	ctxWithTimeout, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, err := p.cmdRunner.RunCommand(ctxWithTimeout, cmdArgs)
	elapsed := time.Since(start)

	// If the context timed out, handle it explicitly
	if ctxWithTimeout.Err() == context.DeadlineExceeded {
		p.logger.Warn("run timed out, force-terminating container",
			zap.String("container", containerName),
			zap.Duration("timeout", p.config.Timeout))
		if _, _, _, rmErr := p.cmdRunner.RunCommand(ctx, []string{"podman", "rm", "-f", containerName}); rmErr != nil {
			p.logger.Warn("failed to remove container after timeout", zap.String("container", containerName), zap.Error(rmErr))
		}

		return ExecutionResult{
			Status:   StatusTimedOut,
			ExitCode: -1,
			Stdout:   stdout,
			Stderr:   stderr,
			Duration: elapsed,
		}, nil
	}

	// Check for execution error
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to execute container: %w", err)
	}

	if exitCode >= 125 && exitCode <= 127 {
		return ExecutionResult{}, fmt.Errorf("container runtime failure (exit %d): %s", exitCode, stderr)
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

// Available checks that podman is reachable.
func (p *PodmanExecutor) Available(ctx context.Context) error {
	if _, _, code, err := p.cmdRunner.RunCommand(ctx, []string{"podman", "info"}); err != nil || code != 0 {
		return fmt.Errorf("podman not reachable: exit %d: %v", code, err)
	}
	return nil
}
