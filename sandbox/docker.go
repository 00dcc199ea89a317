package sandbox

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moby/moby/client"
	"go.uber.org/zap"

	"github.com/solvekit/solvent/task"
)

// DockerExecutor implements Executor using Docker
type DockerExecutor struct {
	logger    *zap.Logger
	config    *Config
	cmdRunner CommandRunner
	fs        FileSystem
	api       ContainerAPI
}

// ContainerAPI is the narrow slice of the container engine API the executor
// needs for forced teardown after a timeout. Calls are best-effort: a run
// that already exited has nothing left to kill.
type ContainerAPI interface {
	Kill(ctx context.Context, name string)
	Remove(ctx context.Context, name string)
}

// mobyAPI implements ContainerAPI against the Docker Engine API.
type mobyAPI struct{}

func (mobyAPI) Kill(ctx context.Context, name string) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return
	}
	defer cli.Close()
	cli.ContainerKill(ctx, name, client.ContainerKillOptions{Signal: "SIGKILL"})
}

func (mobyAPI) Remove(ctx context.Context, name string) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return
	}
	defer cli.Close()
	cli.ContainerRemove(ctx, name, client.ContainerRemoveOptions{Force: true})
}

// DockerExecutorOption defines a functional option for DockerExecutor
type DockerExecutorOption func(*DockerExecutor)

// WithDockerCommandRunner sets the CommandRunner for DockerExecutor
func WithDockerCommandRunner(cmdRunner CommandRunner) DockerExecutorOption {
	return func(d *DockerExecutor) {
		d.cmdRunner = cmdRunner
	}
}

// WithDockerFileSystem sets the FileSystem for DockerExecutor
func WithDockerFileSystem(fs FileSystem) DockerExecutorOption {
	return func(d *DockerExecutor) {
		d.fs = fs
	}
}

// WithDockerContainerAPI sets the ContainerAPI for DockerExecutor
func WithDockerContainerAPI(api ContainerAPI) DockerExecutorOption {
	return func(d *DockerExecutor) {
		d.api = api
	}
}

// NewDockerExecutor creates a new DockerExecutor with default implementations and optional interfaces
func NewDockerExecutor(logger *zap.Logger, config *Config, opts ...DockerExecutorOption) *DockerExecutor {
	executor := &DockerExecutor{
		logger:    logger,
		config:    config,
		cmdRunner: &RealCommandRunner{}, // Default implementation
		fs:        &RealFileSystem{},    // Default implementation
		api:       mobyAPI{},            // Default implementation
	}

	// Apply options
	for _, opt := range opts {
		opt(executor)
	}

	return executor
}

// Run executes the submission's test suite in a disposable Docker container
func (d *DockerExecutor) Run(ctx context.Context, sub *task.Submission, t *task.Task) (ExecutionResult, error) {
	// Create a temporary directory for this run
	tempDir, err := d.fs.MkdirTemp("", "solvent-run-*")
	if err != nil {
		return ExecutionResult{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if rmErr := d.fs.RemoveAll(tempDir); rmErr != nil {
			d.logger.Error("failed to remove temp directory", zap.String("path", tempDir), zap.Error(rmErr))
		}
	}()

	if err := materialize(d.fs, tempDir, sub, t); err != nil {
		return ExecutionResult{}, err
	}

	containerName := fmt.Sprintf("solvent-run-%s", uuid.NewString()[:8])

	// Docker run command with security restrictions. The workdir is mounted
	// read-only: the suite has no reason to write anything the run keeps.
	cmdArgs := []string{
		"docker", "run",
		"--name", containerName,
		"--rm", // Remove container after execution
		"-v", fmt.Sprintf("%s:/work:ro", tempDir),
		"--workdir", "/work",
		"--memory", fmt.Sprintf("%dm", d.config.MemoryMB),
		"--cpus", fmt.Sprintf("%.1f", d.config.CPULimit),
		"--pids-limit", strconv.Itoa(d.config.PidsLimit),
		"--network", "none", // No network reachability
		"--security-opt", "no-new-privileges:true",
		"--user", "nobody", // Run as non-privileged user
		"--cap-drop", "ALL", // Drop all capabilities
	}
	cmdArgs = append(cmdArgs, d.config.Image, "pytest", "-q", TestFilename, "-x")

	// Execute with timeout
	ctxWithTimeout, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, err := d.cmdRunner.RunCommand(ctxWithTimeout, cmdArgs)
	elapsed := time.Since(start)

	// If the context timed out, the container is still running: killing the
	// CLI process does not stop it. Force-terminate through the engine API.
	if ctxWithTimeout.Err() == context.DeadlineExceeded {
		d.logger.Warn("run timed out, force-terminating container",
			zap.String("container", containerName),
			zap.Duration("timeout", d.config.Timeout))
		d.api.Kill(ctx, containerName)
		d.api.Remove(ctx, containerName)

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

	// Exit codes 125-127 are docker's own: daemon failure, image missing, or
	// the runner command not found. That is a provisioning fault, not a
	// verdict on the submission.
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

// Available checks that the Docker daemon is reachable and the configured
// image is present.
func (d *DockerExecutor) Available(ctx context.Context) error {
	if _, _, code, err := d.cmdRunner.RunCommand(ctx, []string{"docker", "info"}); err != nil || code != 0 {
		return fmt.Errorf("docker daemon not reachable: exit %d: %v", code, err)
	}
	stdout, _, code, err := d.cmdRunner.RunCommand(ctx, []string{"docker", "images", "-q", d.config.Image})
	if err != nil || code != 0 {
		return fmt.Errorf("failed to list docker images: exit %d: %v", code, err)
	}
	if strings.TrimSpace(stdout) == "" {
		return fmt.Errorf("sandbox image %q not found", d.config.Image)
	}
	return nil
}
