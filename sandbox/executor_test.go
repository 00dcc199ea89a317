package sandbox

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solvekit/solvent/task"
)

// MockCommandRunner implements CommandRunner for testing
type MockCommandRunner struct {
	mu       sync.Mutex
	calls    [][]string
	stdout   string
	stderr   string
	exitCode int
	err      error
	// blockUntilDeadline makes the runner behave like a process killed at the
	// context deadline: it waits for ctx and returns exit -1, like the real
	// runner does on cancellation.
	blockUntilDeadline bool
}

func (m *MockCommandRunner) RunCommand(ctx context.Context, args []string) (string, string, int, error) {
	m.mu.Lock()
	m.calls = append(m.calls, args)
	m.mu.Unlock()

	if m.blockUntilDeadline {
		<-ctx.Done()
		return m.stdout, m.stderr, -1, nil
	}
	return m.stdout, m.stderr, m.exitCode, m.err
}

// MockFileSystem implements FileSystem for testing
type MockFileSystem struct {
	mu           sync.Mutex
	writtenFiles map[string][]byte
	removedPaths []string
	tempDir      string
}

func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		writtenFiles: make(map[string][]byte),
		tempDir:      "/tmp/solvent-test",
	}
}

func (m *MockFileSystem) MkdirTemp(dir, pattern string) (string, error) {
	return m.tempDir, nil
}

func (m *MockFileSystem) WriteFile(filename string, data []byte, _ os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writtenFiles[filename] = data
	return nil
}

func (m *MockFileSystem) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removedPaths = append(m.removedPaths, path)
	return nil
}

// SpyContainerAPI records forced teardown calls
type SpyContainerAPI struct {
	mu      sync.Mutex
	killed  []string
	removed []string
}

func (s *SpyContainerAPI) Kill(_ context.Context, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killed = append(s.killed, name)
}

func (s *SpyContainerAPI) Remove(_ context.Context, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, name)
}

func testConfig() *Config {
	return &Config{
		Image:     "code-runner:latest",
		Timeout:   15 * time.Second,
		MemoryMB:  512,
		CPULimit:  1.0,
		PidsLimit: 50,
	}
}

func testTask() *task.Task {
	return &task.Task{
		ID:         "add",
		EntryPoint: "add",
		Signature:  "def add(a, b):",
		Assertions: []task.Assertion{{Expr: "add(2, 3) == 5"}},
	}
}

func TestDockerExecutorRun(t *testing.T) {
	logger := zaptest.NewLogger(t)
	sub := &task.Submission{Source: "def add(a, b):\n    return a + b\n", Attempt: 1}

	t.Run("PassingRun", func(t *testing.T) {
		runner := &MockCommandRunner{stdout: "1 passed in 0.02s", exitCode: 0}
		fs := NewMockFileSystem()
		executor := NewDockerExecutor(logger, testConfig(),
			WithDockerCommandRunner(runner),
			WithDockerFileSystem(fs),
			WithDockerContainerAPI(&SpyContainerAPI{}))

		result, err := executor.Run(context.Background(), sub, testTask())
		require.NoError(t, err)
		assert.Equal(t, StatusPassed, result.Status)
		assert.True(t, result.Passed())
		assert.Equal(t, 0, result.ExitCode)
		assert.Contains(t, result.Stdout, "1 passed")
	})

	t.Run("MaterializesSolutionAndTests", func(t *testing.T) {
		runner := &MockCommandRunner{exitCode: 0}
		fs := NewMockFileSystem()
		executor := NewDockerExecutor(logger, testConfig(),
			WithDockerCommandRunner(runner),
			WithDockerFileSystem(fs),
			WithDockerContainerAPI(&SpyContainerAPI{}))

		_, err := executor.Run(context.Background(), sub, testTask())
		require.NoError(t, err)

		solution := fs.writtenFiles["/tmp/solvent-test/solution.py"]
		require.NotNil(t, solution)
		assert.Equal(t, sub.Source, string(solution))

		tests := fs.writtenFiles["/tmp/solvent-test/test_solution.py"]
		require.NotNil(t, tests)
		assert.Contains(t, string(tests), "from solution import *")
		assert.Contains(t, string(tests), "assert add(2, 3) == 5")
	})

	t.Run("IsolationFlags", func(t *testing.T) {
		runner := &MockCommandRunner{exitCode: 0}
		fs := NewMockFileSystem()
		executor := NewDockerExecutor(logger, testConfig(),
			WithDockerCommandRunner(runner),
			WithDockerFileSystem(fs),
			WithDockerContainerAPI(&SpyContainerAPI{}))

		_, err := executor.Run(context.Background(), sub, testTask())
		require.NoError(t, err)

		args := strings.Join(runner.calls[0], " ")
		assert.Contains(t, args, "docker run")
		assert.Contains(t, args, "--rm")
		assert.Contains(t, args, "--memory 512m")
		assert.Contains(t, args, "--cpus 1.0")
		assert.Contains(t, args, "--pids-limit 50")
		assert.Contains(t, args, "--network none")
		assert.Contains(t, args, "--user nobody")
		assert.Contains(t, args, "--cap-drop ALL")
		assert.Contains(t, args, "--security-opt no-new-privileges:true")
		assert.Contains(t, args, "/tmp/solvent-test:/work:ro")
		assert.Contains(t, args, "code-runner:latest pytest -q test_solution.py -x")
	})

	t.Run("FailingTestsMapToFailed", func(t *testing.T) {
		runner := &MockCommandRunner{stdout: "1 failed in 0.04s", exitCode: 1}
		fs := NewMockFileSystem()
		executor := NewDockerExecutor(logger, testConfig(),
			WithDockerCommandRunner(runner),
			WithDockerFileSystem(fs),
			WithDockerContainerAPI(&SpyContainerAPI{}))

		result, err := executor.Run(context.Background(), sub, testTask())
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, result.Status)
		assert.False(t, result.Passed())
		assert.Equal(t, 1, result.ExitCode)
	})

	t.Run("OOMKillMapsToCrashed", func(t *testing.T) {
		runner := &MockCommandRunner{stderr: "Killed", exitCode: 137}
		fs := NewMockFileSystem()
		executor := NewDockerExecutor(logger, testConfig(),
			WithDockerCommandRunner(runner),
			WithDockerFileSystem(fs),
			WithDockerContainerAPI(&SpyContainerAPI{}))

		result, err := executor.Run(context.Background(), sub, testTask())
		require.NoError(t, err)
		assert.Equal(t, StatusCrashed, result.Status)
		assert.True(t, result.MemoryExceeded)
	})

	t.Run("RuntimeFailureIsInfraError", func(t *testing.T) {
		runner := &MockCommandRunner{stderr: "Unable to find image", exitCode: 125}
		fs := NewMockFileSystem()
		executor := NewDockerExecutor(logger, testConfig(),
			WithDockerCommandRunner(runner),
			WithDockerFileSystem(fs),
			WithDockerContainerAPI(&SpyContainerAPI{}))

		_, err := executor.Run(context.Background(), sub, testTask())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "container runtime failure")
	})

	t.Run("TempDirAlwaysRemoved", func(t *testing.T) {
		fs := NewMockFileSystem()
		for _, runner := range []*MockCommandRunner{
			{exitCode: 0},
			{exitCode: 1},
			{exitCode: 125},
		} {
			executor := NewDockerExecutor(logger, testConfig(),
				WithDockerCommandRunner(runner),
				WithDockerFileSystem(fs),
				WithDockerContainerAPI(&SpyContainerAPI{}))
			executor.Run(context.Background(), sub, testTask())
		}
		assert.Equal(t, []string{"/tmp/solvent-test", "/tmp/solvent-test", "/tmp/solvent-test"}, fs.removedPaths)
	})
}

func TestDockerExecutorTimeout(t *testing.T) {
	logger := zaptest.NewLogger(t)
	sub := &task.Submission{Source: "while True: pass", Attempt: 1}

	runner := &MockCommandRunner{blockUntilDeadline: true, stdout: "partial"}
	fs := NewMockFileSystem()
	spy := &SpyContainerAPI{}

	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	executor := NewDockerExecutor(logger, cfg,
		WithDockerCommandRunner(runner),
		WithDockerFileSystem(fs),
		WithDockerContainerAPI(spy))

	result, err := executor.Run(context.Background(), sub, testTask())
	require.NoError(t, err)
	assert.Equal(t, StatusTimedOut, result.Status)
	assert.True(t, result.TimedOut())
	assert.Equal(t, -1, result.ExitCode)
	assert.Equal(t, "partial", result.Stdout)

	// The container outlives the CLI process, so teardown goes through the
	// engine API, against the same container name docker run was given.
	require.Len(t, spy.killed, 1)
	require.Len(t, spy.removed, 1)
	assert.Equal(t, spy.killed[0], spy.removed[0])
	assert.Contains(t, strings.Join(runner.calls[0], " "), spy.killed[0])

	// Workspace cleanup still happens.
	assert.Equal(t, []string{"/tmp/solvent-test"}, fs.removedPaths)
}

func TestDockerExecutorAvailable(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("DaemonAndImagePresent", func(t *testing.T) {
		runner := &MockCommandRunner{stdout: "abc123def\n", exitCode: 0}
		executor := NewDockerExecutor(logger, testConfig(), WithDockerCommandRunner(runner))
		assert.NoError(t, executor.Available(context.Background()))
	})

	t.Run("DaemonUnreachable", func(t *testing.T) {
		runner := &MockCommandRunner{exitCode: 1}
		executor := NewDockerExecutor(logger, testConfig(), WithDockerCommandRunner(runner))
		err := executor.Available(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "docker daemon not reachable")
	})

	t.Run("ImageMissing", func(t *testing.T) {
		// docker images -q prints nothing but a newline for unknown images.
		runner := &MockCommandRunner{stdout: "\n", exitCode: 0}
		executor := NewDockerExecutor(logger, testConfig(), WithDockerCommandRunner(runner))
		err := executor.Available(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})
}

func TestStatusFromExit(t *testing.T) {
	cases := []struct {
		exitCode int
		status   Status
		oom      bool
	}{
		{0, StatusPassed, false},
		{1, StatusFailed, false},
		{2, StatusFailed, false},
		{137, StatusCrashed, true},
		{139, StatusCrashed, false},
	}
	for _, tc := range cases {
		status, oom := statusFromExit(tc.exitCode)
		assert.Equal(t, tc.status, status, "exit %d", tc.exitCode)
		assert.Equal(t, tc.oom, oom, "exit %d", tc.exitCode)
	}
}
