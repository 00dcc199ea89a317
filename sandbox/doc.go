// Package sandbox provides isolated execution of candidate solutions.
//
// The sandbox package materializes a submission together with its task's
// test assertions in a fresh working directory and runs the suite inside a
// disposable, resource-bounded environment. It supports multiple backends
// including Docker, Podman, and local execution (for development).
//
// Every run gets its own environment instance: no network, a memory
// ceiling, a CPU cap, a pids limit, a non-privileged user, and a hard
// wall-clock timeout that force-terminates the environment. Teardown is
// unconditional on every exit path, including timeout and crash.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(logger, cfg)
//	result, err := executor.Run(ctx, submission, task)
package sandbox
