package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/solvekit/solvent/config"
)

// NewExecutor creates an appropriate sandbox executor based on the configuration
func NewExecutor(logger *zap.Logger, cfg *config.Config) (Executor, error) {
	executorConfig := &Config{
		Image:     cfg.Sandbox.Image,
		Timeout:   cfg.GetSandboxTimeout(),
		MemoryMB:  cfg.Sandbox.MemoryMB,
		CPULimit:  cfg.Sandbox.CPULimit,
		PidsLimit: cfg.Sandbox.PidsLimit,
	}

	switch cfg.Sandbox.Backend {
	case "docker":
		return NewDockerExecutor(logger, executorConfig), nil
	case "podman":
		return NewPodmanExecutor(logger, executorConfig), nil
	case "local":
		if !cfg.Sandbox.EnableLocalBackend {
			return nil, fmt.Errorf("local backend is disabled; set sandbox.enable_local_backend to use it")
		}
		return NewLocalExecutor(logger, executorConfig), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}
