package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/solvekit/solvent/config"
)

func factoryConfig(backend string) *config.Config {
	return &config.Config{
		Sandbox: config.SandboxConfig{
			Backend:    backend,
			Image:      "code-runner:latest",
			TimeoutSec: 15,
			MemoryMB:   512,
			CPULimit:   1.0,
			PidsLimit:  50,
		},
	}
}

func TestNewExecutor(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("Docker", func(t *testing.T) {
		executor, err := NewExecutor(logger, factoryConfig("docker"))
		require.NoError(t, err)
		assert.IsType(t, &DockerExecutor{}, executor)
	})

	t.Run("Podman", func(t *testing.T) {
		executor, err := NewExecutor(logger, factoryConfig("podman"))
		require.NoError(t, err)
		assert.IsType(t, &PodmanExecutor{}, executor)
	})

	t.Run("LocalDisabledByDefault", func(t *testing.T) {
		_, err := NewExecutor(logger, factoryConfig("local"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "local backend is disabled")
	})

	t.Run("LocalWhenEnabled", func(t *testing.T) {
		cfg := factoryConfig("local")
		cfg.Sandbox.EnableLocalBackend = true
		executor, err := NewExecutor(logger, cfg)
		require.NoError(t, err)
		assert.IsType(t, &LocalExecutor{}, executor)
	})

	t.Run("UnsupportedBackend", func(t *testing.T) {
		_, err := NewExecutor(logger, factoryConfig("chroot"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported backend")
	})
}
