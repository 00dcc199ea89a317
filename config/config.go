package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Generator GeneratorConfig `mapstructure:"generator"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Bench     BenchConfig     `mapstructure:"bench"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds MCP server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// GeneratorConfig holds code generator (LLM) configuration
type GeneratorConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKeyEnv   string  `mapstructure:"api_key_env"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TimeoutSec  int     `mapstructure:"timeout_sec"`
}

// SandboxConfig holds sandbox execution configuration
type SandboxConfig struct {
	Backend            string  `mapstructure:"backend"`
	Image              string  `mapstructure:"image"`
	TimeoutSec         int     `mapstructure:"timeout_sec"`
	MemoryMB           int     `mapstructure:"memory_mb"`
	CPULimit           float64 `mapstructure:"cpu_limit"`
	PidsLimit          int     `mapstructure:"pids_limit"`
	EnableLocalBackend bool    `mapstructure:"enable_local_backend"`
}

// LoopConfig holds self-correction loop configuration
type LoopConfig struct {
	MaxAttempts            int  `mapstructure:"max_attempts"`
	BlockedConsumesAttempt bool `mapstructure:"blocked_consumes_attempt"`
	StopOnRepeatedError    bool `mapstructure:"stop_on_repeated_error"`
}

// BenchConfig holds benchmark run configuration
type BenchConfig struct {
	ResultsDir string `mapstructure:"results_dir"`
	Workers    int    `mapstructure:"workers"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "stdio")
	viper.SetDefault("server.http_port", 8080)

	viper.SetDefault("generator.provider", "ollama")
	viper.SetDefault("generator.model", "codellama:7b")
	viper.SetDefault("generator.base_url", "http://localhost:11434")
	viper.SetDefault("generator.api_key_env", "GROQ_API_KEY")
	viper.SetDefault("generator.temperature", 0.2)
	viper.SetDefault("generator.max_tokens", 512)
	viper.SetDefault("generator.timeout_sec", 60)

	viper.SetDefault("sandbox.backend", "docker")
	viper.SetDefault("sandbox.image", "code-runner:latest")
	viper.SetDefault("sandbox.timeout_sec", 15)
	viper.SetDefault("sandbox.memory_mb", 512)
	viper.SetDefault("sandbox.cpu_limit", 1.0)
	viper.SetDefault("sandbox.pids_limit", 50)
	viper.SetDefault("sandbox.enable_local_backend", false)

	viper.SetDefault("loop.max_attempts", 3)
	viper.SetDefault("loop.blocked_consumes_attempt", true)
	viper.SetDefault("loop.stop_on_repeated_error", true)

	viper.SetDefault("bench.results_dir", "results")
	viper.SetDefault("bench.workers", 4)

	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	supportedProviders := map[string]bool{
		"ollama": true,
		"openai": true,
		"groq":   true,
	}
	if !supportedProviders[c.Generator.Provider] {
		return fmt.Errorf("unsupported generator.provider: %s", c.Generator.Provider)
	}

	if c.Generator.MaxTokens <= 0 {
		return fmt.Errorf("generator.max_tokens must be positive, got: %d", c.Generator.MaxTokens)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	supportedBackends := map[string]bool{
		"docker": true,
		"podman": true,
		"local":  c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}
	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Loop.MaxAttempts <= 0 {
		return fmt.Errorf("loop.max_attempts must be positive, got: %d", c.Loop.MaxAttempts)
	}

	if c.Bench.Workers <= 0 {
		return fmt.Errorf("bench.workers must be positive, got: %d", c.Bench.Workers)
	}

	return nil
}

// GetSandboxTimeout returns the execution timeout as a duration
func (c *Config) GetSandboxTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetGeneratorTimeout returns the generation timeout as a duration
func (c *Config) GetGeneratorTimeout() time.Duration {
	return time.Duration(c.Generator.TimeoutSec) * time.Second
}
