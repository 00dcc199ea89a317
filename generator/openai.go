package generator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/solvekit/solvent/config"
	"github.com/solvekit/solvent/repair"
	"github.com/solvekit/solvent/task"
)

// ChatClient is the slice of the OpenAI-compatible API the generator uses.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	ListModels(ctx context.Context) (openai.ModelsList, error)
}

// OpenAIGenerator talks to any OpenAI-compatible chat completion endpoint:
// OpenAI itself, Groq, or an Ollama server's /v1 route.
type OpenAIGenerator struct {
	logger      *zap.Logger
	client      ChatClient
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// OpenAIGeneratorOption defines a functional option for OpenAIGenerator
type OpenAIGeneratorOption func(*OpenAIGenerator)

// WithChatClient sets the ChatClient for OpenAIGenerator
func WithChatClient(client ChatClient) OpenAIGeneratorOption {
	return func(g *OpenAIGenerator) {
		g.client = client
	}
}

// resolveEndpoint maps the configured provider to the chat endpoint base
// URL and API key. An explicit generator.base_url always wins, so any
// OpenAI-compatible proxy can be targeted regardless of provider. An
// empty base URL means the client default.
func resolveEndpoint(gc config.GeneratorConfig) (baseURL, apiKey string, err error) {
	baseURL = gc.BaseURL
	apiKey = os.Getenv(gc.APIKeyEnv)
	switch gc.Provider {
	case "ollama":
		// Ollama exposes an OpenAI-compatible surface under /v1 and
		// ignores the key.
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		baseURL = strings.TrimSuffix(baseURL, "/") + "/v1"
		apiKey = "ollama"
	case "groq":
		if baseURL == "" {
			baseURL = "https://api.groq.com/openai/v1"
		}
	case "openai":
	default:
		return "", "", fmt.Errorf("unsupported generator provider: %s", gc.Provider)
	}
	if apiKey == "" {
		return "", "", fmt.Errorf("generator api key not set; export %s", gc.APIKeyEnv)
	}
	return baseURL, apiKey, nil
}

// New builds a Generator from the application configuration.
func New(logger *zap.Logger, cfg *config.Config, opts ...OpenAIGeneratorOption) (Generator, error) {
	gc := cfg.Generator

	baseURL, apiKey, err := resolveEndpoint(gc)
	if err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	g := &OpenAIGenerator{
		logger:      logger,
		client:      openai.NewClientWithConfig(clientCfg),
		model:       gc.Model,
		temperature: float32(gc.Temperature),
		maxTokens:   gc.MaxTokens,
		timeout:     cfg.GetGeneratorTimeout(),
	}

	// Apply options
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Generate produces an initial candidate for the task.
func (g *OpenAIGenerator) Generate(ctx context.Context, t *task.Task) (Result, error) {
	return g.complete(ctx, GenerationPrompt(t))
}

// Repair produces a corrected candidate for a repair request.
func (g *OpenAIGenerator) Repair(ctx context.Context, req repair.Request) (Result, error) {
	return g.complete(ctx, req.Prompt)
}

// Available probes the backend by listing models.
func (g *OpenAIGenerator) Available(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("generator backend not reachable: %w", err)
	}
	return nil
}

func (g *OpenAIGenerator) complete(ctx context.Context, prompt string) (Result, error) {
	reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(reqCtx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	elapsed := time.Since(start)
	if err != nil {
		return Result{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, ErrEmptyGeneration
	}

	raw := resp.Choices[0].Message.Content
	code := ExtractCode(raw)
	if strings.TrimSpace(code) == "" {
		return Result{}, ErrEmptyGeneration
	}

	g.logger.Debug("generation completed",
		zap.String("model", g.model),
		zap.Duration("duration", elapsed),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return Result{
		Code:             code,
		Raw:              raw,
		Duration:         elapsed,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}
