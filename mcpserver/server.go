package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/solvekit/solvent/bench"
	"github.com/solvekit/solvent/config"
	"github.com/solvekit/solvent/guardrail"
	"github.com/solvekit/solvent/loop"
	"github.com/solvekit/solvent/task"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	orch      *loop.Orchestrator
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, orch *loop.Orchestrator) (*MCPServer, error) {
	s := &MCPServer{
		config: cfg,
		logger: logger,
		orch:   orch,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.String("generator.provider", s.config.Generator.Provider),
		zap.String("generator.model", s.config.Generator.Model),
		zap.String("sandbox.backend", s.config.Sandbox.Backend),
		zap.String("sandbox.image", s.config.Sandbox.Image),
		zap.Int("sandbox.timeout_sec", s.config.Sandbox.TimeoutSec),
		zap.Int("sandbox.memory_mb", s.config.Sandbox.MemoryMB),
		zap.Int("loop.max_attempts", s.config.Loop.MaxAttempts),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("solvent", "A self-correcting code generation server")

	s.registerSolveTaskTool()
	s.registerScreenCodeTool()

	return s, nil
}

// registerSolveTaskTool registers the solve_task tool
func (s *MCPServer) registerSolveTaskTool() {
	tool := mcp.Tool{
		Name:        "solve_task",
		Description: "Generate, test and repair a Python function until its assertions pass",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"description": map[string]any{
					"type":        "string",
					"description": "Natural-language description of the function to write",
				},
				"entry_point": map[string]any{
					"type":        "string",
					"description": "Name of the function the solution must define",
				},
				"signature": map[string]any{
					"type":        "string",
					"description": "Python signature of the function (optional)",
				},
				"assertions": map[string]any{
					"type":        "array",
					"description": "Python boolean expressions that must all evaluate true",
					"items": map[string]any{
						"type": "string",
					},
				},
			},
			Required: []string{"description", "entry_point", "assertions"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleSolveTask)
}

// registerScreenCodeTool registers the screen_code tool
func (s *MCPServer) registerScreenCodeTool() {
	tool := mcp.Tool{
		Name:        "screen_code",
		Description: "Run the guardrail scanner over Python source without executing it",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "Python source to screen",
				},
			},
			Required: []string{"code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleScreenCode)
}

// handleSolveTask handles the solve_task tool
func (s *MCPServer) handleSolveTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	description, err := request.RequireString("description")
	if err != nil {
		return nil, fmt.Errorf("description parameter is required: %w", err)
	}
	entryPoint, err := request.RequireString("entry_point")
	if err != nil {
		return nil, fmt.Errorf("entry_point parameter is required: %w", err)
	}

	signature := request.GetString("signature", "")
	if signature == "" {
		signature = fmt.Sprintf("def %s(...):", entryPoint)
	}
	t := task.Task{
		ID:          "mcp-" + uuid.NewString()[:8],
		EntryPoint:  entryPoint,
		Signature:   signature,
		Description: description,
	}

	args := request.GetArguments()
	rawAssertions, ok := args["assertions"].([]any)
	if !ok || len(rawAssertions) == 0 {
		return nil, fmt.Errorf("assertions parameter must be a non-empty string array")
	}
	for i, raw := range rawAssertions {
		expr, ok := raw.(string)
		if !ok || expr == "" {
			return nil, fmt.Errorf("assertion %d must be a non-empty string", i)
		}
		t.Assertions = append(t.Assertions, task.Assertion{Expr: expr})
	}

	s.logger.Info("task evaluation requested",
		zap.String("task_id", t.ID),
		zap.String("entry_point", t.EntryPoint),
		zap.Int("assertions", len(t.Assertions)))

	outcome, ledger, err := s.orch.Evaluate(ctx, &t)
	if err != nil {
		s.logger.Error("evaluation failed",
			zap.Error(err),
			zap.String("task_id", t.ID))
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Evaluation failed: %v", err),
				},
			},
			IsError: true,
		}, nil
	}

	s.logger.Info("task evaluation completed",
		zap.String("task_id", t.ID),
		zap.Bool("solved", outcome.Solved),
		zap.Int("attempts", outcome.Attempts))

	report := bench.TaskReport{Outcome: outcome, Ledger: ledger}
	data, err := json.Marshal(&report)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
	}, nil
}

// handleScreenCode handles the screen_code tool
func (s *MCPServer) handleScreenCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	decision := guardrail.Screen(code)
	s.logger.Info("code screened",
		zap.Bool("allowed", decision.Allowed),
		zap.String("category", decision.Category))

	data, err := json.Marshal(decision)
	if err != nil {
		return nil, fmt.Errorf("encoding decision: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(data),
			},
		},
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// ServeHTTP starts the server on HTTP
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	return httpServer.Start(fmt.Sprintf(":%d", port))
}

// GetMCPServer returns the underlying MCP server for fx
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
