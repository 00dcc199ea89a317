// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the evaluation loop over MCP using the
// mark3labs/mcp-go library. The solve_task tool accepts a task description,
// entry point and assertions, runs the full generate/screen/execute/repair
// cycle, and returns the terminal outcome with the complete attempt ledger
// as JSON. The screen_code tool runs the guardrail scanner alone.
//
// The server supports both stdio and HTTP transports as configured by the
// application configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, orchestrator)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
