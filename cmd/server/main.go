// Package main is the entry point for the Solvent MCP server.
//
// Solvent is a self-correcting code generation service: it asks a language
// model for a candidate Python solution, screens it against a guardrail
// pattern table, runs the task's tests in an isolated container sandbox,
// classifies any failure, and feeds a targeted repair prompt back to the
// model until the tests pass or the attempt budget runs out. The server
// exposes this loop over the Model Context Protocol on stdio or HTTP.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/solvekit/solvent/config"
	"github.com/solvekit/solvent/generator"
	"github.com/solvekit/solvent/logger"
	"github.com/solvekit/solvent/loop"
	"github.com/solvekit/solvent/mcpserver"
	"github.com/solvekit/solvent/sandbox"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Generator for the configured provider
			func(log *zap.Logger, cfg *config.Config) (generator.Generator, error) {
				return generator.New(log, cfg)
			},

			// Sandbox executor based on config
			sandbox.NewExecutor,

			// Evaluation loop
			loop.NewFromConfig,

			// MCP Server
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, server *mcpserver.MCPServer) {
				switch cfg.Server.Transport {
				case "stdio":
					go func() {
						if err := server.ServeStdio(); err != nil {
							panic(err)
						}
					}()
				case "http":
					go func() {
						if err := server.ServeHTTP(); err != nil {
							panic(err)
						}
					}()
				default:
					panic("unsupported transport: " + cfg.Server.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}
