package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/vibebox/config"
	"github.com/isdmx/vibebox/logger"
	"github.com/isdmx/vibebox/mcpserver"
	"github.com/isdmx/vibebox/sandbox"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Sandbox executor based on config
			sandbox.NewExecutor,

			// Listing metadata and file contents
			newListingStore,
			newBlobStore,

			// Coordinator and the boundary contract it serves
			newCoordinator,
			asService,

			// MCP Server
			mcpserver.New,

			// REST API
			newRESTServer,
		),

		// Telemetry first, then the configured transports
		fx.Invoke(
			registerTelemetry,
			registerMCPTransport,
			registerRESTServer,
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}
