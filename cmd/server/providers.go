package main

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/isdmx/vibebox/blobstore"
	"github.com/isdmx/vibebox/config"
	"github.com/isdmx/vibebox/coordinator"
	"github.com/isdmx/vibebox/httpapi"
	"github.com/isdmx/vibebox/listing"
	"github.com/isdmx/vibebox/mcpserver"
	"github.com/isdmx/vibebox/sandbox"
	"github.com/isdmx/vibebox/telemetry"
)

// registerTelemetry installs the global OpenTelemetry providers before any
// transport starts serving.
func registerTelemetry(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	shutdown, err := telemetry.Init(context.Background(), cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	lc.Append(fx.Hook{OnStop: shutdown})
	return nil
}

func newListingStore(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*listing.SQLiteStore, error) {
	store, err := listing.Open(cfg.Listings.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening listing store: %w", err)
	}

	if cfg.Listings.SeedFile != "" {
		n, err := store.ImportSeed(context.Background(), cfg.Listings.SeedFile)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		log.Info("listing seed imported",
			zap.String("file", cfg.Listings.SeedFile),
			zap.Int("listings", n))
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

func newBlobStore(cfg *config.Config) (*blobstore.MinIOStore, error) {
	return blobstore.NewMinIOStore(cfg.Storage)
}

func newCoordinator(
	log *zap.Logger,
	cfg *config.Config,
	store *listing.SQLiteStore,
	blobs *blobstore.MinIOStore,
	executor *sandbox.Executor,
) *coordinator.Coordinator {
	return coordinator.New(log, store, blobs, executor,
		coordinator.WithContentTTL(cfg.PresignTTL()),
		coordinator.WithDefaultTimeout(cfg.DefaultTimeout()))
}

func asService(c *coordinator.Coordinator) coordinator.Service {
	return c
}

func newRESTServer(log *zap.Logger, service coordinator.Service) *httpapi.Server {
	return httpapi.New(log, service)
}

func registerMCPTransport(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *zap.Logger, server *mcpserver.MCPServer) {
	serve := server.ServeStdio
	if cfg.Server.Transport == "http" {
		serve = server.ServeHTTP
		lc.Append(fx.Hook{OnStop: server.Shutdown})
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := serve(); err != nil {
					log.Error("MCP transport stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				if cfg.Server.Transport == "stdio" {
					// stdin closed
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
	})
}

func registerRESTServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *zap.Logger, server *httpapi.Server) {
	if cfg.Server.RESTPort == 0 {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := server.Start(cfg.Server.RESTPort); err != nil {
					log.Error("REST server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: server.Shutdown,
	})
}
