package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-joins/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-joins/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-joins/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-joins/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-joins/pkg/config"
	"github.com/ekaya-inc/ekaya-joins/pkg/handlers"
	"github.com/ekaya-inc/ekaya-joins/pkg/logging"
	"github.com/ekaya-inc/ekaya-joins/pkg/mcp"
	"github.com/ekaya-inc/ekaya-joins/pkg/metrics"
	"github.com/ekaya-inc/ekaya-joins/pkg/metrics/datadog"
	"github.com/ekaya-inc/ekaya-joins/pkg/middleware"
	"github.com/ekaya-inc/ekaya-joins/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ekaya-joins: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(Version)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("listen_addr", cfg.ListenAddr()),
		zap.Int("datasources", len(cfg.Datasources)),
		zap.Bool("datadog", cfg.Metrics.Datadog.Enabled),
		zap.Bool("mcp", cfg.MCP.Enabled),
	)

	var backend metrics.Backend = metrics.Nop{}
	if cfg.Metrics.Datadog.Enabled {
		dd, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    cfg.Metrics.Datadog.JobName,
			Tags:       cfg.Metrics.Datadog.Tags,
			FlushEvery: cfg.Metrics.Datadog.FlushEvery(),
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("failed to start datadog metrics: %w", err)
		}
		defer func() {
			if err := dd.Close(); err != nil {
				logger.Warn("Failed to flush datadog metrics", zap.Error(err))
			}
		}()
		backend = dd
	}

	sources := make([]datasource.Source, 0, len(cfg.Datasources))
	for _, ds := range cfg.Datasources {
		sources = append(sources, datasource.Source{Name: ds.Name, Type: ds.Type, DSN: ds.DSN})
	}
	manager, err := datasource.NewManager(sources, cfg.Limits.MaxTableRows, logger)
	if err != nil {
		return fmt.Errorf("failed to configure datasources: %w", err)
	}
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Warn("Failed to close datasources", zap.String("error", logging.SanitizeError(err)))
		}
	}()

	joins := services.NewJoinService(services.JoinLimits{
		MaxScoringWork: cfg.Limits.MaxScoringWork,
		MaxOutputRows:  cfg.Limits.MaxOutputRows,
		TopMatches:     cfg.Limits.TopMatches,
	}, backend, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, manager, logger).RegisterRoutes(mux)
	handlers.NewJoinHandler(joins, manager, cfg.Limits.MaxUploadBytes, cfg.Limits.PreviewRows, logger.Named("join-handler")).RegisterRoutes(mux)
	handlers.NewUploadHandler(cfg.Limits.MaxUploadBytes, cfg.Limits.PreviewRows, logger.Named("upload-handler")).RegisterRoutes(mux)

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer(cfg.Version, mcp.Deps{
			Joins:       joins,
			Tables:      manager,
			Datasources: func() []string { return sourceNames(manager) },
			PreviewRows: cfg.Limits.PreviewRows,
		}, logger)
		mcpHandler := middleware.MCPRequestLogger(logger.Named("mcp-request"))(
			http.MaxBytesHandler(mcpServer.Handler(), cfg.Limits.MaxUploadBytes),
		)
		mux.Handle("/mcp", mcpHandler)
	}

	var handler http.Handler = mux
	handler = middleware.CORS(cfg.AllowedOrigins)(handler)
	handler = middleware.RequestLogger(logger.Named("http"))(handler)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-joins", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func sourceNames(manager *datasource.Manager) []string {
	sources := manager.Sources()
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}
	return names
}
