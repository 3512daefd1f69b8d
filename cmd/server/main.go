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

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"promptflow/backend/internal/api"
	"promptflow/backend/internal/config"
	"promptflow/backend/internal/logging"
	"promptflow/backend/internal/mcp"
	"promptflow/backend/internal/repository"
	"promptflow/backend/internal/services"
	"promptflow/backend/internal/telemetry"
	"promptflow/backend/internal/tls"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "promptflow-server",
		Short: "Serve the prompt workflow API and run endpoint",
		// Errors are logged by run; usage is only useful for flag mistakes.
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml (default ./config.yaml or ./config/config.yaml)")
	return cmd
}

func run(ctx context.Context, configPath string) error {

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}

	logger, err := logging.NewLogger(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		"config_file", cfg.Source,
		"addr", cfg.Server.Addr,
		"ai_provider", cfg.AI.Provider,
		"ai_enabled", cfg.AIEnabled(),
	)

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		return err
	}
	defer store.Close()
	logger.Info("Database connected")

	generator := services.NewGeneratorFromConfig(ctx, cfg, logger)
	workflows := services.NewWorkflowService(store)
	runner := services.NewRunner(store, generator, cfg.Server.HeartbeatInterval, telemetry.Default(), logger)
	logger.Info("Service layer initialized", "ai_enabled", generator.Enabled())

	srv := api.NewServer(workflows, runner, logger, cfg.Server.CORSOrigins)
	e := api.NewRouter(srv, logger, otelecho.Middleware("promptflow"))

	mcpServer := mcp.NewServer(workflows)
	mcp.Mount(e, mcpServer.GetMCPServer())
	logger.Info("MCP protocol handlers mounted")

	// No WriteTimeout: run sockets and the MCP event stream are long-lived.
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           e,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.TLS.Enable {
		created, err := tls.EnsureCert(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.Hostnames)
		if err != nil {
			logger.Error("TLS setup failed", "error", err)
			return err
		}
		if created {
			logger.Info("Generated self-signed certificate", "cert_file", cfg.TLS.CertFile)
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "address", cfg.Server.Addr, "tls", cfg.TLS.Enable)
		if cfg.TLS.Enable {
			serverErrors <- server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	shutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			return err
		}
	case <-shutdown.Done():
		logger.Info("Shutdown signal received")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			if err := server.Close(); err != nil {
				logger.Error("Server close error", "error", err)
			}
		}
		logger.Info("Server stopped gracefully")
	}
	return nil
}
