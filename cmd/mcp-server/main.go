// Command mcp-server runs the JSON-RPC tool execution server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lespauI/mcp-ios-agent/pkg/auth"
	"github.com/lespauI/mcp-ios-agent/pkg/config"
	"github.com/lespauI/mcp-ios-agent/pkg/engine"
	"github.com/lespauI/mcp-ios-agent/pkg/logging"
	"github.com/lespauI/mcp-ios-agent/pkg/observability"
	"github.com/lespauI/mcp-ios-agent/pkg/registry"
	"github.com/lespauI/mcp-ios-agent/pkg/resource"
	"github.com/lespauI/mcp-ios-agent/pkg/server"
	"github.com/lespauI/mcp-ios-agent/pkg/session"
	"github.com/lespauI/mcp-ios-agent/pkg/sse"
	"github.com/lespauI/mcp-ios-agent/pkg/tools"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		envFile string
		host    string
		port    int
	)

	root := &cobra.Command{
		Use:           "mcp-server",
		Short:         "JSON-RPC tool execution server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Host = host
			}
			if port != 0 {
				cfg.Port = port
			}
			return run(cmd.Context(), cfg)
		},
	}
	serve.Flags().StringVar(&envFile, "env-file", "", "environment file to load")
	serve.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	serve.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")

	root.AddCommand(serve)
	return root
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg)
	logger.Info("Starting server",
		logging.String("environment", cfg.Environment),
		logging.String("version", version))

	metrics := observability.NewMetrics(observability.MetricsConfig{
		ServiceName:    cfg.ProjectName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
	})

	var tracing *observability.TracingProvider
	if cfg.EnableTracing {
		var err error
		tracing, err = observability.NewTracingProvider(observability.TracingConfig{
			ServiceName:    cfg.ProjectName,
			ServiceVersion: version,
			Environment:    cfg.Environment,
			ExporterType:   observability.ExporterTypeOTLPGRPC,
			Endpoint:       cfg.OTLPEndpoint,
			Insecure:       true,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	reg := registry.New(logger, registry.WithRecorder(metrics))
	if err := tools.RegisterBasic(reg); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	engineOpts := []engine.Option{engine.WithRecorder(metrics)}
	if tracing != nil {
		engineOpts = append(engineOpts, engine.WithTracer(tracing))
	}
	eng := engine.New(reg, logger, engineOpts...)

	store, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	sessions := session.NewManager(store, cfg.SessionTTL, logger)

	resources, err := resource.NewManager(cfg.StoragePath, cfg.MaxResourceSizeBytes, logger)
	if err != nil {
		return err
	}
	resources.StartCleanup(cfg.ResourceCleanupInterval)
	defer resources.Close()

	events := sse.NewManager(cfg.SSEQueueSize, logger)
	events.SetClientGauge(metrics.SetSSEClients)
	defer events.Close()

	authService := auth.NewService(&auth.Config{MinKeyLength: cfg.APIKeyMinLength}, logger)
	if cfg.AuthEnabled {
		if err := bootstrapAdminKey(ctx, authService, logger); err != nil {
			return err
		}
	}

	tracker := observability.NewTracker(cfg.OperationHistorySize)

	srv := server.New(server.Options{
		Config:    cfg,
		Engine:    eng,
		Sessions:  sessions,
		Resources: resources,
		Events:    events,
		Auth:      authService,
		Metrics:   metrics,
		Tracker:   tracker,
		Tracing:   tracing,
		Logger:    logger,
	})

	group, ctx := errgroup.WithContext(ctx)
	group.Go(srv.Start)
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if tracing != nil {
			_ = tracing.Shutdown(shutdownCtx)
		}
		_ = sessions.Close()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func newLogger(cfg *config.Config) logging.Logger {
	var formatter logging.Formatter = logging.NewTextFormatter()
	if cfg.LogFormat == "json" {
		formatter = logging.NewJSONFormatter()
	}
	logger := logging.New(os.Stderr, formatter)
	logger.SetLevel(logging.ParseLevel(cfg.LogLevel))
	return logger
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, error) {
	if cfg.RedisAddr == "" {
		return session.NewMemoryStore(cfg.SessionCleanupInterval), nil
	}
	return session.NewRedisStore(ctx, session.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// bootstrapAdminKey honors ADMIN_API_KEY_NAME for labeling; the key
// itself is generated and printed once so the operator can capture it.
func bootstrapAdminKey(ctx context.Context, service *auth.Service, logger logging.Logger) error {
	name := os.Getenv("ADMIN_API_KEY_NAME")
	if name == "" {
		name = "bootstrap-admin"
	}
	key, info, err := service.CreateKey(ctx, name, auth.RoleAdmin, nil)
	if err != nil {
		return fmt.Errorf("failed to create admin key: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Admin API key (%s): %s\n", info.Name, key)
	logger.Info("Created bootstrap admin key", logging.String("preview", info.Preview))
	return nil
}
