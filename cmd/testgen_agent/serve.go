package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/mapping-testgen/internal/config"
	"github.com/jonathan/mapping-testgen/internal/fetch"
	"github.com/jonathan/mapping-testgen/internal/github"
	"github.com/jonathan/mapping-testgen/internal/jobs"
	"github.com/jonathan/mapping-testgen/internal/metrics"
	"github.com/jonathan/mapping-testgen/internal/server"
	"github.com/jonathan/mapping-testgen/internal/server/ratelimit"
	"github.com/jonathan/mapping-testgen/internal/store"
)

var (
	servePort    int
	serveStorage string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the job API server",
	Long:  `Start an HTTP server that accepts mapping files, generates test cases in the background and serves their status and results.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().StringVar(&serveStorage, "storage", "", "Storage backend: auto, local, nats or postgres (overrides STORAGE_BACKEND)")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads configuration and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("storage") {
		cfg.Storage.Backend = serveStorage
	}
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreOptions(), logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = st.Close() }()

	gen, closeGen, err := buildGenerator(ctx, cfg.Generator, logger)
	if err != nil {
		return err
	}
	defer closeGen()

	m := metrics.New()
	orch, err := jobs.New(jobs.Options{
		Store:         st,
		Generator:     gen,
		Source:        github.NewSource(cfg.GitHub.Token, fetch.DefaultOptions(), logger.Named("source")),
		Logger:        logger.Named("jobs"),
		Metrics:       m,
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
	})
	if err != nil {
		return err
	}

	var limits *ratelimit.Config
	if cfg.Server.RateLimit {
		limits = ratelimit.LoadConfig()
	}

	srv, err := server.New(server.Config{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimit:       limits,
		PublishRepo:     cfg.GitHub.PublishRepo,
		PublishBranch:   cfg.GitHub.PublishBranch,
		PublishDir:      cfg.GitHub.PublishDir,
	}, server.Deps{
		Jobs:      orch,
		Store:     st,
		Generator: gen,
		Publisher: github.NewPublisher(github.PublisherOptions{
			Token:   cfg.GitHub.Token,
			BaseURL: cfg.GitHub.APIBaseURL,
		}, logger.Named("publisher")),
		Metrics: m,
		Logger:  logger.Named("http"),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("service configured",
		zap.String("store", st.Backend()),
		zap.String("generator", gen.Name()),
		zap.Int("max_concurrent_jobs", cfg.Jobs.MaxConcurrent),
	)
	return srv.Start(ctx)
}
