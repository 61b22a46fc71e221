package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/study-scheduler/cmd/cli/commands"
	"github.com/jakechorley/study-scheduler/internal/config"
	"github.com/jakechorley/study-scheduler/pkg/clients/storeclient"
	"github.com/jakechorley/study-scheduler/pkg/core/reconciler"
	"github.com/jakechorley/study-scheduler/pkg/core/refdata"
	"github.com/jakechorley/study-scheduler/pkg/core/services"
	"github.com/jakechorley/study-scheduler/pkg/db"
	"github.com/jakechorley/study-scheduler/pkg/lock"
	"github.com/jakechorley/study-scheduler/pkg/metrics"
	"github.com/jakechorley/study-scheduler/pkg/postgres"
	"github.com/jakechorley/study-scheduler/pkg/utils/logging"
)

var (
	env     string
	verbose bool
	app     = &commands.AppContext{}

	// closers run in reverse order after the command finishes
	closers []func()
)

func main() {
	// A missing .env file is fine
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Study Scheduler CLI - Assign volunteers to study appointments",
		Long: `A CLI tool for booking volunteers onto clinical study appointments while
keeping their study group enrolment and compensation record consistent.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
			if app.Logger != nil {
				_ = app.Logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs on the console")
	_ = rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.AssignCmd(app))
	rootCmd.AddCommand(commands.UnassignCmd(app))
	rootCmd.AddCommand(commands.BatchAssignCmd(app))
	rootCmd.AddCommand(commands.BatchUnassignCmd(app))
	rootCmd.AddCommand(commands.ReconcileCmd(app))
	rootCmd.AddCommand(commands.ConflictsCmd(app))
	rootCmd.AddCommand(commands.CreateSlotsCmd(app))
	rootCmd.AddCommand(commands.ListWarningsCmd(app))
	rootCmd.AddCommand(commands.RetryWarningsCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, store client, lock and warning journal
func initApp() error {
	var err error
	app.Ctx = context.Background()
	app.In = bufio.NewReader(os.Stdin)

	app.Logger, err = logging.InitLogger(env, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := app.Logger

	logger.Info("Starting application", zap.String("environment", env))

	logger.Info("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := app.Cfg
	logger.Debug("Configuration loaded successfully")

	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(app.Registry)

	logger.Info("Initializing store client", zap.String("base_url", cfg.StoreBaseURL))
	app.Store, err = storeclient.NewClient(app.Ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create store client: %w", err)
	}
	logger.Debug("Store client initialized", zap.Bool("auth", cfg.Auth.Enabled()))

	app.RefData = refdata.NewRepository(app.Store, cfg.RefDataTTL, logger)

	rec := reconciler.New(app.Store, app.RefData, logger, reconciler.Options{
		PollInterval:   cfg.Settle.PollInterval,
		SettleTimeout:  cfg.Settle.Timeout,
		RetryAttempts:  cfg.Retry.Attempts,
		RetryBaseDelay: cfg.Retry.BaseDelay,
		Metrics:        m,
	})

	locker, err := initLocker(cfg, logger, m)
	if err != nil {
		return err
	}

	journal, err := initJournal(cfg, logger)
	if err != nil {
		return err
	}

	app.Orchestrator = services.NewOrchestrator(app.Store, rec, logger, services.Options{
		BatchConcurrency: cfg.BatchConcurrency,
		Locker:           locker,
		Journal:          journal,
		Metrics:          m,
	})

	if cfg.MetricsAddr != "" {
		startMetricsServer(cfg.MetricsAddr, app.Registry, logger)
	}

	logger.Info("Application initialized successfully")
	return nil
}

func initLocker(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (lock.Locker, error) {
	if !cfg.Redis.Enabled() {
		logger.Debug("Using in-process volunteer lock")
		return lock.NewLocal(m), nil
	}

	logger.Info("Connecting to Redis", zap.String("addr", cfg.Redis.Addr))
	client, err := lock.NewRedisClient(app.Ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	closers = append(closers, func() { _ = client.Close() })
	return lock.NewRedis(client, cfg.Redis.LockTTL, logger, m), nil
}

func initJournal(cfg *config.Config, logger *zap.Logger) (db.WarningStore, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("No databaseURL configured, reconciliation warnings are kept in memory only")
		return db.NewMemoryDB(), nil
	}

	logger.Info("Connecting to database")
	database, err := postgres.NewDB(app.Ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closers = append(closers, database.Close)

	if err := database.RunMigrations(app.Ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Debug("Database initialized successfully")
	return database, nil
}

func startMetricsServer(addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	closers = append(closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
}
