package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rewired-gh/alertbell/internal/config"
	"github.com/rewired-gh/alertbell/internal/history"
	"github.com/rewired-gh/alertbell/internal/logger"
	"github.com/rewired-gh/alertbell/internal/monitor"
	"github.com/rewired-gh/alertbell/internal/notify"
	"github.com/rewired-gh/alertbell/internal/storage"
	"github.com/rewired-gh/alertbell/internal/symbols"
	"github.com/rewired-gh/alertbell/internal/telegram"
)

var (
	configPath  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	allWeekdays = flag.Bool("all-days", false, "Run every job regardless of its weekdays")
	dryRun      = flag.Bool("dry-run", false, "Print alerts to stdout instead of sending them")
)

// statusReporter is implemented by notifiers that can report run failures.
type statusReporter interface {
	SendError(ctx context.Context, err error) error
	SendRecovery(ctx context.Context, failureCount int) error
}

func main() {
	flag.Parse()
	os.Exit(serve())
}

// serve runs until the one-shot run finishes or a shutdown signal arrives
// and returns the process exit code.
func serve() int {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if *allWeekdays {
		cfg.Run.AllWeekdays = true
	}
	if *dryRun {
		cfg.Run.DryRun = true
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	logger.Info("Configuration loaded from %s", *configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	providerFor, closeProvider, err := newProviderFactory(ctx, cfg.History)
	if err != nil {
		logger.Fatal("Failed to initialize history provider: %v", err)
	}
	defer closeProvider()

	notifyCfg := cfg.Notify
	if cfg.Run.DryRun {
		notifyCfg.Channel = "console"
	}
	notifier, closeNotifier, err := notify.New(notifyCfg)
	if err != nil {
		logger.Fatal("Failed to initialize %s notifier: %v", cfg.Notify.Channel, err)
	}
	defer closeNotifier()
	logger.Info("Notifications go to %s", notifyCfg.Channel)

	reporter, _ := notifier.(statusReporter)
	if tg, ok := notifier.(*telegram.Client); ok && cfg.Run.Interval > 0 {
		tg.ListenForCommands(ctx)
	}

	// Symbols and jobs are reloaded every run so symbol file edits apply
	// without a restart.
	run := func() error {
		watched, err := symbols.Load(cfg.Symbols.File)
		if err != nil {
			return err
		}
		jobs, err := monitor.BuildJobs(cfg.Jobs, cfg.DetectorConfig(), watched, providerFor)
		if err != nil {
			return err
		}
		runner := &monitor.Runner{
			Jobs:        jobs,
			Storage:     storage.Options{Backend: cfg.Storage.Backend, DataDir: cfg.Storage.DataDir},
			Notifier:    notifier,
			AllWeekdays: cfg.Run.AllWeekdays,
			DryRun:      cfg.Run.DryRun,
		}
		start := time.Now()
		logger.Info("Starting alert run (%d jobs, %d symbols)", len(jobs), len(watched))
		err = runner.Run(ctx)
		logger.Info("Alert run completed in %v", time.Since(start))
		return err
	}

	if cfg.Run.Interval == 0 {
		if err := run(); err != nil {
			logger.Error("Alert run failed: %v", err)
			return 1
		}
		return 0
	}

	logger.Info("Starting alert service (interval: %v, jobs: %d, backend: %s)",
		cfg.Run.Interval, len(cfg.Jobs), cfg.Storage.Backend)

	ticker := time.NewTicker(cfg.Run.Interval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleRunResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Alert run failed: %v", err)
			if consecutiveFailures == 1 && reporter != nil {
				if sendErr := reporter.SendError(ctx, err); sendErr != nil {
					logger.Warn("Failed to send error notification: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && reporter != nil {
				if sendErr := reporter.SendRecovery(ctx, consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial alert run")
	handleRunResult(run())

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return 0

		case <-ticker.C:
			logger.Debug("Starting scheduled alert run")
			handleRunResult(run())
		}
	}
}

// newProviderFactory returns a constructor of per-metric history providers
// and a function releasing the shared connection pool, if any.
func newProviderFactory(ctx context.Context, cfg config.HistoryConfig) (func(metric string) history.Provider, func(), error) {
	switch cfg.Provider {
	case "csv":
		return func(metric string) history.Provider {
			return history.WithTimeout(history.NewCSV(cfg.CSVDir, metric), cfg.Timeout)
		}, func() {}, nil
	case "postgres":
		pool, err := history.NewPostgresPool(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return func(metric string) history.Provider {
			return history.WithTimeout(history.NewPostgres(pool, cfg.Table, metric, cfg.LookbackDays), cfg.Timeout)
		}, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown history provider %q", cfg.Provider)
	}
}
