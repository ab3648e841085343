package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/gstat-gcloud/covid19-sim/internal/config"
	"github.com/gstat-gcloud/covid19-sim/internal/forecast"
	"github.com/gstat-gcloud/covid19-sim/internal/govdata"
	"github.com/gstat-gcloud/covid19-sim/internal/logger"
	"github.com/gstat-gcloud/covid19-sim/internal/models"
	"github.com/gstat-gcloud/covid19-sim/internal/storage"
	"github.com/gstat-gcloud/covid19-sim/internal/telegram"
)

func main() {
	flags := pflag.NewFlagSet("epiforecast", pflag.ExitOnError)
	configPath := flags.String("config", "configs/config.yaml", "Path to configuration file")
	flags.String("mode", "once", "Run mode: once or watch")
	flags.String("model", "all", "Model to run: all, sir, seiar or olg")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	_ = flags.Parse(os.Args[1:])

	// Load configuration
	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s (mode: %s, model: %s)", *configPath, cfg.Mode, cfg.Model)

	// Initialize storage
	store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	// Initialize datastore client
	var source *govdata.Client
	if cfg.Source.Enabled {
		source = govdata.NewClient(cfg.Source.BaseURL, cfg.Source.Timeout, cfg.Source.MaxRetries, cfg.Source.RetryDelayBase)
		logger.Debug("Datastore source enabled (resource: %s)", cfg.Source.ResourceID)
	}

	// Initialize forecaster
	fc := forecast.New(store).WithWorkers(cfg.OLG.Workers)

	// Initialize Telegram client
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if cfg.Mode == "once" {
		report, err := runForecastCycle(ctx, source, fc, store, cfg)
		if err != nil {
			_ = store.Close()
			logger.Fatal("Forecast failed: %v", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			logger.Error("Failed to write report: %v", err)
		}
		return
	}

	// Start watch loop
	logger.Info("Starting forecast service (interval: %v)", cfg.Watch.PollInterval)

	ticker := time.NewTicker(cfg.Watch.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0
	var firstFailure time.Time

	handleCycleResult := func(report *forecast.Report, err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Forecast cycle failed: %v", err)
			if consecutiveFailures == 1 {
				firstFailure = time.Now()
				if telegramClient != nil {
					if sendErr := telegramClient.SendError(err); sendErr != nil {
						logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
					}
				}
			}
			return
		}

		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(consecutiveFailures, time.Since(firstFailure)); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0

		if telegramClient != nil {
			runs := report.Summaries()
			if err := telegramClient.Send(runs); err != nil {
				logger.Error("Failed to send Telegram notification: %v", err)
			} else {
				logger.Info("Sent Telegram notification with %d runs", len(runs))
			}
		}
	}

	// Run initial cycle immediately
	logger.Debug("Running initial forecast cycle")
	handleCycleResult(runForecastCycle(ctx, source, fc, store, cfg))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled forecast cycle")
			handleCycleResult(runForecastCycle(ctx, source, fc, store, cfg))

			// Rotate old runs
			if err := store.RotateRuns(); err != nil {
				logger.Warn("Failed to rotate runs: %v", err)
			}
		}
	}
}

// runForecastCycle ingests fresh observations when a source is configured and
// runs every selected model.
func runForecastCycle(
	ctx context.Context,
	source *govdata.Client,
	fc *forecast.Forecaster,
	store *storage.Storage,
	cfg *config.Config,
) (*forecast.Report, error) {
	startTime := time.Now()
	logger.Info("Starting forecast cycle")

	if source != nil {
		if err := ingest(ctx, source, store, cfg.Source); err != nil {
			return nil, err
		}
	}

	report := &forecast.Report{}

	if cfg.RunsModel(models.ModelSIR) {
		res, err := fc.RunSIR(forecast.SIRInput{Params: cfg.SIR.Params(), Dispositions: cfg.SIR.Dispositions})
		if err != nil {
			return nil, fmt.Errorf("failed to run sir: %w", err)
		}
		report.SIR = res
	}

	if cfg.RunsModel(models.ModelSEIAR) {
		p, err := cfg.SEIAR.Params()
		if err != nil {
			return nil, fmt.Errorf("failed to run seiar: %w", err)
		}
		res, err := fc.RunSEIAR(p)
		if err != nil {
			return nil, fmt.Errorf("failed to run seiar: %w", err)
		}
		report.SEIAR = res
	}

	if cfg.RunsModel(models.ModelOLG) {
		results, failures, err := fc.RunOLG(cfg.OLG.Groups, cfg.OLG.Params(), cfg.OLG.Overrides)
		if err != nil {
			return nil, fmt.Errorf("failed to run olg: %w", err)
		}
		if len(results) == 0 && len(failures) > 0 {
			return nil, fmt.Errorf("failed to run olg: all %d groups failed, first: %w", len(failures), failures[0])
		}
		report.OLG = results
		report.AddFailures(failures)
	}

	logger.Info("Forecast cycle completed in %v", time.Since(startTime))
	return report, nil
}

// ingest fetches the configured datastore resource and upserts its
// observations.
func ingest(ctx context.Context, source *govdata.Client, store *storage.Storage, cfg config.SourceConfig) error {
	logger.Debug("Fetching records from datastore (resource: %s, limit: %d)", cfg.ResourceID, cfg.Limit)
	records, err := source.FetchRecords(ctx, cfg.ResourceID, cfg.Limit)
	if err != nil {
		return fmt.Errorf("failed to fetch observations: %w", err)
	}

	obs, err := govdata.ToObservations(records, govdata.Fields{
		Group:        cfg.GroupField,
		Date:         cfg.DateField,
		DateLayout:   cfg.DateLayout,
		Count:        cfg.CountField,
		DefaultGroup: cfg.Group,
	})
	if err != nil {
		return fmt.Errorf("failed to convert records: %w", err)
	}

	n, err := store.UpsertObservations(obs)
	if err != nil {
		return fmt.Errorf("failed to store observations: %w", err)
	}
	logger.Info("Fetched %d records, stored %d observations", len(records), n)
	return nil
}
