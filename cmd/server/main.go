// Command server runs the collector daemon: the cron-driven collection
// jobs plus the read-only ops HTTP surface.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/krxdata/collector/internal/clients/infomax"
	"github.com/krxdata/collector/internal/config"
	"github.com/krxdata/collector/internal/database"
	"github.com/krxdata/collector/internal/modules/quality"
	"github.com/krxdata/collector/internal/modules/universe"
	"github.com/krxdata/collector/internal/modules/update"
	"github.com/krxdata/collector/internal/reports"
	"github.com/krxdata/collector/internal/scheduler"
	"github.com/krxdata/collector/internal/server"
	"github.com/krxdata/collector/pkg/logger"
	"github.com/krxdata/collector/pkg/ratelimit"
)

// Schedules run in exchange time (KST). The daily update fires after the
// exchange finalises end-of-day data; the quality sweep takes the quiet
// Sunday slot.
const (
	dailyUpdateSchedule  = "0 30 16 * * MON-FRI"
	qualityCheckSchedule = "0 30 3 * * SUN"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.DevMode,
		LogFile: cfg.LogFile,
	})

	log.Info().Msg("Starting KRX data collector")

	if err := cfg.ValidateCredentials(); err != nil {
		log.Fatal().Err(err).Msg("Missing vendor credentials")
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	writer, err := reports.NewWriter(cfg.ReportsDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare reports directory")
	}

	gate := ratelimit.NewGate(cfg.RatePerMinute)
	client, err := infomax.NewClient(infomax.Config{
		BaseURL:    cfg.InfomaxBaseURL,
		APIKey:     cfg.InfomaxAPIKey,
		MaxRetries: cfg.MaxRetries,
		RetryWait:  cfg.RetryWait,
		Timeout:    cfg.HTTPTimeout,
	}, gate, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build vendor client")
	}

	loc := cfg.Location()

	stocks := universe.NewStockRepository(db.Conn(), log)
	universeSvc := universe.NewService(client, stocks, log)
	updateSvc := update.NewService(
		update.Config{
			Workers:   cfg.MaxWorkers,
			BatchSize: cfg.BatchSize,
			Thresholds: update.Thresholds{
				PriceMove:    cfg.PriceMoveThreshold,
				LargeNetFlow: cfg.LargeNetFlowKRW,
			},
			Location: loc,
		},
		client,
		stocks,
		update.NewPriceRepository(db.Conn(), log),
		update.NewInvestorRepository(db.Conn(), log),
		update.NewLogRepository(db.Conn(), log),
		log,
	)
	qualityRepo := quality.NewCheckRepository(db.Conn(), log)
	qualitySvc := quality.NewService(db.Conn(), qualityRepo, log)

	// Scheduler and jobs
	sched := scheduler.New(log, loc)

	dailyJob := scheduler.NewDailyUpdateJob(scheduler.DailyUpdateConfig{
		Log:      log,
		Universe: universeSvc,
		Update:   updateSvc,
		Writer:   writer,
		Location: loc,
	})
	if err := sched.AddJob(dailyUpdateSchedule, dailyJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register daily update job")
	}
	if err := sched.AddJob(qualityCheckSchedule, scheduler.NewQualityCheckJob(qualitySvc, loc, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register quality check job")
	}

	sched.Start()
	defer sched.Stop()

	// HTTP ops surface
	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		DB:      db,
		Reports: writer,
		Quality: qualityRepo,
		DevMode: cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Collector daemon started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Collector stopped")
}
