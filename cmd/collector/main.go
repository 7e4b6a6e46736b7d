// Command collector runs one daily update cycle and prints the run report.
// An optional YYYYMMDD argument collects that single day instead of the
// resolved window. Exit code 1 means the run failed and an _ERROR report
// was left in the reports directory.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/krxdata/collector/internal/clients/infomax"
	"github.com/krxdata/collector/internal/config"
	"github.com/krxdata/collector/internal/database"
	"github.com/krxdata/collector/internal/modules/universe"
	"github.com/krxdata/collector/internal/modules/update"
	"github.com/krxdata/collector/internal/reports"
	"github.com/krxdata/collector/pkg/logger"
	"github.com/krxdata/collector/pkg/ratelimit"
)

func main() {
	refreshOnly := flag.Bool("refresh-master", false, "refresh the stock master and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  true,
		LogFile: cfg.LogFile,
	})

	var target *time.Time
	if arg := flag.Arg(0); arg != "" {
		day, err := time.Parse("20060102", arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid date %q, expected YYYYMMDD\n", arg)
			os.Exit(1)
		}
		target = &day
	}

	if err := cfg.ValidateCredentials(); err != nil {
		log.Fatal().Err(err).Msg("Missing vendor credentials")
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
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

	stocks := universe.NewStockRepository(db.Conn(), log)
	universeSvc := universe.NewService(client, stocks, log)

	if *refreshOnly {
		result, err := universeSvc.Refresh()
		if err != nil {
			log.Fatal().Err(err).Msg("Stock master refresh failed")
		}
		fmt.Printf("종목 마스터 갱신 완료: 조회 %d건, 반영 %d건, 상장폐지 %d건\n",
			result.Fetched, result.Upserted, result.Deactivated)
		return
	}

	if _, err := universeSvc.Refresh(); err != nil {
		log.Warn().Err(err).Msg("Stock master refresh failed, continuing with stale universe")
	}

	svc := update.NewService(
		update.Config{
			Workers:   cfg.MaxWorkers,
			BatchSize: cfg.BatchSize,
			Thresholds: update.Thresholds{
				PriceMove:    cfg.PriceMoveThreshold,
				LargeNetFlow: cfg.LargeNetFlowKRW,
			},
			Location: cfg.Location(),
		},
		client,
		stocks,
		update.NewPriceRepository(db.Conn(), log),
		update.NewInvestorRepository(db.Conn(), log),
		update.NewLogRepository(db.Conn(), log),
		log,
	)

	result, err := svc.Run(target)
	if err != nil {
		fallback := time.Now().In(cfg.Location()).AddDate(0, 0, -1)
		if target != nil {
			fallback = *target
		}
		content := fmt.Sprintf("일별 데이터 업데이트 실패\n\n실행 일시: %s\n오류: %v\n",
			time.Now().In(cfg.Location()).Format("2006-01-02 15:04:05 MST"), err)
		if _, werr := writer.WriteError(fallback, content); werr != nil {
			log.Error().Err(werr).Msg("Failed to write error report")
		}
		log.Error().Err(err).Msg("Daily update failed")
		os.Exit(1)
	}

	report := update.GenerateReport(result)
	fmt.Print(report)

	if path, err := writer.Write(result.Window.End, report); err != nil {
		log.Error().Err(err).Msg("Report write failed")
		os.Exit(1)
	} else {
		log.Info().Str("report", path).Msg("Run complete")
	}
}
