package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/krxdata/collector/internal/modules/universe"
	"github.com/krxdata/collector/internal/modules/update"
	"github.com/krxdata/collector/internal/reports"
)

// DailyUpdateJob runs the end-of-day collection: refresh the stock master,
// execute the incremental update, and persist the run report. Scheduled
// after the exchange settles its daily data, Monday through Friday.
type DailyUpdateJob struct {
	log      zerolog.Logger
	universe *universe.Service
	update   *update.Service
	writer   *reports.Writer
	loc      *time.Location
}

// DailyUpdateConfig holds configuration for the daily update job
type DailyUpdateConfig struct {
	Log      zerolog.Logger
	Universe *universe.Service
	Update   *update.Service
	Writer   *reports.Writer
	Location *time.Location
}

// NewDailyUpdateJob creates a new daily update job
func NewDailyUpdateJob(cfg DailyUpdateConfig) *DailyUpdateJob {
	return &DailyUpdateJob{
		log:      cfg.Log.With().Str("job", "daily_update").Logger(),
		universe: cfg.Universe,
		update:   cfg.Update,
		writer:   cfg.Writer,
		loc:      cfg.Location,
	}
}

// Name returns the job name
func (j *DailyUpdateJob) Name() string {
	return "daily_update"
}

// Run executes one collection cycle. A master refresh failure degrades to
// the stale universe; a pipeline failure produces an _ERROR report so the
// operator sees it in the reports directory, not just the log.
func (j *DailyUpdateJob) Run() error {
	if refreshed, err := j.universe.Refresh(); err != nil {
		j.log.Warn().Err(err).Msg("Stock master refresh failed, continuing with stale universe")
	} else {
		j.log.Info().
			Int("fetched", refreshed.Fetched).
			Int("deactivated", refreshed.Deactivated).
			Msg("Stock master refreshed")
	}

	result, err := j.update.Run(nil)
	if err != nil {
		fallbackDate := time.Now().In(j.loc).AddDate(0, 0, -1)
		content := fmt.Sprintf("일별 데이터 업데이트 실패\n\n실행 일시: %s\n오류: %v\n",
			time.Now().In(j.loc).Format("2006-01-02 15:04:05 MST"), err)
		if _, werr := j.writer.WriteError(fallbackDate, content); werr != nil {
			j.log.Error().Err(werr).Msg("Failed to write error report")
		}
		return fmt.Errorf("daily update failed: %w", err)
	}

	report := update.GenerateReport(result)
	path, err := j.writer.Write(result.Window.End, report)
	if err != nil {
		return fmt.Errorf("daily update succeeded but report write failed: %w", err)
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Str("report", path).
		Bool("no_op", result.NoOp).
		Int("anomalies", len(result.Anomalies)).
		Msg("Daily update complete")
	return nil
}
