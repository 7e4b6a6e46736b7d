package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/krxdata/collector/internal/modules/quality"
)

// QualityCheckJob runs the weekly data quality sweep over the most recent
// trading day. Scheduled for the quiet Sunday window, when no collection
// is writing.
type QualityCheckJob struct {
	log     zerolog.Logger
	quality *quality.Service
	loc     *time.Location
}

// NewQualityCheckJob creates a new quality check job
func NewQualityCheckJob(svc *quality.Service, loc *time.Location, log zerolog.Logger) *QualityCheckJob {
	return &QualityCheckJob{
		log:     log.With().Str("job", "quality_check").Logger(),
		quality: svc,
		loc:     loc,
	}
}

// Name returns the job name
func (j *QualityCheckJob) Name() string {
	return "quality_check"
}

// Run walks back from yesterday to the latest date with data (weekends and
// holidays have none) and checks it.
func (j *QualityCheckJob) Run() error {
	now := time.Now().In(j.loc)
	for back := 1; back <= 7; back++ {
		date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -back)
		summary, err := j.quality.RunChecks(date)
		if err != nil {
			return fmt.Errorf("quality checks failed for %s: %w", date.Format("2006-01-02"), err)
		}
		if summary.Skipped {
			continue
		}
		j.log.Info().
			Str("date", date.Format("2006-01-02")).
			Int("issues", summary.TotalIssues()).
			Int("return_symbols", summary.ReturnCount).
			Float64("return_std_dev", summary.ReturnStdDev).
			Msg("Quality checks complete")
		return nil
	}
	j.log.Warn().Msg("No trading day with data in the last week, nothing to check")
	return nil
}
