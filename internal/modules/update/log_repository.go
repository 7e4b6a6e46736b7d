package update

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Collection log statuses
const (
	StatusSuccess = "SUCCESS"
	StatusPartial = "PARTIAL"
	StatusFailed  = "FAILED"
)

// CollectionLog is one data_collection_logs row: the audit trail of what a
// run collected for one data kind.
type CollectionLog struct {
	RunID            string
	DataType         string // OHLCV, MARKET_CAP, INVESTOR
	CollectionDate   time.Time
	Status           string
	RecordsCollected int
	ErrorMessage     string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// LogRepository handles the data_collection_logs table.
type LogRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewLogRepository creates a new collection log repository
func NewLogRepository(db *sql.DB, log zerolog.Logger) *LogRepository {
	return &LogRepository{
		db:  db,
		log: log.With().Str("repo", "collection_log").Logger(),
	}
}

// Insert appends one collection log row.
func (r *LogRepository) Insert(entry CollectionLog) error {
	_, err := r.db.Exec(`
		INSERT INTO data_collection_logs
			(run_id, data_type, collection_date, status, records_collected,
			 error_message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.RunID,
		entry.DataType,
		entry.CollectionDate.Format(dateLayout),
		entry.Status,
		entry.RecordsCollected,
		nullIfEmpty(entry.ErrorMessage),
		entry.StartedAt.Format(time.RFC3339),
		entry.FinishedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert collection log: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
