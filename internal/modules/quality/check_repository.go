// Package quality runs post-collection data quality checks against the
// store and persists their results for the weekly review.
package quality

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// Check types
const (
	CheckNull        = "NULL_CHECK"
	CheckRange       = "RANGE_CHECK"
	CheckConsistency = "CONSISTENCY_CHECK"
)

// Result is one persisted check outcome. Details holds a JSON sample of the
// offending rows, capped at the writer's discretion.
type Result struct {
	Table      string      `json:"table"`
	Date       time.Time   `json:"date"`
	Type       string      `json:"type"`
	IssueCount int         `json:"issue_count"`
	Details    interface{} `json:"details,omitempty"`
}

// CheckRepository handles the data_quality_checks table.
type CheckRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCheckRepository creates a new quality check repository
func NewCheckRepository(db *sql.DB, log zerolog.Logger) *CheckRepository {
	return &CheckRepository{
		db:  db,
		log: log.With().Str("repo", "quality_checks").Logger(),
	}
}

// Insert persists one check result. Details are serialised to JSON; a nil
// Details stores NULL.
func (r *CheckRepository) Insert(res Result) error {
	var details interface{}
	if res.Details != nil {
		raw, err := json.Marshal(res.Details)
		if err != nil {
			return fmt.Errorf("failed to encode check details: %w", err)
		}
		details = string(raw)
	}

	_, err := r.db.Exec(`
		INSERT INTO data_quality_checks (table_name, check_date, check_type, issue_count, details)
		VALUES (?, ?, ?, ?, ?)
	`, res.Table, res.Date.Format(dateLayout), res.Type, res.IssueCount, details)
	if err != nil {
		return fmt.Errorf("failed to insert quality check: %w", err)
	}
	return nil
}

// CountIssuesSince sums issue counts recorded on or after the given date,
// the ops status surface's at-a-glance health number.
func (r *CheckRepository) CountIssuesSince(since time.Time) (int, error) {
	var total sql.NullInt64
	err := r.db.QueryRow(`
		SELECT SUM(issue_count) FROM data_quality_checks WHERE check_date >= ?
	`, since.Format(dateLayout)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count quality issues: %w", err)
	}
	return int(total.Int64), nil
}
