// Package universe owns the stock master list: the population the daily
// pipeline enumerates, and the refresh service that keeps it aligned with
// the vendor's listing and delisting feeds.
package universe

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/krxdata/collector/internal/domain"
)

const dateLayout = "2006-01-02"

// Listing is one (symbol, name) pair from the stock master, the unit the
// fetch orchestrator schedules work by.
type Listing struct {
	Symbol string
	Name   string
}

// StockRepository handles stock master database operations
type StockRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStockRepository creates a new stock master repository
func NewStockRepository(db *sql.DB, log zerolog.Logger) *StockRepository {
	return &StockRepository{
		db:  db,
		log: log.With().Str("repo", "stocks").Logger(),
	}
}

// ListActive returns every active listing, ordered by symbol. When
// equitiesOnly is set, ETFs are excluded (the vendor does not classify ETF
// order flow by investor type, so the flow phase skips them).
func (r *StockRepository) ListActive(equitiesOnly bool) ([]Listing, error) {
	query := `
		SELECT stock_code, stock_name
		FROM stocks
		WHERE is_active = 1
	`
	if equitiesOnly {
		query += ` AND market IN ('KOSPI', 'KOSDAQ')`
	}
	query += ` ORDER BY stock_code`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active stocks: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var l Listing
		if err := rows.Scan(&l.Symbol, &l.Name); err != nil {
			return nil, fmt.Errorf("failed to scan stock row: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// Upsert inserts or refreshes one master row. Delisting state is never
// resurrected here; Deactivate owns that column.
func (r *StockRepository) Upsert(s domain.SymbolMaster) error {
	var listing interface{}
	if !s.ListingDate.IsZero() {
		listing = s.ListingDate.Format(dateLayout)
	}

	_, err := r.db.Exec(`
		INSERT INTO stocks (stock_code, stock_name, standard_code, market, listing_date, is_active)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT (stock_code) DO UPDATE SET
			stock_name    = excluded.stock_name,
			standard_code = excluded.standard_code,
			market        = excluded.market,
			listing_date  = COALESCE(excluded.listing_date, stocks.listing_date),
			updated_at    = datetime('now')
	`,
		strings.TrimSpace(s.Symbol),
		s.Name,
		nullString(s.StandardCode),
		string(s.Market),
		listing,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stock %s: %w", s.Symbol, err)
	}
	return nil
}

// Deactivate marks a symbol delisted. Already-inactive rows are untouched.
func (r *StockRepository) Deactivate(symbol string, delistingDate time.Time) error {
	var delisted interface{}
	if !delistingDate.IsZero() {
		delisted = delistingDate.Format(dateLayout)
	}

	_, err := r.db.Exec(`
		UPDATE stocks
		SET is_active = 0,
		    delisting_date = COALESCE(?, delisting_date),
		    updated_at = datetime('now')
		WHERE stock_code = ? AND is_active = 1
	`, delisted, symbol)
	if err != nil {
		return fmt.Errorf("failed to deactivate stock %s: %w", symbol, err)
	}
	return nil
}

// CountActive returns the number of active rows, optionally per market.
func (r *StockRepository) CountActive(market domain.Market) (int, error) {
	query := `SELECT COUNT(*) FROM stocks WHERE is_active = 1`
	args := []interface{}{}
	if market != "" {
		query += ` AND market = ?`
		args = append(args, string(market))
	}

	var count int
	if err := r.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active stocks: %w", err)
	}
	return count, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
