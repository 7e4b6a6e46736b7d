package update

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/krxdata/collector/internal/domain"
)

const dateLayout = "2006-01-02"

// PriceRepository handles the ohlcv_daily and market_cap_daily targets.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "price").Logger(),
	}
}

// MaxTradeDate returns the store's high-water-mark, or ok=false when the
// table is empty (bootstrap is owned by the bulk loader, not this pipeline).
func (r *PriceRepository) MaxTradeDate() (time.Time, bool, error) {
	var raw sql.NullString
	if err := r.db.QueryRow(`SELECT MAX(time) FROM ohlcv_daily`).Scan(&raw); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read max trade date: %w", err)
	}
	if !raw.Valid {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(dateLayout, raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed max trade date %q: %w", raw.String, err)
	}
	return t, true, nil
}

// PrevCloses returns each symbol's close on its latest trading day strictly
// before the given date. Looked up once per run as the anomaly baseline.
func (r *PriceRepository) PrevCloses(before time.Time) (map[string]float64, error) {
	rows, err := r.db.Query(`
		SELECT o.stock_code, o.close_price
		FROM ohlcv_daily o
		JOIN (
			SELECT stock_code, MAX(time) AS max_time
			FROM ohlcv_daily
			WHERE time < ?
			GROUP BY stock_code
		) latest
		  ON o.stock_code = latest.stock_code AND o.time = latest.max_time
		WHERE o.close_price IS NOT NULL
	`, before.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query previous closes: %w", err)
	}
	defer rows.Close()

	closes := make(map[string]float64)
	for rows.Next() {
		var code string
		var close float64
		if err := rows.Scan(&code, &close); err != nil {
			return nil, fmt.Errorf("failed to scan previous close: %w", err)
		}
		closes[code] = close
	}
	return closes, rows.Err()
}

// UpsertBars writes one OHLCV batch with insert-or-update-on-conflict
// semantics. The WHERE clause makes same-valued conflicts a no-op, so the
// returned changed count is only rows actually inserted or rewritten;
// total - changed were skipped as identical.
func (r *PriceRepository) UpsertBars(bars []domain.PriceBar) (changed, total int, err error) {
	if len(bars) == 0 {
		return 0, 0, nil
	}

	placeholders := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*8)
	for _, b := range bars {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			b.TradeDate.Format(dateLayout), b.Symbol,
			b.Open, b.High, b.Low, b.Close,
			b.Volume, b.TradingValue,
		)
	}

	// SQLite's IS NOT is the null-safe inequality, the equivalent of
	// Postgres IS DISTINCT FROM.
	query := `
		INSERT INTO ohlcv_daily
			(time, stock_code, open_price, high_price, low_price, close_price, volume, trading_value)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (time, stock_code) DO UPDATE SET
			open_price    = excluded.open_price,
			high_price    = excluded.high_price,
			low_price     = excluded.low_price,
			close_price   = excluded.close_price,
			volume        = excluded.volume,
			trading_value = excluded.trading_value
		WHERE ohlcv_daily.open_price    IS NOT excluded.open_price
		   OR ohlcv_daily.high_price    IS NOT excluded.high_price
		   OR ohlcv_daily.low_price     IS NOT excluded.low_price
		   OR ohlcv_daily.close_price   IS NOT excluded.close_price
		   OR ohlcv_daily.volume        IS NOT excluded.volume
		   OR ohlcv_daily.trading_value IS NOT excluded.trading_value
	`

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert ohlcv batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read ohlcv rowcount: %w", err)
	}
	return int(affected), len(bars), nil
}

// UpsertMarketCaps derives market_cap = close x listed_shares per bar and
// writes the batch. Bars missing either input are excluded silently.
func (r *PriceRepository) UpsertMarketCaps(bars []domain.PriceBar) (changed, total int, err error) {
	placeholders := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*3)
	for _, b := range bars {
		cap, ok := b.MarketCap()
		if !ok {
			continue
		}
		placeholders = append(placeholders, "(?, ?, ?)")
		args = append(args, b.TradeDate.Format(dateLayout), b.Symbol, cap)
	}
	if len(placeholders) == 0 {
		return 0, 0, nil
	}

	query := `
		INSERT INTO market_cap_daily (time, stock_code, market_cap)
		VALUES ` + strings.Join(placeholders, ", ") + `
		ON CONFLICT (time, stock_code) DO UPDATE SET
			market_cap = excluded.market_cap
		WHERE market_cap_daily.market_cap IS NOT excluded.market_cap
	`

	res, err := r.db.Exec(query, args...)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to upsert market cap batch: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read market cap rowcount: %w", err)
	}
	return int(affected), len(placeholders), nil
}

// HasDataFor reports whether any OHLCV rows exist for the given date
// (holiday early-exit for the quality checks).
func (r *PriceRepository) HasDataFor(date time.Time) (bool, error) {
	var one int
	err := r.db.QueryRow(
		`SELECT 1 FROM ohlcv_daily WHERE time = ? LIMIT 1`,
		date.Format(dateLayout),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe ohlcv for %s: %w", date.Format(dateLayout), err)
	}
	return true, nil
}
