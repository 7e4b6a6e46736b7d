package quality

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

const sampleCap = 20

// Summary is the outcome of one check run. Skipped marks a date with no
// OHLCV rows at all (market holiday), where running the checks would only
// produce noise.
type Summary struct {
	Date    time.Time `json:"date"`
	Skipped bool      `json:"skipped"`
	Results []Result  `json:"results"`

	// Cross-sectional daily return distribution, a drift tripwire for
	// silent vendor-side scaling errors.
	ReturnCount  int     `json:"return_count"`
	ReturnMean   float64 `json:"return_mean"`
	ReturnStdDev float64 `json:"return_std_dev"`
}

// TotalIssues sums issue counts across every executed check.
func (s *Summary) TotalIssues() int {
	total := 0
	for _, r := range s.Results {
		total += r.IssueCount
	}
	return total
}

// Service runs the quality checks for one trading day and persists the
// results. Checks read the store only; they never repair rows.
type Service struct {
	db   *sql.DB
	repo *CheckRepository
	log  zerolog.Logger
}

// NewService creates a new quality check service
func NewService(db *sql.DB, repo *CheckRepository, log zerolog.Logger) *Service {
	return &Service{
		db:   db,
		repo: repo,
		log:  log.With().Str("service", "quality").Logger(),
	}
}

// checkDef binds one persisted result to its count and sample queries. Both
// queries take the date as their single bound parameter (the sample query
// additionally takes the cap).
type checkDef struct {
	table       string
	checkType   string
	countQuery  string
	sampleQuery string
}

// Halted listings (volume=0) legitimately carry no traded close, so the
// null check exempts them from the close-price rule.
var ohlcvNullCond = `
	(volume IS NULL
	 OR (close_price IS NULL AND volume > 0))`

// High below low is outright corruption; high below open or close on a
// traded day means the bar was assembled from inconsistent fields.
var ohlcvRangeCond = `
	((close_price IS NOT NULL AND close_price <= 0)
	 OR (volume IS NOT NULL AND volume < 0)
	 OR (volume > 0 AND (high_price < low_price
	     OR high_price < open_price
	     OR high_price < close_price)))`

var checkDefs = []checkDef{
	{
		table:     "ohlcv_daily",
		checkType: CheckNull,
		countQuery: `SELECT COUNT(*) FROM ohlcv_daily
			WHERE time = ? AND ` + ohlcvNullCond,
		sampleQuery: `SELECT stock_code FROM ohlcv_daily
			WHERE time = ? AND ` + ohlcvNullCond + `
			ORDER BY stock_code LIMIT ?`,
	},
	{
		table:     "investor_trading",
		checkType: CheckNull,
		countQuery: `SELECT COUNT(*) FROM investor_trading
			WHERE time = ? AND (net_buy_value IS NULL OR net_buy_volume IS NULL)`,
		sampleQuery: `SELECT DISTINCT stock_code FROM investor_trading
			WHERE time = ? AND (net_buy_value IS NULL OR net_buy_volume IS NULL)
			ORDER BY stock_code LIMIT ?`,
	},
	{
		table:     "ohlcv_daily",
		checkType: CheckRange,
		countQuery: `SELECT COUNT(*) FROM ohlcv_daily
			WHERE time = ? AND ` + ohlcvRangeCond,
		sampleQuery: `SELECT stock_code FROM ohlcv_daily
			WHERE time = ? AND ` + ohlcvRangeCond + `
			ORDER BY stock_code LIMIT ?`,
	},
	{
		// Every OHLCV row should have produced a market-cap row unless
		// the vendor omitted listed shares; the diff surfaces how many.
		table:     "market_cap_daily",
		checkType: CheckConsistency,
		countQuery: `SELECT COUNT(*) FROM ohlcv_daily o
			WHERE o.time = ? AND NOT EXISTS (
				SELECT 1 FROM market_cap_daily m
				WHERE m.stock_code = o.stock_code AND m.time = o.time)`,
		sampleQuery: `SELECT o.stock_code FROM ohlcv_daily o
			WHERE o.time = ? AND NOT EXISTS (
				SELECT 1 FROM market_cap_daily m
				WHERE m.stock_code = o.stock_code AND m.time = o.time)
			ORDER BY o.stock_code LIMIT ?`,
	},
	{
		// Active equities should carry all four investor categories.
		// ETFs have no per-category flow data and are excluded.
		table:     "investor_trading",
		checkType: CheckConsistency,
		countQuery: `SELECT COUNT(*) FROM (
			SELECT o.stock_code FROM ohlcv_daily o
			JOIN stocks s ON s.stock_code = o.stock_code
			WHERE o.time = ? AND s.is_active = 1 AND s.market IN ('KOSPI', 'KOSDAQ')
			  AND (SELECT COUNT(DISTINCT i.investor_type) FROM investor_trading i
			       WHERE i.stock_code = o.stock_code AND i.time = o.time) < 4)`,
		sampleQuery: `SELECT o.stock_code FROM ohlcv_daily o
			JOIN stocks s ON s.stock_code = o.stock_code
			WHERE o.time = ? AND s.is_active = 1 AND s.market IN ('KOSPI', 'KOSDAQ')
			  AND (SELECT COUNT(DISTINCT i.investor_type) FROM investor_trading i
			       WHERE i.stock_code = o.stock_code AND i.time = o.time) < 4
			ORDER BY o.stock_code LIMIT ?`,
	},
}

// RunChecks executes every check against the given trading day. A date with
// no OHLCV rows short-circuits to a skipped summary.
func (s *Service) RunChecks(date time.Time) (*Summary, error) {
	summary := &Summary{Date: date}

	var one int
	err := s.db.QueryRow(`SELECT 1 FROM ohlcv_daily WHERE time = ? LIMIT 1`, date.Format(dateLayout)).Scan(&one)
	if err == sql.ErrNoRows {
		s.log.Info().Str("date", date.Format(dateLayout)).Msg("No OHLCV rows for date, skipping checks")
		summary.Skipped = true
		return summary, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to probe ohlcv for %s: %w", date.Format(dateLayout), err)
	}

	for _, def := range checkDefs {
		count, sample, err := s.countWithSample(def.countQuery, def.sampleQuery, date)
		if err != nil {
			return nil, fmt.Errorf("%s on %s failed: %w", def.checkType, def.table, err)
		}
		res := Result{
			Table:      def.table,
			Date:       date,
			Type:       def.checkType,
			IssueCount: count,
			Details:    sample,
		}
		if err := s.repo.Insert(res); err != nil {
			return nil, err
		}
		summary.Results = append(summary.Results, res)
		s.log.Info().
			Str("check", res.Type).
			Str("table", res.Table).
			Int("issues", res.IssueCount).
			Msg("Quality check complete")
	}

	if err := s.returnDispersion(date, summary); err != nil {
		return nil, err
	}

	return summary, nil
}

// returnDispersion computes the cross-sectional mean and standard deviation
// of day-over-day returns. A vendor-side decimal shift shows up here long
// before anyone eyeballs a chart.
func (s *Service) returnDispersion(date time.Time, summary *Summary) error {
	rows, err := s.db.Query(`
		SELECT today.close_price, prev.close_price
		FROM ohlcv_daily today
		JOIN (
			SELECT stock_code, MAX(time) AS max_time
			FROM ohlcv_daily
			WHERE time < ?
			GROUP BY stock_code
		) latest ON latest.stock_code = today.stock_code
		JOIN ohlcv_daily prev
		  ON prev.stock_code = latest.stock_code AND prev.time = latest.max_time
		WHERE today.time = ?
		  AND today.close_price > 0 AND prev.close_price > 0
	`, date.Format(dateLayout), date.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("failed to query returns: %w", err)
	}
	defer rows.Close()

	var returns []float64
	for rows.Next() {
		var today, prev float64
		if err := rows.Scan(&today, &prev); err != nil {
			return fmt.Errorf("failed to scan return pair: %w", err)
		}
		returns = append(returns, today/prev-1)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	summary.ReturnCount = len(returns)
	if len(returns) > 0 {
		summary.ReturnMean = stat.Mean(returns, nil)
	}
	if len(returns) > 1 {
		summary.ReturnStdDev = stat.StdDev(returns, nil)
	}

	s.log.Info().
		Int("symbols", summary.ReturnCount).
		Float64("mean", summary.ReturnMean).
		Float64("std_dev", summary.ReturnStdDev).
		Msg("Return dispersion computed")
	return nil
}

// countWithSample runs a COUNT query and, when non-zero, a companion query
// collecting up to sampleCap offending symbols.
func (s *Service) countWithSample(countQuery, sampleQuery string, date time.Time) (int, []string, error) {
	var count int
	if err := s.db.QueryRow(countQuery, date.Format(dateLayout)).Scan(&count); err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	rows, err := s.db.Query(sampleQuery, date.Format(dateLayout), sampleCap)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var sample []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return 0, nil, err
		}
		sample = append(sample, code)
	}
	return count, sample, rows.Err()
}
