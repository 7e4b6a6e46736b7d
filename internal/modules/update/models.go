// Package update implements the daily incremental collection pipeline:
// resolve the fetch window, fan out rate-gated vendor calls across a worker
// pool, reconcile rows into the store with idempotent upserts, scan the
// fresh rows for anomalies, and render the run report.
package update

import (
	"time"

	"github.com/krxdata/collector/internal/domain"
)

// Phase labels the run state machine for logging and the ops status surface.
type Phase string

const (
	PhaseInit          Phase = "INIT"
	PhaseResolveWindow Phase = "RESOLVE_WINDOW"
	PhaseFetchPrices   Phase = "FETCH_PRICES"
	PhaseFetchFlows    Phase = "FETCH_FLOWS"
	PhaseAnalyze       Phase = "ANALYZE"
	PhaseReport        Phase = "REPORT"
	PhaseDone          Phase = "DONE"
	PhaseError         Phase = "ERROR"
)

// Window is the inclusive [Start, End] date range a run must fetch.
type Window struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether there is nothing to fetch (store already current).
func (w Window) Empty() bool {
	return w.Start.After(w.End)
}

// outcome carries one symbol's fetch result from a worker back to the
// aggregating goroutine. Exactly one of bars/flows is populated depending on
// the phase. Failed means the vendor returned zero rows after all retries.
type outcome struct {
	symbol string
	name   string
	bars   []domain.PriceBar
	flows  []domain.InvestorFlow
	failed bool
}

// TableStats accumulates per-target counters for one data kind.
// Changed counts rows actually inserted or updated; Skipped counts rows the
// upsert touched but left alone because every comparable field matched.
type TableStats struct {
	Success     int      `json:"success"`
	Fail        int      `json:"fail"`
	Rows        int      `json:"rows"`
	Changed     int      `json:"changed"`
	Skipped     int      `json:"skipped"`
	FailSymbols []string `json:"fail_symbols,omitempty"`
}

func (s *TableStats) addBatch(changed, total int) {
	s.Changed += changed
	s.Skipped += total - changed
	s.Rows += total
}

// Anomaly is one flagged observation in the freshly fetched rows. Magnitude
// orders anomalies within a category at report time; the detector itself
// returns the list unsorted.
type Anomaly struct {
	Category  AnomalyCategory `json:"category"`
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Date      time.Time       `json:"date"`
	Detail    string          `json:"detail"`
	Magnitude float64         `json:"magnitude"`
}

// AnomalyCategory is the report grouping key. Values are the operator-facing
// Korean labels, matching the report layout.
type AnomalyCategory string

const (
	AnomalyTradingHalt   AnomalyCategory = "거래정지"
	AnomalyOHLCViolation AnomalyCategory = "OHLCV오류"
	AnomalyPriceSurge    AnomalyCategory = "가격급등"
	AnomalyPricePlunge   AnomalyCategory = "가격급락"
	AnomalyLargeNetBuy   AnomalyCategory = "대규모순매수"
	AnomalyLargeNetSell  AnomalyCategory = "대규모순매도"
)

// anomalyCategoryOrder fixes the report's section order.
var anomalyCategoryOrder = []AnomalyCategory{
	AnomalyTradingHalt,
	AnomalyOHLCViolation,
	AnomalyPriceSurge,
	AnomalyPricePlunge,
	AnomalyLargeNetBuy,
	AnomalyLargeNetSell,
}

// RunResult accumulates everything one run produces: per-table counters, the
// raw fetched rows (kept for anomaly analysis only), the anomaly list, and
// timing. Created at run start, finalized before report generation,
// discarded afterwards.
type RunResult struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Window     Window    `json:"window"`
	NoOp       bool      `json:"no_op"`

	TotalSymbols    int `json:"total_symbols"`
	InvestorSymbols int `json:"investor_symbols"`

	OHLCV     TableStats `json:"ohlcv"`
	MarketCap TableStats `json:"market_cap"`
	Investor  TableStats `json:"investor"`

	Anomalies []Anomaly `json:"anomalies"`

	priceRows []domain.PriceBar
	flowRows  []domain.InvestorFlow
	names     map[string]string
}

// symbolName resolves a display name, falling back to the symbol itself.
func (r *RunResult) symbolName(symbol string) string {
	if name, ok := r.names[symbol]; ok && name != "" {
		return name
	}
	return symbol
}
