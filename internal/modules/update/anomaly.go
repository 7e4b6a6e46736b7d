package update

import (
	"fmt"
	"math"
	"time"
)

// Thresholds are the tunable anomaly limits. The defaults are empirical:
// 29.5% sits just inside the exchange's ±30% daily price band, and 50bn KRW
// marks an institutional-scale aggregate flow.
type Thresholds struct {
	PriceMove    float64 // fraction of previous close
	LargeNetFlow float64 // absolute aggregate net-buy value, KRW
}

// Detector scans one run's freshly fetched rows - never the full store -
// against a prev-close baseline looked up once per run.
type Detector struct {
	thresholds Thresholds
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(t Thresholds) *Detector {
	return &Detector{thresholds: t}
}

// Scan returns every flagged observation, unsorted; grouping and ordering
// are the report's concern.
func (d *Detector) Scan(result *RunResult, prevClose map[string]float64) []Anomaly {
	var anomalies []Anomaly
	anomalies = append(anomalies, d.scanPrices(result, prevClose)...)
	anomalies = append(anomalies, d.scanFlows(result)...)
	return anomalies
}

func (d *Detector) scanPrices(result *RunResult, prevClose map[string]float64) []Anomaly {
	var anomalies []Anomaly

	for _, b := range result.priceRows {
		name := result.symbolName(b.Symbol)

		// Zero volume with a positive close is a halted or supervised
		// listing, not missing data.
		if b.Volume == 0 && b.Close > 0 {
			anomalies = append(anomalies, Anomaly{
				Category:  AnomalyTradingHalt,
				Symbol:    b.Symbol,
				Name:      name,
				Date:      b.TradeDate,
				Detail:    fmt.Sprintf("거래량=0, 종가=%s원", comma(b.Close)),
				Magnitude: 0,
			})
		}

		// high < low only happens on vendor-side corruption; logged, not
		// repaired.
		if b.High > 0 && b.Low > 0 && b.High < b.Low {
			anomalies = append(anomalies, Anomaly{
				Category:  AnomalyOHLCViolation,
				Symbol:    b.Symbol,
				Name:      name,
				Date:      b.TradeDate,
				Detail:    fmt.Sprintf("고가(%s) < 저가(%s)", comma(b.High), comma(b.Low)),
				Magnitude: b.Low - b.High,
			})
		}

		prev, ok := prevClose[b.Symbol]
		if !ok || prev <= 0 || b.Close <= 0 {
			continue
		}
		rate := math.Abs(b.Close-prev) / prev
		if rate >= d.thresholds.PriceMove {
			category := AnomalyPriceSurge
			if b.Close < prev {
				category = AnomalyPricePlunge
			}
			signed := (b.Close - prev) / prev * 100
			anomalies = append(anomalies, Anomaly{
				Category:  category,
				Symbol:    b.Symbol,
				Name:      name,
				Date:      b.TradeDate,
				Detail:    fmt.Sprintf("전일종가=%s원 → 당일종가=%s원 (%+.1f%%)", comma(prev), comma(b.Close), signed),
				Magnitude: rate,
			})
		}
	}

	return anomalies
}

// scanFlows aggregates net buy value per (symbol, date) across every
// investor category present in the fetched set and flags totals beyond the
// configured absolute threshold.
func (d *Detector) scanFlows(result *RunResult) []Anomaly {
	type key struct {
		symbol string
		date   time.Time
	}
	totals := make(map[key]float64)
	for _, f := range result.flowRows {
		totals[key{f.Symbol, f.TradeDate}] += f.NetBuyValue
	}

	var anomalies []Anomaly
	for k, total := range totals {
		if math.Abs(total) < d.thresholds.LargeNetFlow {
			continue
		}
		category := AnomalyLargeNetBuy
		if total < 0 {
			category = AnomalyLargeNetSell
		}
		anomalies = append(anomalies, Anomaly{
			Category:  category,
			Symbol:    k.symbol,
			Name:      result.symbolName(k.symbol),
			Date:      k.date,
			Detail:    fmt.Sprintf("전체투자자 순매수합계=%+.1f억원", total/1e8),
			Magnitude: math.Abs(total),
		})
	}
	return anomalies
}
