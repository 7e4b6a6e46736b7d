package update

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krxdata/collector/internal/domain"
)

func defaultDetector() *Detector {
	return NewDetector(Thresholds{PriceMove: 0.295, LargeNetFlow: 5e10})
}

func findByCategory(anomalies []Anomaly, c AnomalyCategory) []Anomaly {
	var out []Anomaly
	for _, a := range anomalies {
		if a.Category == c {
			out = append(out, a)
		}
	}
	return out
}

func TestScanFlagsTradingHalt(t *testing.T) {
	result := &RunResult{
		names: map[string]string{"005930": "삼성전자"},
		priceRows: []domain.PriceBar{
			{TradeDate: day(2026, 2, 17), Symbol: "005930", Close: 75500, Volume: 0},
			{TradeDate: day(2026, 2, 17), Symbol: "000660", Close: 200000, Volume: 3_210_000},
		},
	}

	anomalies := defaultDetector().Scan(result, nil)
	halts := findByCategory(anomalies, AnomalyTradingHalt)
	require.Len(t, halts, 1)
	assert.Equal(t, "005930", halts[0].Symbol)
	assert.Equal(t, "삼성전자", halts[0].Name)
}

func TestScanFlagsOHLCViolation(t *testing.T) {
	result := &RunResult{
		names: map[string]string{},
		priceRows: []domain.PriceBar{
			{TradeDate: day(2026, 2, 17), Symbol: "005930", High: 74000, Low: 76000, Close: 75000, Volume: 100},
		},
	}

	anomalies := defaultDetector().Scan(result, nil)
	require.Len(t, findByCategory(anomalies, AnomalyOHLCViolation), 1)
}

func TestScanPriceMoveThreshold(t *testing.T) {
	prevClose := map[string]float64{
		"AAA": 10000,
		"BBB": 10000,
		"CCC": 10000,
	}
	result := &RunResult{
		names: map[string]string{},
		priceRows: []domain.PriceBar{
			// -30%: plunge
			{TradeDate: day(2026, 2, 17), Symbol: "AAA", Close: 7000, Volume: 100},
			// +29.5% exactly: surge (threshold is inclusive)
			{TradeDate: day(2026, 2, 17), Symbol: "BBB", Close: 12950, Volume: 100},
			// +2%: quiet
			{TradeDate: day(2026, 2, 17), Symbol: "CCC", Close: 10200, Volume: 100},
		},
	}

	anomalies := defaultDetector().Scan(result, prevClose)

	plunges := findByCategory(anomalies, AnomalyPricePlunge)
	require.Len(t, plunges, 1)
	assert.Equal(t, "AAA", plunges[0].Symbol)
	assert.InDelta(t, 0.30, plunges[0].Magnitude, 1e-9)

	surges := findByCategory(anomalies, AnomalyPriceSurge)
	require.Len(t, surges, 1)
	assert.Equal(t, "BBB", surges[0].Symbol)
}

func TestScanNoBaselineNoMoveAnomaly(t *testing.T) {
	// Newly listed symbol: no previous close to compare against.
	result := &RunResult{
		names: map[string]string{},
		priceRows: []domain.PriceBar{
			{TradeDate: day(2026, 2, 17), Symbol: "NEW", Close: 50000, Volume: 100},
		},
	}

	anomalies := defaultDetector().Scan(result, map[string]float64{})
	assert.Empty(t, findByCategory(anomalies, AnomalyPriceSurge))
	assert.Empty(t, findByCategory(anomalies, AnomalyPricePlunge))
}

func TestScanFlowsAggregatesAcrossCategories(t *testing.T) {
	result := &RunResult{
		names: map[string]string{"005930": "삼성전자"},
		flowRows: []domain.InvestorFlow{
			// Foreign +40bn and institution +15bn: combined crosses 50bn.
			{TradeDate: day(2026, 2, 17), Symbol: "005930", Category: domain.InvestorForeign, NetBuyValue: 4e10},
			{TradeDate: day(2026, 2, 17), Symbol: "005930", Category: domain.InvestorInstitution, NetBuyValue: 1.5e10},
			// Offsetting legs net out below threshold.
			{TradeDate: day(2026, 2, 17), Symbol: "000660", Category: domain.InvestorForeign, NetBuyValue: 6e10},
			{TradeDate: day(2026, 2, 17), Symbol: "000660", Category: domain.InvestorRetail, NetBuyValue: -5.5e10},
		},
	}

	anomalies := defaultDetector().Scan(result, nil)

	buys := findByCategory(anomalies, AnomalyLargeNetBuy)
	require.Len(t, buys, 1)
	assert.Equal(t, "005930", buys[0].Symbol)
	assert.InDelta(t, 5.5e10, buys[0].Magnitude, 1)
	assert.Empty(t, findByCategory(anomalies, AnomalyLargeNetSell))
}

func TestScanFlowsLargeNetSell(t *testing.T) {
	result := &RunResult{
		names: map[string]string{},
		flowRows: []domain.InvestorFlow{
			{TradeDate: day(2026, 2, 17), Symbol: "035720", Category: domain.InvestorForeign, NetBuyValue: -7e10},
		},
	}

	anomalies := defaultDetector().Scan(result, nil)
	sells := findByCategory(anomalies, AnomalyLargeNetSell)
	require.Len(t, sells, 1)
	assert.Equal(t, "035720", sells[0].Symbol)
	assert.InDelta(t, 7e10, sells[0].Magnitude, 1)
}
