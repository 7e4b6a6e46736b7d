package update

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() *RunResult {
	started := time.Date(2026, 2, 18, 16, 30, 0, 0, time.UTC)
	return &RunResult{
		RunID:      "4f6b2c1e-0000-0000-0000-000000000000",
		StartedAt:  started,
		FinishedAt: started.Add(12*time.Minute + 34*time.Second),
		Window:     Window{Start: day(2026, 2, 17), End: day(2026, 2, 17)},

		TotalSymbols:    2800,
		InvestorSymbols: 2600,

		OHLCV:     TableStats{Success: 2795, Fail: 5, Rows: 2795, Changed: 2790, Skipped: 5, FailSymbols: []string{"000001", "000002", "000003", "000004", "000005"}},
		MarketCap: TableStats{Rows: 2700, Changed: 2700},
		Investor:  TableStats{Success: 2600, Rows: 10400, Changed: 10400},

		names: map[string]string{"005930": "삼성전자"},
	}
}

func TestGenerateReportSections(t *testing.T) {
	report := GenerateReport(sampleResult())

	assert.Contains(t, report, "일별 데이터 업데이트 보고서")
	assert.Contains(t, report, "2026-02-17 ~ 2026-02-17")
	assert.Contains(t, report, "0시간 12분 34초")
	assert.Contains(t, report, "1. 수집 요약")
	assert.Contains(t, report, "[ohlcv_daily]")
	assert.Contains(t, report, "[market_cap_daily]")
	assert.Contains(t, report, "[investor_trading]")
	assert.Contains(t, report, "close_price × listed_shares")
	assert.Contains(t, report, "특이사항 없음")
	assert.Contains(t, report, "4. API 수집 실패 종목")
	assert.Contains(t, report, "- 000001")
	assert.Contains(t, report, "2,790")
}

func TestGenerateReportNoOp(t *testing.T) {
	result := sampleResult()
	result.NoOp = true

	report := GenerateReport(result)
	assert.Contains(t, report, "업데이트할 데이터 없음")
	assert.NotContains(t, report, "1. 수집 요약")
}

func TestGenerateReportAnomalyOrdering(t *testing.T) {
	result := sampleResult()
	result.Anomalies = []Anomaly{
		{Category: AnomalyPricePlunge, Symbol: "AAA", Name: "에이", Date: day(2026, 2, 17), Detail: "d", Magnitude: 0.31},
		{Category: AnomalyTradingHalt, Symbol: "HHH", Name: "정지", Date: day(2026, 2, 17), Detail: "d"},
		{Category: AnomalyPricePlunge, Symbol: "BBB", Name: "비", Date: day(2026, 2, 17), Detail: "d", Magnitude: 0.45},
	}

	report := GenerateReport(result)

	// Halt section comes before the plunge section.
	haltIdx := strings.Index(report, "[거래정지]")
	plungeIdx := strings.Index(report, "[가격급락]")
	require.Greater(t, haltIdx, 0)
	require.Greater(t, plungeIdx, haltIdx)

	// Within the plunge section, the larger magnitude leads.
	assert.Less(t, strings.Index(report, "BBB"), strings.Index(report, "AAA"))
	assert.Contains(t, report, "총 3건의 특이사항")
}

func TestGenerateReportFailListOverflow(t *testing.T) {
	result := sampleResult()
	result.OHLCV.Fail = 25
	result.OHLCV.FailSymbols = nil
	for i := 0; i < 25; i++ {
		result.OHLCV.FailSymbols = append(result.OHLCV.FailSymbols, "00000"+string(rune('A'+i)))
	}

	report := GenerateReport(result)
	assert.Contains(t, report, "외 5개")
}

func TestCommaInt(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-50000, "-50,000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, commaInt(tt.in))
	}
}
