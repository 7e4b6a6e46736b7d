package update

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krxdata/collector/internal/database"
	"github.com/krxdata/collector/internal/domain"
	"github.com/krxdata/collector/internal/modules/universe"
)

// stubVendor serves canned per-symbol responses; a missing symbol is an
// empty result, exactly how the real client degrades failures.
type stubVendor struct {
	bars  map[string][]domain.PriceBar
	flows map[string][]domain.InvestorFlow
}

func (s *stubVendor) FetchPriceHistory(symbol string, _, _ time.Time) []domain.PriceBar {
	return s.bars[symbol]
}

func (s *stubVendor) FetchInvestorFlows(symbol string, _, _ time.Time) []domain.InvestorFlow {
	return s.flows[symbol]
}

func seedStocks(t *testing.T, db *database.DB) *universe.StockRepository {
	t.Helper()
	stocks := universe.NewStockRepository(db.Conn(), zerolog.Nop())
	for _, m := range []domain.SymbolMaster{
		{Symbol: "005930", Name: "삼성전자", Market: domain.MarketKOSPI},
		{Symbol: "000660", Name: "SK하이닉스", Market: domain.MarketKOSPI},
		{Symbol: "069500", Name: "KODEX 200", Market: domain.MarketETF},
	} {
		require.NoError(t, stocks.Upsert(m))
	}
	return stocks
}

func TestServiceRunSingleDay(t *testing.T) {
	db := newTestDB(t)
	stocks := seedStocks(t, db)
	prices := NewPriceRepository(db.Conn(), zerolog.Nop())
	investors := NewInvestorRepository(db.Conn(), zerolog.Nop())
	logs := NewLogRepository(db.Conn(), zerolog.Nop())

	// Previous session baseline for the large-move scan.
	_, _, err := prices.UpsertBars([]domain.PriceBar{
		{TradeDate: day(2026, 2, 16), Symbol: "005930", Close: 75000},
		{TradeDate: day(2026, 2, 16), Symbol: "000660", Close: 200000},
	})
	require.NoError(t, err)

	target := day(2026, 2, 17)
	vendor := &stubVendor{
		bars: map[string][]domain.PriceBar{
			// Halted: zero volume with a positive close.
			"005930": {{TradeDate: target, Symbol: "005930", Open: 75500, High: 75500, Low: 75500, Close: 75500, Volume: 0, ListedShares: 5_969_783_000}},
			"000660": {{TradeDate: target, Symbol: "000660", Open: 199000, High: 202000, Low: 198500, Close: 201000, Volume: 3_000_000, ListedShares: 728_002_365}},
			// 069500 missing: every retry exhausted, counted as a failure.
		},
		flows: map[string][]domain.InvestorFlow{
			"005930": {{TradeDate: target, Symbol: "005930", Category: domain.InvestorForeign, NetBuyValue: 6e10, NetBuyVolume: 795000}},
			"000660": {{TradeDate: target, Symbol: "000660", Category: domain.InvestorRetail, NetBuyValue: -2e9, NetBuyVolume: -10000}},
		},
	}

	svc := NewService(Config{Workers: 2, BatchSize: 500}, vendor, stocks, prices, investors, logs, zerolog.Nop())
	result, err := svc.Run(&target)
	require.NoError(t, err)

	assert.Equal(t, Window{Start: target, End: target}, result.Window)
	assert.False(t, result.NoOp)
	assert.Equal(t, 3, result.TotalSymbols)
	assert.Equal(t, 2, result.InvestorSymbols) // the ETF carries no flow data

	assert.Equal(t, 2, result.OHLCV.Success)
	assert.Equal(t, 1, result.OHLCV.Fail)
	assert.Equal(t, []string{"069500"}, result.OHLCV.FailSymbols)
	assert.Equal(t, 2, result.OHLCV.Rows)
	assert.Equal(t, 2, result.OHLCV.Changed)

	assert.Equal(t, 2, result.MarketCap.Rows)
	assert.Equal(t, 2, result.Investor.Rows)
	assert.Equal(t, 2, result.Investor.Success)

	// One halt plus one 60bn foreign net buy.
	halts := findByCategory(result.Anomalies, AnomalyTradingHalt)
	require.Len(t, halts, 1)
	assert.Equal(t, "005930", halts[0].Symbol)
	buys := findByCategory(result.Anomalies, AnomalyLargeNetBuy)
	require.Len(t, buys, 1)
	assert.Equal(t, "005930", buys[0].Symbol)

	report := GenerateReport(result)
	assert.Contains(t, report, "[거래정지]")
	assert.Contains(t, report, "삼성전자")

	// Audit rows: OHLCV PARTIAL (one failure), MARKET_CAP and INVESTOR SUCCESS.
	status := map[string]string{}
	rows, err := db.Conn().Query(`SELECT data_type, status FROM data_collection_logs WHERE run_id = ?`, result.RunID)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var dataType, s string
		require.NoError(t, rows.Scan(&dataType, &s))
		status[dataType] = s
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, map[string]string{
		"OHLCV":      StatusPartial,
		"MARKET_CAP": StatusSuccess,
		"INVESTOR":   StatusSuccess,
	}, status)
}

func TestServiceRunHaltScenario(t *testing.T) {
	db := newTestDB(t)
	stocks := seedStocks(t, db)
	prices := NewPriceRepository(db.Conn(), zerolog.Nop())
	investors := NewInvestorRepository(db.Conn(), zerolog.Nop())
	logs := NewLogRepository(db.Conn(), zerolog.Nop())

	target := day(2026, 2, 17)
	bar := func(symbol string, volume int64) []domain.PriceBar {
		return []domain.PriceBar{{TradeDate: target, Symbol: symbol, Open: 100, High: 110, Low: 95, Close: 105, Volume: volume}}
	}
	vendor := &stubVendor{
		bars: map[string][]domain.PriceBar{
			"005930": bar("005930", 0), // halted
			"000660": bar("000660", 1000),
			"069500": bar("069500", 1000),
		},
		flows: map[string][]domain.InvestorFlow{
			"005930": {{TradeDate: target, Symbol: "005930", Category: domain.InvestorForeign, NetBuyValue: 1e9}},
			"000660": {{TradeDate: target, Symbol: "000660", Category: domain.InvestorForeign, NetBuyValue: 1e9}},
		},
	}

	svc := NewService(Config{Workers: 2, BatchSize: 500}, vendor, stocks, prices, investors, logs, zerolog.Nop())
	result, err := svc.Run(&target)
	require.NoError(t, err)

	assert.Equal(t, 3, result.OHLCV.Rows)
	assert.Equal(t, 0, result.OHLCV.Fail)

	halts := findByCategory(result.Anomalies, AnomalyTradingHalt)
	require.Len(t, halts, 1)
	assert.Equal(t, "005930", halts[0].Symbol)

	report := GenerateReport(result)
	require.Contains(t, report, "[거래정지] 1건")
	haltSection := report[strings.Index(report, "[거래정지]"):]
	haltSection = haltSection[:strings.Index(haltSection, "\n\n")]
	assert.Contains(t, haltSection, "005930")
	assert.NotContains(t, haltSection, "000660")
}

func TestServiceRunIdempotentSecondPass(t *testing.T) {
	db := newTestDB(t)
	stocks := seedStocks(t, db)
	prices := NewPriceRepository(db.Conn(), zerolog.Nop())
	investors := NewInvestorRepository(db.Conn(), zerolog.Nop())
	logs := NewLogRepository(db.Conn(), zerolog.Nop())

	target := day(2026, 2, 17)
	mkBar := func(symbol string) []domain.PriceBar {
		return []domain.PriceBar{{TradeDate: target, Symbol: symbol, Open: 75500, High: 76000, Low: 75000, Close: 75500, Volume: 1000, ListedShares: 5_969_783_000}}
	}
	vendor := &stubVendor{
		bars: map[string][]domain.PriceBar{
			"005930": mkBar("005930"), "000660": mkBar("000660"), "069500": mkBar("069500"),
		},
		flows: map[string][]domain.InvestorFlow{
			"005930": {{TradeDate: target, Symbol: "005930", Category: domain.InvestorForeign, NetBuyValue: 1e9}},
			"000660": {{TradeDate: target, Symbol: "000660", Category: domain.InvestorForeign, NetBuyValue: 1e9}},
		},
	}

	svc := NewService(Config{Workers: 2, BatchSize: 500}, vendor, stocks, prices, investors, logs, zerolog.Nop())

	first, err := svc.Run(&target)
	require.NoError(t, err)
	assert.Equal(t, first.OHLCV.Rows, first.OHLCV.Changed)

	second, err := svc.Run(&target)
	require.NoError(t, err)
	assert.Equal(t, 0, second.OHLCV.Changed)
	assert.Equal(t, second.OHLCV.Rows, second.OHLCV.Skipped)
	assert.Equal(t, 0, second.Investor.Changed)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestServiceRunResolvedNoOp(t *testing.T) {
	db := newTestDB(t)
	stocks := seedStocks(t, db)
	prices := NewPriceRepository(db.Conn(), zerolog.Nop())
	investors := NewInvestorRepository(db.Conn(), zerolog.Nop())
	logs := NewLogRepository(db.Conn(), zerolog.Nop())

	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)
	yesterday := time.Now().In(loc).AddDate(0, 0, -1)
	_, _, err = prices.UpsertBars([]domain.PriceBar{
		{TradeDate: day(yesterday.Year(), yesterday.Month(), yesterday.Day()), Symbol: "005930", Close: 75000},
	})
	require.NoError(t, err)

	svc := NewService(Config{Location: loc}, &stubVendor{}, stocks, prices, investors, logs, zerolog.Nop())
	result, err := svc.Run(nil)
	require.NoError(t, err)
	assert.True(t, result.NoOp)
	assert.True(t, strings.Contains(GenerateReport(result), "업데이트할 데이터 없음"))
}

func TestServiceRunEmptyStoreFails(t *testing.T) {
	db := newTestDB(t)
	stocks := seedStocks(t, db)
	prices := NewPriceRepository(db.Conn(), zerolog.Nop())
	investors := NewInvestorRepository(db.Conn(), zerolog.Nop())
	logs := NewLogRepository(db.Conn(), zerolog.Nop())

	svc := NewService(Config{}, &stubVendor{}, stocks, prices, investors, logs, zerolog.Nop())
	_, err := svc.Run(nil)
	assert.ErrorIs(t, err, ErrNoBaseline)
}
