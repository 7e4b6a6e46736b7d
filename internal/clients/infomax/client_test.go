package infomax

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krxdata/collector/internal/domain"
	"github.com/krxdata/collector/pkg/ratelimit"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:    baseURL,
		APIKey:     "test-token",
		MaxRetries: 3,
		RetryWait:  time.Millisecond,
		Timeout:    time.Second,
	}, ratelimit.NewGateWithInterval(0), zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://x"}, ratelimit.NewGateWithInterval(0), zerolog.Nop())
	assert.Error(t, err)
}

func TestFetchPriceHistory(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "005930", r.URL.Query().Get("code"))
		assert.Equal(t, "20260217", r.URL.Query().Get("startDate"))
		fmt.Fprint(w, `{"success": true, "results": [
			{"date": "20260217", "code": "005930", "open_price": 75000,
			 "high_price": 76000, "low_price": 74500, "close_price": 75500,
			 "trading_volume": 12345678, "trading_value": 9.3e11,
			 "listed_shares": 5969783000},
			{"date": "bogus", "code": "005930", "close_price": 100}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	day := time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
	bars := c.FetchPriceHistory("005930", day, day)

	assert.Equal(t, "bearer test-token", gotAuth)
	require.Len(t, bars, 2)

	assert.Equal(t, 75500.0, bars[0].Close)
	assert.Equal(t, int64(5969783000), bars[0].ListedShares)
	assert.Equal(t, day, bars[0].TradeDate)

	// Unparseable vendor date is a soft failure: zero date, row kept for
	// downstream filtering.
	assert.True(t, bars[1].TradeDate.IsZero())
}

func TestFetchInvestorFlowsMappingAndDerivation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "results": [
			{"date": "20260217", "code": "005930", "investor": "기관계",
			 "bid_value": 100, "ask_value": 40, "bid_volume": 500, "ask_volume": 300},
			{"date": "20260217", "code": "005930", "investor": "기금공제",
			 "bid_value": 10, "ask_value": 30, "bid_volume": 1, "ask_volume": 2},
			{"date": "20260217", "code": "005930", "investor": "기타법인",
			 "bid_value": 999, "ask_value": 0, "bid_volume": 9, "ask_volume": 0}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	day := time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
	flows := c.FetchInvestorFlows("005930", day, day)

	// The unmapped "기타법인" row is dropped entirely.
	require.Len(t, flows, 2)

	assert.Equal(t, domain.InvestorInstitution, flows[0].Category)
	assert.Equal(t, 60.0, flows[0].NetBuyValue)
	assert.Equal(t, int64(200), flows[0].NetBuyVolume)

	// The vendor's "기금공제" label is the pension aggregate.
	assert.Equal(t, domain.InvestorPension, flows[1].Category)
	assert.Equal(t, -20.0, flows[1].NetBuyValue)
}

func TestFetchSymbolMasterMarketMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": true, "results": [
			{"code": "005930", "kr_name": "삼성전자", "market": "1",
			 "equity_type": "ST", "isin": "KR7005930003", "listed_date": "19750611"},
			{"code": "035720", "kr_name": "카카오", "market": "7",
			 "equity_type": "ST", "isin": "KR7035720002", "listed_date": "20170710"},
			{"code": "069500", "kr_name": "KODEX 200", "market": "1",
			 "equity_type": "EF", "isin": "KR7069500007", "listed_date": "20021014"},
			{"code": "", "kr_name": "빈코드"}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	rows := c.FetchSymbolMaster()

	require.Len(t, rows, 3)
	assert.Equal(t, domain.MarketKOSPI, rows[0].Market)
	assert.Equal(t, domain.MarketKOSDAQ, rows[1].Market)
	// Non-equity instrument type forces ETF regardless of raw market code.
	assert.Equal(t, domain.MarketETF, rows[2].Market)
	assert.True(t, rows[0].Active)
}

func TestRetryOn429ThenSuccess(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"success": true, "results": [
			{"date": "20260217", "code": "005930", "close_price": 100}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	day := time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
	bars := c.FetchPriceHistory("005930", day, day)

	assert.Equal(t, 3, calls)
	require.Len(t, bars, 1)
}

func TestSuccessFalseIsNotRetried(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"success": false, "results": []}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	day := time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
	bars := c.FetchPriceHistory("005930", day, day)

	// Parameter-level error: one call, empty result, no retries.
	assert.Equal(t, 1, calls)
	assert.Empty(t, bars)
}

func TestExhaustedRetriesReturnEmpty(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	day := time.Date(2026, 2, 17, 0, 0, 0, 0, time.UTC)
	flows := c.FetchInvestorFlows("005930", day, day)

	assert.Equal(t, 3, calls)
	assert.Empty(t, flows)
}
