// Package infomax is the client for the Infomax market data API, the single
// point of contact with the vendor. All calls share one rate gate so the
// combined request rate across worker goroutines stays inside the account's
// per-minute budget.
package infomax

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/krxdata/collector/internal/domain"
	"github.com/krxdata/collector/pkg/ratelimit"
)

const dateFormat = "20060102"

// Config holds client construction parameters
type Config struct {
	BaseURL    string
	APIKey     string
	MaxRetries int
	RetryWait  time.Duration
	Timeout    time.Duration
}

// Client is an Infomax REST API client. Safe for concurrent use; the gate is
// shared by every caller that holds the same instance (or another instance
// built around the same gate).
type Client struct {
	cfg    Config
	client *http.Client
	gate   *ratelimit.Gate
	log    zerolog.Logger
}

// NewClient creates a new Infomax client around a shared rate gate.
// A missing API key is a configuration error; every other failure mode
// degrades to an empty result at call time.
func NewClient(cfg Config, gate *ratelimit.Gate, log zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("infomax: API key is required")
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		gate:   gate,
		log:    log.With().Str("client", "infomax").Logger(),
	}, nil
}

// get performs a rate-gated GET with the retry ladder:
//   - HTTP 429: sleep retryWait x attempt, retry
//   - timeout / transport error: sleep retryWait, retry
//   - HTTP 200 with success=false: parameter-level error, no retry
//
// Exhausted retries return false. Ordinary failures never surface as errors;
// the caller sees an empty result and records a per-symbol failure.
func (c *Client) get(endpoint string, params url.Values, out interface{}) bool {
	u := c.cfg.BaseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		c.gate.Acquire()

		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			c.log.Error().Err(err).Str("endpoint", endpoint).Msg("Failed to build request")
			return false
		}
		req.Header.Set("Authorization", "bearer "+c.cfg.APIKey)

		res, err := c.client.Do(req)
		if err != nil {
			// Timeouts and transport errors share the fixed-wait retry.
			c.log.Warn().Err(err).
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Msg("Request failed")
			if attempt < c.cfg.MaxRetries {
				time.Sleep(c.cfg.RetryWait)
			}
			continue
		}

		body, readErr := io.ReadAll(res.Body)
		res.Body.Close()

		if res.StatusCode == http.StatusTooManyRequests {
			c.log.Warn().
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Msg("Rate limited by vendor (429)")
			if attempt < c.cfg.MaxRetries {
				time.Sleep(c.cfg.RetryWait * time.Duration(attempt))
			}
			continue
		}

		if res.StatusCode != http.StatusOK || readErr != nil {
			c.log.Warn().
				Str("endpoint", endpoint).
				Int("status", res.StatusCode).
				Int("attempt", attempt).
				Msg("Unexpected response")
			if attempt < c.cfg.MaxRetries {
				time.Sleep(c.cfg.RetryWait)
			}
			continue
		}

		if err := json.Unmarshal(body, out); err != nil {
			c.log.Warn().Err(err).Str("endpoint", endpoint).Msg("Malformed response body")
			return false
		}
		return true
	}

	return false
}

// FetchPriceHistory fetches daily OHLCV bars (with listed shares) for one
// symbol over the inclusive date range. An empty slice means the fetch
// failed or the vendor has no data for the range.
func (c *Client) FetchPriceHistory(symbol string, start, end time.Time) []domain.PriceBar {
	params := url.Values{}
	params.Set("code", symbol)
	params.Set("startDate", start.Format(dateFormat))
	params.Set("endDate", end.Format(dateFormat))

	var res histResponse
	if !c.get("/api/stock/hist", params, &res) || !res.Success {
		return nil
	}

	bars := make([]domain.PriceBar, 0, len(res.Results))
	for _, r := range res.Results {
		code := r.Code
		if code == "" {
			code = symbol
		}
		bars = append(bars, domain.PriceBar{
			TradeDate:    parseDate(r.Date),
			Symbol:       code,
			Open:         r.OpenPrice,
			High:         r.HighPrice,
			Low:          r.LowPrice,
			Close:        r.ClosePrice,
			Volume:       r.TradingVolume,
			TradingValue: r.TradingValue,
			ListedShares: r.ListedShares,
		})
	}
	return bars
}

// FetchInvestorFlows fetches net trading flows by investor category for one
// symbol over the inclusive date range. Leaving the vendor's investor
// parameter unset returns all categories in a single call; labels outside
// the canonical mapping table are dropped here.
func (c *Client) FetchInvestorFlows(symbol string, start, end time.Time) []domain.InvestorFlow {
	params := url.Values{}
	params.Set("code", symbol)
	params.Set("startDate", start.Format(dateFormat))
	params.Set("endDate", end.Format(dateFormat))

	var res investorResponse
	if !c.get("/api/stock/investor", params, &res) || !res.Success {
		return nil
	}

	flows := make([]domain.InvestorFlow, 0, len(res.Results))
	for _, r := range res.Results {
		category, ok := investorCategoryMap[r.Investor]
		if !ok {
			continue
		}
		code := r.Code
		if code == "" {
			code = symbol
		}
		flows = append(flows, domain.InvestorFlow{
			TradeDate:    parseDate(r.Date),
			Symbol:       code,
			Category:     category,
			NetBuyValue:  r.BidValue - r.AskValue,
			NetBuyVolume: r.BidVolume - r.AskVolume,
		})
	}
	return flows
}

// FetchSymbolMaster fetches the full current listing. Market codes collapse
// to KOSPI/KOSDAQ; any non-equity instrument type is recategorised as ETF
// regardless of its raw market code.
func (c *Client) FetchSymbolMaster() []domain.SymbolMaster {
	var res codeResponse
	if !c.get("/api/stock/code", url.Values{}, &res) || !res.Success {
		return nil
	}

	rows := make([]domain.SymbolMaster, 0, len(res.Results))
	for _, r := range res.Results {
		code := strings.TrimSpace(r.Code)
		if code == "" {
			continue
		}

		market := marketCodeMap[r.Market]
		if r.EquityType != "" && r.EquityType != "ST" {
			market = domain.MarketETF
		}

		rows = append(rows, domain.SymbolMaster{
			Symbol:       code,
			Name:         r.KRName,
			Market:       market,
			ListingDate:  parseDate(r.ListedDate),
			StandardCode: r.ISIN,
			Active:       true,
		})
	}
	return rows
}

// FetchDelistedSymbols fetches symbols delisted within the given range.
// Zero start/end leave the vendor defaults (trailing year) in place.
func (c *Client) FetchDelistedSymbols(start, end time.Time) []domain.DelistedSymbol {
	params := url.Values{}
	if !start.IsZero() {
		params.Set("startDate", start.Format(dateFormat))
	}
	if !end.IsZero() {
		params.Set("endDate", end.Format(dateFormat))
	}

	var res expiredResponse
	if !c.get("/api/stock/expired", params, &res) || !res.Success {
		return nil
	}

	rows := make([]domain.DelistedSymbol, 0, len(res.Results))
	for _, r := range res.Results {
		code := strings.TrimSpace(r.Code)
		if code == "" {
			continue
		}
		rows = append(rows, domain.DelistedSymbol{
			Symbol:        code,
			Name:          r.KRName,
			DelistingDate: parseDate(r.DelistedDate),
		})
	}
	return rows
}

// parseDate parses a vendor YYYYMMDD date. Failures yield the zero time, a
// row-level soft failure filtered downstream.
func parseDate(s string) time.Time {
	t, err := time.Parse(dateFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
