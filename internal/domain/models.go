package domain

import "time"

// Market represents a canonical market classification
type Market string

const (
	MarketKOSPI  Market = "KOSPI"
	MarketKOSDAQ Market = "KOSDAQ"
	MarketETF    Market = "ETF"
)

// InvestorCategory classifies trade counterparties for net-flow reporting.
// The set is closed: vendor categories outside the mapping table are dropped
// at the client boundary, never defaulted.
type InvestorCategory string

const (
	InvestorForeign     InvestorCategory = "FOREIGN"
	InvestorInstitution InvestorCategory = "INSTITUTION"
	InvestorPension     InvestorCategory = "PENSION"
	InvestorRetail      InvestorCategory = "RETAIL"
)

// InvestorCategories lists every canonical category, in reporting order.
var InvestorCategories = []InvestorCategory{
	InvestorForeign,
	InvestorInstitution,
	InvestorPension,
	InvestorRetail,
}

// PriceBar is one symbol's daily OHLCV record as returned by the vendor.
// Zero TradeDate marks a row whose vendor date failed to parse; such rows
// are filtered at aggregation, not treated as errors.
// Volume 0 with a positive close is a halted/no-trade day, not corruption.
type PriceBar struct {
	TradeDate    time.Time `json:"trade_date"`
	Symbol       string    `json:"symbol"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       int64     `json:"volume"`
	TradingValue float64   `json:"trading_value"`
	ListedShares int64     `json:"listed_shares"`
}

// MarketCap returns the derived market capitalisation for the bar, and
// whether both inputs were present. Derived, never fetched.
func (b PriceBar) MarketCap() (float64, bool) {
	if b.Close == 0 || b.ListedShares == 0 {
		return 0, false
	}
	return b.Close * float64(b.ListedShares), true
}

// InvestorFlow is one (date, symbol, category) net trading record,
// derived at the client boundary as net = bid - ask.
type InvestorFlow struct {
	TradeDate    time.Time        `json:"trade_date"`
	Symbol       string           `json:"symbol"`
	Category     InvestorCategory `json:"category"`
	NetBuyValue  float64          `json:"net_buy_value"`
	NetBuyVolume int64            `json:"net_buy_volume"`
}

// SymbolMaster is one row of the stock master list. Read-only input to the
// daily pipeline; mutation belongs to the master-refresh service.
type SymbolMaster struct {
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	Market       Market    `json:"market"`
	ListingDate  time.Time `json:"listing_date"`
	StandardCode string    `json:"standard_code"`
	Active       bool      `json:"active"`
}

// DelistedSymbol is one row of the vendor's delisting feed.
type DelistedSymbol struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	DelistingDate time.Time `json:"delisting_date"`
}
