package infomax

import "github.com/krxdata/collector/internal/domain"

// histResponse is the wire shape of GET /api/stock/hist
type histResponse struct {
	Success bool      `json:"success"`
	Results []histRow `json:"results"`
}

type histRow struct {
	Date          string  `json:"date"` // YYYYMMDD
	Code          string  `json:"code"`
	OpenPrice     float64 `json:"open_price"`
	HighPrice     float64 `json:"high_price"`
	LowPrice      float64 `json:"low_price"`
	ClosePrice    float64 `json:"close_price"`
	TradingVolume int64   `json:"trading_volume"`
	TradingValue  float64 `json:"trading_value"`
	ListedShares  int64   `json:"listed_shares"`
}

// investorResponse is the wire shape of GET /api/stock/investor
type investorResponse struct {
	Success bool          `json:"success"`
	Results []investorRow `json:"results"`
}

type investorRow struct {
	Date      string  `json:"date"`
	Code      string  `json:"code"`
	Investor  string  `json:"investor"`
	BidValue  float64 `json:"bid_value"`
	AskValue  float64 `json:"ask_value"`
	BidVolume int64   `json:"bid_volume"`
	AskVolume int64   `json:"ask_volume"`
}

// codeResponse is the wire shape of GET /api/stock/code
type codeResponse struct {
	Success bool      `json:"success"`
	Results []codeRow `json:"results"`
}

type codeRow struct {
	Code       string `json:"code"`
	KRName     string `json:"kr_name"`
	Market     string `json:"market"`      // numeric market code as string
	EquityType string `json:"equity_type"` // ST, EF, EN, MF, RT, ...
	ISIN       string `json:"isin"`
	ListedDate string `json:"listed_date"`
}

// expiredResponse is the wire shape of GET /api/stock/expired
type expiredResponse struct {
	Success bool         `json:"success"`
	Results []expiredRow `json:"results"`
}

type expiredRow struct {
	Code         string `json:"code"`
	KRName       string `json:"kr_name"`
	DelistedDate string `json:"delisted_date"`
}

// investorCategoryMap translates vendor investor labels to canonical
// categories. Closed table: unmapped labels are dropped, not defaulted.
// The vendor returns "기금공제" where its documentation says "연기금"
// (verified against live responses); the observed label maps to PENSION.
var investorCategoryMap = map[string]domain.InvestorCategory{
	"외국인":  domain.InvestorForeign,
	"기관계":  domain.InvestorInstitution,
	"기금공제": domain.InvestorPension,
	"개인":   domain.InvestorRetail,
}

// marketCodeMap collapses the vendor's numeric market codes into the two
// equity markets. 1/2/5 are exchange variants of KOSPI, 7/8 of KOSDAQ.
var marketCodeMap = map[string]domain.Market{
	"1": domain.MarketKOSPI,
	"2": domain.MarketKOSPI,
	"5": domain.MarketKOSPI,
	"7": domain.MarketKOSDAQ,
	"8": domain.MarketKOSDAQ,
}
