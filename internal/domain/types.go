package domain

// EntityKey identifies one ingestible issuer: the 6-digit stock code.
// It is the dedup key for planning and the upsert key in the graph.
type EntityKey = string

// CompanyListing is one row of the exchange listing universe.
type CompanyListing struct {
	Code              EntityKey
	Name              string
	Abbrev            string
	NameEng           string
	ListingDate       string
	Market            string
	OutstandingShares int64
}

// CompanyProfile is the brokerage-side company record.
type CompanyProfile struct {
	Code     EntityKey
	Kospi200 string
	Sector   string
}

// DailyPrice is one trading day's price and valuation indicators.
// Indicator fields stay strings: the upstream API reports them as
// formatted decimals and the graph stores them verbatim.
type DailyPrice struct {
	Code  EntityKey
	Date  string // YYYYMMDD
	High  int64
	Low   int64
	Open  int64
	Close int64
	EPS   string
	PBR   string
	PER   string
}

// FinancialStatement holds the most recent reportable quarter's figures.
type FinancialStatement struct {
	Code             EntityKey
	Year             int
	Quarter          string
	Revenue          int64
	OperatingIncome  int64
	NetIncome        int64
	TotalAssets      int64
	TotalLiabilities int64
	TotalEquity      int64
	CapitalStock     int64
}

// StockRecord is the fully merged per-entity record handed to the sink.
// Building one is the pipeline's pure transform step; the graph package
// maps it onto nodes and relationships.
type StockRecord struct {
	Listing     CompanyListing
	Profile     CompanyProfile
	Prices      []DailyPrice
	Financials  *FinancialStatement // nil when the entity has no filings
	Competitors []EntityKey

	// PricesOnly marks an update-mode record: only the price rows are
	// written, against a company node that is already in the graph.
	PricesOnly bool
}

// SectorUnknown is the sector recorded when the profile source reports no
// data for an entity.
const SectorUnknown = "정보없음"

// PlaceholderProfile is the degraded profile stored when an entity has no
// brokerage record. It keeps the entity visible in the graph.
func PlaceholderProfile(key EntityKey) CompanyProfile {
	return CompanyProfile{Code: key, Kospi200: "N", Sector: SectorUnknown}
}

// PlaceholderPrice is the degraded zero row stored for a trading day the
// price source has no data for, keeping the date series dense.
func PlaceholderPrice(key EntityKey, date string) DailyPrice {
	return DailyPrice{Code: key, Date: date, EPS: "0", PBR: "0", PER: "0"}
}
