package graph

import (
	"github.com/stockelper/stockgraph/internal/domain"
)

// Cypher text lives here; values travel as parameters so the sink never sees
// string-interpolated data.

var constraintStatements = []string{
	`CREATE CONSTRAINT company_code_unique IF NOT EXISTS FOR (c:Company) REQUIRE c.stock_code IS UNIQUE`,
	`CREATE CONSTRAINT sector_name_unique IF NOT EXISTS FOR (s:Sector) REQUIRE s.name IS UNIQUE`,
	`CREATE CONSTRAINT date_unique IF NOT EXISTS FOR (d:Date) REQUIRE d.date IS UNIQUE`,
}

const queryExistingEntities = `
MATCH (c:Company)
RETURN c.stock_code AS stock_code`

const queryEntityExists = `
MATCH (c:Company {stock_code: $stock_code})
RETURN count(c) > 0 AS exists`

const queryProcessedDates = `
MATCH (:Company {stock_code: $stock_code})-[:HAS_STOCK_PRICE]->(:StockPrice)-[:RECORDED_ON]->(d:Date)
RETURN d.date AS date`

const queryNodeCount = `
MATCH (n)
RETURN count(n) AS total`

// upsertCompany merges the company and its sector. Company is keyed by stock
// code alone so re-ingesting refreshed listing data updates in place instead
// of duplicating nodes.
const upsertCompany = `
MERGE (c:Company {stock_code: $company.stock_code})
SET c += $company
MERGE (s:Sector {name: $sector})
MERGE (c)-[:BELONGS_TO]->(s)`

// upsertPrices records one StockPrice and one Indicator node per trading day,
// both keyed by (stock code, date) for idempotence.
const upsertPrices = `
MATCH (c:Company {stock_code: $company.stock_code})
UNWIND $prices AS row
MERGE (d:Date {date: row.date})
MERGE (p:StockPrice {stock_code: row.stock_code, date: row.date})
SET p.high = row.high, p.low = row.low, p.open = row.open, p.close = row.close
MERGE (c)-[:HAS_STOCK_PRICE]->(p)
MERGE (p)-[:RECORDED_ON]->(d)
MERGE (i:Indicator {stock_code: row.stock_code, date: row.date})
SET i.eps = row.eps, i.pbr = row.pbr, i.per = row.per
MERGE (c)-[:HAS_INDICATOR]->(i)
MERGE (i)-[:RECORDED_ON]->(d)`

// upsertFinancials is keyed by (stock code, year, quarter): one statement
// node per reporting period.
const upsertFinancials = `
MATCH (c:Company {stock_code: $company.stock_code})
MERGE (f:FinancialStatements {stock_code: $financials.stock_code, year: $financials.year, quarter: $financials.quarter})
SET f += $financials
MERGE (c)-[:HAS_FINANCIAL_STATEMENTS]->(f)`

// upsertCompetitors merges competitor companies by key only; their own
// properties arrive when their pipelines run.
const upsertCompetitors = `
MATCH (c:Company {stock_code: $company.stock_code})
UNWIND $competitors AS comp
MERGE (o:Company {stock_code: comp})
MERGE (c)-[:HAS_COMPETITOR]->(o)`

// upsertStatements selects the statements that apply to this record. Update
// runs write prices against the already-present company; full runs also
// refresh the company, financials, and competitor blocks.
func upsertStatements(rec *domain.StockRecord) []string {
	var stmts []string
	if !rec.PricesOnly {
		stmts = append(stmts, upsertCompany)
	}
	if len(rec.Prices) > 0 {
		stmts = append(stmts, upsertPrices)
	}
	if rec.Financials != nil {
		stmts = append(stmts, upsertFinancials)
	}
	if len(rec.Competitors) > 0 {
		stmts = append(stmts, upsertCompetitors)
	}
	return stmts
}

// upsertParams flattens a StockRecord into driver parameters. All statements
// share one parameter map so the whole subgraph travels in one transaction.
func upsertParams(rec *domain.StockRecord) map[string]any {
	company := map[string]any{
		"stock_code":         rec.Listing.Code,
		"stock_nm":           rec.Listing.Name,
		"stock_abbrv":        rec.Listing.Abbrev,
		"stock_nm_eng":       rec.Listing.NameEng,
		"listing_dt":         rec.Listing.ListingDate,
		"market_nm":          rec.Listing.Market,
		"outstanding_shares": rec.Listing.OutstandingShares,
		"kospi200_item_yn":   rec.Profile.Kospi200,
	}

	prices := make([]map[string]any, 0, len(rec.Prices))
	for _, p := range rec.Prices {
		prices = append(prices, map[string]any{
			"stock_code": p.Code,
			"date":       p.Date,
			"high":       p.High,
			"low":        p.Low,
			"open":       p.Open,
			"close":      p.Close,
			"eps":        p.EPS,
			"pbr":        p.PBR,
			"per":        p.PER,
		})
	}

	params := map[string]any{
		"company":     company,
		"sector":      rec.Profile.Sector,
		"prices":      prices,
		"competitors": competitorsExcludingSelf(rec),
	}

	if rec.Financials != nil {
		params["financials"] = map[string]any{
			"stock_code":        rec.Financials.Code,
			"year":              int64(rec.Financials.Year),
			"quarter":           rec.Financials.Quarter,
			"revenue":           rec.Financials.Revenue,
			"operating_income":  rec.Financials.OperatingIncome,
			"net_income":        rec.Financials.NetIncome,
			"total_assets":      rec.Financials.TotalAssets,
			"total_liabilities": rec.Financials.TotalLiabilities,
			"total_equity":      rec.Financials.TotalEquity,
			"capital_stock":     rec.Financials.CapitalStock,
		}
	}

	return params
}

// competitorsExcludingSelf drops self-references and duplicates, preserving
// order.
func competitorsExcludingSelf(rec *domain.StockRecord) []string {
	seen := make(map[domain.EntityKey]struct{}, len(rec.Competitors))
	out := make([]string, 0, len(rec.Competitors))
	for _, comp := range rec.Competitors {
		if comp == rec.Listing.Code {
			continue
		}
		if _, dup := seen[comp]; dup {
			continue
		}
		seen[comp] = struct{}{}
		out = append(out, comp)
	}
	return out
}
