package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/stockelper/stockgraph/internal/config"
	"github.com/stockelper/stockgraph/internal/domain"
	"github.com/stockelper/stockgraph/internal/platform/httpx"
	"github.com/stockelper/stockgraph/internal/platform/logger"
)

const dartFinancialsPath = "/fnlttSinglAcnt.json"

// dartStatus codes from the disclosure API contract.
const (
	dartStatusOK     = "000"
	dartStatusNoData = "013"
)

// Korean account names as reported by the filings, in output order.
var dartAccounts = []string{
	"매출액",   // revenue
	"영업이익",  // operating income
	"당기순이익", // net income
	"자산총계",  // total assets
	"부채총계",  // total liabilities
	"자본총계",  // total equity
	"자본금",   // capital stock
}

const (
	fsConsolidated = "연결재무제표"
	fsStandalone   = "재무제표"
)

// Dart collects quarterly financial statements from the disclosure system.
// Filings lag the calendar, so the collector walks a month-derived list of
// candidate quarters and returns the first one with a report.
type Dart struct {
	cfg     config.DartConfig
	httpc   *http.Client
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewDart(cfg config.DartConfig, interval time.Duration, log *logger.Logger) *Dart {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Dart{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
		log:     log.With("collector", "DART"),
	}
}

type quarter struct {
	Year       int
	ReportCode string
	Name       string
}

// quarterCandidates lists the quarters that could plausibly have a filing as
// of the given date, most recent first, ending with the prior year's annual
// report.
func quarterCandidates(date string) []quarter {
	year, _ := strconv.Atoi(date[:4])
	month, _ := strconv.Atoi(date[4:6])

	annual := quarter{Year: year - 1, ReportCode: "11011", Name: "4"}
	switch {
	case month <= 3:
		return []quarter{annual}
	case month <= 6:
		return []quarter{{year, "11013", "1"}, annual}
	case month <= 9:
		return []quarter{{year, "11012", "2"}, {year, "11013", "1"}, annual}
	default:
		return []quarter{{year, "11014", "3"}, {year, "11012", "2"}, {year, "11013", "1"}, annual}
	}
}

type dartResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	List    []struct {
		AccountName string `json:"account_nm"`
		FsName      string `json:"fs_nm"`
		Amount      string `json:"thstrm_amount"`
	} `json:"list"`
}

// Financials fetches the most recent reportable quarter's statement for one
// issuer. When no candidate quarter has a filing, it returns a zero-valued
// statement for the oldest candidate rather than an error.
func (d *Dart) Financials(ctx context.Context, code domain.EntityKey, date string) (*domain.FinancialStatement, error) {
	if len(date) < 6 {
		return nil, &domain.DataShapeError{Source: "dart", Reason: "date must be YYYYMMDD: " + date}
	}

	candidates := quarterCandidates(date)
	for _, q := range candidates {
		resp, err := d.fetchQuarter(ctx, code, q)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			continue
		}
		fs := statementFromResponse(code, q, resp)
		return fs, nil
	}

	d.log.Warn("no filings for any candidate quarter", "code", code, "date", date)
	last := candidates[len(candidates)-1]
	return &domain.FinancialStatement{Code: code, Year: last.Year, Quarter: last.Name}, nil
}

// fetchQuarter returns nil without error when the quarter has no filing.
func (d *Dart) fetchQuarter(ctx context.Context, code domain.EntityKey, q quarter) (*dartResponse, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("crtfc_key", d.cfg.APIKey)
	params.Set("corp_code", code)
	params.Set("bsns_year", strconv.Itoa(q.Year))
	params.Set("reprt_code", q.ReportCode)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.BaseURL+dartFinancialsPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.Transient("dart", err)
	}
	defer httpx.DrainAndClose(resp.Body)

	if resp.StatusCode >= 500 || httpx.IsThrottleStatus(resp.StatusCode) {
		return nil, domain.Transient("dart", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.DataShapeError{Source: "dart", Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var out dartResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.DataShapeError{Source: "dart", Reason: "undecodable response: " + err.Error()}
	}

	switch out.Status {
	case dartStatusOK:
		if len(out.List) == 0 {
			return nil, nil
		}
		return &out, nil
	case dartStatusNoData:
		return nil, nil
	default:
		return nil, &domain.DataShapeError{Source: "dart", Reason: fmt.Sprintf("status %s: %s", out.Status, out.Message)}
	}
}

func statementFromResponse(code domain.EntityKey, q quarter, resp *dartResponse) *domain.FinancialStatement {
	// Consolidated figures win; standalone fills the gaps.
	amounts := make(map[string]int64, len(dartAccounts))
	filled := make(map[string]bool, len(dartAccounts))
	for _, row := range resp.List {
		name := strings.TrimSpace(row.AccountName)
		switch row.FsName {
		case fsConsolidated:
			amounts[name] = parseAmount(row.Amount)
			filled[name] = true
		case fsStandalone:
			if !filled[name] {
				amounts[name] = parseAmount(row.Amount)
			}
		}
	}

	return &domain.FinancialStatement{
		Code:             code,
		Year:             q.Year,
		Quarter:          q.Name,
		Revenue:          amounts[dartAccounts[0]],
		OperatingIncome:  amounts[dartAccounts[1]],
		NetIncome:        amounts[dartAccounts[2]],
		TotalAssets:      amounts[dartAccounts[3]],
		TotalLiabilities: amounts[dartAccounts[4]],
		TotalEquity:      amounts[dartAccounts[5]],
		CapitalStock:     amounts[dartAccounts[6]],
	}
}

func parseAmount(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
