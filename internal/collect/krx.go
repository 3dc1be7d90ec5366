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

	"github.com/stockelper/stockgraph/internal/domain"
	"github.com/stockelper/stockgraph/internal/platform/httpx"
	"github.com/stockelper/stockgraph/internal/platform/logger"
)

// DefaultKRXEndpoint is the exchange's public listing-data endpoint.
const DefaultKRXEndpoint = "https://data.krx.co.kr/comm/bldAttendant/getJsonData.cmd"

// KRX collects the full listing universe from the exchange in one call per
// run. Its output seeds the work planner.
type KRX struct {
	endpoint string
	httpc    *http.Client
	log      *logger.Logger
}

func NewKRX(endpoint string, log *logger.Logger) *KRX {
	if endpoint == "" {
		endpoint = DefaultKRXEndpoint
	}
	return &KRX{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: 60 * time.Second},
		log:      log.With("collector", "KRX"),
	}
}

type krxListingRow struct {
	Code        string `json:"ISU_SRT_CD"`
	Name        string `json:"ISU_NM"`
	Abbrev      string `json:"ISU_ABBRV"`
	NameEng     string `json:"ISU_ENG_NM"`
	ListingDate string `json:"LIST_DD"`
	Market      string `json:"MKT_TP_NM"`
	Shares      string `json:"LIST_SHRS"`
}

type krxListingResponse struct {
	OutBlock []krxListingRow `json:"OutBlock_1"`
}

// Listings fetches every listed issuer across all markets.
func (k *KRX) Listings(ctx context.Context) ([]domain.CompanyListing, error) {
	form := url.Values{}
	form.Set("bld", "dbms/MDC/STAT/standard/MDCSTAT01901")
	form.Set("mktId", "ALL")
	form.Set("share", "1")
	form.Set("csvxls_isNo", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", "http://data.krx.co.kr/")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.Transient("krx", err)
	}
	defer httpx.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, domain.Transient("krx", fmt.Errorf("status %d", resp.StatusCode))
	}

	var out krxListingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.DataShapeError{Source: "krx", Reason: "undecodable listing response: " + err.Error()}
	}
	if len(out.OutBlock) == 0 {
		return nil, &domain.DataShapeError{Source: "krx", Reason: "empty listing block"}
	}

	listings := make([]domain.CompanyListing, 0, len(out.OutBlock))
	for _, row := range out.OutBlock {
		code := padCode(row.Code)
		if code == "" {
			continue
		}
		listings = append(listings, domain.CompanyListing{
			Code:              code,
			Name:              row.Name,
			Abbrev:            row.Abbrev,
			NameEng:           row.NameEng,
			ListingDate:       row.ListingDate,
			Market:            row.Market,
			OutstandingShares: parseShares(row.Shares),
		})
	}

	k.log.Info("collected listing universe", "companies", len(listings))
	return listings, nil
}

// padCode left-pads stock codes to the canonical 6 digits.
func padCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	for len(code) < 6 {
		code = "0" + code
	}
	return code
}

func parseShares(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
