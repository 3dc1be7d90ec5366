package collect

import (
	"bytes"
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
	"github.com/stockelper/stockgraph/internal/credentials"
	"github.com/stockelper/stockgraph/internal/domain"
	"github.com/stockelper/stockgraph/internal/platform/httpx"
	"github.com/stockelper/stockgraph/internal/platform/logger"
)

const (
	kisProfilePath = "/uapi/domestic-stock/v1/quotations/search-stock-info"
	kisPricePath   = "/uapi/domestic-stock/v1/quotations/inquire-daily-itemchartprice"
	kisTokenPath   = "/oauth2/tokenP"

	kisProfileTrID = "CTPF1002R"
	kisPriceTrID   = "FHKST03010100"
)

// KIS collects company profiles and daily prices from the brokerage API.
// Every call is paced by the shared limiter and authenticated with the
// credential store's current token. The API reports token expiry as an HTTP
// 500-class status, which surfaces here as domain.ErrCredentialExpired.
type KIS struct {
	cfg     config.KISConfig
	httpc   *http.Client
	creds   *credentials.Store
	limiter *rate.Limiter
	log     *logger.Logger
}

func NewKIS(cfg config.KISConfig, creds *credentials.Store, interval time.Duration, log *logger.Logger) *KIS {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &KIS{
		cfg:     cfg,
		httpc:   &http.Client{Timeout: 30 * time.Second},
		creds:   creds,
		limiter: rate.NewLimiter(limit, 1),
		log:     log.With("collector", "KIS"),
	}
}

type kisProfileResponse struct {
	RtCd   string `json:"rt_cd"`
	Msg1   string `json:"msg1"`
	Output struct {
		Kospi200ItemYn    string `json:"kospi200_item_yn"`
		StdIdstClsfCdName string `json:"std_idst_clsf_cd_name"`
	} `json:"output"`
}

// Profile fetches the brokerage-side company record for one issuer.
// Returns domain.ErrNoData when the API has no record; callers degrade to
// the sector-unknown placeholder.
func (k *KIS) Profile(ctx context.Context, code domain.EntityKey) (domain.CompanyProfile, error) {
	params := url.Values{}
	params.Set("PRDT_TYPE_CD", "300")
	params.Set("PDNO", code)

	var out kisProfileResponse
	if err := k.get(ctx, kisProfilePath, kisProfileTrID, params, &out); err != nil {
		return domain.CompanyProfile{}, err
	}
	if out.RtCd != "0" {
		k.log.Warn("profile lookup rejected", "code", code, "msg", out.Msg1)
		return domain.CompanyProfile{}, domain.ErrNoData
	}

	sector := strings.TrimSpace(out.Output.StdIdstClsfCdName)
	if sector == "" {
		sector = domain.SectorUnknown
	}
	return domain.CompanyProfile{
		Code:     code,
		Kospi200: out.Output.Kospi200ItemYn,
		Sector:   sector,
	}, nil
}

type kisPriceResponse struct {
	RtCd    string `json:"rt_cd"`
	Msg1    string `json:"msg1"`
	Output1 struct {
		EPS string `json:"eps"`
		PBR string `json:"pbr"`
		PER string `json:"per"`
	} `json:"output1"`
	Output2 []struct {
		High  string `json:"stck_hgpr"`
		Low   string `json:"stck_lwpr"`
		Open  string `json:"stck_oprc"`
		Close string `json:"stck_clpr"`
	} `json:"output2"`
}

// Price fetches one trading day's candle and valuation indicators.
// Returns domain.ErrNoData for non-trading days and unknown issuers.
func (k *KIS) Price(ctx context.Context, code domain.EntityKey, date string) (domain.DailyPrice, error) {
	params := url.Values{}
	params.Set("FID_COND_MRKT_DIV_CODE", "J")
	params.Set("FID_INPUT_ISCD", code)
	params.Set("FID_INPUT_DATE_1", date)
	params.Set("FID_INPUT_DATE_2", date)
	params.Set("FID_PERIOD_DIV_CODE", "D")
	params.Set("FID_ORG_ADJ_PRC", "1")

	var out kisPriceResponse
	if err := k.get(ctx, kisPricePath, kisPriceTrID, params, &out); err != nil {
		return domain.DailyPrice{}, err
	}
	if out.RtCd != "0" || len(out.Output2) == 0 {
		return domain.DailyPrice{}, domain.ErrNoData
	}

	candle := out.Output2[0]
	return domain.DailyPrice{
		Code:  code,
		Date:  date,
		High:  parsePrice(candle.High),
		Low:   parsePrice(candle.Low),
		Open:  parsePrice(candle.Open),
		Close: parsePrice(candle.Close),
		EPS:   zeroIfEmpty(out.Output1.EPS),
		PBR:   zeroIfEmpty(out.Output1.PBR),
		PER:   zeroIfEmpty(out.Output1.PER),
	}, nil
}

func (k *KIS) get(ctx context.Context, path, trID string, params url.Values, out any) error {
	if err := k.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authorization", "Bearer "+k.creds.Current().Token)
	req.Header.Set("appkey", k.cfg.AppKey)
	req.Header.Set("appsecret", k.cfg.AppSecret)
	req.Header.Set("tr_id", trID)
	req.Header.Set("custtype", "P")

	resp, err := k.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.Transient("kis", err)
	}
	defer httpx.DrainAndClose(resp.Body)

	switch {
	case resp.StatusCode >= 500:
		// The brokerage reports an expired token as a server error.
		return fmt.Errorf("kis %s: status %d: %w", path, resp.StatusCode, domain.ErrCredentialExpired)
	case httpx.IsThrottleStatus(resp.StatusCode):
		return domain.Transient("kis", fmt.Errorf("%s: status %d", path, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return &domain.DataShapeError{Source: "kis", Reason: fmt.Sprintf("%s: unexpected status %d", path, resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.DataShapeError{Source: "kis", Reason: "undecodable response: " + err.Error()}
	}
	return nil
}

func parsePrice(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func zeroIfEmpty(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "0"
	}
	return s
}

// TokenSource issues fresh access tokens from the brokerage's OAuth endpoint.
type TokenSource struct {
	cfg   config.KISConfig
	httpc *http.Client
}

func NewTokenSource(cfg config.KISConfig) *TokenSource {
	return &TokenSource{cfg: cfg, httpc: &http.Client{Timeout: 30 * time.Second}}
}

func (t *TokenSource) FetchToken(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     t.cfg.AppKey,
		"appsecret":  t.cfg.AppSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+kisTokenPath, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer httpx.DrainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: status %d", resp.StatusCode)
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("token request: decode: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token request: empty access_token")
	}
	return out.AccessToken, nil
}
