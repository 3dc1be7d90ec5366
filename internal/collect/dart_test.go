package collect

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stockelper/stockgraph/internal/config"
	"github.com/stockelper/stockgraph/internal/domain"
	"github.com/stockelper/stockgraph/internal/platform/logger"
)

func TestQuarterCandidatesFollowFilingLag(t *testing.T) {
	cases := []struct {
		date string
		want []quarter
	}{
		{"20240215", []quarter{{2023, "11011", "4"}}},
		{"20240510", []quarter{{2024, "11013", "1"}, {2023, "11011", "4"}}},
		{"20240801", []quarter{{2024, "11012", "2"}, {2024, "11013", "1"}, {2023, "11011", "4"}}},
		{"20241120", []quarter{{2024, "11014", "3"}, {2024, "11012", "2"}, {2024, "11013", "1"}, {2023, "11011", "4"}}},
	}
	for _, c := range cases {
		got := quarterCandidates(c.date)
		if len(got) != len(c.want) {
			t.Fatalf("%s: expected %d candidates, got %d", c.date, len(c.want), len(got))
		}
		for i := range c.want {
			if got[i] != c.want[i] {
				t.Fatalf("%s candidate %d: expected %+v, got %+v", c.date, i, c.want[i], got[i])
			}
		}
	}
}

func TestStatementPrefersConsolidatedFigures(t *testing.T) {
	resp := &dartResponse{Status: dartStatusOK}
	resp.List = []struct {
		AccountName string `json:"account_nm"`
		FsName      string `json:"fs_nm"`
		Amount      string `json:"thstrm_amount"`
	}{
		{"매출액", fsStandalone, "1,000"},
		{"매출액", fsConsolidated, "2,000"},
		{"영업이익", fsStandalone, "300"},
	}

	fs := statementFromResponse("005930", quarter{2024, "11013", "1"}, resp)
	if fs.Revenue != 2000 {
		t.Fatalf("expected consolidated revenue 2000, got %d", fs.Revenue)
	}
	if fs.OperatingIncome != 300 {
		t.Fatalf("expected standalone fallback 300, got %d", fs.OperatingIncome)
	}
	if fs.Year != 2024 || fs.Quarter != "1" {
		t.Fatalf("expected period 2024 Q1, got %d Q%s", fs.Year, fs.Quarter)
	}
}

func TestParseAmountStripsSeparators(t *testing.T) {
	cases := map[string]int64{
		"1,234,567": 1234567,
		" 42 ":      42,
		"-1,000":    -1000,
		"":          0,
		"n/a":       0,
	}
	for in, want := range cases {
		if got := parseAmount(in); got != want {
			t.Fatalf("parseAmount(%q): expected %d, got %d", in, want, got)
		}
	}
}

func TestFinancialsWalksCandidatesUntilFiled(t *testing.T) {
	var years []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		years = append(years, r.URL.Query().Get("bsns_year")+"/"+r.URL.Query().Get("reprt_code"))
		if r.URL.Query().Get("reprt_code") != "11011" {
			json.NewEncoder(w).Encode(map[string]any{"status": dartStatusNoData, "message": "no data"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": dartStatusOK,
			"list": []map[string]string{
				{"account_nm": "매출액", "fs_nm": fsConsolidated, "thstrm_amount": "5,000"},
			},
		})
	}))
	defer srv.Close()

	d := NewDart(config.DartConfig{BaseURL: srv.URL, APIKey: "k"}, 0, logger.Nop())
	fs, err := d.Financials(context.Background(), "005930", "20240510")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.Revenue != 5000 || fs.Year != 2023 || fs.Quarter != "4" {
		t.Fatalf("expected annual 2023 filing, got %+v", fs)
	}
	if len(years) != 2 || years[0] != "2024/11013" || years[1] != "2023/11011" {
		t.Fatalf("expected Q1-then-annual walk, got %v", years)
	}
}

func TestFinancialsZeroStatementWhenNothingFiled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": dartStatusNoData, "message": "no data"})
	}))
	defer srv.Close()

	d := NewDart(config.DartConfig{BaseURL: srv.URL, APIKey: "k"}, 0, logger.Nop())
	fs, err := d.Financials(context.Background(), "005930", "20240215")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs == nil {
		t.Fatalf("expected a zero-valued statement, got nil")
	}
	if fs.Revenue != 0 || fs.Year != 2023 || fs.Quarter != "4" {
		t.Fatalf("expected zero statement for the oldest candidate, got %+v", fs)
	}
}

func TestFinancialsServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewDart(config.DartConfig{BaseURL: srv.URL, APIKey: "k"}, 0, logger.Nop())
	_, err := d.Financials(context.Background(), "005930", "20240510")
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	var te *domain.TransientError
	if !errors.As(err, &te) || te.Source != "dart" {
		t.Fatalf("expected dart as the source, got %v", err)
	}
}
