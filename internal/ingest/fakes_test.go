package ingest

import (
	"context"

	"github.com/stockelper/stockgraph/internal/domain"
)

type fakeListings struct {
	listings []domain.CompanyListing
	errs     []error // consumed per call; nil entry means success
	calls    int
}

func (f *fakeListings) Listings(ctx context.Context) ([]domain.CompanyListing, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.listings, nil
}

type fakeCompetitors struct {
	m   map[domain.EntityKey][]domain.EntityKey
	err error
}

func (f *fakeCompetitors) Competitors(ctx context.Context) (map[domain.EntityKey][]domain.EntityKey, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.m, nil
}

type fakeProfiles struct {
	fn    func(key domain.EntityKey) (domain.CompanyProfile, error)
	calls int
}

func (f *fakeProfiles) Profile(ctx context.Context, key domain.EntityKey) (domain.CompanyProfile, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(key)
	}
	return domain.CompanyProfile{Code: key, Kospi200: "N", Sector: "제조업"}, nil
}

type fakePrices struct {
	fn    func(key domain.EntityKey, date string) (domain.DailyPrice, error)
	calls int
}

func (f *fakePrices) Price(ctx context.Context, key domain.EntityKey, date string) (domain.DailyPrice, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(key, date)
	}
	return domain.DailyPrice{Code: key, Date: date, Close: 100, EPS: "1", PBR: "1", PER: "1"}, nil
}

type fakeFilings struct {
	fn func(key domain.EntityKey, date string) (*domain.FinancialStatement, error)
}

func (f *fakeFilings) Financials(ctx context.Context, key domain.EntityKey, date string) (*domain.FinancialStatement, error) {
	if f.fn != nil {
		return f.fn(key, date)
	}
	return &domain.FinancialStatement{Code: key, Year: 2024, Quarter: "11011"}, nil
}

type fakeSink struct {
	existing  map[domain.EntityKey]struct{}
	dates     map[domain.EntityKey]map[string]struct{}
	upserts   []*domain.StockRecord
	upsertErr func(rec *domain.StockRecord) error
}

func (f *fakeSink) ExistingEntities(ctx context.Context) (map[domain.EntityKey]struct{}, error) {
	if f.existing == nil {
		return map[domain.EntityKey]struct{}{}, nil
	}
	return f.existing, nil
}

func (f *fakeSink) ProcessedDates(ctx context.Context, key domain.EntityKey) (map[string]struct{}, error) {
	if d, ok := f.dates[key]; ok {
		return d, nil
	}
	return map[string]struct{}{}, nil
}

func (f *fakeSink) UpsertStock(ctx context.Context, rec *domain.StockRecord) error {
	if f.upsertErr != nil {
		if err := f.upsertErr(rec); err != nil {
			return err
		}
	}
	f.upserts = append(f.upserts, rec)
	return nil
}

func listingsFor(keys ...domain.EntityKey) []domain.CompanyListing {
	out := make([]domain.CompanyListing, 0, len(keys))
	for _, k := range keys {
		out = append(out, domain.CompanyListing{Code: k, Name: "Company " + string(k), Market: "KOSPI"})
	}
	return out
}
