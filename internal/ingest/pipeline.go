package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/stockelper/stockgraph/internal/domain"
	"github.com/stockelper/stockgraph/internal/platform/logger"
)

// Pipeline runs one entity through collect → transform → persist. Each
// remote step is individually retried under the policy; a step that settles
// failed fails the whole item, and the failure never escapes the item.
type Pipeline struct {
	Profiles ProfileSource
	Prices   PriceSource
	Filings  FilingSource
	Sink     Sink
	Retry    RetryPolicy
	Reporter ProgressReporter
	Log      *logger.Logger
}

// Process collects the full record for one entity over days and upserts it.
// The item settles Succeeded or Failed; it is never left Pending.
func (p *Pipeline) Process(ctx context.Context, item *WorkItem, static *StaticData, days []string) {
	p.Reporter.EntityCollecting(item.Key)

	rec, err := p.collect(ctx, item.Key, static, days)
	if err == nil {
		err = p.persist(ctx, rec)
	}
	p.settle(item, err)
}

// ProcessUpdate refreshes only the trading days the sink is missing for an
// already-ingested entity. Entities with a complete date series settle
// Skipped.
func (p *Pipeline) ProcessUpdate(ctx context.Context, item *WorkItem, static *StaticData, days []string) {
	have, err := p.Sink.ProcessedDates(ctx, item.Key)
	if err != nil {
		p.settle(item, fmt.Errorf("processed dates: %w", err))
		return
	}

	missing := make([]string, 0, len(days))
	for _, d := range days {
		if _, ok := have[d]; !ok {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		item.State = Skipped
		p.Reporter.EntitySkipped(item.Key, "all dates present")
		return
	}

	p.Reporter.EntityCollecting(item.Key)

	listing, ok := static.Listing(item.Key)
	if !ok {
		p.settle(item, &domain.DataShapeError{Source: "krx", Reason: "entity missing from listing universe"})
		return
	}
	prices, err := p.collectPrices(ctx, item.Key, missing)
	if err != nil {
		p.settle(item, err)
		return
	}
	rec := &domain.StockRecord{Listing: listing, Prices: prices, PricesOnly: true}
	p.settle(item, p.persist(ctx, rec))
}

func (p *Pipeline) settle(item *WorkItem, err error) {
	if err != nil {
		item.State = Failed
		item.Err = err
		p.Reporter.EntityFailed(item.Key, err)
		return
	}
	item.State = Succeeded
	p.Reporter.EntitySucceeded(item.Key)
}

func (p *Pipeline) collect(ctx context.Context, key domain.EntityKey, static *StaticData, days []string) (*domain.StockRecord, error) {
	listing, ok := static.Listing(key)
	if !ok {
		return nil, &domain.DataShapeError{Source: "krx", Reason: "entity missing from listing universe"}
	}

	var profile domain.CompanyProfile
	err := p.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		profile, err = p.Profiles.Profile(ctx, key)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrNoData):
		profile = domain.PlaceholderProfile(key)
	case err != nil:
		return nil, fmt.Errorf("profile: %w", err)
	}

	prices, err := p.collectPrices(ctx, key, days)
	if err != nil {
		return nil, err
	}

	var fin *domain.FinancialStatement
	err = p.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		fin, err = p.Filings.Financials(ctx, key, days[len(days)-1])
		return err
	})
	switch {
	case errors.Is(err, domain.ErrNoData):
		fin = nil
	case err != nil:
		return nil, fmt.Errorf("financials: %w", err)
	}

	return buildRecord(listing, profile, prices, fin, static.CompetitorsOf(key))
}

func (p *Pipeline) collectPrices(ctx context.Context, key domain.EntityKey, days []string) ([]domain.DailyPrice, error) {
	prices := make([]domain.DailyPrice, 0, len(days))
	for _, day := range days {
		var price domain.DailyPrice
		err := p.Retry.Do(ctx, func(ctx context.Context) error {
			var err error
			price, err = p.Prices.Price(ctx, key, day)
			return err
		})
		switch {
		case errors.Is(err, domain.ErrNoData):
			price = domain.PlaceholderPrice(key, day)
		case err != nil:
			return nil, fmt.Errorf("price %s: %w", day, err)
		}
		prices = append(prices, price)
	}
	return prices, nil
}

// buildRecord is the pure transform step: it merges the collected pieces
// into the sink record and validates shape before anything is written.
func buildRecord(listing domain.CompanyListing, profile domain.CompanyProfile, prices []domain.DailyPrice, fin *domain.FinancialStatement, competitors []domain.EntityKey) (*domain.StockRecord, error) {
	if listing.Code == "" {
		return nil, &domain.DataShapeError{Source: "krx", Reason: "listing row without a stock code"}
	}
	if profile.Sector == "" {
		return nil, &domain.DataShapeError{Source: "kis", Reason: "profile without a sector"}
	}
	for _, pr := range prices {
		if pr.Date == "" {
			return nil, &domain.DataShapeError{Source: "kis", Reason: "price row without a date"}
		}
	}
	return &domain.StockRecord{
		Listing:     listing,
		Profile:     profile,
		Prices:      prices,
		Financials:  fin,
		Competitors: competitors,
	}, nil
}

func (p *Pipeline) persist(ctx context.Context, rec *domain.StockRecord) error {
	err := p.Retry.Do(ctx, func(ctx context.Context) error {
		return p.Sink.UpsertStock(ctx, rec)
	})
	if err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}
