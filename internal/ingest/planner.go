package ingest

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/stockelper/stockgraph/internal/domain"
	"github.com/stockelper/stockgraph/internal/platform/logger"
)

// StaticData is the run-wide input collected once up front: the listing
// universe and the competitor map. Per-entity work only reads from it.
type StaticData struct {
	Listings    []domain.CompanyListing
	Competitors map[domain.EntityKey][]domain.EntityKey

	byCode map[domain.EntityKey]domain.CompanyListing
}

// Universe returns the entity keys in listing order. Order is what makes
// batch boundaries and progress output stable across runs.
func (s *StaticData) Universe() []domain.EntityKey {
	keys := make([]domain.EntityKey, 0, len(s.Listings))
	for _, l := range s.Listings {
		keys = append(keys, l.Code)
	}
	return keys
}

// Listing looks up one entity's listing row.
func (s *StaticData) Listing(key domain.EntityKey) (domain.CompanyListing, bool) {
	l, ok := s.byCode[key]
	return l, ok
}

// CompetitorsOf returns the competitor keys recorded for one entity, nil
// when none are known.
func (s *StaticData) CompetitorsOf(key domain.EntityKey) []domain.EntityKey {
	return s.Competitors[key]
}

// Planner performs the static collection phase. The listing universe is
// required: if it cannot be fetched after retries the whole run is
// unplannable. The competitor map is auxiliary and degrades to empty.
type Planner struct {
	Listings    ListingSource
	Competitors CompetitorSource
	Retry       RetryPolicy
	Log         *logger.Logger
}

// Plan fetches both static inputs concurrently and assembles the run's
// StaticData. A listing failure is returned wrapped in
// domain.ErrSourceUnavailable.
func (p *Planner) Plan(ctx context.Context) (*StaticData, error) {
	defer timeSpan(p.Log, "static collection")()

	var (
		listings    []domain.CompanyListing
		competitors map[domain.EntityKey][]domain.EntityKey
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Retry.Do(gctx, func(ctx context.Context) error {
			var err error
			listings, err = p.Listings.Listings(ctx)
			return err
		})
	})
	g.Go(func() error {
		comps, err := p.Competitors.Competitors(gctx)
		if err != nil {
			// Auxiliary input: the run proceeds without competitor edges.
			p.Log.Warn("competitor collection degraded", "error", err)
			comps = map[domain.EntityKey][]domain.EntityKey{}
		}
		competitors = comps
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("listing universe: %w", errors.Join(domain.ErrSourceUnavailable, err))
	}

	byCode := make(map[domain.EntityKey]domain.CompanyListing, len(listings))
	for _, l := range listings {
		byCode[l.Code] = l
	}

	p.Log.Info("static collection done", "listings", len(listings), "competitor_entries", len(competitors))
	return &StaticData{Listings: listings, Competitors: competitors, byCode: byCode}, nil
}
