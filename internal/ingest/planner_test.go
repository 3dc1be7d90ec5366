package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stockelper/stockgraph/internal/domain"
	"github.com/stockelper/stockgraph/internal/platform/logger"
)

func testPlanner(listings ListingSource, comps CompetitorSource) *Planner {
	return &Planner{
		Listings:    listings,
		Competitors: comps,
		Retry:       RetryPolicy{Sleep: func(context.Context, time.Duration) error { return nil }},
		Log:         logger.Nop(),
	}
}

func TestPlanBuildsUniverseInListingOrder(t *testing.T) {
	p := testPlanner(
		&fakeListings{listings: listingsFor("005930", "000660", "035420")},
		&fakeCompetitors{m: map[domain.EntityKey][]domain.EntityKey{"005930": {"000660"}}},
	)

	static, err := p.Plan(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	universe := static.Universe()
	want := []domain.EntityKey{"005930", "000660", "035420"}
	if len(universe) != len(want) {
		t.Fatalf("expected %d entities, got %d", len(want), len(universe))
	}
	for i := range want {
		if universe[i] != want[i] {
			t.Fatalf("universe[%d]: expected %s, got %s", i, want[i], universe[i])
		}
	}
	if l, ok := static.Listing("000660"); !ok || l.Code != "000660" {
		t.Fatalf("expected listing lookup to resolve, got %+v ok=%v", l, ok)
	}
	if comps := static.CompetitorsOf("005930"); len(comps) != 1 || comps[0] != "000660" {
		t.Fatalf("expected competitors [000660], got %v", comps)
	}
}

func TestPlanRetriesListingFetch(t *testing.T) {
	listings := &fakeListings{
		listings: listingsFor("005930"),
		errs:     []error{domain.Transient("krx", errors.New("status 503")), nil},
	}
	p := testPlanner(listings, &fakeCompetitors{})

	static, err := p.Plan(context.Background())
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if listings.calls != 2 {
		t.Fatalf("expected 2 listing calls, got %d", listings.calls)
	}
	if len(static.Listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(static.Listings))
	}
}

func TestPlanListingFailureIsFatal(t *testing.T) {
	boom := domain.Transient("krx", errors.New("connection refused"))
	p := testPlanner(&fakeListings{errs: []error{boom, boom, boom}}, &fakeCompetitors{})

	_, err := p.Plan(context.Background())
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected source unavailable, got %v", err)
	}
}

func TestPlanCompetitorFailureDegradesToEmpty(t *testing.T) {
	p := testPlanner(
		&fakeListings{listings: listingsFor("005930")},
		&fakeCompetitors{err: errors.New("server selection timeout")},
	)

	static, err := p.Plan(context.Background())
	if err != nil {
		t.Fatalf("competitor failure must not fail the plan, got %v", err)
	}
	if len(static.Competitors) != 0 {
		t.Fatalf("expected empty competitor map, got %v", static.Competitors)
	}
	if static.CompetitorsOf("005930") != nil {
		t.Fatalf("expected nil competitors for any entity")
	}
}
