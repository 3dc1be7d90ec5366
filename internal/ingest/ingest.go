// Package ingest is the streaming ingestion orchestrator: it plans the run's
// work from the listing universe, deduplicates against what the graph already
// holds, partitions the pending set into bounded batches, and drives a
// per-entity collect→transform→persist pipeline with isolated failure
// handling, bounded retries, and credential refresh.
package ingest

import (
	"context"

	"github.com/stockelper/stockgraph/internal/domain"
)

// ListingSource provides the full entity universe, fetched once per run.
type ListingSource interface {
	Listings(ctx context.Context) ([]domain.CompanyListing, error)
}

// CompetitorSource provides the auxiliary competitor relationships, fetched
// once per run alongside the universe.
type CompetitorSource interface {
	Competitors(ctx context.Context) (map[domain.EntityKey][]domain.EntityKey, error)
}

// ProfileSource fetches the brokerage-side company record for one entity.
type ProfileSource interface {
	Profile(ctx context.Context, key domain.EntityKey) (domain.CompanyProfile, error)
}

// PriceSource fetches one trading day's prices for one entity.
type PriceSource interface {
	Price(ctx context.Context, key domain.EntityKey, date string) (domain.DailyPrice, error)
}

// FilingSource fetches the latest reportable financial statement for one
// entity as of a date.
type FilingSource interface {
	Financials(ctx context.Context, key domain.EntityKey, date string) (*domain.FinancialStatement, error)
}

// Sink is the graph store the orchestrator deduplicates against and writes
// into. UpsertStock must be idempotent: resume correctness depends on it.
type Sink interface {
	ExistingEntities(ctx context.Context) (map[domain.EntityKey]struct{}, error)
	ProcessedDates(ctx context.Context, key domain.EntityKey) (map[string]struct{}, error)
	UpsertStock(ctx context.Context, rec *domain.StockRecord) error
}

// State is a work item's lifecycle position.
type State int

const (
	Pending State = iota
	Skipped
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Skipped:
		return "skipped"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// WorkItem tracks one entity through the pipeline. It is created Pending by
// the batch loop and settled exactly once by the pipeline.
type WorkItem struct {
	Key   domain.EntityKey
	State State
	Err   error
}
