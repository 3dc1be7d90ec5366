package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stockelper/stockgraph/internal/dates"
	"github.com/stockelper/stockgraph/internal/domain"
	"github.com/stockelper/stockgraph/internal/platform/logger"
)

// Options select the run's pending-set policy and batch shape.
type Options struct {
	BatchSize int
	Dates     dates.Range

	// SkipExisting filters entities already in the sink out of the pending
	// set. Disabling it reprocesses the full universe.
	SkipExisting bool

	// UpdateOnly inverts the filter: only entities already in the sink are
	// processed, and only for their missing trading days.
	UpdateOnly bool
}

func (o Options) validate() error {
	if o.BatchSize < 1 {
		return fmt.Errorf("%w: batch size must be at least 1, got %d", domain.ErrInvalidConfiguration, o.BatchSize)
	}
	if o.UpdateOnly && !o.SkipExisting {
		return fmt.Errorf("%w: update-only cannot be combined with no-skip-existing", domain.ErrInvalidConfiguration)
	}
	return nil
}

// Orchestrator sequences a run: plan, resolve existing entities, partition,
// then drive the pipeline batch by batch. Entities are strictly sequential;
// memory stays bounded by the batch size.
type Orchestrator struct {
	Planner  *Planner
	Pipeline *Pipeline
	Sink     Sink
	Reporter ProgressReporter
	Opts     Options
	Log      *logger.Logger
}

// Run executes the full ingestion. It returns a non-nil error only when the
// run could not be planned; per-entity failures are absorbed into the stats.
// Cancellation is honored between entities and at batch boundaries.
func (o *Orchestrator) Run(ctx context.Context) (*RunStats, error) {
	if err := o.Opts.validate(); err != nil {
		return nil, err
	}

	log := o.Log.With("run_id", uuid.NewString())
	days := o.Opts.Dates.Days()
	log.Info("run starting", "dates", o.Opts.Dates.String(), "days", len(days), "batch_size", o.Opts.BatchSize,
		"skip_existing", o.Opts.SkipExisting, "update_only", o.Opts.UpdateOnly)
	defer timeSpan(log, "run")()

	static, err := o.Planner.Plan(ctx)
	if err != nil {
		return nil, err
	}
	universe := static.Universe()

	existing, err := o.Sink.ExistingEntities(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve existing entities: %w", err)
	}
	log.Info("existing entities resolved", "universe", len(universe), "existing", len(existing))

	pending := pendingSet(universe, existing, o.Opts)
	stats := NewRunStats()
	if o.Opts.SkipExisting && !o.Opts.UpdateOnly {
		stats.AddSkipped(len(universe) - len(pending))
	}

	batches, err := Partition(pending, o.Opts.BatchSize)
	if err != nil {
		return nil, err
	}
	total := BatchCount(len(pending), o.Opts.BatchSize)
	log.Info("work planned", "pending", len(pending), "batches", total)

	interrupted := false
	for i, batch := range batches {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		o.Reporter.BatchStarted(i+1, total, len(batch))
		spanDone := timeSpan(log, "batch", "batch", i+1, "batches", total)

		succeeded, failed := 0, 0
		for _, key := range batch {
			if ctx.Err() != nil {
				interrupted = true
				break
			}
			item := &WorkItem{Key: key}
			if o.Opts.UpdateOnly {
				o.Pipeline.ProcessUpdate(ctx, item, static, days)
			} else {
				o.Pipeline.Process(ctx, item, static, days)
			}
			stats.Settle(item)
			switch item.State {
			case Succeeded:
				succeeded++
			case Failed:
				failed++
			}
		}

		o.Reporter.BatchCompleted(i+1, total, succeeded, failed)
		spanDone()
		if interrupted {
			break
		}
	}
	if interrupted {
		log.Warn("run interrupted, remaining work abandoned")
	}

	o.Reporter.RunCompleted(stats)
	return stats, nil
}

// pendingSet applies the run's dedup policy to the universe, preserving
// listing order.
func pendingSet(universe []domain.EntityKey, existing map[domain.EntityKey]struct{}, opts Options) []domain.EntityKey {
	pending := make([]domain.EntityKey, 0, len(universe))
	for _, key := range universe {
		_, exists := existing[key]
		switch {
		case opts.UpdateOnly:
			if exists {
				pending = append(pending, key)
			}
		case !opts.SkipExisting:
			pending = append(pending, key)
		default:
			if !exists {
				pending = append(pending, key)
			}
		}
	}
	return pending
}
