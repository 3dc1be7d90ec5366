package ingest

import (
	"github.com/stockelper/stockgraph/internal/domain"
	"github.com/stockelper/stockgraph/internal/platform/logger"
)

// ProgressReporter receives per-entity and per-batch lifecycle events as the
// run advances.
type ProgressReporter interface {
	BatchStarted(index, total, size int)
	BatchCompleted(index, total, succeeded, failed int)
	EntityCollecting(key domain.EntityKey)
	EntitySkipped(key domain.EntityKey, reason string)
	EntitySucceeded(key domain.EntityKey)
	EntityFailed(key domain.EntityKey, err error)
	RunCompleted(stats *RunStats)
}

// LogReporter emits progress as structured log lines.
type LogReporter struct {
	log *logger.Logger
}

func NewLogReporter(log *logger.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) BatchStarted(index, total, size int) {
	r.log.Info("batch started", "batch", index, "batches", total, "size", size)
}

func (r *LogReporter) BatchCompleted(index, total, succeeded, failed int) {
	r.log.Info("batch completed", "batch", index, "batches", total, "succeeded", succeeded, "failed", failed)
}

func (r *LogReporter) EntityCollecting(key domain.EntityKey) {
	r.log.Info("collecting", "code", key)
}

func (r *LogReporter) EntitySkipped(key domain.EntityKey, reason string) {
	r.log.Info("skipped", "code", key, "reason", reason)
}

func (r *LogReporter) EntitySucceeded(key domain.EntityKey) {
	r.log.Info("stored", "code", key)
}

func (r *LogReporter) EntityFailed(key domain.EntityKey, err error) {
	r.log.Error("failed", "code", key, "error", err)
}

func (r *LogReporter) RunCompleted(stats *RunStats) {
	r.log.Info("run completed",
		"processed", stats.Processed(),
		"succeeded", stats.Succeeded(),
		"failed", stats.Failed(),
		"skipped", stats.Skipped(),
	)
	if keys := stats.FailedKeys(); len(keys) > 0 {
		r.log.Warn("failed entities", "codes", keys)
	}
}

// NopReporter discards all events.
type NopReporter struct{}

func (NopReporter) BatchStarted(int, int, int)             {}
func (NopReporter) BatchCompleted(int, int, int, int)      {}
func (NopReporter) EntityCollecting(domain.EntityKey)      {}
func (NopReporter) EntitySkipped(domain.EntityKey, string) {}
func (NopReporter) EntitySucceeded(domain.EntityKey)       {}
func (NopReporter) EntityFailed(domain.EntityKey, error)   {}
func (NopReporter) RunCompleted(*RunStats)                 {}
