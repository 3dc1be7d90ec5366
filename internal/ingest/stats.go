package ingest

import (
	"fmt"
	"sync"

	"github.com/stockelper/stockgraph/internal/domain"
)

// RunStats aggregates settled work item outcomes across the run. Processed
// counts every item that reached a terminal success or failure; skipped items
// never entered the pipeline (or had nothing left to do in update mode).
type RunStats struct {
	mu         sync.Mutex
	processed  int
	succeeded  int
	failed     int
	skipped    int
	failedKeys []domain.EntityKey
}

func NewRunStats() *RunStats {
	return &RunStats{}
}

// Settle records a work item's terminal state. Items still Pending are
// ignored; an interrupted run leaves its in-flight items uncounted.
func (s *RunStats) Settle(item *WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch item.State {
	case Succeeded:
		s.processed++
		s.succeeded++
	case Failed:
		s.processed++
		s.failed++
		s.failedKeys = append(s.failedKeys, item.Key)
	case Skipped:
		s.skipped++
	}
}

// AddSkipped accounts for entities the planner filtered out before
// partitioning.
func (s *RunStats) AddSkipped(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped += n
}

func (s *RunStats) Processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed
}

func (s *RunStats) Succeeded() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.succeeded
}

func (s *RunStats) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

func (s *RunStats) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// FailedKeys returns the failed entity keys in the order they settled.
func (s *RunStats) FailedKeys() []domain.EntityKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EntityKey, len(s.failedKeys))
	copy(out, s.failedKeys)
	return out
}

func (s *RunStats) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("processed=%d succeeded=%d failed=%d skipped=%d",
		s.processed, s.succeeded, s.failed, s.skipped)
}
