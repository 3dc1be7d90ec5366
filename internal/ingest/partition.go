package ingest

import (
	"fmt"
	"iter"

	"github.com/stockelper/stockgraph/internal/domain"
)

// Partition splits pending into contiguous, order-preserving batches of at
// most size, yielded lazily so only one batch's bookkeeping is live at a
// time. The final batch may be smaller. An empty pending set yields nothing.
func Partition(pending []domain.EntityKey, size int) (iter.Seq2[int, []domain.EntityKey], error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: batch size must be at least 1, got %d", domain.ErrInvalidConfiguration, size)
	}
	return func(yield func(int, []domain.EntityKey) bool) {
		for i, off := 0, 0; off < len(pending); i, off = i+1, off+size {
			end := off + size
			if end > len(pending) {
				end = len(pending)
			}
			if !yield(i, pending[off:end]) {
				return
			}
		}
	}, nil
}

// BatchCount reports how many batches Partition will yield.
func BatchCount(total, size int) int {
	if total <= 0 || size < 1 {
		return 0
	}
	return (total + size - 1) / size
}
