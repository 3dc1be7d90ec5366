package ingest

import (
	"time"

	"github.com/stockelper/stockgraph/internal/platform/logger"
)

// timeSpan logs the start of a named span and returns a func that logs the
// elapsed time. Call it with defer so the duration is recorded on error
// exits too.
func timeSpan(log *logger.Logger, name string, kv ...any) func() {
	start := time.Now()
	fields := append([]any{"span", name}, kv...)
	log.Info("span started", fields...)
	return func() {
		done := append(fields, "elapsed", time.Since(start).Round(time.Millisecond).String())
		log.Info("span finished", done...)
	}
}
