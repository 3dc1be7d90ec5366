package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stockelper/stockgraph/internal/domain"
)

func recordingSleep(delays *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetryTransientExhaustsAttempts(t *testing.T) {
	var delays []time.Duration
	policy := RetryPolicy{Sleep: recordingSleep(&delays)}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return domain.Transient("kis", errors.New("connection reset"))
	})
	if err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
	if !domain.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}

	want := []time.Duration{time.Second, 3 * time.Second, 9 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %d: %v", len(want), len(delays), delays)
	}
	var total time.Duration
	for i, d := range delays {
		if d != want[i] {
			t.Fatalf("sleep %d: expected %v, got %v", i, want[i], d)
		}
		total += d
	}
	if total != 13*time.Second {
		t.Fatalf("expected 13s total backoff, got %v", total)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	policy := RetryPolicy{Sleep: recordingSleep(&delays)}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return domain.Transient("krx", errors.New("status 503"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	want := []time.Duration{time.Second, 3 * time.Second}
	if len(delays) != 2 || delays[0] != want[0] || delays[1] != want[1] {
		t.Fatalf("expected sleeps %v, got %v", want, delays)
	}
}

func TestRetryNonRetryableReturnsImmediately(t *testing.T) {
	var delays []time.Duration
	policy := RetryPolicy{Sleep: recordingSleep(&delays)}

	calls := 0
	shapeErr := &domain.DataShapeError{Source: "dart", Reason: "undecodable response"}
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return shapeErr
	})
	if !domain.IsDataShape(err) {
		t.Fatalf("expected data shape error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
	if len(delays) != 0 {
		t.Fatalf("expected no sleeps, got %v", delays)
	}
}

func TestRetryRefreshesCredentialOncePerAttempt(t *testing.T) {
	var delays []time.Duration
	refreshes := 0
	policy := RetryPolicy{
		Sleep: recordingSleep(&delays),
		Refresh: func(ctx context.Context) error {
			refreshes++
			return nil
		},
	}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return domain.ErrCredentialExpired
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after refresh, got %v", err)
	}
	if refreshes != 1 {
		t.Fatalf("expected exactly one refresh, got %d", refreshes)
	}
	// The rerun happens inside the first attempt, so nothing slept.
	if calls != 2 || len(delays) != 0 {
		t.Fatalf("expected rerun within the attempt, calls=%d sleeps=%v", calls, delays)
	}
}

func TestRetryExpiryBoundedByAttemptCeiling(t *testing.T) {
	var delays []time.Duration
	refreshes := 0
	policy := RetryPolicy{
		Sleep: recordingSleep(&delays),
		Refresh: func(ctx context.Context) error {
			refreshes++
			return nil
		},
	}

	calls := 0
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return domain.ErrCredentialExpired
	})
	if !errors.Is(err, domain.ErrCredentialExpired) {
		t.Fatalf("expected credential expiry to settle, got %v", err)
	}
	// 3 attempts, each refreshing once and rerunning once.
	if refreshes != 3 {
		t.Fatalf("expected 3 refreshes, got %d", refreshes)
	}
	if calls != 6 {
		t.Fatalf("expected 6 calls (rerun per attempt), got %d", calls)
	}
	if len(delays) != 3 {
		t.Fatalf("expected 3 sleeps, got %v", delays)
	}
}

func TestRetryStopsWhenContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}

	calls := 0
	err := policy.Do(ctx, func(ctx context.Context) error {
		calls++
		return domain.Transient("kis", errors.New("timeout"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected no further attempts after cancellation, got %d", calls)
	}
}
