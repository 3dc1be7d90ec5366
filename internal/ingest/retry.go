package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/stockelper/stockgraph/internal/domain"
)

const (
	DefaultMaxAttempts   = 3
	DefaultBackoffBase   = time.Second
	DefaultBackoffFactor = 3
)

// RetryPolicy bounds transient-failure retries for a single pipeline step.
// Sleep and Refresh are injectable so tests can observe delays and refresh
// counts without waiting.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      int

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Refresh renews the expired credential before the failed attempt is
	// rerun. Nil disables credential handling.
	Refresh func(ctx context.Context) error
}

// Do runs fn up to MaxAttempts times. Transient and credential-expiry errors
// are retried after an exponential backoff; the backoff runs after every
// failed attempt, the last included, before the error settles. A credential
// expiry triggers at most one refresh-and-rerun within the attempt that
// observed it. All other errors return immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = DefaultMaxAttempts
	}
	base := p.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	factor := p.Factor
	if factor < 1 {
		factor = DefaultBackoffFactor
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	delay := base
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err != nil && errors.Is(err, domain.ErrCredentialExpired) && p.Refresh != nil {
			if rerr := p.Refresh(ctx); rerr == nil {
				err = fn(ctx)
			}
		}
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if serr := sleep(ctx, delay); serr != nil {
			return serr
		}
		delay *= time.Duration(factor)
	}
	return err
}

func retryable(err error) bool {
	return domain.IsTransient(err) || errors.Is(err, domain.ErrCredentialExpired)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
