package ai

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"time"
)

// Backoff holds the retry knobs shared by every runtime. Attempts counts the
// first call, so 1 means no retry.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

func (b Backoff) withDefaults(base, max time.Duration) Backoff {
	if b.Attempts <= 0 {
		b.Attempts = 1
	}
	if b.Base <= 0 {
		b.Base = base
	}
	if b.Max <= 0 {
		b.Max = max
	}
	return b
}

// retry calls fn until it succeeds, fails with a non-retryable error or the
// attempts run out. A RateLimitError carrying Retry-After overrides the
// computed delay.
func (b Backoff) retry(ctx context.Context, fn func() error) error {
	delay := b.Base
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn()
		if err == nil || attempt >= b.Attempts || !retryable(err) {
			return err
		}
		wait := withJitter(delay)
		if b.Max > 0 && wait > b.Max {
			wait = b.Max
		}
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			wait = rl.RetryAfter
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		delay *= 2
	}
}

func retryable(err error) bool {
	var tmp interface{ transient() bool }
	if errors.As(err, &tmp) && tmp.transient() {
		return true
	}
	return isRetryableNetErr(err)
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	// EOF or connection reset
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	// jitter factor in [0.8, 1.2)
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
