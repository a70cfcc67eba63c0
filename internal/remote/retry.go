package remote

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

const (
	// DefaultAttempts is the number of tries before Retry gives up.
	DefaultAttempts = 3

	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 5 * time.Second
)

// Policy controls how [Retry] spaces its attempts.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration // starting backoff interval, before jitter
	MaxDelay  time.Duration // cap on the backoff interval
}

// DefaultPolicy returns a 3-attempt policy starting at 500ms, capped at 5s.
func DefaultPolicy() Policy {
	return Policy{Attempts: DefaultAttempts, BaseDelay: defaultBaseDelay, MaxDelay: defaultMaxDelay}
}

// Retry executes fn up to p.Attempts times with exponential backoff and
// jitter. Errors that report Transient() == false end the loop at once.
// It returns nil on the first successful call, or a wrapped error
// containing the last failure.
func Retry(ctx context.Context, p Policy, fn func() error) error {
	attempts := max(p.Attempts, 1)

	var lastErr error
	for attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if permanent(lastErr) {
			return lastErr
		}

		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(p.backoffDelay(attempt)):
			}
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}

func permanent(err error) bool {
	var t interface{ Transient() bool }
	return errors.As(err, &t) && !t.Transient()
}

// backoffDelay computes the delay for a given attempt index, applying
// exponential growth with 50–100 % jitter.
func (p Policy) backoffDelay(attempt int) time.Duration {
	base, limit := p.BaseDelay, p.MaxDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	if limit <= 0 {
		limit = defaultMaxDelay
	}

	delay := base * (1 << min(attempt, 30))
	if delay > limit || delay <= 0 {
		delay = limit
	}
	if delay < 2 {
		return delay
	}
	// Jitter: uniform in [delay/2, delay).
	jitter := time.Duration(rand.Int63n(int64(delay) / 2)) //nolint:gosec // jitter does not need crypto/rand
	return delay/2 + jitter
}
