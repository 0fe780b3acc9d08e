package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

// Policy is a bounded exponential backoff: the wait before attempt n (n >= 2)
// is Base * 2^(n-2) plus up to Jitter of that, capped at Max.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
	Jitter      float64
	Logger      *logger_i.Logger
	// sleep is swapped in tests
	sleep func(ctx context.Context, d time.Duration) error
}

func (p Policy) WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = sleep
	return p
}

func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 2 || p.Base <= 0 {
		return 0
	}
	d := p.Base << (attempt - 2)
	if p.Max > 0 && d > p.Max {
		d = p.Max
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Float64() * p.Jitter * float64(d))
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. It returns the last error and the attempts made.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context, attempt int) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := p.Delay(attempt)
			if p.Logger != nil {
				p.Logger.Warn("retrying", "attempt", attempt, "backoff", wait, "error", err)
			}
			if sleepErr := sleep(ctx, wait); sleepErr != nil {
				return attempt - 1, err
			}
		}
		err = fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		if !retryable(err) {
			return attempt, err
		}
	}
	return attempts, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
