package generation

import (
	"context"
	"time"

	pkgerrors "kynto-backend/pkg/errors"
)

// RetryPolicy retries rate-limited provider calls with a linear,
// attempt-indexed delay (base, 2×base, 3×base, ...). The schedule is
// deliberately linear rather than exponential; the upstream provider's
// rate windows recover on that scale.
type RetryPolicy struct {
	// MaxAttempts is the number of retries after the initial call
	MaxAttempts int
	// BaseDelay is multiplied by the retry number to produce each wait
	BaseDelay time.Duration

	// sleep is injectable for tests
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy matches the provider's observed recovery behavior
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

// WithSleep returns a copy of the policy using the given sleep function
func (p RetryPolicy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) RetryPolicy {
	p.sleep = sleep
	return p
}

// Do runs fn, retrying only rate-limited failures. Any other failure
// propagates immediately. After exhausting MaxAttempts retries the last
// rate-limit error is returned. Attempts are serialized, never concurrent.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for retry := 0; ; retry++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !pkgerrors.IsRateLimit(err) {
			return err
		}
		if retry >= p.MaxAttempts {
			return err
		}

		delay := p.BaseDelay * time.Duration(retry+1)
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
	}
}

// sleepContext waits for d or until the context is cancelled
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
