package errors

import (
	"context"
	"errors"
	"time"
)

// Backoff controls Retry. Zero fields take the DefaultBackoff values.
type Backoff struct {
	Attempts int
	// Delay is the wait after the first failure; it doubles per attempt.
	Delay time.Duration
	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultBackoff suits remote cache round-trips.
var DefaultBackoff = Backoff{Attempts: 3, Delay: 200 * time.Millisecond}

type transient struct{ err error }

func (t *transient) Error() string { return t.err.Error() }
func (t *transient) Unwrap() error { return t.err }

// Transient marks err as worth retrying: a dropped connection to a cache
// backend, a 5xx or 429 from an input URL. The code of err is preserved.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transient{err: err}
}

// IsTransient reports whether err was marked by Transient.
func IsTransient(err error) bool {
	return errors.As(err, new(*transient))
}

// Retry calls fn until it succeeds, fails with an error that is not
// transient, or runs out of attempts. The last error is returned with the
// transient mark removed. A done ctx stops the wait with a TIMEOUT error.
func Retry(ctx context.Context, b Backoff, fn func() error) error {
	if b.Attempts <= 0 {
		b.Attempts = DefaultBackoff.Attempts
	}
	if b.Delay <= 0 {
		b.Delay = DefaultBackoff.Delay
	}

	delay := b.Delay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var t *transient
		if !errors.As(err, &t) {
			return err
		}
		if attempt == b.Attempts {
			return t.err
		}
		if b.OnRetry != nil {
			b.OnRetry(attempt, t.err, delay)
		}
		select {
		case <-ctx.Done():
			return Wrap(ErrCodeTimeout, ctx.Err(), "retry abandoned after %d attempts: %v", attempt, t.err)
		case <-time.After(delay):
			delay *= 2
		}
	}
}
