package retry

import (
	"context"
	"errors"
	"time"

	"github.com/jpillora/backoff"
)

// Policy 재시도 정책
type Policy struct {
	MaxAttempts int           // total attempts including the first
	MinDelay    time.Duration // delay after the first failure
	MaxDelay    time.Duration
	Factor      float64
	Jitter      bool
}

// DefaultPolicy 5회, 1초부터 두 배씩
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		MinDelay:    time.Second,
		MaxDelay:    30 * time.Second,
		Factor:      2,
		Jitter:      true,
	}
}

func (p Policy) backoff() *backoff.Backoff {
	factor := p.Factor
	if factor < 1 {
		factor = 2
	}
	return &backoff.Backoff{
		Min:    p.MinDelay,
		Max:    p.MaxDelay,
		Factor: factor,
		Jitter: p.Jitter,
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Do runs op until it succeeds, returns a permanent error, the attempts are
// exhausted, or ctx is done. It returns the number of attempts made and the
// last error (permanent errors are unwrapped).
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b := p.backoff()

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return attempt, nil
		}

		var pe *permanentError
		if errors.As(err, &pe) {
			return attempt, pe.err
		}
		if attempt == maxAttempts {
			return attempt, err
		}

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-time.After(b.Duration()):
		}
	}
	return maxAttempts, err
}
