package ledger

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy bounds how a gateway retries transient storage failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Timeout applies to each attempt.
	Timeout time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	BaseDelay:   10 * time.Millisecond,
	Timeout:     5 * time.Second,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultRetryPolicy.Timeout
	}
	return p
}

// do runs fn until it succeeds, fails permanently, or the attempts run out. Each attempt gets
// its own timeout; the delay doubles between attempts. Exhausted transient failures are
// reported as ErrStorageUnavailable.
//
// Ledger errors returned by fn are final, including outcomeUnknown. A deadline is retried
// only when transient says so, so a gateway decides per call whether a timed-out attempt
// may run again.
func (p RetryPolicy) do(ctx context.Context, op string, transient func(error) bool, fn func(ctx context.Context) error) error {
	p = p.normalized()

	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.BaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return unavailable(op, ctx.Err())
			case <-time.After(delay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		err = fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return unavailable(op, err)
		}
		var le *Error
		if errors.As(err, &le) {
			return err
		}
		if !transient(err) {
			if errors.Is(err, context.DeadlineExceeded) {
				return unavailable(op, err)
			}
			return err
		}
	}
	return unavailable(op, err)
}
