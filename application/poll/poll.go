// Package poll repeats a check on a fixed interval until it holds, fails or
// runs out of time.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrTimeout is returned when the condition did not hold before the timeout
var ErrTimeout = errors.New("poll: condition not met before timeout")

var errNotYet = errors.New("poll: condition not met")

// Condition reports whether the awaited state was reached. A non-nil error is
// fatal and ends polling.
type Condition func(ctx context.Context) (bool, error)

// Until checks cond immediately and then once per interval until it returns
// true or an error, or until timeout elapses. The pending tick is released on
// every return path. If ctx itself ends first its error is returned instead
// of ErrTimeout.
func Until(ctx context.Context, interval, timeout time.Duration, cond Condition) error {
	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	operation := func() error {
		done, err := cond(deadline)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errNotYet
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.NewConstantBackOff(interval), deadline))
	if err == nil {
		return nil
	}
	if errors.Is(err, errNotYet) || errors.Is(err, context.DeadlineExceeded) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTimeout
	}
	return err
}
