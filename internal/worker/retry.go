package worker

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// retryUntilDone calls op until it succeeds or ctx ends. Errors permanent
// reports true for are returned at once. The wait between attempts starts at initial and doubles up to
// maxBackoff. When ctx ends the message stays uncommitted and is redelivered
// to the next consumer of the partition.
func retryUntilDone(ctx context.Context, initial time.Duration, permanent func(error) bool, op func(attempt int) error) error {
	wait := initial
	for attempt := 1; ; attempt++ {
		err := op(attempt)
		if err == nil || (permanent != nil && permanent(err)) {
			return err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: last attempt: %v", ctx.Err(), err)
		case <-time.After(wait):
		}
		wait = min(wait*2, maxBackoff)
	}
}
