package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ariel-frischer/stepflow/pkg/event"
)

// deadlineBackOff stops retrying once the deadline has passed.
type deadlineBackOff struct {
	backoff.BackOff
	deadline time.Time
	now      func() time.Time
	expired  bool
}

func (b *deadlineBackOff) NextBackOff() time.Duration {
	if !b.deadline.IsZero() && !b.now().Before(b.deadline) {
		b.expired = true
		return backoff.Stop
	}
	return b.BackOff.NextBackOff()
}

// retry runs attempts until one passes, the failure is not retryable, the retry count is
// spent, the deadline passes or ctx is cancelled. It returns the number of attempts made
// and the final error.
func (r *Runner[W]) retry(ctx context.Context, ps *PlannedScenario, tr *trace, log *zap.Logger) (int, error) {
	opts := ps.Retry
	count := max(opts.Count, 0)

	policy := &deadlineBackOff{
		BackOff:  backoff.NewConstantBackOff(opts.After),
		deadline: opts.Deadline,
		now:      r.now,
	}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(count)), ctx)

	var (
		attempts int
		lastErr  error
	)
	operation := func() error {
		// The deadline may have passed during the delay.
		if attempts > 0 && !opts.Deadline.IsZero() && !r.now().Before(opts.Deadline) {
			policy.expired = true
			return backoff.Permanent(lastErr)
		}
		attempts++
		if attempts > 1 {
			tr.add(event.Event{Type: event.RetryAttempted, Attempt: attempts, Err: lastErr, Time: r.now()})
		}

		lastErr = r.runAttempt(ctx, ps, attempts, tr)
		if lastErr != nil && !IsRetryable(lastErr) {
			return backoff.Permanent(lastErr)
		}
		return lastErr
	}
	notify := func(err error, wait time.Duration) {
		log.Info("retrying scenario",
			zap.Uint64("position", uint64(ps.Position)),
			zap.String("scenario", ps.Scenario.Name),
			zap.Int("attempt", attempts+1),
			zap.Duration("after", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(operation, b, notify)
	switch {
	case err == nil:
		return attempts, nil
	case errors.Is(lastErr, ErrCancelled):
		return attempts, lastErr
	}

	retriesLeft := IsRetryable(lastErr) && attempts <= count
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) && retriesLeft && !policy.expired {
		return attempts, fmt.Errorf("%w while waiting to retry: %w", ErrCancelled, lastErr)
	}
	if policy.expired && retriesLeft {
		return attempts, &DeadlineExceededError{Deadline: opts.Deadline, Attempts: attempts, Err: lastErr}
	}
	return attempts, lastErr
}
