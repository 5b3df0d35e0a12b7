package settlement

import (
	"context"
	"time"

	"github.com/vitwit/htlcbridge/clients"
	"github.com/vitwit/htlcbridge/metrics"
	"github.com/vitwit/htlcbridge/types"
)

// call runs fn under the call timeout and repeats it while it fails with a
// retryable error, up to retryCount extra attempts.
func (s *settings) call(ctx context.Context, role types.ChainRole, op string, fn func(context.Context) error) error {
	return s.attempt(ctx, role, op, s.retryCount, fn)
}

// callOnce runs fn a single time. Used for calls that are not idempotent.
func (s *settings) callOnce(ctx context.Context, role types.ChainRole, op string, fn func(context.Context) error) error {
	return s.attempt(ctx, role, op, 0, fn)
}

func (s *settings) attempt(ctx context.Context, role types.ChainRole, op string, retries int, fn func(context.Context) error) error {
	labels := map[string]string{metrics.LabelChain: role.String()}
	backoff := s.retryBackoff

	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		start := time.Now()
		err := fn(callCtx)
		cancel()
		s.metrics.ObserveLatency(op, time.Since(start), labels)

		if err == nil || !clients.IsRetryable(err) || attempt >= retries {
			return err
		}

		s.logger.Warn("contract call failed, retrying", map[string]any{
			"chain":   role.String(),
			"op":      op,
			"attempt": attempt + 1,
			"backoff": backoff.String(),
			"error":   err,
		})

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return err
		}
		backoff *= 2
	}
}
