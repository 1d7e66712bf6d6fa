// Package retry runs an operation again after a backoff when it fails with a
// retryable error.
//
// The reply path uses it with a single long cooldown:
//
//	err := retry.Do(ctx, func() error {
//		return forum.Reply(ctx, sub.Fullname(), text)
//	}, &retry.Config{
//		MaxAttempts: 2,
//		Backoff:     &retry.ConstantBackoff{Delay: 650 * time.Second},
//		RetryIf:     errors.IsRateLimit,
//	})
//
// Sleep can be replaced in tests to record delays instead of waiting them out.
package retry
