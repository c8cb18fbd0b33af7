// Package retry provides exponential backoff for transient failures.
//
// Two usage styles are supported. Do runs a closure under a full retry
// loop:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return negotiator.Ping(ctx)
//	})
//
// Components that own their retry loop (the reconnection supervisor resets
// its attempt counter on successful delivery, which Do cannot express) use
// DelayForAttempt/Sleep to share the same backoff curve:
//
//	if err := cfg.Sleep(ctx, attempt); err != nil {
//	    return err // cancelled during backoff
//	}
//
// Errors wrapped with NonRetryable fail immediately regardless of the
// remaining attempt budget.
package retry
