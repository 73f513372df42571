// Package httputil provides retry helpers for the backend client.
//
// [Retry] wraps an operation with automatic retry for transient failures.
// Only errors wrapped in [RetryableError] are retried, so callers decide
// what is transient:
//
//   - Network errors
//   - 5xx server errors
//
// The delay doubles after every failed attempt, capped at [MaxDelay]:
//
//	err := httputil.Retry(ctx, 3, 500*time.Millisecond, func() error {
//	    return fetchLayout(ctx)
//	})
//
// Status polling never goes through Retry; a failed status query ends the
// poll.
package httputil
