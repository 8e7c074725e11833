package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/sellermetrics/position-tracker/internal/metrics"
)

// RetryPolicy bounds retries of transient fetch failures with linear
// backoff: attempt n waits BaseDelay*n before running.
type RetryPolicy struct {
	MaxRetries     int
	BaseDelay      time.Duration
	RequestTimeout time.Duration
}

// DefaultRetryPolicy returns the production retry settings.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		BaseDelay:      time.Second,
		RequestTimeout: 13 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.RequestTimeout <= 0 {
		p.RequestTimeout = 13 * time.Second
	}
	return p
}

// FetchWithRetry runs one page fetch under the policy. Transient errors are
// retried up to MaxRetries times; permanent errors and context cancellation
// return immediately. Once the budget is spent the last error is wrapped in
// ExhaustedError, which is fatal for the whole run that owns the page.
func FetchWithRetry(ctx context.Context, fetcher PageFetcher, policy RetryPolicy, request SearchRequest) ([]CatalogItem, error) {
	policy = policy.normalized()

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.IncFetchRetry()
			delay := policy.BaseDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		fetchCtx, cancel := context.WithTimeout(ctx, policy.RequestTimeout)
		items, err := fetcher.Fetch(fetchCtx, request)
		cancel()
		if err == nil {
			return items, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// The per-attempt deadline timing out is a timeout of this request
		// only; the next attempt gets a fresh budget.
		if !IsTransient(err) && !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		lastErr = err
	}

	return nil, &ExhaustedError{
		Page:     request.Page,
		Attempts: policy.MaxRetries,
		Err:      lastErr,
	}
}
