package storage

import (
	"context"
	"time"
)

// retryWithBackoff wraps a tier call with exponential backoff: initial 500ms,
// multiplier 1.5, capped at 30s. It is the storage layer's only retry path —
// tier drivers themselves must not retry silently — and the ingestion
// pipeline's writeWithRetry retries the whole write around it. Retries stop
// once the context is done.
func retryWithBackoff(ctx context.Context, fn func() error) error {
	const (
		initial     = 500 * time.Millisecond
		multiplier  = 1.5
		capDelay    = 30 * time.Second
		maxAttempts = 6
	)

	delay := initial
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * multiplier)
		if delay > capDelay {
			delay = capDelay
		}
	}
	return err
}
