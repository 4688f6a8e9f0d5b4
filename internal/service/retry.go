package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

const storageRetryAttempts = 3

// retryStorage re-runs an atomic storage write on infrastructure faults,
// backing off exponentially between attempts. Missing rows are a domain
// outcome, not an infrastructure fault, and surface immediately. The write
// must be all-or-nothing so that a retry after a failed attempt never
// duplicates state.
func retryStorage(ctx context.Context, backoff time.Duration, op func() error) error {
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}
	var err error
	for attempt := 0; attempt < storageRetryAttempts; attempt++ {
		err = op()
		if err == nil || errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if attempt == storageRetryAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(backoff << attempt):
		}
	}
	return err
}
