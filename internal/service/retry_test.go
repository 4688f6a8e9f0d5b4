package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryStorageGivesUpAfterBoundedAttempts(t *testing.T) {
	attempts := 0
	boom := errors.New("storage unavailable")
	err := retryStorage(context.Background(), time.Millisecond, func() error {
		attempts++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, storageRetryAttempts, attempts)
}

func TestRetryStorageStopsOnMissingRow(t *testing.T) {
	attempts := 0
	err := retryStorage(context.Background(), time.Millisecond, func() error {
		attempts++
		return pgx.ErrNoRows
	})
	require.ErrorIs(t, err, pgx.ErrNoRows)
	assert.Equal(t, 1, attempts, "a missing row is a domain outcome, not a fault to retry")
}

func TestRetryStorageSucceedsAfterTransientFault(t *testing.T) {
	attempts := 0
	err := retryStorage(context.Background(), time.Millisecond, func() error {
		attempts++
		if attempts == 1 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}
