package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestPingWithRetry(t *testing.T) {
	t.Run("retries transient failures", func(t *testing.T) {
		calls := 0
		err := pingWithRetry(func(context.Context) error {
			calls++
			if calls < 3 {
				return &pgconn.PgError{Code: "08006"}
			}
			return nil
		}, 5, 0)

		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up on permanent errors", func(t *testing.T) {
		calls := 0
		boom := errors.New("password authentication failed")
		err := pingWithRetry(func(context.Context) error {
			calls++
			return boom
		}, 5, 0)

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("returns last error after all attempts", func(t *testing.T) {
		calls := 0
		err := pingWithRetry(func(context.Context) error {
			calls++
			return context.DeadlineExceeded
		}, 3, 0)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 3, calls)
	})
}
