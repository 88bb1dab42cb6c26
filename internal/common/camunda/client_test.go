package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "query-orchestrator/internal/common/errors"

	"github.com/stretchr/testify/assert"
)

func TestExecuteWithRetry(t *testing.T) {
	c := &Client{config: &ClientConfig{RetryConfig: &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}}}

	t.Run("transient then success", func(t *testing.T) {
		calls := 0
		err := c.ExecuteWithRetry(context.Background(), "publish", func(context.Context) error {
			calls++
			if calls == 1 {
				return errors.New("rpc error: code = Unavailable")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("permanent error is not retried", func(t *testing.T) {
		calls := 0
		err := c.ExecuteWithRetry(context.Background(), "publish", func(context.Context) error {
			calls++
			return errors.New("invalid argument")
		})
		assert.Equal(t, 1, calls)
		assert.Equal(t, apperrors.ErrCodeOperationFailed, apperrors.CodeOf(err))
	})

	t.Run("deadline maps to timeout", func(t *testing.T) {
		err := c.ExecuteWithRetry(context.Background(), "publish", func(context.Context) error {
			return errors.New("context deadline exceeded")
		})
		assert.Equal(t, apperrors.ErrCodeOperationTimeout, apperrors.CodeOf(err))
	})
}

func TestRetry_NilConfigUsesDefaults(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), nil, "complete-job", func(context.Context) error {
		calls++
		return errors.New("not found")
	})
	assert.Equal(t, 1, calls)
	assert.Equal(t, apperrors.ErrCodeOperationFailed, apperrors.CodeOf(err))
}

func TestRetry_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := &RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	err := Retry(ctx, cfg, "complete-job", func(context.Context) error {
		calls++
		cancel()
		return errors.New("connection reset by peer")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
