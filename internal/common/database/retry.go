package database

import (
	"context"
	"fmt"
	"time"

	"query-orchestrator/internal/common/errors"
	"query-orchestrator/internal/common/logger"
)

// ConnectWithRetry calls connect until it succeeds, doubling the delay after
// each failed attempt. Exhausting the attempts yields DATABASE_CONNECTION_FAILED.
func ConnectWithRetry(ctx context.Context, log logger.Logger, name string, maxAttempts int, initialDelay time.Duration, connect func(context.Context) error) error {
	var err error
	delay := initialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = connect(ctx); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		log.Warn(fmt.Sprintf("%s failed, retrying", name), map[string]interface{}{
			"error":       err.Error(),
			"attempt":     attempt,
			"maxAttempts": maxAttempts,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled after %d attempts: %w", name, attempt, ctx.Err())
		}
		delay *= 2
	}

	return errors.NewDatabaseConnectionFailedError(fmt.Errorf("%s failed after %d attempts: %w", name, maxAttempts, err))
}
