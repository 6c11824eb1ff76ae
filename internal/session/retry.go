package session

import (
	"context"
	"log/slog"

	"github.com/vietddude/opsbridge/internal/infra/remote"
	"github.com/vietddude/opsbridge/internal/metrics"
)

// Operation is a single remote call made through a session.
type Operation[T any] func(ctx context.Context, client remote.Client) (T, error)

// WithRetry runs op on the session for alias. When op fails with a
// retryable error the session is evicted, a new one is resolved and op runs
// exactly once more; that second outcome is returned as-is. Fatal errors
// are returned immediately and leave the cache untouched.
func WithRetry[T any](ctx context.Context, c *Cache, alias string, op Operation[T]) (T, error) {
	var zero T

	e, err := c.resolve(ctx, alias)
	if err != nil {
		return zero, err
	}

	result, err := op(ctx, e.client)
	if err == nil {
		return result, nil
	}

	if ClassifyError(err) != ActionRefresh || ctx.Err() != nil {
		return zero, err
	}

	slog.Warn("Remote call failed on a stale session, retrying once",
		"alias", e.alias,
		"error", err,
	)

	c.remove(e.alias, e, reasonRetry)
	c.retries.Add(1)
	metrics.SessionRetries.WithLabelValues(e.alias).Inc()

	fresh, err := c.resolve(ctx, e.alias)
	if err != nil {
		return zero, err
	}
	return op(ctx, fresh.client)
}

// Do is WithRetry for calls that only return an error.
func Do(ctx context.Context, c *Cache, alias string, op func(ctx context.Context, client remote.Client) error) error {
	_, err := WithRetry(ctx, c, alias, func(ctx context.Context, client remote.Client) (struct{}, error) {
		return struct{}{}, op(ctx, client)
	})
	return err
}
