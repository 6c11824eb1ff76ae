package session

import (
	"context"
	"errors"
	"net/http"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/opsbridge/internal/infra/remote"
	"github.com/vietddude/opsbridge/internal/metrics"
)

var errStale = &remote.StatusError{StatusCode: http.StatusUnauthorized, Method: "POST", Path: "/x"}

func TestWithRetry_Success(t *testing.T) {
	cache, _, factory, _ := newTestCache(t, Config{}, "dev")

	attempts := 0
	got, err := WithRetry(context.Background(), cache, "dev", func(ctx context.Context, c remote.Client) (string, error) {
		attempts++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, factory.Built())
	assert.Zero(t, cache.Stats().Retries)
}

func TestWithRetry_RetryableFailsTwice(t *testing.T) {
	cache, resolver, factory, _ := newTestCache(t, Config{}, "dev")

	attempts := 0
	secondErr := &remote.TransportError{Method: "POST", Path: "/x", Err: errors.New("connection reset by peer")}
	_, err := WithRetry(context.Background(), cache, "dev", func(ctx context.Context, c remote.Client) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, errStale
		}
		return 0, secondErr
	})

	assert.Equal(t, 2, attempts)
	assert.Same(t, secondErr, err)

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, int64(1), stats.Retries)
	assert.Equal(t, 2, factory.Built())
	assert.Equal(t, 2, resolver.Calls("dev"))
}

func TestWithRetry_UsesFreshSession(t *testing.T) {
	cache, _, factory, _ := newTestCache(t, Config{}, "dev")

	var seen []remote.Client
	got, err := WithRetry(context.Background(), cache, "dev", func(ctx context.Context, c remote.Client) (string, error) {
		seen = append(seen, c)
		if len(seen) == 1 {
			return "", errors.New("read tcp: i/o timeout")
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	require.Len(t, seen, 2)
	assert.NotSame(t, seen[0], seen[1])
	assert.True(t, factory.Clients[0].Closed)
	assert.Equal(t, 1, cache.Len())
}

func TestWithRetry_NonRetryable(t *testing.T) {
	cache, _, factory, _ := newTestCache(t, Config{}, "dev")

	fatal := &remote.StatusError{StatusCode: http.StatusBadRequest, Message: "Invalid field"}
	attempts := 0
	_, err := WithRetry(context.Background(), cache, "dev", func(ctx context.Context, c remote.Client) (string, error) {
		attempts++
		return "", fatal
	})

	assert.Same(t, fatal, err)
	assert.Equal(t, 1, attempts)
	assert.Zero(t, cache.Stats().Evictions)
	assert.Equal(t, 1, factory.Built())
	assert.Equal(t, 1, cache.Len())
}

func TestWithRetry_ResolveFailure(t *testing.T) {
	cache, _, _, _ := newTestCache(t, Config{})

	attempts := 0
	_, err := WithRetry(context.Background(), cache, "", func(ctx context.Context, c remote.Client) (string, error) {
		attempts++
		return "", nil
	})

	assert.ErrorIs(t, err, ErrNoAlias)
	assert.Zero(t, attempts)
}

func TestWithRetry_CanceledContext(t *testing.T) {
	cache, _, _, _ := newTestCache(t, Config{}, "dev")
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	_, err := WithRetry(ctx, cache, "dev", func(ctx context.Context, c remote.Client) (string, error) {
		attempts++
		cancel()
		return "", errStale
	})

	assert.Same(t, errStale, err)
	assert.Equal(t, 1, attempts)
}

func TestDo(t *testing.T) {
	cache, _, _, _ := newTestCache(t, Config{DefaultAlias: "dev"}, "dev")

	attempts := 0
	err := Do(context.Background(), cache, "", func(ctx context.Context, c remote.Client) error {
		attempts++
		if attempts == 1 {
			return errStale
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestWithRetry_Metrics(t *testing.T) {
	cache, _, _, _ := newTestCache(t, Config{}, "metrics-alias")

	retries := metrics.SessionRetries.WithLabelValues("metrics-alias")
	evictions := metrics.SessionEvictions.WithLabelValues("metrics-alias", reasonRetry)
	beforeRetries := promtestutil.ToFloat64(retries)
	beforeEvictions := promtestutil.ToFloat64(evictions)

	attempts := 0
	err := Do(context.Background(), cache, "metrics-alias", func(ctx context.Context, c remote.Client) error {
		attempts++
		if attempts == 1 {
			return errStale
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, beforeRetries+1, promtestutil.ToFloat64(retries))
	assert.Equal(t, beforeEvictions+1, promtestutil.ToFloat64(evictions))
}
