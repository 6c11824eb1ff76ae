// Package remote implements the client used to talk to a remote platform
// instance.
//
// This package contains:
//   - Client interface: the opaque session handle cached per alias
//   - HTTPClient: Table-API style REST implementation
//   - Monitor: latency and throttle tracking for one instance
//   - StatusError / TransportError: failures the session layer classifies
package remote

import (
	"context"

	"github.com/vietddude/opsbridge/internal/core/domain"
)

// Record is a single remote record as returned by the platform.
type Record map[string]any

// Client is an authenticated session against one remote instance.
type Client interface {
	// Alias returns the instance alias this client was built for
	Alias() string

	// Create inserts a record into target and returns its generated identifier
	Create(ctx context.Context, target string, payload map[string]any) (string, error)

	// Update writes payload onto an existing record
	Update(ctx context.Context, target, id string, payload map[string]any) error

	// Get fetches a single record by identifier
	Get(ctx context.Context, target, id string) (Record, error)

	// Query lists records of target matching an encoded query
	Query(ctx context.Context, target, query string, limit int) ([]Record, error)

	// Close releases idle connections
	Close() error
}

// Factory builds a new session from a credential. Building may perform a
// network round trip (e.g. an OAuth token exchange).
type Factory func(ctx context.Context, cred *domain.Credential) (Client, error)

// NewFactory returns a Factory producing HTTPClients with the given options.
func NewFactory(opts ...Option) Factory {
	return func(ctx context.Context, cred *domain.Credential) (Client, error) {
		return NewHTTPClient(ctx, cred, opts...)
	}
}
