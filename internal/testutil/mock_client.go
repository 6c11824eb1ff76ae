// Package testutil provides fakes shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/vietddude/opsbridge/internal/core/domain"
	"github.com/vietddude/opsbridge/internal/infra/remote"
)

// Call records one request made through a MockClient.
type Call struct {
	Method  string
	Target  string
	ID      string
	Payload map[string]any
}

// MockClient is a configurable remote.Client for tests.
type MockClient struct {
	mu sync.Mutex

	Name   string
	Closed bool
	Calls  []Call

	// Custom handlers (override default behavior)
	OnCreate func(ctx context.Context, target string, payload map[string]any) (string, error)
	OnUpdate func(ctx context.Context, target, id string, payload map[string]any) error
	OnGet    func(ctx context.Context, target, id string) (remote.Record, error)

	seq int
}

// NewMockClient creates a MockClient whose Create returns "<target>-<n>".
func NewMockClient(name string) *MockClient {
	return &MockClient{Name: name}
}

func (m *MockClient) record(c Call) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.Payload != nil {
		c.Payload = maps.Clone(c.Payload)
	}
	m.Calls = append(m.Calls, c)
	m.seq++
	return m.seq
}

// Alias implements remote.Client.
func (m *MockClient) Alias() string { return m.Name }

// Create implements remote.Client.
func (m *MockClient) Create(ctx context.Context, target string, payload map[string]any) (string, error) {
	n := m.record(Call{Method: "create", Target: target, Payload: payload})
	if m.OnCreate != nil {
		return m.OnCreate(ctx, target, payload)
	}
	return fmt.Sprintf("%s-%d", target, n), nil
}

// Update implements remote.Client.
func (m *MockClient) Update(ctx context.Context, target, id string, payload map[string]any) error {
	m.record(Call{Method: "update", Target: target, ID: id, Payload: payload})
	if m.OnUpdate != nil {
		return m.OnUpdate(ctx, target, id, payload)
	}
	return nil
}

// Get implements remote.Client.
func (m *MockClient) Get(ctx context.Context, target, id string) (remote.Record, error) {
	m.record(Call{Method: "get", Target: target, ID: id})
	if m.OnGet != nil {
		return m.OnGet(ctx, target, id)
	}
	return remote.Record{"sys_id": id}, nil
}

// Query implements remote.Client.
func (m *MockClient) Query(ctx context.Context, target, query string, limit int) ([]remote.Record, error) {
	m.record(Call{Method: "query", Target: target})
	return []remote.Record{}, nil
}

// Close implements remote.Client.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// CallsSnapshot returns a copy of the recorded calls.
func (m *MockClient) CallsSnapshot() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.Calls...)
}

// MockResolver serves credentials from a map and counts lookups.
type MockResolver struct {
	mu    sync.Mutex
	creds map[string]*domain.Credential
	calls map[string]int
	Err   error
}

// NewMockResolver creates a resolver knowing the given aliases.
func NewMockResolver(aliases ...string) *MockResolver {
	r := &MockResolver{
		creds: make(map[string]*domain.Credential),
		calls: make(map[string]int),
	}
	for _, alias := range aliases {
		r.creds[alias] = &domain.Credential{
			Alias:    alias,
			URL:      "https://" + alias + ".example.com",
			Username: "admin",
			Password: "secret",
		}
	}
	return r
}

// Resolve implements session.CredentialResolver.
func (r *MockResolver) Resolve(_ context.Context, alias string) (*domain.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[alias]++
	if r.Err != nil {
		return nil, r.Err
	}
	return r.creds[alias], nil
}

// Calls returns how many times alias was resolved.
func (r *MockResolver) Calls(alias string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[alias]
}

// MockFactory builds MockClients and remembers every one it built.
type MockFactory struct {
	mu      sync.Mutex
	Clients []*MockClient
	Err     error

	// Configure is applied to each new client before it is returned.
	Configure func(c *MockClient)
}

// Build matches remote.Factory.
func (f *MockFactory) Build(_ context.Context, cred *domain.Credential) (remote.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}

	c := NewMockClient(cred.Alias)
	if f.Configure != nil {
		f.Configure(c)
	}
	f.Clients = append(f.Clients, c)
	return c, nil
}

// Built returns how many clients were built.
func (f *MockFactory) Built() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Clients)
}
