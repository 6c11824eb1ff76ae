package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vietddude/opsbridge/internal/core/domain"
	"github.com/vietddude/opsbridge/internal/infra/remote"
	"github.com/vietddude/opsbridge/internal/metrics"
)

// DefaultTTL is how long a session is reused before it is rebuilt.
const DefaultTTL = 30 * time.Minute

const (
	reasonTTL    = "ttl"
	reasonRetry  = "retry"
	reasonManual = "manual"
)

// CredentialResolver looks up the credential for an alias.
// It returns nil, nil when the alias is unknown.
type CredentialResolver interface {
	Resolve(ctx context.Context, alias string) (*domain.Credential, error)
}

// Config holds session cache settings.
type Config struct {
	TTL          time.Duration
	DefaultAlias string
}

// Option customises a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

type entry struct {
	alias     string
	client    remote.Client
	createdAt time.Time
}

// Cache maps an alias to a live session.
type Cache struct {
	ttl          time.Duration
	defaultAlias string
	resolver     CredentialResolver
	factory      remote.Factory
	now          func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry

	// Collapses concurrent cold resolves of the same alias.
	group singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	retries   atomic.Int64
}

// NewCache creates a session cache.
func NewCache(cfg Config, resolver CredentialResolver, factory remote.Factory, opts ...Option) *Cache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &Cache{
		ttl:          ttl,
		defaultAlias: cfg.DefaultAlias,
		resolver:     resolver,
		factory:      factory,
		now:          time.Now,
		entries:      make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultAlias returns the alias used when callers pass none.
func (c *Cache) DefaultAlias() string {
	return c.defaultAlias
}

func (c *Cache) aliasOrDefault(alias string) (string, error) {
	if alias != "" {
		return alias, nil
	}
	if c.defaultAlias != "" {
		return c.defaultAlias, nil
	}
	return "", ErrNoAlias
}

// Resolve returns the cached session for alias, building a new one when
// none is cached or the cached one is older than the TTL.
func (c *Cache) Resolve(ctx context.Context, alias string) (remote.Client, error) {
	e, err := c.resolve(ctx, alias)
	if err != nil {
		return nil, err
	}
	return e.client, nil
}

func (c *Cache) resolve(ctx context.Context, alias string) (*entry, error) {
	name, err := c.aliasOrDefault(alias)
	if err != nil {
		return nil, err
	}

	if e := c.live(name); e != nil {
		c.hits.Add(1)
		metrics.SessionResolves.WithLabelValues(name, "hit").Inc()
		return e, nil
	}

	// Drop an expired entry before building its replacement.
	c.remove(name, nil, reasonTTL)

	v, err, _ := c.group.Do(name, func() (any, error) {
		return c.open(context.WithoutCancel(ctx), name)
	})
	if err != nil {
		metrics.SessionResolves.WithLabelValues(name, "error").Inc()
		return nil, err
	}
	return v.(*entry), nil
}

// live returns the entry for alias if it is within the TTL.
func (c *Cache) live(alias string) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[alias]
	if !ok || c.now().Sub(e.createdAt) >= c.ttl {
		return nil
	}
	return e
}

// open resolves credentials and inserts a new entry. It runs at most once
// at a time per alias.
func (c *Cache) open(ctx context.Context, alias string) (*entry, error) {
	// Another caller may have finished a build while we waited.
	if e := c.live(alias); e != nil {
		c.hits.Add(1)
		metrics.SessionResolves.WithLabelValues(alias, "hit").Inc()
		return e, nil
	}

	cred, err := c.resolver.Resolve(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("resolve credential for %q: %w", alias, err)
	}
	if cred == nil {
		return nil, fmt.Errorf("%w: %q", ErrCredentialNotFound, alias)
	}

	client, err := c.factory(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("open session for %q: %w", alias, err)
	}

	e := &entry{alias: alias, client: client, createdAt: c.now()}

	c.mu.Lock()
	old := c.entries[alias]
	c.entries[alias] = e
	size := len(c.entries)
	c.mu.Unlock()

	if old != nil {
		_ = old.client.Close()
	}

	c.misses.Add(1)
	metrics.SessionResolves.WithLabelValues(alias, "miss").Inc()
	metrics.SessionsCached.Set(float64(size))
	slog.Debug("Session opened", "alias", alias, "auth", cred.Method())

	return e, nil
}

// Evict drops the cached session for alias. Evicting an alias with no
// entry is a no-op.
func (c *Cache) Evict(alias string) error {
	name, err := c.aliasOrDefault(alias)
	if err != nil {
		return err
	}
	c.remove(name, nil, reasonManual)
	return nil
}

// remove deletes the entry for alias. When target is set the entry is only
// deleted if it is still target, so a session built by a concurrent caller
// survives.
func (c *Cache) remove(alias string, target *entry, reason string) bool {
	c.mu.Lock()
	cur, ok := c.entries[alias]
	if !ok || (target != nil && cur != target) {
		c.mu.Unlock()
		return false
	}
	// A concurrent build may have replaced the expired entry already.
	if reason == reasonTTL && c.now().Sub(cur.createdAt) < c.ttl {
		c.mu.Unlock()
		return false
	}
	delete(c.entries, alias)
	size := len(c.entries)
	c.mu.Unlock()

	_ = cur.client.Close()

	c.evictions.Add(1)
	metrics.SessionEvictions.WithLabelValues(alias, reason).Inc()
	metrics.SessionsCached.Set(float64(size))
	slog.Debug("Session evicted", "alias", alias, "reason", reason)
	return true
}

// Close evicts every cached session.
func (c *Cache) Close() error {
	c.mu.RLock()
	aliases := make([]string, 0, len(c.entries))
	for alias := range c.entries {
		aliases = append(aliases, alias)
	}
	c.mu.RUnlock()

	for _, alias := range aliases {
		c.remove(alias, nil, reasonManual)
	}
	return nil
}

// Len returns the number of cached sessions, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// EntryInfo describes one cached session.
type EntryInfo struct {
	Alias     string              `json:"alias"`
	CreatedAt time.Time           `json:"created_at"`
	Age       time.Duration       `json:"age"`
	ExpiresIn time.Duration       `json:"expires_in"`
	Monitor   *remote.MonitorStats `json:"monitor,omitempty"`
}

// Snapshot lists cached sessions sorted by alias.
func (c *Cache) Snapshot() []EntryInfo {
	now := c.now()

	c.mu.RLock()
	infos := make([]EntryInfo, 0, len(c.entries))
	for alias, e := range c.entries {
		age := now.Sub(e.createdAt)
		info := EntryInfo{
			Alias:     alias,
			CreatedAt: e.createdAt,
			Age:       age,
			ExpiresIn: max(c.ttl-age, 0),
		}
		if hc, ok := e.client.(*remote.HTTPClient); ok {
			stats := hc.Monitor.Stats()
			info.Monitor = &stats
		}
		infos = append(infos, info)
	}
	c.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Alias < infos[j].Alias })
	return infos
}

// Stats holds cache counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Retries   int64 `json:"retries"`
}

// Stats returns cache counters since creation.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Retries:   c.retries.Load(),
	}
}
