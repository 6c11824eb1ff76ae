package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/vietddude/opsbridge/internal/core/domain"
	"github.com/vietddude/opsbridge/internal/infra/storage"
)

type MemoryStorage struct {
	credentials map[string]*domain.Credential
	runs        []*domain.BatchRun
	mu          sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		credentials: make(map[string]*domain.Credential),
	}
}

// -----------------------------------------------------------------------------
// Credential Repository
// -----------------------------------------------------------------------------

type CredentialRepo struct {
	store *MemoryStorage
}

func NewCredentialRepo(store *MemoryStorage) *CredentialRepo {
	return &CredentialRepo{store: store}
}

func (r *CredentialRepo) Get(ctx context.Context, alias string) (*domain.Credential, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	c, ok := r.store.credentials[alias]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *CredentialRepo) Put(ctx context.Context, cred *domain.Credential) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *cred
	r.store.credentials[cred.Alias] = &cp
	return nil
}

func (r *CredentialRepo) Delete(ctx context.Context, alias string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.credentials, alias)
	return nil
}

func (r *CredentialRepo) List(ctx context.Context) ([]*domain.Credential, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*domain.Credential, 0, len(r.store.credentials))
	for _, alias := range slices.Sorted(maps.Keys(r.store.credentials)) {
		cp := *r.store.credentials[alias]
		out = append(out, &cp)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Batch Run Repository
// -----------------------------------------------------------------------------

type BatchRunRepo struct {
	store *MemoryStorage
}

func NewBatchRunRepo(store *MemoryStorage) *BatchRunRepo {
	return &BatchRunRepo{store: store}
}

func (r *BatchRunRepo) Save(ctx context.Context, run *domain.BatchRun) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.runs = append(r.store.runs, run)
	return nil
}

func (r *BatchRunRepo) Get(ctx context.Context, id string) (*domain.BatchRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, run := range r.store.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, storage.ErrBatchRunNotFound
}

func (r *BatchRunRepo) ListRecent(ctx context.Context, aliases []string, limit int) ([]*domain.BatchRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.BatchRun
	for _, run := range r.store.runs {
		if len(aliases) > 0 && !slices.Contains(aliases, run.Alias) {
			continue
		}
		out = append(out, run)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
