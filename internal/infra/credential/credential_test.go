package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/opsbridge/internal/core/domain"
	"github.com/vietddude/opsbridge/internal/infra/storage/memory"
	"github.com/vietddude/opsbridge/internal/session"
	"github.com/vietddude/opsbridge/internal/testutil"
)

type failingRepo struct{}

func (failingRepo) Get(context.Context, string) (*domain.Credential, error) {
	return nil, errors.New("connection refused")
}

func (failingRepo) Put(context.Context, *domain.Credential) error { return nil }

func (failingRepo) Delete(context.Context, string) error { return nil }

func (failingRepo) List(context.Context) ([]*domain.Credential, error) { return nil, nil }

func TestStatic(t *testing.T) {
	s := NewStatic(
		&domain.Credential{Alias: "dev", URL: "https://dev.example.com"},
		&domain.Credential{Alias: "prod", URL: "https://prod.example.com"},
	)

	cred, err := s.Resolve(context.Background(), "prod")
	require.NoError(t, err)
	assert.Equal(t, "https://prod.example.com", cred.URL)

	cred.URL = "mutated"
	again, err := s.Resolve(context.Background(), "prod")
	require.NoError(t, err)
	assert.Equal(t, "https://prod.example.com", again.URL)

	missing, err := s.Resolve(context.Background(), "qa")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.ElementsMatch(t, []string{"dev", "prod"}, s.Aliases())
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCredentialRepo(memory.NewMemoryStorage())
	require.NoError(t, repo.Put(ctx, &domain.Credential{Alias: "qa", URL: "https://qa.example.com"}))

	store := FromRepository("memory", repo)
	cred, err := store.Resolve(ctx, "qa")
	require.NoError(t, err)
	assert.Equal(t, "qa", cred.Alias)

	missing, err := store.Resolve(ctx, "dev")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = FromRepository("redis", failingRepo{}).Resolve(ctx, "dev")
	assert.ErrorContains(t, err, "redis credential store")
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCredentialRepo(memory.NewMemoryStorage())
	require.NoError(t, repo.Put(ctx, &domain.Credential{Alias: "dev", URL: "https://shadowed.example.com"}))
	require.NoError(t, repo.Put(ctx, &domain.Credential{Alias: "qa", URL: "https://qa.example.com"}))

	chain := Chain{
		NewStatic(&domain.Credential{Alias: "dev", URL: "https://dev.example.com"}),
		FromRepository("memory", repo),
	}

	dev, err := chain.Resolve(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, "https://dev.example.com", dev.URL)

	qa, err := chain.Resolve(ctx, "qa")
	require.NoError(t, err)
	assert.Equal(t, "https://qa.example.com", qa.URL)

	none, err := chain.Resolve(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestChain_ErrorAborts(t *testing.T) {
	later := testutil.NewMockResolver("dev")
	chain := Chain{
		NewStatic(),
		FromRepository("redis", failingRepo{}),
		later,
	}

	_, err := chain.Resolve(context.Background(), "dev")
	assert.Error(t, err)
	assert.Equal(t, 0, later.Calls("dev"))
}

func TestChain_WithCache(t *testing.T) {
	factory := &testutil.MockFactory{}
	cache := session.NewCache(session.Config{}, Chain{NewStatic()}, factory.Build)

	_, err := cache.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, session.ErrCredentialNotFound)
	assert.Equal(t, 0, factory.Built())
}
