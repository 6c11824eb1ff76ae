// Package credential provides the credential sources a session cache
// resolves aliases against.
//
// A resolver returns (nil, nil) when it does not know an alias so that a
// Chain can fall through to the next source. Any non-nil error aborts the
// lookup.
package credential

import (
	"context"
	"fmt"

	"github.com/vietddude/opsbridge/internal/core/domain"
	"github.com/vietddude/opsbridge/internal/infra/storage"
	"github.com/vietddude/opsbridge/internal/session"
)

// Static serves a fixed set of credentials, usually the configured
// instances.
type Static struct {
	creds map[string]*domain.Credential
}

// NewStatic indexes creds by alias. Later entries win on duplicate aliases.
func NewStatic(creds ...*domain.Credential) *Static {
	s := &Static{creds: make(map[string]*domain.Credential, len(creds))}
	for _, c := range creds {
		s.creds[c.Alias] = c
	}
	return s
}

// Resolve implements session.CredentialResolver.
func (s *Static) Resolve(_ context.Context, alias string) (*domain.Credential, error) {
	c, ok := s.creds[alias]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// Aliases returns the aliases this resolver knows.
func (s *Static) Aliases() []string {
	out := make([]string, 0, len(s.creds))
	for alias := range s.creds {
		out = append(out, alias)
	}
	return out
}

// Store adapts a credential repository (Redis or Postgres) to a resolver.
type Store struct {
	name string
	repo storage.CredentialRepository
}

// FromRepository wraps repo. name labels errors and logs.
func FromRepository(name string, repo storage.CredentialRepository) *Store {
	return &Store{name: name, repo: repo}
}

// Resolve implements session.CredentialResolver.
func (s *Store) Resolve(ctx context.Context, alias string) (*domain.Credential, error) {
	cred, err := s.repo.Get(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("%s credential store: %w", s.name, err)
	}
	return cred, nil
}

// Chain asks each resolver in order and returns the first credential found.
type Chain []session.CredentialResolver

// Resolve implements session.CredentialResolver.
func (c Chain) Resolve(ctx context.Context, alias string) (*domain.Credential, error) {
	for _, r := range c {
		cred, err := r.Resolve(ctx, alias)
		if err != nil {
			return nil, err
		}
		if cred != nil {
			return cred, nil
		}
	}
	return nil, nil
}
