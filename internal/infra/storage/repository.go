package storage

import (
	"context"
	"errors"

	"github.com/vietddude/opsbridge/internal/core/domain"
)

var (
	// ErrBatchRunNotFound is returned when a batch run doesn't exist
	ErrBatchRunNotFound = errors.New("batch run not found")
)

// CredentialRepository stores instance credentials keyed by alias
type CredentialRepository interface {
	// Get returns the credential for alias, or nil when none is stored
	Get(ctx context.Context, alias string) (*domain.Credential, error)

	// Put creates or replaces a credential
	Put(ctx context.Context, cred *domain.Credential) error

	// Delete removes a credential; deleting an unknown alias is a no-op
	Delete(ctx context.Context, alias string) error

	// List returns every stored credential ordered by alias
	List(ctx context.Context) ([]*domain.Credential, error)
}

// BatchRunRepository stores the audit trail of executed batches
type BatchRunRepository interface {
	// Save stores a finished batch run
	Save(ctx context.Context, run *domain.BatchRun) error

	// Get retrieves a batch run by ID
	Get(ctx context.Context, id string) (*domain.BatchRun, error)

	// ListRecent returns the newest runs first, optionally filtered by alias
	ListRecent(ctx context.Context, aliases []string, limit int) ([]*domain.BatchRun, error)
}
