package batch

import (
	"context"
	"errors"

	"github.com/vietddude/opsbridge/internal/core/domain"
	"github.com/vietddude/opsbridge/internal/infra/remote"
	"github.com/vietddude/opsbridge/internal/session"
)

var errNoTarget = errors.New("target is required")

type createOptions struct {
	transactional bool
}

// CreateOption customises a create batch.
type CreateOption func(*createOptions)

// Transactional controls whether a create batch stops at the first failed
// operation. Defaults to true.
func Transactional(v bool) CreateOption {
	return func(o *createOptions) { o.transactional = v }
}

// Create runs ops in order against alias. Each operation is issued only
// after the previous one finished. String payload values may reference the
// identifier saved by an earlier operation as ${name}.
//
// Per-operation failures are reported in the result. An error is returned
// only when no session for alias can be obtained before the first
// operation.
func (e *Executor) Create(
	ctx context.Context,
	alias string,
	ops []domain.CreateOperation,
	opts ...CreateOption,
) (*domain.BatchResult, error) {
	o := createOptions{transactional: true}
	for _, opt := range opts {
		opt(&o)
	}

	started := e.now()
	if _, err := e.sessions.Resolve(ctx, alias); err != nil {
		return nil, err
	}

	result := newResult()
	saved := make(map[string]string)

	for i, op := range ops {
		id, err := e.createOne(ctx, alias, op, saved)
		if err != nil {
			e.fail(result, domain.BatchKindCreate, i, op.Target, err)
			if o.transactional {
				break
			}
			continue
		}

		if op.SaveAs != "" {
			saved[op.SaveAs] = id
			result.GeneratedIDs[op.SaveAs] = id
		}
		result.Count++
		e.succeed(domain.BatchKindCreate)
	}

	e.finish(ctx, domain.BatchKindCreate, e.aliasFor(alias), len(ops), started, result)
	return result, nil
}

func (e *Executor) createOne(
	ctx context.Context,
	alias string,
	op domain.CreateOperation,
	saved map[string]string,
) (string, error) {
	if op.Target == "" {
		return "", errNoTarget
	}

	payload, err := Substitute(op.Payload, saved)
	if err != nil {
		return "", err
	}

	return session.WithRetry(ctx, e.sessions, alias,
		func(ctx context.Context, c remote.Client) (string, error) {
			return c.Create(ctx, op.Target, payload)
		})
}
