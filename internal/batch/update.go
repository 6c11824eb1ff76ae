package batch

import (
	"context"
	"errors"

	"github.com/vietddude/opsbridge/internal/core/domain"
	"github.com/vietddude/opsbridge/internal/infra/remote"
	"github.com/vietddude/opsbridge/internal/session"
)

var errNoRecordID = errors.New("record_id is required")

type updateOptions struct {
	stopOnError bool
}

// UpdateOption customises an update batch.
type UpdateOption func(*updateOptions)

// StopOnError controls whether an update batch stops at the first failed
// update. Defaults to false.
func StopOnError(v bool) UpdateOption {
	return func(o *updateOptions) { o.stopOnError = v }
}

// Update applies updates in order against alias. Updates are independent,
// so by default a failed update does not prevent the rest from running.
func (e *Executor) Update(
	ctx context.Context,
	alias string,
	updates []domain.UpdateOperation,
	opts ...UpdateOption,
) (*domain.BatchResult, error) {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	started := e.now()
	if _, err := e.sessions.Resolve(ctx, alias); err != nil {
		return nil, err
	}

	result := newResult()
	for i, u := range updates {
		if err := e.updateOne(ctx, alias, u); err != nil {
			e.fail(result, domain.BatchKindUpdate, i, u.Target, err)
			if o.stopOnError {
				break
			}
			continue
		}
		result.Count++
		e.succeed(domain.BatchKindUpdate)
	}

	e.finish(ctx, domain.BatchKindUpdate, e.aliasFor(alias), len(updates), started, result)
	return result, nil
}

func (e *Executor) updateOne(ctx context.Context, alias string, u domain.UpdateOperation) error {
	switch {
	case u.Target == "":
		return errNoTarget
	case u.RecordID == "":
		return errNoRecordID
	}

	return session.Do(ctx, e.sessions, alias, func(ctx context.Context, c remote.Client) error {
		return c.Update(ctx, u.Target, u.RecordID, u.Payload)
	})
}
