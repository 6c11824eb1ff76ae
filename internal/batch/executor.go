// Package batch runs ordered lists of remote write operations through the
// session cache.
//
// Creates form a dependent chain: a create may reference the identifier
// generated by an earlier create through ${name}, and by default the batch
// stops at the first failure. Updates are independent edits and by default
// every update is attempted.
package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/opsbridge/internal/core/domain"
	"github.com/vietddude/opsbridge/internal/metrics"
	"github.com/vietddude/opsbridge/internal/session"
)

// Recorder stores an audit record of each finished batch.
type Recorder interface {
	Record(ctx context.Context, run *domain.BatchRun) error
}

// RecorderFunc adapts a plain save function, such as a repository's Save
// method, to a Recorder.
type RecorderFunc func(ctx context.Context, run *domain.BatchRun) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, run *domain.BatchRun) error {
	return f(ctx, run)
}

// Executor runs batches against the instances known to a session cache.
type Executor struct {
	sessions *session.Cache
	recorder Recorder
	now      func() time.Time
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

// WithRecorder stores an audit record after every batch.
func WithRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

// NewExecutor creates a batch executor.
func NewExecutor(sessions *session.Cache, opts ...ExecutorOption) *Executor {
	e := &Executor{
		sessions: sessions,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newResult() *domain.BatchResult {
	return &domain.BatchResult{
		GeneratedIDs: make(map[string]string),
		Errors:       []domain.OperationError{},
	}
}

func (e *Executor) fail(result *domain.BatchResult, kind domain.BatchKind, index int, target string, err error) {
	result.Errors = append(result.Errors, domain.OperationError{
		OperationIndex: index,
		Target:         target,
		Message:        err.Error(),
	})
	metrics.BatchOperations.WithLabelValues(string(kind), "error").Inc()
	slog.Warn("Batch operation failed",
		"kind", kind,
		"index", index,
		"target", target,
		"error", err,
	)
}

func (e *Executor) succeed(kind domain.BatchKind) {
	metrics.BatchOperations.WithLabelValues(string(kind), "ok").Inc()
}

// finish stamps timing and the success flag, then records the run.
func (e *Executor) finish(
	ctx context.Context,
	kind domain.BatchKind,
	alias string,
	operations int,
	started time.Time,
	result *domain.BatchResult,
) {
	elapsed := e.now().Sub(started)
	result.ElapsedMs = elapsed.Milliseconds()
	result.Success = len(result.Errors) == 0
	metrics.BatchDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())

	slog.Info("Batch finished",
		"kind", kind,
		"alias", alias,
		"operations", operations,
		"completed", result.Count,
		"errors", len(result.Errors),
		"elapsed", elapsed,
	)

	if e.recorder == nil {
		return
	}

	run := &domain.BatchRun{
		ID:           uuid.NewString(),
		Kind:         kind,
		Alias:        alias,
		Operations:   operations,
		Success:      result.Success,
		Count:        result.Count,
		Errors:       result.Errors,
		GeneratedIDs: result.GeneratedIDs,
		Elapsed:      elapsed,
		StartedAt:    started,
	}
	if err := e.recorder.Record(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("Failed to record batch run", "id", run.ID, "error", err)
	}
}

// aliasFor returns the alias a batch runs against, for logs and audit.
func (e *Executor) aliasFor(alias string) string {
	if alias == "" {
		return e.sessions.DefaultAlias()
	}
	return alias
}
