package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/opsbridge/internal/core/domain"
	"github.com/vietddude/opsbridge/internal/infra/storage"
)

type batchRunRow struct {
	ID           string    `db:"id"`
	Kind         string    `db:"kind"`
	Alias        string    `db:"alias"`
	Operations   int       `db:"operations"`
	Success      bool      `db:"success"`
	Completed    int       `db:"completed"`
	Errors       []byte    `db:"errors"`
	GeneratedIDs []byte    `db:"generated_ids"`
	ElapsedMs    int64     `db:"elapsed_ms"`
	StartedAt    time.Time `db:"started_at"`
}

func batchRunRowFrom(run *domain.BatchRun) (batchRunRow, error) {
	opErrors := run.Errors
	if opErrors == nil {
		opErrors = []domain.OperationError{}
	}
	errs, err := json.Marshal(opErrors)
	if err != nil {
		return batchRunRow{}, err
	}

	generated := run.GeneratedIDs
	if generated == nil {
		generated = map[string]string{}
	}
	ids, err := json.Marshal(generated)
	if err != nil {
		return batchRunRow{}, err
	}

	return batchRunRow{
		ID:           run.ID,
		Kind:         string(run.Kind),
		Alias:        run.Alias,
		Operations:   run.Operations,
		Success:      run.Success,
		Completed:    run.Count,
		Errors:       errs,
		GeneratedIDs: ids,
		ElapsedMs:    run.Elapsed.Milliseconds(),
		StartedAt:    run.StartedAt,
	}, nil
}

func (r batchRunRow) toDomain() (*domain.BatchRun, error) {
	run := &domain.BatchRun{
		ID:         r.ID,
		Kind:       domain.BatchKind(r.Kind),
		Alias:      r.Alias,
		Operations: r.Operations,
		Success:    r.Success,
		Count:      r.Completed,
		Elapsed:    time.Duration(r.ElapsedMs) * time.Millisecond,
		StartedAt:  r.StartedAt,
	}
	if err := json.Unmarshal(r.Errors, &run.Errors); err != nil {
		return nil, fmt.Errorf("decode errors of run %s: %w", r.ID, err)
	}
	if err := json.Unmarshal(r.GeneratedIDs, &run.GeneratedIDs); err != nil {
		return nil, fmt.Errorf("decode generated ids of run %s: %w", r.ID, err)
	}
	return run, nil
}

// BatchRunRepo implements storage.BatchRunRepository.
type BatchRunRepo struct {
	db *DB
}

// NewBatchRunRepo creates a new batch run repository.
func NewBatchRunRepo(db *DB) *BatchRunRepo {
	return &BatchRunRepo{db: db}
}

const batchRunColumns = `id, kind, alias, operations, success, completed, errors, generated_ids, elapsed_ms, started_at`

func (r *BatchRunRepo) Save(ctx context.Context, run *domain.BatchRun) error {
	row, err := batchRunRowFrom(run)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", run.ID, err)
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO batch_runs (`+batchRunColumns+`)
		VALUES (:id, :kind, :alias, :operations, :success, :completed, :errors, :generated_ids, :elapsed_ms, :started_at)`,
		row)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (r *BatchRunRepo) Get(ctx context.Context, id string) (*domain.BatchRun, error) {
	var row batchRunRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+batchRunColumns+` FROM batch_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrBatchRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return row.toDomain()
}

func (r *BatchRunRepo) ListRecent(ctx context.Context, aliases []string, limit int) ([]*domain.BatchRun, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []batchRunRow
	var err error
	if len(aliases) == 0 {
		err = r.db.SelectContext(ctx, &rows,
			`SELECT `+batchRunColumns+` FROM batch_runs ORDER BY started_at DESC LIMIT $1`, limit)
	} else {
		err = r.db.SelectContext(ctx, &rows,
			`SELECT `+batchRunColumns+` FROM batch_runs WHERE alias = ANY($1) ORDER BY started_at DESC LIMIT $2`,
			pq.Array(aliases), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]*domain.BatchRun, 0, len(rows))
	for _, row := range rows {
		run, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, nil
}
