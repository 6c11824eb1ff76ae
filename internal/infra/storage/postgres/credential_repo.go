package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/opsbridge/internal/core/domain"
)

type credentialRow struct {
	Alias        string    `db:"alias"`
	URL          string    `db:"url"`
	Auth         string    `db:"auth"`
	Username     string    `db:"username"`
	Password     string    `db:"password"`
	ClientID     string    `db:"client_id"`
	ClientSecret string    `db:"client_secret"`
	Token        string    `db:"token"`
	TimeoutMs    int64     `db:"timeout_ms"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r credentialRow) toDomain() *domain.Credential {
	return &domain.Credential{
		Alias:        r.Alias,
		URL:          r.URL,
		Auth:         domain.AuthMethod(r.Auth),
		Username:     r.Username,
		Password:     r.Password,
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		Token:        r.Token,
		Timeout:      time.Duration(r.TimeoutMs) * time.Millisecond,
	}
}

func credentialRowFrom(c *domain.Credential) credentialRow {
	return credentialRow{
		Alias:        c.Alias,
		URL:          c.URL,
		Auth:         string(c.Method()),
		Username:     c.Username,
		Password:     c.Password,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Token:        c.Token,
		TimeoutMs:    c.Timeout.Milliseconds(),
	}
}

// CredentialRepo implements storage.CredentialRepository.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new credential repository.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

const credentialColumns = `alias, url, auth, username, password, client_id, client_secret, token, timeout_ms, updated_at`

func (r *CredentialRepo) Get(ctx context.Context, alias string) (*domain.Credential, error) {
	var row credentialRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+credentialColumns+` FROM credentials WHERE alias = $1`, alias)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %q: %w", alias, err)
	}
	return row.toDomain(), nil
}

func (r *CredentialRepo) Put(ctx context.Context, cred *domain.Credential) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO credentials (alias, url, auth, username, password, client_id, client_secret, token, timeout_ms, updated_at)
		VALUES (:alias, :url, :auth, :username, :password, :client_id, :client_secret, :token, :timeout_ms, now())
		ON CONFLICT (alias) DO UPDATE SET
			url = EXCLUDED.url,
			auth = EXCLUDED.auth,
			username = EXCLUDED.username,
			password = EXCLUDED.password,
			client_id = EXCLUDED.client_id,
			client_secret = EXCLUDED.client_secret,
			token = EXCLUDED.token,
			timeout_ms = EXCLUDED.timeout_ms,
			updated_at = now()`,
		credentialRowFrom(cred))
	if err != nil {
		return fmt.Errorf("put credential %q: %w", cred.Alias, err)
	}
	return nil
}

func (r *CredentialRepo) Delete(ctx context.Context, alias string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE alias = $1`, alias)
	return err
}

func (r *CredentialRepo) List(ctx context.Context) ([]*domain.Credential, error) {
	var rows []credentialRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT `+credentialColumns+` FROM credentials ORDER BY alias`); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}

	out := make([]*domain.Credential, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
