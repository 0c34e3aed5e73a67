package session

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresTokens stores BFF session tokens in the portal_sessions table created by
// the embedded migrations.
type PostgresTokens struct {
	db *sql.DB
}

var _ TokenStore = (*PostgresTokens)(nil)

// OpenPostgres opens a pooled connection through the pgx stdlib driver.
func OpenPostgres(dsn string) (*PostgresTokens, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PostgresTokens{db: db}, nil
}

// NewPostgresTokens wraps an existing handle.
func NewPostgresTokens(db *sql.DB) *PostgresTokens { return &PostgresTokens{db: db} }

func (s *PostgresTokens) Close() error { return s.db.Close() }

func (s *PostgresTokens) DB() *sql.DB { return s.db }

func (s *PostgresTokens) Load(ctx context.Context, key string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `select token from portal_sessions where session_key=$1`, key).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *PostgresTokens) Save(ctx context.Context, key, token string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("session: empty token key")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into portal_sessions(session_key, token, updated_at)
		values ($1, $2, now())
		on conflict (session_key) do update
		set token = excluded.token, updated_at = excluded.updated_at
	`, key, token)
	return err
}

func (s *PostgresTokens) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `delete from portal_sessions where session_key=$1`, key)
	return err
}

// Prune removes tokens not refreshed since before cutoff.
func (s *PostgresTokens) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from portal_sessions where updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
