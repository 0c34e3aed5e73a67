package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
create table if not exists tokens (
	profile    text primary key,
	token      text not null,
	updated_at timestamp not null default current_timestamp
);`

// SQLiteTokens is the CLI token store: one row per local profile.
type SQLiteTokens struct {
	db *sql.DB
}

var _ TokenStore = (*SQLiteTokens)(nil)

// OpenSQLite opens or creates the database file at path, creating parent directories
// with owner-only permissions.
func OpenSQLite(ctx context.Context, path string) (*SQLiteTokens, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("session: create %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session: init %s: %w", path, err)
	}
	return &SQLiteTokens{db: db}, nil
}

func (s *SQLiteTokens) Close() error { return s.db.Close() }

func (s *SQLiteTokens) Load(ctx context.Context, key string) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `select token from tokens where profile = ?`, key).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *SQLiteTokens) Save(ctx context.Context, key, token string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("session: empty token key")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into tokens(profile, token, updated_at) values (?, ?, current_timestamp)
		on conflict(profile) do update set token = excluded.token, updated_at = excluded.updated_at`,
		key, token)
	return err
}

func (s *SQLiteTokens) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `delete from tokens where profile = ?`, key)
	return err
}
