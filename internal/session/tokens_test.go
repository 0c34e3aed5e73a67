package session

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func exerciseTokenStore(t *testing.T, ts TokenStore) {
	t.Helper()
	ctx := context.Background()
	if _, err := ts.Load(ctx, "a"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("load missing = %v", err)
	}
	if err := ts.Save(ctx, "a", "t1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := ts.Save(ctx, "a", "t2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if tok, err := ts.Load(ctx, "a"); err != nil || tok != "t2" {
		t.Fatalf("load = %q %v", tok, err)
	}
	if err := ts.Save(ctx, " ", "t"); err == nil {
		t.Fatal("empty key accepted")
	}
	if err := ts.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := ts.Load(ctx, "a"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("load after delete = %v", err)
	}
}

func TestMemoryTokens(t *testing.T) {
	t.Parallel()
	exerciseTokenStore(t, NewMemoryTokens())
}

func TestSQLiteTokens(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	ts, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ts.Close()
	exerciseTokenStore(t, ts)

	// Survives reopen.
	if err := ts.Save(context.Background(), "default", "persisted"); err != nil {
		t.Fatal(err)
	}
	_ = ts.Close()
	again, err := OpenSQLite(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()
	if tok, err := again.Load(context.Background(), "default"); err != nil || tok != "persisted" {
		t.Fatalf("reopened load = %q %v", tok, err)
	}
}

func TestPostgresTokens(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	ts := NewPostgresTokens(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`select token from portal_sessions where session_key=$1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"token"}))
	if _, err := ts.Load(ctx, "missing"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("load missing = %v", err)
	}

	mock.ExpectExec(regexp.QuoteMeta(`insert into portal_sessions(session_key, token, updated_at)`)).
		WithArgs("k", "tok").
		WillReturnResult(sqlmock.NewResult(1, 1))
	if err := ts.Save(ctx, "k", "tok"); err != nil {
		t.Fatalf("save: %v", err)
	}

	mock.ExpectQuery(regexp.QuoteMeta(`select token from portal_sessions where session_key=$1`)).
		WithArgs("k").
		WillReturnRows(sqlmock.NewRows([]string{"token"}).AddRow("tok"))
	if tok, err := ts.Load(ctx, "k"); err != nil || tok != "tok" {
		t.Fatalf("load = %q %v", tok, err)
	}

	mock.ExpectExec(regexp.QuoteMeta(`delete from portal_sessions where session_key=$1`)).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := ts.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta(`delete from portal_sessions where updated_at < $1`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))
	if n, err := ts.Prune(ctx, cutoff); err != nil || n != 3 {
		t.Fatalf("prune = %d %v", n, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
