package migrate

import (
	"context"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestSplitStatements(t *testing.T) {
	t.Parallel()
	got := splitStatements("create table a (x text default ';');\ninsert into a values ('b');\n")
	if len(got) != 2 {
		t.Fatalf("statements = %q", got)
	}
}

func TestEmbeddedMigrationsPaired(t *testing.T) {
	t.Parallel()
	ups, err := collectSQL(Embedded(), ".up.sql")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("no embedded migrations")
	}
	downs, err := collectSQL(Embedded(), ".down.sql")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(downs) != len(ups) {
		t.Fatalf("up/down mismatch: %v vs %v", ups, downs)
	}
}

func TestUpSkipsApplied(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	files := fstest.MapFS{
		"0001_a.up.sql":   {Data: []byte("create table a (id int);")},
		"0001_a.down.sql": {Data: []byte("drop table a;")},
		"0002_b.up.sql":   {Data: []byte("create table b (id int);")},
	}

	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table b (id int);")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("insert into schema_migrations(name, applied_at)")).
		WithArgs("0002_b.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := NewManager(db, files).Up(context.Background()); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
