package di

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/pgxadapter"
	"github.com/goliatone/go-statement-cache/pkg/testsupport"
)

func newSQLiteDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// pgxConn stands in for a live pgx connection; deallocation and close are no-ops.
type pgxConn struct {
	pgxmock.PgxConnIface
}

func (pgxConn) Deallocate(context.Context, string) error { return nil }

func (pgxConn) Close(context.Context) error { return nil }

func newFixtureContainer(t *testing.T, opts ...Option) *Container {
	t.Helper()

	cfg, err := ParseConfig(testsupport.LoadFixture(t, testsupport.FixturePath("config.yaml")))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	container, err := NewContainer(cfg, opts...)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	return container
}

func TestEndToEndNamedStatements(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	var logs bytes.Buffer

	container := newFixtureContainer(t,
		WithTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))),
		WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)

	id, conn, err := container.OpenSQL(ctx, newSQLiteDB(t))
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}

	for _, name := range []string{"alice", "bob", "carol"} {
		if _, err := conn.ExecNamed(ctx, "user.insert", name); err != nil {
			t.Fatalf("ExecNamed(%s): %v", name, err)
		}
	}

	var count int
	err = conn.DoNamed(ctx, "user.count", func(ctx context.Context, stmt *sql.Stmt) error {
		return stmt.QueryRowContext(ctx).Scan(&count)
	})
	if err != nil {
		t.Fatalf("DoNamed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 users, got %d", count)
	}

	var abs int
	err = conn.DoNamed(ctx, "abs", func(ctx context.Context, stmt *sql.Stmt) error {
		return stmt.QueryRowContext(ctx, -4).Scan(&abs)
	})
	if err != nil {
		t.Fatalf("DoNamed(abs): %v", err)
	}
	if abs != 4 {
		t.Errorf("expected 4, got %d", abs)
	}

	stats := container.Stats()[id]
	if stats.Compiles != 3 || stats.Hits != 2 {
		t.Errorf("expected 3 compiles and 2 hits, got %+v", stats)
	}
	if got := len(recorder.Ended()); got != 5 {
		t.Errorf("expected 5 execution spans, got %d", got)
	}
	if !strings.Contains(logs.String(), "statement compiled") {
		t.Errorf("expected debug compile logs, got %q", logs.String())
	}

	if err := container.CloseConn(ctx, id); err != nil {
		t.Fatalf("CloseConn: %v", err)
	}
	if _, ok := container.Stats()[id]; ok {
		t.Error("closed connection must be forgotten")
	}
	if _, err := conn.ExecNamed(ctx, "user.insert", "dave"); !errors.Is(err, cache.ErrCacheClosed) {
		t.Errorf("expected ErrCacheClosed, got %v", err)
	}
}

func TestStrictSQLFromConfig(t *testing.T) {
	ctx := context.Background()
	container := newFixtureContainer(t)

	_, conn, err := container.OpenSQL(ctx, newSQLiteDB(t))
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	defer container.Close(ctx)

	if _, err := conn.Exec(ctx, "user.insert", "INSERT INTO users (name) VALUES (?)", "x"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	_, err = conn.Exec(ctx, "user.insert", "INSERT INTO users (name) VALUES (upper(?))", "y")
	if !errors.Is(err, cache.ErrSQLMismatch) {
		t.Errorf("expected ErrSQLMismatch from strict config, got %v", err)
	}
}

func TestOpenBunAndPgx(t *testing.T) {
	ctx := context.Background()
	container := newFixtureContainer(t)

	bunID, bunConn, err := container.OpenBun(ctx, bun.NewDB(newSQLiteDB(t), sqlitedialect.New()))
	if err != nil {
		t.Fatalf("OpenBun: %v", err)
	}
	if _, err := bunConn.ExecNamed(ctx, "user.insert", "erin"); err != nil {
		t.Fatalf("ExecNamed: %v", err)
	}

	mock, err := pgxmock.NewConn(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("pgxmock.NewConn: %v", err)
	}
	const query = "SELECT 1"
	name := pgxadapter.StatementName(query, 1)
	mock.ExpectPrepare(name, query)
	mock.ExpectExec(name).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	pgxID, pgxConn, err := container.AttachPgx(pgxConn{PgxConnIface: mock})
	if err != nil {
		t.Fatalf("AttachPgx: %v", err)
	}
	if _, err := pgxConn.Exec(ctx, "one", query); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}

	stats := container.Stats()
	if len(stats) != 2 || stats[bunID].Compiles != 1 || stats[pgxID].Compiles != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	if err := container.CloseConn(ctx, bunID); err != nil {
		t.Fatalf("CloseConn(bun): %v", err)
	}
	if len(container.Stats()) != 1 {
		t.Error("expected only the pgx connection to remain")
	}
	if err := container.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestContainerCloseClosesEverything(t *testing.T) {
	ctx := context.Background()
	container := newFixtureContainer(t)

	var conns []interface{ Stats() cache.Stats }
	for i := 0; i < 3; i++ {
		_, conn, err := container.OpenSQL(ctx, newSQLiteDB(t))
		if err != nil {
			t.Fatalf("OpenSQL: %v", err)
		}
		if _, err := conn.ExecNamed(ctx, "user.insert", "x"); err != nil {
			t.Fatalf("ExecNamed: %v", err)
		}
		conns = append(conns, conn)
	}

	if err := container.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(container.Stats()) != 0 {
		t.Error("expected no tracked connections after Close")
	}
	for i, conn := range conns {
		if s := conn.Stats(); s.Entries != 0 || s.Destroyed != 1 {
			t.Errorf("conn %d: expected its statement destroyed, got %+v", i, s)
		}
	}
}
