package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Options{
		Driver: SQLite,
		DSN:    filepath.Join(t.TempDir(), "events.db"),
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBinder_PlaceholdersFollowDialect(t *testing.T) {
	pg := Postgres.Binder()
	if got := pg.Bind("a"); got != "$1" {
		t.Fatalf("first postgres placeholder = %q, want $1", got)
	}
	if got := pg.Bind(2); got != "$2" {
		t.Fatalf("second postgres placeholder = %q, want $2", got)
	}
	if len(pg.Args()) != 2 || pg.Args()[0] != "a" || pg.Args()[1] != 2 {
		t.Fatalf("Args() = %v, want [a 2]", pg.Args())
	}

	lite := SQLite.Binder()
	if got := lite.Bind("a"); got != "?" {
		t.Fatalf("sqlite placeholder = %q, want ?", got)
	}
}

func TestQuoteIdent(t *testing.T) {
	cases := map[string]string{
		"createdAt": `"createdAt"`,
		`we"ird`:    `"we""ird"`,
	}
	for in, want := range cases {
		if got := QuoteIdent(in); got != want {
			t.Fatalf("QuoteIdent(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Column("r", "userAgent"); got != `"r"."userAgent"` {
		t.Fatalf("Column() = %q", got)
	}
	if got := Column("", "path"); got != `"path"` {
		t.Fatalf("Column() without alias = %q", got)
	}
}

func TestDialect_TimeArg(t *testing.T) {
	ts := time.Date(2024, 3, 1, 7, 8, 9, 123_000_000, time.FixedZone("ICT", 7*3600))

	if got := SQLite.TimeArg(ts); got != "2024-03-01 00:08:09.123" {
		t.Fatalf("sqlite TimeArg = %v", got)
	}
	pgArg, ok := Postgres.TimeArg(ts).(time.Time)
	if !ok {
		t.Fatalf("postgres TimeArg type = %T, want time.Time", Postgres.TimeArg(ts))
	}
	if pgArg.Location() != time.UTC || !pgArg.Equal(ts) {
		t.Fatalf("postgres TimeArg = %v", pgArg)
	}
}

func TestDialect_JSONNumber(t *testing.T) {
	if got := Postgres.JSONNumber(`"o"."token"`, "input"); got != `CAST(("o"."token"->>'input') AS DOUBLE PRECISION)` {
		t.Fatalf("postgres JSONNumber = %s", got)
	}
	if got := SQLite.JSONNumber(`"o"."token"`, "output"); got != `CAST(json_extract("o"."token", '$.output') AS REAL)` {
		t.Fatalf("sqlite JSONNumber = %s", got)
	}
}

func TestMigrate_CreatesEventTables(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// A second run is a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	for _, table := range []string{"RequestLog", "OcrResponse"} {
		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+QuoteIdent(table)).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Fatalf("%s has %d rows, want 0", table, count)
		}
	}
}

func TestClose_RejectsFurtherQueries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if err := db.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("Ping() after Close = %v, want ErrClosed", err)
	}
	if _, err := db.QueryContext(ctx, "SELECT 1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("QueryContext() after Close = %v, want ErrClosed", err)
	}
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); !errors.Is(err, ErrClosed) {
		t.Fatalf("QueryRowContext() after Close = %v, want ErrClosed", err)
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "mysql"}); err == nil {
		t.Fatalf("Open() with unknown driver succeeded")
	}
	if _, err := Open(context.Background(), Options{Driver: Postgres}); err == nil {
		t.Fatalf("Open() postgres without dsn succeeded")
	}
}
