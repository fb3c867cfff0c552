// Package storetest provides a migrated SQLite event store and fixture
// helpers for package tests.
package storetest

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/apiwatch/dashboard/internal/store"
)

// Request is a RequestLog fixture row. Zero CreatedAt means "one minute ago".
type Request struct {
	ID              string
	CreatedAt       time.Time
	Path            string
	Method          string
	StatusCode      int
	ResponseTime    float64
	RequestBodySize int64
	APIToken        string
	UserAgent       *string
}

// OCR is an OcrResponse fixture row.
type OCR struct {
	ID           string
	CreatedAt    time.Time
	RequestID    string
	InputTokens  int64
	OutputTokens int64
}

// Open returns a migrated SQLite store that is closed when the test ends.
func Open(t testing.TB) *store.DB {
	t.Helper()
	ctx := context.Background()
	db, err := store.Open(ctx, store.Options{
		Driver: store.SQLite,
		DSN:    filepath.Join(t.TempDir(), "events.db"),
	})
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

// UA returns a pointer to s for Request.UserAgent.
func UA(s string) *string { return lo.ToPtr(s) }

// InsertRequests writes RequestLog rows.
func InsertRequests(t testing.TB, db *store.DB, rows ...Request) {
	t.Helper()
	d := db.Dialect()
	for _, r := range rows {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().Add(-time.Minute)
		}
		if r.Method == "" {
			r.Method = "GET"
		}
		var ua any
		if r.UserAgent != nil {
			ua = *r.UserAgent
		}
		b := d.Binder()
		query := `INSERT INTO "RequestLog" ("id", "createdAt", "path", "method", "statusCode", "responseTime", "requestBodySize", "apiToken", "userAgent") VALUES (` +
			b.Bind(r.ID) + ", " + b.Bind(d.TimeArg(r.CreatedAt)) + ", " + b.Bind(r.Path) + ", " +
			b.Bind(r.Method) + ", " + b.Bind(r.StatusCode) + ", " + b.Bind(r.ResponseTime) + ", " +
			b.Bind(r.RequestBodySize) + ", " + b.Bind(r.APIToken) + ", " + b.Bind(ua) + ")"
		if _, err := db.SQL().ExecContext(context.Background(), query, b.Args()...); err != nil {
			t.Fatalf("insert RequestLog: %v", err)
		}
	}
}

// InsertOCR writes OcrResponse rows.
func InsertOCR(t testing.TB, db *store.DB, rows ...OCR) {
	t.Helper()
	d := db.Dialect()
	for _, r := range rows {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().Add(-time.Minute)
		}
		token, err := json.Marshal(map[string]int64{"input": r.InputTokens, "output": r.OutputTokens})
		if err != nil {
			t.Fatalf("marshal token: %v", err)
		}
		var requestID any
		if r.RequestID != "" {
			requestID = r.RequestID
		}
		b := d.Binder()
		query := `INSERT INTO "OcrResponse" ("id", "createdAt", "requestId", "token") VALUES (` +
			b.Bind(r.ID) + ", " + b.Bind(d.TimeArg(r.CreatedAt)) + ", " + b.Bind(requestID) + ", " + b.Bind(string(token)) + ")"
		if _, err := db.SQL().ExecContext(context.Background(), query, b.Args()...); err != nil {
			t.Fatalf("insert OcrResponse: %v", err)
		}
	}
}
