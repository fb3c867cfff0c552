package store

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Migrate creates the event tables when they do not exist yet. Production
// databases normally already carry them; this is for development stores.
func (db *DB) Migrate(ctx context.Context) error {
	if db.isClosed() {
		return ErrClosed
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(log.StandardLogger())

	dialect, dir := "postgres", "migrations/postgres"
	if db.dialect == SQLite {
		dialect, dir = "sqlite3", "migrations/sqlite"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.sql, dir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
