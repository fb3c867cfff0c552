package store

import (
	"fmt"
	"strings"
	"time"
)

// Dialect identifies the SQL flavour spoken by the underlying database.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// SQLiteTimeLayout is the fixed-width layout used for "createdAt" values in
// SQLite databases. Fixed width keeps lexical and chronological order equal.
const SQLiteTimeLayout = "2006-01-02 15:04:05.000"

// Float casts a numeric SQL expression to a double precision value so that
// both drivers scan it into a float64.
func (d Dialect) Float(expr string) string {
	if d == SQLite {
		return "CAST(" + expr + " AS REAL)"
	}
	return "CAST(" + expr + " AS DOUBLE PRECISION)"
}

// JSONNumber extracts a numeric member of a JSON column as a double.
// key must be a plain member name.
func (d Dialect) JSONNumber(column, key string) string {
	key = strings.ReplaceAll(key, "'", "''")
	if d == SQLite {
		return fmt.Sprintf("CAST(json_extract(%s, '$.%s') AS REAL)", column, key)
	}
	return fmt.Sprintf("CAST((%s->>'%s') AS DOUBLE PRECISION)", column, key)
}

// TimeArg converts t into the argument representation the driver compares
// against "createdAt".
func (d Dialect) TimeArg(t time.Time) any {
	if d == SQLite {
		return t.UTC().Format(SQLiteTimeLayout)
	}
	return t.UTC()
}

// Binder returns an empty argument binder for this dialect.
func (d Dialect) Binder() *Binder {
	return &Binder{dialect: d}
}

// Binder collects positional query arguments and hands out the matching
// placeholders. Placeholders must be requested in the order they appear in
// the final SQL text.
type Binder struct {
	dialect Dialect
	args    []any
}

// Bind appends v to the argument list and returns its placeholder.
func (b *Binder) Bind(v any) string {
	b.args = append(b.args, v)
	if b.dialect == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", len(b.args))
}

// Args returns the bound arguments in placeholder order.
func (b *Binder) Args() []any {
	return b.args
}

// Dialect returns the dialect placeholders are generated for.
func (b *Binder) Dialect() Dialect {
	return b.dialect
}

// QuoteIdent quotes an SQL identifier, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Column returns a quoted, optionally alias-qualified column reference.
func Column(alias, name string) string {
	if alias == "" {
		return QuoteIdent(name)
	}
	return QuoteIdent(alias) + "." + QuoteIdent(name)
}
