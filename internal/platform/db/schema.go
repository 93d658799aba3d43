package db

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"
)

// identPattern matches the table and column names this package is willing to
// interpolate into SQL. Identifiers arrive from configuration and from the
// information_schema catalog, never from end users, but they still cannot be
// bound as query parameters, so they are validated instead.
var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidIdentifier reports whether name is safe to use as a SQL identifier.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// Inspector answers questions about the live database schema: which columns
// a table carries, whether a table exists, and which of two foreign-key
// naming conventions a deployment actually uses. It holds no cross-call
// state; every answer is recomputed from the catalog so the result is fresh
// after a migration or an on-demand archive-table creation.
type Inspector struct {
	db  Querier
	log zerolog.Logger
}

func NewInspector(db Querier, log zerolog.Logger) *Inspector {
	return &Inspector{db: db, log: log.With().Str("component", "schema_inspector").Logger()}
}

// ListColumns returns the column names of table in ordinal order. A table
// that does not exist yields an empty list, not an error.
func (i *Inspector) ListColumns(ctx context.Context, table string) ([]string, error) {
	if !ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	rows, err := i.db.Query(ctx,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_schema = current_schema() AND table_name = $1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column name: %w", err)
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// ColumnExists reports whether table has a column named column. Catalog
// failures are logged and reported as false so that callers can probe
// speculatively.
func (i *Inspector) ColumnExists(ctx context.Context, table, column string) bool {
	if !ValidIdentifier(table) || !ValidIdentifier(column) {
		return false
	}

	var exists bool
	err := i.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM information_schema.columns
		   WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2
		 )`, table, column).Scan(&exists)
	if err != nil {
		i.log.Warn().Err(err).Str("table", table).Str("column", column).
			Msg("column catalog lookup failed, treating as absent")
		return false
	}
	return exists
}

// TableExists reports whether table exists in the current schema.
func (i *Inspector) TableExists(ctx context.Context, table string) bool {
	if !ValidIdentifier(table) {
		return false
	}

	var exists bool
	err := i.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM information_schema.tables
		   WHERE table_schema = current_schema() AND table_name = $1
		 )`, table).Scan(&exists)
	if err != nil {
		i.log.Warn().Err(err).Str("table", table).
			Msg("table catalog lookup failed, treating as absent")
		return false
	}
	return exists
}

// ResolveForeignKeyColumn returns whichever of the two candidate column
// names is present on table, checking first then fallback. When neither is
// found (including when the table itself is missing or the catalog query
// fails) it returns fallback: the caller's query will then fail or match
// nothing against the modern schema rather than a stale convention. The
// anomaly is logged because a missing table usually means a broken
// deployment, but resolution itself never errors so that it is safe to call
// speculatively.
func (i *Inspector) ResolveForeignKeyColumn(ctx context.Context, table, first, fallback string) string {
	if i.ColumnExists(ctx, table, first) {
		return first
	}
	if i.ColumnExists(ctx, table, fallback) {
		return fallback
	}
	i.log.Warn().Str("table", table).Str("first", first).Str("fallback", fallback).
		Msg("neither foreign key column candidate found, defaulting")
	return fallback
}

// CreateTableLike creates newTable as a structural clone of template:
// columns and defaults are copied, foreign keys and other constraints are
// not, which is exactly what an archive counterpart needs.
func (i *Inspector) CreateTableLike(ctx context.Context, newTable, template string) error {
	if !ValidIdentifier(newTable) || !ValidIdentifier(template) {
		return fmt.Errorf("invalid table name %q or %q", newTable, template)
	}

	_, err := i.db.Exec(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (LIKE %s INCLUDING DEFAULTS)", newTable, template))
	if err != nil {
		return fmt.Errorf("create %s like %s: %w", newTable, template, err)
	}
	return nil
}
