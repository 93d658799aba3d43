// Package archive moves rows from live operational tables into their
// cold-storage counterparts. The engine is generic over tables: column
// lists are computed from the live catalog on every call, so live and
// archive schemas are free to drift apart between migrations.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/clinrec/clinrec/internal/platform/db"
)

// ErrTransactionFailed marks a store-level failure during the move. The
// transaction was rolled back; the row is guaranteed untouched and the call
// is safe to retry.
var ErrTransactionFailed = errors.New("archive transaction failed")

// SchemaInspector is the slice of the schema inspector the engine needs.
type SchemaInspector interface {
	ListColumns(ctx context.Context, table string) ([]string, error)
	TableExists(ctx context.Context, table string) bool
	CreateTableLike(ctx context.Context, newTable, template string) error
}

// AuditSink receives a record of every successful archive. Recording is
// fire-and-forget from the engine's perspective.
type AuditSink interface {
	Record(ctx context.Context, actorID, action, target, description string)
}

// Store is the database handle the engine works against: plain queries for
// probes plus explicit transactions for the move itself.
type Store interface {
	db.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Engine struct {
	store     Store
	inspector SchemaInspector
	audit     AuditSink
	log       zerolog.Logger
}

func NewEngine(store Store, inspector SchemaInspector, audit AuditSink, log zerolog.Logger) *Engine {
	return &Engine{
		store:     store,
		inspector: inspector,
		audit:     audit,
		log:       log.With().Str("component", "archive").Logger(),
	}
}

// Archive moves one row from req.SourceTable to req.ArchiveTable as a
// single atomic operation: the row ends up in exactly one of the two
// tables, never both and never neither. A missing archive table is created
// as a structural clone of the source. Columns are restricted to the
// intersection of both tables so schema drift narrows the copy instead of
// blocking it. With DryRun set, the call only reports whether the row
// exists.
func (e *Engine) Archive(ctx context.Context, req Request) (Result, error) {
	if err := validateRequest(req); err != nil {
		return Result{}, err
	}

	if !e.inspector.TableExists(ctx, req.SourceTable) {
		e.log.Warn().Str("table", req.SourceTable).Msg("source table does not exist")
		return Result{}, nil
	}

	if !e.inspector.TableExists(ctx, req.ArchiveTable) {
		if err := e.inspector.CreateTableLike(ctx, req.ArchiveTable, req.SourceTable); err != nil {
			return Result{}, fmt.Errorf("create archive table: %w", err)
		}
		e.log.Info().Str("table", req.ArchiveTable).Str("template", req.SourceTable).
			Msg("created archive table")
	}

	columns, err := e.commonColumns(ctx, req.SourceTable, req.ArchiveTable)
	if err != nil {
		return Result{}, err
	}

	if req.DryRun {
		exists, err := e.rowExists(ctx, req)
		if err != nil {
			return Result{}, err
		}
		return Result{Existed: exists}, nil
	}

	return e.move(ctx, req, columns)
}

func validateRequest(req Request) error {
	for _, name := range []string{req.SourceTable, req.ArchiveTable, req.IDColumn} {
		if !db.ValidIdentifier(name) {
			return fmt.Errorf("invalid identifier %q", name)
		}
	}
	if req.SourceTable == req.ArchiveTable {
		return fmt.Errorf("source and archive table are the same: %s", req.SourceTable)
	}
	return nil
}

// commonColumns intersects the two tables' column sets, keeping source
// order. Drift is logged; an empty intersection falls back to the full
// source column list rather than failing the archive.
func (e *Engine) commonColumns(ctx context.Context, source, archiveTable string) ([]string, error) {
	srcCols, err := e.inspector.ListColumns(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", source, err)
	}
	archCols, err := e.inspector.ListColumns(ctx, archiveTable)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", archiveTable, err)
	}

	inArchive := make(map[string]bool, len(archCols))
	for _, c := range archCols {
		inArchive[c] = true
	}

	var common []string
	for _, c := range srcCols {
		if inArchive[c] {
			common = append(common, c)
		}
	}

	if len(common) == 0 {
		e.log.Warn().Str("source", source).Str("archive", archiveTable).
			Msg("no common columns, falling back to full source column list")
		return srcCols, nil
	}
	if len(common) < len(srcCols) {
		e.log.Warn().Str("source", source).Str("archive", archiveTable).
			Int("source_columns", len(srcCols)).Int("common_columns", len(common)).
			Msg("schema drift between live and archive table")
	}
	return common, nil
}

func (e *Engine) rowExists(ctx context.Context, req Request) (bool, error) {
	var exists bool
	q := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)", req.SourceTable, req.IDColumn)
	if err := e.store.QueryRow(ctx, q, req.IDValue).Scan(&exists); err != nil {
		return false, fmt.Errorf("probe %s: %w", req.SourceTable, err)
	}
	return exists, nil
}

func (e *Engine) move(ctx context.Context, req Request, columns []string) (Result, error) {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback(ctx)

	colList := strings.Join(columns, ", ")
	insert := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s WHERE %s = $1",
		req.ArchiveTable, colList, colList, req.SourceTable, req.IDColumn)
	tag, err := tx.Exec(ctx, insert, req.IDValue)
	if err != nil {
		return Result{}, fmt.Errorf("%w: copy row: %v", ErrTransactionFailed, err)
	}
	if tag.RowsAffected() == 0 {
		// Nothing to move; the deferred rollback discards the empty
		// transaction.
		return Result{}, nil
	}

	del := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", req.SourceTable, req.IDColumn)
	tag, err = tx.Exec(ctx, del, req.IDValue)
	if err != nil {
		return Result{}, fmt.Errorf("%w: delete row: %v", ErrTransactionFailed, err)
	}
	if tag.RowsAffected() == 0 {
		// A concurrent caller archived the row between our insert and
		// delete. Roll back our copy and report it as already archived.
		return Result{Existed: true}, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}

	if e.audit != nil {
		e.audit.Record(ctx, req.ActorID, "archive",
			fmt.Sprintf("%s:%v", req.SourceTable, req.IDValue),
			fmt.Sprintf("moved to %s", req.ArchiveTable))
	}

	return Result{Existed: true, Moved: true}, nil
}
