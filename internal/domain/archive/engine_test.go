package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// fakeInspector serves column lists and table existence from fixed maps and
// records archive-table creations.
type fakeInspector struct {
	columns map[string][]string
	created [][2]string
	failing bool
}

func (f *fakeInspector) ListColumns(ctx context.Context, table string) ([]string, error) {
	if f.failing {
		return nil, errors.New("catalog unavailable")
	}
	return f.columns[table], nil
}

func (f *fakeInspector) TableExists(ctx context.Context, table string) bool {
	_, ok := f.columns[table]
	return ok
}

func (f *fakeInspector) CreateTableLike(ctx context.Context, newTable, template string) error {
	f.created = append(f.created, [2]string{newTable, template})
	f.columns[newTable] = f.columns[template]
	return nil
}

type auditRecord struct {
	actorID, action, target, description string
}

type fakeAudit struct {
	records []auditRecord
}

func (f *fakeAudit) Record(ctx context.Context, actorID, action, target, description string) {
	f.records = append(f.records, auditRecord{actorID, action, target, description})
}

// execResult scripts one statement outcome for the fake transaction.
type execResult struct {
	rows int64
	err  error
}

// fakeTx embeds pgx.Tx for interface completeness; only the methods the
// engine touches are implemented.
type fakeTx struct {
	pgx.Tx
	results    []execResult
	statements []string
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	t.statements = append(t.statements, sql)
	if len(t.results) == 0 {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	r := t.results[0]
	t.results = t.results[1:]
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", r.rows)), nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type existsRow struct{ value bool }

func (r existsRow) Scan(dest ...interface{}) error {
	*(dest[0].(*bool)) = r.value
	return nil
}

type fakeStore struct {
	tx        *fakeTx
	beginErr  error
	began     bool
	rowExists bool
}

func (s *fakeStore) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *fakeStore) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return existsRow{value: s.rowExists}
}

func (s *fakeStore) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (s *fakeStore) Begin(ctx context.Context) (pgx.Tx, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	s.began = true
	return s.tx, nil
}

func vitalsRequest() Request {
	return Request{
		SourceTable:  "vitals_entries",
		ArchiveTable: "vitals_entries_archive",
		IDColumn:     "id",
		IDValue:      "11111111-1111-1111-1111-111111111111",
		ActorID:      "tester",
	}
}

func newTestEngine(store *fakeStore, insp *fakeInspector, audit *fakeAudit) *Engine {
	var sink AuditSink
	if audit != nil {
		sink = audit
	}
	return NewEngine(store, insp, sink, zerolog.Nop())
}

func matchingSchemas() *fakeInspector {
	return &fakeInspector{columns: map[string][]string{
		"vitals_entries":         {"id", "patient_id", "remark"},
		"vitals_entries_archive": {"id", "patient_id", "remark"},
	}}
}

func TestArchive_InvalidIdentifier(t *testing.T) {
	e := newTestEngine(&fakeStore{}, matchingSchemas(), nil)

	req := vitalsRequest()
	req.IDColumn = "id; DROP TABLE vitals_entries"
	if _, err := e.Archive(context.Background(), req); err == nil {
		t.Error("expected error for malicious identifier")
	}

	req = vitalsRequest()
	req.ArchiveTable = req.SourceTable
	if _, err := e.Archive(context.Background(), req); err == nil {
		t.Error("expected error when source and archive are the same table")
	}
}

func TestArchive_MissingSourceTable(t *testing.T) {
	store := &fakeStore{tx: &fakeTx{}}
	insp := &fakeInspector{columns: map[string][]string{}}
	e := newTestEngine(store, insp, nil)

	res, err := e.Archive(context.Background(), vitalsRequest())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if res.Existed || res.Moved {
		t.Errorf("expected empty result for missing source table, got %+v", res)
	}
	if store.began {
		t.Error("no transaction should start when the source table is missing")
	}
}

func TestArchive_CreatesArchiveTable(t *testing.T) {
	store := &fakeStore{tx: &fakeTx{results: []execResult{{rows: 1}, {rows: 1}}}}
	insp := &fakeInspector{columns: map[string][]string{
		"vitals_entries": {"id", "patient_id", "remark"},
	}}
	e := newTestEngine(store, insp, nil)

	if _, err := e.Archive(context.Background(), vitalsRequest()); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if len(insp.created) != 1 {
		t.Fatalf("expected one archive table creation, got %d", len(insp.created))
	}
	if insp.created[0] != [2]string{"vitals_entries_archive", "vitals_entries"} {
		t.Errorf("unexpected creation args: %v", insp.created[0])
	}
}

func TestArchive_DryRun(t *testing.T) {
	store := &fakeStore{tx: &fakeTx{}, rowExists: true}
	e := newTestEngine(store, matchingSchemas(), nil)

	req := vitalsRequest()
	req.DryRun = true
	res, err := e.Archive(context.Background(), req)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if !res.Existed || res.Moved {
		t.Errorf("expected {Existed:true Moved:false}, got %+v", res)
	}
	if store.began {
		t.Error("dry run must not start a transaction")
	}

	store.rowExists = false
	res, err = e.Archive(context.Background(), req)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if res.Existed {
		t.Errorf("expected Existed false for absent row, got %+v", res)
	}
}

func TestArchive_MovesRow(t *testing.T) {
	tx := &fakeTx{results: []execResult{{rows: 1}, {rows: 1}}}
	store := &fakeStore{tx: tx}
	audit := &fakeAudit{}
	e := newTestEngine(store, matchingSchemas(), audit)

	res, err := e.Archive(context.Background(), vitalsRequest())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if !res.Existed || !res.Moved {
		t.Errorf("expected {Existed:true Moved:true}, got %+v", res)
	}
	if !tx.committed {
		t.Error("transaction was not committed")
	}
	if len(tx.statements) != 2 {
		t.Fatalf("expected insert and delete, got %v", tx.statements)
	}
	if !strings.HasPrefix(tx.statements[0], "INSERT INTO vitals_entries_archive") {
		t.Errorf("unexpected first statement: %s", tx.statements[0])
	}
	if !strings.HasPrefix(tx.statements[1], "DELETE FROM vitals_entries") {
		t.Errorf("unexpected second statement: %s", tx.statements[1])
	}
	if len(audit.records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(audit.records))
	}
	if audit.records[0].action != "archive" || audit.records[0].actorID != "tester" {
		t.Errorf("unexpected audit record: %+v", audit.records[0])
	}
}

func TestArchive_SchemaDriftNarrowsColumns(t *testing.T) {
	tx := &fakeTx{results: []execResult{{rows: 1}, {rows: 1}}}
	store := &fakeStore{tx: tx}
	insp := &fakeInspector{columns: map[string][]string{
		"vitals_entries":         {"id", "patient_id", "remark", "new_field"},
		"vitals_entries_archive": {"id", "patient_id", "remark"},
	}}
	e := newTestEngine(store, insp, nil)

	if _, err := e.Archive(context.Background(), vitalsRequest()); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if strings.Contains(tx.statements[0], "new_field") {
		t.Errorf("drifted column must be excluded from the copy: %s", tx.statements[0])
	}
	if !strings.Contains(tx.statements[0], "id, patient_id, remark") {
		t.Errorf("expected intersection columns in source order: %s", tx.statements[0])
	}
}

func TestArchive_EmptyIntersectionUsesSourceColumns(t *testing.T) {
	tx := &fakeTx{results: []execResult{{rows: 1}, {rows: 1}}}
	store := &fakeStore{tx: tx}
	insp := &fakeInspector{columns: map[string][]string{
		"vitals_entries":         {"id", "patient_id"},
		"vitals_entries_archive": {"completely", "different"},
	}}
	e := newTestEngine(store, insp, nil)

	if _, err := e.Archive(context.Background(), vitalsRequest()); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if !strings.Contains(tx.statements[0], "id, patient_id") {
		t.Errorf("expected fallback to full source column list: %s", tx.statements[0])
	}
}

func TestArchive_RowNotFound(t *testing.T) {
	tx := &fakeTx{results: []execResult{{rows: 0}}}
	store := &fakeStore{tx: tx}
	e := newTestEngine(store, matchingSchemas(), nil)

	res, err := e.Archive(context.Background(), vitalsRequest())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if res.Existed || res.Moved {
		t.Errorf("expected empty result for absent row, got %+v", res)
	}
	if tx.committed {
		t.Error("empty move must not commit")
	}
	if !tx.rolledBack {
		t.Error("empty move must roll back")
	}
}

func TestArchive_ConcurrentArchive(t *testing.T) {
	// Insert copies one row but the delete finds none: another caller
	// archived the row in between. Not an error.
	tx := &fakeTx{results: []execResult{{rows: 1}, {rows: 0}}}
	store := &fakeStore{tx: tx}
	audit := &fakeAudit{}
	e := newTestEngine(store, matchingSchemas(), audit)

	res, err := e.Archive(context.Background(), vitalsRequest())
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	if !res.Existed || res.Moved {
		t.Errorf("expected {Existed:true Moved:false}, got %+v", res)
	}
	if tx.committed {
		t.Error("concurrent loss must roll back, not commit")
	}
	if len(audit.records) != 0 {
		t.Error("no audit record for a move that did not happen")
	}
}

func TestArchive_ExecFailureRollsBack(t *testing.T) {
	tx := &fakeTx{results: []execResult{{err: errors.New("disk full")}}}
	store := &fakeStore{tx: tx}
	e := newTestEngine(store, matchingSchemas(), nil)

	_, err := e.Archive(context.Background(), vitalsRequest())
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}
	if tx.committed {
		t.Error("failed move must not commit")
	}
	if !tx.rolledBack {
		t.Error("failed move must roll back")
	}
}

func TestArchive_CommitFailure(t *testing.T) {
	tx := &fakeTx{results: []execResult{{rows: 1}, {rows: 1}}, commitErr: errors.New("connection lost")}
	store := &fakeStore{tx: tx}
	audit := &fakeAudit{}
	e := newTestEngine(store, matchingSchemas(), audit)

	_, err := e.Archive(context.Background(), vitalsRequest())
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}
	if len(audit.records) != 0 {
		t.Error("no audit record when the commit failed")
	}
}

func TestArchive_BeginFailure(t *testing.T) {
	store := &fakeStore{beginErr: errors.New("pool exhausted")}
	e := newTestEngine(store, matchingSchemas(), nil)

	if _, err := e.Archive(context.Background(), vitalsRequest()); !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}
}
