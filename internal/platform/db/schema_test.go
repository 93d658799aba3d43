package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

// boolRow is a pgx.Row that scans a fixed boolean.
type boolRow struct{ value bool }

func (r boolRow) Scan(dest ...interface{}) error {
	if len(dest) != 1 {
		return errors.New("expected a single destination")
	}
	b, ok := dest[0].(*bool)
	if !ok {
		return errors.New("expected *bool destination")
	}
	*b = r.value
	return nil
}

// errRow is a pgx.Row whose Scan always fails, simulating a catalog error.
type errRow struct{ err error }

func (r errRow) Scan(dest ...interface{}) error { return r.err }

// stringRows is a minimal pgx.Rows over a list of single-column string rows.
type stringRows struct {
	values []string
	pos    int
}

func (r *stringRows) Close()                                       {}
func (r *stringRows) Err() error                                   { return nil }
func (r *stringRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stringRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stringRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}
func (r *stringRows) Scan(dest ...interface{}) error {
	s, ok := dest[0].(*string)
	if !ok {
		return errors.New("expected *string destination")
	}
	*s = r.values[r.pos-1]
	return nil
}
func (r *stringRows) Values() ([]interface{}, error) { return nil, nil }
func (r *stringRows) RawValues() [][]byte            { return nil }
func (r *stringRows) Conn() *pgx.Conn                { return nil }

// catalogQuerier answers column-existence probes from a fixed table -> columns
// map, the way information_schema would.
type catalogQuerier struct {
	columns map[string][]string
	failing bool
}

func (q *catalogQuerier) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	if q.failing {
		return nil, errors.New("catalog unavailable")
	}
	table, _ := args[0].(string)
	return &stringRows{values: q.columns[table]}, nil
}

func (q *catalogQuerier) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	if q.failing {
		return errRow{err: errors.New("catalog unavailable")}
	}
	table, _ := args[0].(string)
	cols, tableKnown := q.columns[table]
	if len(args) == 1 {
		return boolRow{value: tableKnown}
	}
	column, _ := args[1].(string)
	for _, c := range cols {
		if c == column {
			return boolRow{value: true}
		}
	}
	return boolRow{value: false}
}

func (q *catalogQuerier) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if q.failing {
		return pgconn.CommandTag{}, errors.New("catalog unavailable")
	}
	return pgconn.CommandTag{}, nil
}

func newTestInspector(q Querier) *Inspector {
	return NewInspector(q, zerolog.Nop())
}

func TestValidIdentifier(t *testing.T) {
	valid := []string{"clinical_notes", "_private", "Table2", "a"}
	for _, name := range valid {
		if !ValidIdentifier(name) {
			t.Errorf("expected %q to be valid", name)
		}
	}

	invalid := []string{"", "2start", "with-dash", "with space", "t;DROP TABLE x", `t"quoted`}
	for _, name := range invalid {
		if ValidIdentifier(name) {
			t.Errorf("expected %q to be invalid", name)
		}
	}
}

func TestListColumns(t *testing.T) {
	q := &catalogQuerier{columns: map[string][]string{
		"clinical_notes": {"id", "patient_id", "diagnosis"},
	}}
	insp := newTestInspector(q)

	cols, err := insp.ListColumns(context.Background(), "clinical_notes")
	if err != nil {
		t.Fatalf("ListColumns: %v", err)
	}
	if len(cols) != 3 || cols[0] != "id" || cols[1] != "patient_id" || cols[2] != "diagnosis" {
		t.Errorf("unexpected columns: %v", cols)
	}

	cols, err = insp.ListColumns(context.Background(), "missing_table")
	if err != nil {
		t.Fatalf("ListColumns missing table: %v", err)
	}
	if len(cols) != 0 {
		t.Errorf("expected no columns for unknown table, got %v", cols)
	}

	if _, err := insp.ListColumns(context.Background(), "bad-name"); err == nil {
		t.Error("expected error for invalid table name")
	}
}

func TestColumnExists(t *testing.T) {
	q := &catalogQuerier{columns: map[string][]string{
		"clinical_notes": {"id", "client_id"},
	}}
	insp := newTestInspector(q)

	if !insp.ColumnExists(context.Background(), "clinical_notes", "client_id") {
		t.Error("expected client_id to exist")
	}
	if insp.ColumnExists(context.Background(), "clinical_notes", "patient_id") {
		t.Error("expected patient_id to be absent")
	}
	if insp.ColumnExists(context.Background(), "bad name", "id") {
		t.Error("expected invalid table name to report false")
	}
}

func TestColumnExists_CatalogFailure(t *testing.T) {
	insp := newTestInspector(&catalogQuerier{failing: true})
	if insp.ColumnExists(context.Background(), "clinical_notes", "patient_id") {
		t.Error("expected catalog failure to report false")
	}
}

func TestTableExists(t *testing.T) {
	q := &catalogQuerier{columns: map[string][]string{
		"vitals_entries": {"id"},
	}}
	insp := newTestInspector(q)

	if !insp.TableExists(context.Background(), "vitals_entries") {
		t.Error("expected vitals_entries to exist")
	}
	if insp.TableExists(context.Background(), "vitals_entries_archive") {
		t.Error("expected archive table to be absent")
	}
}

func TestResolveForeignKeyColumn(t *testing.T) {
	ctx := context.Background()

	// Legacy deployment: first candidate present.
	legacy := newTestInspector(&catalogQuerier{columns: map[string][]string{
		"clinical_notes": {"id", "client_id"},
	}})
	if got := legacy.ResolveForeignKeyColumn(ctx, "clinical_notes", "client_id", "patient_id"); got != "client_id" {
		t.Errorf("legacy schema: expected client_id, got %q", got)
	}

	// Modern deployment: only the fallback candidate present.
	modern := newTestInspector(&catalogQuerier{columns: map[string][]string{
		"clinical_notes": {"id", "patient_id"},
	}})
	if got := modern.ResolveForeignKeyColumn(ctx, "clinical_notes", "client_id", "patient_id"); got != "patient_id" {
		t.Errorf("modern schema: expected patient_id, got %q", got)
	}

	// Missing table: resolution still returns the fallback.
	empty := newTestInspector(&catalogQuerier{})
	if got := empty.ResolveForeignKeyColumn(ctx, "clinical_notes", "client_id", "patient_id"); got != "patient_id" {
		t.Errorf("missing table: expected patient_id, got %q", got)
	}

	// Catalog failure: same fail-open behavior.
	broken := newTestInspector(&catalogQuerier{failing: true})
	if got := broken.ResolveForeignKeyColumn(ctx, "clinical_notes", "client_id", "patient_id"); got != "patient_id" {
		t.Errorf("catalog failure: expected patient_id, got %q", got)
	}
}
