package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinrec/clinrec/internal/platform/db"
)

// ErrNotFound is returned when no note matches the requested id.
var ErrNotFound = errors.New("clinical note not found")

// SchemaResolver discovers which patient foreign-key convention the notes
// table actually uses. Resolution never fails; it falls back to the modern
// column name.
type SchemaResolver interface {
	ResolveForeignKeyColumn(ctx context.Context, table, first, fallback string) string
}

type RepoPG struct {
	pool   *pgxpool.Pool
	schema SchemaResolver
}

func NewRepoPG(pool *pgxpool.Pool, schema SchemaResolver) *RepoPG {
	return &RepoPG{pool: pool, schema: schema}
}

func (r *RepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// fkColumn resolves the patient foreign-key column name, legacy convention
// first so migrated deployments keep working. Resolved fresh on every call;
// an archive run or migration may have changed the answer since the last
// request.
func (r *RepoPG) fkColumn(ctx context.Context) string {
	return r.schema.ResolveForeignKeyColumn(ctx, Table, LegacyFKColumn, FKColumn)
}

const noteCols = `id, visit_date, created_at,
	diagnosis, interview, recommendation, assessment, notes, symptoms, updated_at`

func scanNote(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.VisitDate, &e.CreatedAt,
		&e.Diagnosis, &e.Interview, &e.Recommendation, &e.Assessment, &e.Notes, &e.Symptoms, &e.UpdatedAt,
	)
	return &e, err
}

func (r *RepoPG) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	q := fmt.Sprintf(`INSERT INTO %s
		(id, %s, visit_date, created_at, diagnosis, interview, recommendation, assessment, notes, symptoms)
		VALUES ($1, $2, $3, COALESCE($4, NOW()), $5, $6, $7, $8, $9, $10)`,
		Table, r.fkColumn(ctx))
	_, err := r.conn(ctx).Exec(ctx, q,
		e.ID, e.PatientID, e.VisitDate, e.CreatedAt,
		e.Diagnosis, e.Interview, e.Recommendation, e.Assessment, e.Notes, e.Symptoms,
	)
	if err != nil {
		return fmt.Errorf("insert clinical note: %w", err)
	}
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	q := fmt.Sprintf("SELECT %s, %s FROM %s WHERE id = $1", noteCols, r.fkColumn(ctx), Table)

	var e Entry
	err := r.conn(ctx).QueryRow(ctx, q, id).Scan(
		&e.ID, &e.VisitDate, &e.CreatedAt,
		&e.Diagnosis, &e.Interview, &e.Recommendation, &e.Assessment, &e.Notes, &e.Symptoms, &e.UpdatedAt,
		&e.PatientID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get clinical note: %w", err)
	}
	return &e, nil
}

func (r *RepoPG) Amend(ctx context.Context, e *Entry) error {
	tag, err := r.conn(ctx).Exec(ctx, fmt.Sprintf(`UPDATE %s SET
		visit_date = $2, diagnosis = $3, interview = $4, recommendation = $5,
		assessment = $6, notes = $7, symptoms = $8, updated_at = NOW()
		WHERE id = $1`, Table),
		e.ID, e.VisitDate,
		e.Diagnosis, e.Interview, e.Recommendation, e.Assessment, e.Notes, e.Symptoms,
	)
	if err != nil {
		return fmt.Errorf("amend clinical note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RepoPG) AllByPatient(ctx context.Context, patientID uuid.UUID) ([]*Entry, error) {
	fk := r.fkColumn(ctx)
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1
		ORDER BY created_at DESC NULLS LAST, visit_date DESC NULLS LAST, id`,
		noteCols, Table, fk)
	rows, err := r.conn(ctx).Query(ctx, q, patientID)
	if err != nil {
		return nil, fmt.Errorf("list clinical notes: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan clinical note: %w", err)
		}
		e.PatientID = patientID
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *RepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	fk := r.fkColumn(ctx)

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", Table, fk), patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count clinical notes: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1
		ORDER BY created_at DESC NULLS LAST, visit_date DESC NULLS LAST, id
		LIMIT $2 OFFSET $3`, noteCols, Table, fk)
	rows, err := r.conn(ctx).Query(ctx, q, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list clinical notes: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan clinical note: %w", err)
		}
		e.PatientID = patientID
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
