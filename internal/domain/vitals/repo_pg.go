package vitals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinrec/clinrec/internal/platform/db"
)

// ErrNotFound is returned when no entry matches the requested id.
var ErrNotFound = errors.New("vitals entry not found")

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

func (r *RepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const entryCols = `id, patient_id, record_date, captured_at,
	height_cm, weight_kg, blood_pressure, temperature_c, pulse_bpm, respiratory_rate,
	remark, created_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(
		&e.ID, &e.PatientID, &e.RecordDate, &e.CapturedAt,
		&e.HeightCm, &e.WeightKg, &e.BloodPressure, &e.TemperatureC, &e.PulseBpm, &e.RespiratoryRate,
		&e.Remark, &e.CreatedAt,
	)
	return &e, err
}

func (r *RepoPG) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `INSERT INTO vitals_entries
		(id, patient_id, record_date, captured_at,
		 height_cm, weight_kg, blood_pressure, temperature_c, pulse_bpm, respiratory_rate, remark)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.PatientID, e.RecordDate, e.CapturedAt,
		e.HeightCm, e.WeightKg, e.BloodPressure, e.TemperatureC, e.PulseBpm, e.RespiratoryRate, e.Remark,
	)
	if err != nil {
		return fmt.Errorf("insert vitals entry: %w", err)
	}
	return nil
}

func (r *RepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	q := fmt.Sprintf("SELECT %s FROM vitals_entries WHERE id = $1", entryCols)
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get vitals entry: %w", err)
	}
	return e, nil
}

func (r *RepoPG) AllByPatient(ctx context.Context, patientID uuid.UUID) ([]*Entry, error) {
	q := fmt.Sprintf(`SELECT %s FROM vitals_entries WHERE patient_id = $1
		ORDER BY captured_at DESC NULLS LAST, record_date DESC`, entryCols)
	rows, err := r.conn(ctx).Query(ctx, q, patientID)
	if err != nil {
		return nil, fmt.Errorf("list vitals entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vitals entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *RepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		"SELECT COUNT(*) FROM vitals_entries WHERE patient_id = $1", patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count vitals entries: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM vitals_entries WHERE patient_id = $1
		ORDER BY captured_at DESC NULLS LAST, record_date DESC
		LIMIT $2 OFFSET $3`, entryCols)
	rows, err := r.conn(ctx).Query(ctx, q, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list vitals entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan vitals entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
