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

type PendingRepoPG struct {
	pool *pgxpool.Pool
}

func NewPendingRepoPG(pool *pgxpool.Pool) *PendingRepoPG {
	return &PendingRepoPG{pool: pool}
}

func (r *PendingRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *PendingRepoPG) Enqueue(ctx context.Context, vitalsID, patientID uuid.UUID) error {
	// Re-capturing the same vitals entry must not fail on the queue.
	_, err := r.conn(ctx).Exec(ctx, `INSERT INTO pending_notes (vitals_id, patient_id)
		VALUES ($1, $2) ON CONFLICT (vitals_id) DO NOTHING`, vitalsID, patientID)
	if err != nil {
		return fmt.Errorf("enqueue pending note: %w", err)
	}
	return nil
}

func (r *PendingRepoPG) NextPending(ctx context.Context, patientID uuid.UUID) (*PendingNote, error) {
	var p PendingNote
	err := r.conn(ctx).QueryRow(ctx, `SELECT vitals_id, patient_id, enqueued_at
		FROM pending_notes WHERE patient_id = $1 ORDER BY enqueued_at LIMIT 1`,
		patientID).Scan(&p.VitalsID, &p.PatientID, &p.EnqueuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending note: %w", err)
	}
	return &p, nil
}

func (r *PendingRepoPG) Complete(ctx context.Context, vitalsID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, "DELETE FROM pending_notes WHERE vitals_id = $1", vitalsID)
	if err != nil {
		return fmt.Errorf("complete pending note: %w", err)
	}
	return nil
}
