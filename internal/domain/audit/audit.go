// Package audit is the write side of the clinic's audit trail. Recording is
// fire-and-forget: a failed audit insert is logged, never propagated, so
// the business operation that triggered it is unaffected.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinrec/clinrec/internal/platform/db"
)

type Record struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ActorID     string    `db:"actor_id" json:"actor_id"`
	Action      string    `db:"action" json:"action"`
	Target      string    `db:"target" json:"target"`
	Description string    `db:"description" json:"description"`
	RecordedAt  time.Time `db:"recorded_at" json:"recorded_at"`
}

type Recorder struct {
	db  db.Querier
	log zerolog.Logger
}

func NewRecorder(q db.Querier, log zerolog.Logger) *Recorder {
	return &Recorder{db: q, log: log.With().Str("component", "audit").Logger()}
}

// Record writes one audit row.
func (r *Recorder) Record(ctx context.Context, actorID, action, target, description string) {
	_, err := r.db.Exec(ctx, `INSERT INTO audit_log (id, actor_id, action, target, description)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), actorID, action, target, description)
	if err != nil {
		r.log.Warn().Err(err).
			Str("actor_id", actorID).
			Str("action", action).
			Str("target", target).
			Msg("audit record failed")
	}
}
