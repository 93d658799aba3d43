package vitals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PendingEnqueuer hands a freshly captured vitals entry to the notes
// workflow. The queue is an explicit table, so the hand-off survives the
// request that created it.
type PendingEnqueuer interface {
	Enqueue(ctx context.Context, vitalsID, patientID uuid.UUID) error
}

type Service struct {
	repo    Repository
	pending PendingEnqueuer
	log     zerolog.Logger
}

func NewService(repo Repository, pending PendingEnqueuer, log zerolog.Logger) *Service {
	return &Service{repo: repo, pending: pending, log: log}
}

// Capture stores a new measurement and enqueues it for the notes workflow.
// A failed enqueue is logged but does not fail the capture: the measurement
// is the record of truth, the queue is a convenience for the clinician
// writing the note.
func (s *Service) Capture(ctx context.Context, e *Entry) error {
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("patient id is required")
	}
	if e.RecordDate.IsZero() {
		if e.CapturedAt != nil {
			e.RecordDate = *e.CapturedAt
		} else {
			e.RecordDate = time.Now()
		}
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return err
	}

	if s.pending != nil {
		if err := s.pending.Enqueue(ctx, e.ID, e.PatientID); err != nil {
			s.log.Warn().Err(err).Stringer("vitals_id", e.ID).Msg("enqueue pending note failed")
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
