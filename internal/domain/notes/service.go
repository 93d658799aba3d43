package notes

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo    Repository
	pending PendingRepository
}

func NewService(repo Repository, pending PendingRepository) *Service {
	return &Service{repo: repo, pending: pending}
}

// Write stores a new note. When the note answers a pending vitals capture,
// vitalsID points at it and the queue entry is consumed. A cleanup failure
// surfaces as an error, but the stored note is kept.
func (s *Service) Write(ctx context.Context, e *Entry, vitalsID *uuid.UUID) error {
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("patient id is required")
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return err
	}

	if vitalsID != nil && s.pending != nil {
		if err := s.pending.Complete(ctx, *vitalsID); err != nil {
			return fmt.Errorf("note stored but pending queue cleanup failed: %w", err)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

// Amend updates an existing note's text fields in place.
func (s *Service) Amend(ctx context.Context, e *Entry) error {
	return s.repo.Amend(ctx, e)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

// NextPending returns the oldest vitals capture still waiting for a note,
// or nil when the patient's queue is empty.
func (s *Service) NextPending(ctx context.Context, patientID uuid.UUID) (*PendingNote, error) {
	return s.pending.NextPending(ctx, patientID)
}
