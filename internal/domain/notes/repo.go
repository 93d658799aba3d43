package notes

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	// Amend updates the text fields of an existing note in place.
	Amend(ctx context.Context, e *Entry) error
	// AllByPatient returns every note for the patient, newest first.
	AllByPatient(ctx context.Context, patientID uuid.UUID) ([]*Entry, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error)
}

// PendingRepository is the hand-off queue between the vitals capture
// workflow and the notes workflow.
type PendingRepository interface {
	Enqueue(ctx context.Context, vitalsID, patientID uuid.UUID) error
	// NextPending returns the oldest queued entry for the patient, or nil
	// when the queue is empty.
	NextPending(ctx context.Context, patientID uuid.UUID) (*PendingNote, error)
	// Complete removes a consumed queue entry.
	Complete(ctx context.Context, vitalsID uuid.UUID) error
}
