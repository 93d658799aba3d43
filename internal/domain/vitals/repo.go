package vitals

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	// AllByPatient returns every entry for the patient, newest first.
	AllByPatient(ctx context.Context, patientID uuid.UUID) ([]*Entry, error)
	// ListByPatient returns one page of entries for the patient, newest
	// first, together with the total count.
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error)
}
