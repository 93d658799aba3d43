package notes

import (
	"time"

	"github.com/google/uuid"
)

// Table is the live clinical notes table. The column linking a note to its
// patient is not fixed: freshly provisioned databases use FKColumn,
// deployments migrated from the legacy schema still carry LegacyFKColumn.
// Repositories resolve the actual name through a SchemaResolver on every
// call instead of hard-coding either convention.
const (
	Table          = "clinical_notes"
	FKColumn       = "patient_id"
	LegacyFKColumn = "client_id"
)

// Entry is one clinician-written note for a patient visit. Unlike vitals
// entries, notes may be amended in place by the workflow that created them,
// and several notes can exist for the same patient and day.
type Entry struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	VisitDate      *time.Time `db:"visit_date" json:"visit_date,omitempty"`
	CreatedAt      *time.Time `db:"created_at" json:"created_at,omitempty"`
	Diagnosis      string     `db:"diagnosis" json:"diagnosis"`
	Interview      string     `db:"interview" json:"interview"`
	Recommendation string     `db:"recommendation" json:"recommendation"`
	Assessment     string     `db:"assessment" json:"assessment"`
	Notes          string     `db:"notes" json:"notes"`
	Symptoms       string     `db:"symptoms" json:"symptoms"`
	UpdatedAt      *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// PendingNote is one vitals entry waiting for its clinical note. The vitals
// workflow enqueues a row at capture time; the notes workflow polls and
// consumes it. The queue replaces the old implicit session hand-off between
// the two request lifecycles.
type PendingNote struct {
	VitalsID   uuid.UUID `db:"vitals_id" json:"vitals_id"`
	PatientID  uuid.UUID `db:"patient_id" json:"patient_id"`
	EnqueuedAt time.Time `db:"enqueued_at" json:"enqueued_at"`
}
