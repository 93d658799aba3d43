package timeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinrec/clinrec/internal/domain/vitals"
)

// Kind tags the three timeline entry variants.
type Kind string

const (
	KindCombined   Kind = "combined"
	KindVitalsOnly Kind = "vitals_only"
	KindNoteOnly   Kind = "note_only"
)

// Note is the note side of a timeline entry. Several stored note rows that
// share a grouping key are merged into one Note; IDs lists every source
// row. Text fields are display-ready markup, never raw storage values.
type Note struct {
	IDs            []uuid.UUID `json:"ids"`
	VisitDate      *time.Time  `json:"visit_date,omitempty"`
	CreatedAt      *time.Time  `json:"created_at,omitempty"`
	Diagnosis      string      `json:"diagnosis"`
	Interview      string      `json:"interview"`
	Recommendation string      `json:"recommendation"`
}

// Entry is one row of a patient's merged timeline. Exactly one of the
// variant shapes holds: Combined carries both Vitals and Note, VitalsOnly
// only Vitals, NoteOnly only Note. EffectiveAt is nil for rows with no
// usable timestamp; those sort after everything else.
type Entry struct {
	Kind        Kind          `json:"kind"`
	EffectiveAt *time.Time    `json:"effective_at,omitempty"`
	Vitals      *vitals.Entry `json:"vitals,omitempty"`
	Note        *Note         `json:"note,omitempty"`
}

// MatchPolicy selects how a vitals entry picks among several unconsumed
// notes sharing its calendar day. MatchFirst preserves the historical
// first-in-iteration-order behavior; MatchEarliest picks the earliest note
// of the day.
type MatchPolicy string

const (
	MatchFirst    MatchPolicy = "first"
	MatchEarliest MatchPolicy = "earliest"
)

// Valid reports whether p is a known policy.
func (p MatchPolicy) Valid() bool {
	return p == MatchFirst || p == MatchEarliest
}
