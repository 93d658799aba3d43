package vitals

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one vital-sign measurement event recorded by clinical staff
// during a visit. Entries are immutable once created; superseding
// measurements get a new row and old rows are only ever moved to the archive
// table, never mutated.
type Entry struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	PatientID       uuid.UUID  `db:"patient_id" json:"patient_id"`
	RecordDate      time.Time  `db:"record_date" json:"record_date"`
	CapturedAt      *time.Time `db:"captured_at" json:"captured_at,omitempty"`
	HeightCm        *float64   `db:"height_cm" json:"height_cm,omitempty"`
	WeightKg        *float64   `db:"weight_kg" json:"weight_kg,omitempty"`
	BloodPressure   *string    `db:"blood_pressure" json:"blood_pressure,omitempty"`
	TemperatureC    *float64   `db:"temperature_c" json:"temperature_c,omitempty"`
	PulseBpm        *int       `db:"pulse_bpm" json:"pulse_bpm,omitempty"`
	RespiratoryRate *int       `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	Remark          string     `db:"remark" json:"remark"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// EffectiveAt is the timestamp an entry sorts and matches by: the precise
// capture time when present, otherwise midnight of the record date. A zero
// record date yields nil, meaning the entry carries no usable timestamp.
func (e *Entry) EffectiveAt() *time.Time {
	if e.CapturedAt != nil && !e.CapturedAt.IsZero() {
		return e.CapturedAt
	}
	if e.RecordDate.IsZero() {
		return nil
	}
	day := time.Date(e.RecordDate.Year(), e.RecordDate.Month(), e.RecordDate.Day(), 0, 0, 0, 0, e.RecordDate.Location())
	return &day
}
