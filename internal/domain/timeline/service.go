package timeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinrec/clinrec/internal/domain/notes"
	"github.com/clinrec/clinrec/internal/domain/vitals"
	"github.com/clinrec/clinrec/internal/platform/textnorm"
)

// VitalsSource and NotesSource load a patient's full record streams, newest
// first. The repositories satisfy them; tests substitute fixtures.
type VitalsSource interface {
	AllByPatient(ctx context.Context, patientID uuid.UUID) ([]*vitals.Entry, error)
}

type NotesSource interface {
	AllByPatient(ctx context.Context, patientID uuid.UUID) ([]*notes.Entry, error)
}

type Config struct {
	MatchPolicy    MatchPolicy
	PrintWrapWords int
	PrintWrapChars int
}

// Service rebuilds a patient's merged timeline on every request. Nothing is
// cached: a concurrent archive or note amendment is visible on the next
// build.
type Service struct {
	vitals VitalsSource
	notes  NotesSource
	cfg    Config
	log    zerolog.Logger
}

func NewService(v VitalsSource, n NotesSource, cfg Config, log zerolog.Logger) *Service {
	if !cfg.MatchPolicy.Valid() {
		cfg.MatchPolicy = MatchFirst
	}
	if cfg.PrintWrapWords <= 0 {
		cfg.PrintWrapWords = 30
	}
	if cfg.PrintWrapChars <= 0 {
		cfg.PrintWrapChars = 40
	}
	return &Service{vitals: v, notes: n, cfg: cfg, log: log}
}

// noteGroup is a set of note rows sharing one grouping key, merged
// field-wise. matchAt is the timestamp vitals entries match against:
// created_at when known, otherwise midnight of the visit date, otherwise
// nil (the group can never match and surfaces as NoteOnly).
type noteGroup struct {
	ids       []uuid.UUID
	visitDate *time.Time
	createdAt *time.Time
	matchAt   *time.Time

	diagnosis      string
	interview      string
	recommendation string
	assessment     string
	notes          string
	symptoms       string

	consumed bool
}

// cleanTime drops nil and zero-value timestamps so a malformed or absent
// value degrades one row to "unordered" instead of failing the build.
func cleanTime(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	return t
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// groupKey derives the grouping key for a note row: the exact creation
// timestamp when present, else the visit day, else a synthetic key unique
// to the row so ungroupable rows never silently merge.
func groupKey(n *notes.Entry) string {
	if at := cleanTime(n.CreatedAt); at != nil {
		return "t:" + at.UTC().Format(time.RFC3339Nano)
	}
	if d := cleanTime(n.VisitDate); d != nil {
		return "d:" + dayKey(*d)
	}
	return "row:" + n.ID.String()
}

// mergeField folds a second clinician's text into an already-merged value.
// Two different non-empty values are concatenated with a visible separator;
// neither author's text is ever dropped.
func mergeField(existing, incoming string) string {
	incoming = strings.TrimSpace(incoming)
	if existing == "" {
		return incoming
	}
	if incoming == "" || incoming == existing {
		return existing
	}
	return existing + "\n\n---\n\n" + incoming
}

func groupNotes(rows []*notes.Entry) []*noteGroup {
	index := make(map[string]*noteGroup)
	var groups []*noteGroup

	for _, n := range rows {
		key := groupKey(n)
		g := index[key]
		if g == nil {
			g = &noteGroup{
				visitDate: cleanTime(n.VisitDate),
				createdAt: cleanTime(n.CreatedAt),
			}
			if g.createdAt != nil {
				g.matchAt = g.createdAt
			} else if g.visitDate != nil {
				day := startOfDay(*g.visitDate)
				g.matchAt = &day
			}
			index[key] = g
			groups = append(groups, g)
		}

		g.ids = append(g.ids, n.ID)
		if g.visitDate == nil {
			g.visitDate = cleanTime(n.VisitDate)
		}
		g.diagnosis = mergeField(g.diagnosis, n.Diagnosis)
		g.interview = mergeField(g.interview, n.Interview)
		g.recommendation = mergeField(g.recommendation, n.Recommendation)
		g.assessment = mergeField(g.assessment, n.Assessment)
		g.notes = mergeField(g.notes, n.Notes)
		g.symptoms = mergeField(g.symptoms, n.Symptoms)
	}

	return groups
}

// matchNote finds the unconsumed group for a vitals entry: an exact capture
// timestamp match first, then a same-calendar-day fallback. Under
// MatchFirst the first group in iteration order wins; under MatchEarliest
// the earliest group of that day wins.
func (s *Service) matchNote(v *vitals.Entry, groups []*noteGroup) *noteGroup {
	if at := cleanTime(v.CapturedAt); at != nil {
		for _, g := range groups {
			if !g.consumed && g.matchAt != nil && g.matchAt.Equal(*at) {
				return g
			}
		}
	}

	at := v.EffectiveAt()
	if at == nil {
		return nil
	}
	day := dayKey(*at)

	var found *noteGroup
	for _, g := range groups {
		if g.consumed || g.matchAt == nil || dayKey(*g.matchAt) != day {
			continue
		}
		if s.cfg.MatchPolicy == MatchFirst {
			return g
		}
		if found == nil || g.matchAt.Before(*found.matchAt) {
			found = g
		}
	}
	return found
}

// merged is one timeline row before display normalization.
type merged struct {
	kind   Kind
	at     *time.Time
	vitals *vitals.Entry
	group  *noteGroup
}

func (s *Service) buildMerged(ctx context.Context, patientID uuid.UUID) ([]*merged, error) {
	vrows, err := s.vitals.AllByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load vitals entries: %w", err)
	}
	nrows, err := s.notes.AllByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("load clinical notes: %w", err)
	}

	groups := groupNotes(nrows)

	var out []*merged
	for _, v := range vrows {
		if g := s.matchNote(v, groups); g != nil {
			g.consumed = true
			out = append(out, &merged{kind: KindCombined, at: v.EffectiveAt(), vitals: v, group: g})
		} else {
			out = append(out, &merged{kind: KindVitalsOnly, at: v.EffectiveAt(), vitals: v})
		}
	}
	for _, g := range groups {
		if !g.consumed {
			out = append(out, &merged{kind: KindNoteOnly, at: g.matchAt, group: g})
		}
	}

	// Descending by effective timestamp; rows with no timestamp sort last.
	// The sort is stable so rows within the same instant keep stream order.
	sort.SliceStable(out, func(i, j int) bool { return laterThan(out[i], out[j]) })
	return out, nil
}

func laterThan(a, b *merged) bool {
	if a.at == nil {
		return false
	}
	if b.at == nil {
		return true
	}
	return a.at.After(*b.at)
}

// plainNote holds the cleaned (not yet escaped) display fields of a note.
type plainNote struct {
	diagnosis      string
	interview      string
	recommendation string
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// firstNonEmptyLine cleans each candidate in turn and returns the first
// non-empty line found.
func firstNonEmptyLine(candidates ...string) string {
	for _, c := range candidates {
		if cleaned := textnorm.Clean(c); cleaned != "" {
			return firstLine(cleaned)
		}
	}
	return ""
}

// extractNote applies the display fallback chain: an empty diagnosis or
// interview is backfilled from the secondary fields (assessment, free-form
// notes, symptoms), then from the recommendation, then from the nurse
// remark when a vitals entry is attached. The chain is identical for
// combined and standalone entries apart from the remark, which standalone
// notes do not have.
func extractNote(g *noteGroup, v *vitals.Entry) plainNote {
	p := plainNote{
		diagnosis:      textnorm.Clean(g.diagnosis),
		interview:      textnorm.Clean(g.interview),
		recommendation: textnorm.Clean(g.recommendation),
	}

	if p.diagnosis == "" {
		p.diagnosis = firstNonEmptyLine(g.assessment, g.notes, g.symptoms)
	}
	if p.interview == "" {
		p.interview = firstNonEmptyLine(g.notes, g.symptoms, g.assessment)
	}

	if p.diagnosis == "" {
		p.diagnosis = firstLine(p.recommendation)
	}
	if p.interview == "" {
		p.interview = firstLine(p.recommendation)
	}
	if v != nil {
		remark := textnorm.Clean(v.Remark)
		if p.diagnosis == "" {
			p.diagnosis = firstLine(remark)
		}
		if p.interview == "" {
			p.interview = firstLine(remark)
		}
	}

	return p
}

func (s *Service) renderNote(g *noteGroup, v *vitals.Entry) *Note {
	p := extractNote(g, v)
	return &Note{
		IDs:            g.ids,
		VisitDate:      g.visitDate,
		CreatedAt:      g.createdAt,
		Diagnosis:      textnorm.ToSafeMarkup(p.diagnosis),
		Interview:      textnorm.ToSafeMarkup(p.interview),
		Recommendation: textnorm.ToSafeMarkup(p.recommendation),
	}
}

// BuildTimeline returns the patient's merged timeline, newest first, with
// every text field cleaned and escaped for direct display. A patient with
// no records yields an empty timeline.
func (s *Service) BuildTimeline(ctx context.Context, patientID uuid.UUID) ([]Entry, error) {
	ms, err := s.buildMerged(ctx, patientID)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(ms))
	for _, m := range ms {
		e := Entry{Kind: m.kind, EffectiveAt: m.at}
		if m.vitals != nil {
			vv := *m.vitals
			vv.Remark = textnorm.ToSafeMarkup(textnorm.Clean(vv.Remark))
			e.Vitals = &vv
		}
		if m.group != nil {
			e.Note = s.renderNote(m.group, m.vitals)
		}
		out = append(out, e)
	}
	return out, nil
}

// BuildPrint renders the timeline as plain text for the fixed-width print
// layout: no markup, every field wrapped to the configured word and
// character limits.
func (s *Service) BuildPrint(ctx context.Context, patientID uuid.UUID) (string, error) {
	ms, err := s.buildMerged(ctx, patientID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i, m := range ms {
		if i > 0 {
			b.WriteString("\n")
		}

		if m.at != nil {
			b.WriteString("=== " + m.at.Format("2006-01-02 15:04") + " ===\n")
		} else {
			b.WriteString("=== (undated) ===\n")
		}

		if m.vitals != nil {
			if line := vitalsLine(m.vitals); line != "" {
				b.WriteString("Vitals: " + line + "\n")
			}
			if remark := textnorm.Clean(m.vitals.Remark); remark != "" {
				b.WriteString("Remark: " + s.wrap(remark) + "\n")
			}
		}
		if m.group != nil {
			p := extractNote(m.group, m.vitals)
			writePrintField(&b, "Diagnosis", s.wrap(p.diagnosis))
			writePrintField(&b, "Interview", s.wrap(p.interview))
			writePrintField(&b, "Recommendation", s.wrap(p.recommendation))
		}
	}
	return b.String(), nil
}

func (s *Service) wrap(text string) string {
	return textnorm.WrapForPrint(text, s.cfg.PrintWrapWords, s.cfg.PrintWrapChars)
}

func writePrintField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(label + ": " + value + "\n")
}

func vitalsLine(v *vitals.Entry) string {
	var parts []string
	if v.HeightCm != nil {
		parts = append(parts, fmt.Sprintf("height %.1f cm", *v.HeightCm))
	}
	if v.WeightKg != nil {
		parts = append(parts, fmt.Sprintf("weight %.1f kg", *v.WeightKg))
	}
	if v.BloodPressure != nil && *v.BloodPressure != "" {
		parts = append(parts, "BP "+*v.BloodPressure)
	}
	if v.TemperatureC != nil {
		parts = append(parts, fmt.Sprintf("temp %.1f C", *v.TemperatureC))
	}
	if v.PulseBpm != nil {
		parts = append(parts, fmt.Sprintf("pulse %d bpm", *v.PulseBpm))
	}
	if v.RespiratoryRate != nil {
		parts = append(parts, fmt.Sprintf("resp %d/min", *v.RespiratoryRate))
	}
	return strings.Join(parts, ", ")
}
