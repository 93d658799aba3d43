// Package textnorm normalizes hand-entered clinical free text for display
// and for fixed-width print layouts. Older entry forms stored field labels
// inside the field value itself ("Diagnosis: ..."), used inconsistent line
// endings, and padded lines with stray whitespace; everything downstream of
// the record store goes through this package first.
package textnorm

import (
	"html"
	"regexp"
	"strings"
)

// NoDataPlaceholder is rendered when a field is empty after cleaning, so
// that print and page layouts never receive empty markup.
const NoDataPlaceholder = "&mdash;"

// labelRule strips one redundant in-band label from the start of a line.
type labelRule struct {
	name string
	re   *regexp.Regexp
}

// labelRules is the ordered set of labels older code paths embedded in
// stored values. The rule set is data so a new legacy label is one line
// here, not another scattered string replacement.
var labelRules = []labelRule{
	{"diagnosis", regexp.MustCompile(`(?i)^diagnosis\s*:\s*`)},
	{"interview", regexp.MustCompile(`(?i)^(?:patient\s+)?interview\s*:\s*`)},
	{"anamnesis", regexp.MustCompile(`(?i)^anamnesis\s*:\s*`)},
	{"recommendation", regexp.MustCompile(`(?i)^recommendations?\s*:\s*`)},
	{"assessment", regexp.MustCompile(`(?i)^assessment\s*:\s*`)},
	{"notes", regexp.MustCompile(`(?i)^notes?\s*:\s*`)},
	{"symptoms", regexp.MustCompile(`(?i)^symptoms?\s*:\s*`)},
	{"remark", regexp.MustCompile(`(?i)^remarks?\s*:\s*`)},
}

var (
	lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	spaceRun    = regexp.MustCompile(`[ \t]+`)
)

func stripLabels(line string) string {
	for {
		stripped := line
		for _, rule := range labelRules {
			stripped = rule.re.ReplaceAllString(stripped, "")
		}
		if stripped == line {
			return line
		}
		line = stripped
	}
}

// Clean normalizes a stored clinical text field: line endings become LF,
// redundant in-band labels are stripped, every line is trimmed with interior
// whitespace runs collapsed to one space, runs of blank lines collapse to a
// single blank line, and leading/trailing blank lines are dropped.
//
// Clean is idempotent: Clean(Clean(x)) == Clean(x).
func Clean(text string) string {
	lines := strings.Split(lineEndings.Replace(text), "\n")

	for i, line := range lines {
		line = stripLabels(strings.TrimSpace(line))
		line = spaceRun.ReplaceAllString(line, " ")
		lines[i] = strings.TrimSpace(line)
	}

	var out []string
	for _, line := range lines {
		if line == "" {
			if len(out) == 0 || out[len(out)-1] == "" {
				continue
			}
		}
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}

	return strings.Join(out, "\n")
}

// tokenRun matches one whitespace-free token or one whitespace run, so the
// original separators survive wrapping untouched.
var tokenRun = regexp.MustCompile(`\S+|\s+`)

// WrapForPrint prepares text for a fixed-width print layout: a hard line
// break is inserted after every maxWords words, and any single token longer
// than maxChars is split into maxChars-wide chunks. Whitespace runs between
// words are preserved as-is. Non-positive limits disable the respective
// rule.
func WrapForPrint(text string, maxWords, maxChars int) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	words := 0
	for _, tok := range tokenRun.FindAllString(text, -1) {
		if strings.TrimSpace(tok) == "" {
			b.WriteString(tok)
			continue
		}

		b.WriteString(chunkToken(tok, maxChars))
		words++
		if maxWords > 0 && words%maxWords == 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func chunkToken(tok string, maxChars int) string {
	if maxChars <= 0 || len(tok) <= maxChars {
		return tok
	}

	var b strings.Builder
	for len(tok) > maxChars {
		b.WriteString(tok[:maxChars])
		b.WriteString("\n")
		tok = tok[maxChars:]
	}
	b.WriteString(tok)
	return b.String()
}

const lineBreak = "<br />"

// ToSafeMarkup escapes text for HTML output, converts newlines to <br />,
// and strips break tags left dangling at either end by upstream trimming.
// An empty result renders as NoDataPlaceholder rather than empty markup.
func ToSafeMarkup(text string) string {
	markup := html.EscapeString(lineEndings.Replace(text))
	markup = strings.ReplaceAll(markup, "\n", lineBreak)

	for {
		trimmed := strings.TrimSpace(markup)
		trimmed = strings.TrimPrefix(trimmed, lineBreak)
		trimmed = strings.TrimSuffix(trimmed, lineBreak)
		if trimmed == markup {
			break
		}
		markup = trimmed
	}

	if markup == "" {
		return NoDataPlaceholder
	}
	return markup
}
