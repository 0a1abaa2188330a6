// Package commitproto implements the commit-message protocol (C6, §4.6):
// generation, single-pass lexical parsing, and validation of the fixed
// Plan/Check/Learn body shape and its trailers.
package commitproto

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/bagakit/ft-harness/internal/harnesserr"
)

// Message is the structured content of a task commit message.
type Message struct {
	FeatID     string
	TaskID     string
	Summary    string
	Plan       string
	Check      string
	Learn      string
	GateResult string // "pass" | "fail"
	TaskStatus string // "done" | "blocked"

	// ExtraTrailers holds any trailer lines whose key is not one of the four
	// known trailers above, verbatim and in encounter order, so a round-trip
	// through Parse then Generate does not silently drop them (§4.6 "preserve
	// unknown trailers for forward compatibility").
	ExtraTrailers []string
}

var subjectRegex = regexp.MustCompile(`^feat\(F-[a-z0-9-]+\): task\(T-\d{3}\) .+$`)

// Generate renders m into the fixed commit-message shape of §4.6. It does
// not validate m — call Validate first if the caller needs a guarantee.
func Generate(m Message) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "feat(%s): task(%s) %s\n\n", m.FeatID, m.TaskID, m.Summary)
	fmt.Fprintf(&sb, "Plan:\n%s\n\n", m.Plan)
	fmt.Fprintf(&sb, "Check:\n%s\n\n", m.Check)
	fmt.Fprintf(&sb, "Learn:\n%s\n\n", m.Learn)
	fmt.Fprintf(&sb, "Feat-ID: %s\n", m.FeatID)
	fmt.Fprintf(&sb, "Task-ID: %s\n", m.TaskID)
	fmt.Fprintf(&sb, "Gate-Result: %s\n", m.GateResult)
	fmt.Fprintf(&sb, "Task-Status: %s\n", m.TaskStatus)
	for _, line := range m.ExtraTrailers {
		fmt.Fprintf(&sb, "%s\n", line)
	}
	return sb.String()
}

// section identifies which body header the parser is currently inside.
type section int

const (
	sectionNone section = iota
	sectionSubject
	sectionPlan
	sectionCheck
	sectionLearn
	sectionTrailers
)

// Parse performs a single-pass lexical parse of text: line-anchored section
// headers, no multi-line regex spanning (§9 "Commit parsing"). It does not
// apply the semantic validation rules of Validate — callers should call
// both.
func Parse(text string) (*Message, error) {
	m := &Message{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	cur := sectionSubject
	var planLines, checkLines, learnLines []string
	sawSubject := false

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case cur == sectionSubject:
			if trimmed == "" {
				if !sawSubject {
					continue // skip leading blank lines before the subject
				}
				cur = sectionNone
				continue
			}
			m.Summary = line
			sawSubject = true
			continue
		case trimmed == "Plan:":
			cur = sectionPlan
			continue
		case trimmed == "Check:":
			cur = sectionCheck
			continue
		case trimmed == "Learn:":
			cur = sectionLearn
			continue
		case isTrailerLine(trimmed):
			cur = sectionTrailers
			if err := applyTrailer(m, trimmed); err != nil {
				return nil, err
			}
			continue
		}

		switch cur {
		case sectionPlan:
			planLines = append(planLines, line)
		case sectionCheck:
			checkLines = append(checkLines, line)
		case sectionLearn:
			learnLines = append(learnLines, line)
		case sectionTrailers:
			if trimmed != "" {
				if err := applyTrailer(m, trimmed); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning commit message: %w", harnesserr.ErrIOError)
	}

	m.Plan = strings.TrimSpace(strings.Join(planLines, "\n"))
	m.Check = strings.TrimSpace(strings.Join(checkLines, "\n"))
	m.Learn = strings.TrimSpace(strings.Join(learnLines, "\n"))

	if !sawSubject {
		return nil, fmt.Errorf("no subject line found: %w", harnesserr.ErrInvalidCommit)
	}
	subjectLine := m.Summary
	if m.FeatID != "" {
		// Rebuild the full subject for regex validation; the raw captured
		// line already has the full "feat(...): task(...) summary" text.
		// Leading blank lines are skipped here as in the scan above.
		subjectLine = firstLine(strings.TrimLeft(text, " \t\r\n"))
	}
	if !subjectRegex.MatchString(subjectLine) {
		return nil, fmt.Errorf("subject %q does not match required pattern: %w", subjectLine, harnesserr.ErrInvalidCommit)
	}
	// Strip the "feat(F-..): task(T-...) " prefix from Summary so callers
	// get the free-text summary, not the whole subject.
	m.Summary = stripSubjectPrefix(subjectLine)

	return m, nil
}

var trailerKeyRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*:\s`)

func isTrailerLine(trimmed string) bool {
	return trailerKeyRegex.MatchString(trimmed + " ")
}

func applyTrailer(m *Message, line string) error {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return fmt.Errorf("malformed trailer %q: %w", line, harnesserr.ErrInvalidCommit)
	}
	key := strings.TrimSpace(line[:idx])
	val := strings.TrimSpace(line[idx+1:])
	switch key {
	case "Feat-ID":
		m.FeatID = val
	case "Task-ID":
		m.TaskID = val
	case "Gate-Result":
		m.GateResult = val
	case "Task-Status":
		m.TaskStatus = val
	default:
		// Unknown trailers are preserved verbatim for forward compatibility
		// (§9 "Preserve unknown trailers") so Generate can re-emit them.
		m.ExtraTrailers = append(m.ExtraTrailers, key+": "+val)
	}
	return nil
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

var subjectPrefixRegex = regexp.MustCompile(`^feat\(F-[a-z0-9-]+\): task\(T-\d{3}\) `)

func stripSubjectPrefix(subject string) string {
	return subjectPrefixRegex.ReplaceAllString(subject, "")
}

// Validate checks m against §4.6's rules: subject shape (reconstructed),
// section non-emptiness, trailer enums, and the Task-Status/Gate-Result
// cross-field rule.
func Validate(m Message) error {
	subject := fmt.Sprintf("feat(%s): task(%s) %s", m.FeatID, m.TaskID, m.Summary)
	if !subjectRegex.MatchString(subject) {
		return fmt.Errorf("subject %q does not match required pattern: %w", subject, harnesserr.ErrInvalidCommit)
	}
	if strings.TrimSpace(m.Plan) == "" {
		return fmt.Errorf("Plan section must be non-empty: %w", harnesserr.ErrInvalidCommit)
	}
	if strings.TrimSpace(m.Check) == "" {
		return fmt.Errorf("Check section must be non-empty: %w", harnesserr.ErrInvalidCommit)
	}
	if strings.TrimSpace(m.Learn) == "" {
		return fmt.Errorf("Learn section must be non-empty: %w", harnesserr.ErrInvalidCommit)
	}
	if m.GateResult != "pass" && m.GateResult != "fail" {
		return fmt.Errorf("Gate-Result must be pass or fail, got %q: %w", m.GateResult, harnesserr.ErrInvalidCommit)
	}
	if m.TaskStatus != "done" && m.TaskStatus != "blocked" {
		return fmt.Errorf("Task-Status must be done or blocked, got %q: %w", m.TaskStatus, harnesserr.ErrInvalidCommit)
	}
	if m.TaskStatus == "done" && m.GateResult != "pass" {
		return fmt.Errorf("Task-Status: done requires Gate-Result: pass: %w", harnesserr.ErrInvalidCommit)
	}
	if m.FeatID == "" || m.TaskID == "" {
		return fmt.Errorf("Feat-ID and Task-ID trailers are required: %w", harnesserr.ErrInvalidCommit)
	}
	return nil
}
