package task

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// ParseID parses a task identifier. Anything but a positive decimal integer
// is a validation error.
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, validationf("parse id", "invalid task id %q", raw)
	}
	return id, nil
}

// ParseStatuses parses a comma-separated status filter such as
// "open, Rejected". Entries are trimmed and case-folded; duplicates collapse.
// An empty string yields no filter. Unknown names are a validation error.
func ParseStatuses(raw string) ([]Status, error) {
	var out []Status
	seen := make(map[Status]bool)
	fold := cases.Fold() // Casers are stateful, one per call
	for _, part := range strings.Split(raw, ",") {
		name := fold.String(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		s := Status(name)
		if !s.Valid() {
			return nil, validationf("parse status", "unknown status %q", strings.TrimSpace(part))
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}

// ParseDate parses a due date given either as a calendar day (2006-01-02) or
// as an RFC 3339 timestamp. An empty string yields nil.
func ParseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			u := t.UTC()
			return &u, nil
		}
	}
	return nil, validationf("parse date", "invalid date %q", raw)
}
