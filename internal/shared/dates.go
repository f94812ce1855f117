package shared

import (
	"strings"
	"time"
)

// ParseDate accepts an RFC 3339 timestamp or a plain YYYY-MM-DD date and
// returns it in UTC.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, Validationf("invalid date %q", raw)
	}
	return t, nil
}
