package coupon

import (
	"fmt"
	"strings"
	"time"
)

// DateError reports a date field that cannot be parsed.
type DateError struct {
	Field string
	Value string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%s: invalid date %q", e.Field, e.Value)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 3:04 PM",
	"01/02/2006",
}

// ParseDate parses the date formats produced by the API and the coupon form.
// Values without a zone are taken as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// utcTimestamp formats a date field as the API expects datetimes.
func utcTimestamp(field, value string) (string, error) {
	t, ok := ParseDate(value)
	if !ok {
		return "", &DateError{Field: field, Value: value}
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z"), nil
}
