package alerts

import (
	"strings"
	"time"
)

// timestampFormats are tried in order after RFC 3339 parsing fails. Collector
// feeds are inconsistent about timezones and precision, so parsing is
// deliberately lenient.
var timestampFormats = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses the timestamp formats alerts arrive with: ISO-8601
// with or without a timezone, "YYYY-MM-DD HH:MM:SS", or a bare date. The
// result is in UTC. ok is false when the value is empty or unparsable.
func ParseTimestamp(value string) (time.Time, bool) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.UTC(), true
	}
	for _, format := range timestampFormats {
		if ts, err := time.Parse(format, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
