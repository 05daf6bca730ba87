package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimestamp_AcceptedFormats(t *testing.T) {
	test := func(value string, want time.Time) {
		got, ok := ParseTimestamp(value)
		assert.True(t, ok, value)
		assert.Equal(t, want, got, value)
	}
	test("2025-03-10T12:30:00Z", time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC))
	test("2025-03-10T12:30:00+02:00", time.Date(2025, time.March, 10, 10, 30, 0, 0, time.UTC))
	test("2025-03-10T12:30:00", time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC))
	test("2025-03-10 12:30:00", time.Date(2025, time.March, 10, 12, 30, 0, 0, time.UTC))
	test("2025-03-10", time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))
	test("  2025-03-10  ", time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC))
}

func TestParseTimestamp_Unparsable(t *testing.T) {
	for _, value := range []string{"", "   ", "yesterday", "03/10/2025", "1741608000"} {
		_, ok := ParseTimestamp(value)
		assert.False(t, ok, value)
	}
}

func TestEventTime_FallsBackWhenUnparsable(t *testing.T) {
	fallback := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	a := &Alert{PublishedAt: "2025-03-09T08:00:00Z"}
	assert.Equal(t, time.Date(2025, time.March, 9, 8, 0, 0, 0, time.UTC), a.EventTime(fallback))

	a = &Alert{PublishedAt: "garbage"}
	assert.Equal(t, fallback, a.EventTime(fallback))

	a = &Alert{}
	assert.Equal(t, fallback, a.EventTime(fallback))
}
