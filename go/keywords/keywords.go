// Package keywords defines watchlist keywords and their per-day frequency
// counters.
package keywords

import (
	"context"
	"errors"
	"time"

	"github.com/argussec/argus/go/types"
)

// ErrNotFound is returned by Store implementations when the requested keyword
// does not exist.
var ErrNotFound = errors.New("keyword not found")

const (
	// MinWeight and MaxWeight bound a keyword's scoring weight.
	MinWeight = 0.1
	MaxWeight = 5.0

	// DayFormat is the calendar-day key the frequency counters are bucketed
	// by, always in UTC.
	DayFormat = "2006-01-02"
)

// Keyword is one watchlist term.
type Keyword struct {
	ID       types.KeywordID
	Term     string
	Category string

	// Weight scales the keyword's contribution to the risk score, in
	// [MinWeight, MaxWeight]. WeightSigma, when non-zero, overrides the
	// default sampling sigma used by the uncertainty estimator.
	Weight      float64
	WeightSigma float64

	Active bool
}

// DayCount is the frequency counter value for one keyword on one calendar
// day.
type DayCount struct {
	Day   string
	Count int
}

// Day formats a timestamp as the UTC calendar-day key used by the frequency
// counters.
func Day(ts time.Time) string {
	return ts.UTC().Format(DayFormat)
}

// Store abstracts the persistence of keywords and frequency counters.
//
// IncrementFrequency must be atomic per (keyword, day): concurrent ingestion
// of alerts matching the same keyword must not lose counts. The counters are
// read-only to the scoring engine.
type Store interface {
	// Get returns the keyword with the given id, or ErrNotFound.
	Get(ctx context.Context, id types.KeywordID) (*Keyword, error)

	// Insert persists a new keyword and returns its assigned id.
	Insert(ctx context.Context, k *Keyword) (types.KeywordID, error)

	// ListActive returns all active keywords ordered by id.
	ListActive(ctx context.Context) ([]*Keyword, error)

	// IncrementFrequency adds by to the (keyword, day) counter, creating it
	// at by if absent, atomically.
	IncrementFrequency(ctx context.Context, id types.KeywordID, day string, by int) error

	// FrequencyOn returns the counter value for the given day, 0 if there is
	// no row.
	FrequencyOn(ctx context.Context, id types.KeywordID, day string) (int, error)

	// FrequencyBetween returns the counters with from <= day < to, ordered
	// by day. Days with no row are absent from the result.
	FrequencyBetween(ctx context.Context, id types.KeywordID, from, to string) ([]DayCount, error)
}
