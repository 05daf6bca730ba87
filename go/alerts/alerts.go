// Package alerts defines the Alert record produced by ingestion and the Store
// interface the rest of the engine reads and writes alerts through.
package alerts

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/argussec/argus/go/types"
)

// ErrNotFound is returned by Store implementations when the requested alert
// does not exist.
var ErrNotFound = errors.New("alert not found")

// Alert is a single normalized alert handed to the core by a collector.
//
// Collectors create alerts; after creation only the scoring and assessment
// pipelines mutate them, and only the RiskScore, Severity, TASScore and
// Reviewed fields.
type Alert struct {
	ID        types.AlertID
	SourceID  types.SourceID
	KeywordID types.KeywordID

	Title       string
	Content     string
	URL         string
	MatchedTerm string

	// PublishedAt is the collector-supplied event timestamp, kept verbatim
	// because upstream formats vary. Use EventTime to interpret it.
	PublishedAt string
	CreatedAt   time.Time

	// ContentHash is the normalized hash of Title+Content used for
	// deduplication. DuplicateOf points at the canonical alert when this
	// record was found to be a duplicate; such alerts are excluded from
	// scoring, entity extraction and frequency counting.
	ContentHash string
	DuplicateOf types.AlertID

	RiskScore float64
	Severity  types.Severity
	TASScore  float64
	Reviewed  bool
}

// IsDuplicate returns true if this alert was marked as a duplicate of an
// earlier one.
func (a *Alert) IsDuplicate() bool {
	return a.DuplicateOf != types.BadAlertID
}

// EventTime returns the best event timestamp for the alert: the parsed
// PublishedAt if possible, else CreatedAt, else the supplied fallback.
func (a *Alert) EventTime(fallback time.Time) time.Time {
	if ts, ok := ParseTimestamp(a.PublishedAt); ok {
		return ts
	}
	if !a.CreatedAt.IsZero() {
		return a.CreatedAt.UTC()
	}
	return fallback
}

// Since returns the non-duplicate alerts whose event time falls at or after
// cutoff, ordered by event time then id. Event time prefers the lenient
// PublishedAt parse over CreatedAt, which cannot be expressed portably in
// SQL, so Store implementations share this filter instead of pushing it into
// a query.
func Since(in []*Alert, cutoff time.Time) []*Alert {
	var ret []*Alert
	for _, a := range in {
		if a.IsDuplicate() {
			continue
		}
		if a.EventTime(a.CreatedAt).Before(cutoff) {
			continue
		}
		ret = append(ret, a)
	}
	sort.Slice(ret, func(i, j int) bool {
		ti := ret[i].EventTime(ret[i].CreatedAt)
		tj := ret[j].EventTime(ret[j].CreatedAt)
		if ti.Equal(tj) {
			return ret[i].ID < ret[j].ID
		}
		return ti.Before(tj)
	})
	return ret
}

// Entity is one extracted artifact tied to an alert, e.g. an actor handle,
// domain, or CVE id. Entities are the substrate the correlation engine joins
// alerts on.
type Entity struct {
	AlertID types.AlertID
	Type    string
	Value   string
}

// Store abstracts the persistence of alerts and their extracted entities.
type Store interface {
	// Get returns the alert with the given id, or ErrNotFound.
	Get(ctx context.Context, id types.AlertID) (*Alert, error)

	// Insert persists a new alert and returns its assigned id.
	Insert(ctx context.Context, a *Alert) (types.AlertID, error)

	// FindByURL returns the id of an alert with an exactly matching URL, or
	// BadAlertID if there is none.
	FindByURL(ctx context.Context, url string) (types.AlertID, error)

	// FindByContentHash returns the id of the oldest non-duplicate alert
	// with the given content hash, or BadAlertID if there is none.
	FindByContentHash(ctx context.Context, hash string) (types.AlertID, error)

	// UpdateScore writes the risk score and severity computed for an alert.
	UpdateScore(ctx context.Context, id types.AlertID, score float64, severity types.Severity) error

	// UpdateTAS writes the alert-level threat assessment score rollup.
	UpdateTAS(ctx context.Context, id types.AlertID, tas float64) error

	// SetReviewed marks an alert as (un)reviewed by an analyst.
	SetReviewed(ctx context.Context, id types.AlertID, reviewed bool) error

	// ListUnreviewed returns all non-duplicate alerts not yet reviewed,
	// oldest first. Bulk rescoring iterates this list.
	ListUnreviewed(ctx context.Context) ([]*Alert, error)

	// ListSince returns all non-duplicate alerts whose event time falls at
	// or after the cutoff, oldest first. The correlation engine reads its
	// snapshot through this.
	ListSince(ctx context.Context, cutoff time.Time) ([]*Alert, error)

	// CountReviewedBySource returns how many alerts from the given source
	// have been reviewed. Used to derive false negatives for source
	// evaluation metrics.
	CountReviewedBySource(ctx context.Context, id types.SourceID) (int, error)

	// AddEntities stores extracted entities for an alert. Duplicate
	// (alert, type, value) triples are ignored.
	AddEntities(ctx context.Context, id types.AlertID, entities []Entity) error

	// Entities returns the extracted entities for each of the given alerts.
	Entities(ctx context.Context, ids []types.AlertID) (map[types.AlertID][]Entity, error)
}
