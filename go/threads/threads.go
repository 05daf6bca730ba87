// Package threads is the correlation engine: it clusters alerts that share
// identifiers within a time window into SOI (subject-of-interest) incident
// threads.
//
// The engine is stateless across runs. Every Build reads one snapshot of
// alerts and entities and recomputes clusters from scratch, so the same
// inputs always produce the same threads and the same thread ids. Thread
// identity can therefore shift when underlying entity data changes between
// runs; that trade-off buys idempotence and freedom from incremental
// merge/split bookkeeping.
package threads

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/argussec/argus/go/types"
)

const (
	// DefaultLookback bounds how far back the alert snapshot reaches.
	DefaultLookback = 30 * 24 * time.Hour

	// DefaultClusterWindow is the maximum time between two alerts for an
	// entity-sharing link.
	DefaultClusterWindow = 72 * time.Hour

	// DefaultTightWindow is the window for the tight-temporal rule: two
	// alerts this close that matched the same term link even without a
	// shared entity.
	DefaultTightWindow = time.Hour

	// DefaultMinClusterSize is the smallest cluster that becomes a thread.
	DefaultMinClusterSize = 2
)

// Default confidence weights. Confidence rewards the number of distinct
// linkage reasons and the diversity of contributing source types.
const (
	DefaultBaseConfidence   = 0.3
	DefaultReasonWeight     = 0.15
	DefaultSourceTypeWeight = 0.1
)

// Reason codes attached to pairwise links. Entity links additionally get a
// per-type code, e.g. "shared_actor_handle".
const (
	ReasonCrossSource   = "cross_source"
	ReasonTightTemporal = "tight_temporal"
)

// Options tunes one Build invocation. Zero values select the defaults above;
// negative windows make the option set invalid and Build returns no threads.
type Options struct {
	Lookback       time.Duration
	ClusterWindow  time.Duration
	TightWindow    time.Duration
	MinClusterSize int

	BaseConfidence   float64
	ReasonWeight     float64
	SourceTypeWeight float64
}

// withDefaults fills in zero values. Returns false if the options are
// invalid.
func (o Options) withDefaults() (Options, bool) {
	if o.Lookback == 0 {
		o.Lookback = DefaultLookback
	}
	if o.ClusterWindow == 0 {
		o.ClusterWindow = DefaultClusterWindow
	}
	if o.TightWindow == 0 {
		o.TightWindow = DefaultTightWindow
	}
	if o.MinClusterSize == 0 {
		o.MinClusterSize = DefaultMinClusterSize
	}
	if o.BaseConfidence == 0 {
		o.BaseConfidence = DefaultBaseConfidence
	}
	if o.ReasonWeight == 0 {
		o.ReasonWeight = DefaultReasonWeight
	}
	if o.SourceTypeWeight == 0 {
		o.SourceTypeWeight = DefaultSourceTypeWeight
	}
	if o.Lookback < 0 || o.ClusterWindow < 0 || o.TightWindow < 0 || o.MinClusterSize < 1 {
		return o, false
	}
	// Candidate pairs are only considered within ClusterWindow, so a wider
	// tight window would never be reached.
	if o.TightWindow > o.ClusterWindow {
		o.TightWindow = o.ClusterWindow
	}
	return o, true
}

// Member is one alert on a thread timeline.
type Member struct {
	AlertID     types.AlertID
	Title       string
	MatchedTerm string
	SourceID    types.SourceID
	SourceName  string
	SourceType  string
	RiskScore   float64
	TASScore    float64
	EventTime   time.Time
}

// PairEvidence records why two specific alerts linked, for analyst
// drill-down.
type PairEvidence struct {
	A       types.AlertID
	B       types.AlertID
	Reasons []string
	// SharedValues are the normalized entity values (or the matched term
	// for tight-temporal links) the pair shares.
	SharedValues []string
}

// Thread is one correlated incident thread.
type Thread struct {
	// ID is derived from the sorted member alert-id set, so rebuilding from
	// the same inputs reproduces the same id.
	ID string

	// Timeline holds the members sorted by event time.
	Timeline []Member

	SourceTypes    []string
	ReasonCodes    []string
	SharedEntities []string
	MatchedTerms   []string

	MaxRiskScore float64
	MaxTASScore  float64
	Confidence   float64

	StartTime time.Time
	EndTime   time.Time

	Evidence []PairEvidence
}

// CrossSource returns true if the thread spans more than one source type.
func (t *Thread) CrossSource() bool {
	return len(t.SourceTypes) > 1
}

// ThreadID derives the deterministic id for a member set.
func ThreadID(members []types.AlertID) string {
	sorted := make([]types.AlertID, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = fmt.Sprintf("%d", id)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return "soi-" + hex.EncodeToString(sum[:])[:12]
}

// Best selects the single strongest thread: cross-source-type threads first,
// then higher confidence, then higher max risk score, then more members.
// Returns nil for an empty slice.
func Best(threads []*Thread) *Thread {
	var best *Thread
	for _, t := range threads {
		if best == nil || better(t, best) {
			best = t
		}
	}
	return best
}

func better(a, b *Thread) bool {
	if a.CrossSource() != b.CrossSource() {
		return a.CrossSource()
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.MaxRiskScore != b.MaxRiskScore {
		return a.MaxRiskScore > b.MaxRiskScore
	}
	return len(a.Timeline) > len(b.Timeline)
}
