// Package scores defines the persisted artifacts of a scoring event: the
// append-only audit trail and the per-alert uncertainty interval cache.
package scores

import (
	"context"
	"errors"
	"time"

	"github.com/argussec/argus/go/types"
)

// ErrNoAudit is returned when an alert has no audit records yet.
var ErrNoAudit = errors.New("no audit records for alert")

// IntervalFreshness is how long a cached uncertainty interval stays valid.
const IntervalFreshness = 6 * time.Hour

// AuditRecord captures every input of one scoring event. Records are only
// ever appended, never updated; together they are the history of how an
// alert's score was derived.
type AuditRecord struct {
	AlertID           types.AlertID
	KeywordWeight     float64
	SourceCredibility float64
	FrequencyFactor   float64
	ZScore            float64
	RecencyFactor     float64
	FinalScore        float64

	// Monte Carlo summary of the score distribution at scoring time.
	MCMean float64
	MCP05  float64
	MCP50  float64
	MCP95  float64
	MCStd  float64

	ComputedAt time.Time
}

// Interval is one cached uncertainty interval for an alert, upserted on
// recomputation.
type Interval struct {
	AlertID    types.AlertID
	N          int
	P05        float64
	P50        float64
	P95        float64
	Mean       float64
	Std        float64
	ComputedAt time.Time
	Method     string
}

// Fresh returns true if the cached interval may be served as-is: computed
// within the freshness window and with the requested sample count.
func (i *Interval) Fresh(nowTS time.Time, n int) bool {
	return i.N == n && nowTS.Sub(i.ComputedAt) < IntervalFreshness
}

// Store abstracts the persistence of audit records and interval cache rows.
type Store interface {
	// AppendAudit inserts one audit record. The record is never modified
	// afterwards.
	AppendAudit(ctx context.Context, rec *AuditRecord) error

	// LatestAudit returns the most recent audit record for an alert, or
	// ErrNoAudit.
	LatestAudit(ctx context.Context, id types.AlertID) (*AuditRecord, error)

	// AuditHistory returns the audit records for an alert, newest first.
	AuditHistory(ctx context.Context, id types.AlertID, limit int) ([]*AuditRecord, error)

	// GetInterval returns the cached interval for an alert, or nil if none
	// has been computed yet.
	GetInterval(ctx context.Context, id types.AlertID) (*Interval, error)

	// UpsertInterval inserts or replaces the cached interval for an alert.
	// Last writer wins; concurrent recomputations produce statistically
	// equivalent rows.
	UpsertInterval(ctx context.Context, in *Interval) error
}
