// Package pathway implements the pathway-to-violence behavioral model for
// tracked threat subjects.
//
// Eight indicators, each in [0,1], are combined with fixed weights into a
// 0-100 composite score. Assessments are keyed by (subject, calendar day):
// re-assessing a subject on the same day replaces that day's row.
package pathway

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/argussec/argus/go/types"
)

// ErrSubjectNotFound is returned when the requested threat subject does not
// exist.
var ErrSubjectNotFound = errors.New("threat subject not found")

// Indicators holds the eight pathway indicator values, each clamped to [0,1]
// before use.
type Indicators struct {
	Grievance                  float64
	Fixation                   float64
	Identification             float64
	NovelAggression            float64
	EnergyBurst                float64
	Leakage                    float64
	LastResort                 float64
	DirectlyCommunicatedThreat float64
}

// indicatorWeights are the fixed composite weights; they sum to 1.0.
var indicatorWeights = []struct {
	value  func(*Indicators) float64
	weight float64
}{
	{func(i *Indicators) float64 { return i.Grievance }, 0.10},
	{func(i *Indicators) float64 { return i.Fixation }, 0.15},
	{func(i *Indicators) float64 { return i.Identification }, 0.10},
	{func(i *Indicators) float64 { return i.NovelAggression }, 0.15},
	{func(i *Indicators) float64 { return i.EnergyBurst }, 0.10},
	{func(i *Indicators) float64 { return i.Leakage }, 0.15},
	{func(i *Indicators) float64 { return i.LastResort }, 0.10},
	{func(i *Indicators) float64 { return i.DirectlyCommunicatedThreat }, 0.15},
}

// Score computes the weighted 0-100 composite for the indicators.
func Score(ind Indicators) float64 {
	score := 0.0
	for _, iw := range indicatorWeights {
		v := math.Max(0, math.Min(1, iw.value(&ind)))
		score += v * iw.weight * 100.0
	}
	score = math.Min(100.0, math.Max(0.0, score))
	return math.Round(score*1e3) / 1e3
}

const (
	// trendLookbackDays bounds how far back prior assessments are considered
	// when deriving the escalation trend, and trendHistoryLimit how many.
	trendLookbackDays = 30
	trendHistoryLimit = 5

	// trendBand is the +/- dead zone around the prior average inside which
	// the trend is reported as stable.
	trendBand = 5.0
)

// TrendAgainst compares a current score against prior scores (newest first).
// Fewer than two priors always reads as stable.
func TrendAgainst(current float64, prior []float64) types.Trend {
	if len(prior) < 2 {
		return types.TrendStable
	}
	sum := 0.0
	for _, s := range prior {
		sum += s
	}
	avg := sum / float64(len(prior))
	switch {
	case current > avg+trendBand:
		return types.TrendIncreasing
	case current < avg-trendBand:
		return types.TrendDecreasing
	default:
		return types.TrendStable
	}
}

// Subject is one tracked individual.
type Subject struct {
	ID       types.SubjectID
	Name     string
	RiskTier types.RiskTier
	LastSeen time.Time
	Status   string
}

// Assessment is one behavioral assessment of a subject. At most one exists
// per (subject, Date).
type Assessment struct {
	SubjectID  types.SubjectID
	Date       string // calendar day, "YYYY-MM-DD" in UTC
	Indicators Indicators

	PathwayScore    float64
	EscalationTrend types.Trend

	EvidenceSummary string
	SourceAlertIDs  []types.AlertID
	AnalystNotes    string
}

// Store abstracts the persistence of subjects and their assessments.
type Store interface {
	// GetSubject returns a subject, or ErrSubjectNotFound.
	GetSubject(ctx context.Context, id types.SubjectID) (*Subject, error)

	// InsertSubject persists a new subject and returns its assigned id.
	InsertSubject(ctx context.Context, s *Subject) (types.SubjectID, error)

	// UpsertAssessment inserts the assessment or replaces the existing row
	// with the same (SubjectID, Date).
	UpsertAssessment(ctx context.Context, a *Assessment) error

	// RecentScores returns the pathway scores of a subject's assessments
	// with Date >= sinceDay, newest first, at most limit entries.
	RecentScores(ctx context.Context, id types.SubjectID, sinceDay string, limit int) ([]float64, error)

	// History returns a subject's assessments, newest first, at most limit
	// entries.
	History(ctx context.Context, id types.SubjectID, limit int) ([]*Assessment, error)

	// UpdateSubjectState writes the subject's derived tier, last-seen
	// timestamp and status.
	UpdateSubjectState(ctx context.Context, id types.SubjectID, tier types.RiskTier, lastSeen time.Time, status string) error

	// ActiveSubjects returns active subjects whose latest pathway score is
	// at least minScore, highest score first.
	ActiveSubjects(ctx context.Context, minScore float64) ([]*Subject, error)
}
