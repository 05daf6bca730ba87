// Package types contains the scalar types shared across the Argus scoring
// and correlation packages.
package types

// AlertID is the unique id of a single ingested alert.
type AlertID int64

// BadAlertID is an invalid AlertID.
const BadAlertID = AlertID(0)

// SourceID is the unique id of a collection source.
type SourceID int64

// KeywordID is the unique id of a watchlist keyword.
type KeywordID int64

// SubjectID is the unique id of a tracked threat subject.
type SubjectID int64

// POIID is the unique id of a protectee of interest.
type POIID int64

// Severity is the label derived from an alert's risk score.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AllSeverities lists every Severity from least to most severe.
var AllSeverities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// SeverityFromScore maps a 0-100 risk score to its Severity label.
//
// The boundaries are inclusive on the lower edge, i.e. a score of exactly
// 90.0 is critical and 89.9 is high.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 90:
		return SeverityCritical
	case score >= 70:
		return SeverityHigh
	case score >= 40:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// RiskTier is the escalation tier assigned to a threat subject or POI
// assessment.
type RiskTier string

const (
	RiskTierLow      RiskTier = "LOW"
	RiskTierRoutine  RiskTier = "ROUTINE"
	RiskTierElevated RiskTier = "ELEVATED"
	RiskTierCritical RiskTier = "CRITICAL"
)

// RiskTierFromPathwayScore maps a pathway-to-violence composite score to a
// RiskTier.
func RiskTierFromPathwayScore(score float64) RiskTier {
	switch {
	case score >= 75:
		return RiskTierCritical
	case score >= 50:
		return RiskTierElevated
	case score >= 25:
		return RiskTierRoutine
	default:
		return RiskTierLow
	}
}

// Trend describes how a subject's assessments are moving over time.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)
