// Package scoring contains the deterministic multi-factor risk score formula.
//
//	recency_factor = max(0.1, 1 - recency_hours/168)
//	raw            = weight * frequency * credibility * 20 + recency_factor*10
//	score          = round(clamp(raw, 0, 100), 1)
//
// The orchestration that feeds the formula lives in the triage package; this
// package is pure arithmetic so the uncertainty estimator can run sampled
// inputs through the exact production formula.
package scoring

import (
	"math"

	"github.com/argussec/argus/go/types"
)

const (
	// RecencyWindowHours is the horizon over which recency decays linearly;
	// one week.
	RecencyWindowHours = 168.0

	// MinRecencyFactor is the floor the recency factor decays to.
	MinRecencyFactor = 0.1
)

// RecencyFactor maps hours-since-event to the [MinRecencyFactor, 1.0] decay
// factor.
func RecencyFactor(recencyHours float64) float64 {
	return math.Max(MinRecencyFactor, 1.0-recencyHours/RecencyWindowHours)
}

// RecencyHours inverts RecencyFactor, mapping a factor back to hours. Used by
// the uncertainty estimator to turn a sampled recency factor into formula
// input.
func RecencyHours(recencyFactor float64) float64 {
	return math.Max(0, (1.0-recencyFactor)*RecencyWindowHours)
}

// Compute returns the 0-100 risk score and its severity label.
func Compute(keywordWeight, sourceCredibility, frequencyFactor, recencyHours float64) (float64, types.Severity) {
	raw := keywordWeight*frequencyFactor*sourceCredibility*20.0 + RecencyFactor(recencyHours)*10.0
	score := math.Round(math.Min(100.0, math.Max(0.0, raw))*10) / 10
	return score, types.SeverityFromScore(score)
}
