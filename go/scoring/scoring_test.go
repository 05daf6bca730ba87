package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/argussec/argus/go/types"
)

func TestCompute_HighEverything_ClampsToOneHundred(t *testing.T) {
	// 4.8 * 2.2 * 0.95 * 20 = 200.64 before recency, well past the clamp.
	score, severity := Compute(4.8, 0.95, 2.2, 2.0)
	assert.Equal(t, 100.0, score)
	assert.Equal(t, types.SeverityCritical, severity)
}

func TestCompute_ModerateInputs_LowSeverity(t *testing.T) {
	score, severity := Compute(3.2, 0.5, 0.9, 18.0)
	assert.Equal(t, 37.7, score)
	assert.Equal(t, types.SeverityLow, severity)
}

func TestCompute_SeverityBoundariesAreInclusiveLower(t *testing.T) {
	// credibility=1, frequency=1, recency factor floored at 0.1 so the raw
	// score is weight*20 + 1 exactly.
	test := func(weight, wantScore float64, wantSeverity types.Severity) {
		score, severity := Compute(weight, 1.0, 1.0, 10000.0)
		assert.Equal(t, wantScore, score)
		assert.Equal(t, wantSeverity, severity)
	}
	test(4.45, 90.0, types.SeverityCritical)
	test(4.445, 89.9, types.SeverityHigh)
	test(3.45, 70.0, types.SeverityHigh)
	test(3.445, 69.9, types.SeverityMedium)
	test(1.95, 40.0, types.SeverityMedium)
	test(1.945, 39.9, types.SeverityLow)
}

func TestCompute_NegativeRawScore_ClampsToZero(t *testing.T) {
	score, severity := Compute(0, 0, -5, 0)
	assert.Equal(t, 10.0, score) // recency term alone
	assert.Equal(t, types.SeverityLow, severity)

	score, severity = Compute(1.0, 1.0, -5, 10000.0)
	assert.Equal(t, 0.0, score)
	assert.Equal(t, types.SeverityLow, severity)
}

func TestRecencyFactor_DecaysLinearlyWithFloor(t *testing.T) {
	assert.Equal(t, 1.0, RecencyFactor(0))
	assert.InDelta(t, 0.5, RecencyFactor(84), 1e-9)
	assert.Equal(t, 0.1, RecencyFactor(168))
	assert.Equal(t, 0.1, RecencyFactor(5000))
}

func TestRecencyHours_InvertsRecencyFactor(t *testing.T) {
	assert.InDelta(t, 84.0, RecencyHours(0.5), 1e-9)
	assert.Equal(t, 0.0, RecencyHours(1.0))
	assert.Equal(t, 0.0, RecencyHours(1.3))
	for _, h := range []float64{0, 12, 84, 150} {
		assert.InDelta(t, h, RecencyHours(RecencyFactor(h)), 1e-9)
	}
}
