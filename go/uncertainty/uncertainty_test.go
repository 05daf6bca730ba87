package uncertainty

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testParams() Params {
	return Params{
		KeywordWeight:   4.0,
		FrequencyFactor: 1.5,
		RecencyFactor:   0.8,
		Alpha:           8.0,
		Beta:            3.0,
	}
}

func TestSimulate_SameSeed_SameInterval(t *testing.T) {
	a := Simulate(testParams(), 500, 42)
	b := Simulate(testParams(), 500, 42)
	assert.Equal(t, a, b)
}

func TestSimulate_DifferentSeeds_DifferentIntervals(t *testing.T) {
	a := Simulate(testParams(), 500, 42)
	b := Simulate(testParams(), 500, 43)
	assert.NotEqual(t, a, b)
}

func TestSimulate_PercentilesAreOrderedAndBounded(t *testing.T) {
	iv := Simulate(testParams(), 1000, 7)
	assert.Equal(t, 1000, iv.N)
	assert.Equal(t, MethodMonteCarloBeta, iv.Method)
	assert.LessOrEqual(t, iv.P05, iv.P50)
	assert.LessOrEqual(t, iv.P50, iv.P95)
	assert.GreaterOrEqual(t, iv.P05, 0.0)
	assert.LessOrEqual(t, iv.P95, 100.0)
	assert.GreaterOrEqual(t, iv.Mean, iv.P05)
	assert.LessOrEqual(t, iv.Mean, iv.P95)
}

func TestSimulate_ZeroSampleCount_UsesDefault(t *testing.T) {
	iv := Simulate(testParams(), 0, 1)
	assert.Equal(t, DefaultSamples, iv.N)
}

func TestSimulate_ZeroParams_FallsBackToNeutralInputs(t *testing.T) {
	// All-zero params still produce a valid interval off the neutral
	// defaults, it must not NaN or panic.
	iv := Simulate(Params{}, 100, 9)
	assert.False(t, iv.P05 > iv.P95)
	assert.GreaterOrEqual(t, iv.P05, 0.0)
	assert.LessOrEqual(t, iv.P95, 100.0)
}

func TestBetaAdjusted_SameSeed_SameInterval(t *testing.T) {
	a := BetaAdjusted(65.0, 8.0, 3.0, 500, 42)
	b := BetaAdjusted(65.0, 8.0, 3.0, 500, 42)
	assert.Equal(t, a, b)
	assert.Equal(t, MethodBetaAdjusted, a.Method)
}

func TestBetaAdjusted_MeanTracksBaseScore(t *testing.T) {
	// Samples scale the base by credibility relative to its mean, so the
	// sample mean should land near the base score.
	iv := BetaAdjusted(65.0, 20.0, 5.0, 2000, 11)
	assert.InDelta(t, 65.0, iv.Mean, 3.0)
	assert.GreaterOrEqual(t, iv.P05, 0.0)
	assert.LessOrEqual(t, iv.P95, 100.0)
}

func TestBetaAdjusted_ZeroBase_AllSamplesZero(t *testing.T) {
	iv := BetaAdjusted(0, 2.0, 2.0, 100, 3)
	assert.Equal(t, 0.0, iv.Mean)
	assert.Equal(t, 0.0, iv.P95)
}

func TestPercentile_LinearInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}
	assert.Equal(t, 10.0, Percentile(sorted, 0))
	assert.Equal(t, 30.0, Percentile(sorted, 0.5))
	assert.Equal(t, 50.0, Percentile(sorted, 1))
	assert.InDelta(t, 12.0, Percentile(sorted, 0.05), 1e-9)
	assert.InDelta(t, 48.0, Percentile(sorted, 0.95), 1e-9)
	assert.InDelta(t, 25.0, Percentile(sorted, 0.375), 1e-9)
}

func TestPercentile_EmptyAndSingle(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, 0.5))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 0.5))
}

func TestClampSamples(t *testing.T) {
	assert.Equal(t, DefaultSamples, ClampSamples(0))
	assert.Equal(t, DefaultSamples, ClampSamples(-5))
	assert.Equal(t, MinSamples, ClampSamples(1))
	assert.Equal(t, MinSamples, ClampSamples(99))
	assert.Equal(t, 100, ClampSamples(100))
	assert.Equal(t, 2000, ClampSamples(2000))
}
