// Package uncertainty estimates the spread of a risk score via Monte Carlo
// simulation.
//
// Each sample perturbs the score formula's inputs — keyword weight, source
// credibility, frequency factor and recency — according to their assumed
// distributions, runs them through the production formula, and the resulting
// sample array yields the reported mean, standard deviation and percentiles.
//
// All sampling runs off an explicit seed so results are reproducible on
// demand and estimators never share generator state.
package uncertainty

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/argussec/argus/go/scoring"
)

const (
	// DefaultSamples is the sample count used when callers pass n <= 0, and
	// MinSamples the floor applied to any requested count.
	DefaultSamples = 500
	MinSamples     = 100

	// truncAttempts bounds the rejection sampling for truncated normals.
	// After this many out-of-bounds draws the last draw is clamped into
	// bounds; sampling never fails.
	truncAttempts = 20

	// MethodMonteCarloBeta identifies intervals produced by Simulate.
	MethodMonteCarloBeta = "monte_carlo_beta"

	// MethodBetaAdjusted identifies intervals produced by BetaAdjusted.
	MethodBetaAdjusted = "beta_adjusted"
)

// Params are the point estimates an interval is computed around.
type Params struct {
	KeywordWeight float64

	// WeightSigma overrides the keyword weight sampling sigma when > 0;
	// otherwise max(0.05, 0.15*weight) is used.
	WeightSigma float64

	FrequencyFactor float64
	RecencyFactor   float64

	// Alpha and Beta are the source's Beta-distribution parameters.
	Alpha float64
	Beta  float64
}

// Interval summarizes a sampled score distribution.
type Interval struct {
	N      int
	Mean   float64
	Std    float64
	P05    float64
	P50    float64
	P95    float64
	Method string
}

// Simulate draws n samples around the given point estimates and summarizes
// the resulting score distribution. The same seed always produces the same
// interval.
func Simulate(p Params, n int, seed uint64) Interval {
	n = ClampSamples(n)
	src := rand.NewSource(seed)

	weight := p.KeywordWeight
	if weight <= 0 {
		weight = 1.0
	}
	weightSigma := p.WeightSigma
	if weightSigma <= 0 {
		weightSigma = math.Max(0.05, 0.15*weight)
	}
	freq := p.FrequencyFactor
	if freq <= 0 {
		freq = 1.0
	}
	recency := p.RecencyFactor
	if recency <= 0 {
		recency = scoring.MinRecencyFactor
	}
	alpha := math.Max(p.Alpha, 0.01)
	beta := math.Max(p.Beta, 0.01)

	weightDist := distuv.Normal{Mu: weight, Sigma: weightSigma, Src: src}
	credDist := distuv.Beta{Alpha: alpha, Beta: beta, Src: src}
	freqDist := distuv.Normal{Mu: freq, Sigma: 0.20, Src: src}
	recencyDist := distuv.Normal{Mu: recency, Sigma: 0.03, Src: src}

	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		w := truncated(weightDist.Rand, 0.1, 5.0)
		c := credDist.Rand()
		f := truncated(freqDist.Rand, 1.0, 4.0)
		r := truncated(recencyDist.Rand, scoring.MinRecencyFactor, 1.0)
		score, _ := scoring.Compute(w, c, f, scoring.RecencyHours(r))
		samples[i] = score
	}
	return summarize(samples, MethodMonteCarloBeta)
}

// BetaAdjusted spreads a fixed base score by the credibility uncertainty of
// the sources behind it: each sample scales the base score by a Beta(alpha,
// beta) credibility draw relative to its mean, clamped to [0, 100]. Used by
// the TRAP assessment, which has a composite score rather than formula
// inputs.
func BetaAdjusted(base, alpha, beta float64, n int, seed uint64) Interval {
	n = ClampSamples(n)
	alpha = math.Max(alpha, 0.01)
	beta = math.Max(beta, 0.01)
	credDist := distuv.Beta{Alpha: alpha, Beta: beta, Src: rand.NewSource(seed)}
	meanCred := alpha / (alpha + beta)

	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		adjusted := base * credDist.Rand() / meanCred
		samples[i] = math.Min(100.0, math.Max(0.0, adjusted))
	}
	return summarize(samples, MethodBetaAdjusted)
}

// truncated samples via draw until the value lands in [lower, upper], up to
// truncAttempts tries, then clamps the last draw.
func truncated(draw func() float64, lower, upper float64) float64 {
	var v float64
	for i := 0; i < truncAttempts; i++ {
		v = draw()
		if v >= lower && v <= upper {
			return v
		}
	}
	return math.Min(upper, math.Max(lower, v))
}

// Percentile returns the q-th quantile (q in [0,1]) of an ascending-sorted
// sample array via linear interpolation between closest ranks.
func Percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := float64(len(sorted)-1) * q
	lower := math.Floor(idx)
	upper := math.Ceil(idx)
	if lower == upper {
		return sorted[int(idx)]
	}
	weight := idx - lower
	return sorted[int(lower)]*(1-weight) + sorted[int(upper)]*weight
}

func summarize(samples []float64, method string) Interval {
	sort.Float64s(samples)
	mean := stat.Mean(samples, nil)
	std := stat.PopStdDev(samples, nil)
	return Interval{
		N:      len(samples),
		Mean:   round3(mean),
		Std:    round3(std),
		P05:    round3(Percentile(samples, 0.05)),
		P50:    round3(Percentile(samples, 0.50)),
		P95:    round3(Percentile(samples, 0.95)),
		Method: method,
	}
}

// ClampSamples applies the default and floor to a requested sample count.
// Callers that cache intervals use it to know the effective N before
// simulating.
func ClampSamples(n int) int {
	if n <= 0 {
		return DefaultSamples
	}
	if n < MinSamples {
		return MinSamples
	}
	return n
}

func round3(x float64) float64 {
	return math.Round(x*1e3) / 1e3
}
