package trap

import (
	"context"
	"math"
	"regexp"
	"sort"
	"time"

	"go.skia.org/infra/go/now"
	"go.skia.org/infra/go/skerr"
	"gonum.org/v1/gonum/stat"

	"github.com/argussec/argus/go/alerts"
	"github.com/argussec/argus/go/keywords"
	"github.com/argussec/argus/go/sources"
	"github.com/argussec/argus/go/types"
	"github.com/argussec/argus/go/uncertainty"
)

const (
	// minFixationDays is the minimum number of distinct hit days before the
	// fixation flag can fire.
	minFixationDays = 3

	// Energy-burst baseline: at least minBaselineDays prior hit days, at most
	// maxBaselineDays most recent ones, with the standard deviation floored
	// at minEnergyStdDev to keep flat baselines from exploding the z-score.
	minBaselineDays = 3
	maxBaselineDays = 7
	minEnergyStdDev = 0.5

	// energyBurstZ is the z-score at which today's hit volume counts as a
	// burst.
	energyBurstZ = 2.0

	maxExcerpts = 3

	// Mixed into the engine seed per POI so assessments are deterministic
	// and independent across POIs.
	seedStride = 0x9E3779B97F4A7C15
)

// Flag weights. They sum to 100 so a POI with every flag fired scores the
// maximum.
const (
	fixationWeight    = 25.0
	energyBurstWeight = 20.0
	leakageWeight     = 20.0
	pathwayWeight     = 20.0
	targetingWeight   = 15.0
)

// EngineConfig configures an assessment Engine. Zero values select defaults.
type EngineConfig struct {
	// WindowDays is the rolling assessment window, default DefaultWindowDays.
	WindowDays int

	// Samples is the Monte Carlo sample count for the credibility-adjusted
	// interval, default uncertainty.DefaultSamples.
	Samples int

	// Seed offsets the per-POI simulation seeds.
	Seed uint64

	// Tiers is the escalation policy, default DefaultTiers().
	Tiers Tiers
}

// Engine runs TRAP-lite assessments.
type Engine struct {
	store      Store
	alerts     alerts.Store
	tiers      Tiers
	windowDays int
	samples    int
	seed       uint64
}

// NewEngine returns an Engine backed by the given stores.
func NewEngine(store Store, alertStore alerts.Store, cfg EngineConfig) *Engine {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultWindowDays
	}
	if cfg.Samples <= 0 {
		cfg.Samples = uncertainty.DefaultSamples
	}
	if cfg.Tiers == nil {
		cfg.Tiers = DefaultTiers()
	}
	return &Engine{
		store:      store,
		alerts:     alertStore,
		tiers:      cfg.Tiers,
		windowDays: cfg.WindowDays,
		samples:    cfg.Samples,
		seed:       cfg.Seed,
	}
}

// Tiers returns the engine's escalation policy.
func (e *Engine) Tiers() Tiers {
	return e.tiers
}

// window returns the assessment window for ts. The end is anchored to the
// next UTC midnight so reassessments on the same day target the same row.
func (e *Engine) window(ts time.Time) (time.Time, time.Time) {
	end := ts.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	return end.AddDate(0, 0, -e.windowDays), end
}

// AssessPOI assesses a POI over the window ending today and persists the
// result. Returns (nil, nil) if the POI has no hits in the window.
func (e *Engine) AssessPOI(ctx context.Context, id types.POIID) (*Assessment, error) {
	if _, err := e.store.GetPOI(ctx, id); err != nil {
		return nil, skerr.Wrap(err)
	}
	ts := now.Now(ctx)
	start, end := e.window(ts)
	hits, err := e.store.HitsInWindow(ctx, id, start, end)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	dayCounts := map[string]int{}
	for _, h := range hits {
		dayCounts[h.Day]++
	}
	days := make([]string, 0, len(dayCounts))
	for d := range dayCounts {
		days = append(days, d)
	}
	sort.Strings(days)

	today := keywords.Day(ts)
	energyZ := energyZScore(days, dayCounts, today)

	a := &Assessment{
		POIID:                id,
		WindowStart:          start,
		WindowEnd:            end,
		Fixation:             fixationFired(days, dayCounts),
		EnergyBurst:          energyZ >= energyBurstZ,
		Leakage:              anyHitMatches(hits, leakagePatterns),
		Pathway:              anyHitMatches(hits, pathwayPatterns),
		TargetingSpecificity: targetingFired(hits),
		CreatedAt:            ts,
	}
	a.TASScore = compositeScore(a)

	alpha, beta := meanBetaParams(hits)
	interval := uncertainty.BetaAdjusted(a.TASScore, alpha, beta, e.samples, e.seed+uint64(id)*seedStride)
	a.Evidence = Evidence{
		WindowDays:   e.windowDays,
		DistinctDays: len(days),
		Hits:         len(hits),
		EnergyZ:      energyZ,
		Excerpts:     excerpts(hits),
		Interval:     interval,
	}

	if err := e.store.UpsertAssessment(ctx, a); err != nil {
		return nil, skerr.Wrap(err)
	}
	return a, nil
}

// UpdateAlertTAS reassesses every POI an alert has hits against and rolls the
// maximum TAS back onto the alert. Returns the rollup and the non-empty
// assessments.
func (e *Engine) UpdateAlertTAS(ctx context.Context, alertID types.AlertID) (float64, []*Assessment, error) {
	poiIDs, err := e.store.POIsForAlert(ctx, alertID)
	if err != nil {
		return 0, nil, skerr.Wrap(err)
	}
	maxTAS := 0.0
	var assessments []*Assessment
	for _, id := range poiIDs {
		a, err := e.AssessPOI(ctx, id)
		if err != nil {
			return 0, nil, skerr.Wrap(err)
		}
		if a == nil {
			continue
		}
		assessments = append(assessments, a)
		if a.TASScore > maxTAS {
			maxTAS = a.TASScore
		}
	}
	if err := e.alerts.UpdateTAS(ctx, alertID, maxTAS); err != nil {
		return 0, nil, skerr.Wrap(err)
	}
	return maxTAS, assessments, nil
}

// fixationFired reports sustained attention: at least minFixationDays distinct
// hit days with the later half of the days carrying more hits than the
// earlier half.
func fixationFired(days []string, dayCounts map[string]int) bool {
	if len(days) < minFixationDays {
		return false
	}
	mid := len(days) / 2
	first, second := 0, 0
	for _, d := range days[:mid] {
		first += dayCounts[d]
	}
	for _, d := range days[mid:] {
		second += dayCounts[d]
	}
	return second > first
}

// energyZScore compares today's hit volume against a baseline of the most
// recent hit days, excluding the latest. Returns 0 when the baseline is too
// short.
func energyZScore(days []string, dayCounts map[string]int, today string) float64 {
	if len(days) < 2 {
		return 0
	}
	prior := days[:len(days)-1]
	if len(prior) > maxBaselineDays {
		prior = prior[len(prior)-maxBaselineDays:]
	}
	if len(prior) < minBaselineDays {
		return 0
	}
	baseline := make([]float64, 0, len(prior))
	for _, d := range prior {
		baseline = append(baseline, float64(dayCounts[d]))
	}
	mean := stat.Mean(baseline, nil)
	std := math.Sqrt(stat.PopVariance(baseline, nil))
	if std < minEnergyStdDev {
		std = minEnergyStdDev
	}
	return math.Round((float64(dayCounts[today])-mean)/std*1000) / 1000
}

func anyHitMatches(hits []*Hit, patterns []*regexp.Regexp) bool {
	for _, h := range hits {
		if matchesAny(patterns, h.Title+"\n"+h.Content) {
			return true
		}
	}
	return false
}

// targetingFired reports location plus time-bound language on the same hit.
func targetingFired(hits []*Hit) bool {
	for _, h := range hits {
		if h.HasLocation && matchesAny(targetingTimePatterns, h.Title+"\n"+h.Content) {
			return true
		}
	}
	return false
}

func compositeScore(a *Assessment) float64 {
	score := 0.0
	if a.Fixation {
		score += fixationWeight
	}
	if a.EnergyBurst {
		score += energyBurstWeight
	}
	if a.Leakage {
		score += leakageWeight
	}
	if a.Pathway {
		score += pathwayWeight
	}
	if a.TargetingSpecificity {
		score += targetingWeight
	}
	return math.Min(score, 100)
}

// meanBetaParams averages the source Beta parameters over the hits, falling
// back to the uninformative prior and flooring at the minimum.
func meanBetaParams(hits []*Hit) (float64, float64) {
	alpha, beta := 0.0, 0.0
	for _, h := range hits {
		a, b := h.Alpha, h.Beta
		if a <= 0 {
			a = sources.DefaultAlpha
		}
		if b <= 0 {
			b = sources.DefaultBeta
		}
		alpha += a
		beta += b
	}
	n := float64(len(hits))
	alpha, beta = alpha/n, beta/n
	if alpha < sources.MinBetaParam {
		alpha = sources.MinBetaParam
	}
	if beta < sources.MinBetaParam {
		beta = sources.MinBetaParam
	}
	return alpha, beta
}

func excerpts(hits []*Hit) []string {
	var ret []string
	for _, h := range hits {
		if h.Context == "" {
			continue
		}
		ret = append(ret, h.Context)
		if len(ret) == maxExcerpts {
			break
		}
	}
	return ret
}
