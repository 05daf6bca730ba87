// Package frequency detects per-keyword mention spikes.
//
// Today's counter for a keyword is compared against the prior seven days via
// a z-score, and the z-score is mapped to a multiplier in [1.0, 4.0] that
// feeds the risk score formula. With fewer than three days of history a
// simple today/average ratio is used instead.
package frequency

import (
	"context"
	"math"
	"time"

	"go.skia.org/infra/go/now"
	"go.skia.org/infra/go/skerr"
	"gonum.org/v1/gonum/stat"

	"github.com/argussec/argus/go/keywords"
	"github.com/argussec/argus/go/types"
)

const (
	// historyDays is how many days before today form the baseline window.
	historyDays = 7

	// minHistoryDays is the minimum baseline size for the z-score path.
	minHistoryDays = 3

	// minStdDev floors the baseline standard deviation to avoid
	// division-by-near-zero on flat histories.
	minStdDev = 0.5

	// maxFactor caps the multiplier; z-scores of 4 and above saturate.
	maxFactor = 4.0
)

// Result is the immutable (factor, z-score) pair recorded in the scoring
// audit trail.
type Result struct {
	Factor float64
	ZScore float64
}

// FromCounts computes the frequency factor from today's count and the
// available baseline counts (days with no counter row are simply absent).
// Pure; this is the arithmetic behind Detector.Factor.
func FromCounts(today int, history []int) Result {
	if len(history) < minHistoryDays {
		avg := 1.0
		if len(history) > 0 {
			sum := 0
			for _, c := range history {
				sum += c
			}
			avg = math.Max(float64(sum)/float64(len(history)), 1.0)
		}
		return Result{
			Factor: math.Max(1.0, round2(float64(today)/avg)),
			ZScore: 0,
		}
	}

	xs := make([]float64, len(history))
	for i, c := range history {
		xs[i] = float64(c)
	}
	mean := stat.Mean(xs, nil)
	std := stat.PopStdDev(xs, nil)
	if std < minStdDev {
		std = minStdDev
	}
	z := (float64(today) - mean) / std

	var factor float64
	switch {
	case z <= 0:
		factor = 1.0
	case z >= 4.0:
		factor = maxFactor
	default:
		factor = round2(1.0 + z*0.75)
	}
	return Result{
		Factor: factor,
		ZScore: round2(z),
	}
}

// Detector reads frequency counters and produces spike factors. It never
// mutates the counters.
type Detector struct {
	keywords keywords.Store
}

// NewDetector returns a Detector over the given keyword store.
func NewDetector(store keywords.Store) *Detector {
	return &Detector{
		keywords: store,
	}
}

// Factor returns the current frequency factor and z-score for a keyword,
// comparing today's count against the prior seven days.
func (d *Detector) Factor(ctx context.Context, id types.KeywordID) (Result, error) {
	today := now.Now(ctx).UTC()
	todayKey := keywords.Day(today)
	todayCount, err := d.keywords.FrequencyOn(ctx, id, todayKey)
	if err != nil {
		return Result{}, skerr.Wrap(err)
	}
	from := keywords.Day(today.Add(-historyDays * 24 * time.Hour))
	counts, err := d.keywords.FrequencyBetween(ctx, id, from, todayKey)
	if err != nil {
		return Result{}, skerr.Wrap(err)
	}
	history := make([]int, 0, len(counts))
	for _, dc := range counts {
		history = append(history, dc.Count)
	}
	return FromCounts(todayCount, history), nil
}

// Snapshot computes the frequency factor for every given keyword, for use by
// a bulk scoring cycle. A nil ids slice means all active keywords.
func (d *Detector) Snapshot(ctx context.Context, ids []types.KeywordID) (map[types.KeywordID]Result, error) {
	if ids == nil {
		active, err := d.keywords.ListActive(ctx)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		for _, k := range active {
			ids = append(ids, k.ID)
		}
	}
	ret := make(map[types.KeywordID]Result, len(ids))
	for _, id := range ids {
		r, err := d.Factor(ctx, id)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		ret[id] = r
	}
	return ret, nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
