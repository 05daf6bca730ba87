// Package credibility maintains a Bayesian per-source trust estimate.
//
// Every source carries a Beta(alpha, beta) belief, starting from the
// uninformative Beta(2,2) prior centered at 0.5. Analyst classifications of
// alerts as true or false positives update the belief: a true positive
// increments alpha, a false positive increments beta, and the point estimate
// is alpha/(alpha+beta).
package credibility

import (
	"context"
	"math"

	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/alerts"
	"github.com/argussec/argus/go/sources"
	"github.com/argussec/argus/go/types"
)

// Tracker computes and updates source credibility.
type Tracker struct {
	sources sources.Store
	alerts  alerts.Store
}

// NewTracker returns a Tracker over the given stores. The alert store is only
// used to derive reviewed counts for evaluation metrics.
func NewTracker(src sources.Store, al alerts.Store) *Tracker {
	return &Tracker{
		sources: src,
		alerts:  al,
	}
}

// Credibility returns the current trust estimate for a source in [0,1].
//
// Sources with no classified outcomes yet keep their operator-assigned static
// CredibilityScore; once any outcome has been recorded the Bayesian estimate
// alpha/(alpha+beta), rounded to 4 decimals, takes over.
func (t *Tracker) Credibility(ctx context.Context, id types.SourceID) (float64, error) {
	src, err := t.sources.Get(ctx, id)
	if err != nil {
		return 0, skerr.Wrap(err)
	}
	return CredibilityOf(src), nil
}

// CredibilityOf is the pure form of Credibility for an already-loaded source.
func CredibilityOf(src *sources.Source) float64 {
	if src.TruePositives == 0 && src.FalsePositives == 0 {
		if src.CredibilityScore == 0 {
			return 0.5
		}
		return src.CredibilityScore
	}
	alpha, beta := src.BetaParams()
	return round4(alpha / (alpha + beta))
}

// RecordOutcome applies a true/false positive classification to a source and
// returns its updated state. The update is atomic per source.
func (t *Tracker) RecordOutcome(ctx context.Context, id types.SourceID, isTruePositive bool) (*sources.Source, error) {
	src, err := t.sources.RecordOutcome(ctx, id, isTruePositive)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return src, nil
}

// BetaParams returns the floored Beta parameters for a source, for use by the
// uncertainty estimator.
func (t *Tracker) BetaParams(ctx context.Context, id types.SourceID) (float64, float64, error) {
	src, err := t.sources.Get(ctx, id)
	if err != nil {
		return 0, 0, skerr.Wrap(err)
	}
	alpha, beta := src.BetaParams()
	return alpha, beta, nil
}

// Metrics holds the evaluation metrics for one source.
type Metrics struct {
	SourceID       types.SourceID
	SourceName     string
	TruePositives  int
	FalsePositives int
	TotalReviewed  int

	// Precision, Recall and F1 treat reviewed-but-unclassified alerts as
	// false negatives. All are 0 when their denominators are 0.
	Precision float64
	Recall    float64
	F1        float64

	BayesianCredibility float64
	StaticCredibility   float64
}

// EvaluationMetrics computes precision/recall/F1 for one source.
func (t *Tracker) EvaluationMetrics(ctx context.Context, id types.SourceID) (*Metrics, error) {
	src, err := t.sources.Get(ctx, id)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return t.metricsFor(ctx, src)
}

// EvaluateAll computes evaluation metrics for every source.
func (t *Tracker) EvaluateAll(ctx context.Context) ([]*Metrics, error) {
	all, err := t.sources.List(ctx)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	ret := make([]*Metrics, 0, len(all))
	for _, src := range all {
		m, err := t.metricsFor(ctx, src)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		ret = append(ret, m)
	}
	return ret, nil
}

func (t *Tracker) metricsFor(ctx context.Context, src *sources.Source) (*Metrics, error) {
	reviewed, err := t.alerts.CountReviewedBySource(ctx, src.ID)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	tp := src.TruePositives
	fp := src.FalsePositives
	fn := reviewed - (tp + fp)
	if fn < 0 {
		fn = 0
	}
	precision := 0.0
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	recall := 0.0
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	f1 := 0.0
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	alpha, beta := src.BetaParams()
	static := src.CredibilityScore
	if static == 0 {
		static = 0.5
	}
	return &Metrics{
		SourceID:            src.ID,
		SourceName:          src.Name,
		TruePositives:       tp,
		FalsePositives:      fp,
		TotalReviewed:       reviewed,
		Precision:           round4(precision),
		Recall:              round4(recall),
		F1:                  round4(f1),
		BayesianCredibility: round4(alpha / (alpha + beta)),
		StaticCredibility:   static,
	}, nil
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
