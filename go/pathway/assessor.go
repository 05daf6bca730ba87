package pathway

import (
	"context"
	"time"

	"go.skia.org/infra/go/now"
	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/keywords"
	"github.com/argussec/argus/go/types"
)

// Assessor creates behavioral assessments and maintains subject state.
type Assessor struct {
	store Store
}

// NewAssessor returns an Assessor over the given store.
func NewAssessor(store Store) *Assessor {
	return &Assessor{
		store: store,
	}
}

// Assess computes a pathway score for the subject from the given indicators
// and upserts today's assessment. The subject's risk tier, last-seen
// timestamp and active status are updated alongside.
func (a *Assessor) Assess(ctx context.Context, id types.SubjectID, ind Indicators, evidenceSummary string, sourceAlertIDs []types.AlertID, analystNotes string) (*Assessment, error) {
	if _, err := a.store.GetSubject(ctx, id); err != nil {
		return nil, skerr.Wrapf(err, "assessing subject %d", id)
	}

	ts := now.Now(ctx).UTC()
	score := Score(ind)

	// Trend is judged against history as it stands before this upsert, so a
	// same-day rerun compares against the same baseline.
	sinceDay := keywords.Day(ts.Add(-trendLookbackDays * 24 * time.Hour))
	prior, err := a.store.RecentScores(ctx, id, sinceDay, trendHistoryLimit)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	trend := TrendAgainst(score, prior)

	assessment := &Assessment{
		SubjectID:       id,
		Date:            keywords.Day(ts),
		Indicators:      clampIndicators(ind),
		PathwayScore:    score,
		EscalationTrend: trend,
		EvidenceSummary: evidenceSummary,
		SourceAlertIDs:  sourceAlertIDs,
		AnalystNotes:    analystNotes,
	}
	if err := a.store.UpsertAssessment(ctx, assessment); err != nil {
		return nil, skerr.Wrap(err)
	}

	tier := types.RiskTierFromPathwayScore(score)
	if err := a.store.UpdateSubjectState(ctx, id, tier, ts, "active"); err != nil {
		return nil, skerr.Wrap(err)
	}
	return assessment, nil
}

// History returns a subject's assessments, newest first.
func (a *Assessor) History(ctx context.Context, id types.SubjectID, limit int) ([]*Assessment, error) {
	ret, err := a.store.History(ctx, id, limit)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	return ret, nil
}

func clampIndicators(ind Indicators) Indicators {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	return Indicators{
		Grievance:                  clamp(ind.Grievance),
		Fixation:                   clamp(ind.Fixation),
		Identification:             clamp(ind.Identification),
		NovelAggression:            clamp(ind.NovelAggression),
		EnergyBurst:                clamp(ind.EnergyBurst),
		Leakage:                    clamp(ind.Leakage),
		LastResort:                 clamp(ind.LastResort),
		DirectlyCommunicatedThreat: clamp(ind.DirectlyCommunicatedThreat),
	}
}
