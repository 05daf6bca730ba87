// Package triage orchestrates the scoring pipeline for alerts: it resolves a
// keyword weight, the source's Bayesian credibility and the keyword's
// frequency factor, runs the risk score formula, attaches a Monte Carlo
// uncertainty interval, and appends the audit trail.
package triage

import (
	"context"
	"sync"

	"go.skia.org/infra/go/metrics2"
	"go.skia.org/infra/go/now"
	"go.skia.org/infra/go/skerr"
	"go.skia.org/infra/go/sklog"
	"go.skia.org/infra/go/workerpool"

	"github.com/argussec/argus/go/alerts"
	"github.com/argussec/argus/go/credibility"
	"github.com/argussec/argus/go/frequency"
	"github.com/argussec/argus/go/keywords"
	"github.com/argussec/argus/go/scores"
	"github.com/argussec/argus/go/scoring"
	"github.com/argussec/argus/go/types"
	"github.com/argussec/argus/go/uncertainty"
)

const (
	// defaultWorkers is the worker pool size for bulk rescoring. Per-alert
	// scoring has no cross-alert dependency, so the pool only bounds
	// store contention.
	defaultWorkers = 8

	// seedStride mixes an alert id into the engine seed so parallel
	// per-alert simulations stay deterministic without sharing a generator.
	seedStride = 0x9E3779B97F4A7C15
)

// Engine is the risk scoring engine.
type Engine struct {
	alerts   alerts.Store
	keywords keywords.Store
	scores   scores.Store
	cred     *credibility.Tracker
	freq     *frequency.Detector

	samples int
	seed    uint64
	workers int

	scoredCounter  metrics2.Counter
	rescoreFailed  metrics2.Counter
	intervalCached metrics2.Counter
}

// Config carries the tunables for an Engine. Zero values select defaults.
type Config struct {
	// Samples is the Monte Carlo sample count used at scoring time.
	Samples int

	// Seed makes every simulation the engine runs reproducible. Two engines
	// with the same seed and state produce identical audit trails.
	Seed uint64

	// Workers bounds bulk-rescore parallelism.
	Workers int
}

// New returns an Engine over the given stores.
func New(al alerts.Store, kw keywords.Store, sc scores.Store, cred *credibility.Tracker, freq *frequency.Detector, cfg Config) *Engine {
	if cfg.Samples <= 0 {
		cfg.Samples = uncertainty.DefaultSamples
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	return &Engine{
		alerts:         al,
		keywords:       kw,
		scores:         sc,
		cred:           cred,
		freq:           freq,
		samples:        cfg.Samples,
		seed:           cfg.Seed,
		workers:        cfg.Workers,
		scoredCounter:  metrics2.GetCounter("argus_alerts_scored"),
		rescoreFailed:  metrics2.GetCounter("argus_rescore_failed"),
		intervalCached: metrics2.GetCounter("argus_interval_cache_hit"),
	}
}

// Options alters a single ScoreAlert call.
type Options struct {
	// FrequencyOverride supplies a precomputed frequency factor, e.g. from a
	// bulk-rescore snapshot, instead of reading the counters.
	FrequencyOverride *frequency.Result
}

// ScoreAlert runs the full scoring pipeline for one alert: it writes the
// alert's risk score and severity and appends an audit record, then returns
// the score.
//
// A missing keyword or source is a hard error — it means referential
// integrity was violated upstream. A missing or malformed event timestamp is
// not: it degrades to "now".
func (e *Engine) ScoreAlert(ctx context.Context, id types.AlertID, opts *Options) (float64, error) {
	a, err := e.alerts.Get(ctx, id)
	if err != nil {
		return 0, skerr.Wrapf(err, "scoring alert %d", id)
	}

	k, err := e.keywords.Get(ctx, a.KeywordID)
	if err != nil {
		return 0, skerr.Wrapf(err, "alert %d references keyword %d", id, a.KeywordID)
	}
	weight := k.Weight
	if weight == 0 {
		weight = 1.0
	}

	cred, err := e.cred.Credibility(ctx, a.SourceID)
	if err != nil {
		return 0, skerr.Wrapf(err, "alert %d references source %d", id, a.SourceID)
	}

	var freq frequency.Result
	if opts != nil && opts.FrequencyOverride != nil {
		freq = *opts.FrequencyOverride
	} else {
		freq, err = e.freq.Factor(ctx, a.KeywordID)
		if err != nil {
			return 0, skerr.Wrap(err)
		}
	}

	ts := now.Now(ctx).UTC()
	recencyHours := ts.Sub(a.EventTime(ts)).Hours()
	score, severity := scoring.Compute(weight, cred, freq.Factor, recencyHours)

	alpha, beta, err := e.cred.BetaParams(ctx, a.SourceID)
	if err != nil {
		return 0, skerr.Wrap(err)
	}
	recencyFactor := scoring.RecencyFactor(recencyHours)
	mc := uncertainty.Simulate(uncertainty.Params{
		KeywordWeight:   weight,
		WeightSigma:     k.WeightSigma,
		FrequencyFactor: freq.Factor,
		RecencyFactor:   recencyFactor,
		Alpha:           alpha,
		Beta:            beta,
	}, e.samples, e.seedFor(id))

	if err := e.alerts.UpdateScore(ctx, id, score, severity); err != nil {
		return 0, skerr.Wrap(err)
	}
	if err := e.scores.AppendAudit(ctx, &scores.AuditRecord{
		AlertID:           id,
		KeywordWeight:     weight,
		SourceCredibility: cred,
		FrequencyFactor:   freq.Factor,
		ZScore:            freq.ZScore,
		RecencyFactor:     recencyFactor,
		FinalScore:        score,
		MCMean:            mc.Mean,
		MCP05:             mc.P05,
		MCP50:             mc.P50,
		MCP95:             mc.P95,
		MCStd:             mc.Std,
		ComputedAt:        ts,
	}); err != nil {
		return 0, skerr.Wrap(err)
	}
	e.scoredCounter.Inc(1)
	return score, nil
}

// RescoreAll re-runs the scoring pipeline over every unreviewed alert with
// current weights, credibility and frequency statistics. Safe to run
// repeatedly: each run recomputes from current state and overwrites rather
// than accumulating. Returns the number of alerts rescored.
//
// Individual alert failures are logged and skipped so that a partial failure
// never blocks the rest of the batch; already-written audit rows are append
// only and unaffected.
func (e *Engine) RescoreAll(ctx context.Context) (int, error) {
	unreviewed, err := e.alerts.ListUnreviewed(ctx)
	if err != nil {
		return 0, skerr.Wrap(err)
	}

	// One frequency read per keyword for the whole batch.
	keywordIDs := map[types.KeywordID]bool{}
	for _, a := range unreviewed {
		keywordIDs[a.KeywordID] = true
	}
	ids := make([]types.KeywordID, 0, len(keywordIDs))
	for id := range keywordIDs {
		ids = append(ids, id)
	}
	snapshot, err := e.freq.Snapshot(ctx, ids)
	if err != nil {
		return 0, skerr.Wrap(err)
	}

	var mutex sync.Mutex
	count := 0
	pool := workerpool.New(e.workers)
	for _, a := range unreviewed {
		if ctx.Err() != nil {
			break
		}
		a := a
		pool.Go(func() {
			freq := snapshot[a.KeywordID]
			if _, err := e.ScoreAlert(ctx, a.ID, &Options{FrequencyOverride: &freq}); err != nil {
				e.rescoreFailed.Inc(1)
				sklog.Errorf("Rescoring alert %d: %s", a.ID, err)
				return
			}
			mutex.Lock()
			defer mutex.Unlock()
			count++
		})
	}
	pool.Wait()
	if err := ctx.Err(); err != nil {
		return count, skerr.Wrap(err)
	}
	return count, nil
}

// IntervalForAlert returns the cached uncertainty interval for an alert,
// recomputing it when the cache is stale, was computed with a different
// sample count, or force is set.
func (e *Engine) IntervalForAlert(ctx context.Context, id types.AlertID, n int, force bool) (*scores.Interval, error) {
	effN := uncertainty.ClampSamples(n)
	ts := now.Now(ctx).UTC()

	cached, err := e.scores.GetInterval(ctx, id)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	if cached != nil && !force && cached.Fresh(ts, effN) {
		e.intervalCached.Inc(1)
		return cached, nil
	}

	a, err := e.alerts.Get(ctx, id)
	if err != nil {
		return nil, skerr.Wrapf(err, "computing interval for alert %d", id)
	}
	k, err := e.keywords.Get(ctx, a.KeywordID)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	alpha, beta, err := e.cred.BetaParams(ctx, a.SourceID)
	if err != nil {
		return nil, skerr.Wrap(err)
	}

	// Prefer the factors recorded at the last scoring event so the interval
	// describes the score analysts are looking at.
	var freqFactor, recencyFactor float64
	if audit, err := e.scores.LatestAudit(ctx, id); err == nil {
		freqFactor = audit.FrequencyFactor
		recencyFactor = audit.RecencyFactor
	} else {
		freq, err := e.freq.Factor(ctx, a.KeywordID)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		freqFactor = freq.Factor
		recencyFactor = scoring.RecencyFactor(ts.Sub(a.EventTime(ts)).Hours())
	}

	weight := k.Weight
	if weight == 0 {
		weight = 1.0
	}
	sim := uncertainty.Simulate(uncertainty.Params{
		KeywordWeight:   weight,
		WeightSigma:     k.WeightSigma,
		FrequencyFactor: freqFactor,
		RecencyFactor:   recencyFactor,
		Alpha:           alpha,
		Beta:            beta,
	}, effN, e.seedFor(id))

	in := &scores.Interval{
		AlertID:    id,
		N:          sim.N,
		P05:        sim.P05,
		P50:        sim.P50,
		P95:        sim.P95,
		Mean:       sim.Mean,
		Std:        sim.Std,
		ComputedAt: ts,
		Method:     sim.Method,
	}
	if err := e.scores.UpsertInterval(ctx, in); err != nil {
		return nil, skerr.Wrap(err)
	}
	return in, nil
}

// MarkReviewed flags an alert as (un)reviewed. Thin pass-through for the API
// layer.
func (e *Engine) MarkReviewed(ctx context.Context, id types.AlertID, reviewed bool) error {
	return skerr.Wrap(e.alerts.SetReviewed(ctx, id, reviewed))
}

func (e *Engine) seedFor(id types.AlertID) uint64 {
	return e.seed + uint64(id)*seedStride
}
