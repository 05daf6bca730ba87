// Package ingest is the entry point collectors hand normalized alert records
// to. It runs the full intake pipeline: deduplication, persistence, entity
// extraction, frequency counting, risk scoring, and POI hit matching with the
// TAS rollup.
//
// Duplicates are persisted for audit completeness but skip everything after
// persistence.
package ingest

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.skia.org/infra/go/metrics2"
	"go.skia.org/infra/go/now"
	"go.skia.org/infra/go/skerr"
	"go.skia.org/infra/go/sklog"

	"github.com/argussec/argus/go/alerts"
	"github.com/argussec/argus/go/dedup"
	"github.com/argussec/argus/go/extract"
	"github.com/argussec/argus/go/keywords"
	"github.com/argussec/argus/go/trap"
	"github.com/argussec/argus/go/triage"
	"github.com/argussec/argus/go/types"
)

// poiContextWindow is how many characters around a POI name match are kept as
// hit context.
const poiContextWindow = 80

// Record is the normalized alert a collector hands in.
type Record struct {
	SourceID    types.SourceID
	KeywordID   types.KeywordID
	Title       string
	Content     string
	URL         string
	MatchedTerm string

	// PublishedAt is the raw upstream timestamp, possibly empty or
	// malformed. It is stored verbatim and interpreted leniently.
	PublishedAt string
}

// Result summarizes what the pipeline did with one record.
type Result struct {
	AlertID types.AlertID

	// Duplicate is true when the record duplicated an existing alert, with
	// DuplicateOf pointing at the canonical one and DuplicateReason naming
	// the match.
	Duplicate       bool
	DuplicateOf     types.AlertID
	DuplicateReason string

	RiskScore float64
	Severity  types.Severity
	TASScore  float64
	Entities  int
}

// Ingester runs the intake pipeline.
type Ingester struct {
	alerts    alerts.Store
	keywords  keywords.Store
	checker   *dedup.Checker
	triage    *triage.Engine
	extractor *extract.Extractor

	// trapEngine and trapStore are optional; without them POI matching is
	// skipped.
	trapEngine *trap.Engine
	trapStore  trap.Store

	ingested   metrics2.Counter
	duplicates metrics2.Counter
}

// New returns an Ingester. extractor may be built without a NER capability;
// trapEngine and trapStore may be nil to disable POI matching.
func New(alertStore alerts.Store, keywordStore keywords.Store, triageEngine *triage.Engine, extractor *extract.Extractor, trapEngine *trap.Engine, trapStore trap.Store) *Ingester {
	return &Ingester{
		alerts:     alertStore,
		keywords:   keywordStore,
		checker:    dedup.New(alertStore),
		triage:     triageEngine,
		extractor:  extractor,
		trapEngine: trapEngine,
		trapStore:  trapStore,
		ingested:   metrics2.GetCounter("argus_alerts_ingested"),
		duplicates: metrics2.GetCounter("argus_alerts_duplicate"),
	}
}

// Ingest runs one record through the pipeline.
func (i *Ingester) Ingest(ctx context.Context, rec Record) (Result, error) {
	ts := now.Now(ctx)
	hash := dedup.ContentHash(rec.Title, rec.Content)
	dup, err := i.checker.Check(ctx, hash, rec.URL)
	if err != nil {
		return Result{}, skerr.Wrap(err)
	}

	a := &alerts.Alert{
		SourceID:    rec.SourceID,
		KeywordID:   rec.KeywordID,
		Title:       rec.Title,
		Content:     rec.Content,
		URL:         rec.URL,
		MatchedTerm: rec.MatchedTerm,
		PublishedAt: rec.PublishedAt,
		CreatedAt:   ts,
		ContentHash: hash,
		DuplicateOf: dup.CanonicalID,
	}
	id, err := i.alerts.Insert(ctx, a)
	if err != nil {
		return Result{}, skerr.Wrap(err)
	}
	a.ID = id

	if dup.IsDuplicate() {
		i.duplicates.Inc(1)
		return Result{
			AlertID:         id,
			Duplicate:       true,
			DuplicateOf:     dup.CanonicalID,
			DuplicateReason: dup.Reason,
		}, nil
	}

	ret := Result{AlertID: id}

	findings := i.extractor.Extract(ctx, rec.Title+"\n"+rec.Content)
	if len(findings) > 0 {
		entities := make([]alerts.Entity, 0, len(findings))
		for _, f := range findings {
			entities = append(entities, alerts.Entity{
				AlertID: id,
				Type:    f.Type,
				Value:   f.Value,
			})
		}
		if err := i.alerts.AddEntities(ctx, id, entities); err != nil {
			return ret, skerr.Wrap(err)
		}
		ret.Entities = len(entities)
	}

	// Frequency counters bucket by ingest day, not event day: the anomaly
	// detector compares today's observed volume against the historical
	// baseline, so a backfilled record with an old published_at still counts
	// toward today and never rewrites baseline rows.
	if err := i.keywords.IncrementFrequency(ctx, rec.KeywordID, keywords.Day(ts), 1); err != nil {
		return ret, skerr.Wrap(err)
	}

	score, err := i.triage.ScoreAlert(ctx, id, nil)
	if err != nil {
		return ret, skerr.Wrap(err)
	}
	ret.RiskScore = score
	ret.Severity = types.SeverityFromScore(score)

	tas, err := i.matchPOIs(ctx, a)
	if err != nil {
		// POI matching failing should not lose the scored alert.
		sklog.Errorf("POI matching for alert %d: %s", id, err)
	} else {
		ret.TASScore = tas
	}

	i.ingested.Inc(1)
	return ret, nil
}

// matchPOIs records a hit for every active POI whose name appears in the
// alert text and rolls the resulting assessments back onto the alert.
func (i *Ingester) matchPOIs(ctx context.Context, a *alerts.Alert) (float64, error) {
	if i.trapEngine == nil || i.trapStore == nil {
		return 0, nil
	}
	pois, err := i.trapStore.ListActivePOIs(ctx)
	if err != nil {
		return 0, skerr.Wrap(err)
	}
	text := a.Title + "\n" + a.Content
	lower := strings.ToLower(text)
	matched := false
	for _, p := range pois {
		name := strings.ToLower(p.Name)
		if name == "" {
			continue
		}
		idx := strings.Index(lower, name)
		if idx < 0 {
			continue
		}
		if err := i.trapStore.AddHit(ctx, p.ID, a.ID, p.Name, poiContext(text, idx, idx+len(name))); err != nil {
			return 0, skerr.Wrap(err)
		}
		matched = true
	}
	if !matched {
		return 0, nil
	}
	tas, _, err := i.trapEngine.UpdateAlertTAS(ctx, a.ID)
	if err != nil {
		return 0, skerr.Wrap(err)
	}
	return tas, nil
}

func poiContext(text string, start, end int) string {
	left := start - poiContextWindow
	if left < 0 {
		left = 0
	}
	right := end + poiContextWindow
	if right > len(text) {
		right = len(text)
	}
	// Don't split a multi-byte rune at the window edge.
	for left > 0 && !utf8.RuneStart(text[left]) {
		left--
	}
	for right < len(text) && !utf8.RuneStart(text[right]) {
		right++
	}
	return strings.Join(strings.Fields(text[left:right]), " ")
}
