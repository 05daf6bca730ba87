package threads

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.skia.org/infra/go/now"

	"github.com/argussec/argus/go/alerts"
	"github.com/argussec/argus/go/alerts/memalertstore"
	"github.com/argussec/argus/go/sources"
	"github.com/argussec/argus/go/sources/memsourcestore"
	"github.com/argussec/argus/go/types"
)

var buildTime = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ctx     *now.TimeTravelCtx
	engine  *Engine
	alerts  *memalertstore.StoreImpl
	sources *memsourcestore.StoreImpl
	forum   types.SourceID
	paste   types.SourceID
}

func setup(t *testing.T) *fixture {
	ctx := now.TimeTravelingContext(context.Background(), buildTime)
	alStore := memalertstore.New()
	srcStore := memsourcestore.New()

	forum, err := srcStore.Insert(ctx, &sources.Source{Name: "darkweb-forum", Type: "forum", Active: true})
	require.NoError(t, err)
	paste, err := srcStore.Insert(ctx, &sources.Source{Name: "pastebin-monitor", Type: "paste_site", Active: true})
	require.NoError(t, err)

	return &fixture{
		ctx:     ctx,
		engine:  NewEngine(alStore, srcStore),
		alerts:  alStore,
		sources: srcStore,
		forum:   forum,
		paste:   paste,
	}
}

func (f *fixture) insertAlert(t *testing.T, src types.SourceID, term string, hoursAgo float64, risk float64, entities ...alerts.Entity) types.AlertID {
	ts := buildTime.Add(-time.Duration(hoursAgo * float64(time.Hour)))
	id, err := f.alerts.Insert(f.ctx, &alerts.Alert{
		SourceID:    src,
		Title:       "mention of " + term,
		MatchedTerm: term,
		PublishedAt: ts.Format(time.RFC3339),
		CreatedAt:   ts,
		RiskScore:   risk,
	})
	require.NoError(t, err)
	if len(entities) > 0 {
		require.NoError(t, f.alerts.AddEntities(f.ctx, id, entities))
	}
	return id
}

func TestBuild_SharedActorAcrossSources_OneThread(t *testing.T) {
	f := setup(t)
	actor := alerts.Entity{Type: "actor_handle", Value: "@demo_actor"}
	a := f.insertAlert(t, f.forum, "protest", 3, 62.0, actor)
	b := f.insertAlert(t, f.paste, "doxx", 2, 48.5, actor)

	threads, err := f.engine.Build(f.ctx, Options{})
	require.NoError(t, err)
	require.Len(t, threads, 1)

	th := threads[0]
	require.Len(t, th.Timeline, 2)
	assert.Equal(t, a, th.Timeline[0].AlertID)
	assert.Equal(t, b, th.Timeline[1].AlertID)
	assert.Equal(t, ThreadID([]types.AlertID{a, b}), th.ID)
	assert.True(t, th.CrossSource())
	assert.Equal(t, []string{"forum", "paste_site"}, th.SourceTypes)
	assert.Equal(t, []string{"cross_source", "shared_actor_handle"}, th.ReasonCodes)
	assert.Equal(t, []string{"@demo_actor"}, th.SharedEntities)
	assert.Equal(t, []string{"doxx", "protest"}, th.MatchedTerms)
	assert.Equal(t, 62.0, th.MaxRiskScore)
	// base 0.3 + 2 reasons * 0.15 + 1 extra source type * 0.1.
	assert.Equal(t, 0.7, th.Confidence)
	assert.Equal(t, th.Timeline[0].EventTime, th.StartTime)
	assert.Equal(t, th.Timeline[1].EventTime, th.EndTime)
	require.Len(t, th.Evidence, 1)
	assert.Equal(t, []string{"@demo_actor"}, th.Evidence[0].SharedValues)
}

func TestBuild_EntityCaseInsensitive(t *testing.T) {
	f := setup(t)
	f.insertAlert(t, f.forum, "protest", 3, 10, alerts.Entity{Type: "actor_handle", Value: "@Demo_Actor"})
	f.insertAlert(t, f.paste, "doxx", 2, 10, alerts.Entity{Type: "actor_handle", Value: "@demo_actor"})

	threads, err := f.engine.Build(f.ctx, Options{})
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, []string{"@demo_actor"}, threads[0].SharedEntities)
}

func TestBuild_NoSharedSignals_NoThreads(t *testing.T) {
	f := setup(t)
	f.insertAlert(t, f.forum, "protest", 3, 10, alerts.Entity{Type: "actor_handle", Value: "@one"})
	f.insertAlert(t, f.paste, "doxx", 2, 10, alerts.Entity{Type: "actor_handle", Value: "@two"})

	threads, err := f.engine.Build(f.ctx, Options{})
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestBuild_SharedEntityOutsideClusterWindow_NoLink(t *testing.T) {
	f := setup(t)
	actor := alerts.Entity{Type: "actor_handle", Value: "@demo_actor"}
	f.insertAlert(t, f.forum, "protest", 100, 10, actor)
	f.insertAlert(t, f.paste, "doxx", 2, 10, actor)

	threads, err := f.engine.Build(f.ctx, Options{})
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestBuild_TightTemporalSameTerm_LinksWithoutEntities(t *testing.T) {
	f := setup(t)
	a := f.insertAlert(t, f.forum, "bomb threat", 2.5, 80)
	b := f.insertAlert(t, f.forum, "Bomb Threat", 2.0, 75)

	threads, err := f.engine.Build(f.ctx, Options{})
	require.NoError(t, err)
	require.Len(t, threads, 1)

	th := threads[0]
	assert.Equal(t, ThreadID([]types.AlertID{a, b}), th.ID)
	assert.False(t, th.CrossSource())
	assert.Equal(t, []string{ReasonTightTemporal}, th.ReasonCodes)
	assert.Equal(t, []string{"bomb threat"}, th.SharedEntities)
	// base 0.3 + 1 reason * 0.15, single source type.
	assert.Equal(t, 0.45, th.Confidence)
}

func TestBuild_SameTermBeyondTightWindow_NoLink(t *testing.T) {
	f := setup(t)
	f.insertAlert(t, f.forum, "bomb threat", 4, 80)
	f.insertAlert(t, f.forum, "bomb threat", 2, 75)

	threads, err := f.engine.Build(f.ctx, Options{})
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestBuild_TransitiveLinks_MergeIntoOneThread(t *testing.T) {
	f := setup(t)
	actorOne := alerts.Entity{Type: "actor_handle", Value: "@one"}
	actorTwo := alerts.Entity{Type: "actor_handle", Value: "@two"}
	a := f.insertAlert(t, f.forum, "protest", 6, 10, actorOne)
	b := f.insertAlert(t, f.paste, "doxx", 4, 20, actorOne, actorTwo)
	c := f.insertAlert(t, f.forum, "march", 2, 30, actorTwo)

	threads, err := f.engine.Build(f.ctx, Options{})
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, ThreadID([]types.AlertID{a, b, c}), threads[0].ID)
	assert.Len(t, threads[0].Evidence, 2)
}

func TestBuild_MinClusterSize_FiltersSmallClusters(t *testing.T) {
	f := setup(t)
	actor := alerts.Entity{Type: "actor_handle", Value: "@demo_actor"}
	f.insertAlert(t, f.forum, "protest", 3, 10, actor)
	f.insertAlert(t, f.paste, "doxx", 2, 10, actor)

	threads, err := f.engine.Build(f.ctx, Options{MinClusterSize: 3})
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestBuild_DuplicatesExcludedFromSnapshot(t *testing.T) {
	f := setup(t)
	actor := alerts.Entity{Type: "actor_handle", Value: "@demo_actor"}
	canonical := f.insertAlert(t, f.forum, "protest", 3, 10, actor)
	dupTS := buildTime.Add(-2 * time.Hour)
	_, err := f.alerts.Insert(f.ctx, &alerts.Alert{
		SourceID:    f.paste,
		MatchedTerm: "protest",
		PublishedAt: dupTS.Format(time.RFC3339),
		CreatedAt:   dupTS,
		DuplicateOf: canonical,
	})
	require.NoError(t, err)

	threads, err := f.engine.Build(f.ctx, Options{})
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestBuild_InvalidOptions_EmptyResult(t *testing.T) {
	f := setup(t)
	actor := alerts.Entity{Type: "actor_handle", Value: "@demo_actor"}
	f.insertAlert(t, f.forum, "protest", 3, 10, actor)
	f.insertAlert(t, f.paste, "doxx", 2, 10, actor)

	threads, err := f.engine.Build(f.ctx, Options{Lookback: -time.Hour})
	require.NoError(t, err)
	assert.Empty(t, threads)

	threads, err = f.engine.Build(f.ctx, Options{MinClusterSize: -1})
	require.NoError(t, err)
	assert.Empty(t, threads)
}

func TestOptions_TightWindowWiderThanClusterWindow_Clamped(t *testing.T) {
	// Pairs past ClusterWindow are never examined, so a wider tight window
	// cannot take effect; withDefaults clamps it to the cluster window.
	opts, ok := Options{ClusterWindow: 2 * time.Hour, TightWindow: 10 * time.Hour}.withDefaults()
	require.True(t, ok)
	assert.Equal(t, 2*time.Hour, opts.TightWindow)

	opts, ok = Options{}.withDefaults()
	require.True(t, ok)
	assert.Equal(t, DefaultTightWindow, opts.TightWindow)
	assert.Equal(t, DefaultClusterWindow, opts.ClusterWindow)
}

func TestBuild_SameInputs_SameThreadIDs(t *testing.T) {
	f := setup(t)
	actor := alerts.Entity{Type: "actor_handle", Value: "@demo_actor"}
	f.insertAlert(t, f.forum, "protest", 3, 10, actor)
	f.insertAlert(t, f.paste, "doxx", 2, 10, actor)

	first, err := f.engine.Build(f.ctx, Options{})
	require.NoError(t, err)
	second, err := f.engine.Build(f.ctx, Options{})
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestThreadID_OrderIndependent(t *testing.T) {
	a := ThreadID([]types.AlertID{3, 1, 2})
	b := ThreadID([]types.AlertID{1, 2, 3})
	assert.Equal(t, a, b)
	assert.Len(t, a, len("soi-")+12)
	assert.NotEqual(t, a, ThreadID([]types.AlertID{1, 2, 4}))
}

func TestBest_Ordering(t *testing.T) {
	assert.Nil(t, Best(nil))

	cross := &Thread{ID: "soi-a", SourceTypes: []string{"forum", "paste_site"}, Confidence: 0.4}
	single := &Thread{ID: "soi-b", SourceTypes: []string{"forum"}, Confidence: 0.9}
	assert.Equal(t, cross, Best([]*Thread{single, cross}))

	confident := &Thread{ID: "soi-c", SourceTypes: []string{"forum"}, Confidence: 0.95}
	assert.Equal(t, confident, Best([]*Thread{single, confident}))

	risky := &Thread{ID: "soi-d", SourceTypes: []string{"forum"}, Confidence: 0.9, MaxRiskScore: 50}
	assert.Equal(t, risky, Best([]*Thread{single, risky}))

	bigger := &Thread{ID: "soi-e", SourceTypes: []string{"forum"}, Confidence: 0.9, Timeline: make([]Member, 3)}
	assert.Equal(t, bigger, Best([]*Thread{single, bigger}))
}
