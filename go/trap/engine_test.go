package trap_test

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
	"github.com/argussec/argus/go/trap"
	"github.com/argussec/argus/go/trap/memtrapstore"
	"github.com/argussec/argus/go/types"
	"github.com/argussec/argus/go/uncertainty"
)

var assessTime = time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC)

type fixture struct {
	ctx      *now.TimeTravelCtx
	engine   *trap.Engine
	store    *memtrapstore.StoreImpl
	alerts   *memalertstore.StoreImpl
	sourceID types.SourceID
	poiID    types.POIID
}

func setup(t *testing.T) *fixture {
	ctx := now.TimeTravelingContext(context.Background(), assessTime)
	alStore := memalertstore.New()
	srcStore := memsourcestore.New()
	trapStore := memtrapstore.New(alStore, srcStore)

	srcID, err := srcStore.Insert(ctx, &sources.Source{
		Name:   "public-forum",
		Type:   "forum",
		Active: true,
	})
	require.NoError(t, err)
	poiID, err := trapStore.InsertPOI(ctx, &trap.POI{
		Name:   "Principal Adams",
		Role:   "protectee",
		Active: true,
	})
	require.NoError(t, err)

	engine := trap.NewEngine(trapStore, alStore, trap.EngineConfig{Seed: 42, Samples: 200})
	return &fixture{
		ctx:      ctx,
		engine:   engine,
		store:    trapStore,
		alerts:   alStore,
		sourceID: srcID,
		poiID:    poiID,
	}
}

// addHit inserts an alert published daysAgo days before the assessment time
// and records it as a hit on the fixture POI.
func (f *fixture) addHit(t *testing.T, daysAgo int, title, content, excerpt string) types.AlertID {
	ts := assessTime.Add(-time.Duration(daysAgo) * 24 * time.Hour)
	id, err := f.alerts.Insert(f.ctx, &alerts.Alert{
		SourceID:    f.sourceID,
		Title:       title,
		Content:     content,
		PublishedAt: ts.Format(time.RFC3339),
		CreatedAt:   ts,
	})
	require.NoError(t, err)
	require.NoError(t, f.store.AddHit(f.ctx, f.poiID, id, "principal adams", excerpt))
	return id
}

func TestAssessPOI_NoHits_ReturnsNil(t *testing.T) {
	f := setup(t)
	a, err := f.engine.AssessPOI(f.ctx, f.poiID)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestAssessPOI_UnknownPOI_Error(t *testing.T) {
	f := setup(t)
	_, err := f.engine.AssessPOI(f.ctx, types.POIID(999))
	require.Error(t, err)
	assert.Contains(t, err.Error(), trap.ErrPOINotFound.Error())
}

func TestAssessPOI_HitsOutsideWindow_Ignored(t *testing.T) {
	f := setup(t)
	f.addHit(t, 20, "old chatter", "general discussion", "")

	a, err := f.engine.AssessPOI(f.ctx, f.poiID)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestAssessPOI_EscalatingDays_FiresFixation(t *testing.T) {
	f := setup(t)
	// Four distinct days with the later half carrying more hits, no spike on
	// the final day.
	f.addHit(t, 3, "forum chatter", "general discussion", "")
	f.addHit(t, 2, "forum chatter", "general discussion", "")
	f.addHit(t, 2, "forum chatter", "more discussion", "")
	f.addHit(t, 1, "forum chatter", "general discussion", "")
	f.addHit(t, 1, "forum chatter", "more discussion", "")
	f.addHit(t, 0, "forum chatter", "general discussion", "")
	f.addHit(t, 0, "forum chatter", "more discussion", "")

	a, err := f.engine.AssessPOI(f.ctx, f.poiID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.True(t, a.Fixation)
	assert.False(t, a.EnergyBurst)
	assert.False(t, a.Leakage)
	assert.False(t, a.Pathway)
	assert.False(t, a.TargetingSpecificity)
	assert.Equal(t, 25.0, a.TASScore)
	assert.Equal(t, 4, a.Evidence.DistinctDays)
	assert.Equal(t, 7, a.Evidence.Hits)
}

func TestAssessPOI_VolumeSpike_FiresEnergyBurst(t *testing.T) {
	f := setup(t)
	// Flat one-hit baseline then five hits today: z = (5-1)/0.5 = 8.
	for daysAgo := 3; daysAgo >= 1; daysAgo-- {
		f.addHit(t, daysAgo, "forum chatter", "general discussion", "")
	}
	for i := 0; i < 5; i++ {
		f.addHit(t, 0, "forum chatter", "general discussion", "")
	}

	a, err := f.engine.AssessPOI(f.ctx, f.poiID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.True(t, a.EnergyBurst)
	assert.Equal(t, 8.0, a.Evidence.EnergyZ)
	// The spike also tilts day volume to the later half.
	assert.True(t, a.Fixation)
	assert.Equal(t, 45.0, a.TASScore)
}

func TestAssessPOI_IntentLanguage_FiresLeakage(t *testing.T) {
	f := setup(t)
	f.addHit(t, 0, "angry post", "I will make them regret this tomorrow", "I will make them regret this")

	a, err := f.engine.AssessPOI(f.ctx, f.poiID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, []string{"leakage"}, a.Flags())
	assert.Equal(t, 20.0, a.TASScore)
	assert.Equal(t, []string{"I will make them regret this"}, a.Evidence.Excerpts)
}

func TestAssessPOI_OperationalDetails_FiresPathway(t *testing.T) {
	f := setup(t)
	f.addHit(t, 0, "question", "anyone know the venue entrance past the security gate", "")

	a, err := f.engine.AssessPOI(f.ctx, f.poiID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, []string{"pathway"}, a.Flags())
	assert.Equal(t, 20.0, a.TASScore)
}

func TestAssessPOI_LocationPlusTimePattern_FiresTargeting(t *testing.T) {
	f := setup(t)
	alertID := f.addHit(t, 0, "sighting", "seen near the downtown plaza this week", "")
	require.NoError(t, f.alerts.AddEntities(f.ctx, alertID, []alerts.Entity{
		{Type: "GPE", Value: "downtown plaza"},
	}))

	a, err := f.engine.AssessPOI(f.ctx, f.poiID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, []string{"targeting_specificity"}, a.Flags())
	assert.Equal(t, 15.0, a.TASScore)
}

func TestAssessPOI_TimePatternWithoutLocation_NoTargeting(t *testing.T) {
	f := setup(t)
	f.addHit(t, 0, "sighting", "seen near the downtown plaza this week", "")

	a, err := f.engine.AssessPOI(f.ctx, f.poiID)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.False(t, a.TargetingSpecificity)
}

func TestAssessPOI_SameDayRerun_ReplacesAssessment(t *testing.T) {
	f := setup(t)
	f.addHit(t, 0, "angry post", "I will make them regret this tomorrow", "")

	first, err := f.engine.AssessPOI(f.ctx, f.poiID)
	require.NoError(t, err)
	require.NotNil(t, first)

	f.ctx.SetTime(assessTime.Add(3 * time.Hour))
	f.addHit(t, 0, "question", "anyone know the venue entrance", "")
	second, err := f.engine.AssessPOI(f.ctx, f.poiID)
	require.NoError(t, err)
	require.NotNil(t, second)

	// Same day-anchored window, so the second run replaced the first row.
	assert.Equal(t, first.WindowStart, second.WindowStart)
	assert.Equal(t, first.WindowEnd, second.WindowEnd)
	assert.Equal(t, 40.0, second.TASScore)

	latest, err := f.store.LatestAssessment(f.ctx, f.poiID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 40.0, latest.TASScore)
}

func TestAssessPOI_IntervalIsDeterministicPerSeed(t *testing.T) {
	f := setup(t)
	f.addHit(t, 0, "angry post", "I will make them regret this tomorrow", "")

	first, err := f.engine.AssessPOI(f.ctx, f.poiID)
	require.NoError(t, err)
	second, err := f.engine.AssessPOI(f.ctx, f.poiID)
	require.NoError(t, err)

	assert.Equal(t, uncertainty.MethodBetaAdjusted, first.Evidence.Interval.Method)
	assert.Equal(t, 200, first.Evidence.Interval.N)
	assert.Equal(t, first.Evidence.Interval, second.Evidence.Interval)
}

func TestUpdateAlertTAS_RollsUpMaxAcrossPOIs(t *testing.T) {
	f := setup(t)
	secondPOI, err := f.store.InsertPOI(f.ctx, &trap.POI{
		Name:   "Director Okafor",
		Role:   "protectee",
		Active: true,
	})
	require.NoError(t, err)

	// One alert hitting both POIs.
	shared := f.addHit(t, 0, "post", "they plan to follow the route tomorrow", "")
	require.NoError(t, f.store.AddHit(f.ctx, secondPOI, shared, "director okafor", ""))

	maxTAS, assessments, err := f.engine.UpdateAlertTAS(f.ctx, shared)
	require.NoError(t, err)
	require.Len(t, assessments, 2)
	// Both POIs see the same single hit: leakage + pathway.
	assert.Equal(t, 40.0, maxTAS)

	a, err := f.alerts.Get(f.ctx, shared)
	require.NoError(t, err)
	assert.Equal(t, 40.0, a.TASScore)
}

func TestUpdateAlertTAS_NoPOIs_ZeroRollup(t *testing.T) {
	f := setup(t)
	id, err := f.alerts.Insert(f.ctx, &alerts.Alert{
		SourceID: f.sourceID,
		Title:    "unrelated",
		Content:  "nothing of note",
	})
	require.NoError(t, err)

	maxTAS, assessments, err := f.engine.UpdateAlertTAS(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0.0, maxTAS)
	assert.Empty(t, assessments)
}
