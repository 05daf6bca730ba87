package trap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlags_CanonicalOrder(t *testing.T) {
	a := &Assessment{
		TargetingSpecificity: true,
		Fixation:             true,
		Leakage:              true,
	}
	assert.Equal(t, []string{"fixation", "leakage", "targeting_specificity"}, a.Flags())
	assert.Empty(t, (&Assessment{}).Flags())
}

func TestExplain_RoutineTier(t *testing.T) {
	a := &Assessment{
		Fixation: true,
		Leakage:  true,
		TASScore: 45,
		Evidence: Evidence{
			DistinctDays: 4,
			Hits:         6,
			Excerpts:     []string{"plan to be there"},
		},
	}
	ex := Explain(a, DefaultTiers())
	assert.Equal(t, "ROUTINE", ex.EscalationTier)
	require.Len(t, ex.FlagsFired, 2)
	assert.Equal(t, "fixation", ex.FlagsFired[0].Flag)
	assert.Equal(t, FlagDescriptions["fixation"], ex.FlagsFired[0].Description)
	assert.Equal(t, []string{"Log and monitor."}, ex.RecommendedActions)
	assert.Equal(t, "24 hours", ex.ResponseWindow)
	assert.Empty(t, ex.Notify)
	assert.Equal(t,
		"Escalate: TAS 45.0 (ROUTINE). TRAP-lite flags: fixation, leakage. 6 hit(s) across 4 day(s). Response window: 24 hours.",
		ex.Summary)
}

func TestExplain_ElevatedTier_AppendsReviewActions(t *testing.T) {
	a := &Assessment{
		Fixation:    true,
		EnergyBurst: true,
		Leakage:     true,
		TASScore:    65,
	}
	ex := Explain(a, DefaultTiers())
	assert.Equal(t, "ELEVATED", ex.EscalationTier)
	assert.Equal(t, []string{
		"Enhanced monitoring. Assess within 4 hours.",
		"Review all POI hits for the assessment window.",
		"Verify protectee's current location and upcoming movements.",
	}, ex.RecommendedActions)
	assert.Equal(t, []string{"intel_analyst"}, ex.Notify)
}

func TestExplain_CriticalTier_PrependsImmediateAction(t *testing.T) {
	a := &Assessment{
		Fixation:             true,
		EnergyBurst:          true,
		Leakage:              true,
		Pathway:              true,
		TargetingSpecificity: true,
		TASScore:             100,
	}
	ex := Explain(a, DefaultTiers())
	assert.Equal(t, "CRITICAL", ex.EscalationTier)
	assert.Equal(t, []string{
		"IMMEDIATE: Brief detail leader and intel manager.",
		"Immediate briefing required.",
		"Review all POI hits for the assessment window.",
		"Verify protectee's current location and upcoming movements.",
		"Consider enhanced protective posture.",
	}, ex.RecommendedActions)
	assert.Equal(t, []string{"detail_leader", "intel_manager"}, ex.Notify)
	assert.Len(t, ex.FlagsFired, 5)
}

func TestExplain_NoFlags_QuietSummary(t *testing.T) {
	ex := Explain(&Assessment{TASScore: 0}, DefaultTiers())
	assert.Equal(t, "LOW", ex.EscalationTier)
	assert.Equal(t, "TAS 0.0 — No TRAP-lite flags active. No immediate action..", ex.Summary)
}
