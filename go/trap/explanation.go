package trap

import (
	"fmt"
	"strings"
)

// FlagDescriptions maps flag names to analyst-facing descriptions.
var FlagDescriptions = map[string]string{
	"fixation":              "Persistent, recurring attention to the protectee across multiple days — indicates obsessive focus.",
	"energy_burst":          "Sudden spike in mention frequency (z ≥ 2.0 vs 7-day baseline) — suggests escalating urgency.",
	"leakage":               "Language signaling intent or timeline (e.g., 'tomorrow', 'plan to', 'going to') — pre-attack indicator.",
	"pathway":               "References to operational details (routes, entrances, schedules, weapons) — preparation behavior.",
	"targeting_specificity": "Combination of location data + time references — indicates specific targeting window.",
}

type flagSpec struct {
	name  string
	fired func(*Assessment) bool
}

// flagOrder fixes the reporting order of the flags.
var flagOrder = []flagSpec{
	{"fixation", func(a *Assessment) bool { return a.Fixation }},
	{"energy_burst", func(a *Assessment) bool { return a.EnergyBurst }},
	{"leakage", func(a *Assessment) bool { return a.Leakage }},
	{"pathway", func(a *Assessment) bool { return a.Pathway }},
	{"targeting_specificity", func(a *Assessment) bool { return a.TargetingSpecificity }},
}

// FiredFlag is one active flag with its description.
type FiredFlag struct {
	Flag        string `json:"flag"`
	Description string `json:"description"`
}

// Explanation is the "escalate because..." block built from an assessment,
// for analyst consumption.
type Explanation struct {
	EscalationTier     string      `json:"escalation_tier"`
	FlagsFired         []FiredFlag `json:"flags_fired"`
	EvidenceStrings    []string    `json:"evidence_strings"`
	RecommendedActions []string    `json:"recommended_actions"`
	ResponseWindow     string      `json:"response_window"`
	Notify             []string    `json:"notify"`
	Summary            string      `json:"summary"`
}

// Explain renders an assessment against an escalation policy.
func Explain(a *Assessment, tiers Tiers) *Explanation {
	tier := tiers.Resolve(a.TASScore)

	var fired []FiredFlag
	for _, name := range a.Flags() {
		fired = append(fired, FiredFlag{Flag: name, Description: FlagDescriptions[name]})
	}

	actions := []string{tier.Action}
	if a.TASScore >= 65 {
		actions = append(actions,
			"Review all POI hits for the assessment window.",
			"Verify protectee's current location and upcoming movements.")
	}
	if a.TASScore >= 85 {
		actions = append([]string{"IMMEDIATE: Brief detail leader and intel manager."}, actions...)
		actions = append(actions, "Consider enhanced protective posture.")
	}

	excerpts := a.Evidence.Excerpts
	if len(excerpts) > maxExcerpts {
		excerpts = excerpts[:maxExcerpts]
	}

	return &Explanation{
		EscalationTier:     tier.Label,
		FlagsFired:         fired,
		EvidenceStrings:    excerpts,
		RecommendedActions: actions,
		ResponseWindow:     tier.ResponseWindow,
		Notify:             tier.Notify,
		Summary:            summary(a, fired, tier),
	}
}

func summary(a *Assessment, fired []FiredFlag, tier Tier) string {
	if len(fired) == 0 {
		return fmt.Sprintf("TAS %.1f — No TRAP-lite flags active. %s.", a.TASScore, tier.Action)
	}
	names := make([]string, 0, len(fired))
	for _, f := range fired {
		names = append(names, strings.ReplaceAll(f.Flag, "_", " "))
	}
	ret := fmt.Sprintf("Escalate: TAS %.1f (%s). TRAP-lite flags: %s. %d hit(s) across %d day(s). ",
		a.TASScore, tier.Label, strings.Join(names, ", "), a.Evidence.Hits, a.Evidence.DistinctDays)
	if tier.ResponseWindow != "" {
		ret += fmt.Sprintf("Response window: %s.", tier.ResponseWindow)
	}
	return ret
}
