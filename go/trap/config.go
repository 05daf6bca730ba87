package trap

import (
	"io"
	"sort"

	"github.com/flynn/json5"
	"go.skia.org/infra/go/skerr"
	"go.skia.org/infra/go/sklog"
	"go.skia.org/infra/go/util"
)

// Tier is one escalation tier. An assessment resolves to the highest-threshold
// tier whose Threshold the TAS meets.
type Tier struct {
	Threshold      float64  `json:"threshold"`
	Label          string   `json:"label"`
	Notify         []string `json:"notify"`
	Action         string   `json:"action"`
	ResponseWindow string   `json:"response_window"`
}

// Tiers is an escalation policy, ordered by descending threshold.
type Tiers []Tier

// DefaultTiers is used when no policy file is configured or the configured
// file fails to load.
func DefaultTiers() Tiers {
	return Tiers{
		{
			Threshold:      85,
			Label:          "CRITICAL",
			Notify:         []string{"detail_leader", "intel_manager"},
			Action:         "Immediate briefing required.",
			ResponseWindow: "30 minutes",
		},
		{
			Threshold:      65,
			Label:          "ELEVATED",
			Notify:         []string{"intel_analyst"},
			Action:         "Enhanced monitoring. Assess within 4 hours.",
			ResponseWindow: "4 hours",
		},
		{
			Threshold:      40,
			Label:          "ROUTINE",
			Notify:         []string{},
			Action:         "Log and monitor.",
			ResponseWindow: "24 hours",
		},
		{
			Threshold:      0,
			Label:          "LOW",
			Notify:         []string{},
			Action:         "No immediate action.",
			ResponseWindow: "N/A",
		},
	}
}

// tiersFile is the shape of an escalation policy file.
type tiersFile struct {
	EscalationTiers []Tier `json:"escalation_tiers"`
}

// LoadTiers reads an escalation policy from a JSON5 file.
func LoadTiers(filename string) (Tiers, error) {
	var file tiersFile
	err := util.WithReadFile(filename, func(r io.Reader) error {
		return json5.NewDecoder(r).Decode(&file)
	})
	if err != nil {
		return nil, skerr.Wrapf(err, "reading escalation tiers from %q", filename)
	}
	ret := Tiers(file.EscalationTiers)
	if err := ret.validate(); err != nil {
		return nil, skerr.Wrapf(err, "validating escalation tiers from %q", filename)
	}
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].Threshold > ret[j].Threshold })
	return ret, nil
}

// LoadTiersOrDefault loads an escalation policy, falling back to DefaultTiers
// on any error. An empty filename selects the defaults without logging.
func LoadTiersOrDefault(filename string) Tiers {
	if filename == "" {
		return DefaultTiers()
	}
	ret, err := LoadTiers(filename)
	if err != nil {
		sklog.Warningf("Failed to load escalation tiers, using defaults: %s", err)
		return DefaultTiers()
	}
	return ret
}

func (t Tiers) validate() error {
	if len(t) == 0 {
		return skerr.Fmt("no tiers defined")
	}
	for i, tier := range t {
		if tier.Label == "" {
			return skerr.Fmt("tier %d has an empty label", i)
		}
		if tier.Threshold < 0 || tier.Threshold > 100 {
			return skerr.Fmt("tier %q has out of range threshold %v", tier.Label, tier.Threshold)
		}
	}
	return nil
}

// Resolve returns the tier a score falls into. The lowest tier catches scores
// below every threshold.
func (t Tiers) Resolve(score float64) Tier {
	for _, tier := range t {
		if score >= tier.Threshold {
			return tier
		}
	}
	return t[len(t)-1]
}
