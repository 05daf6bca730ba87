package trap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTiers_Resolve_InclusiveLowerBounds(t *testing.T) {
	tiers := DefaultTiers()
	assert.Equal(t, "CRITICAL", tiers.Resolve(100).Label)
	assert.Equal(t, "CRITICAL", tiers.Resolve(85).Label)
	assert.Equal(t, "ELEVATED", tiers.Resolve(84.9).Label)
	assert.Equal(t, "ELEVATED", tiers.Resolve(65).Label)
	assert.Equal(t, "ROUTINE", tiers.Resolve(64.9).Label)
	assert.Equal(t, "ROUTINE", tiers.Resolve(40).Label)
	assert.Equal(t, "LOW", tiers.Resolve(39.9).Label)
	assert.Equal(t, "LOW", tiers.Resolve(0).Label)
}

func TestLoadTiers_ParsesJSON5AndSortsByThreshold(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "tiers.json5")
	require.NoError(t, os.WriteFile(filename, []byte(`{
		// Site-specific escalation policy.
		escalation_tiers: [
			{
				threshold: 50,
				label: "WATCH",
				notify: ["intel_analyst"],
				action: "Review within the hour.",
				response_window: "1 hour",
			},
			{
				threshold: 90,
				label: "CRITICAL",
				notify: ["detail_leader"],
				action: "Brief immediately.",
				response_window: "15 minutes",
			},
			{
				threshold: 0,
				label: "LOW",
				action: "No immediate action.",
				response_window: "N/A",
			},
		],
	}`), 0o644))

	tiers, err := LoadTiers(filename)
	require.NoError(t, err)
	require.Len(t, tiers, 3)
	assert.Equal(t, "CRITICAL", tiers[0].Label)
	assert.Equal(t, "WATCH", tiers[1].Label)
	assert.Equal(t, "LOW", tiers[2].Label)
	assert.Equal(t, "CRITICAL", tiers.Resolve(92).Label)
	assert.Equal(t, "WATCH", tiers.Resolve(55).Label)
}

func TestLoadTiers_EmptyLabel_Error(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "tiers.json5")
	require.NoError(t, os.WriteFile(filename, []byte(`{
		escalation_tiers: [{threshold: 50, label: ""}],
	}`), 0o644))

	_, err := LoadTiers(filename)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty label")
}

func TestLoadTiers_ThresholdOutOfRange_Error(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "tiers.json5")
	require.NoError(t, os.WriteFile(filename, []byte(`{
		escalation_tiers: [{threshold: 120, label: "BROKEN"}],
	}`), 0o644))

	_, err := LoadTiers(filename)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestLoadTiersOrDefault_MissingFile_FallsBack(t *testing.T) {
	tiers := LoadTiersOrDefault(filepath.Join(t.TempDir(), "does-not-exist.json5"))
	assert.Equal(t, DefaultTiers(), tiers)
}

func TestLoadTiersOrDefault_EmptyFilename_Defaults(t *testing.T) {
	assert.Equal(t, DefaultTiers(), LoadTiersOrDefault(""))
}
