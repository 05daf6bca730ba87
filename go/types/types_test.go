package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityFromScore(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityFromScore(100))
	assert.Equal(t, SeverityCritical, SeverityFromScore(90))
	assert.Equal(t, SeverityHigh, SeverityFromScore(89.9))
	assert.Equal(t, SeverityHigh, SeverityFromScore(70))
	assert.Equal(t, SeverityMedium, SeverityFromScore(69.9))
	assert.Equal(t, SeverityMedium, SeverityFromScore(40))
	assert.Equal(t, SeverityLow, SeverityFromScore(39.9))
	assert.Equal(t, SeverityLow, SeverityFromScore(0))
}

func TestRiskTierFromPathwayScore(t *testing.T) {
	assert.Equal(t, RiskTierCritical, RiskTierFromPathwayScore(75))
	assert.Equal(t, RiskTierElevated, RiskTierFromPathwayScore(74.9))
	assert.Equal(t, RiskTierElevated, RiskTierFromPathwayScore(50))
	assert.Equal(t, RiskTierRoutine, RiskTierFromPathwayScore(49.9))
	assert.Equal(t, RiskTierRoutine, RiskTierFromPathwayScore(25))
	assert.Equal(t, RiskTierLow, RiskTierFromPathwayScore(24.9))
}
