package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/argussec/argus/go/types"
)

var sinceBase = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func TestSince_PublishedDayDiffersFromCreatedDay_CutoffUsesEventTime(t *testing.T) {
	cutoff := sinceBase.Add(-24 * time.Hour)

	// Created after cutoff but published well before it: excluded.
	backfilled := &Alert{
		ID:          1,
		CreatedAt:   sinceBase,
		PublishedAt: sinceBase.Add(-72 * time.Hour).Format(time.RFC3339),
	}
	// Created before cutoff but published after it: included.
	forwardDated := &Alert{
		ID:          2,
		CreatedAt:   sinceBase.Add(-48 * time.Hour),
		PublishedAt: sinceBase.Add(-time.Hour).Format(time.RFC3339),
	}
	// No parsable published_at falls back to created_at: included.
	bareCreated := &Alert{
		ID:          3,
		CreatedAt:   sinceBase.Add(-2 * time.Hour),
		PublishedAt: "yesterday",
	}

	got := Since([]*Alert{backfilled, forwardDated, bareCreated}, cutoff)
	ids := make([]types.AlertID, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []types.AlertID{3, 2}, ids)
}

func TestSince_DuplicatesExcluded(t *testing.T) {
	canonical := &Alert{ID: 1, CreatedAt: sinceBase}
	dup := &Alert{ID: 2, CreatedAt: sinceBase, DuplicateOf: 1}

	got := Since([]*Alert{canonical, dup}, sinceBase.Add(-time.Hour))
	assert.Len(t, got, 1)
	assert.Equal(t, types.AlertID(1), got[0].ID)
}

func TestSince_EqualEventTimes_OrderedByID(t *testing.T) {
	a := &Alert{ID: 7, CreatedAt: sinceBase}
	b := &Alert{ID: 4, CreatedAt: sinceBase}

	got := Since([]*Alert{a, b}, sinceBase)
	assert.Equal(t, types.AlertID(4), got[0].ID)
	assert.Equal(t, types.AlertID(7), got[1].ID)
}
