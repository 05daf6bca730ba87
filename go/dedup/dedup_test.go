package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argussec/argus/go/alerts"
	"github.com/argussec/argus/go/alerts/memalertstore"
	"github.com/argussec/argus/go/types"
)

func TestContentHash_NormalizesCaseAndWhitespace(t *testing.T) {
	a := ContentHash("Bomb Threat", "They  plan to\tact   tomorrow")
	b := ContentHash("bomb threat", "they plan to act tomorrow")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, ContentHash("bomb threat", "they plan to act today"))
}

func TestChecker_MatchesByContentHash(t *testing.T) {
	ctx := context.Background()
	store := memalertstore.New()
	hash := ContentHash("title", "content")
	id, err := store.Insert(ctx, &alerts.Alert{
		Title:       "title",
		Content:     "content",
		ContentHash: hash,
	})
	require.NoError(t, err)

	checker := New(store)
	r, err := checker.Check(ctx, hash, "")
	require.NoError(t, err)
	assert.True(t, r.IsDuplicate())
	assert.Equal(t, id, r.CanonicalID)
	assert.Equal(t, "content_hash", r.Reason)
}

func TestChecker_HashWinsOverURL(t *testing.T) {
	ctx := context.Background()
	store := memalertstore.New()
	hash := ContentHash("title", "content")
	byHash, err := store.Insert(ctx, &alerts.Alert{ContentHash: hash})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &alerts.Alert{URL: "https://example.com/p/1"})
	require.NoError(t, err)

	r, err := New(store).Check(ctx, hash, "https://example.com/p/1")
	require.NoError(t, err)
	assert.Equal(t, byHash, r.CanonicalID)
	assert.Equal(t, "content_hash", r.Reason)
}

func TestChecker_FallsBackToURL(t *testing.T) {
	ctx := context.Background()
	store := memalertstore.New()
	id, err := store.Insert(ctx, &alerts.Alert{URL: "https://example.com/p/1"})
	require.NoError(t, err)

	r, err := New(store).Check(ctx, ContentHash("other", "text"), "https://example.com/p/1")
	require.NoError(t, err)
	assert.True(t, r.IsDuplicate())
	assert.Equal(t, id, r.CanonicalID)
	assert.Equal(t, "url", r.Reason)
}

func TestChecker_EmptyURLNeverMatches(t *testing.T) {
	ctx := context.Background()
	store := memalertstore.New()
	_, err := store.Insert(ctx, &alerts.Alert{URL: ""})
	require.NoError(t, err)

	r, err := New(store).Check(ctx, ContentHash("fresh", "text"), "")
	require.NoError(t, err)
	assert.False(t, r.IsDuplicate())
	assert.Equal(t, types.BadAlertID, r.CanonicalID)
}

func TestChecker_CanonicalIsOldestNonDuplicate(t *testing.T) {
	ctx := context.Background()
	store := memalertstore.New()
	hash := ContentHash("title", "content")
	oldest, err := store.Insert(ctx, &alerts.Alert{ContentHash: hash})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &alerts.Alert{ContentHash: hash, DuplicateOf: oldest})
	require.NoError(t, err)

	r, err := New(store).Check(ctx, hash, "")
	require.NoError(t, err)
	assert.Equal(t, oldest, r.CanonicalID)
}
