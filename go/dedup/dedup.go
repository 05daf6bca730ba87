// Package dedup is the pre-scoring duplicate filter. Incoming alerts are
// matched against existing ones by normalized content hash and by exact URL;
// duplicates are still persisted for audit completeness but are excluded from
// scoring, entity extraction and frequency counting.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/alerts"
	"github.com/argussec/argus/go/types"
)

// ContentHash returns the normalized hash of an alert's title and content:
// lowercased, whitespace collapsed, then SHA-256.
func ContentHash(title, content string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(title+" "+content)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Result reports whether an incoming alert duplicates an existing one.
type Result struct {
	// CanonicalID is the alert this one duplicates, or types.BadAlertID.
	CanonicalID types.AlertID

	// Reason is "content_hash" or "url" when a duplicate was found.
	Reason string
}

// IsDuplicate returns true if a canonical alert was found.
func (r Result) IsDuplicate() bool {
	return r.CanonicalID != types.BadAlertID
}

// Checker finds duplicates in an alert store.
type Checker struct {
	alerts alerts.Store
}

// New returns a Checker reading from the given store.
func New(alertStore alerts.Store) *Checker {
	return &Checker{alerts: alertStore}
}

// Check looks for an existing alert with the same content hash or the same
// URL. The hash match is authoritative over the URL match. An empty URL never
// matches.
func (c *Checker) Check(ctx context.Context, hash, url string) (Result, error) {
	id, err := c.alerts.FindByContentHash(ctx, hash)
	if err != nil {
		return Result{CanonicalID: types.BadAlertID}, skerr.Wrap(err)
	}
	if id != types.BadAlertID {
		return Result{CanonicalID: id, Reason: "content_hash"}, nil
	}
	if url != "" {
		id, err = c.alerts.FindByURL(ctx, url)
		if err != nil {
			return Result{CanonicalID: types.BadAlertID}, skerr.Wrap(err)
		}
		if id != types.BadAlertID {
			return Result{CanonicalID: id, Reason: "url"}, nil
		}
	}
	return Result{CanonicalID: types.BadAlertID}, nil
}
