// Package memalertstore provides an in-memory implementation of alerts.Store,
// used in tests and for single-process deployments without a database.
package memalertstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/alerts"
	"github.com/argussec/argus/go/types"
)

// StoreImpl implements alerts.Store with maps guarded by a single mutex.
type StoreImpl struct {
	mutex    sync.Mutex
	nextID   types.AlertID
	byID     map[types.AlertID]*alerts.Alert
	entities map[types.AlertID][]alerts.Entity
}

// New returns an empty in-memory alert store.
func New() *StoreImpl {
	return &StoreImpl{
		nextID:   1,
		byID:     map[types.AlertID]*alerts.Alert{},
		entities: map[types.AlertID][]alerts.Entity{},
	}
}

// Get implements alerts.Store.
func (s *StoreImpl) Get(_ context.Context, id types.AlertID) (*alerts.Alert, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, skerr.Wrapf(alerts.ErrNotFound, "alert %d", id)
	}
	cp := *a
	return &cp, nil
}

// Insert implements alerts.Store.
func (s *StoreImpl) Insert(_ context.Context, a *alerts.Alert) (types.AlertID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *a
	cp.ID = s.nextID
	s.nextID++
	s.byID[cp.ID] = &cp
	return cp.ID, nil
}

// FindByURL implements alerts.Store.
func (s *StoreImpl) FindByURL(_ context.Context, url string) (types.AlertID, error) {
	if url == "" {
		return types.BadAlertID, nil
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	best := types.BadAlertID
	for id, a := range s.byID {
		if a.URL == url && (best == types.BadAlertID || id < best) {
			best = id
		}
	}
	return best, nil
}

// FindByContentHash implements alerts.Store.
func (s *StoreImpl) FindByContentHash(_ context.Context, hash string) (types.AlertID, error) {
	if hash == "" {
		return types.BadAlertID, nil
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	best := types.BadAlertID
	for id, a := range s.byID {
		if a.ContentHash == hash && !a.IsDuplicate() && (best == types.BadAlertID || id < best) {
			best = id
		}
	}
	return best, nil
}

// UpdateScore implements alerts.Store.
func (s *StoreImpl) UpdateScore(_ context.Context, id types.AlertID, score float64, severity types.Severity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return skerr.Wrapf(alerts.ErrNotFound, "alert %d", id)
	}
	a.RiskScore = score
	a.Severity = severity
	return nil
}

// UpdateTAS implements alerts.Store.
func (s *StoreImpl) UpdateTAS(_ context.Context, id types.AlertID, tas float64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return skerr.Wrapf(alerts.ErrNotFound, "alert %d", id)
	}
	a.TASScore = tas
	return nil
}

// SetReviewed implements alerts.Store.
func (s *StoreImpl) SetReviewed(_ context.Context, id types.AlertID, reviewed bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return skerr.Wrapf(alerts.ErrNotFound, "alert %d", id)
	}
	a.Reviewed = reviewed
	return nil
}

// ListUnreviewed implements alerts.Store.
func (s *StoreImpl) ListUnreviewed(_ context.Context) ([]*alerts.Alert, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var ret []*alerts.Alert
	for _, a := range s.byID {
		if !a.Reviewed && !a.IsDuplicate() {
			cp := *a
			ret = append(ret, &cp)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret, nil
}

// ListSince implements alerts.Store.
func (s *StoreImpl) ListSince(_ context.Context, cutoff time.Time) ([]*alerts.Alert, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	all := make([]*alerts.Alert, 0, len(s.byID))
	for _, a := range s.byID {
		cp := *a
		all = append(all, &cp)
	}
	return alerts.Since(all, cutoff), nil
}

// CountReviewedBySource implements alerts.Store.
func (s *StoreImpl) CountReviewedBySource(_ context.Context, id types.SourceID) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	count := 0
	for _, a := range s.byID {
		if a.SourceID == id && a.Reviewed {
			count++
		}
	}
	return count, nil
}

// AddEntities implements alerts.Store.
func (s *StoreImpl) AddEntities(_ context.Context, id types.AlertID, entities []alerts.Entity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.byID[id]; !ok {
		return skerr.Wrapf(alerts.ErrNotFound, "alert %d", id)
	}
	existing := map[alerts.Entity]bool{}
	for _, e := range s.entities[id] {
		existing[e] = true
	}
	for _, e := range entities {
		e.AlertID = id
		if existing[e] {
			continue
		}
		existing[e] = true
		s.entities[id] = append(s.entities[id], e)
	}
	return nil
}

// Entities implements alerts.Store.
func (s *StoreImpl) Entities(_ context.Context, ids []types.AlertID) (map[types.AlertID][]alerts.Entity, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ret := map[types.AlertID][]alerts.Entity{}
	for _, id := range ids {
		if ents, ok := s.entities[id]; ok {
			ret[id] = append([]alerts.Entity{}, ents...)
		}
	}
	return ret, nil
}

// Confirm StoreImpl implements alerts.Store.
var _ alerts.Store = (*StoreImpl)(nil)
