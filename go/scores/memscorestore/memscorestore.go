// Package memscorestore provides an in-memory implementation of scores.Store.
package memscorestore

import (
	"context"
	"sync"

	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/scores"
	"github.com/argussec/argus/go/types"
)

// StoreImpl implements scores.Store with maps guarded by a single mutex.
type StoreImpl struct {
	mutex     sync.Mutex
	audits    map[types.AlertID][]*scores.AuditRecord
	intervals map[types.AlertID]*scores.Interval
}

// New returns an empty in-memory score store.
func New() *StoreImpl {
	return &StoreImpl{
		audits:    map[types.AlertID][]*scores.AuditRecord{},
		intervals: map[types.AlertID]*scores.Interval{},
	}
}

// AppendAudit implements scores.Store.
func (s *StoreImpl) AppendAudit(_ context.Context, rec *scores.AuditRecord) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *rec
	s.audits[rec.AlertID] = append(s.audits[rec.AlertID], &cp)
	return nil
}

// LatestAudit implements scores.Store.
func (s *StoreImpl) LatestAudit(_ context.Context, id types.AlertID) (*scores.AuditRecord, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	recs := s.audits[id]
	if len(recs) == 0 {
		return nil, skerr.Wrapf(scores.ErrNoAudit, "alert %d", id)
	}
	cp := *recs[len(recs)-1]
	return &cp, nil
}

// AuditHistory implements scores.Store.
func (s *StoreImpl) AuditHistory(_ context.Context, id types.AlertID, limit int) ([]*scores.AuditRecord, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	recs := s.audits[id]
	var ret []*scores.AuditRecord
	for i := len(recs) - 1; i >= 0 && (limit <= 0 || len(ret) < limit); i-- {
		cp := *recs[i]
		ret = append(ret, &cp)
	}
	return ret, nil
}

// GetInterval implements scores.Store.
func (s *StoreImpl) GetInterval(_ context.Context, id types.AlertID) (*scores.Interval, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	in, ok := s.intervals[id]
	if !ok {
		return nil, nil
	}
	cp := *in
	return &cp, nil
}

// UpsertInterval implements scores.Store.
func (s *StoreImpl) UpsertInterval(_ context.Context, in *scores.Interval) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *in
	s.intervals[in.AlertID] = &cp
	return nil
}

// Confirm StoreImpl implements scores.Store.
var _ scores.Store = (*StoreImpl)(nil)
