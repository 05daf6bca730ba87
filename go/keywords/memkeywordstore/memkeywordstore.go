// Package memkeywordstore provides an in-memory implementation of
// keywords.Store.
package memkeywordstore

import (
	"context"
	"sort"
	"sync"

	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/keywords"
	"github.com/argussec/argus/go/types"
)

type freqKey struct {
	id  types.KeywordID
	day string
}

// StoreImpl implements keywords.Store. The mutex serializes counter
// increments per the Store contract.
type StoreImpl struct {
	mutex  sync.Mutex
	nextID types.KeywordID
	byID   map[types.KeywordID]*keywords.Keyword
	counts map[freqKey]int
}

// New returns an empty in-memory keyword store.
func New() *StoreImpl {
	return &StoreImpl{
		nextID: 1,
		byID:   map[types.KeywordID]*keywords.Keyword{},
		counts: map[freqKey]int{},
	}
}

// Get implements keywords.Store.
func (s *StoreImpl) Get(_ context.Context, id types.KeywordID) (*keywords.Keyword, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	k, ok := s.byID[id]
	if !ok {
		return nil, skerr.Wrapf(keywords.ErrNotFound, "keyword %d", id)
	}
	cp := *k
	return &cp, nil
}

// Insert implements keywords.Store.
func (s *StoreImpl) Insert(_ context.Context, k *keywords.Keyword) (types.KeywordID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *k
	cp.ID = s.nextID
	s.nextID++
	s.byID[cp.ID] = &cp
	return cp.ID, nil
}

// ListActive implements keywords.Store.
func (s *StoreImpl) ListActive(_ context.Context) ([]*keywords.Keyword, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var ret []*keywords.Keyword
	for _, k := range s.byID {
		if k.Active {
			cp := *k
			ret = append(ret, &cp)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret, nil
}

// IncrementFrequency implements keywords.Store.
func (s *StoreImpl) IncrementFrequency(_ context.Context, id types.KeywordID, day string, by int) error {
	if by <= 0 {
		return nil
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.counts[freqKey{id: id, day: day}] += by
	return nil
}

// FrequencyOn implements keywords.Store.
func (s *StoreImpl) FrequencyOn(_ context.Context, id types.KeywordID, day string) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.counts[freqKey{id: id, day: day}], nil
}

// FrequencyBetween implements keywords.Store.
func (s *StoreImpl) FrequencyBetween(_ context.Context, id types.KeywordID, from, to string) ([]keywords.DayCount, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var ret []keywords.DayCount
	for key, count := range s.counts {
		if key.id == id && key.day >= from && key.day < to {
			ret = append(ret, keywords.DayCount{Day: key.day, Count: count})
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Day < ret[j].Day })
	return ret, nil
}

// Confirm StoreImpl implements keywords.Store.
var _ keywords.Store = (*StoreImpl)(nil)
