// Package memsourcestore provides an in-memory implementation of
// sources.Store.
package memsourcestore

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/sources"
	"github.com/argussec/argus/go/types"
)

// StoreImpl implements sources.Store. The mutex makes RecordOutcome an atomic
// read-modify-write per the Store contract.
type StoreImpl struct {
	mutex  sync.Mutex
	nextID types.SourceID
	byID   map[types.SourceID]*sources.Source
}

// New returns an empty in-memory source store.
func New() *StoreImpl {
	return &StoreImpl{
		nextID: 1,
		byID:   map[types.SourceID]*sources.Source{},
	}
}

// Get implements sources.Store.
func (s *StoreImpl) Get(_ context.Context, id types.SourceID) (*sources.Source, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	src, ok := s.byID[id]
	if !ok {
		return nil, skerr.Wrapf(sources.ErrNotFound, "source %d", id)
	}
	cp := *src
	return &cp, nil
}

// Insert implements sources.Store.
func (s *StoreImpl) Insert(_ context.Context, src *sources.Source) (types.SourceID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *src
	cp.ID = s.nextID
	if cp.BayesianAlpha == 0 {
		cp.BayesianAlpha = sources.DefaultAlpha
	}
	if cp.BayesianBeta == 0 {
		cp.BayesianBeta = sources.DefaultBeta
	}
	s.nextID++
	s.byID[cp.ID] = &cp
	return cp.ID, nil
}

// List implements sources.Store.
func (s *StoreImpl) List(_ context.Context) ([]*sources.Source, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ret := make([]*sources.Source, 0, len(s.byID))
	for _, src := range s.byID {
		cp := *src
		ret = append(ret, &cp)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret, nil
}

// RecordOutcome implements sources.Store.
func (s *StoreImpl) RecordOutcome(_ context.Context, id types.SourceID, isTruePositive bool) (*sources.Source, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	src, ok := s.byID[id]
	if !ok {
		return nil, skerr.Wrapf(sources.ErrNotFound, "source %d", id)
	}
	alpha, beta := src.BetaParams()
	if isTruePositive {
		alpha++
		src.TruePositives++
	} else {
		beta++
		src.FalsePositives++
	}
	src.BayesianAlpha = alpha
	src.BayesianBeta = beta
	src.CredibilityScore = math.Round(alpha/(alpha+beta)*1e4) / 1e4
	cp := *src
	return &cp, nil
}

// Confirm StoreImpl implements sources.Store.
var _ sources.Store = (*StoreImpl)(nil)
