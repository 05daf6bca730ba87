// Package mempathwaystore provides an in-memory implementation of
// pathway.Store.
package mempathwaystore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/pathway"
	"github.com/argussec/argus/go/types"
)

type assessmentKey struct {
	subject types.SubjectID
	date    string
}

// StoreImpl implements pathway.Store with maps guarded by a single mutex.
type StoreImpl struct {
	mutex       sync.Mutex
	nextID      types.SubjectID
	subjects    map[types.SubjectID]*pathway.Subject
	assessments map[assessmentKey]*pathway.Assessment
}

// New returns an empty in-memory pathway store.
func New() *StoreImpl {
	return &StoreImpl{
		nextID:      1,
		subjects:    map[types.SubjectID]*pathway.Subject{},
		assessments: map[assessmentKey]*pathway.Assessment{},
	}
}

// GetSubject implements pathway.Store.
func (s *StoreImpl) GetSubject(_ context.Context, id types.SubjectID) (*pathway.Subject, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	subject, ok := s.subjects[id]
	if !ok {
		return nil, skerr.Wrapf(pathway.ErrSubjectNotFound, "subject %d", id)
	}
	cp := *subject
	return &cp, nil
}

// InsertSubject implements pathway.Store.
func (s *StoreImpl) InsertSubject(_ context.Context, subject *pathway.Subject) (types.SubjectID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *subject
	cp.ID = s.nextID
	s.nextID++
	s.subjects[cp.ID] = &cp
	return cp.ID, nil
}

// UpsertAssessment implements pathway.Store.
func (s *StoreImpl) UpsertAssessment(_ context.Context, a *pathway.Assessment) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *a
	cp.SourceAlertIDs = append([]types.AlertID{}, a.SourceAlertIDs...)
	s.assessments[assessmentKey{subject: a.SubjectID, date: a.Date}] = &cp
	return nil
}

// RecentScores implements pathway.Store.
func (s *StoreImpl) RecentScores(_ context.Context, id types.SubjectID, sinceDay string, limit int) ([]float64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var matching []*pathway.Assessment
	for key, a := range s.assessments {
		if key.subject == id && key.date >= sinceDay {
			matching = append(matching, a)
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].Date > matching[j].Date })
	if limit > 0 && len(matching) > limit {
		matching = matching[:limit]
	}
	ret := make([]float64, 0, len(matching))
	for _, a := range matching {
		ret = append(ret, a.PathwayScore)
	}
	return ret, nil
}

// History implements pathway.Store.
func (s *StoreImpl) History(_ context.Context, id types.SubjectID, limit int) ([]*pathway.Assessment, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var ret []*pathway.Assessment
	for key, a := range s.assessments {
		if key.subject == id {
			cp := *a
			ret = append(ret, &cp)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Date > ret[j].Date })
	if limit > 0 && len(ret) > limit {
		ret = ret[:limit]
	}
	return ret, nil
}

// UpdateSubjectState implements pathway.Store.
func (s *StoreImpl) UpdateSubjectState(_ context.Context, id types.SubjectID, tier types.RiskTier, lastSeen time.Time, status string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	subject, ok := s.subjects[id]
	if !ok {
		return skerr.Wrapf(pathway.ErrSubjectNotFound, "subject %d", id)
	}
	subject.RiskTier = tier
	subject.LastSeen = lastSeen
	subject.Status = status
	return nil
}

// ActiveSubjects implements pathway.Store.
func (s *StoreImpl) ActiveSubjects(_ context.Context, minScore float64) ([]*pathway.Subject, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	latest := map[types.SubjectID]float64{}
	latestDate := map[types.SubjectID]string{}
	for key, a := range s.assessments {
		if key.date >= latestDate[key.subject] {
			latestDate[key.subject] = key.date
			latest[key.subject] = a.PathwayScore
		}
	}
	var ret []*pathway.Subject
	for id, subject := range s.subjects {
		if subject.Status != "active" {
			continue
		}
		if latest[id] < minScore {
			continue
		}
		cp := *subject
		ret = append(ret, &cp)
	}
	sort.Slice(ret, func(i, j int) bool {
		si, sj := latest[ret[i].ID], latest[ret[j].ID]
		if si == sj {
			return ret[i].ID < ret[j].ID
		}
		return si > sj
	})
	return ret, nil
}

// Confirm StoreImpl implements pathway.Store.
var _ pathway.Store = (*StoreImpl)(nil)
