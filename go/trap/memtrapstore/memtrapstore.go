// Package memtrapstore provides an in-memory implementation of trap.Store
// for tests and local development.
package memtrapstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.skia.org/infra/go/now"
	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/alerts"
	"github.com/argussec/argus/go/keywords"
	"github.com/argussec/argus/go/sources"
	"github.com/argussec/argus/go/trap"
	"github.com/argussec/argus/go/types"
)

type hitRow struct {
	poiID      types.POIID
	alertID    types.AlertID
	matchValue string
	context    string
}

type assessmentKey struct {
	poiID types.POIID
	start time.Time
	end   time.Time
}

// StoreImpl implements trap.Store. Hit rows keep only the reference; the
// alert and source fields in trap.Hit are joined at read time from the
// backing stores, mirroring what the SQL implementation does in one query.
type StoreImpl struct {
	alerts  alerts.Store
	sources sources.Store

	mutex       sync.Mutex
	nextID      types.POIID
	pois        map[types.POIID]*trap.POI
	hits        []hitRow
	assessments map[assessmentKey]*trap.Assessment
}

// New returns an empty StoreImpl joining against the given stores.
func New(alertStore alerts.Store, sourceStore sources.Store) *StoreImpl {
	return &StoreImpl{
		alerts:      alertStore,
		sources:     sourceStore,
		nextID:      1,
		pois:        map[types.POIID]*trap.POI{},
		assessments: map[assessmentKey]*trap.Assessment{},
	}
}

// GetPOI implements trap.Store.
func (s *StoreImpl) GetPOI(_ context.Context, id types.POIID) (*trap.POI, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	p, ok := s.pois[id]
	if !ok {
		return nil, trap.ErrPOINotFound
	}
	cp := *p
	return &cp, nil
}

// InsertPOI implements trap.Store.
func (s *StoreImpl) InsertPOI(_ context.Context, p *trap.POI) (types.POIID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *p
	cp.ID = s.nextID
	s.nextID++
	s.pois[cp.ID] = &cp
	return cp.ID, nil
}

// ListActivePOIs implements trap.Store.
func (s *StoreImpl) ListActivePOIs(_ context.Context) ([]*trap.POI, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var ret []*trap.POI
	for _, p := range s.pois {
		if !p.Active {
			continue
		}
		cp := *p
		ret = append(ret, &cp)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret, nil
}

// AddHit implements trap.Store.
func (s *StoreImpl) AddHit(_ context.Context, poiID types.POIID, alertID types.AlertID, matchValue, context string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.pois[poiID]; !ok {
		return trap.ErrPOINotFound
	}
	s.hits = append(s.hits, hitRow{
		poiID:      poiID,
		alertID:    alertID,
		matchValue: matchValue,
		context:    context,
	})
	return nil
}

// POIsForAlert implements trap.Store.
func (s *StoreImpl) POIsForAlert(_ context.Context, alertID types.AlertID) ([]types.POIID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	seen := map[types.POIID]bool{}
	var ret []types.POIID
	for _, h := range s.hits {
		if h.alertID != alertID || seen[h.poiID] {
			continue
		}
		seen[h.poiID] = true
		ret = append(ret, h.poiID)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret, nil
}

// HitsInWindow implements trap.Store.
func (s *StoreImpl) HitsInWindow(ctx context.Context, id types.POIID, start, end time.Time) ([]*trap.Hit, error) {
	s.mutex.Lock()
	rows := make([]hitRow, 0, len(s.hits))
	for _, h := range s.hits {
		if h.poiID == id {
			rows = append(rows, h)
		}
	}
	s.mutex.Unlock()

	fallback := now.Now(ctx)
	var ret []*trap.Hit
	var alertIDs []types.AlertID
	for _, row := range rows {
		a, err := s.alerts.Get(ctx, row.alertID)
		if err != nil {
			return nil, skerr.Wrapf(err, "joining hit for alert %d", row.alertID)
		}
		ts := a.EventTime(fallback)
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		src, err := s.sources.Get(ctx, a.SourceID)
		if err != nil {
			return nil, skerr.Wrapf(err, "joining source %d", a.SourceID)
		}
		alpha, beta := src.BetaParams()
		ret = append(ret, &trap.Hit{
			POIID:      id,
			AlertID:    a.ID,
			MatchValue: row.matchValue,
			Context:    row.context,
			Title:      a.Title,
			Content:    a.Content,
			Day:        keywords.Day(ts),
			EventTime:  ts,
			Alpha:      alpha,
			Beta:       beta,
		})
		alertIDs = append(alertIDs, a.ID)
	}

	if len(alertIDs) > 0 {
		entities, err := s.alerts.Entities(ctx, alertIDs)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		for _, h := range ret {
			for _, e := range entities[h.AlertID] {
				if trap.LocationEntityTypes[e.Type] {
					h.HasLocation = true
					break
				}
			}
		}
	}

	sort.Slice(ret, func(i, j int) bool { return ret[i].EventTime.Before(ret[j].EventTime) })
	return ret, nil
}

// UpsertAssessment implements trap.Store.
func (s *StoreImpl) UpsertAssessment(_ context.Context, a *trap.Assessment) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *a
	s.assessments[assessmentKey{poiID: a.POIID, start: a.WindowStart, end: a.WindowEnd}] = &cp
	return nil
}

// LatestAssessment implements trap.Store.
func (s *StoreImpl) LatestAssessment(_ context.Context, id types.POIID) (*trap.Assessment, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var latest *trap.Assessment
	for _, a := range s.assessments {
		if a.POIID != id {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// Confirm StoreImpl implements trap.Store.
var _ trap.Store = (*StoreImpl)(nil)
