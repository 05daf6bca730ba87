package threads

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"go.skia.org/infra/go/now"
	"go.skia.org/infra/go/skerr"
	"go.skia.org/infra/go/sklog"

	"github.com/argussec/argus/go/alerts"
	"github.com/argussec/argus/go/sources"
	"github.com/argussec/argus/go/types"
)

// Engine builds incident threads from the alert and source stores.
type Engine struct {
	alerts  alerts.Store
	sources sources.Store
}

// NewEngine returns a correlation Engine reading from the given stores.
func NewEngine(alertStore alerts.Store, sourceStore sources.Store) *Engine {
	return &Engine{
		alerts:  alertStore,
		sources: sourceStore,
	}
}

// Build clusters the alerts within opts.Lookback into threads. Invalid
// options produce an empty result set rather than an error or a partial one.
func (e *Engine) Build(ctx context.Context, opts Options) ([]*Thread, error) {
	opts, ok := opts.withDefaults()
	if !ok {
		sklog.Warningf("Correlation called with invalid options: %+v", opts)
		return nil, nil
	}

	ts := now.Now(ctx)
	snapshot, err := e.alerts.ListSince(ctx, ts.Add(-opts.Lookback))
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	if len(snapshot) < opts.MinClusterSize {
		return nil, nil
	}

	members := make([]Member, 0, len(snapshot))
	ids := make([]types.AlertID, 0, len(snapshot))
	srcCache := map[types.SourceID]*sources.Source{}
	for _, a := range snapshot {
		src, ok := srcCache[a.SourceID]
		if !ok {
			src, err = e.sources.Get(ctx, a.SourceID)
			if err != nil {
				return nil, skerr.Wrapf(err, "resolving source %d", a.SourceID)
			}
			srcCache[a.SourceID] = src
		}
		members = append(members, Member{
			AlertID:     a.ID,
			Title:       a.Title,
			MatchedTerm: a.MatchedTerm,
			SourceID:    a.SourceID,
			SourceName:  src.Name,
			SourceType:  src.Type,
			RiskScore:   a.RiskScore,
			TASScore:    a.TASScore,
			EventTime:   a.EventTime(ts),
		})
		ids = append(ids, a.ID)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].EventTime.Before(members[j].EventTime) })

	entities, err := e.alerts.Entities(ctx, ids)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	// Normalized entity value -> type, per alert.
	normalized := make(map[types.AlertID]map[string]string, len(entities))
	for id, ents := range entities {
		m := map[string]string{}
		for _, ent := range ents {
			m[strings.ToLower(ent.Value)] = ent.Type
		}
		normalized[id] = m
	}

	uf := newUnionFind(len(members))
	var evidence []PairEvidence
	// Members are time-sorted, so for each alert only the ones inside the
	// cluster window ahead of it need checking.
	for i := range members {
		for j := i + 1; j < len(members); j++ {
			gap := members[j].EventTime.Sub(members[i].EventTime)
			if gap > opts.ClusterWindow {
				break
			}
			ev, linked := linkPair(&members[i], &members[j], gap, normalized, opts)
			if !linked {
				continue
			}
			uf.union(i, j)
			evidence = append(evidence, ev)
		}
	}

	clusters := map[int][]int{}
	for i := range members {
		root := uf.find(i)
		clusters[root] = append(clusters[root], i)
	}

	var ret []*Thread
	for _, idxs := range clusters {
		if len(idxs) < opts.MinClusterSize {
			continue
		}
		ret = append(ret, buildThread(members, idxs, evidence, opts))
	}
	// Strongest first; the order itself is deterministic via the id
	// tie-break.
	sort.Slice(ret, func(i, j int) bool {
		if better(ret[i], ret[j]) != better(ret[j], ret[i]) {
			return better(ret[i], ret[j])
		}
		return ret[i].ID < ret[j].ID
	})
	return ret, nil
}

// linkPair decides whether two alerts link and produces the pair evidence.
func linkPair(a, b *Member, gap time.Duration, normalized map[types.AlertID]map[string]string, opts Options) (PairEvidence, bool) {
	var reasons, shared []string

	entsA := normalized[a.AlertID]
	entsB := normalized[b.AlertID]
	typesSeen := map[string]bool{}
	for value, entType := range entsA {
		if _, ok := entsB[value]; !ok {
			continue
		}
		shared = append(shared, value)
		if !typesSeen[entType] {
			typesSeen[entType] = true
			reasons = append(reasons, "shared_"+entType)
		}
	}

	if gap <= opts.TightWindow && a.MatchedTerm != "" &&
		strings.EqualFold(a.MatchedTerm, b.MatchedTerm) {
		reasons = append(reasons, ReasonTightTemporal)
		shared = append(shared, strings.ToLower(a.MatchedTerm))
	}

	if len(reasons) == 0 {
		return PairEvidence{}, false
	}
	if a.SourceType != b.SourceType {
		reasons = append(reasons, ReasonCrossSource)
	}
	sort.Strings(reasons)
	sort.Strings(shared)
	return PairEvidence{
		A:            a.AlertID,
		B:            b.AlertID,
		Reasons:      reasons,
		SharedValues: shared,
	}, true
}

func buildThread(members []Member, idxs []int, evidence []PairEvidence, opts Options) *Thread {
	timeline := make([]Member, 0, len(idxs))
	inThread := map[types.AlertID]bool{}
	for _, i := range idxs {
		timeline = append(timeline, members[i])
		inThread[members[i].AlertID] = true
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].EventTime.Before(timeline[j].EventTime) })

	t := &Thread{
		Timeline:  timeline,
		StartTime: timeline[0].EventTime,
		EndTime:   timeline[len(timeline)-1].EventTime,
	}

	memberIDs := make([]types.AlertID, 0, len(timeline))
	sourceTypes := map[string]bool{}
	terms := map[string]bool{}
	for _, m := range timeline {
		memberIDs = append(memberIDs, m.AlertID)
		if m.SourceType != "" {
			sourceTypes[m.SourceType] = true
		}
		if m.MatchedTerm != "" {
			terms[strings.ToLower(m.MatchedTerm)] = true
		}
		if m.RiskScore > t.MaxRiskScore {
			t.MaxRiskScore = m.RiskScore
		}
		if m.TASScore > t.MaxTASScore {
			t.MaxTASScore = m.TASScore
		}
	}
	t.ID = ThreadID(memberIDs)

	reasons := map[string]bool{}
	sharedEntities := map[string]bool{}
	for _, ev := range evidence {
		if !inThread[ev.A] || !inThread[ev.B] {
			continue
		}
		t.Evidence = append(t.Evidence, ev)
		for _, r := range ev.Reasons {
			reasons[r] = true
		}
		for _, v := range ev.SharedValues {
			sharedEntities[v] = true
		}
	}

	t.SourceTypes = sortedKeys(sourceTypes)
	t.ReasonCodes = sortedKeys(reasons)
	t.SharedEntities = sortedKeys(sharedEntities)
	t.MatchedTerms = sortedKeys(terms)

	conf := opts.BaseConfidence +
		opts.ReasonWeight*float64(len(t.ReasonCodes)) +
		opts.SourceTypeWeight*float64(len(t.SourceTypes)-1)
	t.Confidence = math.Round(math.Min(math.Max(conf, 0), 1)*100) / 100
	return t
}

func sortedKeys(m map[string]bool) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// unionFind is a plain weighted union-find over member indexes.
type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}
