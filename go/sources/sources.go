// Package sources defines collection sources and their Bayesian credibility
// state.
package sources

import (
	"context"
	"errors"

	"github.com/argussec/argus/go/types"
)

// ErrNotFound is returned by Store implementations when the requested source
// does not exist.
var ErrNotFound = errors.New("source not found")

const (
	// DefaultAlpha and DefaultBeta form the uninformative Beta(2,2) prior
	// centered at 0.5 that every source starts from.
	DefaultAlpha = 2.0
	DefaultBeta  = 2.0

	// MinBetaParam is the floor applied to alpha/beta before they are used
	// in any division or sampling.
	MinBetaParam = 0.01
)

// Source is one collection source (an RSS feed, a forum scraper, a social
// media monitor, ...) together with its trust state.
type Source struct {
	ID   types.SourceID
	Name string
	Type string
	URL  string

	// CredibilityScore is the current trust estimate in [0,1]. It is kept in
	// sync with Alpha/(Alpha+Beta) whenever the Beta parameters change; for
	// sources with no classified outcomes yet it is the operator-assigned
	// static prior.
	CredibilityScore float64
	BayesianAlpha    float64
	BayesianBeta     float64
	TruePositives    int
	FalsePositives   int

	FailStreak int
	Active     bool
}

// BetaParams returns the source's Beta parameters with defaults and floors
// applied.
func (s *Source) BetaParams() (float64, float64) {
	alpha, beta := s.BayesianAlpha, s.BayesianBeta
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	if beta == 0 {
		beta = DefaultBeta
	}
	if alpha < MinBetaParam {
		alpha = MinBetaParam
	}
	if beta < MinBetaParam {
		beta = MinBetaParam
	}
	return alpha, beta
}

// Store abstracts the persistence of sources.
//
// RecordOutcome is the only mutation the scoring core performs and it must be
// atomic per source: two concurrent classifications against the same source
// must both land.
type Store interface {
	// Get returns the source with the given id, or ErrNotFound.
	Get(ctx context.Context, id types.SourceID) (*Source, error)

	// Insert persists a new source and returns its assigned id.
	Insert(ctx context.Context, s *Source) (types.SourceID, error)

	// List returns all sources ordered by id.
	List(ctx context.Context) ([]*Source, error)

	// RecordOutcome applies a true/false positive classification: the
	// matching Beta parameter and counter are incremented and
	// CredibilityScore is resynchronized to Alpha/(Alpha+Beta), all in one
	// atomic read-modify-write. The updated source is returned.
	RecordOutcome(ctx context.Context, id types.SourceID, isTruePositive bool) (*Source, error)
}
