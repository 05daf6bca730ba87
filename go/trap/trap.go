// Package trap implements the TRAP-lite targeted-threat assessment for
// protectees of interest (POIs).
//
// A POI accumulates hits (alerts that mention them). Over a rolling window
// the engine derives five behavioral flags — fixation, energy burst, leakage,
// pathway and targeting specificity — combines them into a 0-100 threat
// assessment score (TAS), adjusts for the credibility of the contributing
// sources, and resolves the configured escalation tier.
package trap

import (
	"context"
	"errors"
	"time"

	"github.com/argussec/argus/go/types"
	"github.com/argussec/argus/go/uncertainty"
)

// ErrPOINotFound is returned when the requested POI does not exist.
var ErrPOINotFound = errors.New("poi not found")

// DefaultWindowDays is the rolling assessment window.
const DefaultWindowDays = 14

// LocationEntityTypes are the extracted-entity types that count as "the alert
// has an associated location" for the targeting-specificity flag.
var LocationEntityTypes = map[string]bool{
	"location": true,
	"GPE":      true,
	"LOC":      true,
}

// POI is one protectee of interest.
type POI struct {
	ID     types.POIID
	Name   string
	Role   string
	Active bool
}

// Hit is one alert reference to a POI, joined with the alert fields the
// assessment needs.
type Hit struct {
	POIID      types.POIID
	AlertID    types.AlertID
	MatchValue string

	// Context is the text surrounding the match, carried into assessment
	// evidence excerpts.
	Context string

	Title   string
	Content string

	// Day is the alert's event day ("YYYY-MM-DD", UTC) and EventTime the
	// full timestamp.
	Day       string
	EventTime time.Time

	// Alpha and Beta are the Beta parameters of the alert's source.
	Alpha float64
	Beta  float64

	// HasLocation is true when the alert carries a location-type entity.
	HasLocation bool
}

// Evidence is the supporting data stored with an assessment.
type Evidence struct {
	WindowDays   int                  `json:"window_days"`
	DistinctDays int                  `json:"distinct_days"`
	Hits         int                  `json:"hits"`
	EnergyZ      float64              `json:"energy_z"`
	Excerpts     []string             `json:"excerpts"`
	Interval     uncertainty.Interval `json:"interval"`
}

// Assessment is one TRAP-lite assessment of a POI over a window. At most one
// exists per (POI, WindowStart, WindowEnd); the window is anchored to day
// boundaries so same-day reruns replace rather than duplicate.
type Assessment struct {
	POIID       types.POIID
	WindowStart time.Time
	WindowEnd   time.Time

	Fixation             bool
	EnergyBurst          bool
	Leakage              bool
	Pathway              bool
	TargetingSpecificity bool

	TASScore float64
	Evidence Evidence

	CreatedAt time.Time
}

// Flags returns the names of the fired flags in canonical order.
func (a *Assessment) Flags() []string {
	var ret []string
	for _, f := range flagOrder {
		if f.fired(a) {
			ret = append(ret, f.name)
		}
	}
	return ret
}

// Store abstracts the persistence of POIs, hits and assessments.
type Store interface {
	// GetPOI returns a POI, or ErrPOINotFound.
	GetPOI(ctx context.Context, id types.POIID) (*POI, error)

	// InsertPOI persists a new POI and returns its assigned id.
	InsertPOI(ctx context.Context, p *POI) (types.POIID, error)

	// ListActivePOIs returns all active POIs.
	ListActivePOIs(ctx context.Context) ([]*POI, error)

	// AddHit records that an alert mentions a POI.
	AddHit(ctx context.Context, poiID types.POIID, alertID types.AlertID, matchValue, context string) error

	// POIsForAlert returns the distinct POIs an alert has hits against.
	POIsForAlert(ctx context.Context, alertID types.AlertID) ([]types.POIID, error)

	// HitsInWindow returns a POI's hits whose alert event time falls within
	// [start, end), ordered by event time, joined with the alert and source
	// fields in Hit.
	HitsInWindow(ctx context.Context, id types.POIID, start, end time.Time) ([]*Hit, error)

	// UpsertAssessment inserts the assessment or replaces the existing row
	// with the same (POIID, WindowStart, WindowEnd).
	UpsertAssessment(ctx context.Context, a *Assessment) error

	// LatestAssessment returns the most recent assessment for a POI, or nil
	// if none exists.
	LatestAssessment(ctx context.Context, id types.POIID) (*Assessment, error)
}
