// Package sqltrapstore implements trap.Store on an SQL database backend.
//
// HitsInWindow performs the alert and source joins in SQL, including the
// location-entity existence check, so the engine gets fully populated Hit
// rows in one query.
package sqltrapstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/alerts"
	"github.com/argussec/argus/go/keywords"
	"github.com/argussec/argus/go/trap"
	"github.com/argussec/argus/go/types"
)

// StoreImpl implements trap.Store.
type StoreImpl struct {
	db *pgxpool.Pool
}

// New returns an SQL backed trap.Store.
func New(db *pgxpool.Pool) *StoreImpl {
	return &StoreImpl{db: db}
}

// GetPOI implements trap.Store.
func (s *StoreImpl) GetPOI(ctx context.Context, id types.POIID) (*trap.POI, error) {
	var p trap.POI
	err := s.db.QueryRow(ctx, `
		SELECT id, name, role, active
		FROM POIs
		WHERE id=$1`, id).Scan(&p.ID, &p.Name, &p.Role, &p.Active)
	if err == pgx.ErrNoRows {
		return nil, trap.ErrPOINotFound
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "loading poi %d", id)
	}
	return &p, nil
}

// InsertPOI implements trap.Store.
func (s *StoreImpl) InsertPOI(ctx context.Context, p *trap.POI) (types.POIID, error) {
	var id types.POIID
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO
				POIs (name, role, active)
			VALUES
				($1, $2, $3)
			RETURNING id`,
			p.Name, p.Role, p.Active,
		).Scan(&id) // Don't wrap - crdbpgx might retry
	})
	if err != nil {
		return 0, skerr.Wrapf(err, "inserting poi %q", p.Name)
	}
	return id, nil
}

// ListActivePOIs implements trap.Store.
func (s *StoreImpl) ListActivePOIs(ctx context.Context) ([]*trap.POI, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, role, active
		FROM POIs
		WHERE active=TRUE
		ORDER BY id ASC`)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer rows.Close()
	var ret []*trap.POI
	for rows.Next() {
		var p trap.POI
		if err := rows.Scan(&p.ID, &p.Name, &p.Role, &p.Active); err != nil {
			return nil, skerr.Wrap(err)
		}
		ret = append(ret, &p)
	}
	return ret, skerr.Wrap(rows.Err())
}

// AddHit implements trap.Store.
func (s *StoreImpl) AddHit(ctx context.Context, poiID types.POIID, alertID types.AlertID, matchValue, context string) error {
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO
				POIHits (poi_id, alert_id, match_value, context)
			VALUES
				($1, $2, $3, $4)`,
			poiID, alertID, matchValue, context)
		return err // Don't wrap - crdbpgx might retry
	})
	return skerr.Wrapf(err, "adding hit for poi %d alert %d", poiID, alertID)
}

// POIsForAlert implements trap.Store.
func (s *StoreImpl) POIsForAlert(ctx context.Context, alertID types.AlertID) ([]types.POIID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT poi_id
		FROM POIHits
		WHERE alert_id=$1
		ORDER BY poi_id ASC`, alertID)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer rows.Close()
	var ret []types.POIID
	for rows.Next() {
		var id types.POIID
		if err := rows.Scan(&id); err != nil {
			return nil, skerr.Wrap(err)
		}
		ret = append(ret, id)
	}
	return ret, skerr.Wrap(rows.Err())
}

// HitsInWindow implements trap.Store. The alert event time is the parsed
// published_at when valid, else created_at, matching alerts.Alert.EventTime.
func (s *StoreImpl) HitsInWindow(ctx context.Context, id types.POIID, start, end time.Time) ([]*trap.Hit, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ph.alert_id, ph.match_value, ph.context,
			a.title, a.content, a.published_at, a.created_at,
			src.bayesian_alpha, src.bayesian_beta,
			EXISTS(
				SELECT 1 FROM AlertEntities ae
				WHERE ae.alert_id = a.id
					AND ae.entity_type IN ('location', 'GPE', 'LOC')
			) AS has_location
		FROM POIHits ph
		JOIN Alerts a ON a.id = ph.alert_id
		JOIN Sources src ON src.id = a.source_id
		WHERE ph.poi_id=$1
		ORDER BY a.created_at ASC`, id)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer rows.Close()
	var ret []*trap.Hit
	for rows.Next() {
		h := &trap.Hit{POIID: id}
		var publishedAt string
		var createdAt time.Time
		if err := rows.Scan(&h.AlertID, &h.MatchValue, &h.Context, &h.Title,
			&h.Content, &publishedAt, &createdAt, &h.Alpha, &h.Beta,
			&h.HasLocation); err != nil {
			return nil, skerr.Wrap(err)
		}
		// Timestamp parsing is too lenient to express portably in SQL, so
		// the window filter happens here.
		ts, ok := alerts.ParseTimestamp(publishedAt)
		if !ok {
			ts = createdAt.UTC()
		}
		if ts.Before(start) || !ts.Before(end) {
			continue
		}
		h.EventTime = ts
		h.Day = keywords.Day(ts)
		ret = append(ret, h)
	}
	if err := rows.Err(); err != nil {
		return nil, skerr.Wrap(err)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].EventTime.Before(ret[j].EventTime) })
	return ret, nil
}

// UpsertAssessment implements trap.Store.
func (s *StoreImpl) UpsertAssessment(ctx context.Context, a *trap.Assessment) error {
	evidence, err := json.Marshal(a.Evidence)
	if err != nil {
		return skerr.Wrap(err)
	}
	err = crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO
				POIAssessments (poi_id, window_start, window_end, fixation,
					energy_burst, leakage, pathway, targeting_specificity,
					tas_score, evidence, created_at)
			VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (poi_id, window_start, window_end) DO UPDATE
			SET fixation=EXCLUDED.fixation, energy_burst=EXCLUDED.energy_burst,
				leakage=EXCLUDED.leakage, pathway=EXCLUDED.pathway,
				targeting_specificity=EXCLUDED.targeting_specificity,
				tas_score=EXCLUDED.tas_score, evidence=EXCLUDED.evidence,
				created_at=EXCLUDED.created_at`,
			a.POIID, a.WindowStart, a.WindowEnd, a.Fixation, a.EnergyBurst,
			a.Leakage, a.Pathway, a.TargetingSpecificity, a.TASScore,
			evidence, a.CreatedAt)
		return err // Don't wrap - crdbpgx might retry
	})
	return skerr.Wrapf(err, "upserting assessment for poi %d", a.POIID)
}

// LatestAssessment implements trap.Store.
func (s *StoreImpl) LatestAssessment(ctx context.Context, id types.POIID) (*trap.Assessment, error) {
	var a trap.Assessment
	var evidence []byte
	err := s.db.QueryRow(ctx, `
		SELECT poi_id, window_start, window_end, fixation, energy_burst,
			leakage, pathway, targeting_specificity, tas_score, evidence,
			created_at
		FROM POIAssessments
		WHERE poi_id=$1
		ORDER BY created_at DESC
		LIMIT 1`, id).Scan(&a.POIID, &a.WindowStart, &a.WindowEnd, &a.Fixation,
		&a.EnergyBurst, &a.Leakage, &a.Pathway, &a.TargetingSpecificity,
		&a.TASScore, &evidence, &a.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "loading latest assessment for poi %d", id)
	}
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &a.Evidence); err != nil {
			return nil, skerr.Wrapf(err, "decoding evidence for poi %d", id)
		}
	}
	return &a, nil
}

// Confirm StoreImpl implements trap.Store.
var _ trap.Store = (*StoreImpl)(nil)
