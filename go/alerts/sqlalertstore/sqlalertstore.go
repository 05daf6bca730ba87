// Package sqlalertstore implements alerts.Store on an SQL database backend.
package sqlalertstore

import (
	"context"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/alerts"
	"github.com/argussec/argus/go/types"
)

// statement is an SQL statement identifier.
type statement int

const (
	getAlert statement = iota
	insertAlert
	findByURL
	findByContentHash
	updateScore
	updateTAS
	setReviewed
	listUnreviewed
	listNonDuplicates
	countReviewedBySource
	insertEntity
)

const alertColumns = `
	id, source_id, keyword_id, title, content, url, matched_term,
	published_at, created_at, content_hash, duplicate_of, risk_score,
	severity, tas_score, reviewed`

var statements = map[statement]string{
	getAlert: `
		SELECT` + alertColumns + `
		FROM Alerts
		WHERE id=$1`,
	insertAlert: `
		INSERT INTO
			Alerts (source_id, keyword_id, title, content, url, matched_term,
				published_at, created_at, content_hash, duplicate_of,
				risk_score, severity, tas_score, reviewed)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
	findByURL: `
		SELECT id
		FROM Alerts
		WHERE url=$1
		ORDER BY id ASC
		LIMIT 1`,
	findByContentHash: `
		SELECT id
		FROM Alerts
		WHERE content_hash=$1 AND duplicate_of=0
		ORDER BY id ASC
		LIMIT 1`,
	updateScore: `
		UPDATE Alerts
		SET risk_score=$2, severity=$3
		WHERE id=$1`,
	updateTAS: `
		UPDATE Alerts
		SET tas_score=$2
		WHERE id=$1`,
	setReviewed: `
		UPDATE Alerts
		SET reviewed=$2
		WHERE id=$1`,
	listUnreviewed: `
		SELECT` + alertColumns + `
		FROM Alerts
		WHERE reviewed=FALSE AND duplicate_of=0
		ORDER BY id ASC`,
	listNonDuplicates: `
		SELECT` + alertColumns + `
		FROM Alerts
		WHERE duplicate_of=0
		ORDER BY id ASC`,
	countReviewedBySource: `
		SELECT COUNT(*)
		FROM Alerts
		WHERE source_id=$1 AND reviewed=TRUE`,
	insertEntity: `
		INSERT INTO
			AlertEntities (alert_id, entity_type, entity_value)
		VALUES
			($1, $2, $3)
		ON CONFLICT (alert_id, entity_type, entity_value) DO NOTHING`,
}

// StoreImpl implements alerts.Store.
type StoreImpl struct {
	db *pgxpool.Pool
}

// New returns an SQL backed alerts.Store.
func New(db *pgxpool.Pool) *StoreImpl {
	return &StoreImpl{db: db}
}

func scanAlert(row pgx.Row) (*alerts.Alert, error) {
	var a alerts.Alert
	if err := row.Scan(&a.ID, &a.SourceID, &a.KeywordID, &a.Title, &a.Content,
		&a.URL, &a.MatchedTerm, &a.PublishedAt, &a.CreatedAt, &a.ContentHash,
		&a.DuplicateOf, &a.RiskScore, &a.Severity, &a.TASScore, &a.Reviewed); err != nil {
		return nil, err
	}
	return &a, nil
}

// Get implements alerts.Store.
func (s *StoreImpl) Get(ctx context.Context, id types.AlertID) (*alerts.Alert, error) {
	a, err := scanAlert(s.db.QueryRow(ctx, statements[getAlert], id))
	if err == pgx.ErrNoRows {
		return nil, alerts.ErrNotFound
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "loading alert %d", id)
	}
	return a, nil
}

// Insert implements alerts.Store.
func (s *StoreImpl) Insert(ctx context.Context, a *alerts.Alert) (types.AlertID, error) {
	id := types.BadAlertID
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, statements[insertAlert],
			a.SourceID, a.KeywordID, a.Title, a.Content, a.URL, a.MatchedTerm,
			a.PublishedAt, a.CreatedAt, a.ContentHash, a.DuplicateOf,
			a.RiskScore, string(a.Severity), a.TASScore, a.Reviewed,
		).Scan(&id) // Don't wrap - crdbpgx might retry
	})
	if err != nil {
		return types.BadAlertID, skerr.Wrapf(err, "inserting alert %q", a.Title)
	}
	return id, nil
}

func (s *StoreImpl) findID(ctx context.Context, stmt statement, arg string) (types.AlertID, error) {
	id := types.BadAlertID
	err := s.db.QueryRow(ctx, statements[stmt], arg).Scan(&id)
	if err == pgx.ErrNoRows {
		return types.BadAlertID, nil
	}
	if err != nil {
		return types.BadAlertID, skerr.Wrap(err)
	}
	return id, nil
}

// FindByURL implements alerts.Store.
func (s *StoreImpl) FindByURL(ctx context.Context, url string) (types.AlertID, error) {
	if url == "" {
		return types.BadAlertID, nil
	}
	return s.findID(ctx, findByURL, url)
}

// FindByContentHash implements alerts.Store.
func (s *StoreImpl) FindByContentHash(ctx context.Context, hash string) (types.AlertID, error) {
	return s.findID(ctx, findByContentHash, hash)
}

// UpdateScore implements alerts.Store.
func (s *StoreImpl) UpdateScore(ctx context.Context, id types.AlertID, score float64, severity types.Severity) error {
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, statements[updateScore], id, score, string(severity))
		return err // Don't wrap - crdbpgx might retry
	})
	return skerr.Wrapf(err, "updating score of alert %d", id)
}

// UpdateTAS implements alerts.Store.
func (s *StoreImpl) UpdateTAS(ctx context.Context, id types.AlertID, tas float64) error {
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, statements[updateTAS], id, tas)
		return err // Don't wrap - crdbpgx might retry
	})
	return skerr.Wrapf(err, "updating tas of alert %d", id)
}

// SetReviewed implements alerts.Store.
func (s *StoreImpl) SetReviewed(ctx context.Context, id types.AlertID, reviewed bool) error {
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, statements[setReviewed], id, reviewed)
		return err // Don't wrap - crdbpgx might retry
	})
	return skerr.Wrapf(err, "marking alert %d reviewed=%v", id, reviewed)
}

func (s *StoreImpl) listAlerts(ctx context.Context, stmt statement, args ...interface{}) ([]*alerts.Alert, error) {
	rows, err := s.db.Query(ctx, statements[stmt], args...)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer rows.Close()
	var ret []*alerts.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		ret = append(ret, a)
	}
	return ret, skerr.Wrap(rows.Err())
}

// ListUnreviewed implements alerts.Store.
func (s *StoreImpl) ListUnreviewed(ctx context.Context) ([]*alerts.Alert, error) {
	return s.listAlerts(ctx, listUnreviewed)
}

// ListSince implements alerts.Store.
//
// The cutoff applies to event time, which prefers the leniently parsed
// published_at over created_at (see alerts.ParseTimestamp), so the filter
// runs in Go over the non-duplicate rows rather than in the query.
func (s *StoreImpl) ListSince(ctx context.Context, cutoff time.Time) ([]*alerts.Alert, error) {
	all, err := s.listAlerts(ctx, listNonDuplicates)
	if err != nil {
		return nil, err
	}
	return alerts.Since(all, cutoff), nil
}

// CountReviewedBySource implements alerts.Store.
func (s *StoreImpl) CountReviewedBySource(ctx context.Context, id types.SourceID) (int, error) {
	count := 0
	if err := s.db.QueryRow(ctx, statements[countReviewedBySource], id).Scan(&count); err != nil {
		return 0, skerr.Wrapf(err, "counting reviewed alerts for source %d", id)
	}
	return count, nil
}

// AddEntities implements alerts.Store.
func (s *StoreImpl) AddEntities(ctx context.Context, id types.AlertID, entities []alerts.Entity) error {
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, e := range entities {
			if _, err := tx.Exec(ctx, statements[insertEntity], id, e.Type, e.Value); err != nil {
				return err // Don't wrap - crdbpgx might retry
			}
		}
		return nil
	})
	return skerr.Wrapf(err, "adding %d entities to alert %d", len(entities), id)
}

// Entities implements alerts.Store.
func (s *StoreImpl) Entities(ctx context.Context, ids []types.AlertID) (map[types.AlertID][]alerts.Entity, error) {
	ret := map[types.AlertID][]alerts.Entity{}
	if len(ids) == 0 {
		return ret, nil
	}
	// pgx encodes []int64, not our id type.
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	rows, err := s.db.Query(ctx, `
		SELECT alert_id, entity_type, entity_value
		FROM AlertEntities
		WHERE alert_id = ANY($1)
		ORDER BY alert_id, entity_type, entity_value`, raw)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer rows.Close()
	for rows.Next() {
		var e alerts.Entity
		if err := rows.Scan(&e.AlertID, &e.Type, &e.Value); err != nil {
			return nil, skerr.Wrap(err)
		}
		ret[e.AlertID] = append(ret[e.AlertID], e)
	}
	return ret, skerr.Wrap(rows.Err())
}

// Confirm StoreImpl implements alerts.Store.
var _ alerts.Store = (*StoreImpl)(nil)
