// Package sqlpathwaystore implements pathway.Store on an SQL database
// backend. Indicator blocks and source alert id lists are stored as JSONB.
package sqlpathwaystore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/pathway"
	"github.com/argussec/argus/go/types"
)

// StoreImpl implements pathway.Store.
type StoreImpl struct {
	db *pgxpool.Pool
}

// New returns an SQL backed pathway.Store.
func New(db *pgxpool.Pool) *StoreImpl {
	return &StoreImpl{db: db}
}

// GetSubject implements pathway.Store.
func (s *StoreImpl) GetSubject(ctx context.Context, id types.SubjectID) (*pathway.Subject, error) {
	var sub pathway.Subject
	var lastSeen *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT id, name, risk_tier, last_seen, status
		FROM ThreatSubjects
		WHERE id=$1`, id).Scan(&sub.ID, &sub.Name, &sub.RiskTier, &lastSeen, &sub.Status)
	if err == pgx.ErrNoRows {
		return nil, pathway.ErrSubjectNotFound
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "loading subject %d", id)
	}
	if lastSeen != nil {
		sub.LastSeen = *lastSeen
	}
	return &sub, nil
}

// InsertSubject implements pathway.Store.
func (s *StoreImpl) InsertSubject(ctx context.Context, sub *pathway.Subject) (types.SubjectID, error) {
	var id types.SubjectID
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO
				ThreatSubjects (name, risk_tier, last_seen, status)
			VALUES
				($1, $2, $3, $4)
			RETURNING id`,
			sub.Name, string(sub.RiskTier), sub.LastSeen, sub.Status,
		).Scan(&id) // Don't wrap - crdbpgx might retry
	})
	if err != nil {
		return 0, skerr.Wrapf(err, "inserting subject %q", sub.Name)
	}
	return id, nil
}

// UpsertAssessment implements pathway.Store.
func (s *StoreImpl) UpsertAssessment(ctx context.Context, a *pathway.Assessment) error {
	indicators, err := json.Marshal(a.Indicators)
	if err != nil {
		return skerr.Wrap(err)
	}
	sourceIDs, err := json.Marshal(a.SourceAlertIDs)
	if err != nil {
		return skerr.Wrap(err)
	}
	err = crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO
				BehavioralAssessments (subject_id, day, indicators,
					pathway_score, escalation_trend, evidence_summary,
					source_alert_ids, analyst_notes)
			VALUES
				($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (subject_id, day) DO UPDATE
			SET indicators=EXCLUDED.indicators,
				pathway_score=EXCLUDED.pathway_score,
				escalation_trend=EXCLUDED.escalation_trend,
				evidence_summary=EXCLUDED.evidence_summary,
				source_alert_ids=EXCLUDED.source_alert_ids,
				analyst_notes=EXCLUDED.analyst_notes`,
			a.SubjectID, a.Date, indicators, a.PathwayScore,
			string(a.EscalationTrend), a.EvidenceSummary, sourceIDs, a.AnalystNotes)
		return err // Don't wrap - crdbpgx might retry
	})
	return skerr.Wrapf(err, "upserting assessment for subject %d on %s", a.SubjectID, a.Date)
}

// RecentScores implements pathway.Store.
func (s *StoreImpl) RecentScores(ctx context.Context, id types.SubjectID, sinceDay string, limit int) ([]float64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT pathway_score
		FROM BehavioralAssessments
		WHERE subject_id=$1 AND day >= $2
		ORDER BY day DESC
		LIMIT $3`, id, sinceDay, limit)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer rows.Close()
	var ret []float64
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, skerr.Wrap(err)
		}
		ret = append(ret, score)
	}
	return ret, skerr.Wrap(rows.Err())
}

// History implements pathway.Store.
func (s *StoreImpl) History(ctx context.Context, id types.SubjectID, limit int) ([]*pathway.Assessment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT subject_id, day, indicators, pathway_score, escalation_trend,
			evidence_summary, source_alert_ids, analyst_notes
		FROM BehavioralAssessments
		WHERE subject_id=$1
		ORDER BY day DESC
		LIMIT $2`, id, limit)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer rows.Close()
	var ret []*pathway.Assessment
	for rows.Next() {
		var a pathway.Assessment
		var indicators, sourceIDs []byte
		if err := rows.Scan(&a.SubjectID, &a.Date, &indicators, &a.PathwayScore,
			&a.EscalationTrend, &a.EvidenceSummary, &sourceIDs, &a.AnalystNotes); err != nil {
			return nil, skerr.Wrap(err)
		}
		if err := json.Unmarshal(indicators, &a.Indicators); err != nil {
			return nil, skerr.Wrapf(err, "decoding indicators for subject %d on %s", id, a.Date)
		}
		if len(sourceIDs) > 0 {
			if err := json.Unmarshal(sourceIDs, &a.SourceAlertIDs); err != nil {
				return nil, skerr.Wrapf(err, "decoding source alert ids for subject %d on %s", id, a.Date)
			}
		}
		ret = append(ret, &a)
	}
	return ret, skerr.Wrap(rows.Err())
}

// UpdateSubjectState implements pathway.Store.
func (s *StoreImpl) UpdateSubjectState(ctx context.Context, id types.SubjectID, tier types.RiskTier, lastSeen time.Time, status string) error {
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE ThreatSubjects
			SET risk_tier=$2, last_seen=$3, status=$4
			WHERE id=$1`, id, string(tier), lastSeen, status)
		return err // Don't wrap - crdbpgx might retry
	})
	return skerr.Wrapf(err, "updating state of subject %d", id)
}

// ActiveSubjects implements pathway.Store.
func (s *StoreImpl) ActiveSubjects(ctx context.Context, minScore float64) ([]*pathway.Subject, error) {
	rows, err := s.db.Query(ctx, `
		SELECT ts.id, ts.name, ts.risk_tier, ts.last_seen, ts.status
		FROM ThreatSubjects ts
		JOIN (
			SELECT DISTINCT ON (subject_id) subject_id, pathway_score
			FROM BehavioralAssessments
			ORDER BY subject_id, day DESC
		) latest ON latest.subject_id = ts.id
		WHERE ts.status='active' AND latest.pathway_score >= $1
		ORDER BY latest.pathway_score DESC`, minScore)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer rows.Close()
	var ret []*pathway.Subject
	for rows.Next() {
		var sub pathway.Subject
		var lastSeen *time.Time
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.RiskTier, &lastSeen, &sub.Status); err != nil {
			return nil, skerr.Wrap(err)
		}
		if lastSeen != nil {
			sub.LastSeen = *lastSeen
		}
		ret = append(ret, &sub)
	}
	return ret, skerr.Wrap(rows.Err())
}

// Confirm StoreImpl implements pathway.Store.
var _ pathway.Store = (*StoreImpl)(nil)
