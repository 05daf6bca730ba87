// Package sqlscorestore implements scores.Store on an SQL database backend.
package sqlscorestore

import (
	"context"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/scores"
	"github.com/argussec/argus/go/types"
)

const auditColumns = `
	alert_id, keyword_weight, source_credibility, frequency_factor, z_score,
	recency_factor, final_score, mc_mean, mc_p05, mc_p50, mc_p95, mc_std,
	computed_at`

// StoreImpl implements scores.Store.
type StoreImpl struct {
	db *pgxpool.Pool
}

// New returns an SQL backed scores.Store.
func New(db *pgxpool.Pool) *StoreImpl {
	return &StoreImpl{db: db}
}

// AppendAudit implements scores.Store.
func (s *StoreImpl) AppendAudit(ctx context.Context, rec *scores.AuditRecord) error {
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO
				ScoreAudits (alert_id, keyword_weight, source_credibility,
					frequency_factor, z_score, recency_factor, final_score,
					mc_mean, mc_p05, mc_p50, mc_p95, mc_std, computed_at)
			VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			rec.AlertID, rec.KeywordWeight, rec.SourceCredibility,
			rec.FrequencyFactor, rec.ZScore, rec.RecencyFactor, rec.FinalScore,
			rec.MCMean, rec.MCP05, rec.MCP50, rec.MCP95, rec.MCStd, rec.ComputedAt)
		return err // Don't wrap - crdbpgx might retry
	})
	return skerr.Wrapf(err, "appending audit for alert %d", rec.AlertID)
}

func scanAudit(row pgx.Row) (*scores.AuditRecord, error) {
	var rec scores.AuditRecord
	if err := row.Scan(&rec.AlertID, &rec.KeywordWeight, &rec.SourceCredibility,
		&rec.FrequencyFactor, &rec.ZScore, &rec.RecencyFactor, &rec.FinalScore,
		&rec.MCMean, &rec.MCP05, &rec.MCP50, &rec.MCP95, &rec.MCStd,
		&rec.ComputedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// LatestAudit implements scores.Store.
func (s *StoreImpl) LatestAudit(ctx context.Context, id types.AlertID) (*scores.AuditRecord, error) {
	rec, err := scanAudit(s.db.QueryRow(ctx, `
		SELECT`+auditColumns+`
		FROM ScoreAudits
		WHERE alert_id=$1
		ORDER BY computed_at DESC, id DESC
		LIMIT 1`, id))
	if err == pgx.ErrNoRows {
		return nil, scores.ErrNoAudit
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "loading latest audit for alert %d", id)
	}
	return rec, nil
}

// AuditHistory implements scores.Store.
func (s *StoreImpl) AuditHistory(ctx context.Context, id types.AlertID, limit int) ([]*scores.AuditRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+auditColumns+`
		FROM ScoreAudits
		WHERE alert_id=$1
		ORDER BY computed_at DESC, id DESC
		LIMIT $2`, id, limit)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer rows.Close()
	var ret []*scores.AuditRecord
	for rows.Next() {
		rec, err := scanAudit(rows)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		ret = append(ret, rec)
	}
	return ret, skerr.Wrap(rows.Err())
}

// GetInterval implements scores.Store.
func (s *StoreImpl) GetInterval(ctx context.Context, id types.AlertID) (*scores.Interval, error) {
	var in scores.Interval
	err := s.db.QueryRow(ctx, `
		SELECT alert_id, n, p05, p50, p95, mean, std, method, computed_at
		FROM ScoreIntervals
		WHERE alert_id=$1`, id).Scan(&in.AlertID, &in.N, &in.P05, &in.P50,
		&in.P95, &in.Mean, &in.Std, &in.Method, &in.ComputedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "loading interval for alert %d", id)
	}
	return &in, nil
}

// UpsertInterval implements scores.Store.
func (s *StoreImpl) UpsertInterval(ctx context.Context, in *scores.Interval) error {
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO
				ScoreIntervals (alert_id, n, p05, p50, p95, mean, std, method, computed_at)
			VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (alert_id) DO UPDATE
			SET n=EXCLUDED.n, p05=EXCLUDED.p05, p50=EXCLUDED.p50,
				p95=EXCLUDED.p95, mean=EXCLUDED.mean, std=EXCLUDED.std,
				method=EXCLUDED.method, computed_at=EXCLUDED.computed_at`,
			in.AlertID, in.N, in.P05, in.P50, in.P95, in.Mean, in.Std,
			in.Method, in.ComputedAt)
		return err // Don't wrap - crdbpgx might retry
	})
	return skerr.Wrapf(err, "upserting interval for alert %d", in.AlertID)
}

// Confirm StoreImpl implements scores.Store.
var _ scores.Store = (*StoreImpl)(nil)
