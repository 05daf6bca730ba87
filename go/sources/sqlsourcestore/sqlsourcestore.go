// Package sqlsourcestore implements sources.Store on an SQL database backend.
//
// RecordOutcome runs as a single transaction so concurrent outcome updates
// for the same source serialize instead of losing counts.
package sqlsourcestore

import (
	"context"
	"math"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/sources"
	"github.com/argussec/argus/go/types"
)

const sourceColumns = `
	id, name, source_type, url, credibility_score, bayesian_alpha,
	bayesian_beta, true_positives, false_positives, fail_streak, active`

// StoreImpl implements sources.Store.
type StoreImpl struct {
	db *pgxpool.Pool
}

// New returns an SQL backed sources.Store.
func New(db *pgxpool.Pool) *StoreImpl {
	return &StoreImpl{db: db}
}

func scanSource(row pgx.Row) (*sources.Source, error) {
	var s sources.Source
	if err := row.Scan(&s.ID, &s.Name, &s.Type, &s.URL, &s.CredibilityScore,
		&s.BayesianAlpha, &s.BayesianBeta, &s.TruePositives, &s.FalsePositives,
		&s.FailStreak, &s.Active); err != nil {
		return nil, err
	}
	return &s, nil
}

// Get implements sources.Store.
func (s *StoreImpl) Get(ctx context.Context, id types.SourceID) (*sources.Source, error) {
	src, err := scanSource(s.db.QueryRow(ctx, `
		SELECT`+sourceColumns+`
		FROM Sources
		WHERE id=$1`, id))
	if err == pgx.ErrNoRows {
		return nil, sources.ErrNotFound
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "loading source %d", id)
	}
	return src, nil
}

// Insert implements sources.Store.
func (s *StoreImpl) Insert(ctx context.Context, src *sources.Source) (types.SourceID, error) {
	alpha := src.BayesianAlpha
	if alpha <= 0 {
		alpha = sources.DefaultAlpha
	}
	beta := src.BayesianBeta
	if beta <= 0 {
		beta = sources.DefaultBeta
	}
	var id types.SourceID
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO
				Sources (name, source_type, url, credibility_score,
					bayesian_alpha, bayesian_beta, true_positives,
					false_positives, fail_streak, active)
			VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			src.Name, src.Type, src.URL, src.CredibilityScore, alpha, beta,
			src.TruePositives, src.FalsePositives, src.FailStreak, src.Active,
		).Scan(&id) // Don't wrap - crdbpgx might retry
	})
	if err != nil {
		return 0, skerr.Wrapf(err, "inserting source %q", src.Name)
	}
	return id, nil
}

// List implements sources.Store.
func (s *StoreImpl) List(ctx context.Context) ([]*sources.Source, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+sourceColumns+`
		FROM Sources
		ORDER BY id ASC`)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer rows.Close()
	var ret []*sources.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		ret = append(ret, src)
	}
	return ret, skerr.Wrap(rows.Err())
}

// RecordOutcome implements sources.Store.
func (s *StoreImpl) RecordOutcome(ctx context.Context, id types.SourceID, isTruePositive bool) (*sources.Source, error) {
	var ret *sources.Source
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		src, err := scanSource(tx.QueryRow(ctx, `
			SELECT`+sourceColumns+`
			FROM Sources
			WHERE id=$1
			FOR UPDATE`, id))
		if err != nil {
			return err // Don't wrap - crdbpgx might retry
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
		src.CredibilityScore = math.Round(alpha/(alpha+beta)*10000) / 10000
		if _, err := tx.Exec(ctx, `
			UPDATE Sources
			SET credibility_score=$2, bayesian_alpha=$3, bayesian_beta=$4,
				true_positives=$5, false_positives=$6
			WHERE id=$1`,
			id, src.CredibilityScore, alpha, beta, src.TruePositives, src.FalsePositives,
		); err != nil {
			return err // Don't wrap - crdbpgx might retry
		}
		ret = src
		return nil
	})
	if err == pgx.ErrNoRows {
		return nil, sources.ErrNotFound
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "recording outcome for source %d", id)
	}
	return ret, nil
}

// Confirm StoreImpl implements sources.Store.
var _ sources.Store = (*StoreImpl)(nil)
