// Package sqlkeywordstore implements keywords.Store on an SQL database
// backend. Frequency increments use a transactional upsert so concurrent
// ingestion of the same (keyword, day) never loses counts.
package sqlkeywordstore

import (
	"context"

	"github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgx"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.skia.org/infra/go/skerr"

	"github.com/argussec/argus/go/keywords"
	"github.com/argussec/argus/go/types"
)

const keywordColumns = `id, term, category, weight, weight_sigma, active`

// StoreImpl implements keywords.Store.
type StoreImpl struct {
	db *pgxpool.Pool
}

// New returns an SQL backed keywords.Store.
func New(db *pgxpool.Pool) *StoreImpl {
	return &StoreImpl{db: db}
}

func scanKeyword(row pgx.Row) (*keywords.Keyword, error) {
	var k keywords.Keyword
	if err := row.Scan(&k.ID, &k.Term, &k.Category, &k.Weight, &k.WeightSigma, &k.Active); err != nil {
		return nil, err
	}
	return &k, nil
}

// Get implements keywords.Store.
func (s *StoreImpl) Get(ctx context.Context, id types.KeywordID) (*keywords.Keyword, error) {
	k, err := scanKeyword(s.db.QueryRow(ctx, `
		SELECT `+keywordColumns+`
		FROM Keywords
		WHERE id=$1`, id))
	if err == pgx.ErrNoRows {
		return nil, keywords.ErrNotFound
	}
	if err != nil {
		return nil, skerr.Wrapf(err, "loading keyword %d", id)
	}
	return k, nil
}

// Insert implements keywords.Store.
func (s *StoreImpl) Insert(ctx context.Context, k *keywords.Keyword) (types.KeywordID, error) {
	var id types.KeywordID
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO
				Keywords (term, category, weight, weight_sigma, active)
			VALUES
				($1, $2, $3, $4, $5)
			RETURNING id`,
			k.Term, k.Category, k.Weight, k.WeightSigma, k.Active,
		).Scan(&id) // Don't wrap - crdbpgx might retry
	})
	if err != nil {
		return 0, skerr.Wrapf(err, "inserting keyword %q", k.Term)
	}
	return id, nil
}

// ListActive implements keywords.Store.
func (s *StoreImpl) ListActive(ctx context.Context) ([]*keywords.Keyword, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+keywordColumns+`
		FROM Keywords
		WHERE active=TRUE
		ORDER BY id ASC`)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer rows.Close()
	var ret []*keywords.Keyword
	for rows.Next() {
		k, err := scanKeyword(rows)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		ret = append(ret, k)
	}
	return ret, skerr.Wrap(rows.Err())
}

// IncrementFrequency implements keywords.Store.
func (s *StoreImpl) IncrementFrequency(ctx context.Context, id types.KeywordID, day string, by int) error {
	if by <= 0 {
		return nil
	}
	err := crdbpgx.ExecuteTx(ctx, s.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO
				KeywordFrequency (keyword_id, day, count)
			VALUES
				($1, $2, $3)
			ON CONFLICT (keyword_id, day) DO UPDATE
			SET count = KeywordFrequency.count + EXCLUDED.count`,
			id, day, by)
		return err // Don't wrap - crdbpgx might retry
	})
	return skerr.Wrapf(err, "incrementing frequency of keyword %d on %s", id, day)
}

// FrequencyOn implements keywords.Store.
func (s *StoreImpl) FrequencyOn(ctx context.Context, id types.KeywordID, day string) (int, error) {
	count := 0
	err := s.db.QueryRow(ctx, `
		SELECT count
		FROM KeywordFrequency
		WHERE keyword_id=$1 AND day=$2`, id, day).Scan(&count)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, skerr.Wrapf(err, "reading frequency of keyword %d on %s", id, day)
	}
	return count, nil
}

// FrequencyBetween implements keywords.Store.
func (s *StoreImpl) FrequencyBetween(ctx context.Context, id types.KeywordID, from, to string) ([]keywords.DayCount, error) {
	rows, err := s.db.Query(ctx, `
		SELECT day, count
		FROM KeywordFrequency
		WHERE keyword_id=$1 AND day >= $2 AND day < $3
		ORDER BY day ASC`, id, from, to)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	defer rows.Close()
	var ret []keywords.DayCount
	for rows.Next() {
		var dc keywords.DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, skerr.Wrap(err)
		}
		ret = append(ret, dc)
	}
	return ret, skerr.Wrap(rows.Err())
}

// Confirm StoreImpl implements keywords.Store.
var _ keywords.Store = (*StoreImpl)(nil)
