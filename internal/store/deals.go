package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"vcscout/internal/domain"
	"vcscout/internal/ports"
)

// DealRepo persists funding rounds keyed on their idempotency hash.
type DealRepo struct {
	db *sql.DB
}

var _ ports.DealRepository = (*DealRepo)(nil)

// NewDealRepo wires a sql.DB implementation.
func NewDealRepo(db *sql.DB) *DealRepo {
	return &DealRepo{db: db}
}

// Insert stores the deal unless its uniq_hash already exists. Re-ingesting
// the same feed record is a no-op, reported as (false, nil).
func (r *DealRepo) Insert(ctx context.Context, deal domain.Deal) (bool, error) {
	var inserted bool

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		exists, err := dealHashExists(ctx, tx, deal.UniqHash)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		investors, err := marshalJSON(orEmptySlice(deal.Investors))
		if err != nil {
			return err
		}
		source, err := marshalJSON(deal.Source)
		if err != nil {
			return err
		}

		var announced any
		if deal.AnnouncedOn != nil {
			announced = *deal.AnnouncedOn
		}

		query, args, err := psql.Insert("deals").
			Columns("id", "org_id", "round", "amount_eur", "amount_original",
				"currency_original", "announced_on", "investors", "source", "uniq_hash").
			Values(uuid.New().String(), deal.OrgID.String(), nullable(deal.Round),
				deal.AmountEUR, deal.AmountOriginal, nullable(deal.CurrencyOriginal),
				announced, investors, source, deal.UniqHash).
			ToSql()
		if err != nil {
			return fmt.Errorf("build deal insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				// Concurrent ingestion of the same feed record.
				return errRaceLost
			}
			return fmt.Errorf("insert deal: %w", err)
		}

		inserted = true
		return nil
	})
	if err == errRaceLost {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func dealHashExists(ctx context.Context, tx *sql.Tx, uniqHash string) (bool, error) {
	query, args, err := psql.Select("1").From("deals").Where(sq.Eq{"uniq_hash": uniqHash}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build deal lookup: %w", err)
	}

	var one int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("lookup deal hash: %w", err)
	}
	return true, nil
}
