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

// RoleRepo persists employment links, unique on (person, org, title, is_current).
type RoleRepo struct {
	db *sql.DB
}

var _ ports.RoleRepository = (*RoleRepo)(nil)

// NewRoleRepo wires a sql.DB implementation.
func NewRoleRepo(db *sql.DB) *RoleRepo {
	return &RoleRepo{db: db}
}

// Upsert stores the role unless an identical one exists. Re-extracting an
// unchanged role is a no-op, reported as (false, nil) with no error surfaced.
func (r *RoleRepo) Upsert(ctx context.Context, role domain.RoleEmployment) (bool, error) {
	var inserted bool

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		query, args, err := psql.Select("1").From("roles_employment").
			Where(sq.Eq{
				"person_id":  role.PersonID.String(),
				"org_id":     role.OrgID.String(),
				"title":      role.Title,
				"is_current": role.IsCurrent,
			}).ToSql()
		if err != nil {
			return fmt.Errorf("build role lookup: %w", err)
		}

		var one int
		err = tx.QueryRowContext(ctx, query, args...).Scan(&one)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("lookup role: %w", err)
		}

		query, args, err = psql.Insert("roles_employment").
			Columns("id", "person_id", "org_id", "title", "is_current").
			Values(uuid.New().String(), role.PersonID.String(), role.OrgID.String(),
				role.Title, role.IsCurrent).
			ToSql()
		if err != nil {
			return fmt.Errorf("build role insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return errRaceLost
			}
			return fmt.Errorf("insert role: %w", err)
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
