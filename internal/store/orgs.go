package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"vcscout/internal/domain"
	"vcscout/internal/ports"
)

// OrgRepo persists organizations keyed on their deduplication hash.
type OrgRepo struct {
	db *sql.DB
}

var _ ports.OrgRepository = (*OrgRepo)(nil)

// NewOrgRepo wires a sql.DB implementation.
func NewOrgRepo(db *sql.DB) *OrgRepo {
	return &OrgRepo{db: db}
}

// Upsert creates the organization or appends provenance to the row holding
// the same uniq_key. A unique violation on insert means a concurrent writer
// created the row first; the call falls back to the update path. The retry
// runs in a fresh transaction: the violation leaves the insert's transaction
// aborted, and Postgres rejects everything after that point with 25P02.
func (r *OrgRepo) Upsert(ctx context.Context, org domain.Organization) (uuid.UUID, bool, error) {
	id, err := r.mergeByKey(ctx, org)
	if err == nil {
		return id, false, nil
	}
	if err != ErrNotFound {
		return uuid.Nil, false, err
	}

	id, err = r.insert(ctx, org)
	if err == nil {
		return id, true, nil
	}
	if !isUniqueViolation(err) {
		return uuid.Nil, false, err
	}

	// Lost the race: the row exists now, merge into it instead.
	id, err = r.mergeByKey(ctx, org)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("recover from unique violation: %w", err)
	}
	return id, false, nil
}

func (r *OrgRepo) mergeByKey(ctx context.Context, org domain.Organization) (uuid.UUID, error) {
	var id uuid.UUID
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		existing, err := findOrgIDByKey(ctx, tx, org.UniqKey)
		if err != nil {
			return err
		}
		id = existing
		return appendOrgProvenance(ctx, tx, existing, org)
	})
	return id, err
}

func (r *OrgRepo) insert(ctx context.Context, org domain.Organization) (uuid.UUID, error) {
	var id uuid.UUID
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		newID, err := insertOrg(ctx, tx, org)
		if err != nil {
			return err
		}
		id = newID
		return nil
	})
	return id, err
}

func findOrgIDByKey(ctx context.Context, tx *sql.Tx, uniqKey string) (uuid.UUID, error) {
	query, args, err := psql.Select("id").From("orgs").Where(sq.Eq{"uniq_key": uniqKey}).ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("build org lookup: %w", err)
	}

	var raw string
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("lookup org by key: %w", err)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse org id: %w", err)
	}
	return id, nil
}

func insertOrg(ctx context.Context, tx *sql.Tx, org domain.Organization) (uuid.UUID, error) {
	id := uuid.New()

	focus, err := marshalJSON(orEmptySlice(org.Focus))
	if err != nil {
		return uuid.Nil, err
	}
	socials, err := marshalJSON(orEmptyMap(org.Socials))
	if err != nil {
		return uuid.Nil, err
	}
	sources, err := marshalJSON(orEmptySources(org.Sources))
	if err != nil {
		return uuid.Nil, err
	}

	query, args, err := psql.Insert("orgs").
		Columns("id", "name", "kind", "website", "description", "focus", "socials", "sources", "uniq_key").
		Values(id.String(), org.Name, string(org.Kind), nullable(org.Website), nullable(org.Description), focus, socials, sources, org.UniqKey).
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("build org insert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func appendOrgProvenance(ctx context.Context, tx *sql.Tx, id uuid.UUID, org domain.Organization) error {
	builder := psql.Update("orgs").
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id.String()})

	if len(org.Sources) > 0 {
		raw, err := marshalJSON(org.Sources)
		if err != nil {
			return err
		}
		builder = builder.Set("sources", sq.Expr("sources || ?::jsonb", raw))
	}

	if len(org.Focus) > 0 {
		raw, err := marshalJSON(org.Focus)
		if err != nil {
			return err
		}
		builder = builder.Set("focus", raw)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build org update: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update org: %w", err)
	}
	return nil
}

// ByID loads one organization with its provenance log.
func (r *OrgRepo) ByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	query, args, err := psql.Select(
		"id", "name", "kind", "COALESCE(website, '')", "COALESCE(description, '')",
		"focus", "socials", "sources", "COALESCE(uniq_key, '')", "created_at", "updated_at",
	).From("orgs").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build org select: %w", err)
	}

	var (
		org     domain.Organization
		rawID   string
		kind    string
		focus   []byte
		socials []byte
		sources []byte
	)
	row := r.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&rawID, &org.Name, &kind, &org.Website, &org.Description,
		&focus, &socials, &sources, &org.UniqKey, &org.CreatedAt, &org.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan org: %w", err)
	}

	org.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse org id: %w", err)
	}
	org.Kind = domain.OrgKind(kind)

	if err := unmarshalJSON(focus, &org.Focus); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(socials, &org.Socials); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(sources, &org.Sources); err != nil {
		return nil, err
	}
	return &org, nil
}

// ListRefs returns (id, name) pairs for batch pipelines; the full row is
// re-fetched per entity inside its own transaction scope.
func (r *OrgRepo) ListRefs(ctx context.Context, filter ports.OrgFilter) ([]ports.OrgRef, error) {
	builder := psql.Select("id", "name").From("orgs").OrderBy("created_at")

	if filter.Kind != "" {
		builder = builder.Where(sq.Eq{"kind": string(filter.Kind)})
	}
	if filter.MissingWebsite {
		builder = builder.Where("website IS NULL")
	}
	if filter.HasWebsite {
		builder = builder.Where("website IS NOT NULL")
	}
	if filter.NameContains != "" {
		builder = builder.Where("name ILIKE ?", "%"+filter.NameContains+"%")
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build org refs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query org refs: %w", err)
	}
	defer rows.Close()

	var refs []ports.OrgRef
	for rows.Next() {
		var (
			rawID string
			name  string
		)
		if err := rows.Scan(&rawID, &name); err != nil {
			return nil, fmt.Errorf("scan org ref: %w", err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse org ref id: %w", err)
		}
		refs = append(refs, ports.OrgRef{ID: id, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate org refs: %w", err)
	}
	return refs, nil
}

// SetWebsite records a validated website and appends its discovery provenance.
func (r *OrgRepo) SetWebsite(ctx context.Context, id uuid.UUID, website string, src domain.SourceRecord) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		raw, err := marshalJSON([]domain.SourceRecord{src})
		if err != nil {
			return err
		}

		query, args, err := psql.Update("orgs").
			Set("website", website).
			Set("sources", sq.Expr("sources || ?::jsonb", raw)).
			Set("updated_at", time.Now().UTC()).
			Where(sq.Eq{"id": id.String()}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build website update: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("set website: %w", err)
		}
		return nil
	})
}

// ClearWebsite drops an invalidated website so discovery can run again.
func (r *OrgRepo) ClearWebsite(ctx context.Context, id uuid.UUID) error {
	query, args, err := psql.Update("orgs").
		Set("website", nil).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build website clear: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear website: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySources(s []domain.SourceRecord) []domain.SourceRecord {
	if s == nil {
		return []domain.SourceRecord{}
	}
	return s
}
