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

// PersonRepo persists people. Identity is scoped to the discovery
// organization: the lookups match on (full_name, discovered_from.org_id),
// never on the name alone.
type PersonRepo struct {
	db *sql.DB
}

var _ ports.PersonRepository = (*PersonRepo)(nil)

// NewPersonRepo wires a sql.DB implementation.
func NewPersonRepo(db *sql.DB) *PersonRepo {
	return &PersonRepo{db: db}
}

const personColumns = `id, full_name, COALESCE(email, ''), socials,
	COALESCE(telegram_handle, ''), COALESCE(telegram_confidence, 0),
	discovered_from, enrichment_history, COALESCE(uniq_key, ''), created_at, updated_at`

// ByNameAndOrg finds the person discovered under the given organization.
// Returns (nil, nil) when absent.
func (r *PersonRepo) ByNameAndOrg(ctx context.Context, fullName string, orgID uuid.UUID) (*domain.Person, error) {
	query, args, err := psql.Select(personColumns).From("people").
		Where(sq.Eq{"full_name": fullName}).
		Where("discovered_from ->> 'org_id' = ?", orgID.String()).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build person lookup: %w", err)
	}

	person, err := scanPerson(r.db.QueryRowContext(ctx, query, args...))
	if err == ErrNotFound {
		return nil, nil
	}
	return person, err
}

// ByID loads one person.
func (r *PersonRepo) ByID(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	query, args, err := psql.Select(personColumns).From("people").
		Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build person select: %w", err)
	}
	return scanPerson(r.db.QueryRowContext(ctx, query, args...))
}

// Create inserts a new person with a fresh identifier.
func (r *PersonRepo) Create(ctx context.Context, person domain.Person) (uuid.UUID, error) {
	id := uuid.New()

	socials, err := marshalJSON(person.Socials)
	if err != nil {
		return uuid.Nil, err
	}
	discovered, err := marshalJSON(person.DiscoveredFrom)
	if err != nil {
		return uuid.Nil, err
	}
	history, err := marshalJSON(orEmptyEvents(person.EnrichmentHistory))
	if err != nil {
		return uuid.Nil, err
	}

	query, args, err := psql.Insert("people").
		Columns("id", "full_name", "email", "socials", "telegram_handle",
			"telegram_confidence", "discovered_from", "enrichment_history", "uniq_key").
		Values(id.String(), person.FullName, nullable(person.Email), socials,
			nullable(person.TelegramHandle), nullableFloat(person.TelegramConfidence),
			discovered, history, nullable(person.UniqKey)).
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("build person insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return uuid.Nil, fmt.Errorf("insert person: %w", err)
	}
	return id, nil
}

// UpdateSocials replaces the socials and telegram fields and appends one
// enrichment-history event in a single transaction.
func (r *PersonRepo) UpdateSocials(ctx context.Context, id uuid.UUID, socials domain.Socials, telegramHandle string, telegramConfidence float64, event domain.EnrichmentEvent) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		rawSocials, err := marshalJSON(socials)
		if err != nil {
			return err
		}
		rawEvent, err := marshalJSON([]domain.EnrichmentEvent{event})
		if err != nil {
			return err
		}

		query, args, err := psql.Update("people").
			Set("socials", rawSocials).
			Set("telegram_handle", nullable(telegramHandle)).
			Set("telegram_confidence", nullableFloat(telegramConfidence)).
			Set("enrichment_history", sq.Expr("enrichment_history || ?::jsonb", rawEvent)).
			Set("updated_at", time.Now().UTC()).
			Where(sq.Eq{"id": id.String()}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build socials update: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("update socials: %w", err)
		}
		return nil
	})
}

// ListUnenriched returns people with no resolved farcaster handle. People the
// enricher found nothing for stay in this set and are retried on later runs.
func (r *PersonRepo) ListUnenriched(ctx context.Context, limit int) ([]domain.Person, error) {
	builder := psql.Select(personColumns).From("people").
		Where("socials -> 'farcaster' IS NULL").
		OrderBy("created_at")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unenriched query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unenriched: %w", err)
	}
	defer rows.Close()

	var people []domain.Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, *person)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unenriched: %w", err)
	}
	return people, nil
}

// CurrentOrg resolves the organization behind the person's current role.
// Returns (nil, nil) when the person has no current role.
func (r *PersonRepo) CurrentOrg(ctx context.Context, personID uuid.UUID) (*ports.OrgRef, error) {
	query, args, err := psql.Select("o.id", "o.name").
		From("roles_employment r").
		Join("orgs o ON o.id = r.org_id").
		Where(sq.Eq{"r.person_id": personID.String(), "r.is_current": true}).
		OrderBy("r.created_at").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build current-org query: %w", err)
	}

	var (
		rawID string
		name  string
	)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&rawID, &name); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query current org: %w", err)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse current org id: %w", err)
	}
	return &ports.OrgRef{ID: id, Name: name}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*domain.Person, error) {
	var (
		person     domain.Person
		rawID      string
		socials    []byte
		discovered []byte
		history    []byte
	)
	if err := row.Scan(&rawID, &person.FullName, &person.Email, &socials,
		&person.TelegramHandle, &person.TelegramConfidence,
		&discovered, &history, &person.UniqKey, &person.CreatedAt, &person.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan person: %w", err)
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse person id: %w", err)
	}
	person.ID = id

	if err := unmarshalJSON(socials, &person.Socials); err != nil {
		return nil, err
	}
	if len(discovered) > 0 && string(discovered) != "null" {
		person.DiscoveredFrom = &domain.Provenance{}
		if err := unmarshalJSON(discovered, person.DiscoveredFrom); err != nil {
			return nil, err
		}
	}
	if err := unmarshalJSON(history, &person.EnrichmentHistory); err != nil {
		return nil, err
	}
	return &person, nil
}

func nullableFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}

func orEmptyEvents(e []domain.EnrichmentEvent) []domain.EnrichmentEvent {
	if e == nil {
		return []domain.EnrichmentEvent{}
	}
	return e
}
