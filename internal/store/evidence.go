package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"vcscout/internal/domain"
	"vcscout/internal/ports"
)

// EvidenceRepo appends immutable extraction audit records. There is
// deliberately no update path.
type EvidenceRepo struct {
	db *sql.DB
}

var _ ports.EvidenceRepository = (*EvidenceRepo)(nil)

// NewEvidenceRepo wires a sql.DB implementation.
func NewEvidenceRepo(db *sql.DB) *EvidenceRepo {
	return &EvidenceRepo{db: db}
}

// Append inserts one evidence row.
func (r *EvidenceRepo) Append(ctx context.Context, ev domain.Evidence) error {
	extracted, err := marshalJSON(ev.Extracted)
	if err != nil {
		return err
	}

	var orgID, personID any
	if ev.OrgID != nil {
		orgID = ev.OrgID.String()
	}
	if ev.PersonID != nil {
		personID = ev.PersonID.String()
	}

	query, args, err := psql.Insert("evidence").
		Columns("id", "evidence_type", "url", "screenshot_url", "extracted_data",
			"extraction_method", "org_id", "person_id").
		Values(uuid.New().String(), ev.Type, nullable(ev.URL), nullable(ev.ScreenshotURL),
			extracted, nullable(ev.Method), orgID, personID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build evidence insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}
