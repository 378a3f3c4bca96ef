package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS orgs (
		id UUID PRIMARY KEY,
		name VARCHAR(500) NOT NULL,
		kind VARCHAR(20) NOT NULL CHECK (kind IN ('vc', 'startup', 'accelerator', 'other')),
		website VARCHAR(1000),
		description TEXT,
		focus JSONB NOT NULL DEFAULT '[]',
		socials JSONB NOT NULL DEFAULT '{}',
		sources JSONB NOT NULL DEFAULT '[]',
		uniq_key VARCHAR(255) UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS deals (
		id UUID PRIMARY KEY,
		org_id UUID NOT NULL REFERENCES orgs(id) ON DELETE CASCADE,
		round VARCHAR(100),
		amount_eur NUMERIC(15,2),
		amount_original NUMERIC(15,2),
		currency_original VARCHAR(10),
		announced_on DATE,
		investors JSONB NOT NULL DEFAULT '[]',
		source JSONB NOT NULL,
		uniq_hash VARCHAR(64) UNIQUE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS deals_org_id_idx ON deals(org_id)`,
	`CREATE TABLE IF NOT EXISTS people (
		id UUID PRIMARY KEY,
		full_name VARCHAR(500) NOT NULL,
		email VARCHAR(255),
		socials JSONB NOT NULL DEFAULT '{}',
		telegram_handle VARCHAR(100),
		telegram_confidence NUMERIC(3,2),
		discovered_from JSONB,
		enrichment_history JSONB NOT NULL DEFAULT '[]',
		uniq_key VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS people_full_name_idx ON people(full_name)`,
	`CREATE TABLE IF NOT EXISTS roles_employment (
		id UUID PRIMARY KEY,
		person_id UUID NOT NULL REFERENCES people(id) ON DELETE CASCADE,
		org_id UUID NOT NULL REFERENCES orgs(id) ON DELETE CASCADE,
		title VARCHAR(255),
		is_current BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT unique_person_org_role UNIQUE (person_id, org_id, title, is_current)
	)`,
	`CREATE TABLE IF NOT EXISTS evidence (
		id UUID PRIMARY KEY,
		evidence_type VARCHAR(50) NOT NULL,
		url VARCHAR(2000),
		screenshot_url VARCHAR(1000),
		extracted_data JSONB,
		extraction_method VARCHAR(100),
		org_id UUID,
		person_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS evidence_person_id_idx ON evidence(person_id)`,
	`CREATE TABLE IF NOT EXISTS agent_runs (
		id UUID PRIMARY KEY,
		agent_name VARCHAR(100) NOT NULL,
		status VARCHAR(50) NOT NULL,
		input_params JSONB,
		output_summary JSONB,
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ,
		error_message TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS agent_runs_agent_name_idx ON agent_runs(agent_name)`,
}

// Migrate applies the schema. Statements are idempotent, so running it on
// every startup is safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
