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

// RunRepo tracks pipeline invocations. One row per invocation: created as
// running, finished exactly once with a terminal status.
type RunRepo struct {
	db *sql.DB
}

var _ ports.RunRepository = (*RunRepo)(nil)

// NewRunRepo wires a sql.DB implementation.
func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

// Start records the beginning of a pipeline invocation.
func (r *RunRepo) Start(ctx context.Context, agentName string, input map[string]any) (uuid.UUID, error) {
	id := uuid.New()

	raw, err := marshalJSON(input)
	if err != nil {
		return uuid.Nil, err
	}

	query, args, err := psql.Insert("agent_runs").
		Columns("id", "agent_name", "status", "input_params").
		Values(id.String(), agentName, string(domain.RunRunning), raw).
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("build run insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Finish records the terminal status and summary of an invocation.
func (r *RunRepo) Finish(ctx context.Context, id uuid.UUID, status domain.RunStatus, summary map[string]any, errMessage string) error {
	raw, err := marshalJSON(summary)
	if err != nil {
		return err
	}

	query, args, err := psql.Update("agent_runs").
		Set("status", string(status)).
		Set("output_summary", raw).
		Set("error_message", nullable(errMessage)).
		Set("completed_at", time.Now().UTC()).
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}
