package domain

import (
	"time"

	"github.com/google/uuid"
)

// Extraction method tags recorded on evidence rows.
const (
	MethodPrimary           = "primary"
	MethodKnowledgeFallback = "fallback-knowledge-search"
)

// ExtractedFields is the structured payload captured for one person.
type ExtractedFields struct {
	Name        string  `json:"name"`
	Title       string  `json:"title,omitempty"`
	ProfileURL  string  `json:"profile_url,omitempty"`
	HeadshotURL string  `json:"headshot_url,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// Evidence is an immutable audit record of one extraction event.
// Rows are appended, never updated.
type Evidence struct {
	ID            uuid.UUID
	Type          string
	URL           string
	ScreenshotURL string
	Extracted     ExtractedFields
	Method        string
	OrgID         *uuid.UUID
	PersonID      *uuid.UUID
	CreatedAt     time.Time
}

// RunStatus is the lifecycle state of one pipeline invocation.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// AgentRun is the execution log for one pipeline invocation. It exists for
// observability and triage, never for pipeline logic.
type AgentRun struct {
	ID           uuid.UUID
	AgentName    string
	Status       RunStatus
	InputParams  map[string]any
	Summary      map[string]any
	StartedAt    time.Time
	CompletedAt  *time.Time
	ErrorMessage string
}
