package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"vcscout/internal/domain"
)

// KnowledgeSearcher answers a free-text prompt with model output. It may
// hallucinate: callers must validate the shape of the answer and, when it
// claims a fact about the external world, validate it externally too.
type KnowledgeSearcher interface {
	Query(ctx context.Context, prompt string) (string, error)
}

// RenderedPage is the output of one browser rendering pass.
type RenderedPage struct {
	URL            string
	HTML           string
	StructuredText string
	Screenshot     []byte
}

// PageRenderer loads a URL with client-side script execution and returns the
// settled page. A static fetch is not a valid implementation.
type PageRenderer interface {
	Render(ctx context.Context, url string) (*RenderedPage, error)
}

// ReachabilityChecker performs a GET and reports the status code.
// Success is 200 <= status < 400.
type ReachabilityChecker interface {
	Check(ctx context.Context, url string) (int, error)
}

// SocialProfile is one candidate returned by a social-graph lookup.
type SocialProfile struct {
	Username          string
	ProfileID         string
	DisplayName       string
	Bio               string
	VerifiedAddresses []string
}

// SocialSearcher queries a social-graph index for candidate profiles.
type SocialSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]SocialProfile, error)
}

// DealFeed pulls funding-round records from an upstream provider.
type DealFeed interface {
	FetchRecent(ctx context.Context, lookback time.Duration) ([]domain.Raise, error)
}

// OrgRef is a lightweight (id, name) pair used by batch pre-fetch queries.
type OrgRef struct {
	ID   uuid.UUID
	Name string
}

// OrgFilter narrows batch organization queries.
type OrgFilter struct {
	Kind           domain.OrgKind
	MissingWebsite bool
	HasWebsite     bool
	NameContains   string
	Limit          int
}

// OrgRepository persists organizations with idempotent key-based upserts.
type OrgRepository interface {
	// Upsert creates the organization or appends its Sources entries to the
	// existing row with the same UniqKey. Returns the row id and whether a
	// new row was created.
	Upsert(ctx context.Context, org domain.Organization) (uuid.UUID, bool, error)
	ByID(ctx context.Context, id uuid.UUID) (*domain.Organization, error)
	ListRefs(ctx context.Context, filter OrgFilter) ([]OrgRef, error)
	SetWebsite(ctx context.Context, id uuid.UUID, website string, src domain.SourceRecord) error
	ClearWebsite(ctx context.Context, id uuid.UUID) error
}

// DealRepository persists deals keyed on their idempotency hash.
type DealRepository interface {
	// Insert stores the deal unless its UniqHash already exists.
	// Returns false for the no-op case.
	Insert(ctx context.Context, deal domain.Deal) (bool, error)
}

// PersonRepository persists people scoped to their discovery organization.
type PersonRepository interface {
	ByNameAndOrg(ctx context.Context, fullName string, orgID uuid.UUID) (*domain.Person, error)
	ByID(ctx context.Context, id uuid.UUID) (*domain.Person, error)
	Create(ctx context.Context, person domain.Person) (uuid.UUID, error)
	// UpdateSocials replaces the socials and telegram fields and appends one
	// enrichment-history event.
	UpdateSocials(ctx context.Context, id uuid.UUID, socials domain.Socials, telegramHandle string, telegramConfidence float64, event domain.EnrichmentEvent) error
	// ListUnenriched returns people with no resolved farcaster handle.
	ListUnenriched(ctx context.Context, limit int) ([]domain.Person, error)
	// CurrentOrg resolves the organization behind the person's current role.
	CurrentOrg(ctx context.Context, personID uuid.UUID) (*OrgRef, error)
}

// RoleRepository persists employment links, unique on
// (person, org, title, is_current).
type RoleRepository interface {
	Upsert(ctx context.Context, role domain.RoleEmployment) (bool, error)
}

// EvidenceRepository appends immutable extraction audit records.
type EvidenceRepository interface {
	Append(ctx context.Context, ev domain.Evidence) error
}

// RunRepository tracks pipeline invocations for observability.
type RunRepository interface {
	Start(ctx context.Context, agentName string, input map[string]any) (uuid.UUID, error)
	Finish(ctx context.Context, id uuid.UUID, status domain.RunStatus, summary map[string]any, errMessage string) error
}

// Notifier publishes batch run summaries to an operator channel.
type Notifier interface {
	PublishSummary(ctx context.Context, summary string) error
}

// Scheduler controls when recurring pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
