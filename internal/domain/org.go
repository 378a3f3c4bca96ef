package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrgKind classifies an organization.
type OrgKind string

const (
	KindVC          OrgKind = "vc"
	KindStartup     OrgKind = "startup"
	KindAccelerator OrgKind = "accelerator"
	KindOther       OrgKind = "other"
)

// SourceRecord is one provenance entry in an organization's append-only log.
type SourceRecord struct {
	Type       string    `json:"type"`
	URL        string    `json:"url,omitempty"`
	Method     string    `json:"method,omitempty"`
	Validated  bool      `json:"validated,omitempty"`
	ImportedAt time.Time `json:"imported_at"`
}

// Organization is a company tracked by the system: VC, startup, or accelerator.
// UniqKey is a deterministic hash of the normalized name and website; two
// organizations with the same key collapse to one row.
type Organization struct {
	ID          uuid.UUID
	Name        string
	Kind        OrgKind
	Website     string
	Description string
	Focus       []string
	Socials     map[string]string
	Sources     []SourceRecord
	UniqKey     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Deal is one funding round owned by an organization. UniqHash makes
// re-ingesting the same feed record a no-op.
type Deal struct {
	ID               uuid.UUID
	OrgID            uuid.UUID
	Round            string
	AmountEUR        float64
	AmountOriginal   float64
	CurrencyOriginal string
	AnnouncedOn      *time.Time
	Investors        []string
	Source           SourceRecord
	UniqHash         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
