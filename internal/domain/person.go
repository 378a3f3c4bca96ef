package domain

import (
	"time"

	"github.com/google/uuid"
)

// SocialPlatform tags a social handle with its network.
type SocialPlatform string

const (
	PlatformTwitter   SocialPlatform = "twitter"
	PlatformFarcaster SocialPlatform = "farcaster"
	PlatformTelegram  SocialPlatform = "telegram"
)

// SocialHandle is one resolved handle with the confidence it was accepted at.
type SocialHandle struct {
	Platform   SocialPlatform `json:"platform"`
	Handle     string         `json:"handle"`
	Confidence float64        `json:"confidence"`
	ProfileID  string         `json:"profile_id,omitempty"`
	Source     string         `json:"source,omitempty"`
}

// Socials carries per-platform handles plus the crawl-discovered URLs.
// Platforms the enricher does not model land in Other.
type Socials struct {
	Twitter     *SocialHandle  `json:"twitter,omitempty"`
	Farcaster   *SocialHandle  `json:"farcaster,omitempty"`
	ProfileURL  string         `json:"profile_url,omitempty"`
	HeadshotURL string         `json:"headshot_url,omitempty"`
	Other       []SocialHandle `json:"other,omitempty"`
}

// Provenance records which pipeline, organization, and URL produced a person.
type Provenance struct {
	Source string    `json:"source"`
	OrgID  uuid.UUID `json:"org_id"`
	URL    string    `json:"url,omitempty"`
}

// EnrichmentEvent is one append-only entry in a person's enrichment history.
// Fields names what the event touched or which lookups fired.
type EnrichmentEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	OrgID     string    `json:"org_id,omitempty"`
	Fields    []string  `json:"fields,omitempty"`
}

// Person is an individual discovered in connection with one organization.
// Identity is scoped to the discovery context: the same name at two different
// organizations is two distinct rows.
type Person struct {
	ID                 uuid.UUID
	FullName           string
	Email              string
	Socials            Socials
	TelegramHandle     string
	TelegramConfidence float64
	DiscoveredFrom     *Provenance
	EnrichmentHistory  []EnrichmentEvent
	UniqKey            string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RoleEmployment links a person to an organization with a title.
// Unique on (person, org, title, is_current).
type RoleEmployment struct {
	ID        uuid.UUID
	PersonID  uuid.UUID
	OrgID     uuid.UUID
	Title     string
	IsCurrent bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
