package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vcscout/internal/config"
	"vcscout/internal/domain"
	"vcscout/internal/normalize"
	"vcscout/internal/ports"
	"vcscout/internal/runlock"
)

// Confidence assigned to each enrichment signal. A cross-platform handle
// match is strong corroborating evidence; a single-source telegram guess is
// weak.
const (
	farcasterExactMatch  = 0.8
	farcasterAcceptFloor = 0.5
	telegramTwoSources   = 0.6
	telegramSingleSource = 0.5
	nameExactWeight      = 0.5
	namePartialWeight    = 0.3
	emailDomainWeight    = 0.4
	orgMentionWeight     = 0.2
	displayNameSearchMax = 20
)

// EnricherDeps wires the driven adapters into the enrichment pipeline.
type EnricherDeps struct {
	People    ports.PersonRepository
	Knowledge ports.KnowledgeSearcher
	Social    ports.SocialSearcher
	Runs      ports.RunRepository
	Locker    *runlock.KeyedLocker
	Logger    *slog.Logger
	Config    config.EnrichmentConfig
}

// Enricher resolves social handles for people, scores them, and merges the
// accepted ones into the person record.
type Enricher struct {
	people    ports.PersonRepository
	knowledge ports.KnowledgeSearcher
	social    ports.SocialSearcher
	runs      ports.RunRepository
	locker    *runlock.KeyedLocker
	logger    *slog.Logger
	cfg       config.EnrichmentConfig
}

// EnrichSummary reports one batch run.
type EnrichSummary struct {
	Processed int      `json:"processed"`
	Enriched  int      `json:"enriched"`
	Unchanged int      `json:"unchanged"`
	Errors    []string `json:"errors,omitempty"`
}

// NewEnricher constructs the pipeline.
func NewEnricher(deps EnricherDeps) *Enricher {
	return &Enricher{
		people:    deps.People,
		knowledge: deps.Knowledge,
		social:    deps.Social,
		runs:      deps.Runs,
		locker:    deps.Locker,
		logger:    deps.Logger,
		cfg:       deps.Config,
	}
}

// EnrichAll processes people with no resolved social handle, one at a time.
// People for whom nothing is found stay unmarked so later runs can retry.
func (p *Enricher) EnrichAll(ctx context.Context, limit int) (*EnrichSummary, error) {
	runID, err := p.runs.Start(ctx, "social-enrichment", map[string]any{
		"limit": limit,
	})
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	summary := &EnrichSummary{}

	people, err := p.people.ListUnenriched(ctx, limit)
	if err != nil {
		ferr := fmt.Errorf("list people: %w", err)
		_ = p.runs.Finish(ctx, runID, domain.RunFailed, summaryMap(summary), ferr.Error())
		return nil, ferr
	}

	for _, person := range people {
		summary.Processed++
		enriched, err := p.Enrich(ctx, person.ID)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", person.FullName, err))
			p.logger.Error("enrich person failed", "person", person.FullName, "error", err)
			continue
		}
		if enriched {
			summary.Enriched++
		} else {
			summary.Unchanged++
		}
	}

	if err := p.runs.Finish(ctx, runID, domain.RunCompleted, summaryMap(summary), ""); err != nil {
		return summary, fmt.Errorf("finish run: %w", err)
	}

	p.logger.Info("enrichment done",
		"processed", summary.Processed,
		"enriched", summary.Enriched,
		"unchanged", summary.Unchanged,
		"errors", len(summary.Errors),
	)
	return summary, nil
}

// Enrich runs the three lookup steps for one person and merges whatever was
// accepted in a single write. It reports whether anything was written.
func (p *Enricher) Enrich(ctx context.Context, personID uuid.UUID) (bool, error) {
	unlock := p.locker.Lock("person-enrich:" + personID.String())
	defer unlock()

	person, err := p.people.ByID(ctx, personID)
	if err != nil {
		return false, fmt.Errorf("load person: %w", err)
	}

	orgRef, err := p.people.CurrentOrg(ctx, personID)
	if err != nil {
		return false, fmt.Errorf("resolve current org: %w", err)
	}
	orgName := ""
	if orgRef != nil {
		orgName = orgRef.Name
	} else if person.DiscoveredFrom != nil {
		// A person without a current role still carries a discovery org.
		orgRef = &ports.OrgRef{ID: person.DiscoveredFrom.OrgID}
	}

	var fired []string

	twitter := p.findTwitter(ctx, person, orgName)
	if twitter != nil {
		fired = append(fired, string(domain.PlatformTwitter))
	}

	farcaster := p.findFarcaster(ctx, person, orgName, twitter)
	if farcaster != nil {
		fired = append(fired, string(domain.PlatformFarcaster))
	}

	telegramHandle, telegramConfidence := inferTelegram(twitter, farcaster)
	if telegramHandle != "" {
		fired = append(fired, string(domain.PlatformTelegram))
	}

	if len(fired) == 0 {
		return false, nil
	}

	socials := person.Socials
	if twitter != nil {
		socials.Twitter = twitter
	}
	if farcaster != nil {
		socials.Farcaster = farcaster
	}

	handle := person.TelegramHandle
	confidence := person.TelegramConfidence
	if telegramHandle != "" {
		handle = telegramHandle
		confidence = telegramConfidence
	}

	event := domain.EnrichmentEvent{
		Timestamp: time.Now().UTC(),
		Source:    "social-enrichment",
		Fields:    fired,
	}
	if orgRef != nil {
		event.OrgID = orgRef.ID.String()
	}

	if err := p.people.UpdateSocials(ctx, personID, socials, handle, confidence, event); err != nil {
		return false, fmt.Errorf("merge socials: %w", err)
	}

	p.logger.Info("person enriched", "person", person.FullName, "signals", fired)
	return true, nil
}

// findTwitter asks the knowledge capability for a handle and accepts it only
// as a bare username token at or above the configured confidence.
func (p *Enricher) findTwitter(ctx context.Context, person *domain.Person, orgName string) *domain.SocialHandle {
	prompt := fmt.Sprintf("Find the Twitter/X handle of %s", person.FullName)
	if orgName != "" {
		prompt += fmt.Sprintf(", who works at %s", orgName)
	}
	if person.Email != "" {
		prompt += fmt.Sprintf(" (email %s)", person.Email)
	}
	if person.Socials.ProfileURL != "" {
		prompt += fmt.Sprintf(" (profile %s)", person.Socials.ProfileURL)
	}
	prompt += `. Reply with JSON {"handle": "...", "confidence": 0.0} or NONE.`

	answer, err := p.knowledge.Query(ctx, prompt)
	if err != nil {
		p.logger.Debug("twitter lookup failed", "person", person.FullName, "error", err)
		return nil
	}

	var parsed struct {
		Handle     string  `json:"handle"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(stripFence(answer)), &parsed); err != nil {
		return nil
	}

	handle := bareHandle(parsed.Handle)
	if handle == "" || parsed.Confidence < p.cfg.MinConfidence {
		return nil
	}

	return &domain.SocialHandle{
		Platform:   domain.PlatformTwitter,
		Handle:     handle,
		Confidence: parsed.Confidence,
		Source:     "knowledge-search",
	}
}

// findFarcaster searches the social graph, preferring an exact-username match
// on the twitter handle and otherwise scoring name-based candidates locally.
func (p *Enricher) findFarcaster(ctx context.Context, person *domain.Person, orgName string, twitter *domain.SocialHandle) *domain.SocialHandle {
	if twitter != nil {
		profiles, err := p.social.Search(ctx, twitter.Handle, 5)
		if err != nil {
			p.logger.Debug("farcaster handle search failed", "person", person.FullName, "error", err)
		} else {
			for _, profile := range profiles {
				if strings.EqualFold(profile.Username, twitter.Handle) {
					return &domain.SocialHandle{
						Platform:   domain.PlatformFarcaster,
						Handle:     profile.Username,
						Confidence: farcasterExactMatch,
						ProfileID:  profile.ProfileID,
						Source:     "handle-match",
					}
				}
			}
		}
	}

	query := normalize.Truncate(person.FullName, displayNameSearchMax)
	profiles, err := p.social.Search(ctx, query, 5)
	if err != nil {
		p.logger.Debug("farcaster name search failed", "person", person.FullName, "error", err)
		return nil
	}

	var best *ports.SocialProfile
	bestScore := 0.0
	for i := range profiles {
		score := scoreProfile(person, orgName, profiles[i])
		if score > bestScore {
			best = &profiles[i]
			bestScore = score
		}
	}

	if best == nil || bestScore < farcasterAcceptFloor {
		return nil
	}
	return &domain.SocialHandle{
		Platform:   domain.PlatformFarcaster,
		Handle:     best.Username,
		Confidence: bestScore,
		ProfileID:  best.ProfileID,
		Source:     "name-match",
	}
}

// scoreProfile blends name match, email-domain match, and an org mention in
// the candidate's bio. Capped at 1.0.
func scoreProfile(person *domain.Person, orgName string, profile ports.SocialProfile) float64 {
	score := 0.0

	name := strings.ToLower(strings.TrimSpace(person.FullName))
	display := strings.ToLower(strings.TrimSpace(profile.DisplayName))
	switch {
	case name != "" && name == display:
		score += nameExactWeight
	case name != "" && display != "" &&
		(strings.Contains(display, name) || strings.Contains(name, display)):
		score += namePartialWeight
	}

	if domainPart := emailDomain(person.Email); domainPart != "" {
		for _, addr := range profile.VerifiedAddresses {
			if strings.Contains(strings.ToLower(addr), domainPart) {
				score += emailDomainWeight
				break
			}
		}
	}

	if orgName != "" && strings.Contains(strings.ToLower(profile.Bio), strings.ToLower(orgName)) {
		score += orgMentionWeight
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// inferTelegram guesses a telegram handle from cross-platform reuse. Two
// case-insensitively equal handles are moderate evidence; disagreeing
// handles fall back to the farcaster one as a weak guess, like a single
// handle; zero handles infer nothing.
func inferTelegram(twitter, farcaster *domain.SocialHandle) (string, float64) {
	switch {
	case twitter != nil && farcaster != nil:
		if strings.EqualFold(twitter.Handle, farcaster.Handle) {
			return twitter.Handle, telegramTwoSources
		}
		return farcaster.Handle, telegramSingleSource
	case twitter != nil:
		return twitter.Handle, telegramSingleSource
	case farcaster != nil:
		return farcaster.Handle, telegramSingleSource
	default:
		return "", 0
	}
}

// bareHandle strips url and mention decoration and rejects anything that is
// not a single username token.
func bareHandle(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "none") {
		return ""
	}
	if h := normalize.TwitterHandle(raw); h != "" {
		return h
	}
	if strings.ContainsAny(raw, " /:") {
		return ""
	}
	return strings.TrimPrefix(raw, "@")
}

func emailDomain(email string) string {
	_, domainPart, found := strings.Cut(email, "@")
	if !found {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(domainPart))
}
