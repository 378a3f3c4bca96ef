package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"vcscout/internal/domain"
	"vcscout/internal/normalize"
	"vcscout/internal/ports"
	"vcscout/internal/runlock"
)

// Website resolution terminal states.
const (
	WebsiteSet         = "website_set"
	WebsiteSkipped     = "skipped_already_set"
	WebsiteNoCandidate = "failed_no_candidate"
)

// WebsiteFinderDeps wires the driven adapters into the website pipeline.
type WebsiteFinderDeps struct {
	Orgs      ports.OrgRepository
	Knowledge ports.KnowledgeSearcher
	Probe     ports.ReachabilityChecker
	Runs      ports.RunRepository
	Locker    *runlock.KeyedLocker
	Logger    *slog.Logger
}

// WebsiteFinder fills in missing organization websites from the knowledge
// capability, accepting only candidates that actually respond.
type WebsiteFinder struct {
	orgs      ports.OrgRepository
	knowledge ports.KnowledgeSearcher
	probe     ports.ReachabilityChecker
	runs      ports.RunRepository
	locker    *runlock.KeyedLocker
	logger    *slog.Logger
}

// WebsiteResult is the outcome for one organization.
type WebsiteResult struct {
	OrgID   uuid.UUID `json:"org_id"`
	OrgName string    `json:"org_name"`
	State   string    `json:"state"`
	Website string    `json:"website,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// WebsiteSummary reports one batch run.
type WebsiteSummary struct {
	Processed   int             `json:"processed"`
	Set         int             `json:"set"`
	Skipped     int             `json:"skipped"`
	NoCandidate int             `json:"no_candidate"`
	Results     []WebsiteResult `json:"results,omitempty"`
	Errors      []string        `json:"errors,omitempty"`
}

// NewWebsiteFinder constructs the pipeline.
func NewWebsiteFinder(deps WebsiteFinderDeps) *WebsiteFinder {
	return &WebsiteFinder{
		orgs:      deps.Orgs,
		knowledge: deps.Knowledge,
		probe:     deps.Probe,
		runs:      deps.Runs,
		locker:    deps.Locker,
		logger:    deps.Logger,
	}
}

// ResolveAll processes every organization missing a website (or every
// organization when force is set), one at a time.
func (p *WebsiteFinder) ResolveAll(ctx context.Context, force bool, limit int) (*WebsiteSummary, error) {
	filter := ports.OrgFilter{MissingWebsite: !force, Limit: limit}
	refs, err := p.orgs.ListRefs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}

	summary := &WebsiteSummary{}
	for _, ref := range refs {
		result := p.Resolve(ctx, ref.ID, force)
		summary.Processed++
		switch result.State {
		case WebsiteSet:
			summary.Set++
		case WebsiteSkipped:
			summary.Skipped++
		default:
			summary.NoCandidate++
		}
		if result.Error != "" {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", result.OrgName, result.Error))
		}
		summary.Results = append(summary.Results, result)
	}
	return summary, nil
}

// Resolve runs the state machine for one organization and records one run
// log entry regardless of which branch terminated it.
func (p *WebsiteFinder) Resolve(ctx context.Context, orgID uuid.UUID, force bool) WebsiteResult {
	result := WebsiteResult{OrgID: orgID}

	runID, err := p.runs.Start(ctx, "website-resolution", map[string]any{
		"org_id": orgID.String(),
		"force":  force,
	})
	if err != nil {
		result.State = WebsiteNoCandidate
		result.Error = fmt.Sprintf("start run: %v", err)
		return result
	}

	unlock, ok := p.locker.TryLock("org:" + orgID.String())
	if !ok {
		result.State = WebsiteNoCandidate
		result.Error = "resolution already running for this organization"
		if err := p.runs.Finish(ctx, runID, domain.RunFailed, summaryMap(result), result.Error); err != nil {
			p.logger.Error("finish run failed", "org_id", orgID, "error", err)
		}
		return result
	}
	defer unlock()

	result = p.resolve(ctx, orgID, force)

	status := domain.RunCompleted
	if result.Error != "" {
		status = domain.RunFailed
	}
	if err := p.runs.Finish(ctx, runID, status, summaryMap(result), result.Error); err != nil {
		p.logger.Error("finish run failed", "org_id", orgID, "error", err)
	}
	return result
}

func (p *WebsiteFinder) resolve(ctx context.Context, orgID uuid.UUID, force bool) WebsiteResult {
	result := WebsiteResult{OrgID: orgID, State: WebsiteNoCandidate}

	org, err := p.orgs.ByID(ctx, orgID)
	if err != nil {
		result.Error = fmt.Sprintf("load organization: %v", err)
		return result
	}
	result.OrgName = org.Name

	stale := false
	if org.Website != "" {
		if !force {
			result.State = WebsiteSkipped
			result.Website = org.Website
			return result
		}
		// Forcing: keep an existing website that still answers.
		if p.reachable(ctx, org.Website) {
			result.State = WebsiteSet
			result.Website = org.Website
			return result
		}
		stale = true
		p.logger.Info("existing website unreachable, re-resolving",
			"org", org.Name, "website", org.Website)
	}

	candidate, err := p.findCandidate(ctx, org)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if candidate == "" {
		p.logger.Info("no website candidate", "org", org.Name)
		p.clearStale(ctx, orgID, org.Name, stale)
		return result
	}

	// The knowledge capability can hallucinate plausible URLs, so a passing
	// reachability check is mandatory before anything is persisted.
	if !p.reachable(ctx, candidate) {
		p.logger.Info("candidate website unreachable, rejected",
			"org", org.Name, "candidate", candidate)
		p.clearStale(ctx, orgID, org.Name, stale)
		return result
	}

	src := domain.SourceRecord{
		Type:       "discovery",
		URL:        candidate,
		Method:     "knowledge-search",
		Validated:  true,
		ImportedAt: time.Now().UTC(),
	}
	if err := p.orgs.SetWebsite(ctx, orgID, candidate, src); err != nil {
		result.Error = fmt.Sprintf("persist website: %v", err)
		return result
	}

	result.State = WebsiteSet
	result.Website = candidate
	p.logger.Info("website set", "org", org.Name, "website", candidate)
	return result
}

// clearStale drops a website that failed forced re-validation when no
// replacement could be found, so the org rejoins the missing-website batch.
func (p *WebsiteFinder) clearStale(ctx context.Context, orgID uuid.UUID, orgName string, stale bool) {
	if !stale {
		return
	}
	if err := p.orgs.ClearWebsite(ctx, orgID); err != nil {
		p.logger.Error("clear stale website", "org", orgName, "error", err)
		return
	}
	p.logger.Info("stale website cleared", "org", orgName)
}

func (p *WebsiteFinder) findCandidate(ctx context.Context, org *domain.Organization) (string, error) {
	var mentions []string
	for _, src := range org.Sources {
		if src.URL != "" {
			mentions = append(mentions, src.URL)
		}
	}

	prompt := fmt.Sprintf(
		"What is the official website URL of the company %q?", org.Name)
	if org.Description != "" {
		prompt += fmt.Sprintf(" Description: %s.", normalize.Truncate(org.Description, 200))
	}
	if len(mentions) > 0 {
		prompt += fmt.Sprintf(" Known mentions: %s.", strings.Join(mentions, ", "))
	}
	prompt += " Reply with the bare URL only, or NONE if you do not know."

	answer, err := p.knowledge.Query(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("query knowledge: %w", err)
	}

	return extractCandidateURL(answer), nil
}

func (p *WebsiteFinder) reachable(ctx context.Context, url string) bool {
	status, err := p.probe.Check(ctx, url)
	if err != nil {
		return false
	}
	return status >= http.StatusOK && status < http.StatusBadRequest
}

// extractCandidateURL pulls the first http(s) URL out of a model answer.
// Anything else, including a bare NONE, yields empty.
func extractCandidateURL(answer string) string {
	for _, field := range strings.Fields(answer) {
		field = strings.Trim(field, ".,;:\"'()[]")
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return field
		}
	}
	return ""
}
