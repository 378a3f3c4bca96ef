package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"vcscout/internal/config"
	"vcscout/internal/domain"
	"vcscout/internal/normalize"
	"vcscout/internal/ports"
	"vcscout/internal/runlock"
)

// Common team-page path suffixes, tried in order against the base URL.
var teamPagePaths = []string{"/team", "/about", "/people", "/about-us", "/leadership", "/our-team"}

// A candidate page counts as a team page only when its rendered content
// mentions roles, not just when the path answers 200.
var roleKeywords = []string{"team", "partner", "analyst", "principal"}

// Per-person outcomes of one crawl.
const (
	PersonCreated = "created"
	PersonUpdated = "updated"
	PersonSkipped = "skipped"
)

// CrawlerDeps wires the driven adapters into the team-extraction pipeline.
type CrawlerDeps struct {
	Orgs      ports.OrgRepository
	People    ports.PersonRepository
	Roles     ports.RoleRepository
	Evidence  ports.EvidenceRepository
	Runs      ports.RunRepository
	Renderer  ports.PageRenderer
	Probe     ports.ReachabilityChecker
	Extractor ports.KnowledgeSearcher
	Knowledge ports.KnowledgeSearcher
	Locker    *runlock.KeyedLocker
	Logger    *slog.Logger
	Config    config.CrawlerConfig
}

// Crawler locates an organization's team page, extracts its people, and
// persists them with provenance.
type Crawler struct {
	orgs      ports.OrgRepository
	people    ports.PersonRepository
	roles     ports.RoleRepository
	evidence  ports.EvidenceRepository
	runs      ports.RunRepository
	renderer  ports.PageRenderer
	probe     ports.ReachabilityChecker
	extractor ports.KnowledgeSearcher
	knowledge ports.KnowledgeSearcher
	locker    *runlock.KeyedLocker
	logger    *slog.Logger
	cfg       config.CrawlerConfig
}

// extractedPerson is the structured shape the extraction capability returns.
type extractedPerson struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	ProfileURL  string `json:"profile_url"`
	HeadshotURL string `json:"headshot_url"`
	EvidenceURL string `json:"evidence_url"`
}

// CrawlResult is the outcome for one organization.
type CrawlResult struct {
	OrgID    uuid.UUID `json:"org_id"`
	OrgName  string    `json:"org_name"`
	TeamPage string    `json:"team_page,omitempty"`
	Method   string    `json:"method,omitempty"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Error    string    `json:"error,omitempty"`
}

// CrawlSummary reports one batch run.
type CrawlSummary struct {
	Processed int           `json:"processed"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Results   []CrawlResult `json:"results,omitempty"`
	Errors    []string      `json:"errors,omitempty"`
}

// NewCrawler constructs the pipeline.
func NewCrawler(deps CrawlerDeps) *Crawler {
	return &Crawler{
		orgs:      deps.Orgs,
		people:    deps.People,
		roles:     deps.Roles,
		evidence:  deps.Evidence,
		runs:      deps.Runs,
		renderer:  deps.Renderer,
		probe:     deps.Probe,
		extractor: deps.Extractor,
		knowledge: deps.Knowledge,
		locker:    deps.Locker,
		logger:    deps.Logger,
		cfg:       deps.Config,
	}
}

// CrawlAll processes every organization with a known website, one at a time.
// A failure on one organization never aborts the rest of the batch.
func (p *Crawler) CrawlAll(ctx context.Context, limit int) (*CrawlSummary, error) {
	refs, err := p.orgs.ListRefs(ctx, ports.OrgFilter{HasWebsite: true, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}

	summary := &CrawlSummary{}
	for _, ref := range refs {
		result := p.Crawl(ctx, ref.ID)
		summary.Processed++
		summary.Created += result.Created
		summary.Updated += result.Updated
		summary.Skipped += result.Skipped
		if result.Error != "" {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", result.OrgName, result.Error))
		}
		summary.Results = append(summary.Results, result)
	}
	return summary, nil
}

// Crawl runs team extraction for one organization.
func (p *Crawler) Crawl(ctx context.Context, orgID uuid.UUID) CrawlResult {
	result := CrawlResult{OrgID: orgID}

	runID, err := p.runs.Start(ctx, "team-extraction", map[string]any{
		"org_id": orgID.String(),
	})
	if err != nil {
		result.Error = fmt.Sprintf("start run: %v", err)
		return result
	}

	unlock, ok := p.locker.TryLock("org:" + orgID.String())
	if !ok {
		result.Error = "extraction already running for this organization"
		if err := p.runs.Finish(ctx, runID, domain.RunFailed, summaryMap(result), result.Error); err != nil {
			p.logger.Error("finish run failed", "org_id", orgID, "error", err)
		}
		return result
	}
	defer unlock()

	result = p.crawl(ctx, orgID)

	status := domain.RunCompleted
	if result.Error != "" {
		status = domain.RunFailed
	}
	if err := p.runs.Finish(ctx, runID, status, summaryMap(result), result.Error); err != nil {
		p.logger.Error("finish run failed", "org_id", orgID, "error", err)
	}
	return result
}

func (p *Crawler) crawl(ctx context.Context, orgID uuid.UUID) CrawlResult {
	result := CrawlResult{OrgID: orgID}

	org, err := p.orgs.ByID(ctx, orgID)
	if err != nil {
		result.Error = fmt.Sprintf("load organization: %v", err)
		return result
	}
	result.OrgName = org.Name

	if org.Website == "" {
		result.Error = "organization has no website"
		return result
	}

	page, screenshotURL := p.locateTeamPage(ctx, org)

	var people []extractedPerson
	method := domain.MethodPrimary
	confidence := 0.9
	sourceURL := org.Website

	if page != nil {
		result.TeamPage = page.URL
		sourceURL = page.URL
		people = p.extractPeople(ctx, page)
	}

	// Many small firms have no scrapable team page at all. Knowledge recall
	// is a deliberately lower-confidence substitute, never the primary path.
	if len(people) == 0 {
		people = p.recallPeople(ctx, org.Name)
		method = domain.MethodKnowledgeFallback
		confidence = 0.6
		screenshotURL = ""
	}
	result.Method = method

	if len(people) == 0 {
		p.logger.Info("no people found", "org", org.Name)
		return result
	}

	for _, person := range people {
		status, err := p.persistPerson(ctx, org, person, method, confidence, sourceURL, screenshotURL)
		if err != nil {
			p.logger.Error("persist person failed", "org", org.Name, "person", person.Name, "error", err)
			continue
		}
		switch status {
		case PersonCreated:
			result.Created++
		case PersonUpdated:
			result.Updated++
		case PersonSkipped:
			result.Skipped++
		}
	}

	p.logger.Info("crawl done", "org", org.Name, "method", method,
		"created", result.Created, "updated", result.Updated, "skipped", result.Skipped)
	return result
}

// locateTeamPage tries the common path suffixes first, then falls back to
// asking the knowledge capability to pick a team link from the navigation.
func (p *Crawler) locateTeamPage(ctx context.Context, org *domain.Organization) (*ports.RenderedPage, string) {
	base := strings.TrimSuffix(org.Website, "/")

	for _, path := range teamPagePaths {
		candidate := base + path
		status, err := p.probe.Check(ctx, candidate)
		if err != nil || status < http.StatusOK || status >= http.StatusBadRequest {
			continue
		}

		page, err := p.renderer.Render(ctx, candidate)
		if err != nil {
			p.logger.Debug("render failed", "url", candidate, "error", err)
			continue
		}
		if containsRoleKeywords(page) {
			return page, p.saveScreenshot(org.ID, page)
		}
	}

	// Fallback: render the landing page and let the knowledge capability
	// pick the most likely team link out of the navigation.
	home, err := p.renderer.Render(ctx, org.Website)
	if err != nil {
		p.logger.Debug("render home failed", "url", org.Website, "error", err)
		return nil, ""
	}

	links := navigationLinks(home.HTML, org.Website)
	if len(links) == 0 {
		return nil, ""
	}

	picked := p.pickTeamLink(ctx, org.Name, links)
	if picked == "" {
		return nil, ""
	}

	page, err := p.renderer.Render(ctx, picked)
	if err != nil {
		p.logger.Debug("render picked link failed", "url", picked, "error", err)
		return nil, ""
	}
	return page, p.saveScreenshot(org.ID, page)
}

func (p *Crawler) pickTeamLink(ctx context.Context, orgName string, links []string) string {
	prompt := fmt.Sprintf(
		"Below are navigation links from the website of %q. "+
			"Reply with the single URL most likely to list the team members, or NONE.\n%s",
		orgName, strings.Join(links, "\n"))

	answer, err := p.knowledge.Query(ctx, prompt)
	if err != nil {
		p.logger.Debug("pick team link failed", "org", orgName, "error", err)
		return ""
	}

	// Only absolute URLs are acceptable here; the model sometimes replies
	// with a bare path or a made-up host.
	candidate := extractCandidateURL(answer)
	for _, link := range links {
		if candidate == link {
			return candidate
		}
	}
	return ""
}

// extractPeople asks the extraction capability for structured person records
// from the rendered page. A malformed response is zero results, not an error.
func (p *Crawler) extractPeople(ctx context.Context, page *ports.RenderedPage) []extractedPerson {
	text := page.StructuredText
	if text == "" {
		text = normalize.CleanText(page.HTML)
	}
	text = normalize.Truncate(text, 16000)

	prompt := "Extract the team members listed on this page. " +
		"Reply with a JSON array of objects with keys name, title, profile_url, headshot_url. " +
		"Reply with [] if the page lists no people. Page content:\n" + text

	answer, err := p.extractor.Query(ctx, prompt)
	if err != nil {
		p.logger.Debug("extraction query failed", "url", page.URL, "error", err)
		return nil
	}
	return parsePeople(answer)
}

// recallPeople asks the knowledge capability to recall known team members
// from general knowledge when the site yields nothing.
func (p *Crawler) recallPeople(ctx context.Context, orgName string) []extractedPerson {
	prompt := fmt.Sprintf(
		"List the known team members of the venture firm %q. "+
			"Reply with a JSON array of objects with keys name, title, evidence_url. "+
			"Reply with [] if you know none.", orgName)

	answer, err := p.knowledge.Query(ctx, prompt)
	if err != nil {
		p.logger.Debug("knowledge recall failed", "org", orgName, "error", err)
		return nil
	}
	return parsePeople(answer)
}

func (p *Crawler) persistPerson(ctx context.Context, org *domain.Organization, extracted extractedPerson, method string, confidence float64, sourceURL, screenshotURL string) (string, error) {
	name := normalize.CleanText(extracted.Name)
	if name == "" {
		return "", fmt.Errorf("extracted person has no name")
	}

	unlock := p.locker.Lock("person:" + strings.ToLower(name) + "|" + org.ID.String())
	defer unlock()

	existing, err := p.people.ByNameAndOrg(ctx, name, org.ID)
	if err != nil {
		return "", fmt.Errorf("look up person: %w", err)
	}

	profileURL := absoluteURL(org.Website, extracted.ProfileURL)
	headshotURL := absoluteURL(org.Website, extracted.HeadshotURL)

	status := PersonCreated
	var personID uuid.UUID

	if existing != nil {
		if p.fresh(existing.UpdatedAt) {
			return PersonSkipped, nil
		}

		socials := existing.Socials
		if profileURL != "" {
			socials.ProfileURL = profileURL
		}
		if headshotURL != "" {
			socials.HeadshotURL = headshotURL
		}
		event := domain.EnrichmentEvent{
			Timestamp: time.Now().UTC(),
			Source:    "team-extraction",
			OrgID:     org.ID.String(),
			Fields:    []string{"profile_url", "headshot_url"},
		}
		err = p.people.UpdateSocials(ctx, existing.ID, socials, existing.TelegramHandle, existing.TelegramConfidence, event)
		if err != nil {
			return "", fmt.Errorf("update person: %w", err)
		}
		personID = existing.ID
		status = PersonUpdated
	} else {
		person := domain.Person{
			FullName: name,
			Socials: domain.Socials{
				ProfileURL:  profileURL,
				HeadshotURL: headshotURL,
			},
			DiscoveredFrom: &domain.Provenance{
				Source: method,
				OrgID:  org.ID,
				URL:    sourceURL,
			},
			UniqKey: normalize.PersonKey(name, ""),
		}
		personID, err = p.people.Create(ctx, person)
		if err != nil {
			return "", fmt.Errorf("create person: %w", err)
		}
	}

	title := normalize.CleanText(extracted.Title)
	if title != "" {
		_, err = p.roles.Upsert(ctx, domain.RoleEmployment{
			PersonID:  personID,
			OrgID:     org.ID,
			Title:     title,
			IsCurrent: true,
		})
		if err != nil {
			return "", fmt.Errorf("upsert role: %w", err)
		}
	}

	evidenceURL := sourceURL
	if extracted.EvidenceURL != "" {
		evidenceURL = extracted.EvidenceURL
	}
	err = p.evidence.Append(ctx, domain.Evidence{
		Type:          "team-extraction",
		URL:           evidenceURL,
		ScreenshotURL: screenshotURL,
		Extracted: domain.ExtractedFields{
			Name:        name,
			Title:       title,
			ProfileURL:  profileURL,
			HeadshotURL: headshotURL,
			Confidence:  confidence,
		},
		Method:   method,
		OrgID:    &org.ID,
		PersonID: &personID,
	})
	if err != nil {
		return "", fmt.Errorf("append evidence: %w", err)
	}

	return status, nil
}

func (p *Crawler) fresh(updatedAt time.Time) bool {
	threshold := time.Duration(p.cfg.RecrawlAfterDays) * 24 * time.Hour
	if threshold <= 0 {
		return false
	}
	return time.Since(updatedAt) < threshold
}

func (p *Crawler) saveScreenshot(orgID uuid.UUID, page *ports.RenderedPage) string {
	if p.cfg.ScreenshotDir == "" || len(page.Screenshot) == 0 {
		return ""
	}
	name := fmt.Sprintf("%s-%d.png", orgID, time.Now().Unix())
	path := filepath.Join(p.cfg.ScreenshotDir, name)
	if err := os.WriteFile(path, page.Screenshot, 0o644); err != nil {
		p.logger.Debug("save screenshot failed", "path", path, "error", err)
		return ""
	}
	return path
}

func containsRoleKeywords(page *ports.RenderedPage) bool {
	content := strings.ToLower(page.StructuredText + " " + page.HTML)
	for _, kw := range roleKeywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

// navigationLinks extracts absolute link targets from the page's anchors,
// restricted to the site's own host.
func navigationLinks(html, base string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return
		}
		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := baseURL.ResolveReference(parsed)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if abs.Host != baseURL.Host {
			return
		}
		abs.Fragment = ""
		link := abs.String()
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links
}

// absoluteURL resolves a possibly relative reference against the site base.
// An empty or unparseable reference yields empty.
func absoluteURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return baseURL.ResolveReference(parsed).String()
}

// parsePeople decodes the model's JSON array, tolerating a markdown fence.
// Anything unparseable is zero results.
func parsePeople(answer string) []extractedPerson {
	answer = stripFence(answer)
	if answer == "" {
		return nil
	}

	var people []extractedPerson
	if err := json.Unmarshal([]byte(answer), &people); err != nil {
		return nil
	}

	var valid []extractedPerson
	for _, person := range people {
		if strings.TrimSpace(person.Name) != "" {
			valid = append(valid, person)
		}
	}
	return valid
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
