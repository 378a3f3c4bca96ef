package usecase

import (
	"context"
	"testing"
	"time"

	"vcscout/internal/domain"
	"vcscout/internal/runlock"
)

func newWebsiteFinder(orgs *fakeOrgRepo, knowledge *fakeKnowledge, probe *fakeProbe, runs *fakeRunRepo) *WebsiteFinder {
	return NewWebsiteFinder(WebsiteFinderDeps{
		Orgs:      orgs,
		Knowledge: knowledge,
		Probe:     probe,
		Runs:      runs,
		Locker:    runlock.New(),
		Logger:    testLogger(),
	})
}

func TestResolveSetsValidatedWebsite(t *testing.T) {
	t.Parallel()

	orgs := newFakeOrgRepo()
	orgID := orgs.add(domain.Organization{
		Name: "North Capital",
		Sources: []domain.SourceRecord{{
			Type: "deal-feed", URL: "https://example.com/announcement", ImportedAt: time.Now(),
		}},
	})

	knowledge := &fakeKnowledge{rules: map[string]string{
		"North Capital": "The official website is https://northcap.example",
	}}
	probe := &fakeProbe{statuses: map[string]int{"https://northcap.example": 200}}
	runs := newFakeRunRepo()
	p := newWebsiteFinder(orgs, knowledge, probe, runs)

	result := p.Resolve(context.Background(), orgID, false)
	if result.State != WebsiteSet {
		t.Fatalf("state = %s, error = %s", result.State, result.Error)
	}
	if result.Website != "https://northcap.example" {
		t.Errorf("website = %q", result.Website)
	}

	org, _ := orgs.ByID(context.Background(), orgID)
	if org.Website != "https://northcap.example" {
		t.Errorf("stored website = %q", org.Website)
	}
	last := org.Sources[len(org.Sources)-1]
	if last.Type != "discovery" || !last.Validated {
		t.Errorf("provenance entry = %+v", last)
	}
	if runs.lastStatus() != domain.RunCompleted {
		t.Errorf("run status = %s", runs.lastStatus())
	}
}

func TestResolveRejectsUnreachableCandidate(t *testing.T) {
	t.Parallel()

	orgs := newFakeOrgRepo()
	orgID := orgs.add(domain.Organization{Name: "Ghost Ventures"})

	knowledge := &fakeKnowledge{rules: map[string]string{
		"Ghost Ventures": "https://ghost.invalid",
	}}
	probe := &fakeProbe{statuses: map[string]int{}} // everything 404s
	p := newWebsiteFinder(orgs, knowledge, probe, newFakeRunRepo())

	result := p.Resolve(context.Background(), orgID, false)
	if result.State != WebsiteNoCandidate {
		t.Fatalf("state = %s, want %s", result.State, WebsiteNoCandidate)
	}

	org, _ := orgs.ByID(context.Background(), orgID)
	if org.Website != "" {
		t.Errorf("unreachable candidate was persisted: %q", org.Website)
	}
}

func TestResolveSkipsExistingWebsite(t *testing.T) {
	t.Parallel()

	orgs := newFakeOrgRepo()
	orgID := orgs.add(domain.Organization{Name: "Settled", Website: "https://settled.example"})

	knowledge := &fakeKnowledge{}
	p := newWebsiteFinder(orgs, knowledge, &fakeProbe{}, newFakeRunRepo())

	result := p.Resolve(context.Background(), orgID, false)
	if result.State != WebsiteSkipped {
		t.Fatalf("state = %s, want %s", result.State, WebsiteSkipped)
	}
	if len(knowledge.prompts) != 0 {
		t.Errorf("knowledge queried %d times for an already-set website", len(knowledge.prompts))
	}
}

func TestResolveForceKeepsStillReachableWebsite(t *testing.T) {
	t.Parallel()

	orgs := newFakeOrgRepo()
	orgID := orgs.add(domain.Organization{Name: "Settled", Website: "https://settled.example"})

	knowledge := &fakeKnowledge{}
	probe := &fakeProbe{statuses: map[string]int{"https://settled.example": 301}}
	p := newWebsiteFinder(orgs, knowledge, probe, newFakeRunRepo())

	result := p.Resolve(context.Background(), orgID, true)
	if result.State != WebsiteSet {
		t.Fatalf("state = %s", result.State)
	}
	if result.Website != "https://settled.example" {
		t.Errorf("website = %q", result.Website)
	}
	if len(knowledge.prompts) != 0 {
		t.Errorf("knowledge queried for a still-valid website")
	}
}

func TestResolveForceClearsStaleWebsite(t *testing.T) {
	t.Parallel()

	orgs := newFakeOrgRepo()
	orgID := orgs.add(domain.Organization{Name: "Moved On", Website: "https://dead.example"})

	// The old website 404s and knowledge has no replacement.
	p := newWebsiteFinder(orgs, &fakeKnowledge{}, &fakeProbe{}, newFakeRunRepo())

	result := p.Resolve(context.Background(), orgID, true)
	if result.State != WebsiteNoCandidate {
		t.Fatalf("state = %s", result.State)
	}

	org, _ := orgs.ByID(context.Background(), orgID)
	if org.Website != "" {
		t.Errorf("stale website not cleared: %q", org.Website)
	}
}

func TestResolveConcurrentTriggerReportsBusy(t *testing.T) {
	t.Parallel()

	orgs := newFakeOrgRepo()
	orgID := orgs.add(domain.Organization{Name: "North Capital"})
	locker := runlock.New()
	runs := newFakeRunRepo()

	p := NewWebsiteFinder(WebsiteFinderDeps{
		Orgs:      orgs,
		Knowledge: &fakeKnowledge{},
		Probe:     &fakeProbe{},
		Runs:      runs,
		Locker:    locker,
		Logger:    testLogger(),
	})

	unlock := locker.Lock("org:" + orgID.String())
	defer unlock()

	result := p.Resolve(context.Background(), orgID, false)
	if result.Error == "" {
		t.Fatal("duplicate trigger must not run")
	}
	if runs.lastStatus() != domain.RunFailed {
		t.Errorf("run status = %s", runs.lastStatus())
	}

	org, _ := orgs.ByID(context.Background(), orgID)
	if org.Website != "" {
		t.Errorf("busy resolve mutated the organization: %q", org.Website)
	}
}

func TestResolveNoCandidateFromKnowledge(t *testing.T) {
	t.Parallel()

	orgs := newFakeOrgRepo()
	orgID := orgs.add(domain.Organization{Name: "Obscure Fund"})

	p := newWebsiteFinder(orgs, &fakeKnowledge{}, &fakeProbe{}, newFakeRunRepo())

	result := p.Resolve(context.Background(), orgID, false)
	if result.State != WebsiteNoCandidate {
		t.Fatalf("state = %s", result.State)
	}
}

func TestResolveAllCountsStates(t *testing.T) {
	t.Parallel()

	orgs := newFakeOrgRepo()
	orgs.add(domain.Organization{Name: "Has Website", Website: "https://a.example"})
	orgs.add(domain.Organization{Name: "Needs Website"})

	knowledge := &fakeKnowledge{rules: map[string]string{
		"Needs Website": "https://needs.example",
	}}
	probe := &fakeProbe{statuses: map[string]int{"https://needs.example": 200}}
	p := newWebsiteFinder(orgs, knowledge, probe, newFakeRunRepo())

	summary, err := p.ResolveAll(context.Background(), false, 0)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	// MissingWebsite filter excludes the already-set org.
	if summary.Processed != 1 || summary.Set != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestExtractCandidateURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"https://a.example", "https://a.example"},
		{"The site is https://a.example.", "https://a.example"},
		{"(https://a.example)", "https://a.example"},
		{"NONE", ""},
		{"a.example", ""},
	}
	for _, tc := range cases {
		if got := extractCandidateURL(tc.in); got != tc.want {
			t.Errorf("extractCandidateURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
