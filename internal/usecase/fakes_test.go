package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vcscout/internal/domain"
	"vcscout/internal/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeFeed struct {
	raises []domain.Raise
	err    error
}

func (f *fakeFeed) FetchRecent(context.Context, time.Duration) ([]domain.Raise, error) {
	return f.raises, f.err
}

type fakeOrgRepo struct {
	orgs map[uuid.UUID]*domain.Organization
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{orgs: map[uuid.UUID]*domain.Organization{}}
}

func (f *fakeOrgRepo) Upsert(_ context.Context, org domain.Organization) (uuid.UUID, bool, error) {
	for id, existing := range f.orgs {
		if existing.UniqKey == org.UniqKey {
			existing.Sources = append(existing.Sources, org.Sources...)
			if len(org.Focus) > 0 {
				existing.Focus = org.Focus
			}
			existing.UpdatedAt = time.Now()
			return id, false, nil
		}
	}
	id := uuid.New()
	org.ID = id
	org.CreatedAt = time.Now()
	org.UpdatedAt = org.CreatedAt
	f.orgs[id] = &org
	return id, true, nil
}

func (f *fakeOrgRepo) ByID(_ context.Context, id uuid.UUID) (*domain.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, fmt.Errorf("org %s not found", id)
	}
	copied := *org
	return &copied, nil
}

func (f *fakeOrgRepo) ListRefs(_ context.Context, filter ports.OrgFilter) ([]ports.OrgRef, error) {
	var refs []ports.OrgRef
	for id, org := range f.orgs {
		if filter.MissingWebsite && org.Website != "" {
			continue
		}
		if filter.HasWebsite && org.Website == "" {
			continue
		}
		refs = append(refs, ports.OrgRef{ID: id, Name: org.Name})
		if filter.Limit > 0 && len(refs) >= filter.Limit {
			break
		}
	}
	return refs, nil
}

func (f *fakeOrgRepo) SetWebsite(_ context.Context, id uuid.UUID, website string, src domain.SourceRecord) error {
	org, ok := f.orgs[id]
	if !ok {
		return fmt.Errorf("org %s not found", id)
	}
	org.Website = website
	org.Sources = append(org.Sources, src)
	return nil
}

func (f *fakeOrgRepo) ClearWebsite(_ context.Context, id uuid.UUID) error {
	org, ok := f.orgs[id]
	if !ok {
		return fmt.Errorf("org %s not found", id)
	}
	org.Website = ""
	return nil
}

func (f *fakeOrgRepo) add(org domain.Organization) uuid.UUID {
	id := uuid.New()
	org.ID = id
	f.orgs[id] = &org
	return id
}

type fakeDealRepo struct {
	deals map[string]domain.Deal
}

func newFakeDealRepo() *fakeDealRepo {
	return &fakeDealRepo{deals: map[string]domain.Deal{}}
}

func (f *fakeDealRepo) Insert(_ context.Context, deal domain.Deal) (bool, error) {
	if _, ok := f.deals[deal.UniqHash]; ok {
		return false, nil
	}
	deal.ID = uuid.New()
	f.deals[deal.UniqHash] = deal
	return true, nil
}

type fakePersonRepo struct {
	people     map[uuid.UUID]*domain.Person
	currentOrg map[uuid.UUID]*ports.OrgRef
	events     map[uuid.UUID][]domain.EnrichmentEvent
}

func newFakePersonRepo() *fakePersonRepo {
	return &fakePersonRepo{
		people:     map[uuid.UUID]*domain.Person{},
		currentOrg: map[uuid.UUID]*ports.OrgRef{},
		events:     map[uuid.UUID][]domain.EnrichmentEvent{},
	}
}

func (f *fakePersonRepo) ByNameAndOrg(_ context.Context, fullName string, orgID uuid.UUID) (*domain.Person, error) {
	for _, person := range f.people {
		if !strings.EqualFold(person.FullName, fullName) {
			continue
		}
		if person.DiscoveredFrom != nil && person.DiscoveredFrom.OrgID == orgID {
			copied := *person
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakePersonRepo) ByID(_ context.Context, id uuid.UUID) (*domain.Person, error) {
	person, ok := f.people[id]
	if !ok {
		return nil, fmt.Errorf("person %s not found", id)
	}
	copied := *person
	return &copied, nil
}

func (f *fakePersonRepo) Create(_ context.Context, person domain.Person) (uuid.UUID, error) {
	id := uuid.New()
	person.ID = id
	person.CreatedAt = time.Now()
	person.UpdatedAt = person.CreatedAt
	f.people[id] = &person
	return id, nil
}

func (f *fakePersonRepo) UpdateSocials(_ context.Context, id uuid.UUID, socials domain.Socials, telegramHandle string, telegramConfidence float64, event domain.EnrichmentEvent) error {
	person, ok := f.people[id]
	if !ok {
		return fmt.Errorf("person %s not found", id)
	}
	person.Socials = socials
	person.TelegramHandle = telegramHandle
	person.TelegramConfidence = telegramConfidence
	person.UpdatedAt = time.Now()
	f.events[id] = append(f.events[id], event)
	return nil
}

func (f *fakePersonRepo) ListUnenriched(_ context.Context, limit int) ([]domain.Person, error) {
	var out []domain.Person
	for _, person := range f.people {
		if person.Socials.Farcaster != nil {
			continue
		}
		out = append(out, *person)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakePersonRepo) CurrentOrg(_ context.Context, personID uuid.UUID) (*ports.OrgRef, error) {
	return f.currentOrg[personID], nil
}

func (f *fakePersonRepo) add(person domain.Person) uuid.UUID {
	id := uuid.New()
	person.ID = id
	f.people[id] = &person
	return id
}

type fakeRoleRepo struct {
	roles map[string]domain.RoleEmployment
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{roles: map[string]domain.RoleEmployment{}}
}

func (f *fakeRoleRepo) Upsert(_ context.Context, role domain.RoleEmployment) (bool, error) {
	key := fmt.Sprintf("%s|%s|%s|%t", role.PersonID, role.OrgID, role.Title, role.IsCurrent)
	if _, ok := f.roles[key]; ok {
		return false, nil
	}
	role.ID = uuid.New()
	f.roles[key] = role
	return true, nil
}

type fakeEvidenceRepo struct {
	rows []domain.Evidence
}

func (f *fakeEvidenceRepo) Append(_ context.Context, ev domain.Evidence) error {
	f.rows = append(f.rows, ev)
	return nil
}

type runRecord struct {
	agentName string
	status    domain.RunStatus
	errMsg    string
}

type fakeRunRepo struct {
	runs map[uuid.UUID]*runRecord
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: map[uuid.UUID]*runRecord{}}
}

func (f *fakeRunRepo) Start(_ context.Context, agentName string, _ map[string]any) (uuid.UUID, error) {
	id := uuid.New()
	f.runs[id] = &runRecord{agentName: agentName, status: domain.RunRunning}
	return id, nil
}

func (f *fakeRunRepo) Finish(_ context.Context, id uuid.UUID, status domain.RunStatus, _ map[string]any, errMessage string) error {
	rec, ok := f.runs[id]
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}
	rec.status = status
	rec.errMsg = errMessage
	return nil
}

func (f *fakeRunRepo) lastStatus() domain.RunStatus {
	for _, rec := range f.runs {
		return rec.status
	}
	return ""
}

// fakeKnowledge answers prompts by first matching substring rule.
type fakeKnowledge struct {
	rules   map[string]string
	err     error
	prompts []string
}

func (f *fakeKnowledge) Query(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	for needle, answer := range f.rules {
		if strings.Contains(prompt, needle) {
			return answer, nil
		}
	}
	return "NONE", nil
}

type fakeRenderer struct {
	pages map[string]*ports.RenderedPage
}

func (f *fakeRenderer) Render(_ context.Context, url string) (*ports.RenderedPage, error) {
	page, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("render %s: no such page", url)
	}
	return page, nil
}

type fakeProbe struct {
	statuses map[string]int
}

func (f *fakeProbe) Check(_ context.Context, url string) (int, error) {
	status, ok := f.statuses[url]
	if !ok {
		return 404, nil
	}
	return status, nil
}

type fakeSocial struct {
	results map[string][]ports.SocialProfile
	err     error
}

func (f *fakeSocial) Search(_ context.Context, query string, _ int) ([]ports.SocialProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}
