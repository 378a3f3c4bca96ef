package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"vcscout/internal/config"
	"vcscout/internal/domain"
	"vcscout/internal/ports"
	"vcscout/internal/runlock"
)

type enrichFixture struct {
	people    *fakePersonRepo
	knowledge *fakeKnowledge
	social    *fakeSocial
	runs      *fakeRunRepo
	enricher  *Enricher
}

func newEnrichFixture() *enrichFixture {
	f := &enrichFixture{
		people:    newFakePersonRepo(),
		knowledge: &fakeKnowledge{rules: map[string]string{}},
		social:    &fakeSocial{results: map[string][]ports.SocialProfile{}},
		runs:      newFakeRunRepo(),
	}
	f.enricher = NewEnricher(EnricherDeps{
		People:    f.people,
		Knowledge: f.knowledge,
		Social:    f.social,
		Runs:      f.runs,
		Locker:    runlock.New(),
		Logger:    testLogger(),
		Config:    config.EnrichmentConfig{MinConfidence: 0.6},
	})
	return f
}

func (f *enrichFixture) addPerson(name string, orgName string) uuid.UUID {
	id := f.people.add(domain.Person{FullName: name})
	if orgName != "" {
		f.people.currentOrg[id] = &ports.OrgRef{ID: uuid.New(), Name: orgName}
	}
	return id
}

func TestEnrichCrossPlatformHandleMatch(t *testing.T) {
	t.Parallel()

	f := newEnrichFixture()
	id := f.addPerson("Alice Smith", "North Capital")

	f.knowledge.rules["Twitter/X handle of Alice Smith"] = `{"handle": "alicesmith", "confidence": 0.8}`
	f.social.results["alicesmith"] = []ports.SocialProfile{
		{Username: "AliceSmith", ProfileID: "42", DisplayName: "Alice Smith"},
	}

	enriched, err := f.enricher.Enrich(context.Background(), id)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if !enriched {
		t.Fatal("expected enrichment")
	}

	person, _ := f.people.ByID(context.Background(), id)
	if person.Socials.Twitter == nil || person.Socials.Twitter.Handle != "alicesmith" {
		t.Errorf("twitter = %+v", person.Socials.Twitter)
	}
	fc := person.Socials.Farcaster
	if fc == nil || fc.Handle != "AliceSmith" || fc.Confidence != 0.8 || fc.ProfileID != "42" {
		t.Errorf("farcaster = %+v", fc)
	}
	// Case-insensitively equal handles on two platforms infer telegram.
	if person.TelegramHandle != "alicesmith" || person.TelegramConfidence != 0.6 {
		t.Errorf("telegram = %q @ %v", person.TelegramHandle, person.TelegramConfidence)
	}

	events := f.people.events[id]
	if len(events) != 1 {
		t.Fatalf("events = %d, want single merge write", len(events))
	}
	if len(events[0].Fields) != 3 {
		t.Errorf("event fields = %v", events[0].Fields)
	}
}

func TestEnrichDisagreeingHandlesGuessFarcasterTelegram(t *testing.T) {
	t.Parallel()

	f := newEnrichFixture()
	id := f.addPerson("Alice Smith", "North Capital")

	// Twitter resolves, but the farcaster username differs: no exact handle
	// match, so the name search supplies it instead.
	f.knowledge.rules["Twitter/X handle of Alice Smith"] = `{"handle": "alicesmith", "confidence": 0.9}`
	f.social.results["Alice Smith"] = []ports.SocialProfile{
		{Username: "alice-eth", ProfileID: "9", DisplayName: "Alice Smith", Bio: "gm"},
	}

	enriched, err := f.enricher.Enrich(context.Background(), id)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if !enriched {
		t.Fatal("expected enrichment")
	}

	person, _ := f.people.ByID(context.Background(), id)
	if person.Socials.Twitter == nil || person.Socials.Twitter.Handle != "alicesmith" {
		t.Errorf("twitter = %+v", person.Socials.Twitter)
	}
	fc := person.Socials.Farcaster
	if fc == nil || fc.Handle != "alice-eth" {
		t.Fatalf("farcaster = %+v", fc)
	}
	// Disagreeing handles still yield a weak telegram guess from farcaster.
	if person.TelegramHandle != "alice-eth" || person.TelegramConfidence != 0.5 {
		t.Errorf("telegram = %q @ %v", person.TelegramHandle, person.TelegramConfidence)
	}
}

func TestEnrichTwitterOnlyInfersWeakTelegram(t *testing.T) {
	t.Parallel()

	f := newEnrichFixture()
	id := f.addPerson("Alice Smith", "North Capital")

	f.knowledge.rules["Alice Smith"] = `{"handle": "@alicesmith", "confidence": 0.7}`

	enriched, err := f.enricher.Enrich(context.Background(), id)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if !enriched {
		t.Fatal("expected enrichment")
	}

	person, _ := f.people.ByID(context.Background(), id)
	if person.Socials.Twitter == nil || person.Socials.Twitter.Handle != "alicesmith" {
		t.Errorf("twitter = %+v (mention decoration must be stripped)", person.Socials.Twitter)
	}
	if person.Socials.Farcaster != nil {
		t.Errorf("farcaster = %+v, want none", person.Socials.Farcaster)
	}
	if person.TelegramHandle != "alicesmith" || person.TelegramConfidence != 0.5 {
		t.Errorf("telegram = %q @ %v", person.TelegramHandle, person.TelegramConfidence)
	}
}

func TestEnrichLowConfidenceTwitterRejected(t *testing.T) {
	t.Parallel()

	f := newEnrichFixture()
	id := f.addPerson("Bob Jones", "")

	f.knowledge.rules["Bob Jones"] = `{"handle": "bjones", "confidence": 0.5}`

	enriched, err := f.enricher.Enrich(context.Background(), id)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if enriched {
		t.Fatal("below-threshold handle must not be merged")
	}
	if len(f.people.events[id]) != 0 {
		t.Errorf("history written without any accepted signal")
	}
}

func TestEnrichNameSearchScoring(t *testing.T) {
	t.Parallel()

	f := newEnrichFixture()
	id := f.people.add(domain.Person{FullName: "Grace Hopper", Email: "grace@northcap.example"})
	f.people.currentOrg[id] = &ports.OrgRef{ID: uuid.New(), Name: "North Capital"}

	// No twitter handle; the name search must pick the best candidate:
	// exact name (0.5) + org mention in bio (0.2) beats partial name (0.3).
	f.social.results["Grace Hopper"] = []ports.SocialProfile{
		{Username: "gracious", DisplayName: "Grace H", Bio: "sailor"},
		{Username: "ghopper", ProfileID: "7", DisplayName: "Grace Hopper", Bio: "investing at North Capital"},
	}

	enriched, err := f.enricher.Enrich(context.Background(), id)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if !enriched {
		t.Fatal("expected enrichment")
	}

	person, _ := f.people.ByID(context.Background(), id)
	fc := person.Socials.Farcaster
	if fc == nil || fc.Handle != "ghopper" {
		t.Fatalf("farcaster = %+v", fc)
	}
	if fc.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.5 + 0.2", fc.Confidence)
	}
	// Single accepted handle: weak telegram guess.
	if person.TelegramHandle != "ghopper" || person.TelegramConfidence != 0.5 {
		t.Errorf("telegram = %q @ %v", person.TelegramHandle, person.TelegramConfidence)
	}
}

func TestEnrichNothingFoundLeavesPersonUntouched(t *testing.T) {
	t.Parallel()

	f := newEnrichFixture()
	id := f.addPerson("Unknown Person", "")

	enriched, err := f.enricher.Enrich(context.Background(), id)
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if enriched {
		t.Fatal("expected no enrichment")
	}

	// Still selectable by a later run.
	people, _ := f.people.ListUnenriched(context.Background(), 10)
	if len(people) != 1 {
		t.Errorf("unenriched = %d, want 1", len(people))
	}
}

func TestEnrichAllSummary(t *testing.T) {
	t.Parallel()

	f := newEnrichFixture()
	f.addPerson("Alice Smith", "North Capital")
	f.addPerson("Nobody Findable", "")

	f.knowledge.rules["Alice Smith"] = `{"handle": "alicesmith", "confidence": 0.9}`

	summary, err := f.enricher.EnrichAll(context.Background(), 10)
	if err != nil {
		t.Fatalf("EnrichAll: %v", err)
	}
	if summary.Processed != 2 || summary.Enriched != 1 || summary.Unchanged != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if f.runs.lastStatus() != domain.RunCompleted {
		t.Errorf("run status = %s", f.runs.lastStatus())
	}
}

func TestScoreProfileCapsAtOne(t *testing.T) {
	t.Parallel()

	person := &domain.Person{FullName: "Ada Lovelace", Email: "ada@fund.example"}
	profile := ports.SocialProfile{
		DisplayName:       "Ada Lovelace",
		Bio:               "partner at Big Fund",
		VerifiedAddresses: []string{"ada@fund.example"},
	}
	if got := scoreProfile(person, "Big Fund", profile); got != 1.0 {
		t.Errorf("score = %v, want capped 1.0", got)
	}
}

func TestInferTelegram(t *testing.T) {
	t.Parallel()

	tw := &domain.SocialHandle{Handle: "alicesmith"}
	fcSame := &domain.SocialHandle{Handle: "AliceSmith"}
	fcOther := &domain.SocialHandle{Handle: "alice-eth"}

	if h, c := inferTelegram(tw, fcSame); h != "alicesmith" || c != 0.6 {
		t.Errorf("equal handles: %q @ %v", h, c)
	}
	if h, c := inferTelegram(tw, fcOther); h != "alice-eth" || c != 0.5 {
		t.Errorf("disagreeing handles: %q @ %v", h, c)
	}
	if h, c := inferTelegram(nil, fcOther); h != "alice-eth" || c != 0.5 {
		t.Errorf("single handle: %q @ %v", h, c)
	}
	if h, c := inferTelegram(nil, nil); h != "" || c != 0 {
		t.Errorf("no handles: %q @ %v", h, c)
	}
}
