package usecase

import (
	"context"
	"testing"
	"time"

	"vcscout/internal/domain"
	"vcscout/internal/runlock"
)

func float(v float64) *float64 { return &v }

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func newIngestor(feed *fakeFeed, orgs *fakeOrgRepo, deals *fakeDealRepo, runs *fakeRunRepo) *Ingestor {
	return NewIngestor(IngestorDeps{
		Feed:   feed,
		Orgs:   orgs,
		Deals:  deals,
		Runs:   runs,
		Locker: runlock.New(),
		Logger: testLogger(),
	})
}

func TestIngestIsIdempotent(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{raises: []domain.Raise{{
		ProjectName: "Acme Protocol",
		Round:       "Seed",
		AmountUSD:   float(2.5),
		AnnouncedOn: date("2024-01-15"),
		Investors:   []string{"North Capital"},
		SourceURL:   "https://example.com/acme",
	}}}
	orgs := newFakeOrgRepo()
	deals := newFakeDealRepo()
	runs := newFakeRunRepo()
	p := newIngestor(feed, orgs, deals, runs)

	first, err := p.Ingest(context.Background(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if first.OrgsCreated != 1 || first.DealsCreated != 1 {
		t.Fatalf("first run: %+v", first)
	}

	second, err := p.Ingest(context.Background(), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if second.OrgsCreated != 0 || second.OrgsUpdated != 1 {
		t.Errorf("second run orgs: %+v", second)
	}
	if second.DealsCreated != 0 || second.DealsSkipped != 1 {
		t.Errorf("second run deals: %+v", second)
	}

	if len(orgs.orgs) != 1 {
		t.Errorf("org rows = %d, want 1", len(orgs.orgs))
	}
	if len(deals.deals) != 1 {
		t.Errorf("deal rows = %d, want 1", len(deals.deals))
	}
	for _, org := range orgs.orgs {
		if len(org.Sources) != 2 {
			t.Errorf("sources = %d, want one appended per run", len(org.Sources))
		}
	}
}

func TestIngestDistinctAmountsDistinctDeals(t *testing.T) {
	t.Parallel()

	base := domain.Raise{
		ProjectName: "Acme Protocol",
		Round:       "Seed",
		AnnouncedOn: date("2024-01-15"),
	}
	first := base
	first.AmountUSD = float(2.5)
	second := base
	second.AmountUSD = float(2.6)

	feed := &fakeFeed{raises: []domain.Raise{first, second}}
	orgs := newFakeOrgRepo()
	deals := newFakeDealRepo()
	p := newIngestor(feed, orgs, deals, newFakeRunRepo())

	summary, err := p.Ingest(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if summary.DealsCreated != 2 {
		t.Errorf("deals created = %d, want 2", summary.DealsCreated)
	}
	if len(orgs.orgs) != 1 {
		t.Errorf("org rows = %d, want 1", len(orgs.orgs))
	}
}

func TestIngestSkipsMissingAndZeroAmount(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{raises: []domain.Raise{
		{ProjectName: "Stealthco", Round: "Pre-seed"},
		{ProjectName: "Zeroco", Round: "Seed", AmountUSD: float(0)},
	}}
	deals := newFakeDealRepo()
	p := newIngestor(feed, newFakeOrgRepo(), deals, newFakeRunRepo())

	summary, err := p.Ingest(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if summary.DealsSkipped != 2 || summary.DealsCreated != 0 {
		t.Errorf("summary = %+v", summary)
	}
	if len(deals.deals) != 0 {
		t.Errorf("deal rows = %d, want 0", len(deals.deals))
	}
	// The organizations are still worth keeping.
	if summary.OrgsCreated != 2 {
		t.Errorf("orgs created = %d, want 2", summary.OrgsCreated)
	}
}

func TestIngestIsolatesRecordErrors(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{raises: []domain.Raise{
		{ProjectName: ""},
		{ProjectName: "Goodco", AmountUSD: float(1)},
	}}
	runs := newFakeRunRepo()
	p := newIngestor(feed, newFakeOrgRepo(), newFakeDealRepo(), runs)

	summary, err := p.Ingest(context.Background(), time.Hour)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(summary.Errors) != 1 {
		t.Errorf("errors = %v, want 1", summary.Errors)
	}
	if summary.DealsCreated != 1 {
		t.Errorf("deals created = %d, want 1", summary.DealsCreated)
	}
	if runs.lastStatus() != domain.RunCompleted {
		t.Errorf("run status = %s, want completed", runs.lastStatus())
	}
}
