// Package usecase holds the pipeline orchestration: deal ingestion, website
// resolution, team extraction, and social enrichment. Each pipeline is
// independently re-runnable and converges to the same stored state.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"vcscout/internal/domain"
	"vcscout/internal/normalize"
	"vcscout/internal/ports"
	"vcscout/internal/runlock"
)

// IngestorDeps wires the driven adapters into the deal-ingestion pipeline.
type IngestorDeps struct {
	Feed   ports.DealFeed
	Orgs   ports.OrgRepository
	Deals  ports.DealRepository
	Runs   ports.RunRepository
	Locker *runlock.KeyedLocker
	Logger *slog.Logger
}

// Ingestor pulls funding-round records from the feed and resolves them into
// organizations and deals.
type Ingestor struct {
	feed   ports.DealFeed
	orgs   ports.OrgRepository
	deals  ports.DealRepository
	runs   ports.RunRepository
	locker *runlock.KeyedLocker
	logger *slog.Logger
}

// IngestSummary reports what one ingestion run did.
type IngestSummary struct {
	Raises       int      `json:"raises"`
	OrgsCreated  int      `json:"orgs_created"`
	OrgsUpdated  int      `json:"orgs_updated"`
	DealsCreated int      `json:"deals_created"`
	DealsSkipped int      `json:"deals_skipped"`
	Errors       []string `json:"errors,omitempty"`
}

// NewIngestor constructs the pipeline.
func NewIngestor(deps IngestorDeps) *Ingestor {
	return &Ingestor{
		feed:   deps.Feed,
		orgs:   deps.Orgs,
		deals:  deps.Deals,
		runs:   deps.Runs,
		locker: deps.Locker,
		logger: deps.Logger,
	}
}

// Ingest fetches recent raises and persists them. One malformed record logs
// an error and the batch continues.
func (p *Ingestor) Ingest(ctx context.Context, lookback time.Duration) (*IngestSummary, error) {
	runID, err := p.runs.Start(ctx, "deal-ingest", map[string]any{
		"lookback": lookback.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	summary := &IngestSummary{}

	raises, err := p.feed.FetchRecent(ctx, lookback)
	if err != nil {
		ferr := fmt.Errorf("fetch raises: %w", err)
		_ = p.runs.Finish(ctx, runID, domain.RunFailed, summaryMap(summary), ferr.Error())
		return nil, ferr
	}
	summary.Raises = len(raises)

	for _, raise := range raises {
		if err := p.ingestOne(ctx, raise, summary); err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", raise.ProjectName, err))
			p.logger.Error("ingest record failed", "project", raise.ProjectName, "error", err)
		}
	}

	if err := p.runs.Finish(ctx, runID, domain.RunCompleted, summaryMap(summary), ""); err != nil {
		return summary, fmt.Errorf("finish run: %w", err)
	}

	p.logger.Info("ingest done",
		"raises", summary.Raises,
		"orgs_created", summary.OrgsCreated,
		"deals_created", summary.DealsCreated,
		"deals_skipped", summary.DealsSkipped,
		"errors", len(summary.Errors),
	)
	return summary, nil
}

func (p *Ingestor) ingestOne(ctx context.Context, raise domain.Raise, summary *IngestSummary) error {
	if raise.ProjectName == "" {
		return fmt.Errorf("record has no project name")
	}

	// No website is known at this stage, so the key is name-only. The later
	// website pipeline corrects the record, not the key.
	uniqKey := normalize.OrgKey(raise.ProjectName, "")

	unlock := p.locker.Lock("org:" + uniqKey)
	defer unlock()

	org := domain.Organization{
		Name:    raise.ProjectName,
		Kind:    domain.KindStartup,
		Focus:   focusTags(raise),
		UniqKey: uniqKey,
		Sources: []domain.SourceRecord{{
			Type:       "deal-feed",
			URL:        raise.SourceURL,
			ImportedAt: time.Now().UTC(),
		}},
	}

	orgID, created, err := p.orgs.Upsert(ctx, org)
	if err != nil {
		return fmt.Errorf("upsert organization: %w", err)
	}
	if created {
		summary.OrgsCreated++
	} else {
		summary.OrgsUpdated++
	}

	// A deal with no amount, or a literal zero, carries no signal worth a row.
	if raise.AmountUSD == nil || *raise.AmountUSD == 0 {
		summary.DealsSkipped++
		return nil
	}
	amount := *raise.AmountUSD

	deal := domain.Deal{
		OrgID:            orgID,
		Round:            raise.Round,
		AmountEUR:        normalize.AmountToEUR(amount, "USD", nil),
		AmountOriginal:   amount,
		CurrencyOriginal: "USD",
		AnnouncedOn:      raise.AnnouncedOn,
		Investors:        raise.Investors,
		Source: domain.SourceRecord{
			Type:       "deal-feed",
			URL:        raise.SourceURL,
			ImportedAt: time.Now().UTC(),
		},
		UniqHash: normalize.DealHash(raise.ProjectName, hashDate(raise.AnnouncedOn), raise.Round, amount),
	}

	inserted, err := p.deals.Insert(ctx, deal)
	if err != nil {
		return fmt.Errorf("insert deal: %w", err)
	}
	if inserted {
		summary.DealsCreated++
	} else {
		summary.DealsSkipped++
	}
	return nil
}

// hashDate substitutes "now" for a missing announce date so the hash stays
// stable within a run. The stored AnnouncedOn stays nil.
func hashDate(announced *time.Time) *time.Time {
	if announced != nil {
		return announced
	}
	now := time.Now().UTC()
	return &now
}

func focusTags(raise domain.Raise) []string {
	var tags []string
	if raise.Category != "" {
		tags = append(tags, raise.Category)
	}
	if raise.Sector != "" && raise.Sector != raise.Category {
		tags = append(tags, raise.Sector)
	}
	tags = append(tags, raise.Chains...)
	return tags
}

// summaryMap flattens a summary struct into the run log's JSON shape.
func summaryMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}
