// Package app wires configuration, storage, and adapters into the runnable
// pipelines.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vcscout/internal/config"
	"vcscout/internal/feed"
	"vcscout/internal/infrastructure/browser"
	"vcscout/internal/infrastructure/defillama"
	"vcscout/internal/infrastructure/llm"
	"vcscout/internal/infrastructure/neynar"
	"vcscout/internal/infrastructure/probe"
	"vcscout/internal/infrastructure/scheduler"
	"vcscout/internal/infrastructure/telegram"
	"vcscout/internal/logging"
	"vcscout/internal/ports"
	"vcscout/internal/runlock"
	"vcscout/internal/store"
	"vcscout/internal/usecase"
)

// Application wires storage and adapters to use cases.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db       *sql.DB
	locker   *runlock.KeyedLocker
	renderer *browser.Renderer
	notifier ports.Notifier

	orgs   ports.OrgRepository
	people ports.PersonRepository
	runs   ports.RunRepository
	source ports.DealFeed

	ingestor *usecase.Ingestor
	websites *usecase.WebsiteFinder
	crawler  *usecase.Crawler
	enricher *usecase.Enricher
}

// New opens the store, applies migrations, and wires all pipelines.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := store.Open(cfg.Database.DSN, logging.Component(baseLogger, "store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := store.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	a := &Application{
		cfg:    cfg,
		logger: baseLogger,
		db:     db,
		locker: runlock.New(),
		orgs:   store.NewOrgRepo(db),
		people: store.NewPersonRepo(db),
		runs:   store.NewRunRepo(db),
	}

	registry := feed.NewRegistry()
	registry.Register(defillama.NewLoader(cfg.Feed.DataFile, cfg.Feed.URL, nil))
	a.source = feed.NewSource(registry, []string{"defillama"}, cfg.Feed.BatchSize,
		logging.Component(baseLogger, "feed"))

	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		a.notifier = telegram.NewNotifier(
			cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	a.ingestor = usecase.NewIngestor(usecase.IngestorDeps{
		Feed:   a.source,
		Orgs:   a.orgs,
		Deals:  store.NewDealRepo(db),
		Runs:   a.runs,
		Locker: a.locker,
		Logger: logging.Component(baseLogger, "ingest"),
	})

	return a, nil
}

// Close releases the store connection and the shared browser, if started.
func (a *Application) Close() error {
	if a.renderer != nil {
		_ = a.renderer.Close()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Ingest runs one deal-ingestion pass and reports the outcome.
func (a *Application) Ingest(ctx context.Context) error {
	summary, err := a.ingestor.Ingest(ctx, a.cfg.Feed.Lookback())
	if err != nil {
		return err
	}
	a.notify(ctx, fmt.Sprintf("ingest: %d raises, %d orgs created, %d deals created, %d skipped, %d errors",
		summary.Raises, summary.OrgsCreated, summary.DealsCreated, summary.DealsSkipped, len(summary.Errors)))
	return nil
}

// ResolveWebsites fills in missing organization websites.
func (a *Application) ResolveWebsites(ctx context.Context, force bool, limit int) error {
	finder, err := a.websiteFinder()
	if err != nil {
		return err
	}

	summary, err := finder.ResolveAll(ctx, force, limit)
	if err != nil {
		return err
	}
	a.notify(ctx, fmt.Sprintf("websites: %d processed, %d set, %d skipped, %d without candidate",
		summary.Processed, summary.Set, summary.Skipped, summary.NoCandidate))
	return nil
}

// Crawl extracts team members for organizations with known websites.
func (a *Application) Crawl(ctx context.Context, limit int) error {
	crawler, err := a.teamCrawler(ctx)
	if err != nil {
		return err
	}

	summary, err := crawler.CrawlAll(ctx, limit)
	if err != nil {
		return err
	}
	a.notify(ctx, fmt.Sprintf("crawl: %d orgs, %d people created, %d updated, %d skipped, %d errors",
		summary.Processed, summary.Created, summary.Updated, summary.Skipped, len(summary.Errors)))
	return nil
}

// Enrich resolves social handles for people without one.
func (a *Application) Enrich(ctx context.Context, limit int) error {
	enricher, err := a.socialEnricher()
	if err != nil {
		return err
	}

	summary, err := enricher.EnrichAll(ctx, limit)
	if err != nil {
		return err
	}
	a.notify(ctx, fmt.Sprintf("enrich: %d processed, %d enriched, %d unchanged, %d errors",
		summary.Processed, summary.Enriched, summary.Unchanged, len(summary.Errors)))
	return nil
}

// Run executes the full chain on the configured schedule until the context
// is cancelled. A failing stage logs and the chain continues; order matters
// because each stage feeds the next.
func (a *Application) Run(ctx context.Context) error {
	sched := scheduler.NewIntervalScheduler(
		a.cfg.Scheduler.Interval(),
		a.cfg.Scheduler.Location(),
		logging.Component(a.logger, "scheduler"),
	)

	stages := []stage{
		{"ingest", a.Ingest},
		{"websites", func(ctx context.Context) error { return a.ResolveWebsites(ctx, false, 0) }},
		{"crawl", func(ctx context.Context) error { return a.Crawl(ctx, 0) }},
		{"enrich", func(ctx context.Context) error { return a.Enrich(ctx, 0) }},
	}

	job := func(time.Time) {
		for _, s := range stages {
			if err := s.run(ctx); err != nil {
				a.logger.Error("stage failed", "stage", s.name, "error", err)
			}
		}
	}

	if err := sched.Start(ctx, job); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop(context.Background())

	<-ctx.Done()
	return ctx.Err()
}

// websiteFinder builds the website pipeline, failing fast when the knowledge
// credential is missing.
func (a *Application) websiteFinder() (*usecase.WebsiteFinder, error) {
	if a.websites != nil {
		return a.websites, nil
	}
	if a.cfg.Knowledge.APIKey == "" {
		return nil, fmt.Errorf("PERPLEXITY_API_KEY is required for website resolution")
	}

	a.websites = usecase.NewWebsiteFinder(usecase.WebsiteFinderDeps{
		Orgs:      a.orgs,
		Knowledge: llm.NewPerplexityClient(a.cfg.Knowledge),
		Probe:     probe.NewChecker(nil, a.cfg.Crawler.UserAgent),
		Runs:      a.runs,
		Locker:    a.locker,
		Logger:    logging.Component(a.logger, "websites"),
	})
	return a.websites, nil
}

// teamCrawler builds the extraction pipeline, failing fast when either model
// credential is missing.
func (a *Application) teamCrawler(ctx context.Context) (*usecase.Crawler, error) {
	if a.crawler != nil {
		return a.crawler, nil
	}

	var missing []string
	if a.cfg.Extraction.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if a.cfg.Knowledge.APIKey == "" {
		missing = append(missing, "PERPLEXITY_API_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s required for team extraction", strings.Join(missing, ", "))
	}

	extractor, err := llm.NewGeminiClient(ctx, a.cfg.Extraction)
	if err != nil {
		return nil, fmt.Errorf("build extraction client: %w", err)
	}

	a.renderer = browser.NewRenderer(a.cfg.Crawler, logging.Component(a.logger, "browser"))
	a.crawler = usecase.NewCrawler(usecase.CrawlerDeps{
		Orgs:      a.orgs,
		People:    a.people,
		Roles:     store.NewRoleRepo(a.db),
		Evidence:  store.NewEvidenceRepo(a.db),
		Runs:      a.runs,
		Renderer:  a.renderer,
		Probe:     probe.NewChecker(nil, a.cfg.Crawler.UserAgent),
		Extractor: extractor,
		Knowledge: llm.NewPerplexityClient(a.cfg.Knowledge),
		Locker:    a.locker,
		Logger:    logging.Component(a.logger, "crawl"),
		Config:    a.cfg.Crawler,
	})
	return a.crawler, nil
}

// socialEnricher builds the enrichment pipeline, failing fast when either
// lookup credential is missing.
func (a *Application) socialEnricher() (*usecase.Enricher, error) {
	if a.enricher != nil {
		return a.enricher, nil
	}

	var missing []string
	if a.cfg.Knowledge.APIKey == "" {
		missing = append(missing, "PERPLEXITY_API_KEY")
	}
	if a.cfg.Farcaster.APIKey == "" {
		missing = append(missing, "NEYNAR_API_KEY")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s required for social enrichment", strings.Join(missing, ", "))
	}

	a.enricher = usecase.NewEnricher(usecase.EnricherDeps{
		People:    a.people,
		Knowledge: llm.NewPerplexityClient(a.cfg.Knowledge),
		Social:    neynar.NewClient(a.cfg.Farcaster),
		Runs:      a.runs,
		Locker:    a.locker,
		Logger:    logging.Component(a.logger, "enrich"),
		Config:    a.cfg.Enrichment,
	})
	return a.enricher, nil
}

func (a *Application) notify(ctx context.Context, summary string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.PublishSummary(ctx, summary); err != nil {
		a.logger.Error("publish summary failed", "error", err)
	}
}

type stage struct {
	name string
	run  func(context.Context) error
}
