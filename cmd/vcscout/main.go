package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vcscout/internal/app"
	"vcscout/internal/config"
	"vcscout/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	var (
		force bool
		limit int
	)

	withApp := func(run func(ctx context.Context, a *app.Application) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd.Context(), a)
		}
	}

	root := &cobra.Command{
		Use:           "vcscout",
		Short:         "Discovers VC firms, their teams, and their social identities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Pull recent funding rounds and persist organizations and deals",
		RunE: withApp(func(ctx context.Context, a *app.Application) error {
			return a.Ingest(ctx)
		}),
	}

	websitesCmd := &cobra.Command{
		Use:   "websites",
		Short: "Resolve missing organization websites via knowledge search",
		RunE: withApp(func(ctx context.Context, a *app.Application) error {
			return a.ResolveWebsites(ctx, force, limit)
		}),
	}
	websitesCmd.Flags().BoolVar(&force, "force", false, "re-validate organizations that already have a website")
	websitesCmd.Flags().IntVar(&limit, "limit", 0, "maximum organizations to process (0 = all)")

	crawlCmd := &cobra.Command{
		Use:   "crawl",
		Short: "Extract team members from organization websites",
		RunE: withApp(func(ctx context.Context, a *app.Application) error {
			return a.Crawl(ctx, limit)
		}),
	}
	crawlCmd.Flags().IntVar(&limit, "limit", 0, "maximum organizations to process (0 = all)")

	enrichCmd := &cobra.Command{
		Use:   "enrich",
		Short: "Resolve social handles for people without one",
		RunE: withApp(func(ctx context.Context, a *app.Application) error {
			return a.Enrich(ctx, limit)
		}),
	}
	enrichCmd.Flags().IntVar(&limit, "limit", 0, "maximum people to process (0 = all)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline chain on the configured schedule",
		RunE: withApp(func(ctx context.Context, a *app.Application) error {
			return a.Run(ctx)
		}),
	}

	root.AddCommand(ingestCmd, websitesCmd, crawlCmd, enrichCmd, runCmd)

	if err := root.ExecuteContext(ctx); err != nil && ctx.Err() == nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
