package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"easypce-backend/lib/scrapers/evals"
	"easypce-backend/lib/scrapers/registrar"
	"easypce-backend/lib/scrapers/webfeeds"
	"easypce-backend/lib/serviceutil"
	"easypce-backend/lib/telemetry"
	"easypce-backend/services/catalog/pipeline"
	"easypce-backend/services/catalog/reconcile"
	"easypce-backend/services/catalog/report"

	"github.com/spf13/cobra"
)

type scrapeFlags struct {
	meta        bool
	terms       []int
	all         bool
	extra       bool
	incremental bool
	email       bool
}

var scrapeOpts scrapeFlags

func init() {
	flags := scrapeCmd.Flags()
	flags.BoolVar(&scrapeOpts.meta, "meta", false, "Scrape terms and subjects.")
	flags.IntSliceVar(&scrapeOpts.terms, "terms", nil, "Scrape the courses of these term codes, e.g. --terms 1174,1182.")
	flags.BoolVar(&scrapeOpts.all, "all", false, "Scrape the courses of every known term.")
	flags.BoolVar(&scrapeOpts.extra, "extra", false, "Scrape evaluations for every course already in the database.")
	flags.BoolVar(&scrapeOpts.incremental, "incremental", false, "Only scrape details and evaluations that have not completed yet.")
	flags.BoolVar(&scrapeOpts.email, "email", false, "Mail the run report to the configured recipients.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "run [--meta] [--terms <code,...>] [--all] [--extra] [--incremental]",
	Short: "Schedules the requested scrapes, waits for them and prints a report.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if !scrapeOpts.meta && !scrapeOpts.all && !scrapeOpts.extra && len(scrapeOpts.terms) == 0 {
			serviceutil.Fatal("nothing to scrape", errors.New("pass at least one of --meta, --terms, --all or --extra"))
		}

		t, err := telemetry.SetupFromEnv(ctx, "scrape")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		defer t.Shutdown(context.Background())
		telemetry.InstrumentPerfStats(ctx)

		cfg, err := loadConfig(*configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		store, database, err := openStore(cfg)
		if err != nil {
			serviceutil.Fatal("failed to open store", err)
		}
		defer database.Close()

		deps, err := clients(cfg, store)
		if err != nil {
			serviceutil.Fatal("failed to create clients", err)
		}
		opts := cfg.pipelineOptions()
		opts.Incremental = scrapeOpts.incremental
		p, err := pipeline.New(ctx, deps, opts)
		if err != nil {
			serviceutil.Fatal("failed to create pipeline", err)
		}
		slog.Info("starting run", "run_id", p.RunId())

		err = schedule(ctx, p, store, scrapeOpts)
		if err != nil {
			serviceutil.Fatal("failed to schedule units", err)
		}
		for _, u := range p.Units() {
			fmt.Printf("queued #%d %s %s\n", u.Id, u.Kind, u.Scope())
		}

		// the run stops by itself on interrupt, the report still covers it
		result := p.Wait(context.Background())
		report.Render(os.Stdout, result, report.Options{
			FailuresOnly: !*verbose,
			Verbose:      *verbose,
		})

		if scrapeOpts.email && cfg.Report.Enabled() {
			err = report.NewMailer(cfg.Report).Send(context.Background(), result)
			if err != nil {
				slog.Error("failed to mail report", "err", err)
			}
		}
		if result.Count(pipeline.Failed) > 0 {
			os.Exit(1)
		}
	},
}

func clients(cfg Config, store *reconcile.Store) (pipeline.Deps, error) {
	feedOpts, err := cfg.clientOptions("webfeeds", *verbose)
	if err != nil {
		return pipeline.Deps{}, err
	}
	registrarOpts, err := cfg.clientOptions("registrar", *verbose)
	if err != nil {
		return pipeline.Deps{}, err
	}
	evalsOpts, err := cfg.clientOptions("evals", *verbose)
	if err != nil {
		return pipeline.Deps{}, err
	}
	return pipeline.Deps{
		Feed:    webfeeds.NewClient(cfg.FeedUrl, feedOpts),
		Details: registrar.NewClient(cfg.RegistrarUrl, registrarOpts),
		Evals:   evals.NewClient(cfg.EvalsUrl, evalsOpts),
		Store:   store,
	}, nil
}

// schedule turns the flags into units. Courses always run after a fresh
// metadata scrape, --all has to wait for it to learn which terms exist.
func schedule(ctx context.Context, p *pipeline.Pipeline, store *reconcile.Store, flags scrapeFlags) error {
	needsMeta := flags.meta || flags.all || len(flags.terms) > 0
	var meta []int
	if needsMeta {
		meta = append(meta, p.ScrapeMeta())
	}

	terms := flags.terms
	if flags.all {
		result := p.Wait(ctx)
		if result.Count(pipeline.Succeeded) != len(result.Units) {
			return fmt.Errorf("metadata scrape did not succeed: %v", result.Units[0].Err)
		}
		known, err := store.ListTerms(ctx)
		if err != nil {
			return err
		}
		terms = nil
		for _, term := range known {
			terms = append(terms, term.Code)
		}
	}
	for _, term := range terms {
		p.ScrapeCoursesInTerm(term, meta...)
	}

	if flags.extra {
		keys, err := store.ListOfferingKeys(ctx)
		if err != nil {
			return err
		}
		for _, state := range keys {
			if flags.incremental && state.EvalsScraped {
				continue
			}
			p.ScrapeEvaluations(state.Key)
		}
	}
	return nil
}
