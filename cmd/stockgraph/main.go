package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stockelper/stockgraph/internal/collect"
	"github.com/stockelper/stockgraph/internal/config"
	"github.com/stockelper/stockgraph/internal/credentials"
	"github.com/stockelper/stockgraph/internal/dates"
	"github.com/stockelper/stockgraph/internal/graph"
	"github.com/stockelper/stockgraph/internal/ingest"
	"github.com/stockelper/stockgraph/internal/platform/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type cliOptions struct {
	dateStart      string
	dateEnd        string
	envPath        string
	streaming      bool
	batchSize      int
	noSkipExisting bool
	updateOnly     bool
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	cmd := &cobra.Command{
		Use:   "stockgraph",
		Short: "Ingest listed-company data into the stock knowledge graph",
		Long: `stockgraph collects the exchange listing universe, per-company profiles,
daily prices, financial statements, and competitor relationships, and upserts
them into Neo4j one bounded batch at a time. Reruns resume: entities already
in the graph are skipped unless told otherwise.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.dateStart, "date_st", "", "start date, YYYYMMDD inclusive")
	cmd.Flags().StringVar(&opts.dateEnd, "date_fn", "", "end date, YYYYMMDD inclusive")
	_ = cmd.MarkFlagRequired("date_st")
	_ = cmd.MarkFlagRequired("date_fn")
	cmd.Flags().StringVar(&opts.envPath, "env", ".env", "path to the environment file")
	cmd.Flags().BoolVar(&opts.streaming, "streaming", true, "use the streaming batch pipeline")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 100, "entities processed per batch")
	cmd.Flags().BoolVar(&opts.noSkipExisting, "no-skip-existing", false, "reprocess entities already in the graph")
	cmd.Flags().BoolVar(&opts.updateOnly, "update-only", false, "only fill missing dates for entities already in the graph")
	return cmd
}

func run(ctx context.Context, opts *cliOptions) error {
	if !opts.streaming {
		return fmt.Errorf("the non-streaming path has been removed; rerun with --streaming")
	}
	if opts.updateOnly && opts.noSkipExisting {
		return fmt.Errorf("--update-only and --no-skip-existing are mutually exclusive")
	}
	dateRange, err := dates.ParseRange(opts.dateStart, opts.dateEnd)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.envPath)
	if err != nil {
		return err
	}

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := graph.NewClient(ctx, cfg.Neo4j, log)
	if err != nil {
		return fmt.Errorf("connect graph store: %w", err)
	}
	defer client.Close(context.Background())
	if err := client.EnsureConstraints(ctx); err != nil {
		return fmt.Errorf("ensure graph constraints: %w", err)
	}

	creds := credentials.NewStore(cfg.KIS.AccessToken, collect.NewTokenSource(cfg.KIS), cfg.EnvPath, "KIS_ACCESS_TOKEN", log)
	if creds.Current().Token == "" {
		if _, err := creds.Refresh(ctx); err != nil {
			return fmt.Errorf("obtain access token: %w", err)
		}
	}

	retry := ingest.RetryPolicy{
		MaxAttempts: ingest.DefaultMaxAttempts,
		Base:        ingest.DefaultBackoffBase,
		Factor:      ingest.DefaultBackoffFactor,
		Refresh: func(ctx context.Context) error {
			_, err := creds.Refresh(ctx)
			return err
		},
	}

	kis := collect.NewKIS(cfg.KIS, creds, cfg.SourceInterval, log)
	orc := &ingest.Orchestrator{
		Planner: &ingest.Planner{
			Listings:    collect.NewKRX("", log),
			Competitors: collect.NewMongoCompetitors(cfg.Mongo, log),
			Retry:       retry,
			Log:         log,
		},
		Pipeline: &ingest.Pipeline{
			Profiles: kis,
			Prices:   kis,
			Filings:  collect.NewDart(cfg.Dart, cfg.SourceInterval, log),
			Sink:     client,
			Retry:    retry,
			Reporter: ingest.NewLogReporter(log),
			Log:      log,
		},
		Sink:     client,
		Reporter: ingest.NewLogReporter(log),
		Opts: ingest.Options{
			BatchSize:    opts.batchSize,
			Dates:        dateRange,
			SkipExisting: !opts.noSkipExisting,
			UpdateOnly:   opts.updateOnly,
		},
		Log: log,
	}

	stats, err := orc.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("processed=%d succeeded=%d failed=%d skipped=%d\n",
		stats.Processed(), stats.Succeeded(), stats.Failed(), stats.Skipped())
	if keys := stats.FailedKeys(); len(keys) > 0 {
		fmt.Printf("failed: %v\n", keys)
	}

	if total, err := client.NodeCount(ctx); err == nil {
		log.Info("graph node count", "total", total)
	}
	return nil
}
