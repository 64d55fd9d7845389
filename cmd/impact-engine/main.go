package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/changelens/impact-engine/pkg/builder"
	"github.com/changelens/impact-engine/pkg/config"
	"github.com/changelens/impact-engine/pkg/impact"
	"github.com/changelens/impact-engine/pkg/logging"
	"github.com/changelens/impact-engine/pkg/metrics"
	"github.com/changelens/impact-engine/pkg/output"
	"github.com/changelens/impact-engine/pkg/runner"
	"github.com/changelens/impact-engine/pkg/store"
	"github.com/changelens/impact-engine/pkg/watcher"
	"github.com/changelens/impact-engine/pkg/web"
)

func main() {
	f := pflag.NewFlagSet("impact-engine", pflag.ExitOnError)
	f.Bool("serve", false, "Start the HTTP server instead of one-shot mode")
	f.Int("port", 8084, "Port for the HTTP server (only used with --serve)")
	f.Bool("watch", false, "Watch the facts directory and rebuild on change (with --serve)")
	f.String("facts", "", "Path to a facts JSON file for one-shot mode")
	f.String("facts_dir", "", "Directory of <repo>@<branch>.facts.json files for watch mode")
	f.String("repo", "local", "Repository id for one-shot mode")
	f.String("branch", "main", "Branch name for one-shot mode")
	f.StringSlice("changed", nil, "Changed node ids to run an impact summary for (one-shot mode)")
	f.String("verbosity", "", "Log level: debug, info, warn, error")
	f.Int("max_depth", 20, "Maximum hop distance for impact traversal")
	f.Parse(os.Args[1:])

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	applyVerbosity(cfg.Verbosity)

	st := store.NewCached(store.New(cfg.HistorySize), cfg.CacheSize, cfg.CacheTTL)
	buildOpts := builder.Options{
		Metrics: metrics.Options{
			ExactThreshold: cfg.MetricsExactThreshold,
			SampleSources:  cfg.MetricsSampleSources,
			Deadline:       cfg.MetricsDeadline,
		},
	}

	if cfg.Serve {
		runServer(cfg, st, buildOpts)
		return
	}

	changed, _ := f.GetStringSlice("changed")
	runOnce(cfg, st, buildOpts, changed)
}

func applyVerbosity(verbosity string) {
	switch verbosity {
	case "debug":
		logging.SetLevel(slog.LevelDebug)
	case "warn":
		logging.SetLevel(slog.LevelWarn)
	case "error":
		logging.SetLevel(slog.LevelError)
	case "", "info":
		// keep default
	default:
		logging.Warn("unknown verbosity, using info", "verbosity", verbosity)
	}
}

// runOnce builds a graph from a facts file, prints the console report, and
// optionally prints an impact summary for the given changed ids.
func runOnce(cfg *config.Config, st *store.CachedStore, buildOpts builder.Options, changed []string) {
	if cfg.Facts == "" {
		fmt.Fprintln(os.Stderr, "Error: --facts is required in one-shot mode")
		os.Exit(1)
	}

	records, err := runner.LoadFactsFile(cfg.Facts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	rnr := runner.New(st, nil, buildOpts)
	res, err := rnr.Run(ctx, cfg.RepoID, cfg.Branch, records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	stats := metrics.Stats(res.Graph, 5)
	output.PrintBuildReport(res.Graph, &stats, res.Rejected)

	if len(changed) > 0 {
		queryCtx, cancel := context.WithTimeout(ctx, cfg.QueryDeadline)
		defer cancel()

		result, err := impact.Compute(queryCtx, res.Graph, changed, cfg.MaxDepth)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		assessment := runner.Assess(res.Graph, changed, result, cfg.Weights, cfg.Thresholds)
		fmt.Println()
		output.PrintImpactReport(result, assessment.Band, assessment.Recommendations)
	}
}

// runServer starts the HTTP surface, optionally with the facts-directory
// watcher feeding rebuilds.
func runServer(cfg *config.Config, st *store.CachedStore, buildOpts builder.Options) {
	publisher := web.NewPublisher()
	rnr := runner.New(st, publisher, buildOpts)
	srv := web.NewServer(st, rnr, publisher, web.Options{
		MaxDepth:      cfg.MaxDepth,
		MaxPaths:      cfg.MaxPaths,
		MaxLength:     cfg.MaxLength,
		QueryDeadline: cfg.QueryDeadline,
		Weights:       cfg.Weights,
		Thresholds:    cfg.Thresholds,
	})

	if cfg.Watch {
		if cfg.FactsDir == "" {
			fmt.Fprintln(os.Stderr, "Error: --facts_dir is required with --watch")
			os.Exit(1)
		}
		if err := startWatcher(context.Background(), cfg, rnr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := srv.Start(cfg.Port); err != nil {
		logging.Fatal("server failed", "error", err)
	}
}

// startWatcher builds all existing facts files once, then rebuilds keys as
// their files change.
func startWatcher(ctx context.Context, cfg *config.Config, rnr *runner.Runner) error {
	fw, err := watcher.NewFileWatcher(cfg.FactsDir)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}

	deb := watcher.NewDebouncer(fw.Events(), 500*time.Millisecond, 5*time.Second)
	deb.Start(ctx)

	// Initial build of whatever is already there
	go func() {
		matches, err := filepath.Glob(filepath.Join(cfg.FactsDir, "*.facts.json"))
		if err != nil {
			logging.Warn("initial facts scan failed", "error", err)
			return
		}
		for _, path := range matches {
			key, ok := watcher.ParseFactsFileName(filepath.Base(path))
			if !ok {
				continue
			}
			key.Path = path
			buildKey(ctx, rnr, key)
		}
	}()

	go func() {
		for event := range deb.Output() {
			for _, key := range event.Keys {
				buildKey(ctx, rnr, key)
			}
		}
	}()

	return nil
}

func buildKey(ctx context.Context, rnr *runner.Runner, key watcher.Key) {
	records, err := runner.LoadFactsFile(key.Path)
	if err != nil {
		logging.Warn("skipping facts file", "path", key.Path, "error", err)
		return
	}
	if _, err := rnr.Run(ctx, key.RepoID, key.Branch, records); err != nil {
		logging.Error("rebuild failed", "repo", key.RepoID, "branch", key.Branch, "error", err)
	}
}
