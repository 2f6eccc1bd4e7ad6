package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/modelcheck/bimcheck/internal/checker"
	"github.com/modelcheck/bimcheck/internal/config"
	"github.com/modelcheck/bimcheck/internal/contract"
	"github.com/modelcheck/bimcheck/internal/discovery"
	"github.com/modelcheck/bimcheck/internal/fixture"
	"github.com/modelcheck/bimcheck/internal/history"
	"github.com/modelcheck/bimcheck/internal/logger"
	"github.com/modelcheck/bimcheck/internal/report"
	"github.com/modelcheck/bimcheck/internal/submission"
	"github.com/modelcheck/bimcheck/internal/watch"
)

type validateOptions struct {
	ConfigPath  string
	Verbose     bool
	CheckersDir string
	Fixtures    []string
	Format      string
	Output      string
	StorePath   string
	NoStore     bool
	Repo        string
	Ref         string
	Watch       bool
}

var validateCmdRunner = runValidate

func newValidateCmd(root *rootFlags) *cobra.Command {
	opts := validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the full contract sweep over the checkers directory",
		Long: `Validate discovers checker files, loads them, introspects their check
functions, invokes them against the canonical fixtures, and verifies every
returned entry against the result schema. Exits 0 when all properties pass,
1 when any property fails, and 2 on configuration or runtime errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigPath = root.configPath
			opts.Verbose = root.verbose
			return validateCmdRunner(opts)
		},
	}

	cmd.Flags().StringVar(&opts.CheckersDir, "checkers", "", "Checkers directory (overrides configuration)")
	cmd.Flags().StringSliceVar(&opts.Fixtures, "fixtures", nil, "Fixtures to run against (empty, populated, with_properties)")
	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "Report format: table, json or csv")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&opts.StorePath, "store", "", "History database path")
	cmd.Flags().BoolVar(&opts.NoStore, "no-store", false, "Skip recording the run in the history database")
	cmd.Flags().StringVar(&opts.Repo, "repo", "", "Clone a submission repository and validate its checkers")
	cmd.Flags().StringVar(&opts.Ref, "ref", "", "Branch to check out when cloning (requires --repo)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run the sweep when checker files change")

	return cmd
}

func runValidate(opts validateOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	log, err := newLogger(opts.Verbose)
	if err != nil {
		return err
	}

	discOpts := cfg.DiscoveryOptions()
	if opts.CheckersDir != "" {
		discOpts.Dir = opts.CheckersDir
	}

	fixtures := cfg.FixtureIDs()
	if len(opts.Fixtures) > 0 {
		fixtures = make([]fixture.ID, 0, len(opts.Fixtures))
		for _, f := range opts.Fixtures {
			fixtures = append(fixtures, fixture.ID(f))
		}
	}

	formatName := opts.Format
	if formatName == "" {
		formatName = cfg.Report.Format
	}
	if formatName == "" {
		formatName = string(report.FormatTable)
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}

	output := opts.Output
	if output == "" {
		output = cfg.Report.Output
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var stamp *report.Submission
	if opts.Repo != "" {
		sub, err := submission.Clone(ctx, submission.CloneOptions{URL: opts.Repo, Ref: opts.Ref})
		if err != nil {
			return err
		}
		defer sub.Cleanup()
		discOpts.Dir = filepath.Join(sub.Dir, discOpts.Dir)
		stamp = &report.Submission{Repo: sub.URL, Ref: sub.Ref, Commit: sub.Commit}
		log.WithFields(map[string]any{"repo": sub.URL, "commit": sub.Commit}).Info("submission cloned")
	} else if info, err := submission.Describe(discOpts.Dir); err == nil {
		stamp = &report.Submission{Ref: info.Ref, Commit: info.Commit}
	}

	var store *history.Store
	if !opts.NoStore && !cfg.Store.Disabled {
		path := opts.StorePath
		if path == "" {
			path = cfg.Store.Path
		}
		store, err = history.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	copts := contract.Options{
		Discovery: discOpts,
		Fixtures:  fixtures,
		Loader: checker.LoadOptions{
			Logger:   log,
			MaxSteps: uint64(cfg.Runner.MaxSteps),
		},
		Log: log,
	}

	sweep := func(ctx context.Context) error {
		rep, err := contract.Run(ctx, copts)
		if err != nil {
			return err
		}
		rep.Submission = stamp

		if id, err := store.Record(rep); err != nil {
			log.Error(err, "failed to record run in history")
		} else if id != 0 {
			log.WithFields(map[string]any{"run_id": id}).Debug("run recorded")
		}

		if err := writeReport(rep, format, output); err != nil {
			return err
		}
		if rep.Failed() {
			return errViolations
		}
		return nil
	}

	if !opts.Watch {
		return sweep(ctx)
	}
	return watchLoop(ctx, cfg, discOpts, log, sweep)
}

func writeReport(rep *report.Report, format report.Format, output string) error {
	if output == "" {
		color := format == report.FormatTable && term.IsTerminal(int(os.Stdout.Fd()))
		return report.Render(os.Stdout, rep, format, report.RenderOptions{Color: color})
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := report.Render(f, rep, format, report.RenderOptions{}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// watchLoop runs one sweep immediately, then again on every debounced
// change batch until interrupted. Sweep failures are reported and the
// loop keeps going; the final exit is always clean.
func watchLoop(ctx context.Context, cfg *config.Config, discOpts discovery.Options, log *logger.Logger, sweep func(context.Context) error) error {
	w, err := watch.New(watch.Options{
		Discovery: discOpts,
		Debounce:  cfg.Debounce(),
		Logger:    log,
	})
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Start(ctx); err != nil {
		return err
	}

	runOnce := func() {
		if err := sweep(ctx); err != nil && !errors.Is(err, errViolations) {
			log.Error(err, "sweep failed")
		}
	}

	runOnce()
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes():
			if !ok {
				return nil
			}
			log.WithFields(map[string]any{"files": len(change.Paths)}).Info("checker files changed, re-running sweep")
			runOnce()
		}
	}
}
