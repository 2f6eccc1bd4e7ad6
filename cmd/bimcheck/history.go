package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelcheck/bimcheck/internal/config"
	"github.com/modelcheck/bimcheck/internal/history"
	"github.com/modelcheck/bimcheck/internal/report"
)

type historyOptions struct {
	ConfigPath string
	StorePath  string
	Limit      int
	RunID      int64
}

var historyCmdRunner = runHistory

func newHistoryCmd(root *rootFlags) *cobra.Command {
	opts := historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded validation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigPath = root.configPath
			return historyCmdRunner(opts)
		},
	}

	cmd.Flags().StringVar(&opts.StorePath, "store", "", "History database path")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Maximum number of runs to list")
	cmd.Flags().Int64Var(&opts.RunID, "run", 0, "Show the violations recorded for one run")

	return cmd
}

func runHistory(opts historyOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	path := opts.StorePath
	if path == "" {
		path = cfg.Store.Path
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.RunID != 0 {
		return printRunDetail(store, opts.RunID)
	}

	runs, err := store.Runs(opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	fmt.Printf("%-5s %-20s %-24s %-6s %-15s %s\n", "ID", "When", "Checkers", "Files", "Pass/Fail/Skip", "Commit")
	for _, r := range runs {
		verdict := fmt.Sprintf("%d/%d/%d", r.Passed, r.Failed, r.Skipped)
		fmt.Printf("%-5d %-20s %-24s %-6d %-15s %s\n",
			r.ID,
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			truncateString(r.CheckersDir, 24),
			r.Files,
			verdict,
			shortCommit(r.Commit),
		)
	}
	return nil
}

func printRunDetail(store *history.Store, id int64) error {
	violations, err := store.RunViolations(id)
	if err != nil {
		return err
	}
	if len(violations) == 0 {
		fmt.Printf("run %d has no recorded violations\n", id)
		return nil
	}

	for _, v := range violations {
		fmt.Printf("%s\n  %s\n", v.Property, report.ViolationLine(v))
	}
	return nil
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
