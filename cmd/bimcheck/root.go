package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/modelcheck/bimcheck/internal/logger"
)

// errViolations signals a completed sweep that found failed properties.
// The report has already been rendered by the time it is returned, so
// main exits 1 without printing anything further.
var errViolations = errors.New("contract checks failed")

type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "bimcheck",
		Short:         "bimcheck validates BIM compliance checkers against their result contract",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newListCmd(flags))
	cmd.AddCommand(newFixturesCmd(flags))
	cmd.AddCommand(newHistoryCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newLogger(verbose bool) (*logger.Logger, error) {
	level := "info"
	if verbose {
		level = "debug"
	}
	return logger.New(logger.Options{Level: level, HumanReadable: true})
}
