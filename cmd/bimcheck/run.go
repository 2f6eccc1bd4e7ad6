package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.starlark.net/starlark"

	"github.com/modelcheck/bimcheck/internal/checker"
	"github.com/modelcheck/bimcheck/internal/config"
	"github.com/modelcheck/bimcheck/internal/discovery"
	"github.com/modelcheck/bimcheck/internal/fixture"
	"github.com/modelcheck/bimcheck/internal/schema"
	"github.com/modelcheck/bimcheck/internal/starbim"
	pkgerrors "github.com/modelcheck/bimcheck/pkg/errors"
)

type runOptions struct {
	ConfigPath  string
	Verbose     bool
	CheckersDir string
	Fixture     string
	Function    string
}

var runCmdRunner = runRun

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run [function]",
		Short: "Execute check functions against a fixture and print their findings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Function = args[0]
			}
			opts.ConfigPath = root.configPath
			opts.Verbose = root.verbose
			return runCmdRunner(opts)
		},
	}

	cmd.Flags().StringVar(&opts.CheckersDir, "checkers", "", "Checkers directory (overrides configuration)")
	cmd.Flags().StringVar(&opts.Fixture, "fixture", string(fixture.Populated), "Fixture to build the model from")

	return cmd
}

func runRun(opts runOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	log, err := newLogger(opts.Verbose)
	if err != nil {
		return err
	}

	fixtureID := fixture.ID(opts.Fixture)
	if !fixture.Valid(fixtureID) {
		return fmt.Errorf("unknown fixture %q", opts.Fixture)
	}

	discOpts := cfg.DiscoveryOptions()
	if opts.CheckersDir != "" {
		discOpts.Dir = opts.CheckersDir
	}

	res, err := discovery.Discover(discOpts)
	if err != nil {
		return err
	}
	if len(res.Files) == 0 {
		return fmt.Errorf("no checker files found in %s", discOpts.Dir)
	}

	loadOpts := checker.LoadOptions{Logger: log, MaxSteps: uint64(cfg.Runner.MaxSteps)}

	ran := 0
	for _, path := range res.Files {
		unit, err := checker.Load(path, loadOpts)
		if err != nil {
			if opts.Function != "" {
				return err
			}
			log.Error(err, "failed to load checker")
			continue
		}
		for _, fn := range unit.Functions() {
			if opts.Function != "" && fn.Name != opts.Function {
				continue
			}
			if !fn.SignatureOK() {
				if opts.Function != "" {
					return fmt.Errorf("%s does not take the model as its first parameter", fn.Name)
				}
				continue
			}
			model, err := fixture.Build(fixtureID)
			if err != nil {
				return err
			}
			if err := printFindings(fn, fixtureID, starbim.NewModel(model)); err != nil {
				if opts.Function != "" {
					return err
				}
				fmt.Printf("  error: %v\n", err)
			}
			ran++
		}
	}

	if ran == 0 {
		if opts.Function != "" {
			return fmt.Errorf("no check function named %q found in %s", opts.Function, discOpts.Dir)
		}
		return fmt.Errorf("no check functions found in %s", discOpts.Dir)
	}
	return nil
}

func printFindings(fn *checker.Function, id fixture.ID, model starlark.Value) error {
	fmt.Printf("%s (%s) on %s:\n", fn.Name, filepath.Base(fn.File), id)

	value, err := fn.Invoke(model)
	if err != nil {
		return pkgerrors.NewInvocationError(fn.Name, fn.File, string(id), err)
	}

	list, ok := value.(*starlark.List)
	if !ok {
		fmt.Printf("  returned %s instead of a list\n", value.Type())
		return nil
	}
	if list.Len() == 0 {
		fmt.Println("  no findings")
		return nil
	}

	for i := 0; i < list.Len(); i++ {
		entry := list.Index(i)
		dict, ok := entry.(*starlark.Dict)
		if !ok {
			fmt.Printf("  [%d] not a dict: %s\n", i, entry.String())
			continue
		}
		res, issues := schema.Decode(dict)
		if len(issues) > 0 {
			fmt.Printf("  [%d] malformed entry: %s\n", i, issues[0].Message)
			continue
		}
		fmt.Printf("  [%d] %-7s %s %q: actual=%q required=%q\n",
			i, res.CheckStatus, res.ElementType, res.ElementName, res.ActualValue, res.RequiredValue)
	}
	return nil
}
