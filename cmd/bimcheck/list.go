package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modelcheck/bimcheck/internal/checker"
	"github.com/modelcheck/bimcheck/internal/config"
	"github.com/modelcheck/bimcheck/internal/discovery"
)

type listOptions struct {
	ConfigPath  string
	CheckersDir string
	JSON        bool
}

var listCmdRunner = runList

func newListCmd(root *rootFlags) *cobra.Command {
	opts := listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List checker files and their check functions without invoking them",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigPath = root.configPath
			return listCmdRunner(opts)
		},
	}

	cmd.Flags().StringVar(&opts.CheckersDir, "checkers", "", "Checkers directory (overrides configuration)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Output results in JSON format")

	return cmd
}

func runList(opts listOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	discOpts := cfg.DiscoveryOptions()
	if opts.CheckersDir != "" {
		discOpts.Dir = opts.CheckersDir
	}

	res, err := discovery.Discover(discOpts)
	if err != nil {
		return err
	}

	type functionInfo struct {
		Name        string   `json:"name"`
		Params      []string `json:"params"`
		SignatureOK bool     `json:"signature_ok"`
	}
	type fileInfo struct {
		Path      string         `json:"path"`
		Error     string         `json:"error,omitempty"`
		Functions []functionInfo `json:"functions,omitempty"`
	}

	loadOpts := checker.LoadOptions{MaxSteps: uint64(cfg.Runner.MaxSteps)}
	files := make([]fileInfo, 0, len(res.Files))
	for _, path := range res.Files {
		fi := fileInfo{Path: path}
		unit, err := checker.Load(path, loadOpts)
		if err != nil {
			fi.Error = err.Error()
		} else {
			for _, fn := range unit.Functions() {
				fi.Functions = append(fi.Functions, functionInfo{
					Name:        fn.Name,
					Params:      fn.Params(),
					SignatureOK: fn.SignatureOK(),
				})
			}
		}
		files = append(files, fi)
	}

	if opts.JSON {
		out := struct {
			Dir       string     `json:"dir"`
			DirExists bool       `json:"dir_exists"`
			Files     []fileInfo `json:"files"`
			Misnamed  []string   `json:"misnamed,omitempty"`
		}{Dir: discOpts.Dir, DirExists: res.DirExists, Files: files, Misnamed: res.Misnamed}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if !res.DirExists {
		fmt.Printf("checkers directory %s does not exist\n", discOpts.Dir)
		return nil
	}
	if len(files) == 0 && len(res.Misnamed) == 0 {
		fmt.Printf("no checker files in %s\n", discOpts.Dir)
		return nil
	}

	for _, fi := range files {
		fmt.Println(filepath.Base(fi.Path))
		switch {
		case fi.Error != "":
			fmt.Printf("  load error: %s\n", fi.Error)
		case len(fi.Functions) == 0:
			fmt.Println("  no check functions")
		default:
			for _, fn := range fi.Functions {
				marker := ""
				if !fn.SignatureOK {
					marker = "  (first parameter must be model)"
				}
				fmt.Printf("  %s(%s)%s\n", fn.Name, strings.Join(fn.Params, ", "), marker)
			}
		}
	}

	pattern := discOpts.Pattern
	if pattern == "" {
		pattern = discovery.DefaultPattern
	}
	for _, m := range res.Misnamed {
		fmt.Printf("%s  (misnamed, expected %s)\n", filepath.Base(m), pattern)
	}
	return nil
}
