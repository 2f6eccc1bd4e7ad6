package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/modelcheck/bimcheck/internal/history"
	"github.com/modelcheck/bimcheck/internal/report"
)

const conformingChecker = `
def check_wall_presence(model):
    results = []
    for wall in model.by_type("IfcWall"):
        results.append({
            "element_id": wall.GlobalId,
            "element_type": wall.is_a(),
            "element_name": wall.Name,
            "element_name_long": wall.LongName,
            "check_status": "pass",
            "actual_value": "present",
            "required_value": "present",
            "comment": None,
            "log": None,
        })
    return results
`

const crashingChecker = `
def check_storeys(model):
    storeys = model.by_type("IfcBuildingStorey")
    if len(storeys) == 0:
        fail("model has no storeys")
    return []
`

func executeCommand(cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return cmd.Execute()
}

func writeCheckerFile(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func readReport(t *testing.T, path string) *report.Report {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rep report.Report
	require.NoError(t, json.Unmarshal(data, &rep))
	return &rep
}

func TestValidateConformingSubmission(t *testing.T) {
	dir := t.TempDir()
	writeCheckerFile(t, dir, "checker_walls.star", conformingChecker)
	out := filepath.Join(t.TempDir(), "report.json")

	root := newRootCmd()
	err := executeCommand(root, "validate",
		"--checkers", dir,
		"--no-store",
		"--format", "json",
		"--output", out,
	)
	require.NoError(t, err)

	rep := readReport(t, out)
	require.Len(t, rep.Properties, 15)
	require.Zero(t, rep.Summary.Failed)
	require.Equal(t, 15, rep.Summary.Passed)
}

func TestValidateFailingSubmission(t *testing.T) {
	dir := t.TempDir()
	writeCheckerFile(t, dir, "checker_storeys.star", crashingChecker)
	out := filepath.Join(t.TempDir(), "report.json")

	root := newRootCmd()
	err := executeCommand(root, "validate",
		"--checkers", dir,
		"--no-store",
		"--format", "json",
		"--output", out,
	)
	require.ErrorIs(t, err, errViolations)

	rep := readReport(t, out)
	require.Positive(t, rep.Summary.Failed)
}

func TestValidateRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	writeCheckerFile(t, dir, "checker_walls.star", conformingChecker)
	storePath := filepath.Join(t.TempDir(), "history.db")
	out := filepath.Join(t.TempDir(), "report.json")

	root := newRootCmd()
	err := executeCommand(root, "validate",
		"--checkers", dir,
		"--store", storePath,
		"--format", "json",
		"--output", out,
	)
	require.NoError(t, err)

	store, err := history.Open(storePath)
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, dir, runs[0].CheckersDir)
	require.Zero(t, runs[0].Failed)
}

func TestValidateUnknownFormat(t *testing.T) {
	root := newRootCmd()
	err := executeCommand(root, "validate", "--checkers", t.TempDir(), "--no-store", "--format", "xml")
	require.Error(t, err)
	require.NotErrorIs(t, err, errViolations)
	require.Contains(t, err.Error(), "unknown report format")
}

func TestValidateUnknownFixture(t *testing.T) {
	root := newRootCmd()
	err := executeCommand(root, "validate",
		"--checkers", t.TempDir(),
		"--no-store",
		"--fixtures", "imaginary",
		"--output", filepath.Join(t.TempDir(), "report.json"),
	)
	require.Error(t, err)
	require.NotErrorIs(t, err, errViolations)
}

func TestValidateBadConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "bimcheck.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("version: [1, 0]"), 0o644))

	root := newRootCmd()
	err := executeCommand(root, "--config", cfgPath, "validate", "--no-store")
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse error")
}

func TestValidateClonedSubmission(t *testing.T) {
	src := t.TempDir()
	checkersDir := filepath.Join(src, "checkers")
	require.NoError(t, os.MkdirAll(checkersDir, 0755))
	writeCheckerFile(t, checkersDir, "checker_walls.star", conformingChecker)

	repo, err := git.PlainInit(src, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("checkers")
	require.NoError(t, err)
	_, err = wt.Commit("add checkers", &git.CommitOptions{
		Author: &object.Signature{Name: "Author", Email: "author@example.com", When: time.Now()},
	})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "report.json")

	root := newRootCmd()
	err = executeCommand(root, "validate",
		"--repo", src,
		"--no-store",
		"--format", "json",
		"--output", out,
	)
	require.NoError(t, err)

	rep := readReport(t, out)
	require.NotNil(t, rep.Submission)
	require.Equal(t, src, rep.Submission.Repo)
	require.NotEmpty(t, rep.Submission.Commit)
	require.Zero(t, rep.Summary.Failed)
}
