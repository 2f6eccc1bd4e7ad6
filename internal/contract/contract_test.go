package contract

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcheck/bimcheck/internal/discovery"
	"github.com/modelcheck/bimcheck/internal/fixture"
	"github.com/modelcheck/bimcheck/internal/logger"
	"github.com/modelcheck/bimcheck/internal/report"
)

const validCheckerSrc = `
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

func writeChecker(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func runSweep(t *testing.T, dir string, fixtures ...fixture.ID) *report.Report {
	t.Helper()
	rep, err := Run(context.Background(), Options{
		Discovery: discovery.Options{Dir: dir},
		Fixtures:  fixtures,
	})
	require.NoError(t, err)
	return rep
}

func propStatus(t *testing.T, rep *report.Report, id string) report.PropertyStatus {
	t.Helper()
	p := rep.Property(id)
	require.NotNil(t, p, "property %s missing from report", id)
	return p.Status
}

func TestRunMissingDirectory(t *testing.T) {
	t.Parallel()

	rep := runSweep(t, filepath.Join(t.TempDir(), "absent"))

	assert.Equal(t, report.StatusFail, propStatus(t, rep, PropFileExists))
	p := rep.Property(PropFileExists)
	require.Len(t, p.Violations, 1)
	assert.Contains(t, p.Violations[0].Message, "does not exist")

	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropFileNaming))
	assert.Equal(t, report.StatusSkip, propStatus(t, rep, PropModuleLoad))
	assert.Equal(t, report.StatusSkip, propStatus(t, rep, PropProduces))
	assert.Equal(t, 13, rep.Summary.Skipped)
	assert.True(t, rep.Failed())
}

func TestRunEmptyDirectory(t *testing.T) {
	t.Parallel()

	rep := runSweep(t, t.TempDir())

	p := rep.Property(PropFileExists)
	require.Len(t, p.Violations, 1)
	assert.Contains(t, p.Violations[0].Message, "no checker_*.star files found")
	assert.Equal(t, report.StatusSkip, propStatus(t, rep, PropHandlesEmpty))
}

func TestRunFullyConformingChecker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_walls.star", validCheckerSrc)

	rep := runSweep(t, dir)

	assert.False(t, rep.Failed())
	assert.Equal(t, 15, rep.Summary.Properties)
	assert.Equal(t, 15, rep.Summary.Passed)
	assert.Equal(t, 0, rep.Summary.Violations)
	require.Len(t, rep.Files, 1)
	assert.Equal(t, []string{"empty", "populated", "with_properties"}, rep.Fixtures)
}

func TestRunTemplateAloneDoesNotCount(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_template.star", validCheckerSrc)

	rep := runSweep(t, dir)
	assert.Equal(t, report.StatusFail, propStatus(t, rep, PropFileExists))
}

func TestRunMisnamedFileFlaggedConformingStillValidated(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_walls.star", validCheckerSrc)
	writeChecker(t, dir, "mychecker.star", validCheckerSrc)

	rep := runSweep(t, dir)

	p := rep.Property(PropFileNaming)
	require.Equal(t, report.StatusFail, p.Status)
	require.Len(t, p.Violations, 1)
	assert.Contains(t, p.Violations[0].File, "mychecker.star")
	assert.Contains(t, p.Violations[0].Message, "naming convention")

	// The conforming file still went through the whole suite.
	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropProduces))
}

func TestRunLoadFailureDoesNotBlockSiblings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_broken.star", "def check_x(model)\n    return []\n")
	writeChecker(t, dir, "checker_walls.star", validCheckerSrc)

	rep := runSweep(t, dir)

	p := rep.Property(PropModuleLoad)
	require.Equal(t, report.StatusFail, p.Status)
	require.Len(t, p.Violations, 1)
	assert.Contains(t, p.Violations[0].File, "checker_broken.star")

	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropReturnsList))
	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropProduces))
}

func TestRunNoCheckFunctions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_helpers_only.star", `
def helper(model):
    return []
`)

	rep := runSweep(t, dir)

	p := rep.Property(PropFunctionExists)
	require.Equal(t, report.StatusFail, p.Status)
	require.Len(t, p.Violations, 1)
	assert.Contains(t, p.Violations[0].Message, "no check_ functions")

	// Nothing was invocable, so nothing produced results either.
	assert.Equal(t, report.StatusFail, propStatus(t, rep, PropProduces))
	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropSignature))
}

func TestRunBadSignatureExcludedFromInvocation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_mixed.star", `
def check_static(model):
    return [{
        "element_id": None,
        "element_type": "IfcProject",
        "element_name": "project",
        "element_name_long": None,
        "check_status": "log",
        "actual_value": "n/a",
        "required_value": "n/a",
        "comment": None,
        "log": None,
    }]

def check_wrong(ifc_model):
    fail("must never be invoked")
`)

	rep := runSweep(t, dir)

	p := rep.Property(PropSignature)
	require.Equal(t, report.StatusFail, p.Status)
	require.Len(t, p.Violations, 1)
	assert.Equal(t, "check_wrong", p.Violations[0].Function)
	assert.Contains(t, p.Violations[0].Message, `first parameter must be "model"`)

	// check_wrong was never called, so nothing raised.
	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropInvocation))
	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropHandlesEmpty))
	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropProduces))
}

func TestRunCheckerRaisingOnEmptyModel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_storeys.star", `
def check_storey_count(model):
    storeys = model.by_type("IfcBuildingStorey")
    if len(storeys) == 0:
        fail("expected at least one storey")
    return [{
        "element_id": storeys[0].GlobalId,
        "element_type": storeys[0].is_a(),
        "element_name": storeys[0].Name,
        "element_name_long": None,
        "check_status": "pass",
        "actual_value": str(len(storeys)),
        "required_value": ">= 1",
        "comment": None,
        "log": None,
    }]
`)

	rep := runSweep(t, dir)

	p := rep.Property(PropHandlesEmpty)
	require.Equal(t, report.StatusFail, p.Status)
	require.Len(t, p.Violations, 1)
	assert.Equal(t, "empty", p.Violations[0].Fixture)
	assert.Contains(t, p.Violations[0].Message, "expected at least one storey")

	// The populated invocations were unaffected.
	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropInvocation))
	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropRequiredKeys))
	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropProduces))
}

func TestRunPopulatedInvocationErrorSkipsSchemaChecks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_angry.star", `
def check_angry(model):
    if len(model.by_type("IfcWall")) > 0:
        fail("cannot cope with walls")
    return []
`)

	rep := runSweep(t, dir, fixture.Empty, fixture.Populated)

	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropHandlesEmpty))

	p := rep.Property(PropInvocation)
	require.Equal(t, report.StatusFail, p.Status)
	require.Len(t, p.Violations, 1)
	assert.Equal(t, "populated", p.Violations[0].Fixture)

	// No value came back, so the shape properties had nothing to flag.
	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropReturnsList))
	assert.Equal(t, report.StatusFail, propStatus(t, rep, PropProduces))
}

func TestRunInvocationFailureLoggedWithAttribution(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_boom.star", `
def check_boom(model):
    fail("boom")
`)

	var buf bytes.Buffer
	log, err := logger.New(logger.Options{Level: "error", Writer: &buf})
	require.NoError(t, err)

	rep, err := Run(context.Background(), Options{
		Discovery: discovery.Options{Dir: dir},
		Fixtures:  []fixture.ID{fixture.Populated},
		Log:       log,
	})
	require.NoError(t, err)
	assert.Equal(t, report.StatusFail, propStatus(t, rep, PropInvocation))

	logged := buf.String()
	assert.Contains(t, logged, "invocation error: check_boom")
	assert.Contains(t, logged, "checker_boom.star")
	assert.Contains(t, logged, "on fixture")
}

func TestRunNonListReturn(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_dict.star", `
def check_returns_dict(model):
    return {"oops": True}
`)

	rep := runSweep(t, dir, fixture.Populated)

	p := rep.Property(PropReturnsList)
	require.Equal(t, report.StatusFail, p.Status)
	require.Len(t, p.Violations, 1)
	assert.Contains(t, p.Violations[0].Message, "must return a list, got dict")
}

func TestRunNonDictEntriesFlaggedByIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_mixed_entries.star", `
def check_mixed(model):
    return [
        {
            "element_id": None,
            "element_type": "IfcProject",
            "element_name": "project",
            "element_name_long": None,
            "check_status": "pass",
            "actual_value": "ok",
            "required_value": "ok",
            "comment": None,
            "log": None,
        },
        "not a dict",
        42,
    ]
`)

	rep := runSweep(t, dir, fixture.Populated)

	p := rep.Property(PropReturnsDicts)
	require.Equal(t, report.StatusFail, p.Status)
	require.Len(t, p.Violations, 2)
	require.NotNil(t, p.Violations[0].EntryIndex)
	assert.Equal(t, 1, *p.Violations[0].EntryIndex)
	require.NotNil(t, p.Violations[1].EntryIndex)
	assert.Equal(t, 2, *p.Violations[1].EntryIndex)

	// The well-formed entry kept the schema properties green.
	assert.Equal(t, report.StatusPass, propStatus(t, rep, PropRequiredKeys))
}

func TestRunSchemaViolationsLandOnTheirProperties(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_sloppy.star", `
def check_sloppy(model):
    return [
        {
            "element_id": 12,
            "element_type": "IfcWall",
            "element_name": None,
            "element_name_long": None,
            "check_status": "maybe",
            "actual_value": "x",
            "required_value": "y",
            "comment": 3,
            "log": None,
        },
        {
            "element_id": None,
            "element_type": "IfcDoor",
        },
    ]
`)

	rep := runSweep(t, dir, fixture.Populated)

	elementID := rep.Property(PropElementID)
	require.Equal(t, report.StatusFail, elementID.Status)
	require.Len(t, elementID.Violations, 1)
	assert.Equal(t, 0, *elementID.Violations[0].EntryIndex)

	strict := rep.Property(PropStringFields)
	require.Equal(t, report.StatusFail, strict.Status)
	require.Len(t, strict.Violations, 1)
	assert.Equal(t, "element_name", strict.Violations[0].Field)

	status := rep.Property(PropStatusValid)
	require.Equal(t, report.StatusFail, status.Status)
	assert.Contains(t, status.Violations[0].Message, `"maybe"`)

	nullable := rep.Property(PropNullable)
	require.Equal(t, report.StatusFail, nullable.Status)
	assert.Equal(t, "comment", nullable.Violations[0].Field)

	keys := rep.Property(PropRequiredKeys)
	require.Equal(t, report.StatusFail, keys.Status)
	require.Len(t, keys.Violations, 1)
	assert.Equal(t, 1, *keys.Violations[0].EntryIndex)
	assert.Contains(t, keys.Violations[0].Message, "missing required keys:")
	assert.Contains(t, keys.Violations[0].Message, "check_status")
	assert.Contains(t, keys.Violations[0].Message, "log")
}

func TestRunQuietCheckerFailsProducesOnly(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_quiet.star", `
def check_quiet(model):
    return []
`)

	rep := runSweep(t, dir)

	p := rep.Property(PropProduces)
	require.Equal(t, report.StatusFail, p.Status)
	require.Len(t, p.Violations, 1)
	assert.Contains(t, p.Violations[0].Message, "produced any results")
	assert.Equal(t, 1, rep.Summary.Failed, "only produces_results may fail")
}

func TestRunFixtureSubsetSkipsEmptyProperty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_walls.star", validCheckerSrc)

	rep := runSweep(t, dir, fixture.Populated, fixture.WithProperties)

	p := rep.Property(PropHandlesEmpty)
	require.Equal(t, report.StatusSkip, p.Status)
	assert.Equal(t, "empty fixture not enabled", p.Reason)
	assert.Equal(t, []string{"populated", "with_properties"}, rep.Fixtures)
	assert.False(t, rep.Failed())
}

func TestRunUnknownFixture(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), Options{
		Discovery: discovery.Options{Dir: t.TempDir()},
		Fixtures:  []fixture.ID{"gigantic"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown fixture")
}

func TestRunHonorsCancellation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeChecker(t, dir, "checker_walls.star", validCheckerSrc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Options{Discovery: discovery.Options{Dir: dir}})
	require.ErrorIs(t, err, context.Canceled)
}
