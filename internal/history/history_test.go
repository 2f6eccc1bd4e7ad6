package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcheck/bimcheck/internal/report"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func failingReport() *report.Report {
	entry := 2
	rep := report.New("checkers")
	rep.Fixtures = []string{"empty", "populated"}
	rep.Files = []string{"checkers/checker_walls.star", "checkers/checker_doors.star"}
	rep.Add(report.PropertyResult{ID: "checker_file_exists", Status: report.StatusPass})
	rep.Add(report.PropertyResult{
		ID:     "check_status_valid",
		Status: report.StatusFail,
		Violations: []report.Violation{
			{
				Property:   "check_status_valid",
				File:       "checkers/checker_walls.star",
				Function:   "check_wall_rating",
				Fixture:    "populated",
				EntryIndex: &entry,
				Field:      "check_status",
				Message:    `check_status must be one of pass, fail, warning, blocked, log, got "ok"`,
			},
			{
				Property: "check_status_valid",
				File:     "checkers/checker_doors.star",
				Function: "check_door_widths",
				Fixture:  "populated",
				Field:    "check_status",
				Message:  "check_status must be a string, got NoneType",
			},
		},
	})
	rep.Finalize()
	return rep
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "deep", "history.db")
	store, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	assert.Equal(t, path, store.Path())
}

func TestRecordAndListRuns(t *testing.T) {
	t.Parallel()

	store := openStore(t)

	id1, err := store.Record(failingReport())
	require.NoError(t, err)
	id2, err := store.Record(failingReport())
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	runs, err := store.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, id2, runs[0].ID)
	assert.Equal(t, id1, runs[1].ID)

	run := runs[0]
	assert.Equal(t, "checkers", run.CheckersDir)
	assert.Equal(t, []string{"empty", "populated"}, run.Fixtures)
	assert.Equal(t, 2, run.Files)
	assert.Equal(t, 2, run.Properties)
	assert.Equal(t, 1, run.Passed)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 2, run.Violations)
	assert.WithinDuration(t, time.Now().UTC(), run.CreatedAt, time.Minute)
}

func TestRunsHonorsLimit(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	for i := 0; i < 3; i++ {
		_, err := store.Record(failingReport())
		require.NoError(t, err)
	}

	runs, err := store.Runs(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunViolationsRoundTrip(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	id, err := store.Record(failingReport())
	require.NoError(t, err)

	violations, err := store.RunViolations(id)
	require.NoError(t, err)
	require.Len(t, violations, 2)

	first := violations[0]
	assert.Equal(t, "check_status_valid", first.Property)
	assert.Equal(t, "check_wall_rating", first.Function)
	require.NotNil(t, first.EntryIndex)
	assert.Equal(t, 2, *first.EntryIndex)

	second := violations[1]
	assert.Nil(t, second.EntryIndex)
	assert.Equal(t, "check_door_widths", second.Function)
}

func TestRecordStoresSubmissionStamp(t *testing.T) {
	t.Parallel()

	store := openStore(t)
	rep := failingReport()
	rep.Submission = &report.Submission{
		Repo:   "https://example.com/student/bim-checkers.git",
		Commit: "0123456789abcdef0123456789abcdef01234567",
	}

	_, err := store.Record(rep)
	require.NoError(t, err)

	runs, err := store.Runs(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rep.Submission.Repo, runs[0].Repo)
	assert.Equal(t, rep.Submission.Commit, runs[0].Commit)
}

func TestNilStoreIsDisabled(t *testing.T) {
	t.Parallel()

	var store *Store
	id, err := store.Record(failingReport())
	require.NoError(t, err)
	assert.Zero(t, id)

	runs, err := store.Runs(0)
	require.NoError(t, err)
	assert.Nil(t, runs)

	require.NoError(t, store.Close())
	assert.Empty(t, store.Path())
}
