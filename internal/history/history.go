// Package history persists validation runs to a local SQLite database so
// checker authors can see whether they are converging on a clean contract.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/modelcheck/bimcheck/internal/report"
	pkgerrors "github.com/modelcheck/bimcheck/pkg/errors"
)

// Table names.
const (
	runsTable       = "bimcheck_runs"
	violationsTable = "bimcheck_violations"
)

// DefaultPath is where the store lives unless configured otherwise,
// relative to the working directory.
const DefaultPath = ".bimcheck/history.db"

// Store is a SQLite-backed run history. A nil *Store is a valid disabled
// store: Record and the readers become no-ops.
type Store struct {
	db   *sql.DB
	path string
}

// RunRecord is one persisted validation run.
type RunRecord struct {
	ID          int64
	CreatedAt   time.Time
	CheckersDir string
	Fixtures    []string
	Files       int
	Properties  int
	Passed      int
	Failed      int
	Skipped     int
	Violations  int
	Repo        string
	Commit      string
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, pkgerrors.NewStoreError("open", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pkgerrors.NewStoreError("open", err)
	}
	// A single connection avoids "database is locked" errors.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, pkgerrors.NewStoreError("open", err)
	}
	if err := createTables(db); err != nil {
		_ = db.Close()
		return nil, pkgerrors.NewStoreError("open", err)
	}
	return &Store{db: db, path: path}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TEXT NOT NULL,
				checkers_dir TEXT NOT NULL,
				fixtures TEXT NOT NULL,
				files INTEGER NOT NULL,
				properties INTEGER NOT NULL,
				passed INTEGER NOT NULL,
				failed INTEGER NOT NULL,
				skipped INTEGER NOT NULL,
				violations INTEGER NOT NULL,
				repo TEXT,
				commit_sha TEXT
			);
		`, runsTable),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER NOT NULL,
				seq INTEGER NOT NULL,
				property TEXT NOT NULL,
				file TEXT,
				function TEXT,
				fixture TEXT,
				entry_index INTEGER,
				field TEXT,
				message TEXT NOT NULL,
				PRIMARY KEY (run_id, seq)
			);
		`, violationsTable),
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Record persists one report and returns its run id. The run row and its
// violation rows are written in a single transaction.
func (s *Store) Record(rep *report.Report) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, pkgerrors.NewStoreError("record", err)
	}
	defer func() { _ = tx.Rollback() }()

	repo, commit := "", ""
	if rep.Submission != nil {
		repo = rep.Submission.Repo
		commit = rep.Submission.Commit
	}

	res, err := tx.Exec(fmt.Sprintf(`
		INSERT INTO %s (created_at, checkers_dir, fixtures, files, properties, passed, failed, skipped, violations, repo, commit_sha)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runsTable),
		rep.GeneratedAt.UTC().Format(time.RFC3339Nano),
		rep.CheckersDir,
		strings.Join(rep.Fixtures, ","),
		len(rep.Files),
		rep.Summary.Properties,
		rep.Summary.Passed,
		rep.Summary.Failed,
		rep.Summary.Skipped,
		rep.Summary.Violations,
		repo,
		commit,
	)
	if err != nil {
		return 0, pkgerrors.NewStoreError("record", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, pkgerrors.NewStoreError("record", err)
	}

	seq := 0
	for _, v := range rep.Violations() {
		var entry any
		if v.EntryIndex != nil {
			entry = *v.EntryIndex
		}
		_, err := tx.Exec(fmt.Sprintf(`
			INSERT INTO %s (run_id, seq, property, file, function, fixture, entry_index, field, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, violationsTable),
			runID, seq, v.Property, v.File, v.Function, v.Fixture, entry, v.Field, v.Message,
		)
		if err != nil {
			return 0, pkgerrors.NewStoreError("record", err)
		}
		seq++
	}

	if err := tx.Commit(); err != nil {
		return 0, pkgerrors.NewStoreError("record", err)
	}
	return runID, nil
}

// Runs returns recorded runs, newest first. limit <= 0 means all.
func (s *Store) Runs(limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT run_id, created_at, checkers_dir, fixtures, files, properties, passed, failed, skipped, violations, repo, commit_sha
		FROM %s ORDER BY run_id DESC
	`, runsTable)
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, pkgerrors.NewStoreError("list", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunRecord
	for rows.Next() {
		var (
			rec       RunRecord
			createdAt string
			fixtures  string
			repoCol   sql.NullString
			commitCol sql.NullString
		)
		if err := rows.Scan(&rec.ID, &createdAt, &rec.CheckersDir, &fixtures, &rec.Files, &rec.Properties,
			&rec.Passed, &rec.Failed, &rec.Skipped, &rec.Violations, &repoCol, &commitCol); err != nil {
			return nil, pkgerrors.NewStoreError("list", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, pkgerrors.NewStoreError("list", err)
		}
		if fixtures != "" {
			rec.Fixtures = strings.Split(fixtures, ",")
		}
		rec.Repo = repoCol.String
		rec.Commit = commitCol.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewStoreError("list", err)
	}
	return out, nil
}

// RunViolations returns the violations stored for one run, in record order.
func (s *Store) RunViolations(runID int64) ([]report.Violation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT property, file, function, fixture, entry_index, field, message
		FROM %s WHERE run_id = ? ORDER BY seq
	`, violationsTable), runID)
	if err != nil {
		return nil, pkgerrors.NewStoreError("list", err)
	}
	defer func() { _ = rows.Close() }()

	var out []report.Violation
	for rows.Next() {
		var (
			v     report.Violation
			entry sql.NullInt64
		)
		if err := rows.Scan(&v.Property, &v.File, &v.Function, &v.Fixture, &entry, &v.Field, &v.Message); err != nil {
			return nil, pkgerrors.NewStoreError("list", err)
		}
		if entry.Valid {
			idx := int(entry.Int64)
			v.EntryIndex = &idx
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewStoreError("list", err)
	}
	return out, nil
}
