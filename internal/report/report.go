// Package report holds the outcome of a validation sweep: one result per
// contract property, each carrying the violations found, plus run metadata.
// Rendering to table, JSON and CSV lives here too.
package report

import (
	"time"
)

// PropertyStatus is the verdict for a single contract property.
type PropertyStatus string

const (
	// StatusPass means the property was evaluated and held everywhere.
	StatusPass PropertyStatus = "pass"
	// StatusFail means at least one violation was recorded.
	StatusFail PropertyStatus = "fail"
	// StatusSkip means the property was not evaluated; Reason says why.
	StatusSkip PropertyStatus = "skip"
)

// Violation is one attributable contract finding. Zero-valued fields simply
// do not apply at that granularity: a naming violation has no function, a
// global finding has no file.
type Violation struct {
	Property   string `json:"property"`
	File       string `json:"file,omitempty"`
	Function   string `json:"function,omitempty"`
	Fixture    string `json:"fixture,omitempty"`
	EntryIndex *int   `json:"entry_index,omitempty"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message"`
}

// PropertyResult is the verdict and findings for one contract property.
type PropertyResult struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Status     PropertyStatus `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Violations []Violation    `json:"violations,omitempty"`
}

// Summary aggregates property verdicts for quick reading.
type Summary struct {
	Properties int `json:"properties"`
	Passed     int `json:"passed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Violations int `json:"violations"`
}

// Submission identifies the graded working copy when the run validated a
// cloned repository.
type Submission struct {
	Repo   string `json:"repo,omitempty"`
	Ref    string `json:"ref,omitempty"`
	Commit string `json:"commit,omitempty"`
}

// Report is the full outcome of one validation sweep.
type Report struct {
	GeneratedAt time.Time        `json:"generated_at"`
	CheckersDir string           `json:"checkers_dir"`
	Fixtures    []string         `json:"fixtures"`
	Files       []string         `json:"files"`
	Properties  []PropertyResult `json:"properties"`
	Summary     Summary          `json:"summary"`
	Submission  *Submission      `json:"submission,omitempty"`
}

// New returns a report stamped with the current time.
func New(checkersDir string) *Report {
	return &Report{
		GeneratedAt: time.Now().UTC(),
		CheckersDir: checkersDir,
	}
}

// Add appends a property result.
func (r *Report) Add(res PropertyResult) {
	r.Properties = append(r.Properties, res)
}

// Property returns the result with the given id, or nil.
func (r *Report) Property(id string) *PropertyResult {
	for i := range r.Properties {
		if r.Properties[i].ID == id {
			return &r.Properties[i]
		}
	}
	return nil
}

// Violations returns every violation across all properties, in report order.
func (r *Report) Violations() []Violation {
	var out []Violation
	for _, p := range r.Properties {
		out = append(out, p.Violations...)
	}
	return out
}

// Failed reports whether any property failed.
func (r *Report) Failed() bool {
	for _, p := range r.Properties {
		if p.Status == StatusFail {
			return true
		}
	}
	return false
}

// Finalize recomputes the summary from the property results. Call it after
// the last Add.
func (r *Report) Finalize() {
	s := Summary{Properties: len(r.Properties)}
	for _, p := range r.Properties {
		switch p.Status {
		case StatusPass:
			s.Passed++
		case StatusFail:
			s.Failed++
		case StatusSkip:
			s.Skipped++
		}
		s.Violations += len(p.Violations)
	}
	r.Summary = s
}
