package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Format selects a report rendering.
type Format string

const (
	// FormatTable is the human-readable default.
	FormatTable Format = "table"
	// FormatJSON is the full report as indented JSON.
	FormatJSON Format = "json"
	// FormatCSV is a flat violations-and-verdicts export.
	FormatCSV Format = "csv"
)

// Formats lists every supported format.
var Formats = []Format{FormatTable, FormatJSON, FormatCSV}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown report format %q (want table, json or csv)", s)
}

// RenderOptions tunes the table rendering. JSON and CSV ignore it.
type RenderOptions struct {
	// Color enables lipgloss styling; leave false when not writing to a TTY.
	Color bool
}

var (
	// Colors
	successColor = lipgloss.Color("42")  // Green
	errorColor   = lipgloss.Color("196") // Red
	mutedColor   = lipgloss.Color("245") // Gray

	passStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	skipStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	summaryOKStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	summaryBadStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)
)

// Render writes the report in the given format.
func Render(w io.Writer, r *Report, format Format, opts RenderOptions) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, r)
	case FormatCSV:
		return renderCSV(w, r)
	default:
		return renderTable(w, r, opts)
	}
}

func renderJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// renderCSV writes one row per property without findings and one row per
// violation, so verdicts and findings land in a single flat file.
func renderCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"property", "status", "file", "function", "fixture", "entry_index", "field", "message"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range r.Properties {
		if len(p.Violations) == 0 {
			rec := []string{p.ID, string(p.Status), "", "", "", "", "", p.Reason}
			if err := cw.Write(rec); err != nil {
				return err
			}
			continue
		}
		for _, v := range p.Violations {
			entry := ""
			if v.EntryIndex != nil {
				entry = strconv.Itoa(*v.EntryIndex)
			}
			rec := []string{p.ID, string(p.Status), v.File, v.Function, v.Fixture, entry, v.Field, v.Message}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderTable(w io.Writer, r *Report, opts RenderOptions) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Property", "Status", "Violations"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	var data [][]string
	for _, p := range r.Properties {
		count := "-"
		if p.Status == StatusFail {
			count = strconv.Itoa(len(p.Violations))
		}
		data = append(data, []string{p.ID, statusCell(p.Status, opts.Color), count})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	for _, p := range r.Properties {
		switch {
		case p.Status == StatusSkip && p.Reason != "":
			if _, err := fmt.Fprintf(w, "%s skipped: %s\n", p.ID, p.Reason); err != nil {
				return err
			}
		case len(p.Violations) > 0:
			if _, err := fmt.Fprintf(w, "%s:\n", p.ID); err != nil {
				return err
			}
			for _, v := range p.Violations {
				if _, err := fmt.Fprintf(w, "  - %s\n", ViolationLine(v)); err != nil {
					return err
				}
			}
		}
	}

	if _, err := fmt.Fprintln(w, summaryLine(r, opts.Color)); err != nil {
		return err
	}
	if r.Submission != nil && r.Submission.Commit != "" {
		if _, err := fmt.Fprintf(w, "Submission %s @ %s\n", r.Submission.Repo, shortCommit(r.Submission.Commit)); err != nil {
			return err
		}
	}
	return nil
}

func statusCell(s PropertyStatus, color bool) string {
	text := strings.ToUpper(string(s))
	if !color {
		return text
	}
	switch s {
	case StatusPass:
		return passStyle.Render(text)
	case StatusFail:
		return failStyle.Render(text)
	default:
		return skipStyle.Render(text)
	}
}

// ViolationLine flattens one violation into a single readable line, keeping
// only the attribution that applies.
func ViolationLine(v Violation) string {
	var parts []string
	if v.File != "" {
		parts = append(parts, v.File)
	}
	if v.Function != "" {
		parts = append(parts, v.Function)
	}
	if v.Fixture != "" {
		parts = append(parts, "fixture="+v.Fixture)
	}
	if v.EntryIndex != nil {
		parts = append(parts, fmt.Sprintf("entry=%d", *v.EntryIndex))
	}
	if v.Field != "" {
		parts = append(parts, "field="+v.Field)
	}
	if len(parts) == 0 {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", strings.Join(parts, " "), v.Message)
}

func summaryLine(r *Report, color bool) string {
	s := r.Summary
	text := fmt.Sprintf("%d properties: %d passed, %d failed, %d skipped (%d violations)",
		s.Properties, s.Passed, s.Failed, s.Skipped, s.Violations)
	if !color {
		return text
	}
	if r.Failed() {
		return summaryBadStyle.Render(text)
	}
	return summaryOKStyle.Render(text)
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	return commit
}
