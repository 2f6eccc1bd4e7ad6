// Package discovery locates checker files on disk and enforces the naming
// convention: every Starlark file in the checkers directory must be named
// checker_*.star unless it is the template or explicitly exempted.
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// DefaultPattern matches checker files by name.
	DefaultPattern = "checker_*.star"
	// DefaultTemplateName is the starter file handed to checker authors.
	// It matches the pattern but is never treated as a checker.
	DefaultTemplateName = "checker_template.star"
	// sourceExt is the extension the naming rule applies to. Files with
	// other extensions may live in the directory freely.
	sourceExt = ".star"
)

// Options configures a discovery pass.
type Options struct {
	// Dir is the checkers directory.
	Dir string
	// Pattern overrides DefaultPattern.
	Pattern string
	// TemplateName overrides DefaultTemplateName.
	TemplateName string
	// Exempt lists file names the naming rule ignores entirely.
	Exempt []string
}

func (o Options) pattern() string {
	if o.Pattern != "" {
		return o.Pattern
	}
	return DefaultPattern
}

func (o Options) templateName() string {
	if o.TemplateName != "" {
		return o.TemplateName
	}
	return DefaultTemplateName
}

func (o Options) exempt(name string) bool {
	for _, e := range o.Exempt {
		if name == e {
			return true
		}
	}
	return false
}

// Result is the outcome of one discovery pass.
type Result struct {
	// DirExists reports whether the checkers directory was present at all.
	DirExists bool
	// Files holds the discovered checker files, sorted by name and joined
	// with the directory they were found in.
	Files []string
	// Misnamed holds Starlark files that violate the naming convention.
	Misnamed []string
}

// Discover scans the checkers directory. A missing directory is not an
// error; it comes back as DirExists=false with no files, and the caller
// decides what that means.
func Discover(opts Options) (Result, error) {
	var res Result

	info, err := os.Stat(opts.Dir)
	if os.IsNotExist(err) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("stat checkers directory: %w", err)
	}
	if !info.IsDir() {
		return res, fmt.Errorf("checkers path %q is not a directory", opts.Dir)
	}
	res.DirExists = true

	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return res, fmt.Errorf("read checkers directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if opts.exempt(name) {
			continue
		}
		matched, err := doublestar.Match(opts.pattern(), name)
		if err != nil {
			return res, fmt.Errorf("match pattern %q: %w", opts.pattern(), err)
		}
		switch {
		case name == opts.templateName():
			// Template ships with the assignment; never a checker.
		case matched:
			res.Files = append(res.Files, filepath.Join(opts.Dir, name))
		case strings.EqualFold(filepath.Ext(name), sourceExt):
			res.Misnamed = append(res.Misnamed, filepath.Join(opts.Dir, name))
		}
	}

	sort.Strings(res.Files)
	sort.Strings(res.Misnamed)
	return res, nil
}

// IsCheckerFile reports whether the base name of path counts as a checker
// under opts. Watch mode uses it to decide whether a filesystem event is
// worth a re-run.
func IsCheckerFile(path string, opts Options) bool {
	name := filepath.Base(path)
	if opts.exempt(name) || name == opts.templateName() {
		return false
	}
	matched, err := doublestar.Match(opts.pattern(), name)
	return err == nil && matched
}
