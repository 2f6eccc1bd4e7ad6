package config

import (
	"time"

	"github.com/modelcheck/bimcheck/internal/discovery"
	"github.com/modelcheck/bimcheck/internal/fixture"
)

const (
	// DefaultFileName is the configuration file Load looks for when no
	// path is given.
	DefaultFileName = "bimcheck.yaml"
	// DefaultCheckersDir is where checker files live unless the
	// configuration says otherwise.
	DefaultCheckersDir = "checkers"
)

// Config represents the full bimcheck configuration document.
type Config struct {
	Version  string         `yaml:"version" validate:"required,semver"`
	Name     string         `yaml:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Checkers CheckersConfig `yaml:"checkers"`
	Fixtures []string       `yaml:"fixtures,omitempty" validate:"omitempty,min=1,dive,fixture_id"`
	Report   ReportConfig   `yaml:"report,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Watch    WatchConfig    `yaml:"watch,omitempty"`
	Runner   RunnerConfig   `yaml:"runner,omitempty"`
}

// CheckersConfig locates the checker files under validation. An unset
// dir falls back to DefaultCheckersDir.
type CheckersConfig struct {
	Dir      string   `yaml:"dir,omitempty"`
	Pattern  string   `yaml:"pattern,omitempty"`
	Template string   `yaml:"template,omitempty"`
	Exempt   []string `yaml:"exempt,omitempty" validate:"omitempty,dive,min=1"`
}

// ReportConfig controls how results are rendered.
type ReportConfig struct {
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=table json csv"`
	Output string `yaml:"output,omitempty"`
}

// StoreConfig controls the run history database.
type StoreConfig struct {
	Path     string `yaml:"path,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms,omitempty" validate:"omitempty,min=10,max=60000"`
}

// RunnerConfig bounds checker execution.
type RunnerConfig struct {
	MaxSteps int64 `yaml:"max_steps,omitempty" validate:"omitempty,min=0"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version: "1.0",
		Checkers: CheckersConfig{
			Dir: DefaultCheckersDir,
		},
	}
}

func (c *Config) applyDefaults() {
	if c.Checkers.Dir == "" {
		c.Checkers.Dir = DefaultCheckersDir
	}
}

// DiscoveryOptions converts the checkers section into discovery options.
func (c *Config) DiscoveryOptions() discovery.Options {
	return discovery.Options{
		Dir:          c.Checkers.Dir,
		Pattern:      c.Checkers.Pattern,
		TemplateName: c.Checkers.Template,
		Exempt:       append([]string(nil), c.Checkers.Exempt...),
	}
}

// FixtureIDs converts the fixtures section into fixture identifiers. An
// empty section means the full canonical set.
func (c *Config) FixtureIDs() []fixture.ID {
	if len(c.Fixtures) == 0 {
		return nil
	}
	ids := make([]fixture.ID, 0, len(c.Fixtures))
	for _, f := range c.Fixtures {
		ids = append(ids, fixture.ID(f))
	}
	return ids
}

// Debounce returns the watch debounce window, or zero when unset so the
// watcher applies its own default.
func (c *Config) Debounce() time.Duration {
	if c.Watch.DebounceMS == 0 {
		return 0
	}
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}
