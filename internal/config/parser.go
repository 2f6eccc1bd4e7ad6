package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	bimcheckerrors "github.com/modelcheck/bimcheck/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// ParseConfig loads a configuration file from disk, validates it, and
// returns the resulting model.
func ParseConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, bimcheckerrors.NewParseError(path, 0, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, bimcheckerrors.NewParseError(path, extractLine(err), err)
	}

	cfg.applyDefaults()

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load resolves the configuration for a run. An explicit path must parse.
// With no path, DefaultFileName is used when present; otherwise the
// built-in defaults apply.
func Load(path string) (*Config, error) {
	if path != "" {
		return ParseConfig(path)
	}
	if _, err := os.Stat(DefaultFileName); err == nil {
		return ParseConfig(DefaultFileName)
	}
	return Default(), nil
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	_, scanErr := fmt.Sscanf(matches[1], "%d", &line)
	if scanErr != nil {
		return 0
	}

	return line
}
