package config

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"

	"github.com/modelcheck/bimcheck/internal/fixture"
	bimcheckerrors "github.com/modelcheck/bimcheck/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	semverPattern = regexp.MustCompile(`^\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z-.]+)?(?:\+[0-9A-Za-z-.]+)?$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			return semverPattern.MatchString(fl.Field().String())
		})

		_ = v.RegisterValidation("fixture_id", func(fl validator.FieldLevel) bool {
			return fixture.Valid(fixture.ID(fl.Field().String()))
		})

		validateInst = v
	})

	return validateInst
}

// ValidateConfig performs schema and cross-field validation on the
// configuration.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return bimcheckerrors.NewValidationError("config", "configuration is nil", nil)
	}

	v := validatorInstance()
	if err := v.Struct(cfg); err != nil {
		return convertValidationError(err)
	}

	if cfg.Checkers.Pattern != "" && !doublestar.ValidatePattern(cfg.Checkers.Pattern) {
		return bimcheckerrors.NewValidationError("checkers.pattern", fmt.Sprintf("invalid glob pattern %q", cfg.Checkers.Pattern), nil)
	}

	for i, name := range cfg.Checkers.Exempt {
		if strings.ContainsAny(name, `/\`) {
			field := fmt.Sprintf("checkers.exempt[%d]", i)
			return bimcheckerrors.NewValidationError(field, fmt.Sprintf("exempt entry %q must be a bare file name", name), nil)
		}
	}

	seen := make(map[string]struct{}, len(cfg.Fixtures))
	for i, f := range cfg.Fixtures {
		if _, dup := seen[f]; dup {
			field := fmt.Sprintf("fixtures[%d]", i)
			return bimcheckerrors.NewValidationError(field, fmt.Sprintf("duplicate fixture %q", f), nil)
		}
		seen[f] = struct{}{}
	}

	return nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	if ves, ok := err.(validator.ValidationErrors); ok {
		ve := ves[0]
		field := yamlishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return bimcheckerrors.NewValidationError(field, msg, err)
	}

	return bimcheckerrors.NewValidationError("config", err.Error(), err)
}

func yamlishFieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	parts := strings.Split(ns, ".")
	var lowered []string
	for _, part := range parts {
		lowered = append(lowered, strings.ToLower(part))
	}
	return strings.Join(lowered, ".")
}
