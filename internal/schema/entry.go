package schema

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
)

// IssueKind classifies a contract issue so callers can group findings by the
// rule that was broken rather than by field name alone.
type IssueKind string

const (
	// IssueMissingKey means a required key is absent from the entry.
	IssueMissingKey IssueKind = "missing_key"
	// IssueInvalidStatus means check_status is outside the status vocabulary.
	IssueInvalidStatus IssueKind = "invalid_status"
	// IssueStringType means a strict string field holds a non-string value.
	IssueStringType IssueKind = "string_type"
	// IssueNullableType means a nullable field holds something other than a
	// string or None.
	IssueNullableType IssueKind = "nullable_type"
	// IssueElementIDType means element_id is neither a string nor None.
	IssueElementIDType IssueKind = "element_id_type"
)

// Issue describes one contract problem found in a result entry.
type Issue struct {
	Kind    IssueKind
	Field   string
	Message string
}

// CheckDict validates a single result entry against the contract. It reports
// every issue it finds rather than stopping at the first, so one malformed
// entry surfaces all of its problems at once.
func CheckDict(d *starlark.Dict) []Issue {
	_, issues := Decode(d)
	return issues
}

// Decode validates d and converts it to a typed CheckResult. The result is
// only meaningful when the returned issues slice is empty. Missing keys are
// reported once each; type and status rules apply only to keys that are
// present.
func Decode(d *starlark.Dict) (CheckResult, []Issue) {
	var (
		res    CheckResult
		issues []Issue
	)

	present := make(map[string]starlark.Value, len(RequiredKeys))
	for _, key := range RequiredKeys {
		v, found, err := d.Get(starlark.String(key))
		if err != nil || !found {
			issues = append(issues, Issue{
				Kind:    IssueMissingKey,
				Field:   key,
				Message: fmt.Sprintf("missing required key %q", key),
			})
			continue
		}
		present[key] = v
	}

	if v, ok := present[KeyElementID]; ok {
		res.ElementID, issues = decodeNullable(v, KeyElementID, IssueElementIDType, issues)
	}
	for _, key := range StringFields {
		v, ok := present[key]
		if !ok {
			continue
		}
		s, sok := starlark.AsString(v)
		if !sok {
			issues = append(issues, Issue{
				Kind:    IssueStringType,
				Field:   key,
				Message: fmt.Sprintf("%s must be a string, got %s", key, v.Type()),
			})
			continue
		}
		switch key {
		case KeyElementType:
			res.ElementType = s
		case KeyElementName:
			res.ElementName = s
		case KeyCheckStatus:
			res.CheckStatus = Status(s)
		case KeyActualValue:
			res.ActualValue = s
		case KeyRequiredValue:
			res.RequiredValue = s
		}
	}
	if v, ok := present[KeyCheckStatus]; ok {
		if s, sok := starlark.AsString(v); !sok || !IsValidStatus(s) {
			issues = append(issues, Issue{
				Kind:    IssueInvalidStatus,
				Field:   KeyCheckStatus,
				Message: fmt.Sprintf("check_status must be one of %s, got %s", statusList(), displayValue(v)),
			})
		}
	}
	for _, key := range NullableFields {
		v, ok := present[key]
		if !ok {
			continue
		}
		var ptr *string
		ptr, issues = decodeNullable(v, key, IssueNullableType, issues)
		switch key {
		case KeyElementNameLong:
			res.ElementNameLong = ptr
		case KeyComment:
			res.Comment = ptr
		case KeyLog:
			res.Log = ptr
		}
	}

	return res, issues
}

func decodeNullable(v starlark.Value, key string, kind IssueKind, issues []Issue) (*string, []Issue) {
	if v == starlark.None {
		return nil, issues
	}
	if s, ok := starlark.AsString(v); ok {
		return &s, issues
	}
	return nil, append(issues, Issue{
		Kind:    kind,
		Field:   key,
		Message: fmt.Sprintf("%s must be a string or None, got %s", key, v.Type()),
	})
}

func statusList() string {
	names := make([]string, len(StatusOrder))
	for i, s := range StatusOrder {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func displayValue(v starlark.Value) string {
	if s, ok := starlark.AsString(v); ok {
		return fmt.Sprintf("%q", s)
	}
	return v.String()
}
