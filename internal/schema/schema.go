// Package schema defines the result contract every checker function must
// honor: each invocation returns a list of dicts, and each dict carries the
// nine required keys with the value types and status vocabulary fixed here.
package schema

// Required keys of a check result entry.
const (
	KeyElementID       = "element_id"
	KeyElementType     = "element_type"
	KeyElementName     = "element_name"
	KeyElementNameLong = "element_name_long"
	KeyCheckStatus     = "check_status"
	KeyActualValue     = "actual_value"
	KeyRequiredValue   = "required_value"
	KeyComment         = "comment"
	KeyLog             = "log"
)

// RequiredKeys lists every contract key in canonical report order.
var RequiredKeys = []string{
	KeyElementID,
	KeyElementType,
	KeyElementName,
	KeyElementNameLong,
	KeyCheckStatus,
	KeyActualValue,
	KeyRequiredValue,
	KeyComment,
	KeyLog,
}

// Status is the outcome vocabulary for a single check result entry.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusWarning Status = "warning"
	StatusBlocked Status = "blocked"
	StatusLog     Status = "log"
)

// ValidStatuses holds every accepted check_status value.
var ValidStatuses = map[Status]bool{
	StatusPass:    true,
	StatusFail:    true,
	StatusWarning: true,
	StatusBlocked: true,
	StatusLog:     true,
}

// StatusOrder lists statuses in documentation order, used for messages and
// report summaries.
var StatusOrder = []Status{StatusPass, StatusFail, StatusWarning, StatusBlocked, StatusLog}

// StringFields are the keys whose values must be strings, never None.
var StringFields = []string{
	KeyElementType,
	KeyElementName,
	KeyCheckStatus,
	KeyActualValue,
	KeyRequiredValue,
}

// NullableFields are the keys whose values may be either a string or None.
// element_id is validated separately so identifier problems report under
// their own heading, but it follows the same string-or-None rule.
var NullableFields = []string{
	KeyElementNameLong,
	KeyComment,
	KeyLog,
}

// IsValidStatus reports whether s is an accepted check_status value.
func IsValidStatus(s string) bool {
	return ValidStatuses[Status(s)]
}

// CheckResult is a fully decoded, contract-conforming result entry.
// Nullable keys decode to nil pointers when the checker returned None.
type CheckResult struct {
	ElementID       *string `json:"element_id"`
	ElementType     string  `json:"element_type"`
	ElementName     string  `json:"element_name"`
	ElementNameLong *string `json:"element_name_long"`
	CheckStatus     Status  `json:"check_status"`
	ActualValue     string  `json:"actual_value"`
	RequiredValue   string  `json:"required_value"`
	Comment         *string `json:"comment"`
	Log             *string `json:"log"`
}
