package logger

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// DefaultMask replaces sensitive values in log output.
const DefaultMask = "***REDACTED***"

// Sanitizer masks sensitive bind parameters to prevent accidental logging of
// secrets. A parameter is sensitive when its name, with underscores removed,
// contains one of the configured field names (case-insensitive), so
// PasswordHash and password_hash both match "password".
type Sanitizer struct {
	sensitiveFields []string
	maskValue       string
}

// NewSanitizer creates a new sanitizer with the specified sensitive field names.
// If no fields are provided, a default set of common sensitive field names is used.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = []string{
			"password", "passwd", "pwd",
			"token", "apikey", "secret",
			"authorization", "creditcard", "cardnumber", "cvv", "cvc",
			"ssn", "socialsecurity", "privatekey",
		}
	}

	normalized := make([]string, 0, len(sensitiveFields))
	for _, f := range sensitiveFields {
		if f = normalize(f); f != "" {
			normalized = append(normalized, f)
		}
	}

	return &Sanitizer{
		sensitiveFields: normalized,
		maskValue:       DefaultMask,
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

// IsSensitive reports whether a parameter name matches a sensitive field.
func (s *Sanitizer) IsSensitive(name string) bool {
	n := normalize(name)
	for _, f := range s.sensitiveFields {
		if strings.Contains(n, f) {
			return true
		}
	}
	return false
}

// MaskParams returns a copy of params with sensitive values replaced by the
// mask value. Original parameters are not modified.
func (s *Sanitizer) MaskParams(params map[string]interface{}) map[string]interface{} {
	if len(params) == 0 {
		return params
	}

	masked := make(map[string]interface{}, len(params))
	for k, v := range params {
		if s.IsSensitive(k) {
			masked[k] = s.maskValue
		} else {
			masked[k] = v
		}
	}
	return masked
}

// FormatParams renders params as "{a=1, b=x}" sorted by name, masking
// sensitive values.
func (s *Sanitizer) FormatParams(params map[string]interface{}) string {
	if len(params) == 0 {
		return "{}"
	}

	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, k := range names {
		v := params[k]
		if s.IsSensitive(k) {
			v = s.maskValue
		}
		parts[i] = k + "=" + s.formatValue(v)
	}

	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single parameter value for logging.
// Truncates very long strings to prevent log pollution.
func (s *Sanitizer) formatValue(v interface{}) string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "NULL"
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return "NULL"
	}
	v = rv.Interface()

	str := fmt.Sprintf("%v", v)

	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}

	return str
}
