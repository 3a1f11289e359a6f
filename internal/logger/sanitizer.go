package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// Sanitizer masks sensitive data in command arguments to prevent accidental
// logging of secrets. Detection is based on column names appearing in the SQL.
type Sanitizer struct {
	maskValue string
	patterns  []*regexp.Regexp
}

// defaultSensitiveFields are common column names that carry secrets.
var defaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

// NewSanitizer creates a sanitizer for the given sensitive field names.
// With no fields, a default set of common sensitive names is used.
func NewSanitizer(sensitiveFields ...string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = defaultSensitiveFields
	}

	patterns := make([]*regexp.Regexp, 0, len(sensitiveFields))
	for _, field := range sensitiveFields {
		patterns = append(patterns, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(field)+`\b`))
	}

	return &Sanitizer{
		maskValue: "***REDACTED***",
		patterns:  patterns,
	}
}

// MaskArgs returns a copy of args with values masked when the SQL references
// a sensitive column. The original slice is not modified.
func (s *Sanitizer) MaskArgs(sql string, args []any) []any {
	if len(args) == 0 || !s.sensitive(sql) {
		return args
	}

	masked := make([]any, len(args))
	for i := range args {
		masked[i] = s.maskValue
	}
	return masked
}

func (s *Sanitizer) sensitive(sql string) bool {
	for _, pattern := range s.patterns {
		if pattern.MatchString(sql) {
			return true
		}
	}
	return false
}

// FormatArgs converts arguments to a safe string representation for log lines.
// Mask sensitive values with MaskArgs before calling this.
func (s *Sanitizer) FormatArgs(args []any) string {
	if len(args) == 0 {
		return "[]"
	}

	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = formatValue(a)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// formatValue formats a single argument, truncating very long values.
func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}

	str := fmt.Sprintf("%v", v)
	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}
