package sqlguard

import (
	"fmt"
	"strings"
)

// Severity grades how badly a statement failed validation.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Result is the outcome of validating one generated statement.
// A statement is never executed without a Result whose IsValid is true.
type Result struct {
	IsValid             bool     `json:"is_valid"`
	Error               string   `json:"error,omitempty"`
	Severity            Severity `json:"severity,omitempty"`
	Confidence          float64  `json:"confidence,omitempty"`
	EstimatedComplexity string   `json:"estimated_complexity,omitempty"`
}

// blockedKeywords is the single policy table shared by the validation agent
// and the execution gateway. Matching is case-insensitive substring over the
// whole statement, so "SELECT created_at ..." is rejected too; generated
// statements only ever reference sanitized column placeholders, which keeps
// the coarse match acceptable.
var blockedKeywords = []string{
	"DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "CREATE",
	"TRUNCATE", "EXEC", "EXECUTE", "GRANT", "REVOKE", "UNION", "SCRIPT",
}

// Validate applies the allow-list policy: no blocked keyword anywhere in the
// statement, and the trimmed statement must begin with SELECT.
func Validate(query string) Result {
	upper := strings.ToUpper(query)
	for _, kw := range blockedKeywords {
		if strings.Contains(upper, kw) {
			return Result{
				IsValid:  false,
				Error:    fmt.Sprintf("disallowed SQL operation: %s", kw),
				Severity: SeverityHigh,
			}
		}
	}

	if !strings.HasPrefix(strings.TrimSpace(upper), "SELECT") {
		return Result{
			IsValid:  false,
			Error:    "only SELECT statements are allowed",
			Severity: SeverityMedium,
		}
	}

	return Result{
		IsValid:             true,
		Confidence:          0.9,
		EstimatedComplexity: "medium",
	}
}

// EnsureLimit appends a LIMIT clause when the statement has none.
func EnsureLimit(query string, maxRows int) string {
	if strings.Contains(strings.ToUpper(query), "LIMIT") {
		return query
	}
	return fmt.Sprintf("%s LIMIT %d", strings.TrimRight(query, "; \t\n"), maxRows)
}

// ValidTableName reports whether a table name is safe to interpolate into a
// preview or schema lookup. Only alphanumerics, underscore and hyphen pass.
func ValidTableName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
