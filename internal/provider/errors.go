package provider

import "strings"

// FailureKind classifies an external language-model failure for user-facing
// reporting.
type FailureKind string

const (
	FailureAuth      FailureKind = "authentication"
	FailureRateLimit FailureKind = "rate_limit"
	FailureGeneric   FailureKind = "generic"
)

// ClassifyError maps a provider error onto a failure kind and a message
// suitable for returning to the caller.
func ClassifyError(err error) (FailureKind, string) {
	if err == nil {
		return FailureGeneric, ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "invalid api key") || strings.Contains(msg, "unauthorized"):
		return FailureAuth, "authentication with the language-model API failed; check the configured key"
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit"):
		return FailureRateLimit, "language-model API rate limit reached; try again later"
	default:
		return FailureGeneric, "language-model request failed: " + err.Error()
	}
}
