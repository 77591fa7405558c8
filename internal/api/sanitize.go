package api

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/quern/askdata/internal/dbconn"
)

// allowedUploadExts are the tabular file types the upload endpoint accepts.
var allowedUploadExts = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".xls":  true,
	".json": true,
}

// suspiciousPatterns flag questions carrying injection payloads rather than
// natural language.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)eval\s*\(`),
	regexp.MustCompile(`(?i)exec\s*\(`),
}

// validateUploadName checks the uploaded filename against the extension
// allow-list.
func validateUploadName(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedUploadExts[ext] {
		return fmt.Errorf("file type %q is not supported", ext)
	}
	return nil
}

// validateQuestion enforces the length cap and rejects injection payloads.
func validateQuestion(question string, maxLen int) error {
	q := strings.TrimSpace(question)
	if q == "" {
		return fmt.Errorf("question must not be empty")
	}
	if len(q) > maxLen {
		return fmt.Errorf("question exceeds %d characters", maxLen)
	}
	for _, p := range suspiciousPatterns {
		if p.MatchString(q) {
			return fmt.Errorf("question contains disallowed content")
		}
	}
	return nil
}

// validateDBTarget accepts a relative SQLite file path or a PostgreSQL DSN.
func validateDBTarget(target string) error {
	if target == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if dbconn.IsPostgresDSN(target) {
		return nil
	}
	if strings.Contains(target, "..") {
		return fmt.Errorf("db_path must not contain path traversal")
	}
	if filepath.IsAbs(target) {
		return fmt.Errorf("db_path must be relative")
	}
	lower := strings.ToLower(target)
	if !strings.HasSuffix(lower, ".db") && !strings.HasSuffix(lower, ".sqlite") {
		return fmt.Errorf("db_path must point to a .db or .sqlite file")
	}
	return nil
}
