package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxQueryLength bounds label search queries accepted from untrusted callers.
const MaxQueryLength = 512

// ValidatePath validates a user-supplied file path for safety.
// It is used for paths that arrive over HTTP (default tree overrides, snapshot
// files for search), never for paths given on the local command line.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateQuery validates a label search query.
// In regex mode the pattern must also compile; the compiled form is discarded
// and callers compile their own case-insensitive variant.
func ValidateQuery(query string, regex bool) error {
	if query == "" {
		return New(ErrCodeInvalidQuery, "query cannot be empty")
	}
	if len(query) > MaxQueryLength {
		return New(ErrCodeInvalidQuery, "query too long (max %d characters)", MaxQueryLength)
	}
	for _, r := range query {
		if r == '\x00' {
			return New(ErrCodeInvalidQuery, "query contains null bytes")
		}
	}
	if regex {
		if _, err := regexp.Compile(query); err != nil {
			return Wrap(ErrCodeInvalidQuery, err, "invalid regular expression %q", query)
		}
	}
	return nil
}
