package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateSource validates an asset source before it is handed to a loader.
// Accepted forms are http(s) URLs, data: URLs and plain file paths.
//
// File paths are checked conservatively:
//   - No control characters or null bytes
//   - No path traversal sequences (..)
//   - Maximum length of 1024 characters
func ValidateSource(src string) error {
	if src == "" {
		return New(ErrCodeInvalidSource, "source cannot be empty")
	}

	switch {
	case strings.HasPrefix(src, "data:"):
		if !strings.Contains(src, ",") {
			return New(ErrCodeInvalidSource, "data URL has no payload")
		}
		return nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return ValidateURL(src)
	case strings.Contains(src, "://"):
		return New(ErrCodeInvalidSource, "unsupported source scheme: %q", src[:strings.Index(src, "://")])
	}

	const maxPathLength = 1024
	if len(src) > maxPathLength {
		return New(ErrCodeInvalidSource, "path too long (max %d characters)", maxPathLength)
	}
	for _, r := range src {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidSource, "path contains invalid characters")
		}
	}
	for _, seg := range strings.Split(strings.ReplaceAll(src, "\\", "/"), "/") {
		if seg == ".." {
			return New(ErrCodeInvalidSource, "path cannot contain path traversal sequences (..)")
		}
	}
	return nil
}

// ValidateAssetName validates a backend asset name used to build URL paths
// such as "title_1.png" or a data file name.
func ValidateAssetName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "asset name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeInvalidInput, "asset name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "asset name contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
		"?",    // Query injection
		"#",    // Fragment injection
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidInput, "asset name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidatePath validates a relative file path for safety.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
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

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// sessionIDRegex matches session identifiers: hex strings or UUIDs.
var sessionIDRegex = regexp.MustCompile(`^[a-fA-F0-9-]{8,64}$`)

// ValidateSessionID validates a workbench session identifier.
func ValidateSessionID(id string) error {
	if !sessionIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid session id: %q", id)
	}
	return nil
}
