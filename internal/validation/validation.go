package validation

import (
	"net/url"
	"regexp"
	"strings"
)

// IndicatorIDPattern defines the valid indicator id format: lowercase alphanumerics and underscores.
var IndicatorIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidateIndicatorID checks if an indicator id matches the allowed pattern.
func ValidateIndicatorID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	return IndicatorIDPattern.MatchString(id)
}

// ValidateURL checks if a URL is valid and uses an allowed scheme (http/https only).
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	if u.Host == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}
