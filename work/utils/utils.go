package utils

import (
	"aircast/work/config"
	"net/url"
	"strings"
)

// LogURL returns either the original URL or an obfuscated version for logging
func LogURL(cfg *config.Config, url string) string {
	if cfg.ObfuscateUrls {
		return ObfuscateURL(url)
	}
	return url
}

// ObfuscateURL keeps the scheme and host of a URL but hides the path,
// query and fragment so media locations don't leak into logs verbatim.
func ObfuscateURL(urlStr string) string {
	if urlStr == "" {
		return ""
	}

	// Parse the URL
	u, err := url.Parse(urlStr)
	if err != nil {
		// If parsing fails, just obfuscate the whole thing
		return "***OBFUSCATED***"
	}

	// Keep scheme and host, obfuscate path and query
	result := u.Scheme + "://" + u.Host
	if u.Path != "" && u.Path != "/" {
		result += "/***"
	}
	if u.RawQuery != "" {
		result += "?***"
	}
	if u.Fragment != "" {
		result += "#***"
	}

	return result
}

// ShortSessionID trims an Apple session UUID down to its first group for
// log lines that would otherwise repeat the full 36 characters everywhere.
func ShortSessionID(sessionID string) string {
	if idx := strings.IndexByte(sessionID, '-'); idx > 0 {
		return sessionID[:idx]
	}
	return sessionID
}
