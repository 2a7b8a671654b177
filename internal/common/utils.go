package common

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	markdownLink = regexp.MustCompile(`^\[.*?\]\((https?://[^\)]+)\)$`)
	validURL     = regexp.MustCompile(`^https?://[a-zA-Z0-9][-a-zA-Z0-9.]*[a-zA-Z0-9](:[0-9]+)?(/[^\s]*)?$`)
)

// SanitizeURL cleans up copy-paste debris around a URL: whitespace,
// markdown link syntax, and stray leading or trailing punctuation.
func SanitizeURL(rawURL string) string {
	cleaned := strings.TrimSpace(rawURL)

	if m := markdownLink.FindStringSubmatch(cleaned); len(m) > 1 {
		cleaned = m[1]
	}

	cleaned = strings.TrimRight(cleaned, `,.)}]"'>;`)
	cleaned = strings.TrimLeft(cleaned, `([<"'`)
	return strings.TrimSpace(cleaned)
}

// SanitizeAndValidateURLs returns the cleaned valid URLs and the raw
// inputs that were rejected.
func SanitizeAndValidateURLs(urls []string) ([]string, []string) {
	valid := make([]string, 0, len(urls))
	var invalid []string

	for _, raw := range urls {
		cleaned := SanitizeURL(raw)
		if err := validate(cleaned); err != nil {
			invalid = append(invalid, raw)
			continue
		}
		valid = append(valid, cleaned)
	}
	return valid, invalid
}

func validate(u string) error {
	if u == "" {
		return fmt.Errorf("empty URL")
	}
	if strings.Contains(u, " ") {
		return fmt.Errorf("URL contains spaces")
	}
	if !validURL.MatchString(u) {
		return fmt.Errorf("URL is malformed")
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" || strings.ContainsAny(parsed.Host, "{}[]<>\"'") {
		return fmt.Errorf("invalid host")
	}
	return nil
}

// SplitList splits a comma separated flag value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
