package sanitize

import (
	"net/url"
	"strings"
)

// Email trims the address, removes control characters and lower-cases the
// domain part. The local part keeps its case.
func Email(raw string) string {
	value := strings.TrimSpace(normalize(raw))
	if value == "" {
		return ""
	}
	at := strings.LastIndexByte(value, '@')
	if at < 0 {
		return value
	}
	return value[:at+1] + strings.ToLower(value[at+1:])
}

// Phone keeps digits, spaces and the separators + - ( ) . and collapses runs
// of whitespace.
func Phone(raw string) string {
	kept := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == '+', r == '-', r == '(', r == ')', r == '.':
			return r
		case r == ' ', r == '\t':
			return ' '
		default:
			return -1
		}
	}, raw)
	return strings.Join(strings.Fields(kept), " ")
}

// URL returns the canonical form of an absolute http or https URL and an
// empty string for anything else.
func URL(raw string) string {
	value := strings.TrimSpace(normalize(raw))
	if value == "" {
		return ""
	}
	parsed, err := url.Parse(value)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return ""
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	return parsed.String()
}
