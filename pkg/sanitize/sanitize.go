package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLength bounds sanitized values when callers use DefaultOptions.
const DefaultMaxLength = 1000

// Options configures a single sanitization pass.
type Options struct {
	// AllowHTML keeps allow-listed formatting markup instead of escaping
	// everything.
	AllowHTML bool `json:"allowHtml" yaml:"allowHtml" mapstructure:"allow_html"`
	// MaxLength truncates the sanitized value to at most this many runes.
	// Zero or negative disables truncation.
	MaxLength int `json:"maxLength" yaml:"maxLength" mapstructure:"max_length"`
	// StripScripts removes script and style blocks before the policy runs.
	// With AllowHTML it also removes dangerous tags and, inside tags,
	// script-capable URI schemes and inline event handlers.
	StripScripts bool `json:"stripScripts" yaml:"stripScripts" mapstructure:"strip_scripts"`
}

// DefaultOptions returns the text-mode policy used by form fields that do not
// configure one explicitly.
func DefaultOptions() Options {
	return Options{
		AllowHTML:    false,
		MaxLength:    DefaultMaxLength,
		StripScripts: true,
	}
}

// Report describes the outcome of a sanitization pass. Lengths are counted in
// runes.
type Report struct {
	Value           string `json:"value"`
	Changed         bool   `json:"changed"`
	OriginalLength  int    `json:"originalLength"`
	SanitizedLength int    `json:"sanitizedLength"`
}

// Sanitize returns the sanitized form of raw under opts.
func Sanitize(raw string, opts Options) string {
	return SanitizeReport(raw, opts).Value
}

// SanitizeReport sanitizes raw and reports whether the value was altered.
// Trimming surrounding whitespace alone does not count as a change.
func SanitizeReport(raw string, opts Options) Report {
	var value string
	if opts.AllowHTML {
		value = sanitizeMarkup(raw, opts)
	} else {
		value = sanitizeText(raw, opts)
	}

	return Report{
		Value:           value,
		Changed:         value != strings.TrimSpace(raw),
		OriginalLength:  utf8.RuneCountInString(raw),
		SanitizedLength: utf8.RuneCountInString(value),
	}
}

func sanitizeText(raw string, opts Options) string {
	value := normalize(html.UnescapeString(raw))
	if opts.StripScripts {
		value = stripBlocks(value)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	value = html.EscapeString(value)
	value = truncate(value, opts.MaxLength)
	return strings.TrimSpace(value)
}

func sanitizeMarkup(raw string, opts Options) string {
	value := normalize(raw)
	if opts.StripScripts {
		value = stripMarkup(value)
	}
	value = strings.TrimSpace(markupPolicy().Sanitize(value))
	value = truncate(value, opts.MaxLength)
	return strings.TrimSpace(value)
}

// normalize applies NFC and drops control characters other than tab, CR and
// LF. Invalid UTF-8 sequences are removed.
func normalize(value string) string {
	if value == "" {
		return ""
	}
	value = strings.ToValidUTF8(value, "")
	value = norm.NFC.String(value)
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, value)
}

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<\s*(script|style)\b[^>]*>.*?<\s*/\s*(script|style)\s*>`)
	dangerousTag  = regexp.MustCompile(`(?i)<\s*/?\s*(script|style|iframe|object|embed|form|input|applet|meta|link|base)\b[^>]*>`)
	anyTag        = regexp.MustCompile(`<[^<>]*>`)
	scriptScheme  = regexp.MustCompile(`(?i)(java|vb|live)script\s*:|data\s*:\s*text/html`)
	eventHandler  = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
)

// stripBlocks removes script and style blocks, content included. Text mode
// escapes everything else, so plain words like "onion=" are left alone.
func stripBlocks(value string) string {
	return fixedPoint(value, func(v string) string {
		return scriptBlockRe.ReplaceAllString(v, "")
	})
}

// stripMarkup removes executable fragments from markup. Schemes and handlers
// are only removed inside tags.
func stripMarkup(value string) string {
	return fixedPoint(value, func(v string) string {
		v = scriptBlockRe.ReplaceAllString(v, "")
		v = dangerousTag.ReplaceAllString(v, "")
		return anyTag.ReplaceAllStringFunc(v, func(tag string) string {
			tag = scriptScheme.ReplaceAllString(tag, "")
			return eventHandler.ReplaceAllString(tag, "")
		})
	})
}

// fixedPoint applies fn until the value stops changing, so removals cannot
// reassemble a payload from its pieces.
func fixedPoint(value string, fn func(string) string) string {
	for {
		next := fn(value)
		if next == value {
			return value
		}
		value = next
	}
}

// truncate cuts value to max runes without leaving a partial entity or a
// partial tag at the end.
func truncate(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}

	cut := 0
	for i := range value {
		if limit == 0 {
			cut = i
			break
		}
		limit--
	}
	value = value[:cut]

	if amp := strings.LastIndexByte(value, '&'); amp >= 0 && !strings.Contains(value[amp:], ";") {
		value = value[:amp]
	}
	if lt := strings.LastIndexByte(value, '<'); lt >= 0 && !strings.Contains(value[lt:], ">") {
		value = value[:lt]
	}
	return value
}
