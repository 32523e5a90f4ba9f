package validation

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies an Issue so callers can tell missing values from malformed
// ones.
type Kind string

const (
	KindRequired Kind = "required"
	KindFormat   Kind = "format"
)

// Issue is a single field-level problem. Message is already localized.
type Issue struct {
	Code    string `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Result is produced fresh by every validation call.
type Result struct {
	Valid  bool     `json:"valid"`
	Value  string   `json:"value"`
	Errors []string `json:"errors,omitempty"`
	Issues []Issue  `json:"issues,omitempty"`
}

// HasKind reports whether any issue carries kind.
func (r Result) HasKind(kind Kind) bool {
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			return true
		}
	}
	return false
}

// Option configures a Validator.
type Option func(*Validator)

// WithLocale selects the locale passed to the Translator.
func WithLocale(locale string) Option {
	return func(v *Validator) {
		v.locale = strings.TrimSpace(locale)
	}
}

// WithTranslator localizes error messages.
func WithTranslator(t Translator) Option {
	return func(v *Validator) {
		v.translator = t
	}
}

// WithMissingTranslationHandler overrides the fallback used when a message
// cannot be translated.
func WithMissingTranslationHandler(fn MissingTranslationHandler) Option {
	return func(v *Validator) {
		v.onMissing = fn
	}
}

// Validator checks sanitized values against Rules. The zero value is usable
// and emits English messages.
type Validator struct {
	locale     string
	translator Translator
	onMissing  MissingTranslationHandler
}

// New constructs a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(v)
	}
	return v
}

var defaultValidator = &Validator{}

// Validate checks value against rule using English messages.
func Validate(value string, rule Rule) Result {
	return defaultValidator.Validate(value, rule)
}

var (
	emailPattern = regexp.MustCompile(`(?i)^[a-z0-9.!#$%&'*+/=?^_{|}~-]+@[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)+$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9\s\-().]{7,20}$`)
	namePattern  = regexp.MustCompile(`^[\p{L}\p{M}][\p{L}\p{M}\s'.\-]*$`)
)

// Validate checks value (expected to be the sanitizer's output) against
// rule. HTML entities are decoded before format and length checks so escaped
// punctuation is judged as the character the user typed. The required check
// runs first; an empty value produces at most the required issue.
func (v *Validator) Validate(value string, rule Rule) Result {
	result := Result{Valid: true, Value: value}
	plain := strings.TrimSpace(html.UnescapeString(value))

	if plain == "" {
		if rule.required {
			result.add(Issue{Code: CodeRequired, Kind: KindRequired, Message: v.message(CodeRequired)})
		}
		return result
	}

	switch rule.fieldType {
	case FieldTypeText:
	case FieldTypeEmail:
		if !emailPattern.MatchString(plain) {
			result.add(v.formatIssue(CodeEmail))
		}
	case FieldTypeURL:
		if !isHTTPURL(plain) {
			result.add(v.formatIssue(CodeURL))
		}
	case FieldTypePhone:
		if !isPhone(plain) {
			result.add(v.formatIssue(CodePhone))
		}
	case FieldTypeName:
		if !namePattern.MatchString(plain) {
			result.add(v.formatIssue(CodeName))
		}
	case FieldTypePassword:
		if !hasLetterAndDigit(plain) {
			result.add(v.formatIssue(CodePassword))
		}
	default:
		result.add(Issue{
			Code:    CodeUnsupportedType,
			Kind:    KindFormat,
			Message: v.message(CodeUnsupportedType, string(rule.fieldType)),
		})
		return result
	}

	length := utf8.RuneCountInString(plain)
	if rule.minLength > 0 && length < rule.minLength {
		result.add(Issue{Code: CodeMinLength, Kind: KindFormat, Message: v.message(CodeMinLength, rule.minLength)})
	}
	if rule.maxLength > 0 && length > rule.maxLength {
		result.add(Issue{Code: CodeMaxLength, Kind: KindFormat, Message: v.message(CodeMaxLength, rule.maxLength)})
	}

	if rule.pattern != nil && !rule.pattern.MatchString(plain) {
		msg := rule.patternMsg
		if msg == "" {
			msg = v.message(CodePattern)
		}
		result.add(Issue{Code: CodePattern, Kind: KindFormat, Message: msg})
	}

	if rule.custom != nil && !rule.custom(plain) {
		msg := rule.customMessage
		if msg == "" {
			msg = v.message(CodeCustom)
		}
		result.add(Issue{Code: CodeCustom, Kind: KindFormat, Message: msg})
	}

	return result
}

func (v *Validator) formatIssue(code string) Issue {
	return Issue{Code: code, Kind: KindFormat, Message: v.message(code)}
}

func (r *Result) add(issue Issue) {
	r.Valid = false
	r.Issues = append(r.Issues, issue)
	r.Errors = MergeErrors(r.Errors, issue.Message)
}

func isHTTPURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}

func isPhone(value string) bool {
	if !phonePattern.MatchString(value) {
		return false
	}
	digits := 0
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

func hasLetterAndDigit(value string) bool {
	var letter, digit bool
	for _, r := range value {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
		if letter && digit {
			return true
		}
	}
	return false
}
