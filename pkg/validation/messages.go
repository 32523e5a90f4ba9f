package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Message keys attached to every Issue. Translators receive these keys.
const (
	CodeRequired        = "validation.required"
	CodeEmail           = "validation.email"
	CodeURL             = "validation.url"
	CodePhone           = "validation.phone"
	CodeName            = "validation.name"
	CodePassword        = "validation.password"
	CodeMinLength       = "validation.min_length"
	CodeMaxLength       = "validation.max_length"
	CodePattern         = "validation.pattern"
	CodeCustom          = "validation.custom"
	CodeUnsupportedType = "validation.unsupported_type"
)

var defaultMessages = map[string]string{
	CodeRequired:        "This field is required",
	CodeEmail:           "Please enter a valid email address",
	CodeURL:             "Please enter a valid URL starting with http:// or https://",
	CodePhone:           "Please enter a valid phone number",
	CodeName:            "Only letters, spaces, hyphens, apostrophes and periods are allowed",
	CodePassword:        "Password must contain at least one letter and one number",
	CodeMinLength:       "Must be at least %d characters",
	CodeMaxLength:       "Must be at most %d characters",
	CodePattern:         "Invalid format",
	CodeCustom:          "Invalid value",
	CodeUnsupportedType: "Unsupported field type %q",
}

// DefaultMessage returns the English text for code formatted with args.
func DefaultMessage(code string, args ...any) string {
	format, ok := defaultMessages[code]
	if !ok {
		return code
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

// Translator resolves localized strings for a given locale/key pair. Extra
// args carry the message parameters (length bounds, type names).
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// ErrMissingTranslator is reported to a MissingTranslationHandler when a
// locale is configured without a Translator.
var ErrMissingTranslator = errors.New("validation: translator not configured")

// MissingTranslationHandler decides the text used when translation fails.
// The returned string replaces the message; fallback is the English default.
type MissingTranslationHandler func(locale, key, fallback string, err error) string

func missingTranslationDefault(_ string, _ string, fallback string, _ error) string {
	return fallback
}

func (v *Validator) message(code string, args ...any) string {
	fallback := DefaultMessage(code, args...)
	if v == nil || v.locale == "" {
		return fallback
	}

	onMissing := v.onMissing
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}
	if v.translator == nil {
		return onMissing(v.locale, code, fallback, ErrMissingTranslator)
	}

	translated, err := v.translator.Translate(v.locale, code, args...)
	if err == nil && strings.TrimSpace(translated) != "" {
		return translated
	}
	return onMissing(v.locale, code, fallback, err)
}
