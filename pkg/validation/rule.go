package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// FieldType is the closed set of field kinds the validator understands.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeEmail    FieldType = "email"
	FieldTypeURL      FieldType = "url"
	FieldTypePhone    FieldType = "phone"
	FieldTypeName     FieldType = "name"
	FieldTypePassword FieldType = "password"
)

// FieldTypes lists every supported field type in declaration order.
func FieldTypes() []FieldType {
	return []FieldType{
		FieldTypeText,
		FieldTypeEmail,
		FieldTypeURL,
		FieldTypePhone,
		FieldTypeName,
		FieldTypePassword,
	}
}

// ParseFieldType resolves a case-insensitive field type name.
func ParseFieldType(raw string) (FieldType, error) {
	candidate := FieldType(strings.ToLower(strings.TrimSpace(raw)))
	if candidate == "" {
		return FieldTypeText, nil
	}
	for _, known := range FieldTypes() {
		if candidate == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("validation: unknown field type %q", raw)
}

// Rule is an immutable set of constraints for one field. Build it with
// NewRule or RuleConfig.Compile.
type Rule struct {
	fieldType     FieldType
	required      bool
	minLength     int
	maxLength     int
	pattern       *regexp.Regexp
	patternMsg    string
	custom        func(string) bool
	customMessage string
}

// RuleOption customises a Rule during construction.
type RuleOption func(*Rule)

// Required marks the field as mandatory.
func Required() RuleOption {
	return func(r *Rule) {
		r.required = true
	}
}

// MinLength sets the minimum length in runes. Zero keeps the type default.
func MinLength(n int) RuleOption {
	return func(r *Rule) {
		if n > 0 {
			r.minLength = n
		}
	}
}

// MaxLength sets the maximum length in runes. Zero keeps the type default.
func MaxLength(n int) RuleOption {
	return func(r *Rule) {
		if n > 0 {
			r.maxLength = n
		}
	}
}

// Pattern requires the value to match re. message replaces the default
// pattern error when non-empty.
func Pattern(re *regexp.Regexp, message string) RuleOption {
	return func(r *Rule) {
		r.pattern = re
		r.patternMsg = strings.TrimSpace(message)
	}
}

// Custom adds a caller supplied predicate evaluated after the built-in checks.
func Custom(fn func(string) bool, message string) RuleOption {
	return func(r *Rule) {
		r.custom = fn
		r.customMessage = strings.TrimSpace(message)
	}
}

// NewRule constructs a Rule for fieldType with type defaults applied before
// the supplied options.
func NewRule(fieldType FieldType, opts ...RuleOption) Rule {
	rule := Rule{fieldType: fieldType}
	switch fieldType {
	case FieldTypeName:
		rule.minLength = 1
		rule.maxLength = 100
	case FieldTypePassword:
		rule.minLength = 8
		rule.maxLength = 128
	case FieldTypeEmail:
		rule.maxLength = 254
	case FieldTypeURL:
		rule.maxLength = 2048
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&rule)
	}
	return rule
}

// Type reports the field type.
func (r Rule) Type() FieldType { return r.fieldType }

// IsRequired reports whether empty values are rejected.
func (r Rule) IsRequired() bool { return r.required }

// MinLength returns the minimum length and whether one is set.
func (r Rule) MinLength() (int, bool) { return r.minLength, r.minLength > 0 }

// MaxLength returns the maximum length and whether one is set.
func (r Rule) MaxLength() (int, bool) { return r.maxLength, r.maxLength > 0 }

// Pattern returns the compiled pattern, or nil.
func (r Rule) Pattern() *regexp.Regexp { return r.pattern }

// HasCustom reports whether a custom predicate is attached.
func (r Rule) HasCustom() bool { return r.custom != nil }

// RuleConfig is the serialisable form of a Rule used by configuration files.
type RuleConfig struct {
	Type           string `json:"type" yaml:"type" mapstructure:"type"`
	Required       bool   `json:"required,omitempty" yaml:"required,omitempty" mapstructure:"required"`
	MinLength      int    `json:"minLength,omitempty" yaml:"minLength,omitempty" mapstructure:"min_length"`
	MaxLength      int    `json:"maxLength,omitempty" yaml:"maxLength,omitempty" mapstructure:"max_length"`
	Pattern        string `json:"pattern,omitempty" yaml:"pattern,omitempty" mapstructure:"pattern"`
	PatternMessage string `json:"patternMessage,omitempty" yaml:"patternMessage,omitempty" mapstructure:"pattern_message"`
}

var errInvalidLengthBounds = errors.New("validation: minLength exceeds maxLength")

// Compile validates the configuration and returns the equivalent Rule. Extra
// options are applied last, which is how callers attach custom predicates.
func (c RuleConfig) Compile(extra ...RuleOption) (Rule, error) {
	fieldType, err := ParseFieldType(c.Type)
	if err != nil {
		return Rule{}, err
	}
	if c.MinLength < 0 || c.MaxLength < 0 {
		return Rule{}, fmt.Errorf("validation: negative length bound for %s field", fieldType)
	}
	if c.MinLength > 0 && c.MaxLength > 0 && c.MinLength > c.MaxLength {
		return Rule{}, errInvalidLengthBounds
	}

	opts := []RuleOption{MinLength(c.MinLength), MaxLength(c.MaxLength)}
	if c.Required {
		opts = append(opts, Required())
	}
	if expr := strings.TrimSpace(c.Pattern); expr != "" {
		re, err := regexp.Compile(expr)
		if err != nil {
			return Rule{}, fmt.Errorf("validation: compile pattern: %w", err)
		}
		opts = append(opts, Pattern(re, c.PatternMessage))
	}
	opts = append(opts, extra...)
	return NewRule(fieldType, opts...), nil
}
