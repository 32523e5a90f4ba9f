// Package secureform is the convenience entry point for the input pipeline:
// untrusted text is sanitized, validated against a field rule and, on submit,
// checked against a per-action rate limit before it reaches any consumer.
//
// Most callers need only this package. The pkg/ subpackages hold the
// individual stages for callers that want to compose them differently.
package secureform

import (
	"context"
	"time"

	"github.com/goliatone/go-secureform/pkg/form"
	"github.com/goliatone/go-secureform/pkg/openapi"
	"github.com/goliatone/go-secureform/pkg/ratelimit"
	"github.com/goliatone/go-secureform/pkg/sanitize"
	"github.com/goliatone/go-secureform/pkg/validation"
)

// FieldType aliases validation.FieldType.
type FieldType = validation.FieldType

// Rule aliases validation.Rule.
type Rule = validation.Rule

// Result aliases validation.Result.
type Result = validation.Result

// SanitizeOptions aliases sanitize.Options.
type SanitizeOptions = sanitize.Options

// FormConfig describes a form; alias of form.Config.
type FormConfig = form.Config

// FieldConfig aliases form.FieldConfig.
type FieldConfig = form.FieldConfig

// RateLimitConfig aliases form.RateLimitConfig.
type RateLimitConfig = form.RateLimitConfig

// Form aliases form.Form.
type Form = form.Form

// Input aliases form.Input.
type Input = form.Input

// SubmitFunc aliases form.SubmitFunc.
type SubmitFunc = form.SubmitFunc

const (
	TypeEmail    = validation.FieldTypeEmail
	TypeURL      = validation.FieldTypeURL
	TypePhone    = validation.FieldTypePhone
	TypeName     = validation.FieldTypeName
	TypePassword = validation.FieldTypePassword
	TypeText     = validation.FieldTypeText
)

// Sanitize runs raw through the default text policy.
func Sanitize(raw string) string {
	return sanitize.Sanitize(raw, sanitize.DefaultOptions())
}

// ValidateInput sanitizes raw under opts and validates the sanitized value
// against rule. The returned Result carries the sanitized value.
func ValidateInput(raw string, rule Rule, opts SanitizeOptions) Result {
	return validation.Validate(sanitize.Sanitize(raw, opts), rule)
}

// CheckRateLimit records an attempt for action against the process-wide
// limiter and reports whether it is allowed.
func CheckRateLimit(action string, maxRequests int, window time.Duration) bool {
	return ratelimit.Default().CheckAndRecord(action, maxRequests, window)
}

// NewForm builds a form binding from cfg.
func NewForm(cfg FormConfig, opts ...form.Option) (*Form, error) {
	return form.New(cfg, opts...)
}

// NewInput builds a standalone field binding with the default sanitization
// policy.
func NewInput(name string, rule Rule, opts ...form.Option) *Input {
	return form.NewInput(name, form.DefaultFieldConfig(rule), opts...)
}

// FormFromOpenAPI derives a form from the request body of operationID in an
// OpenAPI 3 document.
func FormFromOpenAPI(ctx context.Context, document []byte, operationID string) (FormConfig, error) {
	return openapi.FormFromDocument(ctx, document, operationID)
}
