// Package form binds the sanitizer, validator and rate limiter into reactive
// field and form state. Callers feed raw values in through OnChange and
// OnSubmit; only sanitized values are ever held or handed on.
package form

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-secureform/pkg/events"
	"github.com/goliatone/go-secureform/pkg/ratelimit"
	"github.com/goliatone/go-secureform/pkg/sanitize"
	"github.com/goliatone/go-secureform/pkg/validation"
)

// FieldConfig describes how one field is cleaned and checked.
type FieldConfig struct {
	Rule     validation.Rule
	Sanitize sanitize.Options
}

// DefaultFieldConfig returns a FieldConfig with the default sanitizer
// options applied to rule.
func DefaultFieldConfig(rule validation.Rule) FieldConfig {
	return FieldConfig{Rule: rule, Sanitize: sanitize.DefaultOptions()}
}

// RateLimitConfig bounds how often the form may submit.
type RateLimitConfig struct {
	Action      string        `json:"action" yaml:"action"`
	MaxRequests int           `json:"maxRequests" yaml:"maxRequests"`
	Window      time.Duration `json:"window" yaml:"window"`
}

// Config defines a form.
type Config struct {
	Name      string
	Fields    map[string]FieldConfig
	RateLimit *RateLimitConfig
}

var (
	ErrNoFields     = errors.New("form: no fields configured")
	ErrUnknownField = errors.New("form: unknown field")
)

// FieldNames returns the configured field names in a stable order.
func (c Config) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate reports structural problems with the configuration.
func (c Config) Validate() error {
	if len(c.Fields) == 0 {
		return ErrNoFields
	}
	for name := range c.Fields {
		if strings.TrimSpace(name) == "" {
			return errors.New("form: field name must not be blank")
		}
	}
	if c.RateLimit != nil {
		if strings.TrimSpace(c.RateLimit.Action) == "" {
			return errors.New("form: rate limit action must not be blank")
		}
		if c.RateLimit.MaxRequests <= 0 {
			return fmt.Errorf("form: rate limit %q: maxRequests must be positive", c.RateLimit.Action)
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("form: rate limit %q: window must be positive", c.RateLimit.Action)
		}
	}
	return nil
}

// Option customises an Input or Form.
type Option func(*options)

type options struct {
	limiter      *ratelimit.Limiter
	events       events.Logger
	validator    *validation.Validator
	logger       *zap.Logger
	onTransition func(Transition)
}

func newOptions(opts []Option) options {
	o := options{
		events: events.Nop(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&o)
	}
	if o.limiter == nil {
		o.limiter = ratelimit.Default()
	}
	if o.validator == nil {
		o.validator = validation.New()
	}
	return o
}

// WithLimiter replaces the process-wide limiter.
func WithLimiter(limiter *ratelimit.Limiter) Option {
	return func(o *options) {
		if limiter != nil {
			o.limiter = limiter
		}
	}
}

// WithEventLogger receives sanitization anomalies, validation failures and
// rate limit blocks.
func WithEventLogger(logger events.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.events = logger
		}
	}
}

// WithValidator supplies a validator, typically one with a translator.
func WithValidator(v *validation.Validator) Option {
	return func(o *options) {
		if v != nil {
			o.validator = v
		}
	}
}

// WithLogger attaches a diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTransitionHook observes every status change. The hook runs after the
// form's lock is released and may read State.
func WithTransitionHook(fn func(Transition)) Option {
	return func(o *options) {
		o.onTransition = fn
	}
}
