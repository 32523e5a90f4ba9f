package form

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/goliatone/go-secureform/pkg/events"
	"github.com/goliatone/go-secureform/pkg/sanitize"
	"github.com/goliatone/go-secureform/pkg/validation"
)

// Input holds the sanitized value and errors for a single field.
type Input struct {
	mu     sync.RWMutex
	form   string
	name   string
	cfg    FieldConfig
	opts   options
	value  string
	result validation.Result
	dirty  bool
}

// NewInput builds a standalone field binding.
func NewInput(name string, cfg FieldConfig, opts ...Option) *Input {
	return newInput("", name, cfg, newOptions(opts))
}

func newInput(form, name string, cfg FieldConfig, opts options) *Input {
	return &Input{
		form:   form,
		name:   strings.TrimSpace(name),
		cfg:    cfg,
		opts:   opts,
		result: validation.Result{Valid: true},
	}
}

// Name returns the field name.
func (i *Input) Name() string { return i.name }

// Rule returns the validation rule for the field.
func (i *Input) Rule() validation.Rule { return i.cfg.Rule }

// OnChange sanitizes raw, validates the sanitized value and stores it. raw is
// not kept.
func (i *Input) OnChange(raw string) validation.Result {
	result, anomaly := i.apply(raw)
	if anomaly != nil {
		i.opts.events.LogSecurityEvent(context.Background(), *anomaly)
	}
	return result
}

// apply stores the sanitized value and returns the anomaly event, if any,
// for the caller to deliver once it holds no locks.
func (i *Input) apply(raw string) (validation.Result, *events.Event) {
	report := sanitize.SanitizeReport(raw, i.cfg.Sanitize)
	var anomaly *events.Event
	if report.Changed {
		anomaly = &events.Event{
			Type:            events.TypeSanitizationAnomaly,
			Form:            i.form,
			Field:           i.name,
			OriginalLength:  utf8.RuneCountInString(raw),
			SanitizedLength: utf8.RuneCountInString(report.Value),
		}
	}

	result := i.opts.validator.Validate(report.Value, i.cfg.Rule)

	i.mu.Lock()
	i.value = report.Value
	i.result = result
	i.dirty = true
	i.mu.Unlock()

	if !result.Valid {
		i.opts.logger.Debug("field invalid",
			zap.String("form", i.form),
			zap.String("field", i.name),
			zap.Strings("errors", result.Errors),
		)
	}
	return result, anomaly
}

// revalidate checks the held value again, which matters for untouched
// required fields at submit time.
func (i *Input) revalidate() validation.Result {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.result = i.opts.validator.Validate(i.value, i.cfg.Rule)
	i.dirty = true
	return i.result
}

// Value returns the sanitized value.
func (i *Input) Value() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.value
}

// Errors returns the current error messages.
func (i *Input) Errors() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]string(nil), i.result.Errors...)
}

// Valid reports whether the last validation passed. An untouched field is
// valid until checked.
func (i *Input) Valid() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.result.Valid
}

// Touched reports whether OnChange or a submit has validated the field.
func (i *Input) Touched() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.dirty
}

func (i *Input) issues() []Issue {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]Issue, 0, len(i.result.Issues))
	for _, issue := range i.result.Issues {
		kind := ErrorKindFormat
		if issue.Kind == validation.KindRequired {
			kind = ErrorKindRequired
		}
		out = append(out, Issue{Field: i.name, Kind: kind, Message: issue.Message})
	}
	return out
}

// Reset clears the value and errors.
func (i *Input) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.value = ""
	i.result = validation.Result{Valid: true}
	i.dirty = false
}
