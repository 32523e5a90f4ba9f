package form

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-secureform/pkg/events"
	"github.com/goliatone/go-secureform/pkg/validation"
)

// SubmitFunc delivers sanitized values to the caller's backend.
type SubmitFunc func(ctx context.Context, values map[string]string) error

// SubmitResult describes the outcome of one OnSubmit call.
type SubmitResult struct {
	Submitted  bool                `json:"submitted"`
	Valid      bool                `json:"valid"`
	Values     map[string]string   `json:"values"`
	Errors     map[string][]string `json:"errors,omitempty"`
	FormErrors []string            `json:"formErrors,omitempty"`
	Issues     []Issue             `json:"issues,omitempty"`
	Err        error               `json:"-"`
}

// State is a snapshot of the form.
type State struct {
	Status     Status              `json:"-"`
	Submitting bool                `json:"submitting"`
	Values     map[string]string   `json:"values"`
	Errors     map[string][]string `json:"errors,omitempty"`
	FormErrors []string            `json:"formErrors,omitempty"`
}

// HasErrors reports whether any field or form error is present.
func (s State) HasErrors() bool {
	if len(s.FormErrors) > 0 {
		return true
	}
	for _, msgs := range s.Errors {
		if len(msgs) > 0 {
			return true
		}
	}
	return false
}

// Form coordinates a set of inputs and the submit path.
type Form struct {
	mu         sync.Mutex
	name       string
	order      []string
	inputs     map[string]*Input
	rateLimit  *RateLimitConfig
	opts       options
	status     Status
	formErrors []string
	pending    []Transition
	queued     []queuedEvent
}

type queuedEvent struct {
	ctx   context.Context
	event events.Event
}

// New builds a form from cfg.
func New(cfg Config, opts ...Option) (*Form, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := newOptions(opts)

	f := &Form{
		name:   strings.TrimSpace(cfg.Name),
		order:  cfg.FieldNames(),
		inputs: make(map[string]*Input, len(cfg.Fields)),
		opts:   o,
		status: StatusIdle,
	}
	if cfg.RateLimit != nil {
		rl := *cfg.RateLimit
		rl.Action = strings.TrimSpace(rl.Action)
		f.rateLimit = &rl
	}
	for _, name := range f.order {
		f.inputs[name] = newInput(f.name, name, cfg.Fields[name], o)
	}
	return f, nil
}

// Name returns the configured form name.
func (f *Form) Name() string { return f.name }

// Fields returns the field names in evaluation order.
func (f *Form) Fields() []string { return append([]string(nil), f.order...) }

// Input returns the binding for field.
func (f *Form) Input(field string) (*Input, bool) {
	input, ok := f.inputs[field]
	return input, ok
}

// Status returns the current status.
func (f *Form) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// OnChange updates one field and re-derives the form's validity from the
// fields checked so far.
func (f *Form) OnChange(field string, raw string) (validation.Result, error) {
	input, ok := f.inputs[field]
	if !ok {
		return validation.Result{}, ErrUnknownField
	}
	result := input.OnChange(raw)

	f.mu.Lock()
	if f.status != StatusSubmitting {
		f.transition(StatusValidating)
		if f.fieldsValid() {
			f.transition(StatusValid)
		} else {
			f.transition(StatusInvalid)
		}
	}
	f.unlockAndNotify()
	return result, nil
}

// OnSubmit re-validates every field, consults the rate limiter and, only when
// both pass, calls submit with the sanitized values. Fields missing from
// values keep their current value. Problems are reported in the result;
// submit is never called for an invalid or rate limited form.
func (f *Form) OnSubmit(ctx context.Context, values map[string]string, submit SubmitFunc) SubmitResult {
	if ctx == nil {
		ctx = context.Background()
	}

	f.mu.Lock()
	if f.status == StatusSubmitting {
		f.mu.Unlock()
		return SubmitResult{
			Valid:      true,
			FormErrors: []string{MessageSubmitInProgress},
			Err:        ErrSubmitInProgress,
		}
	}
	f.formErrors = nil
	f.transition(StatusValidating)

	var invalid []string
	for _, name := range f.order {
		input := f.inputs[name]
		var result validation.Result
		if raw, ok := values[name]; ok {
			var anomaly *events.Event
			result, anomaly = input.apply(raw)
			if anomaly != nil {
				f.queued = append(f.queued, queuedEvent{ctx: ctx, event: *anomaly})
			}
		} else {
			result = input.revalidate()
		}
		if !result.Valid {
			invalid = append(invalid, name)
		}
	}

	if len(invalid) > 0 {
		f.transition(StatusInvalid)
		result := f.resultLocked(false, ErrInvalid)
		f.unlockAndNotify()

		f.opts.events.LogSecurityEvent(ctx, events.Event{
			Type:   events.TypeValidationFailed,
			Form:   f.name,
			Detail: strings.Join(invalid, ","),
		})
		return result
	}
	f.transition(StatusValid)

	if rl := f.rateLimit; rl != nil && !f.opts.limiter.CheckAndRecord(rl.Action, rl.MaxRequests, rl.Window) {
		f.formErrors = validation.MergeErrors(f.formErrors, MessageRateLimited)
		f.transition(StatusIdle)
		result := f.resultLocked(true, ErrRateLimited)
		result.Issues = append(result.Issues, Issue{Kind: ErrorKindRateLimit, Message: MessageRateLimited})
		f.unlockAndNotify()

		f.opts.events.LogSecurityEvent(ctx, events.Event{
			Type:   events.TypeRateLimited,
			Form:   f.name,
			Action: rl.Action,
		})
		return result
	}

	if err := ctx.Err(); err != nil {
		f.transition(StatusIdle)
		result := f.resultLocked(true, err)
		f.unlockAndNotify()
		return result
	}

	f.transition(StatusSubmitting)
	payload := f.valuesLocked()
	f.unlockAndNotify()

	var err error
	if submit != nil {
		err = submit(ctx, payload)
	}

	f.mu.Lock()
	if err != nil {
		f.formErrors = validation.MergeErrors(f.formErrors, err.Error())
		f.transition(StatusSubmitFailed)
		f.opts.logger.Warn("form submit failed", zap.String("form", f.name), zap.Error(err))
	} else {
		f.transition(StatusSubmitSucceeded)
	}
	result := f.resultLocked(true, err)
	result.Submitted = err == nil
	if err != nil {
		result.Issues = append(result.Issues, Issue{Kind: ErrorKindSubmit, Message: err.Error()})
	}
	f.transition(StatusIdle)
	f.unlockAndNotify()
	return result
}

// State returns a copy of the current state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	return State{
		Status:     f.status,
		Submitting: f.status == StatusSubmitting,
		Values:     f.valuesLocked(),
		Errors:     f.errorsLocked(),
		FormErrors: append([]string(nil), f.formErrors...),
	}
}

// Reset clears every field and returns the form to Idle. It is ignored while
// a submission is running.
func (f *Form) Reset() {
	f.mu.Lock()
	if f.status == StatusSubmitting {
		f.mu.Unlock()
		return
	}
	for _, input := range f.inputs {
		input.Reset()
	}
	f.formErrors = nil
	if f.status != StatusIdle {
		f.pending = append(f.pending, Transition{From: f.status, To: StatusIdle})
		f.status = StatusIdle
	}
	f.unlockAndNotify()
}

func (f *Form) fieldsValid() bool {
	for _, input := range f.inputs {
		if !input.Valid() {
			return false
		}
	}
	return true
}

func (f *Form) transition(to Status) {
	if f.status == to {
		return
	}
	if !canTransition(f.status, to) {
		f.opts.logger.Error("form transition rejected",
			zap.String("form", f.name),
			zap.Stringer("from", f.status),
			zap.Stringer("to", to),
		)
		return
	}
	f.pending = append(f.pending, Transition{From: f.status, To: to})
	f.status = to
}

// unlockAndNotify releases the lock, then delivers the security events and
// transitions recorded while it was held. Event loggers and the transition
// hook may call back into the form.
func (f *Form) unlockAndNotify() {
	pending := f.pending
	queued := f.queued
	f.pending = nil
	f.queued = nil
	f.mu.Unlock()

	for _, q := range queued {
		f.opts.events.LogSecurityEvent(q.ctx, q.event)
	}
	if f.opts.onTransition == nil {
		return
	}
	for _, t := range pending {
		f.opts.onTransition(t)
	}
}

func (f *Form) valuesLocked() map[string]string {
	out := make(map[string]string, len(f.inputs))
	for name, input := range f.inputs {
		out[name] = input.Value()
	}
	return out
}

func (f *Form) errorsLocked() map[string][]string {
	out := make(map[string][]string)
	for name, input := range f.inputs {
		if errs := input.Errors(); len(errs) > 0 {
			out[name] = errs
		}
	}
	return out
}

func (f *Form) resultLocked(valid bool, err error) SubmitResult {
	result := SubmitResult{
		Valid:      valid,
		Values:     f.valuesLocked(),
		Errors:     f.errorsLocked(),
		FormErrors: append([]string(nil), f.formErrors...),
		Err:        err,
	}
	for _, name := range f.order {
		result.Issues = append(result.Issues, f.inputs[name].issues()...)
	}
	return result
}
