package prompt

import (
	"context"
	"errors"
	"strings"

	"github.com/goliatone/go-secureform/pkg/form"
	"github.com/goliatone/go-secureform/pkg/validation"
)

// ErrDeclined is returned when the user answers no to the final confirmation.
var ErrDeclined = errors.New("prompt: submission declined")

// Fill asks for every field of f in order. Each answer is sanitized and
// validated as it is entered; the driver re-asks until the field is valid.
// After confirmation the form is submitted through submit.
func Fill(ctx context.Context, driver Driver, f *form.Form, submit form.SubmitFunc) (form.SubmitResult, error) {
	if driver == nil {
		return form.SubmitResult{}, errors.New("prompt: driver is required")
	}
	if f == nil {
		return form.SubmitResult{}, errors.New("prompt: form is required")
	}

	for _, name := range f.Fields() {
		input, _ := f.Input(name)
		rule := input.Rule()

		cfg := InputConfig{
			Message:   label(name, rule),
			Help:      help(rule),
			Validator: fieldValidator(f, name),
		}

		var err error
		if rule.Type() == validation.FieldTypePassword {
			_, err = driver.Password(ctx, cfg)
		} else {
			_, err = driver.Input(ctx, cfg)
		}
		if err != nil {
			return form.SubmitResult{}, err
		}
	}

	ok, err := driver.Confirm(ctx, ConfirmConfig{Message: "Submit " + f.Name() + "?", Default: true})
	if err != nil {
		return form.SubmitResult{}, err
	}
	if !ok {
		return form.SubmitResult{}, ErrDeclined
	}

	result := f.OnSubmit(ctx, nil, submit)
	for _, msg := range result.FormErrors {
		if err := driver.Info(ctx, "! "+msg); err != nil {
			return result, err
		}
	}
	return result, nil
}

func fieldValidator(f *form.Form, name string) func(string) error {
	return func(answer string) error {
		result, err := f.OnChange(name, answer)
		if err != nil {
			return err
		}
		if result.Valid {
			return nil
		}
		return errors.New(strings.Join(result.Errors, "; "))
	}
}

func label(name string, rule validation.Rule) string {
	if rule.IsRequired() {
		return name + " *"
	}
	return name
}

func help(rule validation.Rule) string {
	parts := []string{string(rule.Type())}
	if rule.IsRequired() {
		parts = append(parts, "required")
	}
	return strings.Join(parts, ", ")
}
