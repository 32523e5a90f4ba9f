package prompt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-secureform/pkg/form"
	"github.com/goliatone/go-secureform/pkg/ratelimit"
	"github.com/goliatone/go-secureform/pkg/validation"
)

// scriptedDriver answers prompts from a queue, replaying the validator the
// way survey does: rejected answers are dropped and the next one is tried.
type scriptedDriver struct {
	answers   map[string][]string
	confirm   bool
	rejected  map[string][]string
	passwords []string
	infos     []string
}

func (d *scriptedDriver) ask(cfg InputConfig) (string, error) {
	queue := d.answers[cfg.Message]
	for len(queue) > 0 {
		answer := queue[0]
		queue = queue[1:]
		d.answers[cfg.Message] = queue
		if cfg.Validator == nil {
			return answer, nil
		}
		if err := cfg.Validator(answer); err != nil {
			if d.rejected == nil {
				d.rejected = make(map[string][]string)
			}
			d.rejected[cfg.Message] = append(d.rejected[cfg.Message], err.Error())
			continue
		}
		return answer, nil
	}
	return "", errors.New("no more answers for " + cfg.Message)
}

func (d *scriptedDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	return d.ask(cfg)
}

func (d *scriptedDriver) Password(_ context.Context, cfg InputConfig) (string, error) {
	d.passwords = append(d.passwords, cfg.Message)
	return d.ask(cfg)
}

func (d *scriptedDriver) Confirm(context.Context, ConfirmConfig) (bool, error) {
	return d.confirm, nil
}

func (d *scriptedDriver) Info(_ context.Context, msg string) error {
	d.infos = append(d.infos, msg)
	return nil
}

func signupForm(t *testing.T, limit int) *form.Form {
	t.Helper()
	f, err := form.New(form.Config{
		Name: "signup",
		Fields: map[string]form.FieldConfig{
			"email":    form.DefaultFieldConfig(validation.NewRule(validation.FieldTypeEmail, validation.Required())),
			"nickname": form.DefaultFieldConfig(validation.NewRule(validation.FieldTypeText)),
			"password": form.DefaultFieldConfig(validation.NewRule(validation.FieldTypePassword, validation.Required())),
		},
		RateLimit: &form.RateLimitConfig{Action: "signup", MaxRequests: limit, Window: time.Minute},
	}, form.WithLimiter(ratelimit.New()))
	if err != nil {
		t.Fatalf("new form: %v", err)
	}
	return f
}

func TestFill_RepromptsUntilValid(t *testing.T) {
	f := signupForm(t, 5)
	driver := &scriptedDriver{
		confirm: true,
		answers: map[string][]string{
			"email *":    {"nope", "  USER@Example.com "},
			"nickname":   {"<i>neo</i>"},
			"password *": {"short", "hunter22"},
		},
	}

	var submitted map[string]string
	result, err := Fill(context.Background(), driver, f, func(_ context.Context, values map[string]string) error {
		submitted = values
		return nil
	})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if !result.Submitted {
		t.Fatalf("expected submission, got %+v", result)
	}

	want := map[string]string{
		"email":    "USER@Example.com",
		"nickname": "&lt;i&gt;neo&lt;/i&gt;",
		"password": "hunter22",
	}
	if diff := cmp.Diff(want, submitted); diff != "" {
		t.Fatalf("submitted mismatch (-want +got):\n%s", diff)
	}
	if len(driver.rejected["email *"]) != 1 || len(driver.rejected["password *"]) != 1 {
		t.Fatalf("expected one rejection each, got %#v", driver.rejected)
	}
	if diff := cmp.Diff([]string{"password *"}, driver.passwords); diff != "" {
		t.Fatalf("password prompts mismatch (-want +got):\n%s", diff)
	}
}

func TestFill_Declined(t *testing.T) {
	f := signupForm(t, 5)
	driver := &scriptedDriver{
		answers: map[string][]string{
			"email *":    {"a@b.co"},
			"nickname":   {""},
			"password *": {"hunter22"},
		},
	}
	called := false
	_, err := Fill(context.Background(), driver, f, func(context.Context, map[string]string) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined, got %v", err)
	}
	if called {
		t.Fatalf("submit must not run when declined")
	}
}

func TestFill_ReportsFormErrors(t *testing.T) {
	f := signupForm(t, 1)
	answers := func() map[string][]string {
		return map[string][]string{
			"email *":    {"a@b.co"},
			"nickname":   {""},
			"password *": {"hunter22"},
		}
	}

	first := &scriptedDriver{confirm: true, answers: answers()}
	if _, err := Fill(context.Background(), first, f, nil); err != nil {
		t.Fatalf("first fill: %v", err)
	}

	second := &scriptedDriver{confirm: true, answers: answers()}
	result, err := Fill(context.Background(), second, f, nil)
	if err != nil {
		t.Fatalf("second fill: %v", err)
	}
	if result.Submitted {
		t.Fatalf("expected second submission to be rate limited")
	}
	if diff := cmp.Diff([]string{"! " + form.MessageRateLimited}, second.infos); diff != "" {
		t.Fatalf("infos mismatch (-want +got):\n%s", diff)
	}
}
