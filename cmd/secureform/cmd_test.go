package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-secureform/components/validate"
	"github.com/goliatone/go-secureform/pkg/events"
	"github.com/goliatone/go-secureform/pkg/validation"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSanitizeCommand(t *testing.T) {
	out, err := execute(t, "sanitize", "  <b>hi</b>  ")
	require.NoError(t, err)
	require.Equal(t, "&lt;b&gt;hi&lt;/b&gt;\n", out)
}

func TestSanitizeCommand_Report(t *testing.T) {
	out, err := execute(t, "sanitize", "--report", "--max", "3", "abcdef")
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	want := map[string]any{
		"value":           "abc",
		"changed":         true,
		"originalLength":  float64(6),
		"sanitizedLength": float64(3),
	}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Fatalf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", "--type", "email", "--required", "  USER@example.com ")
	require.NoError(t, err)

	var result validation.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.True(t, result.Valid)
	require.Equal(t, "USER@example.com", result.Value)
}

func TestValidateCommand_Invalid(t *testing.T) {
	out, err := execute(t, "validate", "--type", "email", "not-an-email")
	require.ErrorIs(t, err, errInvalidInput)

	var result validation.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
}

func TestValidateCommand_BadRule(t *testing.T) {
	_, err := execute(t, "validate", "--min", "5", "--max", "2", "x")
	require.Error(t, err)
	require.False(t, errors.Is(err, errInvalidInput))
}

func TestRootCommand_BadLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "sanitize", "x")
	require.ErrorContains(t, err, "invalid log level")
}

func TestEventsCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := events.OpenSQLite(path)
	require.NoError(t, err)

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Record(ctx, events.Event{Type: events.TypeRateLimited, Form: "login", Action: "login", Time: base}))
	require.NoError(t, store.Record(ctx, events.Event{Type: events.TypeSanitizationAnomaly, Form: "login", Field: "email", OriginalLength: 20, SanitizedLength: 9, Time: base.Add(time.Second)}))
	require.NoError(t, store.Record(ctx, events.Event{Type: events.TypeRateLimited, Form: "signup", Action: "signup", Time: base.Add(2 * time.Second)}))
	require.NoError(t, store.Close())

	out, err := execute(t, "events", "--db", path, "--counts", "--json")
	require.NoError(t, err)
	var totals map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &totals))
	if diff := cmp.Diff(map[string]int{"rate_limited": 2, "sanitization_anomaly": 1}, totals); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}

	out, err = execute(t, "events", "--db", path, "--form", "login")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "TIME"))
	require.Contains(t, lines[1], "sanitization_anomaly")
	require.Contains(t, lines[1], "20->9")
	require.Contains(t, lines[2], "rate_limited")
}

func TestEventsCommand_NoDatabase(t *testing.T) {
	_, err := execute(t, "events")
	require.ErrorContains(t, err, "no events database")
}

func TestPromptCommand_UnknownForm(t *testing.T) {
	dir := t.TempDir()
	def := "forms:\n  login:\n    fields:\n      email:\n        type: email\n        required: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "login.yaml"), []byte(def), 0o644))

	_, err := execute(t, "prompt", "--forms", dir, "--form", "signup")
	require.ErrorContains(t, err, `form "signup" not found`)
}

func TestServe_StopsWithContext(t *testing.T) {
	component := validate.New()
	server := &http.Server{Addr: "127.0.0.1:0", Handler: component.Handler()}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, server, component, time.Second) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not stop")
	}
}
