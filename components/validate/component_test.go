package validate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-secureform/pkg/ratelimit"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestComponent_RegisterRoutes(t *testing.T) {
	c := New(WithForms(testForms()), WithRoutePath("/forms"))
	mux := http.NewServeMux()

	pattern, err := c.RegisterRoutes(mux, "/v1")
	if err != nil {
		t.Fatalf("register routes: %v", err)
	}
	if pattern != "/v1/forms/" {
		t.Fatalf("expected pattern /v1/forms/, got %q", pattern)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/forms/login/fields/email", strings.NewReader(`{"value":"user@example.com"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if c.Clients() != 1 {
		t.Fatalf("expected one tracked client, got %d", c.Clients())
	}
}

func TestRegisterRoutes_MissingMux(t *testing.T) {
	if _, err := RegisterRoutes(nil, "/"); err == nil {
		t.Fatalf("expected error for nil mux")
	}
	if _, err := New().RegisterRoutes(nil, "/"); err == nil {
		t.Fatalf("expected error for nil mux")
	}
}

func TestMountPath(t *testing.T) {
	tests := []struct {
		base  string
		route string
		want  string
	}{
		{base: "", route: "", want: "/api/forms/"},
		{base: "/", route: "/forms", want: "/forms/"},
		{base: "admin/", route: "forms/", want: "/admin/forms/"},
	}
	for _, tt := range tests {
		got := MountPath(tt.base, WithRoutePath(tt.route))
		if got != tt.want {
			t.Fatalf("MountPath(%q, %q) = %q, want %q", tt.base, tt.route, got, tt.want)
		}
	}
}

func TestSubmitAndFieldPathsRouteToHandler(t *testing.T) {
	c := New(WithForms(testForms()), WithLimiter(ratelimit.New()))
	mux := http.NewServeMux()
	mount, err := c.RegisterRoutes(mux, "/v1")
	if err != nil {
		t.Fatalf("register routes: %v", err)
	}

	if got := FieldPath(mount, "login", "email"); got != "/v1/api/forms/login/fields/email" {
		t.Fatalf("unexpected field path %q", got)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, FieldPath(mount, "login", "email"), strings.NewReader(`{"value":"a@b.co"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("field path: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, SubmitPath(mount, "login"), strings.NewReader(`{"values":{"email":"a@b.co","password":"hunter22"}}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit path: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestComponent_JanitorStopsWithContext(t *testing.T) {
	c := New(WithForms(testForms()))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Janitor(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("janitor did not stop")
	}
}

func TestComponent_SweepPrunesActionWindows(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := ratelimit.NewMemoryStore()
	c := New(
		WithForms(testForms()),
		WithLimiter(ratelimit.New(ratelimit.WithStore(store), ratelimit.WithClock(clock))),
		WithClientLimit(rate.Limit(100), 100, time.Minute),
	)
	c.clients.now = clock
	h := c.Handler()

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/forms/login",
			strings.NewReader(`{"values":{"email":"a@b.co","password":"hunter22"}}`))
		req.RemoteAddr = fmt.Sprintf("10.0.0.%d:1234", i)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}
	}
	if got := len(store.Keys()); got != 50 {
		t.Fatalf("expected 50 per-client action windows, got %d", got)
	}

	if clients, windows := c.sweep(); clients != 0 || windows != 0 {
		t.Fatalf("expected nothing swept while active, got clients=%d windows=%d", clients, windows)
	}

	now = now.Add(2 * time.Minute)
	clients, windows := c.sweep()
	if clients != 50 || windows != 50 {
		t.Fatalf("expected 50 clients and 50 windows swept, got clients=%d windows=%d", clients, windows)
	}
	if len(store.Keys()) != 0 || c.Clients() != 0 {
		t.Fatalf("expected empty limiter store and client map, got %v and %d", store.Keys(), c.Clients())
	}
}

func TestClients_Sweep(t *testing.T) {
	c := newClients(1, 1, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.allow("a")
	now = now.Add(30 * time.Second)
	c.allow("b")
	now = now.Add(45 * time.Second)

	if removed := c.sweep(); removed != 1 {
		t.Fatalf("expected one idle client removed, got %d", removed)
	}
	if c.size() != 1 {
		t.Fatalf("expected one client left, got %d", c.size())
	}
}

func TestClients_Disabled(t *testing.T) {
	c := newClients(0, 0, time.Minute)
	for i := 0; i < 100; i++ {
		if ok, _ := c.allow("x"); !ok {
			t.Fatalf("expected disabled limiter to allow everything")
		}
	}
}
