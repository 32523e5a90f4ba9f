package events_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-secureform/pkg/events"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) LogSecurityEvent(_ context.Context, event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Type)
	}
	return out
}

func TestStampFillsMissingFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stamped := events.Stamp(events.Event{Type: events.TypeRateLimited}, now)
	if stamped.ID == "" {
		t.Fatalf("expected an id to be assigned")
	}
	if !stamped.Time.Equal(now) {
		t.Fatalf("expected time %s, got %s", now, stamped.Time)
	}

	kept := events.Stamp(events.Event{ID: "fixed", Time: now.Add(-time.Hour)}, now)
	if kept.ID != "fixed" || !kept.Time.Equal(now.Add(-time.Hour)) {
		t.Fatalf("expected existing fields to be kept, got %+v", kept)
	}
}

func TestZapLoggerWritesStructuredEntry(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := events.NewZapLogger(zap.New(core))

	logger.LogSecurityEvent(context.Background(), events.Event{
		Type:            events.TypeSanitizationAnomaly,
		Form:            "contact",
		Field:           "message",
		OriginalLength:  40,
		SanitizedLength: 12,
	})

	entries := logs.FilterMessage("security event").All()
	require.Len(t, entries, 1)
	entry := entries[0]
	require.Equal(t, zap.WarnLevel, entry.Level)
	require.Equal(t, "security", entry.LoggerName)

	fields := entry.ContextMap()
	require.Equal(t, "sanitization_anomaly", fields["type"])
	require.Equal(t, "contact", fields["form"])
	require.Equal(t, "message", fields["field"])
	require.EqualValues(t, 40, fields["original_length"])
	require.EqualValues(t, 12, fields["sanitized_length"])
	require.NotContains(t, fields, "action")
}

func TestMultiSkipsNilLoggers(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	multi := events.Multi{first, nil, second}

	multi.LogSecurityEvent(context.Background(), events.Event{Type: events.TypeValidationFailed})

	want := []events.Type{events.TypeValidationFailed}
	if diff := cmp.Diff(want, first.Types()); diff != "" {
		t.Fatalf("first mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, second.Types()); diff != "" {
		t.Fatalf("second mismatch (-want +got):\n%s", diff)
	}
}

func TestLoggerFuncAndNop(t *testing.T) {
	var got events.Type
	fn := events.LoggerFunc(func(_ context.Context, event events.Event) { got = event.Type })
	fn.LogSecurityEvent(context.Background(), events.Event{Type: events.TypeRateLimited})
	if got != events.TypeRateLimited {
		t.Fatalf("expected func to receive event, got %q", got)
	}

	events.Nop().LogSecurityEvent(context.Background(), events.Event{})
	var nilFn events.LoggerFunc
	nilFn.LogSecurityEvent(context.Background(), events.Event{})
}

func TestAsyncDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &recorder{}
	async := events.NewAsync(sink, events.WithBuffer(8))
	for i := 0; i < 5; i++ {
		async.LogSecurityEvent(context.Background(), events.Event{Type: events.TypeRateLimited})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, async.Close(ctx))
	require.Len(t, sink.Types(), 5)

	async.LogSecurityEvent(context.Background(), events.Event{Type: events.TypeRateLimited})
	require.EqualValues(t, 1, async.Dropped())
	require.NoError(t, async.Close(ctx))
}

func TestAsyncDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	release := make(chan struct{})
	blocking := events.LoggerFunc(func(context.Context, events.Event) { <-release })

	core, logs := observer.New(zap.WarnLevel)
	async := events.NewAsync(blocking, events.WithBuffer(1), events.WithAsyncLogger(zap.New(core)))

	// The worker holds at most one event and the queue one more; the rest drop.
	for i := 0; i < 10; i++ {
		async.LogSecurityEvent(context.Background(), events.Event{Type: events.TypeValidationFailed})
	}
	require.GreaterOrEqual(t, async.Dropped(), int64(8))
	require.Equal(t, int(async.Dropped()), logs.FilterMessage("security event dropped").Len())

	close(release)
	require.NoError(t, async.Close(context.Background()))
}

func TestSQLiteStoreRecordAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.db")
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	var tick int
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	store, err := events.OpenSQLite(path, events.WithStoreClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.Record(ctx, events.Event{Type: events.TypeSanitizationAnomaly, Form: "contact", Field: "message", OriginalLength: 30, SanitizedLength: 5}))
	require.NoError(t, store.Record(ctx, events.Event{Type: events.TypeValidationFailed, Form: "contact", Detail: "email"}))
	store.LogSecurityEvent(ctx, events.Event{Type: events.TypeRateLimited, Form: "signup", Action: "signup"})

	all, err := store.Recent(ctx, events.Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	var gotTypes []events.Type
	for _, event := range all {
		gotTypes = append(gotTypes, event.Type)
		require.NotEmpty(t, event.ID)
	}
	want := []events.Type{events.TypeRateLimited, events.TypeValidationFailed, events.TypeSanitizationAnomaly}
	if diff := cmp.Diff(want, gotTypes); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}

	anomaly := all[2]
	require.Equal(t, "message", anomaly.Field)
	require.Equal(t, 30, anomaly.OriginalLength)
	require.Equal(t, 5, anomaly.SanitizedLength)
	require.True(t, anomaly.Time.Equal(base.Add(time.Second)))

	contact, err := store.Recent(ctx, events.Query{Form: "contact", Limit: 1})
	require.NoError(t, err)
	require.Len(t, contact, 1)
	require.Equal(t, events.TypeValidationFailed, contact[0].Type)

	limited, err := store.Recent(ctx, events.Query{Type: events.TypeRateLimited})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "signup", limited[0].Action)

	since, err := store.Recent(ctx, events.Query{Since: base.Add(2 * time.Second)})
	require.NoError(t, err)
	require.Len(t, since, 2)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(map[events.Type]int{
		events.TypeSanitizationAnomaly: 1,
		events.TypeValidationFailed:    1,
		events.TypeRateLimited:         1,
	}, counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLiteStoreReopenKeepsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	store, err := events.OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), events.Event{Type: events.TypeRateLimited}))
	require.NoError(t, store.Close())

	reopened, err := events.OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Recent(context.Background(), events.Query{})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestSQLiteStoreLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	store, err := events.OpenSQLite(filepath.Join(t.TempDir(), "events.db"), events.WithStoreLogger(zap.New(core)))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store.LogSecurityEvent(context.Background(), events.Event{Type: events.TypeRateLimited})
	require.Equal(t, 1, logs.FilterMessage("record security event").Len())
}
