// Package events records security-relevant anomalies raised by the input
// pipeline: values altered by sanitization, submissions rejected by
// validation, and actions blocked by the rate limiter. Logging is
// fire-and-forget; the pipeline never reads events back.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type identifies the kind of security event.
type Type string

const (
	TypeSanitizationAnomaly Type = "sanitization_anomaly"
	TypeValidationFailed    Type = "validation_failed"
	TypeRateLimited         Type = "rate_limited"
)

// Event describes one anomaly. Raw input is never recorded; only lengths.
type Event struct {
	ID              string    `json:"id"`
	Type            Type      `json:"type"`
	Form            string    `json:"form,omitempty"`
	Field           string    `json:"field,omitempty"`
	Action          string    `json:"action,omitempty"`
	OriginalLength  int       `json:"originalLength,omitempty"`
	SanitizedLength int       `json:"sanitizedLength,omitempty"`
	Detail          string    `json:"detail,omitempty"`
	Time            time.Time `json:"time"`
}

// Logger receives security events. Implementations must not block the
// caller for long and must not fail loudly.
type Logger interface {
	LogSecurityEvent(ctx context.Context, event Event)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(ctx context.Context, event Event)

func (fn LoggerFunc) LogSecurityEvent(ctx context.Context, event Event) {
	if fn != nil {
		fn(ctx, event)
	}
}

type nopLogger struct{}

func (nopLogger) LogSecurityEvent(context.Context, Event) {}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

// Stamp fills in a missing ID and timestamp.
func Stamp(event Event, now time.Time) Event {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Time.IsZero() {
		event.Time = now.UTC()
	}
	return event
}

// Multi fans an event out to every non-nil logger in order.
type Multi []Logger

func (m Multi) LogSecurityEvent(ctx context.Context, event Event) {
	for _, logger := range m {
		if logger == nil {
			continue
		}
		logger.LogSecurityEvent(ctx, event)
	}
}

// ZapLogger writes events as structured warn entries.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger wraps logger; nil falls back to a no-op logger.
func NewZapLogger(logger *zap.Logger) *ZapLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapLogger{logger: logger.Named("security")}
}

func (z *ZapLogger) LogSecurityEvent(_ context.Context, event Event) {
	event = Stamp(event, time.Now())
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.Time("at", event.Time),
	}
	if event.Form != "" {
		fields = append(fields, zap.String("form", event.Form))
	}
	if event.Field != "" {
		fields = append(fields, zap.String("field", event.Field))
	}
	if event.Action != "" {
		fields = append(fields, zap.String("action", event.Action))
	}
	if event.Type == TypeSanitizationAnomaly {
		fields = append(fields,
			zap.Int("original_length", event.OriginalLength),
			zap.Int("sanitized_length", event.SanitizedLength),
		)
	}
	if event.Detail != "" {
		fields = append(fields, zap.String("detail", event.Detail))
	}
	z.logger.Warn("security event", fields...)
}
