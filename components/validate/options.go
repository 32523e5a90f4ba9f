package validate

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-secureform/pkg/events"
	"github.com/goliatone/go-secureform/pkg/form"
	"github.com/goliatone/go-secureform/pkg/ratelimit"
)

const (
	defaultRoutePath    = "/api/forms"
	defaultMaxBodyBytes = 1 << 20
	defaultClientRate   = rate.Limit(5)
	defaultClientBurst  = 10
	defaultClientIdle   = 10 * time.Minute
)

// GuardFunc rejects a request before any work is done. Returning an error
// that implements HTTPError selects the status code; otherwise 403 is used.
type GuardFunc func(r *http.Request) error

// Forwarder receives sanitized values once a submit passes validation and
// the action limit. A nil Forwarder accepts everything.
type Forwarder func(ctx context.Context, formName string, values map[string]string) error

// ClientKeyFunc identifies the caller for the per-client limiter and for
// per-client action keys.
type ClientKeyFunc func(r *http.Request) string

// FormSource resolves form definitions by name. *config.Store satisfies it.
type FormSource interface {
	Form(name string) (form.Config, bool)
}

// StaticForms is a FormSource backed by a map.
type StaticForms map[string]form.Config

func (s StaticForms) Form(name string) (form.Config, bool) {
	cfg, ok := s[name]
	return cfg, ok
}

type Options struct {
	RoutePath    string
	Guard        GuardFunc
	Forms        FormSource
	Limiter      *ratelimit.Limiter
	Events       events.Logger
	Logger       *zap.Logger
	Forwarder    Forwarder
	ClientKey    ClientKeyFunc
	ClientRate   rate.Limit
	ClientBurst  int
	ClientIdle   time.Duration
	MaxBodyBytes int64

	// PerClientActions scopes form action limits to the calling client, so
	// one client cannot spend another's budget.
	PerClientActions bool
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		RoutePath:        defaultRoutePath,
		ClientRate:       defaultClientRate,
		ClientBurst:      defaultClientBurst,
		ClientIdle:       defaultClientIdle,
		MaxBodyBytes:     defaultMaxBodyBytes,
		PerClientActions: true,
	}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.RoutePath == "" {
		opts.RoutePath = defaultRoutePath
	}
	if opts.Forms == nil {
		opts.Forms = StaticForms{}
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Default()
	}
	if opts.Events == nil {
		opts.Events = events.Nop()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ClientKey == nil {
		opts.ClientKey = RemoteIP
	}
	if opts.ClientBurst < 0 {
		opts.ClientBurst = 0
	}
	if opts.ClientIdle <= 0 {
		opts.ClientIdle = defaultClientIdle
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	return opts
}

func WithRoutePath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.RoutePath = path
	}
}

func WithGuard(guard GuardFunc) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Guard = guard
	}
}

func WithForms(forms FormSource) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Forms = forms
	}
}

func WithLimiter(limiter *ratelimit.Limiter) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Limiter = limiter
	}
}

func WithEventLogger(logger events.Logger) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Events = logger
	}
}

func WithLogger(logger *zap.Logger) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Logger = logger
	}
}

func WithForwarder(fn Forwarder) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Forwarder = fn
	}
}

func WithClientKey(fn ClientKeyFunc) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.ClientKey = fn
	}
}

// WithClientLimit sets the per-client token bucket. A zero rate disables it.
func WithClientLimit(limit rate.Limit, burst int, idle time.Duration) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.ClientRate = limit
		o.ClientBurst = burst
		o.ClientIdle = idle
	}
}

func WithMaxBodyBytes(n int64) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.MaxBodyBytes = n
	}
}

func WithPerClientActions(enabled bool) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.PerClientActions = enabled
	}
}

// RemoteIP keys clients by the host part of RemoteAddr.
func RemoteIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		return r.RemoteAddr
	}
	return host
}
