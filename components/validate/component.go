package validate

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Component bundles the handler, its configuration and a shared client
// limiter whose idle entries are evicted by Janitor.
type Component struct {
	opts    Options
	clients *clients
}

// New constructs a new component with default options plus any overrides.
func New(fns ...OptionFn) *Component {
	opts := NewOptions(fns...)
	return &Component{
		opts:    opts,
		clients: newClients(opts.ClientRate, opts.ClientBurst, opts.ClientIdle),
	}
}

// Options returns a copy of the component configuration.
func (c *Component) Options() Options {
	if c == nil {
		return DefaultOptions()
	}
	return NewOptions(func(o *Options) { *o = c.opts })
}

// Handler returns the net/http handler. Handlers from the same component
// share one client limiter.
func (c *Component) Handler() http.Handler {
	if c == nil {
		return Handler()
	}
	return newHandler(c.opts, c.clients)
}

// RegisterRoutes registers the component handler under basePath on mux.
func (c *Component) RegisterRoutes(mux Mux, basePath string) (string, error) {
	if c == nil {
		return RegisterRoutes(mux, basePath)
	}
	if mux == nil {
		return "", errMissingMux
	}
	pattern := mountPath(basePath, c.opts.RoutePath)
	mux.Handle(pattern, c.Handler())
	return pattern, nil
}

// Janitor evicts idle clients and closed action windows until ctx ends. It
// sweeps at half the client idle timeout and always returns ctx.Err().
func (c *Component) Janitor(ctx context.Context) error {
	if c == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	interval := c.opts.ClientIdle / 2
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep runs one janitor pass. Per-client action keys live in the limiter
// store and would otherwise grow with every new caller.
func (c *Component) sweep() (int, int) {
	idle := c.clients.sweep()
	closed := c.opts.Limiter.Prune()
	if idle > 0 || closed > 0 {
		c.opts.Logger.Debug("janitor sweep",
			zap.Int("clients_removed", idle),
			zap.Int("windows_removed", closed),
		)
	}
	return idle, closed
}

// Clients reports how many callers are currently tracked.
func (c *Component) Clients() int {
	if c == nil {
		return 0
	}
	return c.clients.size()
}
