package validate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-secureform/pkg/events"
	"github.com/goliatone/go-secureform/pkg/form"
)

type HTTPError interface {
	error
	StatusCode() int
}

type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

var (
	errUnknownForm  = errors.New("validate: unknown form")
	errUnknownField = errors.New("validate: unknown field")
	errBadRoute     = errors.New("validate: malformed route")
)

type submitRequest struct {
	Values map[string]string `json:"values"`
}

type fieldRequest struct {
	Value string `json:"value"`
}

type submitResponse struct {
	Valid      bool                `json:"valid"`
	Submitted  bool                `json:"submitted"`
	Values     map[string]string   `json:"values"`
	Errors     map[string][]string `json:"errors"`
	FormErrors []string            `json:"formErrors"`
	Issues     []form.Issue        `json:"issues,omitempty"`
}

type fieldResponse struct {
	Valid  bool     `json:"valid"`
	Value  string   `json:"value"`
	Errors []string `json:"errors"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler builds a net/http handler with default options plus any overrides.
func Handler(fns ...OptionFn) http.Handler {
	return NewHandler(fns...)
}

func NewHandler(fns ...OptionFn) http.Handler {
	opts := NewOptions(fns...)
	return HandlerWithOptions(opts)
}

// HandlerWithOptions builds a handler from a pre-constructed Options value.
// The handler owns a private client limiter; use Component to share one and
// run its janitor.
func HandlerWithOptions(opts Options) http.Handler {
	opts = NewOptions(func(o *Options) { *o = opts })
	return newHandler(opts, newClients(opts.ClientRate, opts.ClientBurst, opts.ClientIdle))
}

type handler struct {
	opts    Options
	clients *clients
}

func newHandler(opts Options, c *clients) *handler {
	return &handler{opts: opts, clients: c}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r == nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, StatusError{Code: http.StatusMethodNotAllowed})
		return
	}

	if h.opts.Guard != nil {
		if err := h.opts.Guard(r); err != nil {
			writeGuardError(w, err)
			return
		}
	}

	client := h.opts.ClientKey(r)
	if ok, wait := h.clients.allow(client); !ok {
		h.opts.Logger.Debug("client throttled", zap.String("client", client), zap.Duration("retry_after", wait))
		setRetryAfter(w, wait)
		writeError(w, StatusError{Code: http.StatusTooManyRequests})
		return
	}

	formName, field, err := h.parseRoute(r.URL.Path)
	if err != nil {
		writeError(w, StatusError{Code: http.StatusNotFound, Err: err})
		return
	}
	cfg, ok := h.opts.Forms.Form(formName)
	if !ok {
		writeError(w, StatusError{Code: http.StatusNotFound, Err: fmt.Errorf("%w: %q", errUnknownForm, formName)})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	if field != "" {
		h.serveField(w, r, cfg, field)
		return
	}
	h.serveSubmit(w, r, cfg, client)
}

func (h *handler) serveField(w http.ResponseWriter, r *http.Request, cfg form.Config, field string) {
	fc, ok := cfg.Fields[field]
	if !ok {
		writeError(w, StatusError{Code: http.StatusNotFound, Err: fmt.Errorf("%w: %q", errUnknownField, field)})
		return
	}

	var req fieldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	input := form.NewInput(field, fc,
		form.WithEventLogger(eventsForForm(h.opts.Events, cfg.Name)),
		form.WithLogger(h.opts.Logger),
	)
	result := input.OnChange(req.Value)

	writeJSON(w, http.StatusOK, fieldResponse{
		Valid:  result.Valid,
		Value:  input.Value(),
		Errors: nonNil(result.Errors),
	})
}

func (h *handler) serveSubmit(w http.ResponseWriter, r *http.Request, cfg form.Config, client string) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if cfg.RateLimit != nil && h.opts.PerClientActions {
		scoped := *cfg.RateLimit
		scoped.Action = scoped.Action + ":" + client
		cfg.RateLimit = &scoped
	}

	f, err := form.New(cfg,
		form.WithLimiter(h.opts.Limiter),
		form.WithEventLogger(h.opts.Events),
		form.WithLogger(h.opts.Logger),
	)
	if err != nil {
		h.opts.Logger.Error("form config rejected", zap.String("form", cfg.Name), zap.Error(err))
		writeError(w, StatusError{Code: http.StatusInternalServerError})
		return
	}

	var submit form.SubmitFunc
	if h.opts.Forwarder != nil {
		submit = func(ctx context.Context, values map[string]string) error {
			return h.opts.Forwarder(ctx, cfg.Name, values)
		}
	}

	result := f.OnSubmit(r.Context(), req.Values, submit)

	status := http.StatusOK
	switch {
	case errors.Is(result.Err, form.ErrInvalid):
		status = http.StatusUnprocessableEntity
	case errors.Is(result.Err, form.ErrRateLimited):
		status = http.StatusTooManyRequests
		setRetryAfter(w, h.opts.Limiter.RetryAfter(cfg.RateLimit.Action, cfg.RateLimit.Window))
	case errors.Is(result.Err, context.Canceled), errors.Is(result.Err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	case result.Err != nil:
		status = http.StatusBadGateway
	}

	writeJSON(w, status, submitResponse{
		Valid:      result.Valid,
		Submitted:  result.Submitted,
		Values:     result.Values,
		Errors:     nonNilMap(result.Errors),
		FormErrors: nonNil(result.FormErrors),
		Issues:     result.Issues,
	})
}

// parseRoute splits the path below the mount point into a form name and an
// optional field name.
func (h *handler) parseRoute(path string) (string, string, error) {
	base := strings.TrimRight(h.opts.RoutePath, "/")
	rest := path
	if idx := strings.Index(path, base+"/"); base != "" && idx >= 0 {
		rest = path[idx+len(base)+1:]
	}
	rest = strings.Trim(rest, "/")

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return parts[0], "", nil
	case len(parts) == 3 && parts[0] != "" && parts[1] == "fields" && parts[2] != "":
		return parts[0], parts[2], nil
	default:
		return "", "", errBadRoute
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return StatusError{Code: http.StatusBadRequest, Err: errors.New("validate: empty body")}
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return StatusError{Code: http.StatusRequestEntityTooLarge, Err: err}
		}
		return StatusError{Code: http.StatusBadRequest, Err: fmt.Errorf("validate: decode body: %w", err)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		code = httpErr.StatusCode()
	}
	msg := http.StatusText(code)
	if code < http.StatusInternalServerError && err != nil {
		msg = err.Error()
	}
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeGuardError(w http.ResponseWriter, err error) {
	if w == nil {
		return
	}
	if err == nil {
		writeError(w, StatusError{Code: http.StatusForbidden})
		return
	}
	code := http.StatusForbidden
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		code = httpErr.StatusCode()
		if code <= 0 {
			code = http.StatusForbidden
		}
	}
	writeError(w, StatusError{Code: code})
}

func setRetryAfter(w http.ResponseWriter, wait time.Duration) {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
}

// eventsForForm tags events from standalone field checks with the form name.
func eventsForForm(next events.Logger, formName string) events.Logger {
	return events.LoggerFunc(func(ctx context.Context, event events.Event) {
		if event.Form == "" {
			event.Form = formName
		}
		next.LogSecurityEvent(ctx, event)
	})
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nonNilMap(values map[string][]string) map[string][]string {
	if values == nil {
		return map[string][]string{}
	}
	return values
}
