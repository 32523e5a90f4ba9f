package validate

import (
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"
)

var errMissingMux = errors.New("validate: missing mux")

// Mux accepts the subtree handler. *http.ServeMux satisfies it, as do most
// routers that expose Handle.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// MountPath returns the subtree pattern that serves every form. Under it the
// handler answers
//
//	POST {mount}{form}                  submit the whole form
//	POST {mount}{form}/fields/{field}   check a single field
func MountPath(basePath string, fns ...OptionFn) string {
	return mountPath(basePath, NewOptions(fns...).RoutePath)
}

// SubmitPath is the URL path a client posts a whole form to.
func SubmitPath(mount, formName string) string {
	return strings.TrimRight(mount, "/") + "/" + url.PathEscape(formName)
}

// FieldPath is the URL path a client posts a single field value to.
func FieldPath(mount, formName, field string) string {
	return SubmitPath(mount, formName) + "/fields/" + url.PathEscape(field)
}

// RegisterRoutes mounts a handler built from fns and returns the pattern it
// was registered under.
func RegisterRoutes(mux Mux, basePath string, fns ...OptionFn) (string, error) {
	return RegisterRoutesWithOptions(mux, basePath, NewOptions(fns...))
}

// RegisterRoutesWithOptions mounts a handler built from opts. The handler gets
// a private client limiter; use Component.RegisterRoutes to share one and run
// its janitor.
func RegisterRoutesWithOptions(mux Mux, basePath string, opts Options) (string, error) {
	if mux == nil {
		return "", errMissingMux
	}
	opts = NewOptions(func(o *Options) { *o = opts })
	handler := HandlerWithOptions(opts)
	pattern := mountPath(basePath, opts.RoutePath)
	mux.Handle(pattern, handler)
	return pattern, nil
}

// mountPath joins base and route into a rooted subtree pattern. The trailing
// slash makes net/http route every form name below it to the handler.
func mountPath(basePath, routePath string) string {
	joined := path.Join("/", strings.TrimSpace(basePath), strings.TrimSpace(routePath))
	if joined == "/" {
		return joined
	}
	return joined + "/"
}
