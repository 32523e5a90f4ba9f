package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-secureform/pkg/form"
	"github.com/goliatone/go-secureform/pkg/sanitize"
	"github.com/goliatone/go-secureform/pkg/validation"
)

const (
	extensionType      = "x-secureform-type"
	extensionAllowHTML = "x-secureform-allow-html"
	extensionRateLimit = "x-secureform-rate-limit"
)

var (
	ErrEmptyDocument     = errors.New("openapi: document payload is empty")
	ErrOperationNotFound = errors.New("openapi: operation not found")
	ErrNoRequestBody     = errors.New("openapi: operation has no request body schema")
)

var requestMediaTypes = []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"}

// Operations lists the operation ids that declare a request body.
func Operations(ctx context.Context, data []byte) ([]string, error) {
	doc, err := load(ctx, data)
	if err != nil {
		return nil, err
	}
	var ids []string
	eachOperation(doc, func(method, path string, op *openapi3.Operation) bool {
		if requestSchema(op) != nil {
			ids = append(ids, operationID(method, path, op))
		}
		return true
	})
	sort.Strings(ids)
	return ids, nil
}

// FormFromDocument derives a form configuration from the request body of the
// operation identified by id. Operations without an id can be
// addressed as "post:/path". String properties become fields; format,
// minLength, maxLength, pattern and the required list map onto rules.
func FormFromDocument(ctx context.Context, data []byte, id string) (form.Config, error) {
	doc, err := load(ctx, data)
	if err != nil {
		return form.Config{}, err
	}

	target := strings.TrimSpace(id)
	var found *openapi3.Operation
	eachOperation(doc, func(method, path string, op *openapi3.Operation) bool {
		if operationID(method, path, op) == target {
			found = op
			return false
		}
		return true
	})
	if found == nil {
		return form.Config{}, fmt.Errorf("%w: %q", ErrOperationNotFound, target)
	}

	schema := requestSchema(found)
	if schema == nil {
		return form.Config{}, fmt.Errorf("%w: %q", ErrNoRequestBody, target)
	}

	cfg := form.Config{
		Name:   target,
		Fields: make(map[string]form.FieldConfig, len(schema.Properties)),
	}

	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	for name, ref := range schema.Properties {
		if ref == nil || ref.Value == nil || !isStringSchema(ref.Value) {
			continue
		}
		field, err := fieldFromSchema(ref.Value, required[name])
		if err != nil {
			return form.Config{}, fmt.Errorf("openapi: operation %q property %q: %w", target, name, err)
		}
		cfg.Fields[name] = field
	}

	rl, err := rateLimitFromExtensions(found.Extensions, target)
	if err != nil {
		return form.Config{}, err
	}
	cfg.RateLimit = rl

	if err := cfg.Validate(); err != nil {
		return form.Config{}, fmt.Errorf("openapi: operation %q: %w", target, err)
	}
	return cfg, nil
}

func load(ctx context.Context, data []byte) (*openapi3.T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, ErrEmptyDocument
	}
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	return doc, nil
}

func eachOperation(doc *openapi3.T, fn func(method, path string, op *openapi3.Operation) bool) {
	if doc == nil || doc.Paths == nil {
		return
	}
	paths := doc.Paths.Map()
	keys := make([]string, 0, len(paths))
	for path := range paths {
		keys = append(keys, path)
	}
	sort.Strings(keys)

	for _, path := range keys {
		item := paths[path]
		if item == nil {
			continue
		}
		for _, entry := range []struct {
			method string
			op     *openapi3.Operation
		}{
			{"POST", item.Post},
			{"PUT", item.Put},
			{"PATCH", item.Patch},
		} {
			if entry.op == nil {
				continue
			}
			if !fn(entry.method, path, entry.op) {
				return
			}
		}
	}
}

func operationID(method, path string, op *openapi3.Operation) string {
	if id := strings.TrimSpace(op.OperationID); id != "" {
		return id
	}
	return strings.ToLower(method) + ":" + path
}

func requestSchema(op *openapi3.Operation) *openapi3.Schema {
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	for _, mediaType := range requestMediaTypes {
		if mt, ok := content[mediaType]; ok && mt != nil && mt.Schema != nil && mt.Schema.Value != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

func isStringSchema(schema *openapi3.Schema) bool {
	if schema.Type == nil {
		return false
	}
	for _, typ := range schema.Type.Slice() {
		if typ == openapi3.TypeString {
			return true
		}
	}
	return false
}

func fieldFromSchema(schema *openapi3.Schema, required bool) (form.FieldConfig, error) {
	rc := validation.RuleConfig{
		Type:     string(typeForSchema(schema)),
		Required: required,
		Pattern:  schema.Pattern,
	}
	if schema.MinLength > 0 {
		rc.MinLength = int(schema.MinLength)
	}
	if schema.MaxLength != nil {
		rc.MaxLength = int(*schema.MaxLength)
	}

	rule, err := rc.Compile()
	if err != nil {
		return form.FieldConfig{}, err
	}

	opts := sanitize.DefaultOptions()
	if allow, ok := schema.Extensions[extensionAllowHTML].(bool); ok {
		opts.AllowHTML = allow
	}
	return form.FieldConfig{Rule: rule, Sanitize: opts}, nil
}

func typeForSchema(schema *openapi3.Schema) validation.FieldType {
	if raw, ok := schema.Extensions[extensionType].(string); ok && strings.TrimSpace(raw) != "" {
		return validation.FieldType(strings.ToLower(strings.TrimSpace(raw)))
	}
	switch strings.ToLower(schema.Format) {
	case "email", "idn-email":
		return validation.FieldTypeEmail
	case "uri", "url", "iri":
		return validation.FieldTypeURL
	case "phone", "tel":
		return validation.FieldTypePhone
	case "password":
		return validation.FieldTypePassword
	default:
		return validation.FieldTypeText
	}
}

func rateLimitFromExtensions(ext map[string]any, name string) (*form.RateLimitConfig, error) {
	raw, ok := ext[extensionRateLimit]
	if !ok || raw == nil {
		return nil, nil
	}
	values, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("openapi: operation %q: %s must be an object", name, extensionRateLimit)
	}

	rl := &form.RateLimitConfig{Action: name}
	if action, ok := values["action"].(string); ok && strings.TrimSpace(action) != "" {
		rl.Action = strings.TrimSpace(action)
	}
	if n, ok := number(values["maxRequests"]); ok {
		rl.MaxRequests = int(n)
	}
	if ms, ok := number(values["windowMs"]); ok {
		rl.Window = time.Duration(ms) * time.Millisecond
	}
	return rl, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
