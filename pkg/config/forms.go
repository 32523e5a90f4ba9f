// Package config loads form definitions and application settings.
//
// Form definitions are JSON or YAML documents of the shape
//
//	forms:
//	  login:
//	    rateLimit: {action: login, maxRequests: 5, windowMs: 60000}
//	    fields:
//	      email: {type: email, required: true}
//	      bio:   {type: text, allowHtml: true, sanitizeMaxLength: 500}
//
// Every file found under the supplied filesystem contributes forms; a form
// name may only be defined once.
package config

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-secureform/pkg/form"
	"github.com/goliatone/go-secureform/pkg/sanitize"
	"github.com/goliatone/go-secureform/pkg/validation"
)

// Store holds compiled form configurations keyed by name.
type Store struct {
	forms   map[string]form.Config
	sources map[string]string
}

// LoadFS walks fsys and parses every JSON/YAML form definition. A nil fsys
// yields an empty store.
func LoadFS(fsys fs.FS) (*Store, error) {
	store := &Store{
		forms:   make(map[string]form.Config),
		sources: make(map[string]string),
	}
	if fsys == nil {
		return store, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDefinitionFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		doc, err := parseDocument(data, path)
		if err != nil {
			return err
		}

		for rawName, raw := range doc.Forms {
			name := strings.TrimSpace(rawName)
			if name == "" {
				return fmt.Errorf("config: file %s defines a form with an empty name", path)
			}
			if prev, exists := store.sources[name]; exists {
				return fmt.Errorf("config: duplicate form %q (files %s and %s)", name, prev, path)
			}
			cfg, err := compileForm(name, raw, path)
			if err != nil {
				return err
			}
			store.forms[name] = cfg
			store.sources[name] = path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Form returns the configuration for name.
func (s *Store) Form(name string) (form.Config, bool) {
	if s == nil {
		return form.Config{}, false
	}
	cfg, ok := s.forms[name]
	return cfg, ok
}

// Names lists the loaded forms alphabetically.
func (s *Store) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.forms))
	for name := range s.forms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source reports which file defined name.
func (s *Store) Source(name string) string {
	if s == nil {
		return ""
	}
	return s.sources[name]
}

// Empty reports whether the store holds any forms.
func (s *Store) Empty() bool {
	return s == nil || len(s.forms) == 0
}

type documentFile struct {
	Forms map[string]formFile `json:"forms" yaml:"forms"`
}

type formFile struct {
	RateLimit *rateLimitFile       `json:"rateLimit" yaml:"rateLimit"`
	Fields    map[string]fieldFile `json:"fields" yaml:"fields"`
}

type rateLimitFile struct {
	Action      string `json:"action" yaml:"action"`
	MaxRequests int    `json:"maxRequests" yaml:"maxRequests"`
	WindowMs    int64  `json:"windowMs" yaml:"windowMs"`
}

type fieldFile struct {
	Type              string `json:"type" yaml:"type"`
	Required          bool   `json:"required" yaml:"required"`
	MinLength         int    `json:"minLength" yaml:"minLength"`
	MaxLength         int    `json:"maxLength" yaml:"maxLength"`
	Pattern           string `json:"pattern" yaml:"pattern"`
	PatternMessage    string `json:"patternMessage" yaml:"patternMessage"`
	AllowHTML         bool   `json:"allowHtml" yaml:"allowHtml"`
	StripScripts      *bool  `json:"stripScripts" yaml:"stripScripts"`
	SanitizeMaxLength *int   `json:"sanitizeMaxLength" yaml:"sanitizeMaxLength"`
}

func parseDocument(data []byte, source string) (documentFile, error) {
	var doc documentFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return documentFile{}, fmt.Errorf("config: file %s is empty", source)
	}
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	doc = documentFile{}
	if err := yaml.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}
	return documentFile{}, fmt.Errorf("config: parse %s: invalid JSON or YAML", source)
}

func compileForm(name string, raw formFile, source string) (form.Config, error) {
	cfg := form.Config{
		Name:   name,
		Fields: make(map[string]form.FieldConfig, len(raw.Fields)),
	}

	for rawField, field := range raw.Fields {
		fieldName := strings.TrimSpace(rawField)
		if fieldName == "" {
			return form.Config{}, fmt.Errorf("config: form %q (file %s) defines a field with an empty name", name, source)
		}
		if _, exists := cfg.Fields[fieldName]; exists {
			return form.Config{}, fmt.Errorf("config: form %q (file %s) defines duplicate field %q", name, source, fieldName)
		}
		fc, err := compileField(field)
		if err != nil {
			return form.Config{}, fmt.Errorf("config: form %q field %q (file %s): %w", name, fieldName, source, err)
		}
		cfg.Fields[fieldName] = fc
	}

	if raw.RateLimit != nil {
		action := strings.TrimSpace(raw.RateLimit.Action)
		if action == "" {
			action = name
		}
		cfg.RateLimit = &form.RateLimitConfig{
			Action:      action,
			MaxRequests: raw.RateLimit.MaxRequests,
			Window:      time.Duration(raw.RateLimit.WindowMs) * time.Millisecond,
		}
	}

	if err := cfg.Validate(); err != nil {
		return form.Config{}, fmt.Errorf("config: form %q (file %s): %w", name, source, err)
	}
	return cfg, nil
}

func compileField(raw fieldFile) (form.FieldConfig, error) {
	rule, err := validation.RuleConfig{
		Type:           raw.Type,
		Required:       raw.Required,
		MinLength:      raw.MinLength,
		MaxLength:      raw.MaxLength,
		Pattern:        raw.Pattern,
		PatternMessage: raw.PatternMessage,
	}.Compile()
	if err != nil {
		return form.FieldConfig{}, err
	}

	opts := sanitize.DefaultOptions()
	opts.AllowHTML = raw.AllowHTML
	if raw.StripScripts != nil {
		opts.StripScripts = *raw.StripScripts
	}
	if raw.SanitizeMaxLength != nil {
		opts.MaxLength = *raw.SanitizeMaxLength
	}
	return form.FieldConfig{Rule: rule, Sanitize: opts}, nil
}

func isDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
