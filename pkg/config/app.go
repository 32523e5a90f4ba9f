package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. SECUREFORM_SERVER_ADDR.
const EnvPrefix = "SECUREFORM"

// App holds process-level settings for the CLI and HTTP server.
type App struct {
	Server   ServerConfig `mapstructure:"server"`
	Client   ClientLimit  `mapstructure:"client_limit"`
	FormsDir string       `mapstructure:"forms_dir"`
	EventsDB string       `mapstructure:"events_db"`
	LogLevel string       `mapstructure:"log_level"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RoutePath       string        `mapstructure:"route_path"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ClientLimit is the per-client token bucket applied by the HTTP component.
type ClientLimit struct {
	Rate        float64       `mapstructure:"rate"`
	Burst       int           `mapstructure:"burst"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// DefaultApp returns the settings used when no file or environment override
// is present.
func DefaultApp() App {
	return App{
		Server: ServerConfig{
			Addr:            ":8080",
			RoutePath:       "/api/forms",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Client: ClientLimit{
			Rate:        5,
			Burst:       10,
			IdleTimeout: 10 * time.Minute,
		},
		FormsDir: "forms",
		EventsDB: "",
		LogLevel: "info",
	}
}

// LoadApp reads path (YAML, JSON or TOML by extension) on top of DefaultApp
// and applies SECUREFORM_* environment overrides. An empty path uses
// defaults and the environment only.
func LoadApp(path string) (App, error) {
	v := viper.New()
	setDefaults(v, DefaultApp())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			v.SetConfigType("yaml")
		case ".json":
			v.SetConfigType("json")
		case ".toml":
			v.SetConfigType("toml")
		}
		if err := v.ReadInConfig(); err != nil {
			return App{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var app App
	if err := v.Unmarshal(&app); err != nil {
		return App{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := app.Validate(); err != nil {
		return App{}, err
	}
	return app, nil
}

func setDefaults(v *viper.Viper, d App) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.route_path", d.Server.RoutePath)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("client_limit.rate", d.Client.Rate)
	v.SetDefault("client_limit.burst", d.Client.Burst)
	v.SetDefault("client_limit.idle_timeout", d.Client.IdleTimeout)
	v.SetDefault("forms_dir", d.FormsDir)
	v.SetDefault("events_db", d.EventsDB)
	v.SetDefault("log_level", d.LogLevel)
}

// Validate rejects settings the server cannot run with.
func (a App) Validate() error {
	if strings.TrimSpace(a.Server.Addr) == "" {
		return errors.New("config: server.addr must not be empty")
	}
	if !strings.HasPrefix(a.Server.RoutePath, "/") {
		return fmt.Errorf("config: server.route_path %q must start with /", a.Server.RoutePath)
	}
	if a.Client.Rate < 0 || a.Client.Burst < 0 {
		return errors.New("config: client_limit rate and burst must not be negative")
	}
	if a.Client.Rate > 0 && a.Client.Burst == 0 {
		return errors.New("config: client_limit.burst must be positive when rate is set")
	}
	return nil
}
