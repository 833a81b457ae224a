// Package config loads the dashboard server and CLI configuration.
//
// Precedence: environment > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file lookup.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/datainsight/config.yaml",
}

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Backend   BackendConfig   `koanf:"backend"`
	Session   SessionConfig   `koanf:"session"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Editor    EditorConfig    `koanf:"editor"`
	Report    ReportConfig    `koanf:"report"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP listener and the session cookie.
// LoginBurst sign-in attempts are allowed at once per address, then one every
// LoginEvery; a negative burst disables throttling. MetricsToken lets scrapers
// read /metrics with a bearer token; admins may always read it.
type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	CookieName   string        `koanf:"cookie_name"`
	CookieSecure bool          `koanf:"cookie_secure"`
	SessionTTL   time.Duration `koanf:"session_ttl"`
	LoginBurst   int           `koanf:"login_burst"`
	LoginEvery   time.Duration `koanf:"login_every"`
	MetricsToken string        `koanf:"metrics_token"`
}

// BackendConfig points at the backend REST API.
type BackendConfig struct {
	URL     string        `koanf:"url"`
	Mode    string        `koanf:"mode"`
	Timeout time.Duration `koanf:"timeout"`
	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig tunes the backend circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32        `koanf:"failure_threshold"`
	OpenTimeout      time.Duration `koanf:"open_timeout"`
}

// SessionConfig selects the server-side session store.
type SessionConfig struct {
	Store         string `koanf:"store"`
	BadgerPath    string `koanf:"badger_path"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

// DashboardConfig controls view derivation.
type DashboardConfig struct {
	DateLayout string `koanf:"date_layout"`
	MapPolicy  string `koanf:"map_policy"`
	ChartTheme string `koanf:"chart_theme"`
}

// EditorConfig controls row edit coercion.
type EditorConfig struct {
	TextColumns []string `koanf:"text_columns"`
}

// ReportConfig controls exported documents.
type ReportConfig struct {
	Title string `koanf:"title"`
	Brand string `koanf:"brand"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8080",
			CookieName: "datainsight_session",
			SessionTTL: 12 * time.Hour,
			LoginBurst: 5,
			LoginEvery: 12 * time.Second,
		},
		Backend: BackendConfig{
			URL:     "http://localhost:5000",
			Mode:    "http",
			Timeout: 90 * time.Second,
			Breaker: BreakerConfig{
				FailureThreshold: 3,
				OpenTimeout:      30 * time.Second,
			},
		},
		Session: SessionConfig{
			Store:      "memory",
			BadgerPath: "data/sessions",
			RedisAddr:  "localhost:6379",
		},
		Dashboard: DashboardConfig{
			DateLayout: "1/2/2006",
			MapPolicy:  "unified",
			ChartTheme: "westeros",
		},
		Report: ReportConfig{
			Title: "Executive Sales Report",
			Brand: "DataInsight System",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the environment.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit file path. An empty path skips the file layer.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envMappings = map[string]string{
	"insight_addr":                      "server.addr",
	"insight_cookie_name":               "server.cookie_name",
	"insight_cookie_secure":             "server.cookie_secure",
	"insight_session_ttl":               "server.session_ttl",
	"insight_login_burst":               "server.login_burst",
	"insight_login_every":               "server.login_every",
	"insight_metrics_token":             "server.metrics_token",
	"insight_backend_url":               "backend.url",
	"insight_backend_mode":              "backend.mode",
	"insight_backend_timeout":           "backend.timeout",
	"insight_breaker_failure_threshold": "backend.breaker.failure_threshold",
	"insight_breaker_open_timeout":      "backend.breaker.open_timeout",
	"insight_session_store":             "session.store",
	"insight_badger_path":               "session.badger_path",
	"insight_redis_addr":                "session.redis_addr",
	"insight_redis_password":            "session.redis_password",
	"insight_redis_db":                  "session.redis_db",
	"insight_date_layout":               "dashboard.date_layout",
	"insight_map_policy":                "dashboard.map_policy",
	"insight_chart_theme":               "dashboard.chart_theme",
	"insight_text_columns":              "editor.text_columns",
	"insight_report_title":              "report.title",
	"insight_report_brand":              "report.brand",
	"log_level":                         "logging.level",
	"log_format":                        "logging.format",
	"log_caller":                        "logging.caller",
}

// envTransformFunc maps known environment variables to config paths and drops the rest.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

var sliceConfigPaths = []string{"editor.text_columns"}

// processSliceFields splits comma separated environment values for slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		if err := k.Set(path, values); err != nil {
			return fmt.Errorf("config: set %s: %w", path, err)
		}
	}
	return nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend.Mode {
	case "http":
		u, err := url.Parse(c.Backend.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("backend.url %q is not an absolute URL", c.Backend.URL))
		}
	case "mock":
	default:
		errs = append(errs, fmt.Errorf("backend.mode must be http or mock, got %q", c.Backend.Mode))
	}
	switch c.Session.Store {
	case "memory", "badger", "redis":
	default:
		errs = append(errs, fmt.Errorf("session.store must be memory, badger or redis, got %q", c.Session.Store))
	}
	switch c.Dashboard.MapPolicy {
	case "unified", "exact":
	default:
		errs = append(errs, fmt.Errorf("dashboard.map_policy must be unified or exact, got %q", c.Dashboard.MapPolicy))
	}
	if c.Server.CookieName == "" {
		errs = append(errs, errors.New("server.cookie_name is required"))
	}
	if c.Server.SessionTTL <= 0 {
		errs = append(errs, errors.New("server.session_ttl must be positive"))
	}
	return errors.Join(errs...)
}
