// Package config loads the service configuration from defaults, an
// optional YAML file and IADAS_ environment variables, in rising order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. IADAS_SERVER_ADDR.
const EnvPrefix = "IADAS"

// Config is the top-level configuration.
type Config struct {
	Endpoint EndpointConfig `mapstructure:"endpoint"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Query    QueryConfig    `mapstructure:"query"`
	Server   ServerConfig   `mapstructure:"server"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Log      LogConfig      `mapstructure:"log"`
}

// EndpointConfig locates the SPARQL endpoint. URLs are tried in order.
type EndpointConfig struct {
	URLs      []string      `mapstructure:"urls"`
	UpdateURL string        `mapstructure:"update_url"`
	Timeout   time.Duration `mapstructure:"timeout"`

	// RateLimit paces requests per second; zero leaves them unpaced.
	RateLimit float64 `mapstructure:"rate_limit"`
	Burst     int     `mapstructure:"burst"`
}

// CacheConfig controls the analysis record cache.
type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// QueryConfig controls query building.
type QueryConfig struct {
	Limit int `mapstructure:"limit"`
}

// ServerConfig controls the HTTP service.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// JournalConfig locates the update journal database.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig sets the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint.urls", []string{"http://localhost:3030/ds/sparql"})
	v.SetDefault("endpoint.update_url", "")
	v.SetDefault("endpoint.timeout", 30*time.Second)
	v.SetDefault("endpoint.rate_limit", 0.0)
	v.SetDefault("endpoint.burst", 10)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("query.limit", 10000)
	v.SetDefault("server.addr", ":8003")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("journal.path", "iadas-journal.db")
	v.SetDefault("log.level", "info")
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config: defaults do not decode: %v", err))
	}
	return &cfg
}

// Load reads configuration from the given path (or defaults only when path
// is empty) with environment variable overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration, collecting every problem.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateEndpoint()...)
	errs = append(errs, c.validateServer()...)

	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("config: cache.ttl must be positive, got %s", c.Cache.TTL))
	}
	if c.Query.Limit <= 0 {
		errs = append(errs, fmt.Errorf("config: query.limit must be positive, got %d", c.Query.Limit))
	}
	if c.Journal.Path == "" {
		errs = append(errs, errors.New("config: journal.path must not be empty"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errs
}

func (c *Config) validateEndpoint() []error {
	var errs []error

	if len(c.Endpoint.URLs) == 0 {
		errs = append(errs, errors.New("config: endpoint.urls must list at least one URL"))
	}
	for _, u := range c.Endpoint.URLs {
		if err := checkURL(u); err != nil {
			errs = append(errs, fmt.Errorf("config: endpoint.urls: %w", err))
		}
	}
	if c.Endpoint.UpdateURL != "" {
		if err := checkURL(c.Endpoint.UpdateURL); err != nil {
			errs = append(errs, fmt.Errorf("config: endpoint.update_url: %w", err))
		}
	}
	if c.Endpoint.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("config: endpoint.timeout must be positive, got %s", c.Endpoint.Timeout))
	}
	if c.Endpoint.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("config: endpoint.rate_limit must not be negative, got %g", c.Endpoint.RateLimit))
	}

	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	_, portStr, err := net.SplitHostPort(c.Server.Addr)
	if err != nil {
		errs = append(errs, fmt.Errorf("config: server.addr must be a valid host:port address, got %q: %w", c.Server.Addr, err))
	} else if port, err := strconv.Atoi(portStr); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Errorf("config: server.addr port must be between 1 and 65535, got %q", portStr))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("config: server.request_timeout must be positive, got %s", c.Server.RequestTimeout))
	}

	return errs
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%q: missing host", raw)
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: log.level must be one of [debug, info, warn, error], got %q", name)
	}
}
