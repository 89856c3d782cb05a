package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "RECEITAS"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "receitas.db"
	defaultLogLevel      = "info"
	defaultOfflineStore  = BackendSQLite
	defaultFallbackPath  = "/offline.html"
	defaultRedisKeySpace = "receitas:offline:"
)

// Offline cache backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// AppConfig captures runtime configuration for the recipe application.
type AppConfig struct {
	HTTPAddress         string
	DatabasePath        string
	LogLevel            string
	OfflineEnabled      bool
	OfflineBackend      string
	OfflineUpstream     *url.URL
	OfflineFallbackPath string
	RedisURL            string
	RedisPrefix         string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("offline.enabled", true)
	configViper.SetDefault("offline.backend", defaultOfflineStore)
	configViper.SetDefault("offline.upstream", "")
	configViper.SetDefault("offline.fallback_path", defaultFallbackPath)
	configViper.SetDefault("redis.url", "")
	configViper.SetDefault("redis.prefix", defaultRedisKeySpace)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         strings.TrimSpace(configViper.GetString("http.address")),
		DatabasePath:        strings.TrimSpace(configViper.GetString("database.path")),
		LogLevel:            configViper.GetString("log.level"),
		OfflineEnabled:      configViper.GetBool("offline.enabled"),
		OfflineBackend:      strings.ToLower(strings.TrimSpace(configViper.GetString("offline.backend"))),
		OfflineFallbackPath: strings.TrimSpace(configViper.GetString("offline.fallback_path")),
		RedisURL:            strings.TrimSpace(configViper.GetString("redis.url")),
		RedisPrefix:         configViper.GetString("redis.prefix"),
	}

	if raw := strings.TrimSpace(configViper.GetString("offline.upstream")); raw != "" {
		upstream, err := url.Parse(raw)
		if err != nil {
			return AppConfig{}, fmt.Errorf("offline.upstream is invalid: %w", err)
		}
		cfg.OfflineUpstream = upstream
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.HTTPAddress == "" {
		return fmt.Errorf("http.address is required")
	}
	if !c.OfflineEnabled {
		return nil
	}
	switch c.OfflineBackend {
	case BackendSQLite, BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis.url is required for the redis offline backend")
		}
	default:
		return fmt.Errorf("offline.backend %q is not supported", c.OfflineBackend)
	}
	if !strings.HasPrefix(c.OfflineFallbackPath, "/") {
		return fmt.Errorf("offline.fallback_path must be an absolute path")
	}
	if c.OfflineUpstream != nil && (c.OfflineUpstream.Scheme == "" || c.OfflineUpstream.Host == "") {
		return fmt.Errorf("offline.upstream must be an absolute URL")
	}
	return nil
}
