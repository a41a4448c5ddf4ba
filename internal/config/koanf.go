// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/fieldtrack/config.yaml",
	"/etc/fieldtrack/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Driver:        DriverDuckDB,
			Path:          "/data/fieldtrack.duckdb",
			MaxMemory:     "1GB",
			Threads:       0,
			BusyTimeoutMS: 5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			JWTIssuer:           "fieldtrack",
			RateLimitReqs:       300,
			RateLimitWindow:     time.Minute,
			IngestRatePerSecond: 5,
			IngestBurst:         20,
			CORSOrigins:         []string{"*"},
		},
		Authz: AuthzConfig{
			AutoReload:     false,
			ReloadInterval: 30 * time.Second,
			CacheEnabled:   true,
			CacheTTL:       5 * time.Minute,
		},
		WebSocket: WebSocketConfig{
			BroadcastBuffer: 256,
			ClientBuffer:    64,
		},
		Locations: LocationsConfig{
			BatchMax:            100,
			HistoryDefaultLimit: 100,
			HistoryMaxLimit:     1000,
			ActiveWindow:        24 * time.Hour,
		},
		Retention: RetentionConfig{
			DefaultPurgeDays:        90,
			DefaultCompressDays:     30,
			DefaultCompressionRatio: 0.5,
			PurgeAfterDays:          365,
			CompressAfterDays:       30,
			CompressRatio:           0.5,
			Archive: ArchiveConfig{
				Prefix: "purged",
				UseSSL: true,
			},
		},
		Maintenance: MaintenanceConfig{
			HistoryLimit: 200,
		},
		NATS: NATSConfig{
			Enabled:                 false,
			URL:                     "nats://127.0.0.1:4222",
			EmbeddedServer:          true,
			EmbeddedHost:            "127.0.0.1",
			EmbeddedPort:            4222,
			SubjectPrefix:           "fieldtrack.locations",
			QueueSize:               1024,
			MaxReconnects:           -1,
			ReconnectWait:           2 * time.Second,
			BreakerMaxRequests:      1,
			BreakerInterval:         time.Minute,
			BreakerTimeout:          30 * time.Second,
			BreakerFailureThreshold: 5,
		},
		Ledger: LedgerConfig{
			MaxRetries: 5,
		},
	}
}

// Load reads defaults, the optional YAML file and the environment, then validates.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
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

// Paths whose env values arrive as comma-separated strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"websocket.allowed_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok || raw == "" {
			continue
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings lists every environment variable Fieldtrack reads. Anything
// else in the environment is ignored.
var envMappings = map[string]string{
	"http_host":        "server.host",
	"http_port":        "server.port",
	"server_timeout":   "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	"database_driver":        "database.driver",
	"database_path":          "database.path",
	"duckdb_max_memory":      "database.max_memory",
	"duckdb_threads":         "database.threads",
	"sqlite_busy_timeout_ms": "database.busy_timeout_ms",
	"database_skip_indexes":  "database.skip_indexes",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"jwt_secret":             "security.jwt_secret",
	"jwt_issuer":             "security.jwt_issuer",
	"rate_limit_requests":    "security.rate_limit_requests",
	"rate_limit_window":      "security.rate_limit_window",
	"disable_rate_limit":     "security.rate_limit_disabled",
	"ingest_rate_per_second": "security.ingest_rate_per_second",
	"ingest_burst":           "security.ingest_burst",
	"cors_origins":           "security.cors_origins",

	"casbin_model_path":      "authz.model_path",
	"casbin_policy_path":     "authz.policy_path",
	"casbin_auto_reload":     "authz.auto_reload",
	"casbin_reload_interval": "authz.reload_interval",
	"casbin_cache_enabled":   "authz.cache_enabled",
	"casbin_cache_ttl":       "authz.cache_ttl",

	"ws_broadcast_buffer": "websocket.broadcast_buffer",
	"ws_client_buffer":    "websocket.client_buffer",
	"ws_allowed_origins":  "websocket.allowed_origins",

	"locations_batch_max":     "locations.batch_max",
	"history_default_limit":   "locations.history_default_limit",
	"history_max_limit":       "locations.history_max_limit",
	"locations_active_window": "locations.active_window",

	"retention_default_purge_days":        "retention.default_purge_days",
	"retention_default_compress_days":     "retention.default_compress_days",
	"retention_default_compression_ratio": "retention.default_compression_ratio",
	"retention_purge_interval":            "retention.purge_interval",
	"retention_purge_after_days":          "retention.purge_after_days",
	"retention_compress_interval":         "retention.compress_interval",
	"retention_compress_after_days":       "retention.compress_after_days",
	"retention_compress_ratio":            "retention.compress_ratio",

	"archive_enabled":    "retention.archive.enabled",
	"archive_endpoint":   "retention.archive.endpoint",
	"archive_access_key": "retention.archive.access_key",
	"archive_secret_key": "retention.archive.secret_key",
	"archive_bucket":     "retention.archive.bucket",
	"archive_prefix":     "retention.archive.prefix",
	"archive_use_ssl":    "retention.archive.use_ssl",

	"maintenance_jobs_path":     "maintenance.jobs_path",
	"maintenance_history_limit": "maintenance.history_limit",

	"nats_enabled":                   "nats.enabled",
	"nats_url":                       "nats.url",
	"nats_embedded":                  "nats.embedded_server",
	"nats_embedded_host":             "nats.embedded_host",
	"nats_embedded_port":             "nats.embedded_port",
	"nats_subject_prefix":            "nats.subject_prefix",
	"nats_queue_size":                "nats.queue_size",
	"nats_max_reconnects":            "nats.max_reconnects",
	"nats_reconnect_wait":            "nats.reconnect_wait",
	"nats_breaker_failure_threshold": "nats.breaker_failure_threshold",
	"nats_breaker_timeout":           "nats.breaker_timeout",

	"ledger_max_retries": "ledger.max_retries",
}

// envTransformFunc maps an environment variable name to its koanf path, or
// "" to skip it.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
