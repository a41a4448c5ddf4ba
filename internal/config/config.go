// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Package config loads Fieldtrack configuration.
//
// Values are layered with koanf: built-in defaults, then an optional YAML file
// (CONFIG_PATH or one of DefaultConfigPaths), then a fixed set of environment
// variables. The result is validated once and treated as immutable afterwards.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Logging     LoggingConfig     `koanf:"logging"`
	Security    SecurityConfig    `koanf:"security"`
	Authz       AuthzConfig       `koanf:"authz"`
	WebSocket   WebSocketConfig   `koanf:"websocket"`
	Locations   LocationsConfig   `koanf:"locations"`
	Retention   RetentionConfig   `koanf:"retention"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
	NATS        NATSConfig        `koanf:"nats"`
	Ledger      LedgerConfig      `koanf:"ledger"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Supported database drivers.
const (
	DriverDuckDB  = "duckdb"
	DriverSQLite3 = "sqlite3" // mattn/go-sqlite3, CGO
	DriverSQLite  = "sqlite"  // modernc.org/sqlite, pure Go
)

// DatabaseConfig selects and tunes the fix store.
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`

	// DuckDB only.
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`

	// SQLite only; milliseconds to wait on a locked database.
	BusyTimeoutMS int `koanf:"busy_timeout_ms"`

	// SkipIndexes is used by tests that do not exercise query plans.
	SkipIndexes bool `koanf:"skip_indexes"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SecurityConfig covers bearer tokens, CORS and rate limiting.
type SecurityConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`

	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// Per-user token bucket applied to ingestion routes.
	IngestRatePerSecond float64 `koanf:"ingest_rate_per_second"`
	IngestBurst         int     `koanf:"ingest_burst"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// AuthzConfig configures the casbin enforcer. Empty paths use the embedded
// model and policy.
type AuthzConfig struct {
	ModelPath      string        `koanf:"model_path"`
	PolicyPath     string        `koanf:"policy_path"`
	AutoReload     bool          `koanf:"auto_reload"`
	ReloadInterval time.Duration `koanf:"reload_interval"`
	CacheEnabled   bool          `koanf:"cache_enabled"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
}

// WebSocketConfig sizes the live viewer hub.
type WebSocketConfig struct {
	// BroadcastBuffer is the hub's inbound queue; a full queue drops the fix.
	BroadcastBuffer int `koanf:"broadcast_buffer"`
	// ClientBuffer is each viewer's send queue; a full queue drops the message for that viewer.
	ClientBuffer int `koanf:"client_buffer"`
	// AllowedOrigins restricts the Origin header on upgrade. Empty allows any.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// LocationsConfig bounds the ingestion and query surface.
type LocationsConfig struct {
	BatchMax            int           `koanf:"batch_max"`
	HistoryDefaultLimit int           `koanf:"history_default_limit"`
	HistoryMaxLimit     int           `koanf:"history_max_limit"`
	ActiveWindow        time.Duration `koanf:"active_window"`
}

// RetentionConfig holds maintenance defaults and the optional schedule.
type RetentionConfig struct {
	DefaultPurgeDays        int     `koanf:"default_purge_days"`
	DefaultCompressDays     int     `koanf:"default_compress_days"`
	DefaultCompressionRatio float64 `koanf:"default_compression_ratio"`

	// Zero intervals disable the scheduled runs.
	PurgeInterval     time.Duration `koanf:"purge_interval"`
	PurgeAfterDays    int           `koanf:"purge_after_days"`
	CompressInterval  time.Duration `koanf:"compress_interval"`
	CompressAfterDays int           `koanf:"compress_after_days"`
	CompressRatio     float64       `koanf:"compress_ratio"`

	Archive ArchiveConfig `koanf:"archive"`
}

// ArchiveConfig points purges at an S3-compatible bucket.
type ArchiveConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	Prefix    string `koanf:"prefix"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// MaintenanceConfig configures the job runner.
type MaintenanceConfig struct {
	// JobsPath is the badger directory for job history. Empty keeps history in memory.
	JobsPath     string `koanf:"jobs_path"`
	HistoryLimit int    `koanf:"history_limit"`
}

// NATSConfig enables cross-instance fan-out of location updates.
type NATSConfig struct {
	Enabled        bool          `koanf:"enabled"`
	URL            string        `koanf:"url"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	EmbeddedHost   string        `koanf:"embedded_host"`
	EmbeddedPort   int           `koanf:"embedded_port"`
	SubjectPrefix  string        `koanf:"subject_prefix"`
	QueueSize      int           `koanf:"queue_size"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`

	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
}

// LedgerConfig bounds sync ledger retries.
type LedgerConfig struct {
	MaxRetries int `koanf:"max_retries"`
}

// IsProduction reports whether Environment is "production".
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
