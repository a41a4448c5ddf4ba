// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

package config

import (
	"fmt"
	"strings"
)

const minJWTSecretLength = 32

// Validate checks the loaded configuration for missing or out-of-range values.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateLogging,
		c.validateSecurity,
		c.validateWebSocket,
		c.validateLocations,
		c.validateRetention,
		c.validateArchive,
		c.validateNATS,
		c.validateLedger,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("SERVER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverDuckDB, DriverSQLite3, DriverSQLite:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be one of duckdb, sqlite3, sqlite; got %q", c.Database.Driver)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
		return nil
	}
	return fmt.Errorf("LOG_LEVEL %q is not a known level", c.Logging.Level)
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	if err := c.validateRateLimits(); err != nil {
		return err
	}
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS must not contain * in production")
	}
	return nil
}

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if c.Security.IngestRatePerSecond <= 0 || c.Security.IngestBurst <= 0 {
		return fmt.Errorf("INGEST_RATE_PER_SECOND and INGEST_BURST must be positive")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, o := range c.Security.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (c *Config) validateWebSocket() error {
	if c.WebSocket.BroadcastBuffer < 1 || c.WebSocket.ClientBuffer < 1 {
		return fmt.Errorf("websocket buffers must be at least 1")
	}
	return nil
}

func (c *Config) validateLocations() error {
	l := c.Locations
	if l.BatchMax < 1 {
		return fmt.Errorf("LOCATIONS_BATCH_MAX must be at least 1")
	}
	if l.HistoryMaxLimit < 1 || l.HistoryDefaultLimit < 1 || l.HistoryDefaultLimit > l.HistoryMaxLimit {
		return fmt.Errorf("history limits must satisfy 1 <= default (%d) <= max (%d)", l.HistoryDefaultLimit, l.HistoryMaxLimit)
	}
	if l.ActiveWindow <= 0 {
		return fmt.Errorf("LOCATIONS_ACTIVE_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateRetention() error {
	r := c.Retention
	for name, days := range map[string]int{
		"RETENTION_DEFAULT_PURGE_DAYS":    r.DefaultPurgeDays,
		"RETENTION_DEFAULT_COMPRESS_DAYS": r.DefaultCompressDays,
	} {
		if days < 1 || days > 365 {
			return fmt.Errorf("%s must be between 1 and 365, got %d", name, days)
		}
	}
	if !validRatio(r.DefaultCompressionRatio) {
		return fmt.Errorf("RETENTION_DEFAULT_COMPRESSION_RATIO must be between 0.1 and 1.0")
	}
	if r.PurgeInterval < 0 || r.CompressInterval < 0 {
		return fmt.Errorf("retention intervals must not be negative")
	}
	if r.PurgeInterval > 0 && r.PurgeAfterDays < 1 {
		return fmt.Errorf("RETENTION_PURGE_AFTER_DAYS must be at least 1 when scheduled purge is enabled")
	}
	if r.CompressInterval > 0 {
		if r.CompressAfterDays < 1 {
			return fmt.Errorf("RETENTION_COMPRESS_AFTER_DAYS must be at least 1 when scheduled compression is enabled")
		}
		if !validRatio(r.CompressRatio) {
			return fmt.Errorf("RETENTION_COMPRESS_RATIO must be between 0.1 and 1.0")
		}
	}
	return nil
}

func validRatio(r float64) bool {
	return r >= 0.1 && r <= 1.0
}

func (c *Config) validateArchive() error {
	a := c.Retention.Archive
	if !a.Enabled {
		return nil
	}
	if a.Endpoint == "" || a.Bucket == "" {
		return fmt.Errorf("ARCHIVE_ENDPOINT and ARCHIVE_BUCKET are required when ARCHIVE_ENABLED=true")
	}
	return nil
}

func (c *Config) validateNATS() error {
	n := c.NATS
	if !n.Enabled {
		return nil
	}
	if !n.EmbeddedServer && n.URL == "" {
		return fmt.Errorf("NATS_URL is required when the embedded server is disabled")
	}
	if n.SubjectPrefix == "" || strings.ContainsAny(n.SubjectPrefix, " *>") {
		return fmt.Errorf("NATS_SUBJECT_PREFIX %q is not a valid subject prefix", n.SubjectPrefix)
	}
	if n.QueueSize < 1 {
		return fmt.Errorf("NATS_QUEUE_SIZE must be at least 1")
	}
	if n.BreakerFailureThreshold < 1 {
		return fmt.Errorf("NATS_BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	return nil
}

func (c *Config) validateLedger() error {
	if c.Ledger.MaxRetries < 1 {
		return fmt.Errorf("LEDGER_MAX_RETRIES must be at least 1")
	}
	return nil
}
