// Package config loads the process-level configuration described in §6,
// using the same env-tag loader and Validator convention the rest of the
// module's lineage uses.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rezkam/retryq/internal/domain"
	"github.com/rezkam/retryq/internal/env"
)

// Config holds every environment-sourced setting the scheduler process needs.
type Config struct {
	Bucket        string `env:"RETRYQ_BUCKET"`
	ActivePrefix  string `env:"RETRYQ_ACTIVE_PREFIX"`
	SuccessPrefix string `env:"RETRYQ_SUCCESS_PREFIX"`
	FailedPrefix  string `env:"RETRYQ_FAILED_PREFIX"`
	EndpointURL   string `env:"RETRYQ_ENDPOINT_URL"`
	Region        string `env:"RETRYQ_REGION"`

	StorageBackend string `env:"RETRYQ_STORAGE_BACKEND"` // "gcs" or "fs"
	FSBaseDir      string `env:"RETRYQ_FS_BASE_DIR"`

	APIHost string `env:"RETRYQ_API_HOST"`
	APIPort string `env:"RETRYQ_API_PORT"`

	LogLevel string `env:"RETRYQ_LOG_LEVEL"`

	// AuditDatabaseURL, when set, enables the Postgres audit trail
	// companion. Unlike the object store this is optional.
	AuditDatabaseURL string `env:"RETRYQ_AUDIT_DATABASE_URL"`

	OTelEnabled          bool   `env:"RETRYQ_OTEL_ENABLED"`
	OTelExporterEndpoint string `env:"RETRYQ_OTEL_EXPORTER_ENDPOINT"`

	RecoveryAllowSkipMalformed bool `env:"RETRYQ_RECOVERY_ALLOW_SKIP_MALFORMED"`

	GatewayTimeout time.Duration `env:"RETRYQ_GATEWAY_TIMEOUT"`
}

func defaults() Config {
	return Config{
		ActivePrefix:         "state",
		SuccessPrefix:        "success",
		FailedPrefix:         "failed",
		Region:               "us-east-1",
		StorageBackend:       "gcs",
		FSBaseDir:            "./retryq-data",
		APIHost:              "0.0.0.0",
		APIPort:              "8080",
		LogLevel:             "INFO",
		OTelExporterEndpoint: "localhost:4318",
		GatewayTimeout:       10 * time.Second,
	}
}

// Load reads Config from the environment, applying §6's defaults to any
// field left unset, then validates it.
func Load() (*Config, error) {
	cfg := defaults()
	if err := env.Load(&cfg); err != nil {
		var cfgErr *domain.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, err
		}
		return nil, &domain.ConfigurationError{Reason: err.Error()}
	}
	return &cfg, nil
}

// Validate implements env.Validator. Only the object store backend choice
// has a hard required field: GCS needs a bucket; the filesystem backend
// needs nothing beyond its (defaulted) base directory.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case "gcs":
		if c.Bucket == "" {
			return &domain.ConfigurationError{Key: "RETRYQ_BUCKET", Reason: "required when RETRYQ_STORAGE_BACKEND=gcs"}
		}
	case "fs":
		if c.FSBaseDir == "" {
			return &domain.ConfigurationError{Key: "RETRYQ_FS_BASE_DIR", Reason: "must not be empty when RETRYQ_STORAGE_BACKEND=fs"}
		}
	default:
		return &domain.ConfigurationError{Key: "RETRYQ_STORAGE_BACKEND", Reason: fmt.Sprintf("unknown backend %q, want gcs or fs", c.StorageBackend)}
	}
	return nil
}
