// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Storage backends.
const (
	BackendS3    = "s3"
	BackendLocal = "local"
)

// Config holds the environment driven configuration shared by every entrypoint.
type Config struct {
	LogLevel  string `env:"ADCHECK_LOG_LEVEL" envDefault:"info"`
	AWSRegion string `env:"AWS_REGION"` // overrides the SDK's own region lookup when set

	// Storage
	StorageBackend   string `env:"STORAGE_BACKEND" envDefault:"s3"` // "s3" or "local"
	LocalStoragePath string `env:"LOCAL_STORAGE_PATH" envDefault:"./adcheck-data"`
	Bucket           string `env:"S3_BUCKET"` // batch staging and uploaded assets
	GuidelinesBucket string `env:"GUIDELINES_BUCKET" envDefault:"airuleasset"`

	// Bedrock
	ModelID              string `env:"BEDROCK_MODEL_ID" envDefault:"anthropic.claude-3-sonnet-20240229-v1:0"`
	BatchModelID         string `env:"BEDROCK_BATCH_MODEL_ID" envDefault:"anthropic.claude-3-haiku-20240307-v1:0"`
	BatchRoleARN         string `env:"BEDROCK_BATCH_ROLE_ARN"`
	SSMBatchRoleARNParam string `env:"SSM_BATCH_ROLE_ARN_PARAM" envDefault:"/ad-compliance/prod/bedrock-batch-role-arn"`

	// Optional integrations; empty disables them.
	BatchJobsTable string `env:"BATCH_JOBS_TABLE_NAME"`
	EventBusName   string `env:"EVENT_BUS_NAME"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"AdCompliance"`
}

// Load parses environment variables into Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	cfg.AWSRegion = strings.TrimSpace(cfg.AWSRegion)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.GuidelinesBucket = strings.TrimSpace(cfg.GuidelinesBucket)
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))

	switch cfg.StorageBackend {
	case BackendS3, BackendLocal:
	default:
		return nil, fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", BackendS3, BackendLocal, cfg.StorageBackend)
	}
	if cfg.IsLocalStorage() && strings.TrimSpace(cfg.LocalStoragePath) == "" {
		return nil, fmt.Errorf("LOCAL_STORAGE_PATH is required when STORAGE_BACKEND is local")
	}
	return cfg, nil
}

// IsLocalStorage returns true if the local filesystem backend is configured.
func (c *Config) IsLocalStorage() bool {
	return c.StorageBackend == BackendLocal
}

// RequireBucket returns an error naming S3_BUCKET when it is unset.
func (c *Config) RequireBucket() error {
	if c.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}
	return nil
}
