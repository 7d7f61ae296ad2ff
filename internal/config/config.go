// Package config decodes the flat set of environment variables this
// module needs into a single struct, the way GoogleCloudPlatform-gcsfuse
// uses viper to populate its config type, scaled down to one flat
// struct instead of a hierarchical YAML document.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds everything needed to construct a gcstransport.Transport
// and a sqstask.Consumer.
type Config struct {
	GCSBucket         string `mapstructure:"gcs_bucket"`
	GCSKeyPrefix      string `mapstructure:"gcs_key_prefix"`
	GCSBaseURL        string `mapstructure:"gcs_base_url"`
	SQSRegion         string `mapstructure:"sqs_region"`
	SQSQueueURL       string `mapstructure:"sqs_queue_url"`
	MinChunkSizeBytes int    `mapstructure:"min_chunk_size_bytes"`
}

var envKeys = []string{
	"gcs_bucket",
	"gcs_key_prefix",
	"gcs_base_url",
	"sqs_region",
	"sqs_queue_url",
	"min_chunk_size_bytes",
}

// Load reads GCS_BUCKET, GCS_KEY_PREFIX, GCS_BASE_URL, SQS_REGION,
// SQS_QUEUE_URL and MIN_CHUNK_SIZE_BYTES from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("gcs_base_url", "https://storage.googleapis.com")
	v.SetDefault("min_chunk_size_bytes", 8*1024*1024)

	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET is required")
	}
	if cfg.SQSQueueURL == "" {
		return nil, fmt.Errorf("SQS_QUEUE_URL is required")
	}
	if cfg.SQSRegion == "" {
		return nil, fmt.Errorf("SQS_REGION is required")
	}

	return &cfg, nil
}
