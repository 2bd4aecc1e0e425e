package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Environment string `mapstructure:"environment" validate:"oneof=development production"`
	Port        int    `mapstructure:"port"        validate:"required,numeric,min=1,max=65535"`

	Webhook struct {
		Secret string `mapstructure:"secret"`
	} `mapstructure:"webhook"`

	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		Database string `mapstructure:"database"`
		SSLMode  string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Persistence struct {
		// Type selects the build/plugin store backend: "postgres" or "memory".
		Type string `mapstructure:"type"`
	} `mapstructure:"persistence"`

	Artifacts struct {
		// Type selects the artifact store backend: "s3" or "memory".
		Type string `mapstructure:"type"`
		S3   struct {
			Endpoint   string `mapstructure:"endpoint"`
			Region     string `mapstructure:"region"`
			KeyID      string `mapstructure:"key_id"`
			AccessKey  string `mapstructure:"access_key"`
			Bucket     string `mapstructure:"bucket"`
			PresignTTL string `mapstructure:"presign_ttl"`
		} `mapstructure:"s3"`
	} `mapstructure:"artifacts"`

	Builder struct {
		Endpoint string `mapstructure:"endpoint"`
		Token    string `mapstructure:"token"`
		Timeout  string `mapstructure:"timeout"`
	} `mapstructure:"builder"`

	RateLimit struct {
		PublicPerMinute   int `mapstructure:"public_per_minute"`
		InternalPerMinute int `mapstructure:"internal_per_minute"`
	} `mapstructure:"ratelimit"`

	CORS struct {
		Origins []string `mapstructure:"origins"`
	} `mapstructure:"cors"`

	Telemetry struct {
		// Type selects the download-event sink: "kafka" or "log".
		Type  string `mapstructure:"type"`
		Kafka struct {
			Brokers []string `mapstructure:"brokers"`
			Topic   string   `mapstructure:"topic"`
		} `mapstructure:"kafka"`
	} `mapstructure:"telemetry"`

	Dispatch struct {
		Workers int `mapstructure:"workers"`
	} `mapstructure:"dispatch"`
}

// DefaultValue seeds viper before the config file and environment are applied.
type DefaultValue struct {
	Key   string
	Value any
}

var Defaults = []DefaultValue{
	{Key: "environment", Value: "development"},
	{Key: "port", Value: 8080},
	{Key: "persistence.type", Value: "postgres"},
	{Key: "artifacts.type", Value: "s3"},
	{Key: "artifacts.s3.presign_ttl", Value: "15m"},
	{Key: "builder.timeout", Value: "10s"},
	{Key: "ratelimit.public_per_minute", Value: 100},
	{Key: "ratelimit.internal_per_minute", Value: 200},
	{Key: "telemetry.type", Value: "log"},
	{Key: "dispatch.workers", Value: 4},
	{Key: "database.port", Value: 5432},
	{Key: "database.sslmode", Value: "disable"},
}

// Load populates an AppConfig from defaults, an optional config file
// (plugin-pipeline.yaml in the working directory) and PIPELINE_* environment
// variables, in ascending precedence.
func Load(overrides ...DefaultValue) (*AppConfig, error) {
	v := viper.New()

	for _, d := range Defaults {
		v.SetDefault(d.Key, d.Value)
	}
	for _, d := range overrides {
		v.SetDefault(d.Key, d.Value)
	}

	v.SetConfigName("plugin-pipeline")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode, which
// relaxes the CORS allow-list to include localhost origins.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment != "production"
}
