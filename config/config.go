package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StageProduction  = "production"
	StageDevelopment = "development"

	// LocalKeyId selects the in-process key service instead of KMS.
	LocalKeyId = "local"
)

// Config holds all configuration for the gateway, read from the environment.
type Config struct {
	Stage               string        `mapstructure:"STAGE"`
	HostPort            string        `mapstructure:"HOST_PORT"`
	BucketName          string        `mapstructure:"BUCKET_NAME"`
	KMSKeyId            string        `mapstructure:"KMS_KEY_ID"`
	LocalMasterKey      string        `mapstructure:"LOCAL_MASTER_KEY"` // Base64, development only
	AllowedExtensionIds string        `mapstructure:"ALLOWED_EXTENSION_IDS"`
	AllowedOrigin       string        `mapstructure:"ALLOWED_ORIGIN"`
	JWTSecret           string        `mapstructure:"JWT_SECRET"` // Base64 encoded
	JWTIssuer           string        `mapstructure:"JWT_ISSUER"`
	PreferencesTable    string        `mapstructure:"PREFERENCES_TABLE"`
	AccountDeletedQueue string        `mapstructure:"ACCOUNT_DELETED_QUEUE"`
	RedisEndpoint       string        `mapstructure:"REDIS_ENDPOINT"`
	S3Endpoint          string        `mapstructure:"S3_ENDPOINT"`
	KMSEndpoint         string        `mapstructure:"KMS_ENDPOINT"`
	DynamoDBEndpoint    string        `mapstructure:"DYNAMODB_ENDPOINT"`
	SQSEndpoint         string        `mapstructure:"SQS_ENDPOINT"`
	RequestTimeout      time.Duration `mapstructure:"REQUEST_TIMEOUT"`
}

var keys = []string{
	"STAGE",
	"HOST_PORT",
	"BUCKET_NAME",
	"KMS_KEY_ID",
	"LOCAL_MASTER_KEY",
	"ALLOWED_EXTENSION_IDS",
	"ALLOWED_ORIGIN",
	"JWT_SECRET",
	"JWT_ISSUER",
	"PREFERENCES_TABLE",
	"ACCOUNT_DELETED_QUEUE",
	"REDIS_ENDPOINT",
	"S3_ENDPOINT",
	"KMS_ENDPOINT",
	"DYNAMODB_ENDPOINT",
	"SQS_ENDPOINT",
	"REQUEST_TIMEOUT",
}

// Load reads configuration from environment variables. A missing CORS
// allow-list is deliberately not an error here; the handlers refuse requests
// instead.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("STAGE", StageProduction)
	v.SetDefault("HOST_PORT", "8080")
	v.SetDefault("PREFERENCES_TABLE", "Mindful")
	v.SetDefault("REQUEST_TIMEOUT", "10s")

	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Stage {
	case StageProduction, StageDevelopment:
	default:
		return fmt.Errorf("STAGE must be %q or %q, got %q", StageProduction, StageDevelopment, c.Stage)
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if _, err := c.JWTSecretBytes(); err != nil {
		return fmt.Errorf("JWT_SECRET must be base64: %w", err)
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}

	if c.DevMode() {
		if c.LocalMasterKey != "" {
			if _, err := c.LocalMasterKeyBytes(); err != nil {
				return fmt.Errorf("LOCAL_MASTER_KEY must be base64: %w", err)
			}
		}
		return nil
	}

	if c.BucketName == "" {
		return errors.New("BUCKET_NAME is required")
	}
	if c.KMSKeyId == "" || c.KMSKeyId == LocalKeyId {
		return errors.New("KMS_KEY_ID is required in production")
	}
	return nil
}

func (c *Config) DevMode() bool {
	return c.Stage == StageDevelopment
}

// UseLocalKeys reports whether the in-process key service replaces KMS.
func (c *Config) UseLocalKeys() bool {
	return c.DevMode() && (c.KMSKeyId == "" || c.KMSKeyId == LocalKeyId)
}

func (c *Config) JWTSecretBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(c.JWTSecret)
}

func (c *Config) LocalMasterKeyBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(c.LocalMasterKey)
}
