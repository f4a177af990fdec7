package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig configures the device side: where the local database lives
// and how to reach the gateway.
type ClientConfig struct {
	APIURL     string        `mapstructure:"API_URL"`
	Token      string        `mapstructure:"TOKEN"`
	UserId     string        `mapstructure:"USER_ID"`
	Origin     string        `mapstructure:"ORIGIN"`
	DBPath     string        `mapstructure:"DB_PATH"`
	Source     string        `mapstructure:"SOURCE"`
	MaxRetries uint64        `mapstructure:"MAX_RETRIES"`
	Timeout    time.Duration `mapstructure:"TIMEOUT"`
	Debug      bool          `mapstructure:"DEBUG"`
}

var clientKeys = []string{
	"API_URL",
	"TOKEN",
	"USER_ID",
	"ORIGIN",
	"DB_PATH",
	"SOURCE",
	"MAX_RETRIES",
	"TIMEOUT",
	"DEBUG",
}

var ErrTokenWithoutURL = errors.New("MINDFUL_TOKEN requires MINDFUL_API_URL")

// LoadClient reads MINDFUL_* environment variables.
func LoadClient() (*ClientConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("MINDFUL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("DB_PATH", defaultDBPath())
	v.SetDefault("MAX_RETRIES", 3)
	v.SetDefault("TIMEOUT", "15s")

	for _, key := range clientKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal client config: %w", err)
	}
	if cfg.Token != "" && cfg.APIURL == "" {
		return nil, ErrTokenWithoutURL
	}
	return &cfg, nil
}

// SignedIn reports whether remote storage can be used.
func (c *ClientConfig) SignedIn() bool {
	return c.Token != "" && c.UserId != ""
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "mindful", "mindful.db")
}
