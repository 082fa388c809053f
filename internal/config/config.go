// Package config loads arksync settings from an optional YAML file, ARKSYNC_*
// environment variables and built-in defaults, in decreasing precedence:
// env > file > default.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// ARKSYNC_REMOTE_BASE_URL for remote.base_url.
const EnvPrefix = "ARKSYNC"

// Config is the full runtime configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Store      StoreConfig      `mapstructure:"store"`
	Remote     RemoteConfig     `mapstructure:"remote"`
	Server     ServerConfig     `mapstructure:"server"`
	Blob       BlobConfig       `mapstructure:"blob"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
}

// LogConfig controls zap output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// StoreConfig selects the local record store backend.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"` // sqlite|memory
	SQLitePath string `mapstructure:"sqlite_path"`
}

// RemoteConfig configures the transport used by the client.
type RemoteConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

// ServerConfig configures the reference remote record service.
type ServerConfig struct {
	Addr          string        `mapstructure:"addr"`
	StoreDriver   string        `mapstructure:"store_driver"` // memory|postgres
	PostgresDSN   string        `mapstructure:"postgres_dsn"`
	AutoProvision bool          `mapstructure:"auto_provision"`
	AuthSecret    string        `mapstructure:"auth_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
}

// BlobConfig selects the backup blob backend.
type BlobConfig struct {
	Driver      string `mapstructure:"driver"` // fs|s3|memory
	FSRoot      string `mapstructure:"fs_root"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3Region    string `mapstructure:"s3_region"`
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3PathStyle bool   `mapstructure:"s3_path_style"`
}

// EnrichmentConfig points at the species enrichment provider. An empty
// BaseURL disables enrichment.
type EnrichmentConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "arksync.db")
	v.SetDefault("remote.base_url", "http://localhost:8080")
	v.SetDefault("remote.timeout", 15*time.Second)
	v.SetDefault("remote.max_retries", 3)
	v.SetDefault("remote.initial_backoff", 500*time.Millisecond)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.store_driver", "memory")
	v.SetDefault("server.postgres_dsn", "")
	v.SetDefault("server.auto_provision", false)
	v.SetDefault("server.auth_secret", "")
	v.SetDefault("server.token_ttl", 12*time.Hour)
	v.SetDefault("blob.driver", "fs")
	v.SetDefault("blob.fs_root", "backups")
	v.SetDefault("blob.s3_bucket", "")
	v.SetDefault("blob.s3_region", "us-east-1")
	v.SetDefault("blob.s3_endpoint", "")
	v.SetDefault("blob.s3_path_style", false)
	v.SetDefault("enrichment.base_url", "")
	v.SetDefault("enrichment.timeout", 10*time.Second)
}

// Load reads configuration. path may be empty, in which case only env and
// defaults apply. A named file that does not exist is an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Server.StoreDriver {
	case "memory", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown server store driver %q", c.Server.StoreDriver))
	}
	if c.Remote.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("remote.max_retries must be >= 0, got %d", c.Remote.MaxRetries))
	}
	if c.Remote.InitialBackoff < 0 {
		errs = append(errs, errors.New("remote.initial_backoff must not be negative"))
	}
	return errors.Join(errs...)
}
