// Package config builds the immutable server configuration from an
// optional YAML file, an optional .env file, and WARRANT_* environment
// variables. It is read once at startup and passed by reference.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "WARRANT"

type Config struct {
	AccessSecret  string        `mapstructure:"access_secret"`
	RefreshSecret string        `mapstructure:"refresh_secret"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	ListenAddr    string        `mapstructure:"listen_addr"`
	DBPath        string        `mapstructure:"db_path"`
	PolicyFile    string        `mapstructure:"policy_file"`
	Production    bool          `mapstructure:"production"`
	Log           LogConfig     `mapstructure:"log"`
	LoginRate     RateConfig    `mapstructure:"login_rate"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
	File   string `mapstructure:"file"`
}

// RateConfig bounds login and refresh attempts per client address.
// A zero PerSecond disables limiting.
type RateConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("access_secret", "")
	v.SetDefault("refresh_secret", "")
	v.SetDefault("access_ttl", 15*time.Minute)
	v.SetDefault("refresh_ttl", 7*24*time.Hour)
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("db_path", "warrant.db")
	v.SetDefault("policy_file", "")
	v.SetDefault("production", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("login_rate.per_second", 1.0)
	v.SetDefault("login_rate.burst", 5)
}

// Load reads configuration. configPath and envFile may be empty; a named
// file that does not exist is an error, a missing default .env is not.
func Load(configPath, envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %v", err)
	}
	return &cfg, nil
}

func loadDotEnv(envFile string) error {
	if envFile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading .env: %v", err)
		}
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("error reading %s: %v", envFile, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.AccessSecret) == "" {
		return fmt.Errorf("%s_ACCESS_SECRET is required", EnvPrefix)
	}
	if strings.TrimSpace(c.RefreshSecret) == "" {
		return fmt.Errorf("%s_REFRESH_SECRET is required", EnvPrefix)
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("access and refresh secrets must differ")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	if c.AccessTTL >= c.RefreshTTL {
		return errors.New("access_ttl must be shorter than refresh_ttl")
	}
	if c.LoginRate.PerSecond < 0 || c.LoginRate.Burst < 0 {
		return errors.New("login_rate values must not be negative")
	}
	return nil
}
