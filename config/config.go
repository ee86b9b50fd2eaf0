// Package config loads application configuration from an optional
// config/.env.{dev,prod} file and the environment using Viper. Environment
// variables override file values.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultPort                = "8080"
	DefaultTokenExpirySeconds  = 900
	DefaultTwoFactorTTLMinutes = 10
	MinimumTokenExpirySeconds  = 60
	MinimumTwoFactorTTLMinutes = 1
	developmentEnv             = "development"
	productionEnv              = "production"
)

type Config struct {
	Env                 string `mapstructure:"ENV"`
	Port                string `mapstructure:"PORT"`
	DBURL               string `mapstructure:"DB_URL"`
	RedisAddr           string `mapstructure:"REDIS_ADDR"`
	JWTSecret           string `mapstructure:"JWT_SECRET"`
	JWTExpirySeconds    int    `mapstructure:"JWT_EXPIRES_IN_SECONDS"`
	TwoFactorTTLMinutes int    `mapstructure:"TWO_FACTOR_TTL_MINUTES"`
}

// Load builds the configuration. A missing .env file is fine (e.g. in CI);
// a missing JWT_SECRET or DB_URL is not: both are required at startup and
// the caller is expected to treat the error as fatal.
func Load() (*Config, error) {
	v := viper.New()

	env := strings.TrimSpace(os.Getenv("ENV"))
	if env == "" {
		env = developmentEnv
	}

	v.SetConfigFile(configFileFor(env))
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore a missing config file

	v.AutomaticEnv()

	v.SetDefault("ENV", env)
	v.SetDefault("PORT", DefaultPort)
	v.SetDefault("DB_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRES_IN_SECONDS", DefaultTokenExpirySeconds)
	v.SetDefault("TWO_FACTOR_TTL_MINUTES", DefaultTwoFactorTTLMinutes)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("config: JWT_SECRET must be set")
	}
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)

	if strings.TrimSpace(cfg.DBURL) == "" {
		return nil, errors.New("config: DB_URL must be set")
	}

	// Floors, not errors: the original system clamps rather than rejects.
	if cfg.JWTExpirySeconds < MinimumTokenExpirySeconds {
		cfg.JWTExpirySeconds = MinimumTokenExpirySeconds
	}
	if cfg.TwoFactorTTLMinutes < MinimumTwoFactorTTLMinutes {
		cfg.TwoFactorTTLMinutes = MinimumTwoFactorTTLMinutes
	}

	return &cfg, nil
}

func configFileFor(env string) string {
	if env == productionEnv {
		return "config/.env.prod"
	}
	return "config/.env.dev"
}
