package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Payout   PayoutConfig   `mapstructure:"payout"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

// PayoutConfig carries the disbursement engine policy knobs.
type PayoutConfig struct {
	MaxAttempts    int             `mapstructure:"max_attempts"`
	RetryBackoff   []time.Duration `mapstructure:"retry_backoff"` // Tier per attempt count
	SweepInterval  time.Duration   `mapstructure:"sweep_interval"`
	Workers        int             `mapstructure:"workers"`
	QueueKey       string          `mapstructure:"queue_key"`
	AttemptTimeout time.Duration   `mapstructure:"attempt_timeout"`
	// SimulateLatency disables the mock processor's artificial delay
	// when false (tests, local development).
	SimulateLatency bool `mapstructure:"simulate_latency"`
}

// BackoffFor returns the retry delay after the given attempt count.
// Attempt counts beyond the configured tiers reuse the last tier.
func (p PayoutConfig) BackoffFor(attemptCount int) time.Duration {
	if len(p.RetryBackoff) == 0 {
		return time.Hour
	}
	idx := attemptCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(p.RetryBackoff) {
		idx = len(p.RetryBackoff) - 1
	}
	return p.RetryBackoff[idx]
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: PE_ (Payout Engine).
// Nested keys use underscore: PE_DATABASE_HOST, PE_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "payout_engine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "payout-engine")
	v.SetDefault("payout.max_attempts", 3)
	v.SetDefault("payout.retry_backoff", []string{"1h", "24h", "168h"})
	v.SetDefault("payout.sweep_interval", "1h")
	v.SetDefault("payout.workers", 4)
	v.SetDefault("payout.queue_key", "payout:tasks")
	v.SetDefault("payout.attempt_timeout", "5m")
	v.SetDefault("payout.simulate_latency", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: PE_DATABASE_HOST -> database.host
	v.SetEnvPrefix("PE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}
