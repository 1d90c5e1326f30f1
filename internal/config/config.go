package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	LockDriverMemory = "memory"
	LockDriverRedis  = "redis"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Store     StoreConfig
	Redis     RedisConfig
	Lock      LockConfig
	Scheduler SchedulerConfig
	Logging   LoggingConfig
	Health    HealthConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the connection string handed to sqlx.
func (d DatabaseConfig) DSN() string {
	return d.URL
}

type StoreConfig struct {
	Driver string
}

type RedisConfig struct {
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

type LockConfig struct {
	Driver  string
	Timeout time.Duration
	TTL     time.Duration
	Prefix  string
}

type SchedulerConfig struct {
	Spec     string
	Timezone string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type HealthConfig struct {
	Timeout time.Duration
}

// env mirrors the flat environment keys; Load folds it into Config.
type env struct {
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	ServerHost         string        `mapstructure:"SERVER_HOST"`
	Env                string        `mapstructure:"ENV"`
	ServerReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	ServerWriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`

	DatabaseURL             string        `mapstructure:"DATABASE_URL"`
	DatabaseMaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	DatabaseMaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	DatabaseConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`

	RedisURL      string `mapstructure:"REDIS_URL"`
	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     string `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	LockDriver  string        `mapstructure:"LOCK_DRIVER"`
	LockTimeout time.Duration `mapstructure:"LOCK_TIMEOUT"`
	LockTTL     time.Duration `mapstructure:"LOCK_TTL"`
	LockPrefix  string        `mapstructure:"LOCK_PREFIX"`

	SchedulerSpec     string `mapstructure:"SCHEDULER_SPEC"`
	SchedulerTimezone string `mapstructure:"SCHEDULER_TIMEZONE"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	HealthTimeout time.Duration `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

var defaults = map[string]interface{}{
	"SERVER_PORT":                "8080",
	"SERVER_HOST":                "0.0.0.0",
	"ENV":                        "development",
	"SERVER_READ_TIMEOUT":        "15s",
	"SERVER_WRITE_TIMEOUT":       "15s",
	"DATABASE_URL":               "",
	"DATABASE_MAX_OPEN_CONNS":    25,
	"DATABASE_MAX_IDLE_CONNS":    5,
	"DATABASE_CONN_MAX_LIFETIME": "30m",
	"STORE_DRIVER":               StoreDriverPostgres,
	"REDIS_URL":                  "",
	"REDIS_HOST":                 "localhost",
	"REDIS_PORT":                 "6379",
	"REDIS_PASSWORD":             "",
	"REDIS_DB":                   0,
	"LOCK_DRIVER":                LockDriverMemory,
	"LOCK_TIMEOUT":               "5s",
	"LOCK_TTL":                   "30s",
	"LOCK_PREFIX":                "loan-ledger:lock:loan:",
	"SCHEDULER_SPEC":             "0 1 * * *",
	"SCHEDULER_TIMEZONE":         "UTC",
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "json",
	"HEALTH_CHECK_TIMEOUT":       "5s",
}

// Load reads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	// Don't fail if .env file doesn't exist; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var e env
	if err := v.Unmarshal(&e); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:         e.ServerPort,
			Host:         e.ServerHost,
			Env:          e.Env,
			ReadTimeout:  e.ServerReadTimeout,
			WriteTimeout: e.ServerWriteTimeout,
		},
		Database: DatabaseConfig{
			URL:             e.DatabaseURL,
			MaxOpenConns:    e.DatabaseMaxOpenConns,
			MaxIdleConns:    e.DatabaseMaxIdleConns,
			ConnMaxLifetime: e.DatabaseConnMaxLifetime,
		},
		Store: StoreConfig{Driver: e.StoreDriver},
		Redis: RedisConfig{
			URL:      e.RedisURL,
			Host:     e.RedisHost,
			Port:     e.RedisPort,
			Password: e.RedisPassword,
			DB:       e.RedisDB,
		},
		Lock: LockConfig{
			Driver:  e.LockDriver,
			Timeout: e.LockTimeout,
			TTL:     e.LockTTL,
			Prefix:  e.LockPrefix,
		},
		Scheduler: SchedulerConfig{
			Spec:     e.SchedulerSpec,
			Timezone: e.SchedulerTimezone,
		},
		Logging: LoggingConfig{
			Level:  e.LogLevel,
			Format: e.LogFormat,
		},
		Health: HealthConfig{Timeout: e.HealthTimeout},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORE_DRIVER=%s is not allowed when ENV=%s", StoreDriverMemory, c.Server.Env)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.Store.Driver)
	}

	switch c.Lock.Driver {
	case LockDriverMemory:
	case LockDriverRedis:
		if c.Redis.URL == "" && (c.Redis.Host == "" || c.Redis.Port == "") {
			return fmt.Errorf("REDIS_URL or REDIS_HOST/REDIS_PORT is required when LOCK_DRIVER=%s", LockDriverRedis)
		}
		if c.Lock.TTL <= c.Lock.Timeout {
			return fmt.Errorf("LOCK_TTL must be greater than LOCK_TIMEOUT")
		}
	default:
		return fmt.Errorf("LOCK_DRIVER must be %q or %q, got %q", LockDriverMemory, LockDriverRedis, c.Lock.Driver)
	}

	if c.Lock.Timeout <= 0 {
		return fmt.Errorf("LOCK_TIMEOUT must be greater than 0")
	}

	if c.Health.Timeout <= 0 {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be greater than 0")
	}

	if _, err := cron.ParseStandard(c.Scheduler.Spec); err != nil {
		return fmt.Errorf("SCHEDULER_SPEC must be a valid cron expression: %w", err)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE must be a valid IANA zone: %w", err)
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// SchedulerLocation returns the scheduler timezone, falling back to UTC.
func (c *Config) SchedulerLocation() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
