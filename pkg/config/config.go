package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	OTel       OTelConfig
	Recurrence RecurrenceConfig
}

// AppConfig holds application-level settings
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Version     string
}

// DatabaseConfig holds PostgreSQL connection settings for the control
// database; tenant stores reuse the same server with per-tenant schemas.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// RedisConfig holds Redis connection settings; Redis backs the optional
// per-master advisory lock. Enabled=false keeps the engine lock-free.
type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig holds logging settings
type LogConfig struct {
	Level       string
	Development bool
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled       bool
	ServiceName   string
	CollectorAddr string
}

// RecurrenceConfig holds the recurrence engine options
type RecurrenceConfig struct {
	InitialGenerationMonths     int
	MinimumFutureMonths         int
	ExtensionBatchMonths        int
	MaxOccurrencesPerGeneration int
	HistoryRetentionMonths      int
	MaintenanceInterval         time.Duration
	ErrorRetryInterval          time.Duration
	EnableCleanup               bool
	EnableIntegrityCheck        bool
}

// Load loads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	return loadFrom(".env", false)
}

// LoadWithPath loads configuration from a specific env file
func LoadWithPath(path string) (*Config, error) {
	return loadFrom(path, true)
}

func loadFrom(path string, required bool) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		if required {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Missing .env is fine, environment variables may still be set
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{}
	bindConfig(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("APP_NAME", "recurrence-engine")
	v.SetDefault("APP_ENVIRONMENT", "development")
	v.SetDefault("APP_VERSION", "1.0.0")

	// Control database defaults
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_DBNAME", "club_scheduling")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_CONNS", 25)
	v.SetDefault("DATABASE_MIN_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DATABASE_CONN_MAX_IDLE_TIME", "30m")
	v.SetDefault("DATABASE_CONNECT_TIMEOUT", "10s")

	// Redis defaults (advisory locks)
	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 20)
	v.SetDefault("REDIS_MIN_IDLE_CONNS", 2)
	v.SetDefault("REDIS_DIAL_TIMEOUT", "5s")
	v.SetDefault("REDIS_READ_TIMEOUT", "3s")
	v.SetDefault("REDIS_WRITE_TIMEOUT", "3s")

	// Log defaults
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)

	// OTel defaults
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "recurrence-engine")
	v.SetDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")

	// Recurrence engine defaults
	v.SetDefault("INITIAL_GENERATION_MONTHS", 6)
	v.SetDefault("MINIMUM_FUTURE_MONTHS", 3)
	v.SetDefault("EXTENSION_BATCH_MONTHS", 6)
	v.SetDefault("MAX_OCCURRENCES_PER_GENERATION", 500)
	v.SetDefault("HISTORY_RETENTION_MONTHS", 12)
	v.SetDefault("MAINTENANCE_INTERVAL_MINUTES", 60)
	v.SetDefault("ERROR_RETRY_MINUTES", 15)
	v.SetDefault("ENABLE_CLEANUP", true)
	v.SetDefault("ENABLE_INTEGRITY_CHECK", true)
}

func bindConfig(v *viper.Viper, cfg *Config) {
	// App
	cfg.App.Name = v.GetString("APP_NAME")
	cfg.App.Environment = v.GetString("APP_ENVIRONMENT")
	cfg.App.Version = v.GetString("APP_VERSION")

	// Database
	cfg.Database.Host = v.GetString("DATABASE_HOST")
	cfg.Database.Port = v.GetInt("DATABASE_PORT")
	cfg.Database.User = v.GetString("DATABASE_USER")
	cfg.Database.Password = v.GetString("DATABASE_PASSWORD")
	cfg.Database.DBName = v.GetString("DATABASE_DBNAME")
	cfg.Database.SSLMode = v.GetString("DATABASE_SSLMODE")
	cfg.Database.MaxConns = v.GetInt32("DATABASE_MAX_CONNS")
	cfg.Database.MinConns = v.GetInt32("DATABASE_MIN_CONNS")
	cfg.Database.ConnMaxLifetime = v.GetDuration("DATABASE_CONN_MAX_LIFETIME")
	cfg.Database.ConnMaxIdleTime = v.GetDuration("DATABASE_CONN_MAX_IDLE_TIME")
	cfg.Database.ConnectTimeout = v.GetDuration("DATABASE_CONNECT_TIMEOUT")

	// Redis
	cfg.Redis.Enabled = v.GetBool("REDIS_ENABLED")
	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetInt("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")
	cfg.Redis.PoolSize = v.GetInt("REDIS_POOL_SIZE")
	cfg.Redis.MinIdleConns = v.GetInt("REDIS_MIN_IDLE_CONNS")
	cfg.Redis.DialTimeout = v.GetDuration("REDIS_DIAL_TIMEOUT")
	cfg.Redis.ReadTimeout = v.GetDuration("REDIS_READ_TIMEOUT")
	cfg.Redis.WriteTimeout = v.GetDuration("REDIS_WRITE_TIMEOUT")

	// Log
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Development = v.GetBool("LOG_DEVELOPMENT")

	// OTel
	cfg.OTel.Enabled = v.GetBool("OTEL_ENABLED")
	cfg.OTel.ServiceName = v.GetString("OTEL_SERVICE_NAME")
	cfg.OTel.CollectorAddr = v.GetString("OTEL_COLLECTOR_ADDR")

	// Recurrence
	cfg.Recurrence.InitialGenerationMonths = v.GetInt("INITIAL_GENERATION_MONTHS")
	cfg.Recurrence.MinimumFutureMonths = v.GetInt("MINIMUM_FUTURE_MONTHS")
	cfg.Recurrence.ExtensionBatchMonths = v.GetInt("EXTENSION_BATCH_MONTHS")
	cfg.Recurrence.MaxOccurrencesPerGeneration = v.GetInt("MAX_OCCURRENCES_PER_GENERATION")
	cfg.Recurrence.HistoryRetentionMonths = v.GetInt("HISTORY_RETENTION_MONTHS")
	cfg.Recurrence.MaintenanceInterval = time.Duration(v.GetInt("MAINTENANCE_INTERVAL_MINUTES")) * time.Minute
	cfg.Recurrence.ErrorRetryInterval = time.Duration(v.GetInt("ERROR_RETRY_MINUTES")) * time.Minute
	cfg.Recurrence.EnableCleanup = v.GetBool("ENABLE_CLEANUP")
	cfg.Recurrence.EnableIntegrityCheck = v.GetBool("ENABLE_INTEGRITY_CHECK")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("DATABASE_HOST is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("DATABASE_DBNAME is required")
	}
	r := &c.Recurrence
	if r.InitialGenerationMonths <= 0 {
		return fmt.Errorf("INITIAL_GENERATION_MONTHS must be positive")
	}
	if r.MinimumFutureMonths <= 0 {
		return fmt.Errorf("MINIMUM_FUTURE_MONTHS must be positive")
	}
	if r.ExtensionBatchMonths <= 0 {
		return fmt.Errorf("EXTENSION_BATCH_MONTHS must be positive")
	}
	if r.MaxOccurrencesPerGeneration <= 0 {
		return fmt.Errorf("MAX_OCCURRENCES_PER_GENERATION must be positive")
	}
	if r.HistoryRetentionMonths <= 0 {
		return fmt.Errorf("HISTORY_RETENTION_MONTHS must be positive")
	}
	if r.MaintenanceInterval <= 0 {
		return fmt.Errorf("MAINTENANCE_INTERVAL_MINUTES must be positive")
	}
	if r.ErrorRetryInterval <= 0 {
		return fmt.Errorf("ERROR_RETRY_MINUTES must be positive")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
