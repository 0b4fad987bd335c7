package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/solcredit/lending-engine/internal/domain"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Business  BusinessConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type SchedulerConfig struct {
	OverdueSweepSpec string
	Timezone         string
}

type BusinessConfig struct {
	AmortizationSystem   string
	FeeHandling          string
	DefaultInterestRate  string
	DelinquencyThreshold int
	StatusCacheTTL       string
}

// Load reads configuration from the environment. Values are read per key
// rather than unmarshalled into the struct, so keys without a default
// (passwords) still bind from the environment.
func Load() (*Config, error) {
	setDefaults()
	viper.AutomaticEnv()

	config := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Env:          viper.GetString("ENV"),
			ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("DATABASE_HOST"),
			Port:            viper.GetString("DATABASE_PORT"),
			Name:            viper.GetString("DATABASE_NAME"),
			User:            viper.GetString("DATABASE_USER"),
			Password:        viper.GetString("DATABASE_PASSWORD"),
			SSLMode:         viper.GetString("DATABASE_SSLMODE"),
			MaxOpenConns:    viper.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: viper.GetDuration("DATABASE_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Scheduler: SchedulerConfig{
			OverdueSweepSpec: viper.GetString("SCHEDULER_OVERDUE_SWEEP_SPEC"),
			Timezone:         viper.GetString("SCHEDULER_TIMEZONE"),
		},
		Business: BusinessConfig{
			AmortizationSystem:   viper.GetString("AMORTIZATION_SYSTEM"),
			FeeHandling:          viper.GetString("FEE_HANDLING"),
			DefaultInterestRate:  viper.GetString("DEFAULT_INTEREST_RATE"),
			DelinquencyThreshold: viper.GetInt("DELINQUENCY_THRESHOLD"),
			StatusCacheTTL:       viper.GetString("STATUS_CACHE_TTL"),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	viper.SetDefault("DATABASE_HOST", "localhost")
	viper.SetDefault("DATABASE_PORT", "5432")
	viper.SetDefault("DATABASE_NAME", "lending")
	viper.SetDefault("DATABASE_USER", "lending")
	viper.SetDefault("DATABASE_SSLMODE", "disable")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("SCHEDULER_OVERDUE_SWEEP_SPEC", "0 0 0 * * *")
	viper.SetDefault("SCHEDULER_TIMEZONE", "America/Bogota")
	viper.SetDefault("AMORTIZATION_SYSTEM", domain.SystemEqualPrincipal)
	viper.SetDefault("FEE_HANDLING", domain.FeeFinanced)
	viper.SetDefault("DEFAULT_INTEREST_RATE", "0.02")
	viper.SetDefault("DELINQUENCY_THRESHOLD", 2)
	viper.SetDefault("STATUS_CACHE_TTL", "10m")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.Host == "" || c.Database.Name == "" {
		return fmt.Errorf("DATABASE_HOST and DATABASE_NAME are required")
	}

	if c.Business.DelinquencyThreshold <= 0 {
		return fmt.Errorf("DELINQUENCY_THRESHOLD must be greater than 0")
	}

	switch c.Business.AmortizationSystem {
	case domain.SystemEqualPrincipal, domain.SystemPrice:
	default:
		return fmt.Errorf("AMORTIZATION_SYSTEM must be %q or %q", domain.SystemEqualPrincipal, domain.SystemPrice)
	}

	switch c.Business.FeeHandling {
	case domain.FeeFinanced, domain.FeeOutOfBand:
	default:
		return fmt.Errorf("FEE_HANDLING must be %q or %q", domain.FeeFinanced, domain.FeeOutOfBand)
	}

	// Validate interest rate
	if _, err := decimal.NewFromString(c.Business.DefaultInterestRate); err != nil {
		return fmt.Errorf("DEFAULT_INTEREST_RATE must be a valid decimal: %w", err)
	}

	// Validate cache TTL
	if _, err := time.ParseDuration(c.Business.StatusCacheTTL); err != nil {
		return fmt.Errorf("STATUS_CACHE_TTL must be a valid duration: %w", err)
	}

	return nil
}

// DSN builds the Postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// GetDefaultInterestRate returns the default interest rate as decimal
func (c *Config) GetDefaultInterestRate() decimal.Decimal {
	rate, _ := decimal.NewFromString(c.Business.DefaultInterestRate)
	return rate
}

// GetStatusCacheTTL returns the Redis cache TTL for derived loan values
func (c *Config) GetStatusCacheTTL() time.Duration {
	ttl, _ := time.ParseDuration(c.Business.StatusCacheTTL)
	return ttl
}
