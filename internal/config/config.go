package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port        string
	Environment string
	LogLevel    string
	CORSOrigins []string

	// Database
	DatabaseURL    string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBConnLifetime time.Duration
	MigrationMode  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Notifications
	NotifyBuffer int
	NotifySink   string

	// Identity
	AdminEmails []string
}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "family_fund"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		MigrationMode:  getEnv("MIGRATION_MODE", "sql"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "family_fund"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "notifications"),

		NotifyBuffer: getEnvInt("NOTIFY_BUFFER", 256),
		NotifySink:   getEnv("NOTIFY_SINK", "store"),

		AdminEmails: getEnvList("ADMIN_EMAILS", nil),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}

	if c.DatabaseURL == "" {
		if c.DBHost == "" || c.DBName == "" || c.DBUser == "" {
			errors = append(errors, "either DATABASE_URL or DB_HOST, DB_NAME and DB_USER must be set")
		}
	} else if parsed, err := url.Parse(c.DatabaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid database URL: %v", err))
	} else if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		errors = append(errors, fmt.Sprintf("invalid database URL scheme '%s': must be 'postgres' or 'postgresql'", parsed.Scheme))
	}

	if c.DBMaxOpenConns < 1 {
		errors = append(errors, fmt.Sprintf("invalid max open connections %d: must be at least 1", c.DBMaxOpenConns))
	}
	if c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		errors = append(errors, fmt.Sprintf("invalid max idle connections %d: must be between 0 and %d", c.DBMaxIdleConns, c.DBMaxOpenConns))
	}

	if c.MigrationMode != "sql" && c.MigrationMode != "auto" {
		errors = append(errors, fmt.Sprintf("invalid migration mode '%s': must be 'sql' or 'auto'", c.MigrationMode))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.NotifyBuffer < 1 {
		errors = append(errors, fmt.Sprintf("invalid notify buffer %d: must be at least 1", c.NotifyBuffer))
	}
	if c.NotifySink != "store" && c.NotifySink != "log" {
		errors = append(errors, fmt.Sprintf("invalid notify sink '%s': must be 'store' or 'log'", c.NotifySink))
	}

	for _, email := range c.AdminEmails {
		if _, err := mail.ParseAddress(email); err != nil {
			errors = append(errors, fmt.Sprintf("invalid admin email '%s'", email))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
