// Package config loads runtime settings from the environment, an optional
// .env file and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"lendloop/internal/database"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds every setting the binary reads.
type Config struct {
	AppPort      string
	AppEnv       string
	LogLevel     string
	DBDriver     string
	DatabaseDSN  string
	JWTSecret    string
	RabbitMQURL  string
	RabbitQueue  string
	MediaRoot    string
	ReminderCron string
	DBMaxOpen    int
	DBMaxIdle    int
	DBMaxLife    time.Duration
}

// Load reads the configuration. envFiles are loaded into the process
// environment first; missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", database.DriverSQLite)
	v.SetDefault("DATABASE_DSN", "file:lendloop.db?_foreign_keys=on")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_QUEUE", "notification_queue")
	v.SetDefault("MEDIA_ROOT", "./uploads")
	v.SetDefault("REMINDER_CRON", "0 8 * * *")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	v.AutomaticEnv()

	cfg := &Config{
		AppPort:      v.GetString("APP_PORT"),
		AppEnv:       v.GetString("APP_ENV"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		DBDriver:     v.GetString("DB_DRIVER"),
		DatabaseDSN:  v.GetString("DATABASE_DSN"),
		JWTSecret:    v.GetString("JWT_SECRET"),
		RabbitMQURL:  v.GetString("RABBITMQ_URL"),
		RabbitQueue:  v.GetString("RABBITMQ_QUEUE"),
		MediaRoot:    v.GetString("MEDIA_ROOT"),
		ReminderCron: v.GetString("REMINDER_CRON"),
		DBMaxOpen:    v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdle:    v.GetInt("DB_MAX_IDLE_CONNS"),
		DBMaxLife:    v.GetDuration("DB_CONN_MAX_LIFETIME"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if _, err := cron.ParseStandard(c.ReminderCron); err != nil {
		return fmt.Errorf("invalid REMINDER_CRON %q: %w", c.ReminderCron, err)
	}
	return nil
}

// Database returns the connection settings for database.Open.
func (c *Config) Database() database.Config {
	return database.Config{
		Driver:          c.DBDriver,
		DSN:             c.DatabaseDSN,
		MaxOpenConns:    c.DBMaxOpen,
		MaxIdleConns:    c.DBMaxIdle,
		ConnMaxLifetime: c.DBMaxLife,
	}
}
