package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"lendloop/internal/config"
	"lendloop/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppPort)
	assert.Equal(t, database.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "0 8 * * *", cfg.ReminderCron)
	assert.Empty(t, cfg.RabbitMQURL)
	assert.Equal(t, database.DriverSQLite, cfg.Database().Driver)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\n"), 0o600))
	t.Setenv("APP_PORT", ":9999")
	// godotenv never overrides variables that are already present.
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, ":9999", cfg.AppPort)
}

func TestLoad_Invalid(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Setenv("JWT_SECRET", "")
	_, err := config.Load(missing)
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "oracle")
	_, err = config.Load(missing)
	assert.ErrorContains(t, err, "DB_DRIVER")

	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("REMINDER_CRON", "every day")
	_, err = config.Load(missing)
	assert.ErrorContains(t, err, "REMINDER_CRON")
}
