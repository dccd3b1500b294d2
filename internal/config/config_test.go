package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/household-ledger/internal/ledger"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
	assert.Equal(t, "memory", c.Store.Driver)
	assert.True(t, c.Store.MigrateOnStart)
	assert.Empty(t, c.Kafka.Brokers)
	assert.Equal(t, "ledger", c.Kafka.TopicPrefix)

	r, err := c.Limits.Resolver()
	require.NoError(t, err)
	assert.Equal(t, ledger.CalendarWindows{Location: time.UTC, WeekStart: time.Monday}, r)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://ledger@localhost/ledger?sslmode=disable")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("LIMIT_WINDOW_POLICY", "rolling")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("MIGRATE_ON_START", "false")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "25")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.Store.Driver)
	assert.False(t, c.Store.MigrateOnStart)
	assert.Equal(t, 3*time.Second, c.ShutdownTimeout)
	assert.Equal(t, 25, c.Store.MaxOpenConns)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, c.Kafka.Brokers)

	r, err := c.Limits.Resolver()
	require.NoError(t, err)
	assert.Equal(t, ledger.RollingWindows{}, r)

	level, err := c.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:9999\nLIMIT_WEEK_START=sunday\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("HTTP_ADDR")
		os.Unsetenv("LIMIT_WEEK_START")
	})

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", c.HTTPAddr)
	assert.Equal(t, "sunday", c.Limits.WeekStart)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres without url", env: map[string]string{"STORE_DRIVER": "postgres"}},
		{name: "unknown driver", env: map[string]string{"STORE_DRIVER": "sqlite"}},
		{name: "unknown policy", env: map[string]string{"LIMIT_WINDOW_POLICY": "fortnightly"}},
		{name: "bad timezone", env: map[string]string{"LIMIT_TIMEZONE": "Mars/Olympus"}},
		{name: "bad week start", env: map[string]string{"LIMIT_WEEK_START": "someday"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
