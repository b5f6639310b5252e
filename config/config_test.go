package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/rent-engine/rent"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "DB_PATH", "REDIS_URL", "ALERT_WINDOW_MODE", "ALERT_WINDOW_DAYS", "ALERT_SWEEP_CRON", "CORS_ORIGINS"} {
		t.Setenv(key, "") // restored after the test
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "rent.db", cfg.Database.Path)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, rent.ModeDayOfMonth, cfg.Alerts.WindowMode)
	assert.Equal(t, 5, cfg.Alerts.WindowDays)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.Server.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ALERT_WINDOW_MODE", "calendar")
	t.Setenv("ALERT_WINDOW_DAYS", "7")
	t.Setenv("ALERT_CACHE_TTL", "30s")
	t.Setenv("ALERT_SWEEP_CRON", "30 6 * * *")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("CORS_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, rent.ModeCalendar, cfg.Alerts.WindowMode)
	assert.Equal(t, 7, cfg.Alerts.WindowDays)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "30 6 * * *", cfg.Scheduler.CronSpec)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Setenv("ALERT_SWEEP_CRON", "0 8 * * *")
	t.Setenv("ALERT_WINDOW_MODE", "weekly")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ALERT_WINDOW_MODE", "calendar")
	t.Setenv("ALERT_SWEEP_CRON", "every morning")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("ALERT_SWEEP_CRON", "0 8 * * *")
	t.Setenv("ALERT_WINDOW_DAYS", "-1")
	_, err = Load()
	assert.Error(t, err)
}
