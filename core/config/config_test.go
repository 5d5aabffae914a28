package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		Storage:  StorageConfig{Driver: "Memory"},
	}
	require.NoError(t, Normalize(cfg))

	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout())
	assert.Equal(t, time.Hour, cfg.Session.ReaperPeriod())
	assert.Equal(t, 33, cfg.Contest.RequiredParticipants)
	assert.True(t, *cfg.Contest.WeeklySweep)
	assert.True(t, *cfg.Generation.AIEnabled)
	assert.Equal(t, 5, cfg.Generation.Pool.Core)
	assert.Equal(t, 10, cfg.Generation.Pool.Max)
	assert.Equal(t, 25, cfg.Generation.Pool.Queue)
	assert.Equal(t, 3, cfg.Generation.Provider.Attempts)
	assert.Equal(t, 2.0, cfg.Generation.Provider.Multiplier)
}

func TestNormalizeRejectsInvalidValues(t *testing.T) {
	cases := map[string]func(*Config){
		"missing token":      func(c *Config) { c.Telegram.Token = "" },
		"bad run mode":       func(c *Config) { c.Telegram.RunMode = "carrier-pigeon" },
		"webhook no url":     func(c *Config) { c.Telegram.RunMode = RunModeWebhook },
		"bad driver":         func(c *Config) { c.Storage.Driver = "mongo" },
		"postgres no host":   func(c *Config) { c.Storage.Driver = StoragePostgres },
		"bad exclusion":      func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"inline_query"} },
		"bad weekday":        func(c *Config) { c.Contest.SweepWeekday = "someday" },
		"pool max < core":    func(c *Config) { c.Generation.Pool = WorkerPoolConfig{Core: 8, Max: 2} },
		"sweep hour too big": func(c *Config) { c.Contest.SweepHourUTC = 24 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := &Config{
				Telegram: TelegramConfig{Token: "123:abc"},
				Storage:  StorageConfig{Driver: StorageMemory},
			}
			mutate(cfg)
			assert.Error(t, Normalize(cfg))
		})
	}
}

func TestLoadOverlaysEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
telegram:
  token: from-file
storage:
  driver: memory
contest:
  required_participants: 5
  sweep_weekday: monday
generation:
  ai_enabled: false
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuu")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, 5, cfg.Contest.RequiredParticipants)
	assert.False(t, *cfg.Generation.AIEnabled)
	assert.True(t, *cfg.Generation.VoiceEnabled)
	assert.Equal(t, "$2a$10$abcdefghijklmnopqrstuu", cfg.Admin.PasswordHash)

	day, err := cfg.Contest.Weekday()
	require.NoError(t, err)
	assert.Equal(t, time.Monday, day)
}
