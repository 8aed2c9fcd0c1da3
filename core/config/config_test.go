package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: autobot
rate_limit:
  interval_ms: 500
  exclude_updates: [" Callback "]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "5432", cfg.Database.Port)
	require.Equal(t, "disable", cfg.Database.SSLMode)
	require.Equal(t, "migrations", cfg.Database.MigrationsDir)
	require.Equal(t, 10, cfg.Database.MaxConnections)
	require.Equal(t, 4, cfg.Telegram.StartParallelism)
	require.Equal(t, []string{"callback"}, cfg.RateLimit.ExcludeUpdates)
	require.Equal(t, "🏠 Menu Utama", cfg.Texts.HomeButton)
	require.Equal(t, "You selected: %s", cfg.Texts.LeafFallback)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  host: file-host
  name: autobot
`)
	t.Setenv("DB_HOST", "env-host")
	t.Setenv("TELEGRAM_LONGPOLL_TIMEOUT_SECONDS", "25")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "env-host", cfg.Database.Host)
	require.Equal(t, 25, cfg.Telegram.LongPollTimeoutSeconds)
}

func TestNormalizeRejectsInvalidValues(t *testing.T) {
	base := func() *Config {
		return &Config{Database: DatabaseConfig{Host: "h", Name: "n"}}
	}

	cfg := base()
	cfg.Database.Host = ""
	require.ErrorContains(t, Normalize(cfg), "database.host")

	cfg = base()
	cfg.Telegram.LongPollTimeoutSeconds = -1
	require.ErrorContains(t, Normalize(cfg), "longpoll_timeout_seconds")

	cfg = base()
	cfg.RateLimit.ExcludeUpdates = []string{"inline_query"}
	require.ErrorContains(t, Normalize(cfg), "exclude_updates")

	require.Error(t, Normalize(nil))
}

func TestNormalizeKeepsCustomTexts(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Host: "h", Name: "n"},
		Texts: TextsConfig{
			HomeButton:   "🏠 Home",
			LeafFallback: "Picked %s",
			MenuHeader:   "broken %s",
		},
	}
	require.NoError(t, Normalize(cfg))
	require.Equal(t, "🏠 Home", cfg.Texts.HomeButton)
	require.Equal(t, "Picked %s", cfg.Texts.LeafFallback)
	require.Equal(t, DefaultTexts().MenuHeader, cfg.Texts.MenuHeader)
}
