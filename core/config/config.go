package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds settings shared by every hosted auto bot.
type TelegramConfig struct {
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// DropPendingUpdates discards updates queued while a bot was offline.
	DropPendingUpdates bool `yaml:"drop_pending_updates" envconfig:"TELEGRAM_DROP_PENDING_UPDATES"`
	// StartParallelism bounds how many bots are connected at once on restart.
	StartParallelism int `yaml:"start_parallelism" envconfig:"TELEGRAM_START_PARALLELISM"`
	// SilentMessages sends menu screens without a notification sound.
	SilentMessages bool `yaml:"silent_messages" envconfig:"TELEGRAM_SILENT_MESSAGES"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	MigrationsDir  string `yaml:"migrations_dir" envconfig:"DB_MIGRATIONS_DIR"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for per-user rate limiting inside each bot.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": inline keyboard button presses
// - "message": standard text messages and commands
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// SenderConfig tunes the asynchronous outbound dispatcher.
type SenderConfig struct {
	QueueSize      int `yaml:"queue_size" envconfig:"SENDER_QUEUE_SIZE"`
	Workers        int `yaml:"workers" envconfig:"SENDER_WORKERS"`
	MaxRetries     int `yaml:"max_retries" envconfig:"SENDER_MAX_RETRIES"`
	RetryBackoffMS int `yaml:"retry_backoff_ms" envconfig:"SENDER_RETRY_BACKOFF_MS"`
}

// TextsConfig carries the user-facing labels rendered by the menu engine.
type TextsConfig struct {
	HomeButton      string   `yaml:"home_button"`
	AllShowButton   string   `yaml:"all_show_button"`
	AllShowHeader   string   `yaml:"all_show_header"`
	LeafFallback    string   `yaml:"leaf_fallback"`
	MenuHeader      string   `yaml:"menu_header"`
	DefaultWelcome  string   `yaml:"default_welcome"`
	LevelNames      []string `yaml:"level_names"`
	UnknownCallback string   `yaml:"unknown_callback"`
}

// SeedConfig points at an optional YAML file with bot definitions to upsert at startup.
type SeedConfig struct {
	File    string `yaml:"file" envconfig:"SEED_FILE"`
	OwnerID int64  `yaml:"owner_id" envconfig:"SEED_OWNER_ID"`
}

// Config aggregates the runtime configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sender    SenderConfig    `yaml:"sender"`
	Texts     TextsConfig     `yaml:"texts"`
	Seed      SeedConfig      `yaml:"seed"`
}

// DefaultTexts returns the labels used when the config leaves them empty.
func DefaultTexts() TextsConfig {
	return TextsConfig{
		HomeButton:      "🏠 Menu Utama",
		AllShowButton:   "📋 Semua Menu",
		AllShowHeader:   "📋 Daftar Semua Menu",
		LeafFallback:    "You selected: %s",
		MenuHeader:      "%s: %s",
		DefaultWelcome:  "Selamat datang! Silakan pilih menu di bawah ini.",
		LevelNames:      []string{"Menu Utama", "Sub Menu", "Sub Menu 2", "Sub Menu 3", "Sub Menu 4", "Sub Menu 5"},
		UnknownCallback: "",
	}
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of configuration fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
	}
	if cfg.Telegram.StartParallelism <= 0 {
		cfg.Telegram.StartParallelism = 4
	}

	if strings.TrimSpace(cfg.Database.Host) == "" {
		return fmt.Errorf("database.host is required")
	}
	if strings.TrimSpace(cfg.Database.Name) == "" {
		return fmt.Errorf("database.name is required")
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxConnections <= 0 {
		cfg.Database.MaxConnections = 10
	}
	if cfg.Database.MigrationsDir == "" {
		cfg.Database.MigrationsDir = "migrations"
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	if cfg.RateLimit.IntervalMS < 0 {
		return fmt.Errorf("rate_limit.interval_ms must be >= 0")
	}

	if cfg.Sender.MaxRetries < 0 {
		return fmt.Errorf("sender.max_retries must be >= 0")
	}

	cfg.Texts = cfg.Texts.WithDefaults()
	return nil
}

// WithDefaults fills empty or malformed labels from DefaultTexts.
func (t TextsConfig) WithDefaults() TextsConfig {
	def := DefaultTexts()
	if t.HomeButton == "" {
		t.HomeButton = def.HomeButton
	}
	if t.AllShowButton == "" {
		t.AllShowButton = def.AllShowButton
	}
	if t.AllShowHeader == "" {
		t.AllShowHeader = def.AllShowHeader
	}
	if !strings.Contains(t.LeafFallback, "%s") {
		t.LeafFallback = def.LeafFallback
	}
	if strings.Count(t.MenuHeader, "%s") != 2 {
		t.MenuHeader = def.MenuHeader
	}
	if t.DefaultWelcome == "" {
		t.DefaultWelcome = def.DefaultWelcome
	}
	if len(t.LevelNames) == 0 {
		t.LevelNames = def.LevelNames
	}
	return t
}
