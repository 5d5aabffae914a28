package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
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
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for inbound rate limiting.
// ExcludeUpdates accepts update types to bypass limiting: "callback" or "message".
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

const (
	// StorageMemory keeps users and memes in process memory.
	StorageMemory = "memory"
	// StoragePostgres persists users and memes in Postgres.
	StoragePostgres = "postgres"
)

// StorageConfig selects the repository backend and the image directory.
type StorageConfig struct {
	Driver    string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	ImageDir  string `yaml:"image_dir" envconfig:"STORAGE_IMAGE_DIR"`
	PublicURL string `yaml:"public_url" envconfig:"STORAGE_PUBLIC_URL"`
}

// SessionConfig controls dialog session expiry.
type SessionConfig struct {
	IdleTimeoutMinutes  int `yaml:"idle_timeout_minutes" envconfig:"SESSION_IDLE_TIMEOUT_MINUTES"`
	ReaperPeriodMinutes int `yaml:"reaper_period_minutes" envconfig:"SESSION_REAPER_PERIOD_MINUTES"`
	Shards              int `yaml:"shards"`
}

// ContestConfig controls the contest cycle.
type ContestConfig struct {
	RequiredParticipants int    `yaml:"required_participants" envconfig:"CONTEST_REQUIRED_PARTICIPANTS"`
	WeeklySweep          *bool  `yaml:"weekly_sweep" envconfig:"CONTEST_WEEKLY_SWEEP"`
	SweepWeekday         string `yaml:"sweep_weekday" envconfig:"CONTEST_SWEEP_WEEKDAY"`
	SweepHourUTC         int    `yaml:"sweep_hour_utc" envconfig:"CONTEST_SWEEP_HOUR_UTC"`
}

// WorkerPoolConfig sizes the generation worker pool.
type WorkerPoolConfig struct {
	Core  int `yaml:"core" envconfig:"GENERATION_POOL_CORE"`
	Max   int `yaml:"max" envconfig:"GENERATION_POOL_MAX"`
	Queue int `yaml:"queue" envconfig:"GENERATION_POOL_QUEUE"`
}

// ProviderConfig describes the remote image generation API.
type ProviderConfig struct {
	Endpoint       string  `yaml:"endpoint" envconfig:"GENERATOR_ENDPOINT"`
	APIKey         string  `yaml:"api_key" envconfig:"GENERATOR_API_KEY"`
	Model          string  `yaml:"model" envconfig:"GENERATOR_MODEL"`
	Size           string  `yaml:"size"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Attempts       int     `yaml:"attempts"`
	BackoffMS      int     `yaml:"backoff_ms"`
	Multiplier     float64 `yaml:"multiplier"`
}

// GenerationConfig controls the meme generation pipeline.
type GenerationConfig struct {
	AIEnabled         *bool            `yaml:"ai_enabled" envconfig:"GENERATION_AI_ENABLED"`
	VoiceEnabled      *bool            `yaml:"voice_enabled" envconfig:"GENERATION_VOICE_ENABLED"`
	JobTimeoutSeconds int              `yaml:"job_timeout_seconds"`
	TemplateBaseURL   string           `yaml:"template_base_url" envconfig:"GENERATION_TEMPLATE_BASE_URL"`
	Pool              WorkerPoolConfig `yaml:"pool"`
	Provider          ProviderConfig   `yaml:"provider"`
}

// BroadcastConfig shapes admin send-to-all delivery.
type BroadcastConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second" envconfig:"BROADCAST_RATE_PER_SECOND"`
	Burst         int     `yaml:"burst"`
	Workers       int     `yaml:"workers"`
}

// AdminConfig points at the externally supplied admin secret. No default exists.
type AdminConfig struct {
	PasswordHash string `yaml:"password_hash" envconfig:"ADMIN_PASSWORD_HASH"`
	Password     string `yaml:"-" envconfig:"ADMIN_PASSWORD"`
}

// I18nConfig allows overriding the embedded message catalog.
type I18nConfig struct {
	Path string `yaml:"path" envconfig:"I18N_PATH"`
}

// Config aggregates the whole application configuration.
type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Logging    LoggingConfig    `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Session    SessionConfig    `yaml:"session"`
	Contest    ContestConfig    `yaml:"contest"`
	Generation GenerationConfig `yaml:"generation"`
	Broadcast  BroadcastConfig  `yaml:"broadcast"`
	Admin      AdminConfig      `yaml:"admin"`
	I18n       I18nConfig       `yaml:"i18n"`
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

// Normalize performs validation of required configuration fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if err := normalizeRunMode(cfg); err != nil {
		return err
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

	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver == "" {
		driver = StoragePostgres
	}
	switch driver {
	case StoragePostgres:
		if cfg.Database.Host == "" || cfg.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for the postgres storage driver")
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
	case StorageMemory:
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: postgres, memory", cfg.Storage.Driver)
	}
	cfg.Storage.Driver = driver
	if strings.TrimSpace(cfg.Storage.ImageDir) == "" {
		cfg.Storage.ImageDir = "data/memes"
	}
	cfg.Storage.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.Storage.PublicURL), "/")

	defaultInt(&cfg.Session.IdleTimeoutMinutes, 30)
	defaultInt(&cfg.Session.ReaperPeriodMinutes, 60)
	defaultInt(&cfg.Session.Shards, 32)

	defaultInt(&cfg.Contest.RequiredParticipants, 33)
	defaultBool(&cfg.Contest.WeeklySweep, true)
	if _, err := cfg.Contest.Weekday(); err != nil {
		return err
	}
	if cfg.Contest.SweepHourUTC < 0 || cfg.Contest.SweepHourUTC > 23 {
		return fmt.Errorf("contest.sweep_hour_utc must be within 0..23")
	}

	gen := &cfg.Generation
	defaultBool(&gen.AIEnabled, true)
	defaultBool(&gen.VoiceEnabled, true)
	defaultInt(&gen.JobTimeoutSeconds, 120)
	if gen.TemplateBaseURL == "" {
		gen.TemplateBaseURL = "https://api.memegen.link"
	}
	defaultInt(&gen.Pool.Core, 5)
	defaultInt(&gen.Pool.Max, 10)
	defaultInt(&gen.Pool.Queue, 25)
	if gen.Pool.Max < gen.Pool.Core {
		return fmt.Errorf("generation.pool.max (%d) must be >= generation.pool.core (%d)", gen.Pool.Max, gen.Pool.Core)
	}
	if gen.Provider.Endpoint == "" {
		gen.Provider.Endpoint = "https://api.openai.com/v1/images/generations"
	}
	if gen.Provider.Size == "" {
		gen.Provider.Size = "1024x1024"
	}
	defaultInt(&gen.Provider.TimeoutSeconds, 30)
	defaultInt(&gen.Provider.Attempts, 3)
	defaultInt(&gen.Provider.BackoffMS, 1000)
	if gen.Provider.Multiplier < 1 {
		gen.Provider.Multiplier = 2.0
	}

	if cfg.Broadcast.RatePerSecond <= 0 {
		cfg.Broadcast.RatePerSecond = 20
	}
	defaultInt(&cfg.Broadcast.Burst, 1)
	defaultInt(&cfg.Broadcast.Workers, 4)
	return nil
}

func normalizeRunMode(cfg *Config) error {
	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" || rm == "polling" {
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm
	return nil
}

// Weekday resolves the configured sweep weekday, Sunday when empty.
func (c ContestConfig) Weekday() (time.Weekday, error) {
	raw := strings.ToLower(strings.TrimSpace(c.SweepWeekday))
	if raw == "" {
		return time.Sunday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == raw {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid contest.sweep_weekday %q", c.SweepWeekday)
}

// IdleTimeout returns the session idle timeout as a duration.
func (c SessionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

// ReaperPeriod returns the reaper period as a duration.
func (c SessionConfig) ReaperPeriod() time.Duration {
	return time.Duration(c.ReaperPeriodMinutes) * time.Minute
}

func defaultInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

func defaultBool(v **bool, def bool) {
	if *v == nil {
		b := def
		*v = &b
	}
}
