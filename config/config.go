// Package config loads the herald configuration: an optional herald.yaml
// (or .json) merged with HERALD_-prefixed environment variables and the
// conventional secret variables. Every knob has a default; an empty
// deployment runs on the memory store with the log-only notifier.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the herald daemon.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Notifier  NotifierConfig  `mapstructure:"notifier"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains process-wide settings.
type GeneralConfig struct {
	// Timezone anchors "today" for every job; an IANA zone name,
	// "Local", or empty for the host zone.
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the configured zone.
func (g GeneralConfig) Location() (*time.Location, error) {
	if g.Timezone == "" || strings.EqualFold(g.Timezone, "Local") {
		return time.Local, nil
	}
	return time.LoadLocation(g.Timezone)
}

// ServerConfig contains the HTTP API settings.
type ServerConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	// APIToken is the shared bearer credential for /api routes. Empty
	// disables auth.
	APIToken string `mapstructure:"api_token"`
}

// StoreConfig selects and tunes the key-value backend.
type StoreConfig struct {
	// Driver is "memory" or "redis".
	Driver string      `mapstructure:"driver"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// OracleConfig contains the model endpoint settings.
type OracleConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// NotifierConfig contains delivery channel settings.
type NotifierConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig contains the Telegram bot credentials. Both values set
// selects the Telegram sender; otherwise deliveries go to the log.
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID string `mapstructure:"chat_id"`
}

// Configured reports whether both credentials are present.
func (t TelegramConfig) Configured() bool {
	return t.Token != "" && t.ChatID != ""
}

// JobsConfig tunes the job pipeline and per-kind schedules.
type JobsConfig struct {
	// HorizonDays bounds how far ahead the urgency check looks.
	HorizonDays int `mapstructure:"horizon_days"`
	// TaskLimit caps task lines per assembled context.
	TaskLimit int `mapstructure:"task_limit"`
	// DueCoolDown and FocusCoolDown are the per-kind suppression windows.
	DueCoolDown   time.Duration `mapstructure:"due_cooldown"`
	FocusCoolDown time.Duration `mapstructure:"focus_cooldown"`

	MorningDigest JobSchedule `mapstructure:"morning_digest"`
	UrgencyCheck  JobSchedule `mapstructure:"urgency_check"`
	FocusNudge    JobSchedule `mapstructure:"focus_nudge"`
	WeeklyReview  JobSchedule `mapstructure:"weekly_review"`
}

// JobSchedule is one cron entry. Cron may carry a CRON_TZ= prefix to pin
// the job to a zone other than the general one.
type JobSchedule struct {
	Cron    string `mapstructure:"cron"`
	Enabled bool   `mapstructure:"enabled"`
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("herald")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".herald"))
	}
	viper.AddConfigPath("/etc/herald")

	viper.SetEnvPrefix("HERALD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional; defaults plus environment cover a bare run.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("general.timezone", "Local")

	viper.SetDefault("server.listen_address", ":8421")
	viper.SetDefault("server.api_token", "")

	viper.SetDefault("store.driver", "memory")
	viper.SetDefault("store.redis.addr", "localhost:6379")
	viper.SetDefault("store.redis.password", "")
	viper.SetDefault("store.redis.db", 0)
	viper.SetDefault("store.redis.prefix", "herald:")
	viper.SetDefault("store.redis.timeout", "5s")

	viper.SetDefault("oracle.base_url", "https://api.openai.com/v1")
	viper.SetDefault("oracle.model", "gpt-5-mini")
	viper.SetDefault("oracle.temperature", 0.3)
	viper.SetDefault("oracle.max_tokens", 400)
	viper.SetDefault("oracle.timeout", "60s")

	viper.SetDefault("notifier.telegram.token", "")
	viper.SetDefault("notifier.telegram.chat_id", "")

	viper.SetDefault("jobs.horizon_days", 3)
	viper.SetDefault("jobs.task_limit", 8)
	viper.SetDefault("jobs.due_cooldown", "4h")
	viper.SetDefault("jobs.focus_cooldown", "2h")
	viper.SetDefault("jobs.morning_digest.cron", "0 7 * * *")
	viper.SetDefault("jobs.morning_digest.enabled", true)
	viper.SetDefault("jobs.urgency_check.cron", "0 8-22/2 * * *")
	viper.SetDefault("jobs.urgency_check.enabled", true)
	viper.SetDefault("jobs.focus_nudge.cron", "30 9-18/2 * * *")
	viper.SetDefault("jobs.focus_nudge.enabled", true)
	viper.SetDefault("jobs.weekly_review.cron", "0 17 * * 0")
	viper.SetDefault("jobs.weekly_review.enabled", true)

	viper.SetDefault("telemetry.enabled", true)
}

// overrideFromEnv overrides configuration with the conventional
// environment variables for sensitive data.
func overrideFromEnv() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		viper.Set("oracle.api_key", apiKey)
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		viper.Set("notifier.telegram.token", token)
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		viper.Set("notifier.telegram.chat_id", chatID)
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		viper.Set("store.redis.addr", addr)
	}
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if _, err := config.General.Location(); err != nil {
		return fmt.Errorf("general.timezone: %w", err)
	}
	switch config.Store.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("store.driver must be memory or redis, got %q", config.Store.Driver)
	}
	if config.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address must not be empty")
	}
	if config.Jobs.HorizonDays <= 0 {
		return fmt.Errorf("jobs.horizon_days must be positive")
	}
	if config.Jobs.TaskLimit <= 0 {
		return fmt.Errorf("jobs.task_limit must be positive")
	}
	if config.Jobs.DueCoolDown < 0 || config.Jobs.FocusCoolDown < 0 {
		return fmt.Errorf("cool-downs must not be negative")
	}
	if config.Oracle.MaxTokens <= 0 {
		return fmt.Errorf("oracle.max_tokens must be positive")
	}
	return nil
}
