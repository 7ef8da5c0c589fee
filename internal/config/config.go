package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the top-level fixbot configuration.
type Config struct {
	Desk       DeskConfig       `json:"desk"`
	Connectors ConnectorConfig  `json:"connectors"`
	Reminders  ReminderConfig   `json:"reminders"`
	Catalog    CatalogConfig    `json:"catalog"`
	Completion CompletionConfig `json:"completion"`
	API        APIConfig        `json:"api"`
}

// DeskConfig holds desk-level settings.
type DeskConfig struct {
	DataDir string `json:"data_dir"`
}

// ConnectorConfig holds settings for chat platform connectors.
type ConnectorConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Slack    *SlackConfig    `json:"slack,omitempty"`
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token           string `json:"token"`
	EngineersChatID int64  `json:"engineers_chat_id"`
}

// SlackConfig holds settings for mirroring engineer-channel broadcasts to
// Slack instead of the Telegram engineers chat.
type SlackConfig struct {
	BotToken         string `json:"bot_token"`
	EngineersChannel string `json:"engineers_channel"`
}

// ReminderConfig tunes the stale-ticket reminder sweep.
type ReminderConfig struct {
	ThresholdMinutes int    `json:"threshold_minutes,omitempty"` // default 30
	Sweep            string `json:"sweep,omitempty"`             // cron schedule, default @every 5m
	RemindOnce       bool   `json:"remind_once,omitempty"`       // default: repeat every threshold
}

// Threshold returns the reminder threshold as a duration.
func (r ReminderConfig) Threshold() time.Duration {
	return time.Duration(r.ThresholdMinutes) * time.Minute
}

// CatalogConfig tunes the roster/catalog refresh.
type CatalogConfig struct {
	Refresh string `json:"refresh,omitempty"` // cron schedule, default @every 5m
}

// CompletionConfig tunes the completion workflow.
type CompletionConfig struct {
	// AllowAnyEngineer lets any roster engineer complete a colleague's
	// claimed ticket (team coverage mode). Default: only the claimer may.
	AllowAnyEngineer bool `json:"allow_any_engineer,omitempty"`
	// IdleTimeoutSeconds bounds how long the free-text resolution prompt
	// stays open before it is abandoned. Default 300.
	IdleTimeoutSeconds int `json:"idle_timeout_seconds,omitempty"`
}

// IdleTimeout returns the completion prompt timeout as a duration.
func (c CompletionConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSeconds) * time.Second
}

// APIConfig holds ops API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with FIXBOT_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Desk: DeskConfig{
			DataDir: getenv("FIXBOT_DATA_DIR", "/data"),
		},
		Reminders: ReminderConfig{
			ThresholdMinutes: getenvInt("FIXBOT_REMINDER_THRESHOLD_MINUTES", 30),
			Sweep:            getenv("FIXBOT_REMINDER_SWEEP", "@every 5m"),
			RemindOnce:       getenvBool("FIXBOT_REMIND_ONCE"),
		},
		Catalog: CatalogConfig{
			Refresh: getenv("FIXBOT_CATALOG_REFRESH", "@every 5m"),
		},
		Completion: CompletionConfig{
			AllowAnyEngineer:   getenvBool("FIXBOT_ALLOW_ANY_ENGINEER"),
			IdleTimeoutSeconds: getenvInt("FIXBOT_COMPLETION_IDLE_TIMEOUT_SECONDS", 300),
		},
		API: APIConfig{
			Host: getenv("FIXBOT_API_HOST", "0.0.0.0"),
			Port: getenvInt("FIXBOT_API_PORT", 8080),
			Key:  os.Getenv("FIXBOT_API_KEY"),
		},
	}

	if token := os.Getenv("FIXBOT_TELEGRAM_TOKEN"); token != "" {
		chatID, err := strconv.ParseInt(getenv("FIXBOT_ENGINEERS_CHAT_ID", "0"), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: FIXBOT_ENGINEERS_CHAT_ID: %w", err)
		}
		cfg.Connectors.Telegram = &TelegramConfig{
			Token:           token,
			EngineersChatID: chatID,
		}
	}

	if token := os.Getenv("FIXBOT_SLACK_BOT_TOKEN"); token != "" {
		cfg.Connectors.Slack = &SlackConfig{
			BotToken:         token,
			EngineersChannel: os.Getenv("FIXBOT_SLACK_ENGINEERS_CHANNEL"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Reminders.ThresholdMinutes == 0 {
		c.Reminders.ThresholdMinutes = 30
	}
	if c.Reminders.Sweep == "" {
		c.Reminders.Sweep = "@every 5m"
	}
	if c.Catalog.Refresh == "" {
		c.Catalog.Refresh = "@every 5m"
	}
	if c.Completion.IdleTimeoutSeconds == 0 {
		c.Completion.IdleTimeoutSeconds = 300
	}
	if c.API.Host == "" {
		c.API.Host = "0.0.0.0"
	}
}

// Validate checks for required fields.
func (c *Config) Validate() error {
	var errs []string

	if c.Desk.DataDir == "" {
		errs = append(errs, "desk.data_dir is required")
	}
	if c.Connectors.Telegram == nil {
		errs = append(errs, "connectors.telegram is required")
	} else {
		if c.Connectors.Telegram.Token == "" {
			errs = append(errs, "connectors.telegram.token is required")
		}
		if c.Connectors.Telegram.EngineersChatID == 0 {
			errs = append(errs, "connectors.telegram.engineers_chat_id is required")
		}
	}
	if c.Connectors.Slack != nil {
		if c.Connectors.Slack.BotToken == "" {
			errs = append(errs, "connectors.slack.bot_token is required")
		}
		if c.Connectors.Slack.EngineersChannel == "" {
			errs = append(errs, "connectors.slack.engineers_channel is required")
		}
	}
	if c.Reminders.ThresholdMinutes < 0 {
		errs = append(errs, "reminders.threshold_minutes must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
