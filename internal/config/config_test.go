package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validJSON = `{
  "desk": {
    "data_dir": "/tmp/fixbot-test"
  },
  "connectors": {
    "telegram": {
      "token": "123456:ABC",
      "engineers_chat_id": -100200300
    }
  },
  "reminders": {
    "threshold_minutes": 60,
    "sweep": "@every 10m",
    "remind_once": true
  },
  "completion": {
    "allow_any_engineer": true,
    "idle_timeout_seconds": 120
  },
  "api": {
    "host": "0.0.0.0",
    "port": 8080,
    "api_key": "ops-key"
  }
}`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(path, []byte(content), 0o644)
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Desk.DataDir != "/tmp/fixbot-test" {
		t.Errorf("data_dir = %q", cfg.Desk.DataDir)
	}
	if cfg.Connectors.Telegram.EngineersChatID != -100200300 {
		t.Errorf("engineers_chat_id = %d", cfg.Connectors.Telegram.EngineersChatID)
	}
	if cfg.Reminders.Threshold() != time.Hour {
		t.Errorf("threshold = %v", cfg.Reminders.Threshold())
	}
	if !cfg.Reminders.RemindOnce {
		t.Error("remind_once not set")
	}
	if !cfg.Completion.AllowAnyEngineer {
		t.Error("allow_any_engineer not set")
	}
	if cfg.Completion.IdleTimeout() != 2*time.Minute {
		t.Errorf("idle timeout = %v", cfg.Completion.IdleTimeout())
	}
}

func TestLoad_Defaults(t *testing.T) {
	minimal := `{
	  "desk": {"data_dir": "/tmp/fixbot-test"},
	  "connectors": {"telegram": {"token": "t", "engineers_chat_id": 1}}
	}`
	cfg, err := Load(writeConfig(t, minimal))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Reminders.Threshold() != 30*time.Minute {
		t.Errorf("threshold = %v", cfg.Reminders.Threshold())
	}
	if cfg.Reminders.Sweep != "@every 5m" {
		t.Errorf("sweep = %q", cfg.Reminders.Sweep)
	}
	if cfg.Reminders.RemindOnce {
		t.Error("remind_once should default to repeat")
	}
	if cfg.Catalog.Refresh != "@every 5m" {
		t.Errorf("refresh = %q", cfg.Catalog.Refresh)
	}
	if cfg.Completion.AllowAnyEngineer {
		t.Error("ownership check should default to strict")
	}
	if cfg.Completion.IdleTimeout() != 5*time.Minute {
		t.Errorf("idle timeout = %v", cfg.Completion.IdleTimeout())
	}
}

func TestLoad_MissingTelegram(t *testing.T) {
	_, err := Load(writeConfig(t, `{"desk": {"data_dir": "/tmp/x"}}`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "connectors.telegram is required") {
		t.Errorf("err = %v", err)
	}
}

func TestLoad_SlackNeedsChannel(t *testing.T) {
	bad := `{
	  "desk": {"data_dir": "/tmp/x"},
	  "connectors": {
	    "telegram": {"token": "t", "engineers_chat_id": 1},
	    "slack": {"bot_token": "xoxb-1"}
	  }
	}`
	_, err := Load(writeConfig(t, bad))
	if err == nil || !strings.Contains(err.Error(), "engineers_channel") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FIXBOT_DATA_DIR", "/tmp/fixbot-env")
	t.Setenv("FIXBOT_TELEGRAM_TOKEN", "env-token")
	t.Setenv("FIXBOT_ENGINEERS_CHAT_ID", "-42")
	t.Setenv("FIXBOT_REMINDER_THRESHOLD_MINUTES", "45")
	t.Setenv("FIXBOT_REMIND_ONCE", "true")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Connectors.Telegram.Token != "env-token" {
		t.Errorf("token = %q", cfg.Connectors.Telegram.Token)
	}
	if cfg.Connectors.Telegram.EngineersChatID != -42 {
		t.Errorf("chat id = %d", cfg.Connectors.Telegram.EngineersChatID)
	}
	if cfg.Reminders.Threshold() != 45*time.Minute {
		t.Errorf("threshold = %v", cfg.Reminders.Threshold())
	}
	if !cfg.Reminders.RemindOnce {
		t.Error("remind_once not picked up")
	}
}
