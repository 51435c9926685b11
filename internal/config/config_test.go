package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Buffer.IdleSeconds != 6.0 {
		t.Errorf("buffer idle = %v, want 6.0", cfg.Buffer.IdleSeconds)
	}
	if cfg.Dedupe.InboundCapacity != 5000 || cfg.Dedupe.SendCapacity != 2000 {
		t.Errorf("dedupe capacities = %d/%d", cfg.Dedupe.InboundCapacity, cfg.Dedupe.SendCapacity)
	}
	if cfg.Escalation.ConsentTTL() != 15*time.Minute {
		t.Errorf("consent ttl = %v", cfg.Escalation.ConsentTTL())
	}
	if cfg.Database.Mode != "standalone" {
		t.Errorf("database mode = %q", cfg.Database.Mode)
	}
}

func TestLoadJSON5(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
  // manager bot
  gateway: { port: 9999 },
  buffer: { idle_seconds: 2.5 },
  channels: {
    telegram: { enabled: true, manager_chat_id: "777" },
  },
}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 9999 {
		t.Errorf("port = %d", cfg.Gateway.Port)
	}
	if cfg.Buffer.IdleDuration() != 2500*time.Millisecond {
		t.Errorf("idle = %v", cfg.Buffer.IdleDuration())
	}
	if cfg.Channels.Telegram.ManagerChatID != "777" {
		t.Errorf("manager chat = %q", cfg.Channels.Telegram.ManagerChatID)
	}
	// Untouched fields keep their defaults.
	if cfg.Dedupe.SendWindow() != 8*time.Second {
		t.Errorf("send window = %v", cfg.Dedupe.SendWindow())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Port != 18890 {
		t.Errorf("port = %d, want default", cfg.Gateway.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONCIERGE_TELEGRAM_TOKEN", "tok-123")
	t.Setenv("CONCIERGE_POSTGRES_DSN", "postgres://h/db")
	t.Setenv("CONCIERGE_MODE", "managed")
	t.Setenv("CONCIERGE_PORT", "7001")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Channels.Telegram.Token != "tok-123" {
		t.Errorf("token = %q", cfg.Channels.Telegram.Token)
	}
	if !cfg.Channels.Telegram.Enabled {
		t.Error("telegram not auto-enabled by env token")
	}
	if !cfg.IsManagedMode() {
		t.Error("managed mode not detected")
	}
	if cfg.Gateway.Port != 7001 {
		t.Errorf("port = %d", cfg.Gateway.Port)
	}
}

func TestSaveOmitsSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	cfg := Default()
	cfg.Channels.Telegram.Token = "secret-token"
	cfg.Database.PostgresDSN = "postgres://secret"

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, secret := range []string{"secret-token", "postgres://secret"} {
		if strings.Contains(string(data), secret) {
			t.Errorf("saved config contains secret %q", secret)
		}
	}
}
