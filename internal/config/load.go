package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18890,
		},
		Buffer: BufferConfig{
			IdleSeconds: 6.0,
		},
		Dedupe: DedupeConfig{
			InboundCapacity:   5000,
			SendCapacity:      2000,
			SendWindowSeconds: 8.0,
		},
		Escalation: EscalationConfig{
			ConsentTTLMinutes: 15,
		},
		Approvals: ApprovalsConfig{
			SnapshotPath: "~/.concierge/approvals.json",
		},
		Database: DatabaseConfig{
			Mode:       "standalone",
			SQLitePath: "~/.concierge/concierge.db",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "concierge",
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars. A missing
// file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envStr("CONCIERGE_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("CONCIERGE_TELEGRAM_MANAGER_CHAT", &c.Channels.Telegram.ManagerChatID)
	envStr("CONCIERGE_WHATSAPP_TOKEN", &c.Channels.WhatsApp.Token)
	envStr("CONCIERGE_WHATSAPP_BRIDGE_URL", &c.Channels.WhatsApp.BridgeURL)

	// Auto-enable channels when credentials arrive via env.
	if c.Channels.Telegram.Token != "" {
		c.Channels.Telegram.Enabled = true
	}
	if c.Channels.WhatsApp.BridgeURL != "" {
		c.Channels.WhatsApp.Enabled = true
	}

	envStr("CONCIERGE_HOST", &c.Gateway.Host)
	if v := os.Getenv("CONCIERGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Gateway.Port = port
		}
	}

	envStr("CONCIERGE_AGENT_URL", &c.Agent.BaseURL)
	envStr("CONCIERGE_AGENT_TOKEN", &c.Agent.Token)

	envStr("CONCIERGE_POSTGRES_DSN", &c.Database.PostgresDSN)
	envStr("CONCIERGE_MODE", &c.Database.Mode)
	envStr("CONCIERGE_SQLITE_PATH", &c.Database.SQLitePath)

	envStr("CONCIERGE_OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	if v := os.Getenv("CONCIERGE_OTLP_INSECURE"); v != "" {
		c.Telemetry.Insecure = v == "true" || v == "1"
	}

	envStr("CONCIERGE_PMS_URL", &c.PMS.BaseURL)
	if c.PMS.BaseURL != "" {
		c.PMS.Enabled = true
	}
}

// Save writes the config to disk, secrets excluded by the json:"-" tags.
func Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ExpandHome replaces a leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
