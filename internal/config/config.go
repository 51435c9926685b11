// Package config holds the gateway configuration: a JSON5 file overlaid
// with CONCIERGE_* environment variables. Secrets (tokens, DSNs) are never
// written back to disk.
package config

import (
	"sync"
	"time"
)

// Config is the root configuration for the concierge gateway.
type Config struct {
	Gateway    GatewayConfig    `json:"gateway"`
	Channels   ChannelsConfig   `json:"channels"`
	Buffer     BufferConfig     `json:"buffer"`
	Dedupe     DedupeConfig     `json:"dedupe"`
	Escalation EscalationConfig `json:"escalation"`
	Approvals  ApprovalsConfig  `json:"approvals"`
	Agent      AgentConfig      `json:"agent"`
	Database   DatabaseConfig   `json:"database,omitempty"`
	Broadcast  BroadcastConfig  `json:"broadcast,omitempty"`
	PMS        PMSConfig        `json:"pms,omitempty"`
	Telemetry  TelemetryConfig  `json:"telemetry,omitempty"`
	mu         sync.RWMutex
}

// GatewayConfig configures the HTTP surface.
type GatewayConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Verbose bool   `json:"verbose,omitempty"`
}

// ChannelsConfig groups the messaging channels.
type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

// TelegramConfig configures the manager-side Telegram bot.
type TelegramConfig struct {
	Enabled       bool     `json:"enabled"`
	Token         string   `json:"-"` // from env CONCIERGE_TELEGRAM_TOKEN only
	ManagerChatID string   `json:"manager_chat_id"`
	AllowFrom     []string `json:"allow_from,omitempty"`
	Proxy         string   `json:"proxy,omitempty"`
}

// WhatsAppConfig configures the guest-side WhatsApp bridge connection.
type WhatsAppConfig struct {
	Enabled   bool   `json:"enabled"`
	BridgeURL string `json:"bridge_url"`
	Token     string `json:"-"` // from env CONCIERGE_WHATSAPP_TOKEN only
}

// BufferConfig configures inbound message coalescing.
type BufferConfig struct {
	IdleSeconds float64 `json:"idle_seconds"`
}

// IdleDuration returns the buffer idle window as a duration.
func (b BufferConfig) IdleDuration() time.Duration {
	return time.Duration(b.IdleSeconds * float64(time.Second))
}

// DedupeConfig sizes the duplicate-suppression caches.
type DedupeConfig struct {
	InboundCapacity   int     `json:"inbound_capacity"`
	SendCapacity      int     `json:"send_capacity"`
	SendWindowSeconds float64 `json:"send_window_seconds"`
}

// SendWindow returns the outbound dedupe window as a duration.
func (d DedupeConfig) SendWindow() time.Duration {
	return time.Duration(d.SendWindowSeconds * float64(time.Second))
}

// EscalationConfig configures the consent flow.
type EscalationConfig struct {
	ConsentTTLMinutes int `json:"consent_ttl_minutes"`
}

// ConsentTTL returns the consent time-to-live as a duration.
func (e EscalationConfig) ConsentTTL() time.Duration {
	return time.Duration(e.ConsentTTLMinutes) * time.Minute
}

// AgentConfig points at the assistant service that produces replies.
// The gateway treats it as an opaque HTTP collaborator.
type AgentConfig struct {
	BaseURL        string `json:"base_url"`
	Token          string `json:"-"` // from env CONCIERGE_AGENT_TOKEN only
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// Timeout returns the per-request agent timeout.
func (a AgentConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// ApprovalsConfig configures draft persistence.
type ApprovalsConfig struct {
	SnapshotPath string `json:"snapshot_path,omitempty"`
}

// DatabaseConfig selects the storage backend.
// PostgresDSN is never read from the config file, only from env CONCIERGE_POSTGRES_DSN.
type DatabaseConfig struct {
	Mode        string `json:"mode,omitempty"` // "standalone" (default) or "managed"
	SQLitePath  string `json:"sqlite_path,omitempty"`
	PostgresDSN string `json:"-"`
}

// IsManagedMode reports whether the gateway runs against Postgres.
func (c *Config) IsManagedMode() bool {
	return c.Database.Mode == "managed" && c.Database.PostgresDSN != ""
}

// BroadcastConfig lists scheduled guest broadcasts.
type BroadcastConfig struct {
	Schedules []BroadcastSchedule `json:"schedules,omitempty"`
}

// BroadcastSchedule is one cron-driven broadcast to a guest list.
type BroadcastSchedule struct {
	Cron     string   `json:"cron"`
	Message  string   `json:"message"`
	Audience []string `json:"audience"` // guest chat IDs
}

// PMSConfig configures the optional property-management-system connection.
type PMSConfig struct {
	Enabled bool   `json:"enabled"`
	BaseURL string `json:"base_url,omitempty"`
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`
	ServiceName  string `json:"service_name,omitempty"`
	Insecure     bool   `json:"insecure,omitempty"`
}
