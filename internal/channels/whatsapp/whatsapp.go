// Package whatsapp is the guest-side channel. A WhatsApp bridge process
// owns the actual WhatsApp session; this channel exchanges JSON messages
// with it over a WebSocket and reconnects with backoff when it drops.
package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hostalia/concierge/internal/bus"
	"github.com/hostalia/concierge/internal/channels"
	"github.com/hostalia/concierge/internal/config"
)

// Channel connects to a WhatsApp bridge via WebSocket.
type Channel struct {
	*channels.BaseChannel
	config config.WhatsAppConfig

	mu     sync.Mutex
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a WhatsApp channel from config.
func New(cfg config.WhatsAppConfig, msgBus *bus.MessageBus) (*Channel, error) {
	if cfg.BridgeURL == "" {
		return nil, fmt.Errorf("whatsapp bridge_url is required")
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("whatsapp", msgBus, nil),
		config:      cfg,
	}, nil
}

// Start connects to the bridge and begins listening.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting whatsapp channel", "bridge_url", c.config.BridgeURL)

	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.connect(); err != nil {
		// Don't fail hard, the reconnect loop keeps trying.
		slog.Warn("initial whatsapp bridge connection failed, will retry", "error", err)
	}

	go c.listenLoop()

	c.SetRunning(true)
	return nil
}

// Stop shuts down the channel.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping whatsapp channel")

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.SetRunning(false)
	return nil
}

// Send delivers an outbound message to the bridge.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("whatsapp bridge not connected")
	}

	data, err := json.Marshal(map[string]any{
		"type":    "message",
		"to":      msg.ChatID,
		"content": msg.Content,
	})
	if err != nil {
		return fmt.Errorf("marshal whatsapp message: %w", err)
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	return nil
}

func (c *Channel) connect() error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	var header http.Header
	if c.config.Token != "" {
		header = http.Header{"Authorization": {"Bearer " + c.config.Token}}
	}

	conn, _, err := dialer.Dial(c.config.BridgeURL, header)
	if err != nil {
		return fmt.Errorf("dial whatsapp bridge %s: %w", c.config.BridgeURL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	slog.Info("whatsapp bridge connected", "url", c.config.BridgeURL)
	return nil
}

// listenLoop reads bridge messages with automatic reconnection.
func (c *Channel) listenLoop() {
	backoff := time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			slog.Info("attempting whatsapp bridge reconnect", "backoff", backoff)
			select {
			case <-c.ctx.Done():
				return
			case <-time.After(backoff):
			}

			if err := c.connect(); err != nil {
				slog.Warn("whatsapp bridge reconnect failed", "error", err)
				backoff = min(backoff*2, 30*time.Second)
				continue
			}
			backoff = time.Second
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			slog.Warn("whatsapp read error, will reconnect", "error", err)
			c.mu.Lock()
			if c.conn != nil {
				_ = c.conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			continue
		}

		var msg bridgeMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Warn("invalid whatsapp message JSON", "error", err)
			continue
		}
		if msg.Type == "message" {
			c.handleIncomingMessage(msg)
		}
	}
}

// bridgeMessage is the JSON envelope the bridge sends for guest messages.
type bridgeMessage struct {
	Type     string `json:"type"`
	From     string `json:"from"`
	Chat     string `json:"chat"`
	Content  string `json:"content"`
	ID       string `json:"id"`
	FromName string `json:"from_name"`
}

func (c *Channel) handleIncomingMessage(msg bridgeMessage) {
	if msg.From == "" {
		return
	}

	chatID := msg.Chat
	if chatID == "" {
		chatID = msg.From
	}

	if msg.Content == "" {
		return
	}

	metadata := map[string]string{}
	if msg.FromName != "" {
		metadata["user_name"] = msg.FromName
	}

	slog.Debug("whatsapp message received",
		"sender_id", msg.From,
		"chat_id", chatID,
		"preview", channels.Truncate(msg.Content, 50),
	)

	c.HandleMessage(msg.From, chatID, msg.Content, msg.ID, metadata)
}
