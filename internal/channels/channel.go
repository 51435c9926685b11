// Package channels connects external messaging platforms to the message
// bus: Telegram for the hotel manager, a WhatsApp bridge for guests.
package channels

import (
	"context"
	"strings"

	"github.com/hostalia/concierge/internal/bus"
)

// Channel is implemented by every platform connection.
type Channel interface {
	// Name returns the channel identifier ("telegram", "whatsapp").
	Name() string

	// Start begins listening for messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the channel.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// IsRunning reports whether the channel is actively processing messages.
	IsRunning() bool
}

// BaseChannel provides the shared plumbing channel implementations embed.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	running   bool
	allowList []string
}

func NewBaseChannel(name string, msgBus *bus.MessageBus, allowList []string) *BaseChannel {
	return &BaseChannel{name: name, bus: msgBus, allowList: allowList}
}

func (c *BaseChannel) Name() string             { return c.name }
func (c *BaseChannel) IsRunning() bool          { return c.running }
func (c *BaseChannel) SetRunning(running bool)  { c.running = running }
func (c *BaseChannel) Bus() *bus.MessageBus     { return c.bus }

// IsAllowed checks the sender against the allowlist. An empty allowlist
// allows everyone.
func (c *BaseChannel) IsAllowed(senderID string) bool {
	if len(c.allowList) == 0 {
		return true
	}
	for _, allowed := range c.allowList {
		if senderID == allowed || senderID == strings.TrimPrefix(allowed, "@") {
			return true
		}
	}
	return false
}

// HandleMessage publishes a received message to the bus, after the
// allowlist check. This is the one inbound path for all channels.
func (c *BaseChannel) HandleMessage(senderID, chatID, content, messageID string, metadata map[string]string) {
	if !c.IsAllowed(senderID) {
		return
	}
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:   c.name,
		SenderID:  senderID,
		ChatID:    chatID,
		Content:   content,
		MessageID: messageID,
		Metadata:  metadata,
	})
}

// Truncate shortens a string to maxLen, appending "..." if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
