package bus

import "context"

// InboundMessage represents a guest or manager message received from a
// channel (WhatsApp, Telegram).
type InboundMessage struct {
	Channel   string            `json:"channel"`
	SenderID  string            `json:"sender_id"`
	ChatID    string            `json:"chat_id"`
	Content   string            `json:"content"`
	MessageID string            `json:"message_id,omitempty"` // provider message ID, used for inbound dedup
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a message to be sent to a channel.
type OutboundMessage struct {
	Channel  string            `json:"channel"`
	ChatID   string            `json:"chat_id"`
	Content  string            `json:"content"`
	Kind     string            `json:"kind,omitempty"` // optional send-dedup discriminator ("reply", "prompt", "broadcast")
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ConversationKey builds the canonical per-conversation key used by the
// buffer, memory and flag stores: {channel}:{chat_id}.
func ConversationKey(channel, chatID string) string {
	return channel + ":" + chatID
}

// MessageRouter abstracts inbound/outbound message routing between channels
// and the processing pipeline.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}
