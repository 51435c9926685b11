package bus

import "context"

// MessageBus routes messages between channels and the processing pipeline
// using buffered Go channels. Webhook handlers publish and return
// immediately; consumers drain at their own pace.
type MessageBus struct {
	inbound  chan InboundMessage
	outbound chan OutboundMessage
}

// NewMessageBus creates a message bus with buffered queues.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundMessage, 256),
		outbound: make(chan OutboundMessage, 256),
	}
}

// PublishInbound queues a message from a channel for processing.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	b.inbound <- msg
}

// ConsumeInbound blocks until an inbound message is available or ctx is
// cancelled. Returns ok=false on cancellation.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case <-ctx.Done():
		return InboundMessage{}, false
	case msg := <-b.inbound:
		return msg, true
	}
}

// PublishOutbound queues a response for delivery to a channel.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) {
	b.outbound <- msg
}

// SubscribeOutbound blocks until an outbound message is available or ctx is
// cancelled. Returns ok=false on cancellation.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	select {
	case <-ctx.Done():
		return OutboundMessage{}, false
	case msg := <-b.outbound:
		return msg, true
	}
}

// InboundSize returns the number of pending inbound messages.
func (b *MessageBus) InboundSize() int { return len(b.inbound) }

// OutboundSize returns the number of pending outbound messages.
func (b *MessageBus) OutboundSize() int { return len(b.outbound) }
