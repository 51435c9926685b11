package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/hostalia/concierge/internal/bus"
)

// Per-chat outbound pacing: messaging platforms throttle bots that burst
// into a single chat.
const (
	perChatRate  = rate.Limit(1) // messages per second per chat
	perChatBurst = 3
	maxLimiters  = 4096
)

// Manager owns the registered channels and the outbound dispatch loop. It
// also implements the Sender side of the approvals and pipeline layers by
// publishing onto the bus.
type Manager struct {
	channels map[string]Channel
	bus      *bus.MessageBus
	deduper  *SendDeduper

	limiters   map[string]*rate.Limiter
	limitersMu sync.Mutex

	dispatchCancel context.CancelFunc
	mu             sync.RWMutex
}

// NewManager creates a channel manager. deduper may be nil to disable
// outbound duplicate suppression.
func NewManager(msgBus *bus.MessageBus, deduper *SendDeduper) *Manager {
	return &Manager{
		channels: make(map[string]Channel),
		bus:      msgBus,
		deduper:  deduper,
		limiters: make(map[string]*rate.Limiter),
	}
}

// RegisterChannel adds a channel to the manager.
func (m *Manager) RegisterChannel(name string, channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[name] = channel
}

// GetChannel returns a channel by name.
func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel, ok := m.channels[name]
	return channel, ok
}

// StartAll starts every registered channel and the outbound dispatcher.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.dispatchCancel = cancel
	go m.dispatchOutbound(dispatchCtx)

	if len(m.channels) == 0 {
		slog.Warn("no channels enabled")
		return nil
	}

	for name, channel := range m.channels {
		slog.Info("starting channel", "channel", name)
		if err := channel.Start(ctx); err != nil {
			slog.Error("failed to start channel", "channel", name, "error", err)
		}
	}
	return nil
}

// StopAll stops the dispatcher and every channel.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dispatchCancel != nil {
		m.dispatchCancel()
		m.dispatchCancel = nil
	}

	for name, channel := range m.channels {
		slog.Info("stopping channel", "channel", name)
		if err := channel.Stop(ctx); err != nil {
			slog.Error("error stopping channel", "channel", name, "error", err)
		}
	}
	return nil
}

// Send queues a message for delivery. Satisfies the Sender interface used
// by the pipeline and approvals layers: they never talk to a platform
// directly.
func (m *Manager) Send(_ context.Context, channel, chatID, text string) error {
	m.mu.RLock()
	_, exists := m.channels[channel]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("channel %s not registered", channel)
	}

	m.bus.PublishOutbound(bus.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: text,
	})
	return nil
}

// dispatchOutbound consumes outbound messages and routes them to their
// channel, applying duplicate suppression and per-chat pacing.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	slog.Info("outbound dispatcher started")

	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			slog.Info("outbound dispatcher stopped")
			return
		}

		m.mu.RLock()
		channel, exists := m.channels[msg.Channel]
		m.mu.RUnlock()
		if !exists {
			slog.Warn("unknown channel for outbound message", "channel", msg.Channel)
			continue
		}

		if m.deduper != nil && !m.deduper.ShouldSend(msg.Channel, msg.ChatID, msg.Kind, msg.Content) {
			slog.Debug("suppressed duplicate outbound",
				"channel", msg.Channel,
				"chat_id", msg.ChatID,
				"preview", Truncate(msg.Content, 40),
			)
			continue
		}

		if err := m.limiter(msg.Channel + ":" + msg.ChatID).Wait(ctx); err != nil {
			return // ctx cancelled
		}

		if err := channel.Send(ctx, msg); err != nil {
			slog.Error("error sending message to channel",
				"channel", msg.Channel,
				"chat_id", msg.ChatID,
				"error", err,
			)
		}
	}
}

// limiter returns the pacing limiter for one chat, creating it on demand.
// The map is capped; on overflow it resets, which at worst briefly loosens
// pacing for active chats.
func (m *Manager) limiter(key string) *rate.Limiter {
	m.limitersMu.Lock()
	defer m.limitersMu.Unlock()

	if len(m.limiters) >= maxLimiters {
		m.limiters = make(map[string]*rate.Limiter)
	}
	l, ok := m.limiters[key]
	if !ok {
		l = rate.NewLimiter(perChatRate, perChatBurst)
		m.limiters[key] = l
	}
	return l
}

// GetStatus reports the running state of all channels.
func (m *Manager) GetStatus() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]any)
	for name, channel := range m.channels {
		status[name] = map[string]any{
			"enabled": true,
			"running": channel.IsRunning(),
		}
	}
	return status
}
