package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hostalia/concierge/internal/approvals"
	"github.com/hostalia/concierge/internal/buffer"
	"github.com/hostalia/concierge/internal/bus"
	"github.com/hostalia/concierge/internal/config"
	"github.com/hostalia/concierge/internal/pipeline"
)

// consumeInbound is the single reader of the inbound bus. Guest messages go
// through the per-conversation buffer so bursts coalesce into one assistant
// call; manager messages bypass the buffer and hit the approvals state
// machine immediately.
func consumeInbound(ctx context.Context, cfg *config.Config, msgBus *bus.MessageBus, buf *buffer.Manager, processor *pipeline.Processor, resolver *approvals.Resolver) {
	slog.Info("inbound consumer started")

	dedupe := bus.NewDedupeCache(cfg.Dedupe.InboundCapacity)
	managerChat := cfg.Channels.Telegram.ManagerChatID

	for {
		msg, ok := msgBus.ConsumeInbound(ctx)
		if !ok {
			slog.Info("inbound consumer stopped")
			return
		}
		if msg.Content == "" {
			continue
		}

		// Providers redeliver on webhook retries and reconnects; the
		// provider message ID is the dedup key when present.
		if msg.MessageID != "" {
			key := fmt.Sprintf("%s|%s|%s|%s", msg.Channel, msg.SenderID, msg.ChatID, msg.MessageID)
			if dedupe.CheckAndRecord(key) {
				slog.Debug("inbound: duplicate dropped", "key", key)
				continue
			}
		}

		if msg.Channel == managerChannel && managerChat != "" && msg.ChatID == managerChat {
			// Manager replies resolve pending drafts synchronously with
			// respect to ordering but must not stall the consumer while the
			// assistant composes.
			go func(text string) {
				if err := processor.HandleManager(ctx, resolver, text); err != nil {
					slog.Error("manager message failed", "error", err)
				}
			}(msg.Content)
			continue
		}

		slog.Debug("inbound: buffering",
			"channel", msg.Channel,
			"chat_id", msg.ChatID,
			"len", len(msg.Content),
		)
		buf.Add(bus.ConversationKey(msg.Channel, msg.ChatID), msg.Content)
	}
}
