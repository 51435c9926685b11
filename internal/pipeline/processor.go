package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hostalia/concierge/internal/approvals"
	"github.com/hostalia/concierge/internal/bus"
	"github.com/hostalia/concierge/internal/escalation"
	"github.com/hostalia/concierge/internal/kb"
	"github.com/hostalia/concierge/internal/memory"
)

const historyWindow = 30

// Fence reports whether a buffered flush is still the newest state for its
// conversation. Stale results are dropped, never delivered.
type Fence interface {
	IsCurrent(conversationID string, version uint64) bool
}

// Processor handles flushed guest messages and direct manager messages. It
// sits between the message buffer and the opaque Agent, and owns the
// consent and draft side effects the Agent requests through markers.
type Processor struct {
	agent   Agent
	consent *escalation.ConsentManager
	tracker *approvals.Tracker
	memory  *memory.Manager
	kb      *kb.Service
	sender  approvals.Sender
	fence   Fence
	tracer  trace.Tracer

	guestChannel   string
	managerChannel string
	managerChatID  string
}

// Options carries the processor's collaborators. Agent, sender, consent,
// tracker, and memory are required; kb, fence, and tracer are optional.
type Options struct {
	Agent   Agent
	Consent *escalation.ConsentManager
	Tracker *approvals.Tracker
	Memory  *memory.Manager
	KB      *kb.Service
	Sender  approvals.Sender
	Fence   Fence
	Tracer  trace.Tracer

	GuestChannel   string
	ManagerChannel string
	ManagerChatID  string
}

func NewProcessor(opts Options) *Processor {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("pipeline")
	}
	return &Processor{
		agent:          opts.Agent,
		consent:        opts.Consent,
		tracker:        opts.Tracker,
		memory:         opts.Memory,
		kb:             opts.KB,
		sender:         opts.Sender,
		fence:          opts.Fence,
		tracer:         tracer,
		guestChannel:   opts.GuestChannel,
		managerChannel: opts.ManagerChannel,
		managerChatID:  opts.ManagerChatID,
	}
}

// Process is the buffer's flush callback: one combined guest message per
// idle conversation. Errors are returned for logging only; the buffer
// never re-queues a failed flush.
func (p *Processor) Process(ctx context.Context, conversationID, combined string, version uint64) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("message.len", len(combined)),
		))
	defer span.End()

	channel, chatID, ok := strings.Cut(conversationID, ":")
	if !ok {
		return fmt.Errorf("pipeline: malformed conversation id %q", conversationID)
	}

	p.memory.Save(ctx, conversationID, "guest", combined)

	// A pending consent question intercepts the guest's next message.
	if req := p.consent.GetPending(chatID); req != nil {
		switch escalation.ClassifyReply(combined) {
		case escalation.VerdictYes:
			p.consent.Clear(chatID)
			return p.escalateToManager(ctx, channel, chatID, req)
		case escalation.VerdictNo:
			p.consent.Clear(chatID)
			p.reply(ctx, channel, chatID, conversationID,
				"De acuerdo, seguimos por aquí. ¿En qué más puedo ayudarte?")
			return nil
		case escalation.VerdictUnknown:
			// Not an answer to the question. The request stays pending and
			// the message flows to the agent as normal conversation.
		}
	}

	reply, err := p.agent.Run(ctx, Request{
		ConversationID: conversationID,
		Channel:        channel,
		ChatID:         chatID,
		Text:           combined,
		Kind:           KindGuestMessage,
		History:        p.memory.Recent(ctx, conversationID, historyWindow),
	})
	if err != nil {
		return fmt.Errorf("pipeline: agent run for %s: %w", conversationID, err)
	}

	// The agent call is the slow step. If the guest typed more meanwhile,
	// this result answers a superseded message: drop it.
	if p.fence != nil && !p.fence.IsCurrent(conversationID, version) {
		slog.Info("pipeline: dropped stale reply", "conversation", conversationID, "version", version)
		return nil
	}

	p.applyReply(ctx, channel, chatID, conversationID, combined, reply.Text)
	return nil
}

// HandleManager routes a manager message: pending drafts first, otherwise
// the agent, whose reply may itself create new drafts.
func (p *Processor) HandleManager(ctx context.Context, resolver *approvals.Resolver, text string) error {
	ctx, span := p.tracer.Start(ctx, "pipeline.manager")
	defer span.End()

	conversationID := bus.ConversationKey(p.managerChannel, p.managerChatID)
	p.memory.Save(ctx, conversationID, "manager", text)

	handled, err := resolver.HandleManagerReply(ctx, p.managerChatID, text)
	if err != nil {
		return err
	}
	if handled {
		return nil
	}

	reply, err := p.agent.Run(ctx, Request{
		ConversationID: conversationID,
		Channel:        p.managerChannel,
		ChatID:         p.managerChatID,
		Text:           text,
		Kind:           KindManagerMessage,
		History:        p.memory.Recent(ctx, conversationID, historyWindow),
	})
	if err != nil {
		return fmt.Errorf("pipeline: agent run for manager: %w", err)
	}

	p.applyReply(ctx, p.managerChannel, p.managerChatID, conversationID, text, reply.Text)
	return nil
}

// applyReply executes the markers in an agent reply and delivers whatever
// visible text remains. inbound is the message that prompted the reply; it
// is kept on a consent request so the manager later sees what the guest
// actually asked.
func (p *Processor) applyReply(ctx context.Context, channel, chatID, conversationID, inbound, text string) {
	set := extractMarkers(text)

	if set.escalation != nil {
		req := p.consent.Request(chatID, inbound, set.escalation.Type, set.escalation.Reason, "")
		if set.visible == "" {
			set.visible = "¿Quieres que lo consulte con el encargado del hotel?"
		}
		slog.Info("pipeline: consent requested", "chat_id", chatID, "escalation_id", req.ID)
	}

	if set.waDraft != nil {
		p.tracker.SetWhatsAppSend(p.managerChatID, *set.waDraft)
		managerConv := bus.ConversationKey(p.managerChannel, p.managerChatID)
		p.memory.Save(ctx, managerConv, "assistant", approvals.FormatWhatsAppDraftMarker(*set.waDraft))
		p.notifyManager(ctx, fmt.Sprintf(
			"Borrador para %s:\n\n%s\n\nResponde \"sí\" para enviar, \"cancelar\", o escribe el texto corregido.",
			set.waDraft.GuestID, set.waDraft.Message,
		))
	}

	if set.kbAdd != nil {
		p.tracker.SetKBAddition(p.managerChatID, *set.kbAdd)
		p.notifyManager(ctx, fmt.Sprintf(
			"Nueva entrada propuesta para la base de conocimiento:\n\nTema: %s\n%s\n\nResponde \"sí\" para guardarla o \"cancelar\".",
			set.kbAdd.Topic, set.kbAdd.Content,
		))
	}

	visible := sanitizeVisible(set.visible)
	if visible == "" || isSilentReply(visible) {
		return
	}
	p.reply(ctx, channel, chatID, conversationID, visible)
}

// escalateToManager hands a consented conversation to the manager and seeds
// an empty reply draft the manager's instructions will fill.
func (p *Processor) escalateToManager(ctx context.Context, channel, chatID string, req *escalation.ConsentRequest) error {
	p.tracker.SetReplyDraft(p.managerChatID, approvals.ReplyDraft{
		EscalationID: req.ID,
		GuestChatID:  chatID,
		Channel:      channel,
	})
	p.notifyManager(ctx, fmt.Sprintf(
		"Consulta escalada (%s): %s\n\nHuésped %s: %s\n\nEscribe tu respuesta y la prepararé para el huésped.",
		req.Type, req.Reason, chatID, req.GuestMessage,
	))
	p.reply(ctx, channel, chatID, bus.ConversationKey(channel, chatID),
		"Perfecto, se lo consulto al encargado y te escribo en cuanto tenga respuesta.")
	return nil
}

// ComposeReply re-invokes the agent with the manager's adjustment. The
// agent confirms a final reply with a send marker.
func (p *Processor) ComposeReply(ctx context.Context, escalationID, adjustment string) (string, bool, error) {
	reply, err := p.agent.Run(ctx, Request{
		ConversationID: bus.ConversationKey(p.managerChannel, p.managerChatID),
		Channel:        p.managerChannel,
		ChatID:         p.managerChatID,
		Text:           adjustment,
		Kind:           KindReplyAdjustment,
		Metadata:       map[string]string{"escalation_id": escalationID},
	})
	if err != nil {
		return "", false, fmt.Errorf("pipeline: compose adjustment: %w", err)
	}
	text, confirmed := parseSendMarker(reply.Text)
	return sanitizeVisible(text), confirmed, nil
}

// ApplyKBAddition performs the confirmed knowledge-base write. A manager
// reply that is not a plain confirmation is kept as an addendum to the
// entry, so corrections like "añade que el spa cierra los lunes" land in
// the stored content instead of getting lost.
func (p *Processor) ApplyKBAddition(ctx context.Context, draft approvals.KBAdditionDraft, managerReply string) (string, error) {
	if p.kb == nil {
		return "La base de conocimiento no está disponible.", nil
	}
	if !approvals.IsConfirm(managerReply) {
		addendum := approvals.FlattenDraftText(managerReply)
		if addendum != "" {
			draft.Content = draft.Content + "\n" + addendum
		}
	}
	return p.kb.Add(ctx, draft)
}

func (p *Processor) reply(ctx context.Context, channel, chatID, conversationID, text string) {
	p.memory.Save(ctx, conversationID, "assistant", text)
	if err := p.sender.Send(ctx, channel, chatID, text); err != nil {
		slog.Warn("pipeline: send failed", "channel", channel, "chat_id", chatID, "error", err)
	}
}

func (p *Processor) notifyManager(ctx context.Context, text string) {
	if err := p.sender.Send(ctx, p.managerChannel, p.managerChatID, text); err != nil {
		slog.Warn("pipeline: manager send failed", "chat_id", p.managerChatID, "error", err)
	}
}
