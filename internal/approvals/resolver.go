package approvals

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Sender delivers a message to a channel. Implemented by the channel
// manager; treated as a black-box external action here.
type Sender interface {
	Send(ctx context.Context, channel, chatID, text string) error
}

// Composer is the downstream pipeline consulted for reply-draft adjustments
// and KB-addition attempts.
type Composer interface {
	// ComposeReply re-invokes downstream composition with the manager's
	// adjustment text. confirmed reports whether downstream explicitly
	// confirmed the reply as final.
	ComposeReply(ctx context.Context, escalationID, adjustment string) (text string, confirmed bool, err error)

	// ApplyKBAddition attempts the knowledge-base write and returns the
	// downstream result text shown to the manager. Success is detected from
	// that result, not from the manager's raw input.
	ApplyKBAddition(ctx context.Context, draft KBAdditionDraft, managerReply string) (result string, err error)
}

// KBRemover deletes knowledge-base entries by ID.
type KBRemover interface {
	Remove(ctx context.Context, ids []string) (int, error)
}

// HistoryReader exposes the last persisted draft marker for a manager chat,
// used to reconstruct a WhatsApp draft lost to a restart.
type HistoryReader interface {
	LastDraftMarker(conversationID string) string
}

// Resolver drives draft state transitions from the manager's free-text
// replies. When several draft kinds are pending for the same chat, they
// resolve in a fixed priority order: WhatsApp send, then reply, then KB
// addition, then KB removal.
type Resolver struct {
	tracker  *Tracker
	sender   Sender
	composer Composer
	kb       KBRemover
	history  HistoryReader

	guestChannel   string // channel used for direct guest sends ("whatsapp")
	managerChannel string // channel the manager chats on ("telegram")
}

// NewResolver wires the resolver's collaborators. history may be nil
// (disables marker recovery); kb may be nil (removal confirms report an
// error to the manager instead of deleting).
func NewResolver(tracker *Tracker, sender Sender, composer Composer, kb KBRemover, history HistoryReader, guestChannel, managerChannel string) *Resolver {
	return &Resolver{
		tracker:        tracker,
		sender:         sender,
		composer:       composer,
		kb:             kb,
		history:        history,
		guestChannel:   guestChannel,
		managerChannel: managerChannel,
	}
}

// HandleManagerReply classifies the manager's reply against the pending
// drafts for their chat. Returns false when no draft consumed the reply, in
// which case the caller routes the text onward as a normal message. An
// unclassifiable reply for a pending draft is never an error: it becomes an
// edit instruction (reply/WhatsApp drafts) or is passed through (removal).
func (r *Resolver) HandleManagerReply(ctx context.Context, managerChat, text string) (bool, error) {
	if d, ok := r.tracker.WhatsAppSend(managerChat); ok {
		return true, r.resolveWhatsAppSend(ctx, managerChat, d, text)
	}
	if d, ok := r.tracker.ReplyDraft(managerChat); ok {
		return true, r.resolveReplyDraft(ctx, managerChat, d, text)
	}
	if d, ok := r.tracker.KBAddition(managerChat); ok {
		return true, r.resolveKBAddition(ctx, managerChat, d, text)
	}
	if d, ok := r.tracker.KBRemoval(managerChat); ok {
		handled, err := r.resolveKBRemoval(ctx, managerChat, d, text)
		if handled || err != nil {
			return handled, err
		}
	}

	// Degraded mode: the in-memory draft map is the source of truth, but a
	// restart can lose it. If the manager confirms and the last persisted
	// history entry carries a draft marker, honor the confirmation anyway.
	if r.history != nil && IsConfirm(text) && !IsCancel(text) {
		if marker := r.history.LastDraftMarker(r.managerChannel + ":" + managerChat); marker != "" {
			if d, ok := ParseWhatsAppDraftMarker(marker); ok {
				slog.Info("approvals: recovered draft from history marker", "manager_chat", managerChat, "guest", d.GuestID)
				if err := r.sender.Send(ctx, r.guestChannel, d.GuestID, d.Message); err != nil {
					return true, fmt.Errorf("send recovered draft: %w", err)
				}
				r.notifyManager(ctx, managerChat, fmt.Sprintf("Mensaje enviado a %s.", d.GuestID))
				return true, nil
			}
		}
	}

	return false, nil
}

// resolveWhatsAppSend handles the three-way confirm/cancel/edit transition.
func (r *Resolver) resolveWhatsAppSend(ctx context.Context, managerChat string, d WhatsAppSendDraft, text string) error {
	switch {
	case IsCancel(text):
		r.tracker.ClearWhatsAppSend(managerChat)
		r.notifyManager(ctx, managerChat, "Envío cancelado.")
		return nil

	case IsConfirm(text):
		if err := r.sender.Send(ctx, r.guestChannel, d.GuestID, d.Message); err != nil {
			// Draft stays pending so the manager can retry.
			r.notifyManager(ctx, managerChat, "No se pudo enviar el mensaje, inténtalo de nuevo.")
			return fmt.Errorf("send whatsapp draft: %w", err)
		}
		r.tracker.ClearWhatsAppSend(managerChat)
		r.notifyManager(ctx, managerChat, fmt.Sprintf("Mensaje enviado a %s.", d.GuestID))
		return nil

	default:
		// Full replacement of the draft text; draft remains pending.
		d.Message = FlattenDraftText(text)
		r.tracker.SetWhatsAppSend(managerChat, d)
		r.notifyManager(ctx, managerChat, fmt.Sprintf(
			"Borrador actualizado para %s:\n\n%s\n\nResponde \"sí\" para enviar o \"cancelar\".",
			d.GuestID, d.Message,
		))
		return nil
	}
}

// resolveReplyDraft forwards on confirmation, otherwise treats the reply as
// an adjustment and re-invokes downstream composition.
func (r *Resolver) resolveReplyDraft(ctx context.Context, managerChat string, d ReplyDraft, text string) error {
	if IsConfirm(text) && !IsCancel(text) && d.ManagerReply != "" {
		if err := r.sender.Send(ctx, d.Channel, d.GuestChatID, d.ManagerReply); err != nil {
			r.notifyManager(ctx, managerChat, "No se pudo enviar la respuesta al huésped.")
			return fmt.Errorf("send reply draft: %w", err)
		}
		r.tracker.ClearReplyDraft(managerChat)
		r.notifyManager(ctx, managerChat, "Respuesta enviada al huésped.")
		return nil
	}

	composed, confirmed, err := r.composer.ComposeReply(ctx, d.EscalationID, text)
	if err != nil {
		r.notifyManager(ctx, managerChat, "No se pudo ajustar el borrador, inténtalo de nuevo.")
		return fmt.Errorf("compose reply adjustment: %w", err)
	}

	if confirmed {
		if err := r.sender.Send(ctx, d.Channel, d.GuestChatID, composed); err != nil {
			return fmt.Errorf("send composed reply: %w", err)
		}
		r.tracker.ClearReplyDraft(managerChat)
		r.notifyManager(ctx, managerChat, "Respuesta enviada al huésped.")
		return nil
	}

	d.ManagerReply = composed
	r.tracker.SetReplyDraft(managerChat, d)
	r.notifyManager(ctx, managerChat, fmt.Sprintf(
		"Borrador ajustado:\n\n%s\n\nResponde \"ok\" para enviar o sigue editando.", composed,
	))
	return nil
}

// resolveKBAddition sends the manager's reply downstream and resolves the
// draft by the outcome of the attempted KB write, not by keyword-matching
// the manager's input. The downstream result goes to the manager either way;
// the draft clears only when that result signals success. Explicit cancel is
// the one keyword shortcut, so a discarded draft cannot linger.
func (r *Resolver) resolveKBAddition(ctx context.Context, managerChat string, d KBAdditionDraft, text string) error {
	if IsCancel(text) && !IsConfirm(text) {
		r.tracker.ClearKBAddition(managerChat)
		r.notifyManager(ctx, managerChat, "Entrada descartada.")
		return nil
	}

	result, err := r.composer.ApplyKBAddition(ctx, d, text)
	if err != nil {
		r.notifyManager(ctx, managerChat, "No se pudo procesar la entrada de la base de conocimiento.")
		return fmt.Errorf("apply kb addition: %w", err)
	}

	r.notifyManager(ctx, managerChat, result)

	if KBAdditionSucceeded(result) {
		r.tracker.ClearKBAddition(managerChat)
	}
	return nil
}

// KBAdditionSucceeded detects the success indicator in a downstream KB-write
// result ("agregada"/"agregado").
func KBAdditionSucceeded(result string) bool {
	return strings.Contains(strings.ToLower(result), "agregad")
}

// resolveKBRemoval deletes only on explicit confirmation of the preview.
// Unclassifiable text leaves the draft pending and reports handled=false so
// the caller routes it onward.
func (r *Resolver) resolveKBRemoval(ctx context.Context, managerChat string, d KBRemovalDraft, text string) (bool, error) {
	switch {
	case IsCancel(text):
		r.tracker.ClearKBRemoval(managerChat)
		r.notifyManager(ctx, managerChat, "Eliminación cancelada.")
		return true, nil

	case IsConfirm(text):
		if len(d.TargetIDs) == 0 {
			r.tracker.ClearKBRemoval(managerChat)
			r.notifyManager(ctx, managerChat, fmt.Sprintf("No hay entradas que coincidan con %q.", d.Criteria))
			return true, nil
		}
		if r.kb == nil {
			r.notifyManager(ctx, managerChat, "La base de conocimiento no está disponible.")
			return true, nil
		}
		n, err := r.kb.Remove(ctx, d.TargetIDs)
		if err != nil {
			r.notifyManager(ctx, managerChat, "No se pudieron eliminar las entradas, inténtalo de nuevo.")
			return true, fmt.Errorf("remove kb entries: %w", err)
		}
		r.tracker.ClearKBRemoval(managerChat)
		r.notifyManager(ctx, managerChat, fmt.Sprintf("Eliminadas %d entradas de la base de conocimiento.", n))
		return true, nil
	}

	return false, nil
}

// notifyManager sends a status message back to the manager chat. Failures
// are logged only: the state transition has already happened.
func (r *Resolver) notifyManager(ctx context.Context, managerChat, text string) {
	if err := r.sender.Send(ctx, r.managerChannel, managerChat, text); err != nil {
		slog.Warn("approvals: manager notification failed", "manager_chat", managerChat, "error", err)
	}
}
