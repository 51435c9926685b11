// Package approvals tracks drafts awaiting manager confirmation. Each draft
// kind lives in its own map keyed by manager chat ID, so a pending KB
// addition and a pending WhatsApp send for the same manager never interfere.
package approvals

import (
	"log/slog"
	"sync"
)

// ReplyDraft is a composed guest reply awaiting "ok" or edits from the
// manager before being forwarded.
type ReplyDraft struct {
	EscalationID string `json:"escalation_id"`
	GuestChatID  string `json:"guest_chat_id"`
	Channel      string `json:"channel"`
	ManagerReply string `json:"manager_reply"`
}

// KBAdditionDraft is a knowledge-base entry awaiting manager confirmation
// before being appended.
type KBAdditionDraft struct {
	EscalationID string `json:"escalation_id,omitempty"`
	Topic        string `json:"topic"`
	Content      string `json:"content"`
	HotelName    string `json:"hotel_name,omitempty"`
	Category     string `json:"category,omitempty"`
	Source       string `json:"source,omitempty"`
}

// KBRemovalDraft is a read-only preview of KB entries matched for deletion.
// The actual delete only happens on explicit confirmation of this preview.
type KBRemovalDraft struct {
	Criteria  string   `json:"criteria"`
	TargetIDs []string `json:"target_ids"`
	Preview   string   `json:"preview"`
}

// WhatsAppSendDraft is a direct guest message awaiting "sí"/"no"/edit from
// the manager.
type WhatsAppSendDraft struct {
	GuestID string `json:"guest_id"`
	Message string `json:"message"`
}

// Tracker holds all pending drafts, one of each kind per manager chat.
// Every mutation snapshots the full state to disk (best effort): pending
// work should survive a gateway restart, unlike buffers and dedup windows.
type Tracker struct {
	mu         sync.Mutex
	replies    map[string]*ReplyDraft
	kbAdds     map[string]*KBAdditionDraft
	kbRemovals map[string]*KBRemovalDraft
	waSends    map[string]*WhatsAppSendDraft

	snapshotPath string
}

// NewTracker creates a draft tracker. If snapshotPath is non-empty, prior
// state is reloaded from it and every mutation rewrites it.
func NewTracker(snapshotPath string) *Tracker {
	t := &Tracker{
		replies:      make(map[string]*ReplyDraft),
		kbAdds:       make(map[string]*KBAdditionDraft),
		kbRemovals:   make(map[string]*KBRemovalDraft),
		waSends:      make(map[string]*WhatsAppSendDraft),
		snapshotPath: snapshotPath,
	}
	if snapshotPath != "" {
		if err := t.load(); err != nil {
			slog.Warn("approvals: could not load snapshot", "path", snapshotPath, "error", err)
		}
	}
	return t
}

// --- Reply drafts ---

func (t *Tracker) SetReplyDraft(managerChat string, d ReplyDraft) {
	t.mu.Lock()
	t.replies[managerChat] = &d
	t.snapshotLocked()
	t.mu.Unlock()
}

func (t *Tracker) ReplyDraft(managerChat string) (ReplyDraft, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.replies[managerChat]
	if !ok {
		return ReplyDraft{}, false
	}
	return *d, true
}

func (t *Tracker) ClearReplyDraft(managerChat string) {
	t.mu.Lock()
	delete(t.replies, managerChat)
	t.snapshotLocked()
	t.mu.Unlock()
}

// --- KB addition drafts ---

func (t *Tracker) SetKBAddition(managerChat string, d KBAdditionDraft) {
	t.mu.Lock()
	t.kbAdds[managerChat] = &d
	t.snapshotLocked()
	t.mu.Unlock()
}

func (t *Tracker) KBAddition(managerChat string) (KBAdditionDraft, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.kbAdds[managerChat]
	if !ok {
		return KBAdditionDraft{}, false
	}
	return *d, true
}

func (t *Tracker) ClearKBAddition(managerChat string) {
	t.mu.Lock()
	delete(t.kbAdds, managerChat)
	t.snapshotLocked()
	t.mu.Unlock()
}

// --- KB removal drafts ---

func (t *Tracker) SetKBRemoval(managerChat string, d KBRemovalDraft) {
	t.mu.Lock()
	t.kbRemovals[managerChat] = &d
	t.snapshotLocked()
	t.mu.Unlock()
}

func (t *Tracker) KBRemoval(managerChat string) (KBRemovalDraft, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.kbRemovals[managerChat]
	if !ok {
		return KBRemovalDraft{}, false
	}
	return *d, true
}

func (t *Tracker) ClearKBRemoval(managerChat string) {
	t.mu.Lock()
	delete(t.kbRemovals, managerChat)
	t.snapshotLocked()
	t.mu.Unlock()
}

// --- WhatsApp send drafts ---

func (t *Tracker) SetWhatsAppSend(managerChat string, d WhatsAppSendDraft) {
	t.mu.Lock()
	t.waSends[managerChat] = &d
	t.snapshotLocked()
	t.mu.Unlock()
}

func (t *Tracker) WhatsAppSend(managerChat string) (WhatsAppSendDraft, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.waSends[managerChat]
	if !ok {
		return WhatsAppSendDraft{}, false
	}
	return *d, true
}

func (t *Tracker) ClearWhatsAppSend(managerChat string) {
	t.mu.Lock()
	delete(t.waSends, managerChat)
	t.snapshotLocked()
	t.mu.Unlock()
}

// HasAnyPending reports whether any draft kind is pending for the chat.
func (t *Tracker) HasAnyPending(managerChat string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.waSends[managerChat]; ok {
		return true
	}
	if _, ok := t.replies[managerChat]; ok {
		return true
	}
	if _, ok := t.kbAdds[managerChat]; ok {
		return true
	}
	_, ok := t.kbRemovals[managerChat]
	return ok
}
