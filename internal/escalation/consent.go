// Package escalation tracks guest consent for handing a conversation to a
// human manager. A consent request is asked once, waits for the guest's
// next message, and silently expires if the guest never answers.
package escalation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultConsentTTL is how long a consent question stays answerable.
const DefaultConsentTTL = 15 * time.Minute

// ConsentRequest is a pending "may I pass this to the manager?" question for
// one chat.
type ConsentRequest struct {
	ID           string    `json:"id"`
	ChatID       string    `json:"chat_id"`
	GuestMessage string    `json:"guest_message"`
	Type         string    `json:"escalation_type"`
	Reason       string    `json:"reason"`
	Context      string    `json:"context,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
}

// ConsentManager holds at most one pending consent request per chat.
//
// A single mutex guards the whole map: consent is requested rarely and the
// request may arrive from concurrent webhook handlers, so correctness beats
// fine-grained locking here.
type ConsentManager struct {
	mu       sync.Mutex
	pending  map[string]*ConsentRequest
	ttl      time.Duration
	now      func() time.Time
}

// NewConsentManager creates a consent manager with the given TTL
// (DefaultConsentTTL if zero).
func NewConsentManager(ttl time.Duration) *ConsentManager {
	if ttl <= 0 {
		ttl = DefaultConsentTTL
	}
	return &ConsentManager{
		pending: make(map[string]*ConsentRequest),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Request records a freshly timestamped consent request for the chat,
// unconditionally overwriting any prior one.
func (m *ConsentManager) Request(chatID, guestMessage, escalationType, reason, context string) *ConsentRequest {
	req := &ConsentRequest{
		ID:           uuid.NewString(),
		ChatID:       chatID,
		GuestMessage: guestMessage,
		Type:         escalationType,
		Reason:       reason,
		Context:      context,
		RequestedAt:  m.now(),
	}

	m.mu.Lock()
	m.pending[chatID] = req
	m.mu.Unlock()

	slog.Info("escalation: consent requested",
		"chat_id", chatID,
		"type", escalationType,
		"reason", reason,
	)
	return req
}

// GetPending returns the chat's pending request, or nil if none exists or it
// has expired. Expiry is checked lazily: the request is only ever read when
// the guest's next message arrives, so no background sweep is needed. An
// expired entry is cleared as a side effect.
func (m *ConsentManager) GetPending(chatID string) *ConsentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.pending[chatID]
	if !ok {
		return nil
	}
	if m.now().Sub(req.RequestedAt) > m.ttl {
		delete(m.pending, chatID)
		slog.Debug("escalation: consent request expired", "chat_id", chatID)
		return nil
	}
	return req
}

// Clear removes any pending request for the chat. Idempotent.
func (m *ConsentManager) Clear(chatID string) {
	m.mu.Lock()
	delete(m.pending, chatID)
	m.mu.Unlock()
}
