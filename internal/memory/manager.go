// Package memory keeps conversation history and per-conversation flags in
// RAM with write-through persistence. The in-memory copy is the working
// set; the store makes pending state and basic history survive restarts.
// Persistence failures are logged as warnings and never block a transition.
package memory

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hostalia/concierge/internal/approvals"
	"github.com/hostalia/concierge/internal/store"
)

const historyCacheLimit = 200

// conversationMemory is the RAM state for one conversation.
type conversationMemory struct {
	history []store.HistoryEntry
	flags   map[string]string
	loaded  bool // history hydrated from the store
}

// Manager is the hybrid RAM+persistent memory store. Safe for concurrent
// use from webhook handlers and flush tasks.
type Manager struct {
	mu            sync.RWMutex
	conversations map[string]*conversationMemory

	flagStore    store.FlagStore    // nil disables flag persistence
	historyStore store.HistoryStore // nil disables history persistence
}

// NewManager creates a memory manager over the given stores. Either store
// may be nil for a RAM-only setup (tests, degraded mode).
func NewManager(flags store.FlagStore, history store.HistoryStore) *Manager {
	return &Manager{
		conversations: make(map[string]*conversationMemory),
		flagStore:     flags,
		historyStore:  history,
	}
}

// Save appends a chat-history entry and writes it through to the store.
func (m *Manager) Save(ctx context.Context, conversationID, role, content string) {
	entry := store.HistoryEntry{Role: role, Content: content, CreatedAt: time.Now().UTC()}

	m.mu.Lock()
	c := m.conversation(conversationID)
	c.history = append(c.history, entry)
	if len(c.history) > historyCacheLimit {
		c.history = c.history[len(c.history)-historyCacheLimit:]
	}
	m.mu.Unlock()

	if m.historyStore != nil {
		if err := m.historyStore.Append(ctx, conversationID, role, content); err != nil {
			slog.Warn("memory: history persist failed", "conversation", conversationID, "error", err)
		}
	}
}

// Recent returns up to limit history entries, oldest first. Hydrates from
// the store on first access for a conversation.
func (m *Manager) Recent(ctx context.Context, conversationID string, limit int) []store.HistoryEntry {
	m.hydrate(ctx, conversationID)

	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[conversationID]
	if !ok {
		return nil
	}
	hist := c.history
	if limit > 0 && len(hist) > limit {
		hist = hist[len(hist)-limit:]
	}
	out := make([]store.HistoryEntry, len(hist))
	copy(out, hist)
	return out
}

// GetFlag returns a conversation flag, falling back to the store when the
// flag is not cached (e.g. after a restart).
func (m *Manager) GetFlag(ctx context.Context, conversationID, key string) (string, bool) {
	m.mu.RLock()
	if c, ok := m.conversations[conversationID]; ok {
		if v, ok := c.flags[key]; ok {
			m.mu.RUnlock()
			return v, true
		}
	}
	m.mu.RUnlock()

	if m.flagStore == nil {
		return "", false
	}
	v, ok, err := m.flagStore.GetFlag(ctx, conversationID, key)
	if err != nil {
		slog.Warn("memory: flag read failed", "conversation", conversationID, "key", key, "error", err)
		return "", false
	}
	if ok {
		m.mu.Lock()
		m.conversation(conversationID).flags[key] = v
		m.mu.Unlock()
	}
	return v, ok
}

// SetFlag stores a conversation flag in RAM and writes it through.
func (m *Manager) SetFlag(ctx context.Context, conversationID, key, value string) {
	m.mu.Lock()
	m.conversation(conversationID).flags[key] = value
	m.mu.Unlock()

	if m.flagStore != nil {
		if err := m.flagStore.SetFlag(ctx, conversationID, key, value); err != nil {
			slog.Warn("memory: flag persist failed", "conversation", conversationID, "key", key, "error", err)
		}
	}
}

// ClearFlag removes a conversation flag from RAM and the store. Idempotent.
func (m *Manager) ClearFlag(ctx context.Context, conversationID, key string) {
	m.mu.Lock()
	if c, ok := m.conversations[conversationID]; ok {
		delete(c.flags, key)
	}
	m.mu.Unlock()

	if m.flagStore != nil {
		if err := m.flagStore.ClearFlag(ctx, conversationID, key); err != nil {
			slog.Warn("memory: flag clear failed", "conversation", conversationID, "key", key, "error", err)
		}
	}
}

// LastDraftMarker scans the conversation's history backwards for the most
// recent assistant entry carrying a draft marker. Used by the approvals
// recovery path after a restart loses in-memory drafts.
func (m *Manager) LastDraftMarker(conversationID string) string {
	m.hydrate(context.Background(), conversationID)

	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[conversationID]
	if !ok {
		return ""
	}
	for i := len(c.history) - 1; i >= 0; i-- {
		if strings.HasPrefix(c.history[i].Content, approvals.WhatsAppDraftMarker) {
			return c.history[i].Content
		}
	}
	return ""
}

// hydrate loads persisted history into RAM on the first access.
func (m *Manager) hydrate(ctx context.Context, conversationID string) {
	m.mu.Lock()
	c := m.conversation(conversationID)
	if c.loaded || m.historyStore == nil {
		c.loaded = true
		m.mu.Unlock()
		return
	}
	c.loaded = true
	m.mu.Unlock()

	entries, err := m.historyStore.Recent(ctx, conversationID, historyCacheLimit)
	if err != nil {
		slog.Warn("memory: history load failed", "conversation", conversationID, "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	m.mu.Lock()
	c = m.conversation(conversationID)
	// Persisted entries precede anything saved since startup.
	c.history = append(entries, c.history...)
	if len(c.history) > historyCacheLimit {
		c.history = c.history[len(c.history)-historyCacheLimit:]
	}
	m.mu.Unlock()
}

// conversation lazily allocates RAM state. Caller holds m.mu.
func (m *Manager) conversation(conversationID string) *conversationMemory {
	c, ok := m.conversations[conversationID]
	if !ok {
		c = &conversationMemory{flags: make(map[string]string)}
		m.conversations[conversationID] = c
	}
	return c
}
