// Package buffer coalesces bursty guest messages into single processing
// units. Guests tend to split one thought across several rapid messages;
// each arrival restarts an idle timer, and only after the conversation goes
// quiet is the merged text handed to the pipeline.
package buffer

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// FlushFunc receives the merged text for one conversation after the idle
// window elapses. It runs as a detached task: errors are logged at the task
// boundary and never reach the timer loop, and drained messages are not
// re-queued on failure.
type FlushFunc func(ctx context.Context, conversationID, combined string, version uint64) error

// flight is one in-flight flush processing task.
type flight struct {
	cancel context.CancelFunc
}

// conversation holds the pending fragments and fencing state for one
// conversation ID. All fields are guarded by mu.
type conversation struct {
	mu          sync.Mutex
	pending     []string
	version     uint64
	timerCancel context.CancelFunc // idle timer, nil when no timer armed
	inFlight    *flight            // flush processing task, nil when idle
}

// Manager debounces messages per conversation. Different conversations are
// fully independent; within one conversation at most one idle timer and one
// in-flight flush exist at any instant, and a new arrival cancels both.
//
// Buffer state is deliberately not persisted: it is seconds-scale state and
// is lost on restart.
type Manager struct {
	mu            sync.Mutex
	conversations map[string]*conversation

	idle    time.Duration
	onFlush FlushFunc
}

// NewManager creates a buffer manager that waits idle of inactivity before
// flushing, then invokes onFlush with the combined text.
func NewManager(idle time.Duration, onFlush FlushFunc) *Manager {
	return &Manager{
		conversations: make(map[string]*conversation),
		idle:          idle,
		onFlush:       onFlush,
	}
}

// Add appends a message fragment to the conversation's buffer and re-arms
// the idle timer. Never blocks beyond lock acquisition: the caller (webhook
// handler) returns immediately while processing happens in the background.
func (m *Manager) Add(conversationID, text string) {
	conv := m.get(conversationID)

	conv.mu.Lock()
	conv.pending = append(conv.pending, strings.TrimSpace(text))
	conv.version++
	version := conv.version

	// Cancellation is advisory: a flush that already produced a side effect
	// is not rolled back. The version check on timer wake is the
	// authoritative fence.
	if conv.timerCancel != nil {
		conv.timerCancel()
	}
	if conv.inFlight != nil {
		conv.inFlight.cancel()
		conv.inFlight = nil
	}

	timerCtx, cancel := context.WithCancel(context.Background())
	conv.timerCancel = cancel
	conv.mu.Unlock()

	go m.waitAndFlush(timerCtx, conversationID, conv, version)
}

// waitAndFlush sleeps for the idle window, then drains and processes the
// buffer unless a newer message re-armed the timer in the meantime.
func (m *Manager) waitAndFlush(ctx context.Context, conversationID string, conv *conversation, armedVersion uint64) {
	timer := time.NewTimer(m.idle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	conv.mu.Lock()
	if conv.version != armedVersion {
		// A newer message arrived and re-armed; this timer is stale.
		conv.mu.Unlock()
		return
	}
	drained := conv.pending
	conv.pending = nil
	conv.timerCancel = nil

	combined := Combine(drained)
	if combined == "" {
		conv.mu.Unlock()
		return
	}

	flightCtx, cancel := context.WithCancel(context.Background())
	f := &flight{cancel: cancel}
	conv.inFlight = f
	conv.mu.Unlock()

	slog.Debug("buffer: flushing conversation",
		"conversation", conversationID,
		"fragments", len(drained),
		"version", armedVersion,
	)

	if err := m.onFlush(flightCtx, conversationID, combined, armedVersion); err != nil {
		slog.Error("buffer: flush processing failed",
			"conversation", conversationID,
			"version", armedVersion,
			"error", err,
		)
	}
	cancel()

	conv.mu.Lock()
	if conv.inFlight == f {
		conv.inFlight = nil
	}
	conv.mu.Unlock()
}

// IsCurrent reports whether version is still the conversation's latest.
// Stale flush tasks consult this before committing a side effect.
func (m *Manager) IsCurrent(conversationID string, version uint64) bool {
	m.mu.Lock()
	conv, ok := m.conversations[conversationID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return conv.version == version
}

// PendingCount returns the number of buffered fragments for a conversation.
func (m *Manager) PendingCount(conversationID string) int {
	m.mu.Lock()
	conv, ok := m.conversations[conversationID]
	m.mu.Unlock()
	if !ok {
		return 0
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return len(conv.pending)
}

// get lazily allocates conversation state on first message.
func (m *Manager) get(conversationID string) *conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		conv = &conversation{}
		m.conversations[conversationID] = conv
	}
	return conv
}

// Combine joins fragments with newlines in arrival order, dropping empty
// fragments and collapsing immediately-adjacent exact duplicates. Repeats
// later in a burst are preserved: a guest may legitimately say the same
// thing twice with other messages in between.
func Combine(fragments []string) string {
	var parts []string
	prev := ""
	for _, f := range fragments {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if len(parts) > 0 && f == prev {
			continue
		}
		parts = append(parts, f)
		prev = f
	}
	return strings.Join(parts, "\n")
}
