// Package pipeline turns flushed guest messages into replies, escalations,
// and manager drafts. The LLM behind the Agent interface is opaque: this
// package owns everything around it: consent gating, marker handling,
// response sanitization, and outbound delivery.
package pipeline

import (
	"context"

	"github.com/hostalia/concierge/internal/store"
)

// Request kinds.
const (
	KindGuestMessage    = "guest_message"
	KindManagerMessage  = "manager_message"
	KindReplyAdjustment = "reply_adjustment"
)

// Request is one invocation of the assistant.
type Request struct {
	ConversationID string
	Channel        string
	ChatID         string
	Text           string
	Kind           string
	History        []store.HistoryEntry
	Metadata       map[string]string
}

// Reply is the assistant's raw output, markers included.
type Reply struct {
	Text string
}

// Agent produces a reply for a request. Implementations wrap whatever model
// or service actually generates text.
type Agent interface {
	Run(ctx context.Context, req Request) (Reply, error)
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, req Request) (Reply, error)

func (f AgentFunc) Run(ctx context.Context, req Request) (Reply, error) { return f(ctx, req) }
