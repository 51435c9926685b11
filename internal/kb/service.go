// Package kb wraps the knowledge-base store with the operations the
// assistant and the manager approval flow need: confirmed additions,
// retrieval for answering, and the preview-then-delete removal flow.
package kb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hostalia/concierge/internal/approvals"
	"github.com/hostalia/concierge/internal/store"
)

const (
	searchLimit    = 8
	listLimit      = 200
	previewEntries = 10
	snippetLen     = 120
)

// Service is the knowledge-base layer over a store.KBStore.
type Service struct {
	store store.KBStore
}

func NewService(s store.KBStore) *Service {
	return &Service{store: s}
}

// Add persists a confirmed KB addition draft and returns the confirmation
// text shown to the manager. The result wording doubles as the success
// signal for the approval flow.
func (s *Service) Add(ctx context.Context, d approvals.KBAdditionDraft) (string, error) {
	entry := store.KBEntry{
		ID:        uuid.NewString(),
		Topic:     strings.TrimSpace(d.Topic),
		Content:   strings.TrimSpace(d.Content),
		HotelName: d.HotelName,
		Category:  d.Category,
		Source:    d.Source,
		CreatedAt: time.Now().UTC(),
	}
	if entry.Topic == "" || entry.Content == "" {
		return "", fmt.Errorf("kb: addition needs both topic and content")
	}
	if err := s.store.Add(ctx, entry); err != nil {
		return "", fmt.Errorf("kb: add %q: %w", entry.Topic, err)
	}
	return fmt.Sprintf("Información agregada a la base de conocimiento: %s", entry.Topic), nil
}

// Search returns entries relevant to the query, for prompt context.
func (s *Service) Search(ctx context.Context, query string) ([]store.KBEntry, error) {
	return s.store.Search(ctx, query, searchLimit)
}

// Entries lists the knowledge base for the back-office API: everything
// when query is empty, matches otherwise.
func (s *Service) Entries(ctx context.Context, query string) ([]store.KBEntry, error) {
	if strings.TrimSpace(query) == "" {
		return s.store.List(ctx, listLimit)
	}
	return s.store.Search(ctx, query, listLimit)
}

// RemovalPreview matches entries against the criteria and builds the
// removal draft the manager must confirm. Zero matches yields a draft with
// no target IDs; nothing is deleted here.
func (s *Service) RemovalPreview(ctx context.Context, criteria string) (approvals.KBRemovalDraft, error) {
	criteria = strings.TrimSpace(criteria)
	matches, err := s.store.Search(ctx, criteria, previewEntries)
	if err != nil {
		return approvals.KBRemovalDraft{}, fmt.Errorf("kb: removal search %q: %w", criteria, err)
	}

	draft := approvals.KBRemovalDraft{Criteria: criteria}
	if len(matches) == 0 {
		draft.Preview = fmt.Sprintf("No se encontraron entradas que coincidan con %q.", criteria)
		return draft, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Se eliminarán %d entradas que coinciden con %q:\n", len(matches), criteria)
	for _, e := range matches {
		draft.TargetIDs = append(draft.TargetIDs, e.ID)
		fmt.Fprintf(&b, "- %s: %s\n", e.Topic, snippet(e.Content))
	}
	b.WriteString("¿Confirmas la eliminación?")
	draft.Preview = b.String()
	return draft, nil
}

// Remove deletes the given entries. Implements the confirmer's deletion
// hook for removal drafts.
func (s *Service) Remove(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.store.Remove(ctx, ids)
	if err != nil {
		return n, fmt.Errorf("kb: remove %d entries: %w", len(ids), err)
	}
	return n, nil
}

func snippet(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= snippetLen {
		return content
	}
	return content[:snippetLen] + "…"
}
