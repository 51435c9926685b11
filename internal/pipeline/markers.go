package pipeline

import (
	"strings"

	"github.com/hostalia/concierge/internal/approvals"
)

// Agent replies carry control markers on their own lines, pipe-delimited.
// Marker lines never reach the guest; everything else is visible text.
const (
	escalateMarker = "[ESCALATE]"
	kbAddMarker    = "[KB_ADD]"
	sendMarker     = "[SEND]"
)

type escalationIntent struct {
	Type   string
	Reason string
}

// markerSet is the parsed decomposition of one agent reply.
type markerSet struct {
	escalation *escalationIntent
	waDraft    *approvals.WhatsAppSendDraft
	kbAdd      *approvals.KBAdditionDraft
	visible    string
}

// extractMarkers splits an agent reply into control markers and visible
// text. Malformed marker lines are dropped, not shown to the guest.
func extractMarkers(text string) markerSet {
	var set markerSet
	var visible []string

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, escalateMarker):
			if typ, reason, ok := splitMarker(trimmed, escalateMarker); ok {
				set.escalation = &escalationIntent{Type: typ, Reason: reason}
			}
		case strings.HasPrefix(trimmed, approvals.WhatsAppDraftMarker):
			if d, ok := approvals.ParseWhatsAppDraftMarker(trimmed); ok {
				set.waDraft = &d
			}
		case strings.HasPrefix(trimmed, kbAddMarker):
			if d, ok := parseKBAddMarker(trimmed); ok {
				set.kbAdd = &d
			}
		default:
			visible = append(visible, line)
		}
	}

	set.visible = strings.TrimSpace(strings.Join(visible, "\n"))
	return set
}

// splitMarker parses "[MARKER]|a|b" into its two fields.
func splitMarker(line, marker string) (string, string, bool) {
	rest := strings.TrimPrefix(line, marker)
	rest = strings.TrimPrefix(rest, "|")
	a, b, found := strings.Cut(rest, "|")
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if !found || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// parseKBAddMarker parses "[KB_ADD]|topic|category|content". Category may be
// empty; topic and content may not.
func parseKBAddMarker(line string) (approvals.KBAdditionDraft, bool) {
	rest := strings.TrimPrefix(line, kbAddMarker)
	rest = strings.TrimPrefix(rest, "|")
	parts := strings.SplitN(rest, "|", 3)
	if len(parts) != 3 {
		return approvals.KBAdditionDraft{}, false
	}
	d := approvals.KBAdditionDraft{
		Topic:    strings.TrimSpace(parts[0]),
		Category: strings.TrimSpace(parts[1]),
		Content:  strings.TrimSpace(parts[2]),
		Source:   "manager",
	}
	if d.Topic == "" || d.Content == "" {
		return approvals.KBAdditionDraft{}, false
	}
	return d, true
}

// parseSendMarker detects "[SEND]|text": the agent's signal that a composed
// reply is final. Returns the final text and whether the marker was present.
func parseSendMarker(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, sendMarker) {
		return text, false
	}
	rest := strings.TrimPrefix(trimmed, sendMarker)
	rest = strings.TrimPrefix(rest, "|")
	return strings.TrimSpace(rest), true
}
