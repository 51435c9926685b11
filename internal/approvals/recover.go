package approvals

import "strings"

// WhatsAppDraftMarker is the prefix of the draft marker persisted to chat history
// whenever a WhatsApp send draft is stored. The in-memory tracker is the
// primary store; this marker only enables best-effort recovery when a
// restart loses the tracker before the manager's confirmation arrives.
const WhatsAppDraftMarker = "[WA_DRAFT]"

// FormatWhatsAppDraftMarker renders a draft as a history marker line:
// [WA_DRAFT]|guest_id|message.
func FormatWhatsAppDraftMarker(d WhatsAppSendDraft) string {
	return WhatsAppDraftMarker + "|" + d.GuestID + "|" + d.Message
}

// ParseWhatsAppDraftMarker reconstructs a draft from a history marker line.
// Returns ok=false for anything that is not a well-formed marker.
func ParseWhatsAppDraftMarker(line string) (WhatsAppSendDraft, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, WhatsAppDraftMarker+"|") {
		return WhatsAppSendDraft{}, false
	}
	rest := strings.TrimPrefix(line, WhatsAppDraftMarker+"|")
	parts := strings.SplitN(rest, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return WhatsAppSendDraft{}, false
	}
	return WhatsAppSendDraft{GuestID: parts[0], Message: parts[1]}, true
}
