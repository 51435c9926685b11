package approvals

import (
	"path/filepath"
	"testing"
)

func TestTracker_SnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.json")

	tr := NewTracker(path)
	tr.SetWhatsAppSend("M1", WhatsAppSendDraft{GuestID: "34600111222", Message: "Hola"})
	tr.SetKBAddition("M1", KBAdditionDraft{Topic: "wifi", Content: "clave: sol123", Category: "servicios"})
	tr.SetKBRemoval("M2", KBRemovalDraft{Criteria: "parking", TargetIDs: []string{"kb-1"}, Preview: "1 coincidencia"})
	tr.SetReplyDraft("M2", ReplyDraft{EscalationID: "esc-1", GuestChatID: "g", Channel: "whatsapp", ManagerReply: "texto"})

	// Fresh tracker reloads the persisted state.
	tr2 := NewTracker(path)

	if d, ok := tr2.WhatsAppSend("M1"); !ok || d.Message != "Hola" {
		t.Errorf("WhatsAppSend after reload = (%+v, %v)", d, ok)
	}
	if d, ok := tr2.KBAddition("M1"); !ok || d.Topic != "wifi" {
		t.Errorf("KBAddition after reload = (%+v, %v)", d, ok)
	}
	if d, ok := tr2.KBRemoval("M2"); !ok || len(d.TargetIDs) != 1 {
		t.Errorf("KBRemoval after reload = (%+v, %v)", d, ok)
	}
	if d, ok := tr2.ReplyDraft("M2"); !ok || d.EscalationID != "esc-1" {
		t.Errorf("ReplyDraft after reload = (%+v, %v)", d, ok)
	}
}

func TestTracker_ClearPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.json")

	tr := NewTracker(path)
	tr.SetWhatsAppSend("M1", WhatsAppSendDraft{GuestID: "g", Message: "x"})
	tr.ClearWhatsAppSend("M1")

	tr2 := NewTracker(path)
	if _, ok := tr2.WhatsAppSend("M1"); ok {
		t.Error("cleared draft resurrected by reload")
	}
}

func TestTracker_MissingSnapshotIsEmpty(t *testing.T) {
	tr := NewTracker(filepath.Join(t.TempDir(), "nope", "drafts.json"))
	if tr.HasAnyPending("M1") {
		t.Error("fresh tracker has pending drafts")
	}
}

func TestTracker_SameKindOverwrites(t *testing.T) {
	tr := NewTracker("")
	tr.SetWhatsAppSend("M1", WhatsAppSendDraft{GuestID: "a", Message: "first"})
	tr.SetWhatsAppSend("M1", WhatsAppSendDraft{GuestID: "b", Message: "second"})

	d, _ := tr.WhatsAppSend("M1")
	if d.GuestID != "b" || d.Message != "second" {
		t.Errorf("draft = %+v, want the overwriting one", d)
	}
}
