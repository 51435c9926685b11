package pipeline

import (
	"testing"
)

func TestExtractMarkers(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantVisible string
		wantEsc     bool
		wantDraft   bool
		wantKB      bool
	}{
		{
			name:        "plain text passes through",
			text:        "El desayuno se sirve de 7 a 10.",
			wantVisible: "El desayuno se sirve de 7 a 10.",
		},
		{
			name:        "escalation marker with question",
			text:        "[ESCALATE]|availability|fecha no disponible en PMS\n¿Quieres que lo consulte con el encargado?",
			wantVisible: "¿Quieres que lo consulte con el encargado?",
			wantEsc:     true,
		},
		{
			name:      "whatsapp draft marker",
			text:      "[WA_DRAFT]|34600111222|Hola, confirmamos su reserva.",
			wantDraft: true,
		},
		{
			name:   "kb addition marker",
			text:   "[KB_ADD]|horario spa|servicios|El spa abre de 10 a 20.",
			wantKB: true,
		},
		{
			name:        "malformed marker dropped silently",
			text:        "[ESCALATE]|solo-un-campo\nTexto visible.",
			wantVisible: "Texto visible.",
		},
		{
			name:        "marker mid-reply keeps surrounding text",
			text:        "Un momento.\n[ESCALATE]|pricing|tarifa de grupo\nEnseguida te digo.",
			wantVisible: "Un momento.\nEnseguida te digo.",
			wantEsc:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := extractMarkers(tt.text)
			if set.visible != tt.wantVisible {
				t.Errorf("visible = %q, want %q", set.visible, tt.wantVisible)
			}
			if (set.escalation != nil) != tt.wantEsc {
				t.Errorf("escalation present = %v, want %v", set.escalation != nil, tt.wantEsc)
			}
			if (set.waDraft != nil) != tt.wantDraft {
				t.Errorf("waDraft present = %v, want %v", set.waDraft != nil, tt.wantDraft)
			}
			if (set.kbAdd != nil) != tt.wantKB {
				t.Errorf("kbAdd present = %v, want %v", set.kbAdd != nil, tt.wantKB)
			}
		})
	}
}

func TestExtractMarkersFields(t *testing.T) {
	set := extractMarkers("[ESCALATE]|availability|sin disponibilidad para el 12")
	if set.escalation == nil {
		t.Fatal("no escalation parsed")
	}
	if set.escalation.Type != "availability" || set.escalation.Reason != "sin disponibilidad para el 12" {
		t.Errorf("escalation = %+v", set.escalation)
	}

	set = extractMarkers("[KB_ADD]|parking||Parking gratuito para huéspedes")
	if set.kbAdd == nil {
		t.Fatal("no kb addition parsed")
	}
	if set.kbAdd.Topic != "parking" || set.kbAdd.Category != "" || set.kbAdd.Content != "Parking gratuito para huéspedes" {
		t.Errorf("kbAdd = %+v", set.kbAdd)
	}
	if set.kbAdd.Source != "manager" {
		t.Errorf("source = %q", set.kbAdd.Source)
	}
}

func TestParseSendMarker(t *testing.T) {
	if text, ok := parseSendMarker("[SEND]|Buenas tardes, hay disponibilidad."); !ok || text != "Buenas tardes, hay disponibilidad." {
		t.Errorf("parseSendMarker = %q, %v", text, ok)
	}
	if text, ok := parseSendMarker("Todavía es un borrador."); ok || text != "Todavía es un borrador." {
		t.Errorf("parseSendMarker = %q, %v", text, ok)
	}
}

func TestSanitizeVisible(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"thinking stripped", "<thinking>el huésped pregunta</thinking>Hola.", "Hola."},
		{"duplicate blocks collapsed", "Hola.\n\nHola.\n\nAdiós.", "Hola.\n\nAdiós."},
		{"leading blanks removed", "\n\n  Hola.", "Hola."},
		{"clean text untouched", "Hola.", "Hola."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeVisible(tt.in); got != tt.want {
				t.Errorf("sanitizeVisible(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsSilentReply(t *testing.T) {
	for _, text := range []string{"NO_REPLY", "  NO_REPLY  ", "NO_REPLY.", "ok NO_REPLY"} {
		if !isSilentReply(text) {
			t.Errorf("isSilentReply(%q) = false", text)
		}
	}
	for _, text := range []string{"", "NO_REPLYING", "hay habitación"} {
		if isSilentReply(text) {
			t.Errorf("isSilentReply(%q) = true", text)
		}
	}
}
