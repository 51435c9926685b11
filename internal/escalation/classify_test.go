package escalation

import "testing"

func TestClassifyReply(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Verdict
	}{
		{"plain yes", "sí", VerdictYes},
		{"yes with follow-up", "Sí, adelante", VerdictYes},
		{"unaccented yes", "si claro", VerdictYes},
		{"ok", "ok", VerdictYes},
		{"vale", "Vale!", VerdictYes},
		{"dale", "dale", VerdictYes},
		{"phrase yes", "de acuerdo con eso", VerdictYes},
		{"plain no", "no", VerdictNo},
		{"polite refusal", "mejor no, gracias", VerdictNo},
		{"refusal phrase", "ahora no", VerdictNo},
		{"thanks as refusal", "gracias pero paso", VerdictNo},
		{"no hace falta", "creo que no hace falta", VerdictNo},
		{"hedge is unknown", "no sé", VerdictUnknown},
		{"hedge with accent", "no sé qué decirte", VerdictUnknown},
		{"not sure", "no estoy seguro todavía", VerdictUnknown},
		{"unrelated text", "cuál es el precio de la habitación doble", VerdictUnknown},
		{"empty", "", VerdictUnknown},
		{"punctuation only", "¿?!", VerdictUnknown},
		{"mixed signals prefer refusal", "vale, mejor no", VerdictNo},
		// Token match must run before substring: "no" inside a longer word
		// is not a refusal.
		{"no inside word", "la piscina es enorme verdad", VerdictUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyReply(tt.text); got != tt.want {
				t.Errorf("ClassifyReply(%q) = %s, want %s", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sí, adelante", "sí adelante"},
		{"  HOLA   qué  tal  ", "hola qué tal"},
		{"ok!!!", "ok"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
