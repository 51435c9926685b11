package escalation

import "strings"

// Verdict is the three-way outcome of classifying a guest's consent reply.
type Verdict string

const (
	VerdictYes     Verdict = "yes"
	VerdictNo      Verdict = "no"
	VerdictUnknown Verdict = "unknown"
)

// Keyword sets are enumerable constants so the state machine's transition
// table stays auditable without any LLM in the loop. Guests write mostly in
// Spanish; English affirmatives show up often enough to include.
var (
	positiveTokens = map[string]struct{}{
		"si": {}, "sí": {}, "claro": {}, "ok": {}, "okay": {}, "vale": {},
		"dale": {}, "bueno": {}, "perfecto": {}, "genial": {}, "adelante": {},
		"venga": {}, "yes": {}, "sure": {},
	}

	negativeTokens = map[string]struct{}{
		"no": {}, "gracias": {}, "nop": {}, "nope": {},
	}

	positivePhrases = []string{
		"por favor", "de acuerdo", "esta bien", "está bien", "me parece bien",
	}

	negativePhrases = []string{
		"ahora no", "mejor no", "no gracias", "mas tarde", "más tarde",
		"no hace falta",
	}

	// Hedges that contain a bare "no" but do not decline anything.
	unknownPhrases = []string{
		"no sé", "no se", "no lo sé", "no lo se", "no estoy seguro",
		"no estoy segura", "ni idea",
	}
)

// ClassifyReply decides whether a guest's free-text reply grants or refuses
// consent. Token-set intersection runs before the substring fallback so that
// a negative marker buried inside an unrelated longer word cannot produce a
// false refusal.
func ClassifyReply(text string) Verdict {
	norm := normalize(text)
	if norm == "" {
		return VerdictUnknown
	}

	for _, p := range unknownPhrases {
		if norm == p || strings.HasPrefix(norm, p+" ") {
			return VerdictUnknown
		}
	}

	tokens := strings.Fields(norm)
	pos, neg := false, false
	for _, tok := range tokens {
		if _, ok := positiveTokens[tok]; ok {
			pos = true
		}
		if _, ok := negativeTokens[tok]; ok {
			neg = true
		}
	}

	switch {
	case neg:
		// "mejor no, gracias": any explicit refusal token wins even when a
		// politeness positive ("vale, mejor no") is also present.
		return VerdictNo
	case pos:
		return VerdictYes
	}

	// Substring fallback, only when no token matched.
	for _, p := range negativePhrases {
		if strings.Contains(norm, p) {
			return VerdictNo
		}
	}
	for _, p := range positivePhrases {
		if strings.Contains(norm, p) {
			return VerdictYes
		}
	}
	return VerdictUnknown
}

// normalize lowercases, strips punctuation and collapses whitespace.
func normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'á', r == 'é', r == 'í', r == 'ó', r == 'ú', r == 'ü', r == 'ñ':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
