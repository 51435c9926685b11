package approvals

import "strings"

// Keyword sets driving draft transitions. Kept as enumerable constants so
// the transition table is auditable and testable without an LLM.
var (
	confirmWords = []string{"enviar", "confirmar", "manda", "dale", "siii", "sii"}
	cancelWords  = []string{"cancelar", "cancel"}

	// Short words are matched as whole tokens only; as substrings they would
	// fire inside unrelated words ("bueno" contains "no").
	confirmTokens = map[string]struct{}{"si": {}, "sí": {}, "ok": {}}
	cancelTokens  = map[string]struct{}{"no": {}}
)

// IsConfirm reports whether the manager's reply is an affirmative
// confirmation ("enviar", "ok", "sí", "dale", ...).
func IsConfirm(text string) bool {
	return matches(text, confirmWords, confirmTokens)
}

// IsCancel reports whether the manager's reply cancels the pending draft.
// Checked before IsConfirm by callers: "no" wins over an embedded "si".
func IsCancel(text string) bool {
	return matches(text, cancelWords, cancelTokens)
}

func matches(text string, words []string, tokens map[string]struct{}) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	for _, tok := range strings.Fields(strings.Map(stripPunct, lower)) {
		if _, ok := tokens[tok]; ok {
			return true
		}
	}
	return false
}

func stripPunct(r rune) rune {
	switch r {
	case '.', ',', ';', ':', '!', '¡', '?', '¿', '"', '\'':
		return ' '
	}
	return r
}

// FlattenDraftText normalizes manager-edited draft text to a single line:
// non-empty trimmed lines joined with spaces, repeated whitespace collapsed,
// wrapping quotes stripped. Drafts sent onward must never carry stray
// newlines or quoting artifacts from copy-pasted manager text.
func FlattenDraftText(text string) string {
	var parts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			parts = append(parts, line)
		}
	}
	flat := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")

	for len(flat) >= 2 {
		first, last := flat[0], flat[len(flat)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			flat = strings.TrimSpace(flat[1 : len(flat)-1])
			continue
		}
		if strings.HasPrefix(flat, "“") && strings.HasSuffix(flat, "”") {
			flat = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(flat, "“"), "”"))
			continue
		}
		break
	}
	return flat
}
