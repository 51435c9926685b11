package pipeline

import (
	"log/slog"
	"regexp"
	"strings"
)

// sanitizeVisible cleans assistant text before it reaches a guest or the
// manager: reasoning tags stripped, duplicated paragraphs collapsed,
// leading blank lines removed.
func sanitizeVisible(text string) string {
	if text == "" {
		return ""
	}

	original := text
	text = stripThinkingTags(text)
	text = collapseDuplicateBlocks(text)
	text = leadingBlankLines.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if text != original {
		slog.Debug("pipeline: sanitized reply", "original_len", len(original), "cleaned_len", len(text))
	}
	return text
}

// Some models leak their reasoning as tagged text. Go regexp has no
// backreferences, so each tag gets its own pattern.
var thinkingTags = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<think>.*?</think>`),
	regexp.MustCompile(`(?is)<thinking>.*?</thinking>`),
	regexp.MustCompile(`(?is)<thought>.*?</thought>`),
}

func stripThinkingTags(text string) string {
	if !strings.Contains(strings.ToLower(text), "<think") &&
		!strings.Contains(strings.ToLower(text), "<thought") {
		return text
	}
	for _, pat := range thinkingTags {
		text = pat.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// collapseDuplicateBlocks drops paragraphs repeated back to back.
func collapseDuplicateBlocks(text string) string {
	blocks := strings.Split(text, "\n\n")
	if len(blocks) <= 1 {
		return text
	}
	var out []string
	for _, block := range blocks {
		trimmed := strings.TrimSpace(block)
		if trimmed == "" {
			continue
		}
		if len(out) > 0 && trimmed == strings.TrimSpace(out[len(out)-1]) {
			continue
		}
		out = append(out, block)
	}
	return strings.Join(out, "\n\n")
}

var leadingBlankLines = regexp.MustCompile(`^(?:[ \t]*\r?\n)+`)

// silentToken suppresses any outbound reply when the assistant decides the
// message needs no answer.
const silentToken = "NO_REPLY"

// isSilentReply reports whether the text is (or starts/ends with) the
// silent-reply token.
func isSilentReply(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if trimmed == silentToken {
		return true
	}
	if rest, ok := strings.CutPrefix(trimmed, silentToken); ok {
		if rest == "" || !isWordChar(rune(rest[0])) {
			return true
		}
	}
	if before, ok := strings.CutSuffix(trimmed, silentToken); ok {
		if before == "" || !isWordChar(rune(before[len(before)-1])) {
			return true
		}
	}
	return false
}

func isWordChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}
