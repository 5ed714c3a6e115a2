package orchestrator

import (
	"regexp"
	"strings"
)

var (
	cleanupANSI = regexp.MustCompile("\x1b\\[[0-9;]*[A-Za-z]")

	thinkOpens  = []string{"<think>", "〈thinking〉", "＜thinking＞"}
	thinkCloses = []string{"</think>", "〈/thinking〉", "＜/thinking＞"}

	leadingAssistantMarker = regexp.MustCompile(`^Assistant:\s*`)
	cleanupRoleMarkerLine  = regexp.MustCompile(`^(User:|Assistant:|System:)`)
)

// stripThinkForCleanup is the post-stream counterpart to the Prompt
// Assembler's history sanitizer, and deliberately behaves differently: if
// any recognized close tag appears, everything up to and including the
// *last* one is discarded and only the text after it survives; if no close
// tag appears at all, only the bare open-tag markers are removed, leaving
// whatever text trails them intact (the model never finished reasoning, but
// there is no way to know where it would have stopped).
func stripThinkForCleanup(text string) string {
	lastCloseEnd := -1
	for _, close := range thinkCloses {
		if idx := strings.LastIndex(text, close); idx != -1 {
			if end := idx + len(close); end > lastCloseEnd {
				lastCloseEnd = end
			}
		}
	}
	if lastCloseEnd != -1 {
		return text[lastCloseEnd:]
	}

	out := text
	for _, open := range thinkOpens {
		out = strings.ReplaceAll(out, open, "")
	}
	return out
}

func stripANSIForCleanup(text string) string {
	return cleanupANSI.ReplaceAllString(text, "")
}

// stripLeadingAssistantAndTruncate removes one leading "Assistant:" marker
// and then drops everything from the first line that looks like a
// transcript role marker onward, so a model simulating further turns
// cannot smuggle them into the persisted message. When the first marker
// is the very first line, the text passes through unchanged: truncating
// there would erase the whole response.
func stripLeadingAssistantAndTruncate(text string) string {
	text = leadingAssistantMarker.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if cleanupRoleMarkerLine.MatchString(line) {
			if i == 0 {
				return text
			}
			return strings.Join(lines[:i], "\n")
		}
	}
	return text
}

// cleanupAssistantText strips reasoning wrappers, ANSI escapes, and
// simulated turns from the raw streamed text. If the think-stripping pass
// emptied the result, retry with only the ANSI and role-marker passes
// applied to the raw input.
func cleanupAssistantText(raw string) string {
	afterThink := stripThinkForCleanup(raw)
	cleaned := stripANSIForCleanup(afterThink)
	cleaned = stripLeadingAssistantAndTruncate(cleaned)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned != "" {
		return cleaned
	}

	retry := stripANSIForCleanup(raw)
	retry = stripLeadingAssistantAndTruncate(retry)
	return strings.TrimSpace(retry)
}
