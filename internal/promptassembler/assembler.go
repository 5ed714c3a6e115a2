// Package promptassembler deterministically builds the single prompt string
// sent to the model gateway from conversation history and effective
// preferences, pinned to a hash-verified base system prompt.
package promptassembler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"mygpt/internal/store"
)

var (
	ansiCSI = regexp.MustCompile("\x1b\\[[0-9;]*[A-Za-z]")

	roleMarkerLine = regexp.MustCompile(`^(User:|Assistant:|System:)`)
)

// sanitizeAssistantHistoryForPrompt removes ANSI escapes, reasoning-wrapper
// blocks, and any line that looks like a transcript role marker from a past
// assistant turn before it re-enters the prompt as history. Unlike the
// post-stream cleanup in the orchestrator, an unterminated wrapper here is
// deleted through end-of-string (DOTALL semantics) rather than having its
// trailing remainder preserved; the two call sites intentionally differ.
func sanitizeAssistantHistoryForPrompt(text string) string {
	s := ansiCSI.ReplaceAllString(text, "")
	s = stripThinkBlocksDOTALL(s, "<think>", "</think>")
	s = stripThinkBlocksDOTALL(s, "〈thinking〉", "〈/thinking〉")
	s = stripThinkBlocksDOTALL(s, "＜thinking＞", "＜/thinking＞")

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if roleMarkerLine.MatchString(line) {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// stripThinkBlocksDOTALL deletes every occurrence of open...close, and if an
// open tag has no matching close, deletes from the open tag to the end of
// the string (the prompt-assembly sanitizer's "leakage must never reach the
// prompt" behavior).
func stripThinkBlocksDOTALL(s, open, close string) string {
	for {
		start := strings.Index(s, open)
		if start == -1 {
			return s
		}
		rest := s[start+len(open):]
		end := strings.Index(rest, close)
		if end == -1 {
			return s[:start]
		}
		s = s[:start] + rest[end+len(close):]
	}
}

func indentBlock(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 {
		return "  "
	}
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

// Assemble builds the single deterministic prompt string from message
// history and the effective preferences map. Pure and side-effect free.
func Assemble(messages []store.Message, preferences map[string]string) string {
	var parts []string

	base := strings.TrimRight(baseSystemPrompt, "\n\r\t ")
	for _, line := range strings.Split(base, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts = append(parts, "System: "+line)
	}
	parts = append(parts, "System: Reply as the assistant only. Do not write any 'User:' lines or simulate additional turns.")
	parts = append(parts, "System: Do not output internal reasoning or thinking (e.g., <think>, 〈thinking〉). Provide only the final answer.")

	if len(preferences) > 0 {
		keys := make([]string, 0, len(preferences))
		for k := range preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, preferences[k]))
		}
		parts = append(parts, "System: Defaults (apply only when user did not specify otherwise): "+strings.Join(pairs, ", "))
	}

	for _, msg := range messages {
		switch msg.Role {
		case store.RoleUser:
			parts = append(parts, "User:")
			parts = append(parts, indentBlock(msg.Content))
		case store.RoleAssistant:
			cleaned := sanitizeAssistantHistoryForPrompt(msg.Content)
			if cleaned == "" {
				continue
			}
			parts = append(parts, "Assistant:")
			parts = append(parts, indentBlock(cleaned))
		}
	}

	parts = append(parts, "Assistant:")
	return strings.Join(parts, "\n") + " "
}
