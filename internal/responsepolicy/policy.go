// Package responsepolicy is the pre-LLM gate: a pure function deciding
// whether a user turn deserves a model call at all, or a fixed clarifying
// question instead.
package responsepolicy

import "strings"

// Action is the closed enum of policy outcomes.
type Action string

const (
	ActionAnswer  Action = "answer"
	ActionClarify Action = "clarify"
)

// Decision is the result of Evaluate.
type Decision struct {
	Action    Action
	Question  string
	Rationale string
}

var (
	singleAmbiguousTokens = map[string]bool{
		"this": true, "that": true, "it": true, "one": true, "thing": true, "stuff": true,
	}
	ackWithoutContextTokens = map[string]bool{
		"ok": true, "okay": true, "yes": true, "sure": true, "maybe": true,
	}
	genericHelpPrefixes = []string{
		"do it", "do that", "do the thing", "help me", "help with this", "fix it",
	}
)

// Evaluate applies the ordered rule table. previousMessageRole is nil when
// the user turn is the conversation's first message.
func Evaluate(userMessage string, previousMessageRole *string) Decision {
	trimmed := strings.TrimSpace(userMessage)
	lowered := strings.ToLower(trimmed)

	if trimmed == "" {
		return Decision{
			Action:    ActionClarify,
			Question:  "I didn't catch what you'd like me to do. Could you restate your intent?",
			Rationale: "blank_message",
		}
	}

	if singleAmbiguousTokens[lowered] {
		return Decision{
			Action:    ActionClarify,
			Question:  "What specifically should I work on?",
			Rationale: "single_ambiguous_token",
		}
	}

	if ackWithoutContextTokens[lowered] && (previousMessageRole == nil || *previousMessageRole != "assistant") {
		return Decision{
			Action:    ActionClarify,
			Question:  "Could you describe the task or question you want me to handle?",
			Rationale: "ack_without_context",
		}
	}

	for _, prefix := range genericHelpPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return Decision{
				Action:    ActionClarify,
				Question:  "You mentioned needing help, but I need the concrete task. What should I produce?",
				Rationale: "generic_help_request",
			}
		}
	}

	return Decision{Action: ActionAnswer}
}
