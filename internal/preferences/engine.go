// Package preferences computes the reset-aware effective preference view
// and infers new default proposals from recent user turns.
package preferences

import (
	"context"
	"fmt"
	"strings"

	"mygpt/internal/store"
)

const defaultScope = "global"

// Engine reads and writes preference state through the Store.
type Engine struct {
	store *store.Store
}

func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s}
}

// Effective returns the key/value map after applying the latest reset
// cutoff for the scope, later entries winning ties.
func (e *Engine) Effective(ctx context.Context, scope string) (map[string]string, error) {
	if scope == "" {
		scope = defaultScope
	}

	cutoff := ""
	reset, err := e.store.LatestPreferenceReset(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load latest reset: %w", err)
	}
	if reset != nil {
		cutoff = reset.CreatedAt
	}

	prefs, err := e.store.ListPreferencesSince(ctx, scope, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list preferences since reset: %w", err)
	}

	out := make(map[string]string, len(prefs))
	for _, p := range prefs {
		out[p.Key] = p.Value
	}
	return out, nil
}

// Candidate is a scored (key, value) pair the proposal inferrer watches for.
type Candidate struct {
	Key   string
	Value string
	terms []string
}

var candidates = []Candidate{
	{Key: "verbosity", Value: "concise", terms: []string{"concise", "brief", "short", "terse"}},
	{Key: "verbosity", Value: "detailed", terms: []string{"detailed", "detail", "thorough", "full"}},
	{Key: "format", Value: "bullets", terms: []string{"bullet", "bullets", "bullet points"}},
}

var proposalText = map[string]string{
	"verbosity:concise":  "Prefer concise answers by default.",
	"verbosity:detailed": "Prefer detailed answers by default.",
	"format:bullets":     "Prefer bullet lists when possible.",
}

const proposalRationale = "This shows up repeatedly in recent messages; store it as a default?"

const recentUserMessageWindow = 6

// InferProposal scores the last six user messages against the fixed
// candidate list and returns the winning (key, value) pair, or nil if no
// candidate qualifies or the winner already matches the effective value.
func InferProposal(recentUserMessages []string, effective map[string]string) *Candidate {
	tail := recentUserMessages
	if len(tail) > recentUserMessageWindow {
		tail = tail[len(tail)-recentUserMessageWindow:]
	}
	lowered := make([]string, len(tail))
	for i, m := range tail {
		lowered[i] = strings.ToLower(m)
	}

	bestIdx := -1
	bestCount := 0
	for i, c := range candidates {
		count := 0
		for _, msg := range lowered {
			for _, term := range c.terms {
				if strings.Contains(msg, term) {
					count++
					break
				}
			}
		}
		if count >= 2 && count > bestCount {
			bestCount = count
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return nil
	}

	winner := candidates[bestIdx]
	if effective[winner.Key] == winner.Value {
		return nil
	}
	return &winner
}

// ProposalText returns the canonical text and rationale for a (key, value) pair.
func ProposalText(key, value string) (text string, rationale string) {
	return proposalText[key+":"+value], proposalRationale
}

// Approve records a preference_approved event, inserts the new Preference
// row, and marks the proposal approved.
func (e *Engine) Approve(ctx context.Context, proposal *store.PreferenceProposal) (preferenceID int64, eventID int64, err error) {
	scope := defaultScope
	payload := map[string]any{
		"actor":       "user",
		"proposal_id": proposal.ID,
		"key":         proposal.Key,
		"value":       proposal.Value,
	}
	eventID, err = e.store.InsertEvent(ctx, store.EventPreferenceApproved, payload, &proposal.ConversationID, proposal.CausalityMessageID)
	if err != nil {
		return 0, 0, fmt.Errorf("insert preference_approved event: %w", err)
	}

	preferenceID, err = e.store.InsertPreference(ctx, proposal.Key, proposal.Value, scope, eventID, proposal.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("insert preference: %w", err)
	}

	if err := e.store.UpdateProposalStatus(ctx, proposal.ID, store.ProposalApproved); err != nil {
		return 0, 0, fmt.Errorf("mark proposal approved: %w", err)
	}
	return preferenceID, eventID, nil
}

// Reject records a preference_rejected event and marks the proposal
// rejected, without inserting a Preference.
func (e *Engine) Reject(ctx context.Context, proposal *store.PreferenceProposal) (eventID int64, err error) {
	payload := map[string]any{
		"actor":       "user",
		"proposal_id": proposal.ID,
		"key":         proposal.Key,
		"value":       proposal.Value,
	}
	eventID, err = e.store.InsertEvent(ctx, store.EventPreferenceRejected, payload, &proposal.ConversationID, proposal.CausalityMessageID)
	if err != nil {
		return 0, fmt.Errorf("insert preference_rejected event: %w", err)
	}
	if err := e.store.UpdateProposalStatus(ctx, proposal.ID, store.ProposalRejected); err != nil {
		return 0, fmt.Errorf("mark proposal rejected: %w", err)
	}
	return eventID, nil
}

// Reset emits a preferences_reset event and inserts the reset cutoff row;
// the next Effective call for this scope returns {} until new approvals land.
func (e *Engine) Reset(ctx context.Context, scope string, conversationID, causalityMessageID *int64) (resetID int64, eventID int64, err error) {
	if scope == "" {
		scope = defaultScope
	}
	payload := map[string]any{"scope": scope}
	eventID, err = e.store.InsertEvent(ctx, store.EventPreferencesReset, payload, conversationID, causalityMessageID)
	if err != nil {
		return 0, 0, fmt.Errorf("insert preferences_reset event: %w", err)
	}
	resetID, err = e.store.InsertPreferenceReset(ctx, scope, eventID)
	if err != nil {
		return 0, 0, fmt.Errorf("insert preference reset: %w", err)
	}
	return resetID, eventID, nil
}
