package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "chat.db")
	s, err := Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesLegacyConversation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	convs, err := s.ListConversations(ctx)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(convs) != 1 || convs[0].Title == nil || *convs[0].Title != "Legacy" {
		t.Fatalf("expected a single Legacy conversation, got %+v", convs)
	}
}

func TestMessageImmutability(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	convID, err := s.GetLatestConversationID(ctx)
	if err != nil {
		t.Fatalf("GetLatestConversationID: %v", err)
	}
	msgID, err := s.InsertMessage(ctx, convID, RoleUser, "hello", nil)
	if err != nil {
		t.Fatalf("InsertMessage: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, "UPDATE messages SET content = 'tampered' WHERE id = ?", msgID); err == nil {
		t.Fatal("expected UPDATE on messages to fail")
	} else if !strings.Contains(err.Error(), "immutable") {
		t.Fatalf("expected immutability error, got: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", msgID); err == nil {
		t.Fatal("expected DELETE on messages to fail")
	} else if !strings.Contains(err.Error(), "immutable") {
		t.Fatalf("expected immutability error, got: %v", err)
	}

	got, err := s.GetMessage(ctx, msgID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Content != "hello" {
		t.Fatalf("content mutated: got %q", got.Content)
	}
}

func TestEventsAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eventID, err := s.InsertEvent(ctx, EventUserPrompt, map[string]string{"content": "hi"}, nil, nil)
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, "UPDATE events SET type = 'tampered' WHERE id = ?", eventID); err == nil {
		t.Fatal("expected UPDATE on events to fail")
	} else if !strings.Contains(err.Error(), "append-only") {
		t.Fatalf("expected append-only error, got: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE id = ?", eventID); err == nil {
		t.Fatal("expected DELETE on events to fail")
	} else if !strings.Contains(err.Error(), "append-only") {
		t.Fatalf("expected append-only error, got: %v", err)
	}
}

func TestEffectivePreferencesCutoff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eventID, err := s.InsertEvent(ctx, EventPreferenceApproved, map[string]string{"key": "verbosity"}, nil, nil)
	if err != nil {
		t.Fatalf("InsertEvent: %v", err)
	}
	if _, err := s.InsertPreference(ctx, "verbosity", "concise", "global", eventID, 0); err != nil {
		t.Fatalf("InsertPreference: %v", err)
	}

	before, err := s.ListPreferencesSince(ctx, "global", "")
	if err != nil {
		t.Fatalf("ListPreferencesSince: %v", err)
	}
	if len(before) != 1 {
		t.Fatalf("expected 1 preference pre-reset, got %d", len(before))
	}

	resetEventID, err := s.InsertEvent(ctx, EventPreferencesReset, map[string]string{"scope": "global"}, nil, nil)
	if err != nil {
		t.Fatalf("InsertEvent reset: %v", err)
	}
	if _, err := s.InsertPreferenceReset(ctx, "global", resetEventID); err != nil {
		t.Fatalf("InsertPreferenceReset: %v", err)
	}

	reset, err := s.LatestPreferenceReset(ctx, "global")
	if err != nil {
		t.Fatalf("LatestPreferenceReset: %v", err)
	}
	after, err := s.ListPreferencesSince(ctx, "global", reset.CreatedAt)
	if err != nil {
		t.Fatalf("ListPreferencesSince after reset: %v", err)
	}
	if len(after) != 0 {
		t.Fatalf("expected 0 preferences after reset cutoff, got %d", len(after))
	}
}

func TestProposalPendingUniqueness(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	convID, err := s.GetLatestConversationID(ctx)
	if err != nil {
		t.Fatalf("GetLatestConversationID: %v", err)
	}
	userID, err := s.InsertMessage(ctx, convID, RoleUser, "please be concise", nil)
	if err != nil {
		t.Fatalf("InsertMessage user: %v", err)
	}
	assistantID, err := s.InsertMessage(ctx, convID, RoleAssistant, "ok", nil)
	if err != nil {
		t.Fatalf("InsertMessage assistant: %v", err)
	}

	existing, err := s.GetPendingProposal(ctx, convID)
	if err != nil {
		t.Fatalf("GetPendingProposal: %v", err)
	}
	if existing != nil {
		t.Fatalf("expected no pending proposal initially")
	}

	id, err := s.InsertProposal(ctx, InsertProposalParams{
		ConversationID:     convID,
		Key:                "verbosity",
		Value:              "concise",
		ProposalText:       "Prefer concise answers by default.",
		CausalityMessageID: userID,
		AssistantMessageID: assistantID,
	})
	if err != nil {
		t.Fatalf("InsertProposal: %v", err)
	}

	pending, err := s.GetPendingProposal(ctx, convID)
	if err != nil {
		t.Fatalf("GetPendingProposal: %v", err)
	}
	if pending == nil || pending.ID != id {
		t.Fatalf("expected pending proposal %d, got %+v", id, pending)
	}
}
