package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"mygpt/internal/llm"
	"mygpt/internal/preferences"
	"mygpt/internal/store"
)

// scriptedGateway yields a fixed list of tokens and ignores the prompt entirely.
type scriptedGateway struct {
	tokens []string
}

func (g scriptedGateway) Generate(ctx context.Context, prompt, lastUserMessage string, opts llm.Options) <-chan llm.Token {
	out := make(chan llm.Token)
	go func() {
		defer close(out)
		for _, tok := range g.tokens {
			select {
			case out <- llm.Token{Text: tok}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func newTestOrchestrator(t *testing.T, tokens []string) (*Orchestrator, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	prefs := preferences.NewEngine(s)
	gw := scriptedGateway{tokens: tokens}
	orch := New(s, prefs, gw, Config{ModelURL: func() string { return "http://unused.test" }})
	return orch, s
}

func drainFrames(ch <-chan Frame) []Frame {
	var out []Frame
	for f := range ch {
		out = append(out, f)
	}
	return out
}

func TestChatStreamsTokensThenDone(t *testing.T) {
	orch, _ := newTestOrchestrator(t, []string{"hel", "lo"})

	frames, err := orch.Chat(context.Background(), ChatRequest{Content: "Hello"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	got := drainFrames(frames)
	if len(got) != 3 {
		t.Fatalf("expected 2 token frames + done, got %d: %+v", len(got), got)
	}
	if got[0].Token == nil || *got[0].Token != "hel" {
		t.Fatalf("expected first frame to be token 'hel', got %+v", got[0])
	}
	if got[1].Token == nil || *got[1].Token != "lo" {
		t.Fatalf("expected second frame to be token 'lo', got %+v", got[1])
	}
	if !got[2].Done {
		t.Fatalf("expected final frame to be done, got %+v", got[2])
	}
}

func TestChatClarifyShortCircuitsWithoutLLMCall(t *testing.T) {
	orch, s := newTestOrchestrator(t, []string{"should never be seen"})

	frames, err := orch.Chat(context.Background(), ChatRequest{Content: "ok"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	got := drainFrames(frames)
	if len(got) != 2 {
		t.Fatalf("expected exactly one token frame + done, got %d: %+v", len(got), got)
	}
	want := "Could you describe the task or question you want me to handle?"
	if got[0].Token == nil || *got[0].Token != want {
		t.Fatalf("expected clarifying question %q, got %+v", want, got[0])
	}

	convID, err := s.GetLatestConversationID(context.Background())
	if err != nil {
		t.Fatalf("get latest conversation: %v", err)
	}
	msgs, err := s.ListMessagesForConversation(context.Background(), convID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected user + clarifying assistant message, got %d", len(msgs))
	}
	if msgs[1].Content != want {
		t.Fatalf("expected persisted clarifying message, got %q", msgs[1].Content)
	}
}

func TestChatEmptyContentIsBadRequest(t *testing.T) {
	orch, _ := newTestOrchestrator(t, nil)
	_, err := orch.Chat(context.Background(), ChatRequest{Content: "   "})
	if err == nil {
		t.Fatal("expected an error for empty content")
	}
}

func TestRegenerateRequiresAssistantTarget(t *testing.T) {
	orch, s := newTestOrchestrator(t, []string{"tok"})
	ctx := context.Background()

	convID, err := s.GetLatestConversationID(ctx)
	if err != nil {
		t.Fatalf("get latest conversation: %v", err)
	}
	userMsgID, err := s.InsertMessage(ctx, convID, store.RoleUser, "hi", nil)
	if err != nil {
		t.Fatalf("insert message: %v", err)
	}

	_, err = orch.Regenerate(ctx, RegenerateRequest{TargetMessageID: userMsgID})
	if err == nil {
		t.Fatal("expected an error regenerating a non-assistant message")
	}
}

func TestRegenerateSetsCorrectsMessageIDAndSkipsProposalInference(t *testing.T) {
	orch, s := newTestOrchestrator(t, []string{"new answer"})
	ctx := context.Background()

	convID, err := s.GetLatestConversationID(ctx)
	if err != nil {
		t.Fatalf("get latest conversation: %v", err)
	}
	targetID, err := s.InsertMessage(ctx, convID, store.RoleAssistant, "old answer", nil)
	if err != nil {
		t.Fatalf("insert message: %v", err)
	}

	frames, err := orch.Regenerate(ctx, RegenerateRequest{TargetMessageID: targetID})
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	drainFrames(frames)

	msgs, err := s.ListMessagesForConversation(ctx, convID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	last := msgs[len(msgs)-1]
	if last.CorrectsMessageID == nil || *last.CorrectsMessageID != targetID {
		t.Fatalf("expected corrects_message_id to point at the target, got %+v", last)
	}

	events, err := s.ListEvents(ctx, store.ListEventsFilter{EventType: store.EventRegenerateRequest, ConversationID: &convID})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one regenerate_request event, got %d", len(events))
	}

	proposals, err := s.ListProposals(ctx, convID, string(store.ProposalPending))
	if err != nil {
		t.Fatalf("list proposals: %v", err)
	}
	if len(proposals) != 0 {
		t.Fatalf("expected no proposal from a regenerate, got %d", len(proposals))
	}
}

func TestPendingProposalBlocksNewProposal(t *testing.T) {
	orch, s := newTestOrchestrator(t, []string{"ack"})
	ctx := context.Background()

	convID, err := s.GetLatestConversationID(ctx)
	if err != nil {
		t.Fatalf("get latest conversation: %v", err)
	}
	if _, err := s.InsertProposal(ctx, store.InsertProposalParams{
		ConversationID: convID,
		Key:            "verbosity",
		Value:          "concise",
		ProposalText:   "Prefer concise answers by default.",
	}); err != nil {
		t.Fatalf("insert proposal: %v", err)
	}

	for _, content := range []string{"Please be concise.", "Keep it concise."} {
		frames, err := orch.Chat(ctx, ChatRequest{Content: content, ConversationID: &convID})
		if err != nil {
			t.Fatalf("Chat(%q): %v", content, err)
		}
		drainFrames(frames)
	}

	proposals, err := s.ListProposals(ctx, convID, string(store.ProposalPending))
	if err != nil {
		t.Fatalf("list proposals: %v", err)
	}
	if len(proposals) != 1 {
		t.Fatalf("expected the pre-existing pending proposal to remain the only one, got %d", len(proposals))
	}

	prefs, err := s.ListPreferences(ctx, "global")
	if err != nil {
		t.Fatalf("list preferences: %v", err)
	}
	if len(prefs) != 0 {
		t.Fatalf("expected no preference inserted while a proposal is pending, got %d", len(prefs))
	}
}

func TestChatEmitsProposalBetweenTokensAndDone(t *testing.T) {
	orch, s := newTestOrchestrator(t, []string{"sure, ", "short it is"})
	ctx := context.Background()

	convID, err := s.GetLatestConversationID(ctx)
	if err != nil {
		t.Fatalf("get latest conversation: %v", err)
	}

	first, err := orch.Chat(ctx, ChatRequest{Content: "Please be concise.", ConversationID: &convID})
	if err != nil {
		t.Fatalf("Chat first: %v", err)
	}
	drainFrames(first)

	second, err := orch.Chat(ctx, ChatRequest{Content: "Keep it concise.", ConversationID: &convID})
	if err != nil {
		t.Fatalf("Chat second: %v", err)
	}
	got := drainFrames(second)

	var lastToken, proposalIdx, doneIdx int
	proposalIdx, doneIdx = -1, -1
	for i, f := range got {
		switch {
		case f.Token != nil:
			lastToken = i
		case f.Proposal != nil:
			proposalIdx = i
		case f.Done:
			doneIdx = i
		}
	}
	if proposalIdx == -1 {
		t.Fatalf("expected a proposal frame, got %+v", got)
	}
	if got[proposalIdx].Proposal.Key != "verbosity" || got[proposalIdx].Proposal.Value != "concise" {
		t.Fatalf("expected verbosity=concise proposal, got %+v", got[proposalIdx].Proposal)
	}
	if !(lastToken < proposalIdx && proposalIdx < doneIdx) {
		t.Fatalf("expected tokens < proposal < done ordering, got %+v", got)
	}
}
