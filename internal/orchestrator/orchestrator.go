// Package orchestrator drives a chat or regenerate request end to end:
// response-policy gate, prompt assembly, token streaming, cancellation
// handling, and the post-stream persistence and proposal-inference steps.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"

	"mygpt/internal/apperr"
	"mygpt/internal/llm"
	"mygpt/internal/preferences"
	"mygpt/internal/promptassembler"
	"mygpt/internal/responsepolicy"
	"mygpt/internal/store"
)

const stoppedSuffix = "\n\n[stopped]"

// ModelGateway is the subset of *llm.Gateway the orchestrator depends on,
// narrowed to an interface so tests can substitute a scripted fake.
type ModelGateway interface {
	Generate(ctx context.Context, prompt, lastUserMessage string, opts llm.Options) <-chan llm.Token
}

// Frame is one SSE payload. Exactly one of Token, Proposal, or Done is set;
// the HTTP layer marshals whichever field is populated.
type Frame struct {
	Token    *string                   `json:"token,omitempty"`
	Proposal *store.PreferenceProposal `json:"proposal,omitempty"`
	Done     bool                      `json:"done,omitempty"`
}

// Config bundles the orchestrator's environment-driven tunables.
type Config struct {
	LogLLM    bool
	LLMLogDir string
	// ModelURL returns the process-wide active model URL (backed by an
	// atomic holder owned by the caller).
	ModelURL func() string
	// GenOptions carries the generation tunables (n_predict, reasoning
	// format, stop sequences, fallback delay); ModelURL is filled per request.
	GenOptions llm.Options
	Logger     *slog.Logger
}

type Orchestrator struct {
	store   *store.Store
	prefs   *preferences.Engine
	gateway ModelGateway
	cfg     Config
	logger  *slog.Logger
}

func New(s *store.Store, prefs *preferences.Engine, gateway ModelGateway, cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{store: s, prefs: prefs, gateway: gateway, cfg: cfg, logger: logger}
}

// ChatRequest is the input to Chat.
type ChatRequest struct {
	Content        string
	ConversationID *int64
}

// RegenerateRequest is the input to Regenerate.
type RegenerateRequest struct {
	TargetMessageID int64
	ConversationID  *int64
}

// resolveConversation uses the explicit id, else the latest conversation,
// creating "Legacy" if none exists yet; an explicit id must exist.
func (o *Orchestrator) resolveConversation(ctx context.Context, explicit *int64) (int64, error) {
	if explicit != nil {
		exists, err := o.store.ConversationExists(ctx, *explicit)
		if err != nil {
			return 0, apperr.Internal("check conversation", err)
		}
		if !exists {
			return 0, apperr.NotFound("conversation not found")
		}
		return *explicit, nil
	}
	id, err := o.store.GetLatestConversationID(ctx)
	if err != nil {
		return 0, apperr.Internal("resolve latest conversation", err)
	}
	return id, nil
}

// Chat validates the request and runs the synchronous pre-stream work: it
// returns before any SSE frame is written, so a validation or storage
// failure here becomes a plain JSON HTTP error, not a broken stream. The
// returned channel carries the streamed frames and is closed when the
// pipeline finishes.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (<-chan Frame, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperr.BadRequest("content must not be empty")
	}

	conversationID, err := o.resolveConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	lastRole, err := o.store.LastMessageRoleForConversation(ctx, conversationID)
	if err != nil {
		return nil, apperr.Internal("load last message role", err)
	}
	var lastRoleStr *string
	if lastRole != nil {
		s := string(*lastRole)
		lastRoleStr = &s
	}
	decision := responsepolicy.Evaluate(content, lastRoleStr)

	userMessageID, err := o.store.InsertMessage(ctx, conversationID, store.RoleUser, content, nil)
	if err != nil {
		return nil, apperr.Internal("insert user message", err)
	}
	if _, err := o.store.InsertEvent(ctx, store.EventUserPrompt, map[string]any{"content": content}, &conversationID, &userMessageID); err != nil {
		return nil, apperr.Internal("insert user_prompt event", err)
	}

	out := make(chan Frame)
	go o.runChatStream(ctx, conversationID, userMessageID, decision, out)
	return out, nil
}

func (o *Orchestrator) runChatStream(ctx context.Context, conversationID, causalityMessageID int64, decision responsepolicy.Decision, out chan<- Frame) {
	defer close(out)

	if decision.Action == responsepolicy.ActionClarify {
		o.emitClarification(ctx, conversationID, causalityMessageID, decision.Question, out)
		return
	}

	history, err := o.store.ListMessagesForConversation(ctx, conversationID)
	if err != nil {
		o.logger.Error("load history", slog.String("error", err.Error()))
		return
	}
	effective, err := o.prefs.Effective(ctx, "global")
	if err != nil {
		o.logger.Error("load effective preferences", slog.String("error", err.Error()))
		return
	}
	prompt := promptassembler.Assemble(history, effective)

	trace := newTrace(o.cfg.LogLLM, o.cfg.LLMLogDir)
	modelURL := o.modelURL()
	if err := trace.logRequest(ctx, o.store, store.EventLLMRequest, modelURL, prompt, &conversationID, &causalityMessageID); err != nil {
		o.logger.Error("log llm request", slog.String("error", err.Error()))
		return
	}

	lastUser := llm.LastUserMessage(history)
	rawText, stopped := o.stream(ctx, prompt, lastUser, modelURL, out)

	o.finishTurn(ctx, finishTurnParams{
		conversationID:       conversationID,
		causalityMessageID:   causalityMessageID,
		rawText:              rawText,
		stopped:              stopped,
		isRegenerate:         false,
		correctsMessageID:    nil,
		runProposalInference: true,
		trace:                &trace,
		out:                  out,
	})
}

// Regenerate re-derives an assistant message for an existing target,
// excluding it from the prompt history and never running proposal inference.
func (o *Orchestrator) Regenerate(ctx context.Context, req RegenerateRequest) (<-chan Frame, error) {
	target, err := o.store.GetMessage(ctx, req.TargetMessageID)
	if err != nil {
		return nil, apperr.Internal("load target message", err)
	}
	if target == nil {
		return nil, apperr.NotFound("target message not found")
	}
	if target.Role != store.RoleAssistant {
		return nil, apperr.BadRequest("target message is not an assistant message")
	}

	// Prefer the target's own conversation over latest-conversation
	// resolution when the caller didn't name one explicitly.
	explicit := req.ConversationID
	if explicit == nil {
		owner, err := o.store.GetConversationIDForMessage(ctx, req.TargetMessageID)
		if err != nil {
			return nil, apperr.Internal("resolve target conversation", err)
		}
		explicit = owner
	}
	conversationID, err := o.resolveConversation(ctx, explicit)
	if err != nil {
		return nil, err
	}

	out := make(chan Frame)
	go o.runRegenerateStream(ctx, conversationID, req.TargetMessageID, out)
	return out, nil
}

func (o *Orchestrator) runRegenerateStream(ctx context.Context, conversationID, targetMessageID int64, out chan<- Frame) {
	defer close(out)

	if _, err := o.store.InsertEvent(ctx, store.EventRegenerateRequest, map[string]any{"target_message_id": targetMessageID}, &conversationID, &targetMessageID); err != nil {
		o.logger.Error("insert regenerate_request event", slog.String("error", err.Error()))
		return
	}

	history, err := o.store.ListMessagesForConversation(ctx, conversationID)
	if err != nil {
		o.logger.Error("load history", slog.String("error", err.Error()))
		return
	}
	filtered := history[:0:0]
	for _, m := range history {
		if m.ID != targetMessageID {
			filtered = append(filtered, m)
		}
	}

	effective, err := o.prefs.Effective(ctx, "global")
	if err != nil {
		o.logger.Error("load effective preferences", slog.String("error", err.Error()))
		return
	}
	prompt := promptassembler.Assemble(filtered, effective)

	trace := newTrace(o.cfg.LogLLM, o.cfg.LLMLogDir)
	modelURL := o.modelURL()
	if err := trace.logRequest(ctx, o.store, store.EventLLMRegenRequest, modelURL, prompt, &conversationID, &targetMessageID); err != nil {
		o.logger.Error("log llm request", slog.String("error", err.Error()))
		return
	}

	lastUser := llm.LastUserMessage(filtered)
	rawText, stopped := o.stream(ctx, prompt, lastUser, modelURL, out)

	o.finishTurn(ctx, finishTurnParams{
		conversationID:       conversationID,
		causalityMessageID:   targetMessageID,
		rawText:              rawText,
		stopped:              stopped,
		isRegenerate:         true,
		correctsMessageID:    &targetMessageID,
		runProposalInference: false,
		trace:                &trace,
		out:                  out,
	})
}

// stream drains the Model Gateway, relaying every token as a Frame and
// watching ctx for client disconnect or cancellation.
func (o *Orchestrator) stream(ctx context.Context, prompt, lastUserMessage, modelURL string, out chan<- Frame) (rawText string, stopped bool) {
	var sb strings.Builder
	opts := o.cfg.GenOptions
	opts.ModelURL = modelURL
	tokens := o.gateway.Generate(ctx, prompt, lastUserMessage, opts)

	for {
		select {
		case <-ctx.Done():
			return sb.String(), true
		case tok, ok := <-tokens:
			if !ok {
				return sb.String(), false
			}
			sb.WriteString(tok.Text)
			select {
			case out <- Frame{Token: &tok.Text}:
			case <-ctx.Done():
				return sb.String(), true
			}
		}
	}
}

func (o *Orchestrator) emitClarification(ctx context.Context, conversationID, causalityMessageID int64, question string, out chan<- Frame) {
	if _, err := o.store.InsertMessage(ctx, conversationID, store.RoleAssistant, question, nil); err != nil {
		o.logger.Error("persist clarifying message", slog.String("error", err.Error()))
		return
	}
	q := question
	select {
	case out <- Frame{Token: &q}:
	case <-ctx.Done():
		return
	}
	select {
	case out <- Frame{Done: true}:
	case <-ctx.Done():
	}
}

type finishTurnParams struct {
	conversationID       int64
	causalityMessageID   int64
	rawText              string
	stopped              bool
	isRegenerate         bool
	correctsMessageID    *int64
	runProposalInference bool
	trace                *llmTrace
	out                  chan<- Frame
}

// finishTurn runs the post-stream tail of a turn: cleanup always runs;
// persistence and proposal inference only when cleanup leaves non-empty
// text; the terminal frame sequence is skipped entirely when the stream was
// stopped.
func (o *Orchestrator) finishTurn(ctx context.Context, p finishTurnParams) {
	// Persistence must survive client disconnect: the request context is
	// already canceled on the stopped path, but the partial text (with its
	// [stopped] suffix) still has to land in the store.
	storeCtx := context.WithoutCancel(ctx)

	raw := p.rawText
	if p.stopped && raw != "" {
		raw += stoppedSuffix
	}
	cleaned := cleanupAssistantText(raw)

	var newProposal *store.PreferenceProposal
	if cleaned != "" {
		assistantMessageID, err := o.store.InsertMessage(storeCtx, p.conversationID, store.RoleAssistant, cleaned, p.correctsMessageID)
		if err != nil {
			o.logger.Error("persist assistant message", slog.String("error", err.Error()))
		} else {
			if p.runProposalInference && !p.stopped {
				newProposal = o.tryInferProposal(storeCtx, p.conversationID, p.causalityMessageID, assistantMessageID)
			}
			if !p.isRegenerate {
				if _, err := o.store.InsertEvent(storeCtx, store.EventAssistantResponse, map[string]any{"content": cleaned}, &p.conversationID, &assistantMessageID); err != nil {
					o.logger.Error("insert assistant_response event", slog.String("error", err.Error()))
					return
				}
			}
		}
	}

	if p.trace.enabled {
		if err := p.trace.logResponse(storeCtx, o.store, raw, cleaned, p.stopped, &p.conversationID, &p.causalityMessageID); err != nil {
			o.logger.Error("log llm response", slog.String("error", err.Error()))
		}
	}

	if p.stopped {
		return
	}
	if newProposal != nil {
		select {
		case p.out <- Frame{Proposal: newProposal}:
		case <-ctx.Done():
			return
		}
	}
	select {
	case p.out <- Frame{Done: true}:
	case <-ctx.Done():
	}
}

// tryInferProposal runs the preference engine's inference over the last six
// user turns and inserts a pending proposal on a hit. At most one proposal
// per conversation may be pending, so an existing pending row wins.
func (o *Orchestrator) tryInferProposal(ctx context.Context, conversationID, causalityMessageID, assistantMessageID int64) *store.PreferenceProposal {
	pending, err := o.store.GetPendingProposal(ctx, conversationID)
	if err != nil || pending != nil {
		return nil
	}

	history, err := o.store.ListMessagesForConversation(ctx, conversationID)
	if err != nil {
		return nil
	}
	var recentUser []string
	for _, m := range history {
		if m.Role == store.RoleUser {
			recentUser = append(recentUser, m.Content)
		}
	}

	effective, err := o.prefs.Effective(ctx, "global")
	if err != nil {
		return nil
	}

	winner := preferences.InferProposal(recentUser, effective)
	if winner == nil {
		return nil
	}

	text, rationale := preferences.ProposalText(winner.Key, winner.Value)
	proposalID, err := o.store.InsertProposal(ctx, store.InsertProposalParams{
		ConversationID:     conversationID,
		Key:                winner.Key,
		Value:              winner.Value,
		ProposalText:       text,
		Rationale:          &rationale,
		CausalityMessageID: causalityMessageID,
		AssistantMessageID: assistantMessageID,
	})
	if err != nil {
		return nil
	}
	row, err := o.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil
	}
	return row
}

func (o *Orchestrator) modelURL() string {
	if o.cfg.ModelURL == nil {
		return ""
	}
	return o.cfg.ModelURL()
}
