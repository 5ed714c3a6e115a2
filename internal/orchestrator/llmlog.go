package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"mygpt/internal/store"
)

// llmTrace carries the bookkeeping for one optional LLM-log side channel
// invocation, active only when LogLLM is set.
type llmTrace struct {
	enabled    bool
	dir        string
	traceID    string
	promptPath string
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newTrace(enabled bool, dir string) llmTrace {
	return llmTrace{enabled: enabled, dir: dir}
}

// stringsTraceID generates a fresh 128-bit random hex trace id (a uuid v4
// with its dashes removed).
func stringsTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// logRequest writes the prompt file and inserts the llm_request (or
// llm_regenerate_request) event; it is a no-op when tracing is disabled.
func (t *llmTrace) logRequest(ctx context.Context, s *store.Store, eventType, modelURL, prompt string, conversationID, causalityMessageID *int64) error {
	if !t.enabled {
		return nil
	}
	t.traceID = stringsTraceID()

	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return fmt.Errorf("create llm log dir: %w", err)
	}
	t.promptPath = filepath.Join(t.dir, t.traceID+".prompt.txt")
	if err := os.WriteFile(t.promptPath, []byte(prompt), 0o644); err != nil {
		return fmt.Errorf("write prompt log: %w", err)
	}

	payload := map[string]any{
		"trace_id":      t.traceID,
		"model_url":     modelURL,
		"prompt_path":   t.promptPath,
		"prompt_sha256": sha256Hex(prompt),
	}
	if _, err := s.InsertEvent(ctx, eventType, payload, conversationID, causalityMessageID); err != nil {
		return fmt.Errorf("insert %s event: %w", eventType, err)
	}
	return nil
}

// logResponse writes the raw and cleaned response files and inserts the
// llm_response event; a no-op when tracing is disabled.
func (t *llmTrace) logResponse(ctx context.Context, s *store.Store, rawResponse, cleanedResponse string, stopped bool, conversationID, causalityMessageID *int64) error {
	if !t.enabled {
		return nil
	}
	responsePath := filepath.Join(t.dir, t.traceID+".response.txt")
	cleanedPath := filepath.Join(t.dir, t.traceID+".response.cleaned.txt")
	if err := os.WriteFile(responsePath, []byte(rawResponse), 0o644); err != nil {
		return fmt.Errorf("write response log: %w", err)
	}
	if err := os.WriteFile(cleanedPath, []byte(cleanedResponse), 0o644); err != nil {
		return fmt.Errorf("write cleaned response log: %w", err)
	}

	payload := map[string]any{
		"trace_id":                t.traceID,
		"response_sha256":         sha256Hex(rawResponse),
		"response_cleaned_sha256": sha256Hex(cleanedResponse),
		"stopped":                 stopped,
	}
	if _, err := s.InsertEvent(ctx, store.EventLLMResponse, payload, conversationID, causalityMessageID); err != nil {
		return fmt.Errorf("insert llm_response event: %w", err)
	}
	return nil
}
