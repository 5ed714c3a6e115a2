package httpserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"log/slog"

	"mygpt/internal/config"
	"mygpt/internal/llm"
	"mygpt/internal/orchestrator"
	"mygpt/internal/preferences"
	"mygpt/internal/runtimestate"
	"mygpt/internal/store"
	"mygpt/internal/tools"
)

// scriptedGateway yields a fixed list of tokens regardless of the prompt,
// mirroring internal/orchestrator's test fake.
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

func newTestServer(t *testing.T, tokens []string) *httptest.Server {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	prefs := preferences.NewEngine(s)
	gw := scriptedGateway{tokens: tokens}
	orch := orchestrator.New(s, prefs, gw, orchestrator.Config{ModelURL: func() string { return "http://unused.test" }})

	repoRoot := t.TempDir()
	toolCtx, err := tools.NewContext(config.ToolsConfig{Roots: []string{repoRoot}}, repoRoot, dbPath)
	if err != nil {
		t.Fatalf("tools.NewContext: %v", err)
	}
	toolRegistry := tools.NewDefaultRegistry()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(RouterDeps{
		Logger:       logger,
		Store:        s,
		Preferences:  prefs,
		Orchestrator: orch,
		Tools:        toolRegistry,
		ToolContext:  toolCtx,
		ModelURL:     runtimestate.NewModelURLHolder("http://unused.test"),
	})
	return httptest.NewServer(router)
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %+v", body)
	}
}

func TestCreateAndListMessages(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"role": "user", "content": "hello"})
	resp, err := http.Post(srv.URL+"/messages", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /messages: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	listResp, err := http.Get(srv.URL + "/messages")
	if err != nil {
		t.Fatalf("GET /messages: %v", err)
	}
	defer listResp.Body.Close()
	var msgs []store.Message
	if err := json.NewDecoder(listResp.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Fatalf("expected one message 'hello', got %+v", msgs)
	}
}

func TestCreateMessageRejectsEmptyContent(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"role": "user", "content": "   "})
	resp, err := http.Post(srv.URL+"/messages", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /messages: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// readSSEFrames reads every "data: ..." line from an SSE response body and
// decodes each into an orchestrator.Frame.
func readSSEFrames(t *testing.T, body io.Reader) []orchestrator.Frame {
	t.Helper()
	var frames []orchestrator.Frame
	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var f orchestrator.Frame
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &f); err != nil {
			t.Fatalf("decode SSE frame: %v", err)
		}
		frames = append(frames, f)
	}
	return frames
}

func TestChatEndpointStreamsSSE(t *testing.T) {
	srv := newTestServer(t, []string{"hel", "lo"})
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"content": "Hello"})
	resp, err := http.Post(srv.URL+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /chat: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	frames := readSSEFrames(t, resp.Body)
	if len(frames) != 3 {
		t.Fatalf("expected 2 token frames + done, got %d: %+v", len(frames), frames)
	}
	if frames[0].Token == nil || *frames[0].Token != "hel" {
		t.Fatalf("expected first frame token 'hel', got %+v", frames[0])
	}
	if !frames[2].Done {
		t.Fatalf("expected final frame to be done, got %+v", frames[2])
	}
}

func TestChatEndpointRejectsEmptyContent(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"content": "   "})
	resp, err := http.Post(srv.URL+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /chat: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestRegenerateEndpointRejectsMissingTarget(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"target_message_id": 9999})
	resp, err := http.Post(srv.URL+"/regenerate", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /regenerate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing target, got %d", resp.StatusCode)
	}
}

func TestToolRunRequiresCausalityMessageID(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"tool_id": "stat_path", "tool_input": map[string]any{"path": "."}})
	resp, err := http.Post(srv.URL+"/tools/run", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /tools/run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without causality_message_id, got %d", resp.StatusCode)
	}
}

func TestToolRunAppendsToolRunEvent(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	// Seed a message to act as the causality anchor.
	msgBody, _ := json.Marshal(map[string]any{"role": "user", "content": "inspect"})
	msgResp, err := http.Post(srv.URL+"/messages", "application/json", bytes.NewReader(msgBody))
	if err != nil {
		t.Fatalf("POST /messages: %v", err)
	}
	var created map[string]int64
	if err := json.NewDecoder(msgResp.Body).Decode(&created); err != nil {
		t.Fatalf("decode message id: %v", err)
	}
	msgResp.Body.Close()

	body, _ := json.Marshal(map[string]any{
		"tool_id":              "stat_path",
		"tool_input":           map[string]any{"path": "."},
		"causality_message_id": created["id"],
	})
	resp, err := http.Post(srv.URL+"/tools/run", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /tools/run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	eventsResp, err := http.Get(srv.URL + "/events?event_type=tool_run")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer eventsResp.Body.Close()
	var events eventsResponse
	if err := json.NewDecoder(eventsResp.Body).Decode(&events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if len(events.Events) != 1 {
		t.Fatalf("expected one tool_run event, got %d", len(events.Events))
	}
}

func TestModelEndpointsRoundtrip(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"model_url": "http://127.0.0.1:9999"})
	resp, err := http.Post(srv.URL+"/model", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /model: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	getResp, err := http.Get(srv.URL + "/model")
	if err != nil {
		t.Fatalf("GET /model: %v", err)
	}
	defer getResp.Body.Close()
	var body2 map[string]string
	if err := json.NewDecoder(getResp.Body).Decode(&body2); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body2["model_url"] != "http://127.0.0.1:9999" {
		t.Fatalf("expected updated model_url, got %+v", body2)
	}
}

func TestPreferencesResetRoundtrip(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/preferences")
	if err != nil {
		t.Fatalf("GET /preferences: %v", err)
	}
	var before preferencesResponse
	if err := json.NewDecoder(resp.Body).Decode(&before); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	resp.Body.Close()
	if before.Reset {
		t.Fatalf("expected no reset yet, got %+v", before)
	}

	resetResp, err := http.Post(srv.URL+"/preferences/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /preferences/reset: %v", err)
	}
	if resetResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resetResp.StatusCode)
	}
	resetResp.Body.Close()

	after, err := http.Get(srv.URL + "/preferences")
	if err != nil {
		t.Fatalf("GET /preferences: %v", err)
	}
	defer after.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(after.Body).Decode(&body); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if body["reset"] != true {
		t.Fatalf("expected reset=true after POST /preferences/reset, got %+v", body)
	}
}
