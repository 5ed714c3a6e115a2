package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func drain(ch <-chan Token) string {
	var sb strings.Builder
	for tok := range ch {
		sb.WriteString(tok.Text)
	}
	return sb.String()
}

func TestGenerateStreamsTokensFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"content":"hel"}`+"\n\n")
		fmt.Fprint(w, `data: {"content":"lo"}`+"\n\n")
		fmt.Fprint(w, `data: [DONE]`+"\n\n")
	}))
	defer srv.Close()

	gw := NewGateway(srv.Client())
	out := gw.Generate(context.Background(), "prompt", "hi", Options{ModelURL: srv.URL})
	got := drain(out)
	if got != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestGenerateStopsOnStopFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"content":"one"}`+"\n\n")
		fmt.Fprint(w, `data: {"content":"two","stop":true}`+"\n\n")
		fmt.Fprint(w, `data: {"content":"never"}`+"\n\n")
	}))
	defer srv.Close()

	gw := NewGateway(srv.Client())
	out := gw.Generate(context.Background(), "prompt", "hi", Options{ModelURL: srv.URL})
	got := drain(out)
	if got != "onetwo" {
		t.Fatalf("expected stream to stop at the stop frame, got %q", got)
	}
}

func TestGenerateFallsBackWhenServerUnreachable(t *testing.T) {
	gw := NewGateway(&http.Client{Timeout: time.Second})
	out := gw.Generate(context.Background(), "prompt", "Hello", Options{
		ModelURL:          "http://127.0.0.1:1", // nothing listens here
		FallbackWordDelay: time.Millisecond,
	})
	got := drain(out)
	if !strings.Contains(got, "(no model server) Echo: Hello") {
		t.Fatalf("expected fallback echo, got %q", got)
	}
}

func TestGenerateFallsBackOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := NewGateway(srv.Client())
	out := gw.Generate(context.Background(), "prompt", "ping", Options{
		ModelURL:          srv.URL,
		FallbackWordDelay: time.Millisecond,
	})
	got := drain(out)
	if !strings.Contains(got, "(no model server) Echo: ping") {
		t.Fatalf("expected fallback echo on 500, got %q", got)
	}
}

func TestResolveStopSequencesParsesJSONList(t *testing.T) {
	t.Setenv("MYGPT_STOP_SEQS", `["\nEND", "\nSTOP"]`)
	got := ResolveStopSequences(nil)
	if len(got) != 2 || got[0] != "\nEND" {
		t.Fatalf("expected JSON-parsed stop sequences, got %v", got)
	}
}

func TestResolveStopSequencesParsesNewlineList(t *testing.T) {
	t.Setenv("MYGPT_STOP_SEQS", "\nEND\n\nSTOP")
	got := ResolveStopSequences(nil)
	if len(got) != 2 {
		t.Fatalf("expected two newline-separated stop sequences, got %v", got)
	}
}

func TestResolveModelURLPrecedence(t *testing.T) {
	t.Setenv("MYGPT_MODEL_URL", "http://example.test")
	if got := ResolveModelURL("http://explicit.test"); got != "http://explicit.test" {
		t.Fatalf("explicit argument should win, got %q", got)
	}
	if got := ResolveModelURL(""); got != "http://example.test" {
		t.Fatalf("expected env value, got %q", got)
	}
}
