package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"log/slog"

	"mygpt/internal/config"
	"mygpt/internal/httpserver"
	"mygpt/internal/llm"
	"mygpt/internal/orchestrator"
	"mygpt/internal/preferences"
	"mygpt/internal/runtimestate"
	"mygpt/internal/store"
	"mygpt/internal/tools"
	"mygpt/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogDir)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	// promptassembler's init() verifies the embedded base system prompt's
	// hash and panics on mismatch before any request can be served.
	ctx := context.Background()
	s, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	prefsEngine := preferences.NewEngine(s)

	// The completion stream has no overall deadline (the client ends it by
	// disconnecting); HTTP_CLIENT_TIMEOUT bounds only the wait for the
	// inference server's response headers.
	httpClient := transport.NewHTTPClient(0)
	if t, ok := httpClient.Transport.(*http.Transport); ok {
		t.ResponseHeaderTimeout = cfg.RequestTimeout
	}
	gateway := llm.NewGateway(httpClient)

	modelURL := runtimestate.NewModelURLHolder(llm.ResolveModelURL(cfg.ModelURL))

	orch := orchestrator.New(s, prefsEngine, gateway, orchestrator.Config{
		LogLLM:    cfg.LogLLM,
		LLMLogDir: cfg.LLMLogDir,
		ModelURL:  modelURL.Get,
		GenOptions: llm.Options{
			NPredict:           cfg.NPredict,
			ReasoningFormat:    cfg.ReasoningFormat,
			ReasoningInContent: cfg.ReasoningInContent,
			StopSequences:      cfg.StopSequences,
			FallbackWordDelay:  cfg.FallbackStreamDelay,
		},
		Logger: logger,
	})

	repoRoot, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to determine working directory: %v", err)
	}
	toolCtx, err := tools.NewContext(cfg.Tools, repoRoot, s.DBPath())
	if err != nil {
		log.Fatalf("failed to build tool context: %v", err)
	}
	toolRegistry := tools.NewDefaultRegistry()

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:       logger,
		Store:        s,
		Preferences:  prefsEngine,
		Orchestrator: orch,
		Tools:        toolRegistry,
		ToolContext:  toolCtx,
		ModelURL:     modelURL,
		CORSOrigins:  cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
		// No overall WriteTimeout: SSE streams can run as long as the model
		// keeps generating, bounded only by client disconnect.
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-stopCtx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// newLogger writes structured JSON lines to stdout and, when logDir is set,
// mirrors them into {logDir}/server.log.
func newLogger(level, logDir string) (*slog.Logger, error) {
	slogLevel := slog.LevelInfo
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}

	var out io.Writer = os.Stdout
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(logDir, "server.log"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open server log: %w", err)
		}
		out = io.MultiWriter(os.Stdout, f)
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slogLevel})), nil
}
