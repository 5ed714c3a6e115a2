package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"mygpt/internal/middleware"
	"mygpt/internal/orchestrator"
	"mygpt/internal/preferences"
	"mygpt/internal/runtimestate"
	"mygpt/internal/store"
	"mygpt/internal/tools"
)

// RouterDeps bundles every collaborator a handler might need.
type RouterDeps struct {
	Logger       *slog.Logger
	Store        *store.Store
	Preferences  *preferences.Engine
	Orchestrator *orchestrator.Orchestrator
	Tools        *tools.Registry
	ToolContext  *tools.Context
	ModelURL     *runtimestate.ModelURLHolder
	CORSOrigins  []string
}

// NewRouter assembles the chi router with the ambient middleware stack and
// the full HTTP surface.
func NewRouter(deps RouterDeps) http.Handler {
	h := &handlers{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))
	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		}))
	}

	r.Get("/health", h.health)

	r.Get("/conversations", h.listConversations)
	r.Post("/conversations", h.createConversation)

	r.Get("/messages", h.listMessages)
	r.Post("/messages", h.createMessage)

	r.Post("/chat", h.chat)
	r.Post("/regenerate", h.regenerate)

	r.Get("/preferences", h.listPreferences)
	r.Post("/preferences/reset", h.resetPreferences)

	r.Get("/preference-proposals", h.listProposals)
	r.Post("/preference-proposals/{id}/approve", h.approveProposal)
	r.Post("/preference-proposals/{id}/reject", h.rejectProposal)

	r.Get("/tools", h.listTools)
	r.Post("/tools/run", h.runTool)

	r.Get("/events", h.listEvents)

	r.Get("/model", h.getModel)
	r.Post("/model", h.setModel)

	return r
}
