package httpserver

import (
	"net/http"
	"strconv"

	"mygpt/internal/apperr"
)

type preferencesResponse struct {
	Scope       string            `json:"scope"`
	Reset       bool              `json:"reset"`
	Preferences map[string]string `json:"preferences"`
}

func (h *handlers) listPreferences(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "global"
	}
	ctx := r.Context()

	effective, err := h.deps.Preferences.Effective(ctx, scope)
	if err != nil {
		WriteError(w, apperr.Internal("load effective preferences", err))
		return
	}
	reset, err := h.deps.Store.LatestPreferenceReset(ctx, scope)
	if err != nil {
		WriteError(w, apperr.Internal("load latest reset", err))
		return
	}
	WriteJSON(w, http.StatusOK, preferencesResponse{
		Scope:       scope,
		Reset:       reset != nil,
		Preferences: effective,
	})
}

type resetPreferencesResponse struct {
	ResetID int64 `json:"reset_id"`
	EventID int64 `json:"event_id"`
}

func (h *handlers) resetPreferences(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := q.Get("scope")

	var conversationID *int64
	if raw := q.Get("conversation_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteJSONError(w, http.StatusBadRequest, "bad_request", "conversation_id must be an integer")
			return
		}
		conversationID = &id
	}
	var causalityMessageID *int64
	if raw := q.Get("causality_message_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteJSONError(w, http.StatusBadRequest, "bad_request", "causality_message_id must be an integer")
			return
		}
		causalityMessageID = &id
	}

	resetID, eventID, err := h.deps.Preferences.Reset(r.Context(), scope, conversationID, causalityMessageID)
	if err != nil {
		WriteError(w, apperr.Internal("reset preferences", err))
		return
	}
	WriteJSON(w, http.StatusOK, resetPreferencesResponse{ResetID: resetID, EventID: eventID})
}
