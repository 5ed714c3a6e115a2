package httpserver

import (
	"encoding/json"
	"net/http"

	"mygpt/internal/store"
)

func (h *handlers) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.deps.Store.ListConversations(r.Context())
	if err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if convs == nil {
		convs = []store.Conversation{}
	}
	WriteJSON(w, http.StatusOK, convs)
}

type createConversationRequest struct {
	Title *string `json:"title"`
}

func (h *handlers) createConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	id, err := h.deps.Store.CreateConversation(r.Context(), req.Title)
	if err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"id": id})
}
