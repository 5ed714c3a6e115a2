package httpserver

import (
	"encoding/json"
	"net/http"

	"mygpt/internal/apperr"
	"mygpt/internal/store"
)

type modelResponse struct {
	ModelURL string `json:"model_url"`
}

func (h *handlers) getModel(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, modelResponse{ModelURL: h.deps.ModelURL.Get()})
}

type setModelRequest struct {
	ModelURL string `json:"model_url"`
}

// setModel updates the process-wide active model URL and records a
// model_switch event.
func (h *handlers) setModel(w http.ResponseWriter, r *http.Request) {
	var req setModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.ModelURL == "" {
		WriteJSONError(w, http.StatusBadRequest, "bad_request", "model_url must not be empty")
		return
	}

	previous := h.deps.ModelURL.Get()
	h.deps.ModelURL.Set(req.ModelURL)

	payload := map[string]any{"previous_url": previous, "new_url": req.ModelURL}
	if _, err := h.deps.Store.InsertEvent(r.Context(), store.EventModelSwitch, payload, nil, nil); err != nil {
		WriteError(w, apperr.Internal("insert model_switch event", err))
		return
	}
	WriteJSON(w, http.StatusOK, modelResponse{ModelURL: req.ModelURL})
}
