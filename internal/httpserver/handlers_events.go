package httpserver

import (
	"net/http"
	"strconv"

	"mygpt/internal/apperr"
	"mygpt/internal/store"
)

type eventsResponse struct {
	Events []store.Event `json:"events"`
}

// listEvents is a read-side audit view over the event log.
func (h *handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListEventsFilter{EventType: q.Get("event_type")}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			WriteJSONError(w, http.StatusBadRequest, "bad_request", "limit must be an integer")
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("conversation_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteJSONError(w, http.StatusBadRequest, "bad_request", "conversation_id must be an integer")
			return
		}
		filter.ConversationID = &id
	}

	events, err := h.deps.Store.ListEvents(r.Context(), filter)
	if err != nil {
		WriteError(w, apperr.Internal("list events", err))
		return
	}
	if events == nil {
		events = []store.Event{}
	}
	WriteJSON(w, http.StatusOK, eventsResponse{Events: events})
}
