package httpserver

import (
	"encoding/json"
	"net/http"

	"mygpt/internal/orchestrator"
)

type chatRequest struct {
	Content        string `json:"content"`
	ConversationID *int64 `json:"conversation_id"`
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	frames, err := h.deps.Orchestrator.Chat(r.Context(), orchestrator.ChatRequest{
		Content:        req.Content,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	streamSSE(w, r, frames)
}

type regenerateRequest struct {
	TargetMessageID int64  `json:"target_message_id"`
	ConversationID  *int64 `json:"conversation_id"`
}

func (h *handlers) regenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	frames, err := h.deps.Orchestrator.Regenerate(r.Context(), orchestrator.RegenerateRequest{
		TargetMessageID: req.TargetMessageID,
		ConversationID:  req.ConversationID,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	streamSSE(w, r, frames)
}

// streamSSE relays Frame values onto the response as "data: <json>\n\n",
// flushing after every frame. The Orchestrator already stops writing frames
// to the channel once the request context is done (client disconnect), so
// this loop only needs to drain the channel until it closes.
func streamSSE(w http.ResponseWriter, r *http.Request, frames <-chan orchestrator.Frame) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)

	for frame := range frames {
		payload, err := json.Marshal(frame)
		if err != nil {
			continue
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return
		}
		if _, err := w.Write(payload); err != nil {
			return
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}
