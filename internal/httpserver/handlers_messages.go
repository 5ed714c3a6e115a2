package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"mygpt/internal/apperr"
	"mygpt/internal/store"
)

func (h *handlers) listMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID, err := h.resolveConversationQueryParam(r)
	if err != nil {
		WriteError(w, err)
		return
	}

	msgs, err := h.deps.Store.ListMessagesForConversation(ctx, conversationID)
	if err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	WriteJSON(w, http.StatusOK, msgs)
}

// resolveConversationQueryParam reads ?conversation_id= if present, else
// defaults to the latest conversation.
func (h *handlers) resolveConversationQueryParam(r *http.Request) (int64, error) {
	ctx := r.Context()
	raw := r.URL.Query().Get("conversation_id")
	if raw == "" {
		return h.deps.Store.GetLatestConversationID(ctx)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.BadRequest("conversation_id must be an integer")
	}
	exists, err := h.deps.Store.ConversationExists(ctx, id)
	if err != nil {
		return 0, apperr.Internal("check conversation", err)
	}
	if !exists {
		return 0, apperr.NotFound("conversation not found")
	}
	return id, nil
}

type createMessageRequest struct {
	Role              string `json:"role"`
	Content           string `json:"content"`
	CorrectsMessageID *int64 `json:"corrects_message_id"`
	ConversationID    *int64 `json:"conversation_id"`
}

func (h *handlers) createMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		WriteJSONError(w, http.StatusBadRequest, "bad_request", "content must not be empty")
		return
	}
	role := store.Role(req.Role)
	if role != store.RoleUser && role != store.RoleAssistant {
		WriteJSONError(w, http.StatusBadRequest, "bad_request", "role must be user or assistant")
		return
	}

	ctx := r.Context()
	var conversationID int64
	var err error
	if req.ConversationID != nil {
		conversationID = *req.ConversationID
		exists, existsErr := h.deps.Store.ConversationExists(ctx, conversationID)
		if existsErr != nil {
			WriteError(w, apperr.Internal("check conversation", existsErr))
			return
		}
		if !exists {
			WriteError(w, apperr.NotFound("conversation not found"))
			return
		}
	} else {
		conversationID, err = h.deps.Store.GetLatestConversationID(ctx)
		if err != nil {
			WriteError(w, apperr.Internal("resolve latest conversation", err))
			return
		}
	}

	id, err := h.deps.Store.InsertMessage(ctx, conversationID, role, content, req.CorrectsMessageID)
	if err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"id": id})
}
