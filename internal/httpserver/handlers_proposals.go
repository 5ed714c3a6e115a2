package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"mygpt/internal/apperr"
	"mygpt/internal/store"
)

type proposalsResponse struct {
	Proposals []store.PreferenceProposal `json:"proposals"`
}

func (h *handlers) listProposals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status == "" {
		status = string(store.ProposalPending)
	}

	ctx := r.Context()
	var conversationID int64
	var err error
	if raw := q.Get("conversation_id"); raw != "" {
		conversationID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteJSONError(w, http.StatusBadRequest, "bad_request", "conversation_id must be an integer")
			return
		}
	} else {
		conversationID, err = h.deps.Store.GetLatestConversationID(ctx)
		if err != nil {
			WriteError(w, apperr.Internal("resolve latest conversation", err))
			return
		}
	}

	proposals, err := h.deps.Store.ListProposals(ctx, conversationID, status)
	if err != nil {
		WriteError(w, apperr.Internal("list proposals", err))
		return
	}
	if proposals == nil {
		proposals = []store.PreferenceProposal{}
	}
	WriteJSON(w, http.StatusOK, proposalsResponse{Proposals: proposals})
}

func (h *handlers) loadPendingProposal(r *http.Request) (*store.PreferenceProposal, error) {
	idParam := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		return nil, apperr.BadRequest("proposal id must be an integer")
	}
	proposal, err := h.deps.Store.GetProposal(r.Context(), id)
	if err != nil {
		return nil, apperr.Internal("load proposal", err)
	}
	if proposal == nil {
		return nil, apperr.NotFound("proposal not found")
	}
	if proposal.Status != store.ProposalPending {
		return nil, apperr.Conflict("proposal is not pending")
	}
	return proposal, nil
}

type approveProposalResponse struct {
	PreferenceID int64 `json:"preference_id"`
	EventID      int64 `json:"event_id"`
}

func (h *handlers) approveProposal(w http.ResponseWriter, r *http.Request) {
	proposal, err := h.loadPendingProposal(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	preferenceID, eventID, err := h.deps.Preferences.Approve(r.Context(), proposal)
	if err != nil {
		WriteError(w, apperr.Internal("approve proposal", err))
		return
	}
	WriteJSON(w, http.StatusOK, approveProposalResponse{PreferenceID: preferenceID, EventID: eventID})
}

type rejectProposalResponse struct {
	EventID int64 `json:"event_id"`
}

func (h *handlers) rejectProposal(w http.ResponseWriter, r *http.Request) {
	proposal, err := h.loadPendingProposal(r)
	if err != nil {
		WriteError(w, err)
		return
	}
	eventID, err := h.deps.Preferences.Reject(r.Context(), proposal)
	if err != nil {
		WriteError(w, apperr.Internal("reject proposal", err))
		return
	}
	WriteJSON(w, http.StatusOK, rejectProposalResponse{EventID: eventID})
}
