package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"mygpt/internal/apperr"
	"mygpt/internal/store"
)

type toolsResponse struct {
	Tools []toolDefinition `json:"tools"`
}

type toolDefinition struct {
	ToolID               string         `json:"tool_id"`
	Description          string         `json:"description"`
	InputSchema          map[string]any `json:"input_schema"`
	OutputSchema         map[string]any `json:"output_schema"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	RequiresNetwork      bool           `json:"requires_network"`
}

func (h *handlers) listTools(w http.ResponseWriter, r *http.Request) {
	defs := h.deps.Tools.Definitions()
	out := make([]toolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, toolDefinition{
			ToolID:               d.ToolID,
			Description:          d.Description,
			InputSchema:          d.InputSchema,
			OutputSchema:         d.OutputSchema,
			RequiresConfirmation: d.RequiresConfirmation,
			RequiresNetwork:      d.RequiresNetwork,
		})
	}
	WriteJSON(w, http.StatusOK, toolsResponse{Tools: out})
}

type runToolRequest struct {
	ToolID             string          `json:"tool_id"`
	ToolInput          json.RawMessage `json:"tool_input"`
	CausalityMessageID *int64          `json:"causality_message_id"`
	ConversationID     *int64          `json:"conversation_id"`
	Confirmed          bool            `json:"confirmed"`
}

type runToolResponse struct {
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// runTool executes a tool and always appends a tool_run event, whether the
// tool succeeded or not; failures are reported in the response body, not as
// an HTTP error.
func (h *handlers) runTool(w http.ResponseWriter, r *http.Request) {
	var req runToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.CausalityMessageID == nil {
		WriteJSONError(w, http.StatusBadRequest, "bad_request", "causality_message_id is required")
		return
	}

	ctx := r.Context()
	start := time.Now()
	output, runErr := h.deps.Tools.Run(ctx, req.ToolID, req.ToolInput, h.deps.ToolContext, req.Confirmed)
	duration := time.Since(start)

	resp := runToolResponse{Success: runErr == nil, Output: output}
	if runErr != nil {
		resp.Error = runErr.Error()
	}

	payload := map[string]any{
		"tool_id":      req.ToolID,
		"success":      resp.Success,
		"duration_sec": duration.Seconds(),
	}
	if runErr != nil {
		payload["error"] = runErr.Error()
	}
	if _, err := h.deps.Store.InsertEvent(ctx, store.EventToolRun, payload, req.ConversationID, req.CausalityMessageID); err != nil {
		WriteError(w, apperr.Internal("insert tool_run event", err))
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}
