package httpserver

import (
	"encoding/json"
	"net/http"

	"mygpt/internal/apperr"
)

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSONError writes an error in the single envelope shape every handler uses.
func WriteJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Error: errorBody{
			Code:    code,
			Message: message,
		},
	})
}

// WriteJSON writes a successful JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError maps a component error (typically an *apperr.Error) to the
// JSON error envelope via apperr.StatusCode/apperr.Code.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSONError(w, apperr.StatusCode(err), apperr.Code(err), err.Error())
}
