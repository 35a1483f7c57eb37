package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"taskmap-backend/core"
	"taskmap-backend/storage"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
}

// Error sends a standardized error response
func Error(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// ResolveError maps the error taxonomy onto HTTP status codes. Guard
// rejections are conflicts, chain reverts are unprocessable, and
// infrastructure failures are 5xx so callers can retry.
func ResolveError(w http.ResponseWriter, err error) {
	var needs *core.NeedsActionError
	if errors.As(err, &needs) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: needs.Reason, Action: needs.Action})
		return
	}
	var invalid *core.ValidationError
	if errors.As(err, &invalid) {
		Error(w, http.StatusBadRequest, invalid.Error())
		return
	}
	if core.IsGuardRejected(err) {
		Error(w, http.StatusConflict, err.Error())
		return
	}
	if errors.Is(err, storage.ErrTaskNotFound) {
		Error(w, http.StatusNotFound, "task not found")
		return
	}
	switch core.ChainKind(err) {
	case core.ChainRejected:
		Error(w, http.StatusUnprocessableEntity, err.Error())
		return
	case core.WrongNetwork, core.NoContractCode:
		Error(w, http.StatusBadGateway, err.Error())
		return
	case core.ChainUnavailable:
		Error(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	var storeErr *core.StoreError
	if errors.As(err, &storeErr) {
		Error(w, http.StatusServiceUnavailable, storeErr.Error())
		return
	}
	Error(w, http.StatusInternalServerError, err.Error())
}
