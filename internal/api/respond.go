package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Maphikza/ln-settlement-bridge/internal/bridgeerr"
	"github.com/Maphikza/ln-settlement-bridge/internal/logger"
)

const maxRequestBody = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

// writeError maps err to its status. Faults without a client-facing
// message are logged and answered generically.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := bridgeerr.HTTPStatus(err)
	message := bridgeerr.Message(err)

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "error", err)
		if bridgeerr.KindOf(err) == bridgeerr.KindInternal {
			message = "Internal server error"
		}
	}
	writeJSON(w, status, ErrorResponse{Message: message})
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return bridgeerr.Validation("Could not read request body.")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return bridgeerr.Validation("Invalid request body.")
	}
	return nil
}
