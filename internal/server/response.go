package server

import (
	"net/http"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/jsonx"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

// respondJSON encodes v through a pooled buffer so a late marshal failure
// cannot leave a half-written 200 response.
func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, v interface{}) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := jsonx.NewEncoder(buf).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.Debug("Failed to write response", zap.Error(err))
	}
}

// respondError writes a JSON error body.
func respondError(w http.ResponseWriter, logger *zap.Logger, status int, msg string) {
	respondJSON(w, logger, status, errorResponse{Error: msg})
}
