package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dashboards-assistant/internal/assistant"
)

// wsError is sent on a turn that failed; the connection stays open.
type wsError struct {
	Error string `json:"error"`
}

// handleChatWS streams chat turns over a websocket: one JSON Query in,
// one JSON Result (or wsError) out, until the client disconnects.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	userID := GetUserID(r.Context())
	s.logger.Debug("Chat stream opened", zap.String("user", userID))

	for {
		var q assistant.Query
		if err := conn.ReadJSON(&q); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("Chat stream closed unexpectedly", zap.Error(err))
			}
			return
		}

		result, err := s.assistant.Answer(r.Context(), q)
		if err != nil {
			s.logger.Error("Chat turn failed",
				zap.String("user", userID),
				zap.Error(err))
			if writeErr := conn.WriteJSON(wsError{Error: err.Error()}); writeErr != nil {
				return
			}
			continue
		}

		s.publisher.PublishQuery(string(result.Intent), result.Cached)
		if err := conn.WriteJSON(result); err != nil {
			return
		}
	}
}
