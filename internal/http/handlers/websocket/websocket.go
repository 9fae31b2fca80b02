package websocket

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/cleanmap/reports-service/internal/utils/jwt"
	"github.com/cleanmap/reports-service/internal/utils/response"
	wsClient "github.com/cleanmap/reports-service/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin for development
		// In production, you should check the origin properly
		return true
	},
}

// ModerationFeed upgrades the connection and subscribes it to
// report-submitted events.
// @Summary Moderation live feed
// @Description WebSocket stream of report.submitted events
// @Tags moderation
// @Param token query string true "JWT token"
// @Router /ws/moderation [get]
func ModerationFeed(hub *wsClient.Hub, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// browsers cannot set headers on websocket dials, so the token
		// arrives as a query parameter
		token := r.URL.Query().Get("token")
		if token == "" {
			slog.Warn("WebSocket connection attempted without token")
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("token required")))
			return
		}

		userID, err := jwt.ExtractUserIDFromToken(token, jwtSecret)
		if err != nil {
			slog.Warn("WebSocket connection attempted with invalid token", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("invalid token")))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("Failed to upgrade WebSocket connection", slog.String("error", err.Error()))
			return
		}

		client := wsClient.NewClient(conn, userID, hub)
		hub.RegisterClient(client)
		client.Start()

		slog.Info("Moderation feed connection established", slog.String("user_id", userID))
	}
}
