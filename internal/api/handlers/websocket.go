package handlers

import (
	"github.com/gin-gonic/gin"

	"zawj-chat/internal/websocket"
)

type WSHandler struct {
	hub *websocket.Hub
}

func NewWSHandler(hub *websocket.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// HandleWebSocket godoc
// @Summary WebSocket connection
// @Description Establish a WebSocket connection for chat sessions. Pass the JWT as the token query parameter.
// @Tags websocket
// @Param token query string true "JWT access token"
// @Success 101 "Switching Protocols - WebSocket connection established"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	websocket.ServeWS(h.hub, c.Writer, c.Request, userID)
}
