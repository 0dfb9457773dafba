package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"zawj-chat/internal/services"
)

type ConnectionHandler struct {
	connectionService *services.ConnectionService
}

func NewConnectionHandler(connectionService *services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{connectionService: connectionService}
}

// ListConnections godoc
// @Summary List connections
// @Description Every connection record the current user is part of
// @Tags connections
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Connection
// @Router /connections [get]
func (h *ConnectionHandler) ListConnections(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	list, err := h.connectionService.List(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "Failed to list connections")
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetConnection godoc
// @Summary Connection with a peer
// @Description The connection record with the peer and the actions available to the current user
// @Tags connections
// @Produce json
// @Security BearerAuth
// @Param peerId path string true "Peer user ID"
// @Success 200 {object} services.ConnectionView
// @Router /connections/{peerId} [get]
func (h *ConnectionHandler) GetConnection(c *gin.Context) {
	h.handle(c, h.connectionService.Get, http.StatusOK, "Failed to get connection")
}

// RequestConnection godoc
// @Summary Send a connection request
// @Tags connections
// @Produce json
// @Security BearerAuth
// @Param peerId path string true "Peer user ID"
// @Success 201 {object} services.ConnectionView
// @Failure 403 {object} models.ErrorResponse "Blocked"
// @Failure 409 {object} models.ErrorResponse "A connection already exists"
// @Router /connections/{peerId}/request [post]
func (h *ConnectionHandler) RequestConnection(c *gin.Context) {
	h.handle(c, h.connectionService.Request, http.StatusCreated, "Failed to send request")
}

// AcceptConnection godoc
// @Summary Accept a pending request
// @Tags connections
// @Produce json
// @Security BearerAuth
// @Param peerId path string true "Requester user ID"
// @Success 200 {object} services.ConnectionView
// @Failure 403 {object} models.ErrorResponse "Only the addressee can respond"
// @Failure 404 {object} models.ErrorResponse
// @Router /connections/{peerId}/accept [post]
func (h *ConnectionHandler) AcceptConnection(c *gin.Context) {
	h.handle(c, h.connectionService.Accept, http.StatusOK, "Failed to accept request")
}

// DeclineConnection godoc
// @Summary Decline a pending request
// @Tags connections
// @Produce json
// @Security BearerAuth
// @Param peerId path string true "Requester user ID"
// @Success 200 {object} services.ConnectionView
// @Failure 403 {object} models.ErrorResponse "Only the addressee can respond"
// @Failure 404 {object} models.ErrorResponse
// @Router /connections/{peerId}/decline [post]
func (h *ConnectionHandler) DeclineConnection(c *gin.Context) {
	h.handle(c, h.connectionService.Decline, http.StatusOK, "Failed to decline request")
}

// BlockConnection godoc
// @Summary Block the connection with a peer
// @Tags connections
// @Produce json
// @Security BearerAuth
// @Param peerId path string true "Peer user ID"
// @Success 200 {object} services.ConnectionView
// @Router /connections/{peerId}/block [post]
func (h *ConnectionHandler) BlockConnection(c *gin.Context) {
	h.handle(c, h.connectionService.Block, http.StatusOK, "Failed to block connection")
}

type connectionAction func(ctx context.Context, viewerID, peerID string) (*services.ConnectionView, error)

func (h *ConnectionHandler) handle(c *gin.Context, action connectionAction, status int, fallback string) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	view, err := action(c.Request.Context(), userID, c.Param("peerId"))
	if err != nil {
		respondServiceError(c, err, fallback)
		return
	}

	c.JSON(status, view)
}
