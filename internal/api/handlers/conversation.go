package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zawj-chat/internal/models"
	"zawj-chat/internal/services"
)

type ConversationHandler struct {
	conversationService *services.ConversationService
}

func NewConversationHandler(conversationService *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// ListConversations godoc
// @Summary List conversations
// @Description Conversations of the current user with the peer profile and last message, most recent first
// @Tags conversations
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ConversationSummary
// @Failure 401 {object} models.ErrorResponse
// @Router /conversations [get]
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	list, err := h.conversationService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "Failed to list conversations")
		return
	}

	c.JSON(http.StatusOK, list)
}

// CreateConversation godoc
// @Summary Open a conversation with a user
// @Description Returns the existing conversation of the pair or creates it
// @Tags conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateConversationRequest true "Peer"
// @Success 200 {object} models.Conversation
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations [post]
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid input data", err.Error())
		return
	}

	conv, err := h.conversationService.CreateOrGet(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		respondServiceError(c, err, "Failed to open conversation")
		return
	}

	c.JSON(http.StatusOK, conv)
}

// GetConversation godoc
// @Summary Get a conversation
// @Tags conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} models.Conversation
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id} [get]
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	conv, err := h.conversationService.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "Failed to get conversation")
		return
	}

	c.JSON(http.StatusOK, conv)
}

// GetMessages godoc
// @Summary Message history
// @Description Messages of the conversation in chronological order with date divider rows
// @Tags conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} services.HistoryResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /conversations/{id}/messages [get]
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	history, err := h.conversationService.History(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "Failed to get messages")
		return
	}

	c.JSON(http.StatusOK, history)
}
