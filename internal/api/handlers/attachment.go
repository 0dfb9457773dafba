package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zawj-chat/internal/services"
)

type AttachmentHandler struct {
	attachmentService *services.AttachmentService
}

func NewAttachmentHandler(attachmentService *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachmentService: attachmentService}
}

// GetAttachment godoc
// @Summary Attachment download URL
// @Description Short-lived presigned URL for the attachment of a message
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Message ID"
// @Success 200 {object} models.AttachmentResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse "Object storage disabled"
// @Router /messages/{id}/attachment [get]
func (h *AttachmentHandler) GetAttachment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	resp, err := h.attachmentService.Resolve(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "Failed to resolve attachment")
		return
	}

	c.JSON(http.StatusOK, resp)
}
