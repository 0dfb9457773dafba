package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"zawj-chat/internal/models"
	"zawj-chat/internal/services"
)

type UserHandler struct {
	userService   *services.UserService
	blockService  *services.BlockService
	reportService *services.ReportService
}

func NewUserHandler(userService *services.UserService, blockService *services.BlockService, reportService *services.ReportService) *UserHandler {
	return &UserHandler{userService: userService, blockService: blockService, reportService: reportService}
}

// ListUsers godoc
// @Summary Browse member profiles
// @Description Pages through other members, newest first. Emails are not included.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param q query string false "Username filter"
// @Param offset query int false "Rows to skip"
// @Param limit query int false "Page size (default 20, max 50)"
// @Success 200 {object} models.UserListResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var q models.ListUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid query", err.Error())
		return
	}

	page, err := h.userService.ListUsers(c.Request.Context(), userID, &q)
	if err != nil {
		respondServiceError(c, err, "Failed to list users")
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetUser godoc
// @Summary Get a member's public profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.UserResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}

	profile, err := h.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err, "Failed to get user")
		return
	}

	c.JSON(http.StatusOK, profile)
}

// ReportUser godoc
// @Summary Report a member
// @Description Files a moderation report. Details need at least 20 characters.
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param request body models.ReportRequest true "Report"
// @Success 201 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/report [post]
func (h *UserHandler) ReportUser(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid input data", err.Error())
		return
	}

	report, err := h.reportService.Submit(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		respondServiceError(c, err, "Failed to submit report")
		return
	}

	c.JSON(http.StatusCreated, report)
}

// GetProfile godoc
// @Summary Get user profile
// @Description Get the current user's profile information
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserResponse "User profile retrieved successfully"
// @Failure 401 {object} models.ErrorResponse "Unauthorized - invalid or missing token"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Router /users/profile [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "Failed to get profile")
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateProfile godoc
// @Summary Update user profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.UpdateProfileRequest true "Profile fields to change"
// @Success 200 {object} models.UserResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /users/profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid input data", err.Error())
		return
	}

	profile, err := h.userService.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		respondServiceError(c, err, "Failed to update profile")
		return
	}

	c.JSON(http.StatusOK, profile)
}

// BlockUser godoc
// @Summary Block a user
// @Description Adds the user to the caller's block list. Blocking twice is not an error.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{id}/block [post]
func (h *UserHandler) BlockUser(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.blockService.Block(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondServiceError(c, err, "Failed to block user")
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "User blocked"})
}

// UnblockUser godoc
// @Summary Unblock a user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.MessageResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /users/{id}/block [delete]
func (h *UserHandler) UnblockUser(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.blockService.Unblock(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondServiceError(c, err, "Failed to unblock user")
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "User unblocked"})
}

// ListBlocked godoc
// @Summary List blocked users
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.BlockedUser
// @Router /users/blocked [get]
func (h *UserHandler) ListBlocked(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	blocked, err := h.blockService.List(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "Failed to list blocked users")
		return
	}

	c.JSON(http.StatusOK, blocked)
}
