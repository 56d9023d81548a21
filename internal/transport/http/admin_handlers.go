package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/service/accounts"
)

// AdminHandlers serves the moderator-only endpoints. Routes are guarded by ModeratorOnly.
type AdminHandlers struct {
	accounts *accounts.Service
	hub      *core.Hub
	log      *zerolog.Logger
}

// NewAdminHandlers creates a new admin handlers instance.
func NewAdminHandlers(acc *accounts.Service, hub *core.Hub, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{
		accounts: acc,
		hub:      hub,
		log:      logger,
	}
}

// UsernameRequest names a user.
type UsernameRequest struct {
	Username string `json:"username" binding:"required"`
}

// TextRequest carries broadcast text.
type TextRequest struct {
	Text string `json:"text" binding:"required"`
}

// PendingSignupResponse is one queued signup.
type PendingSignupResponse struct {
	Username string `json:"username"`
}

// PendingSignups lists queued signup requests.
// GET /api/pending-signups
func (h *AdminHandlers) PendingSignups(c *gin.Context) {
	names := h.accounts.Pending()
	response := make([]PendingSignupResponse, 0, len(names))
	for _, n := range names {
		response = append(response, PendingSignupResponse{Username: n})
	}
	c.JSON(http.StatusOK, response)
}

// ApproveSignup creates the account for a queued request.
// POST /api/approve-signup
func (h *AdminHandlers) ApproveSignup(c *gin.Context) {
	var req UsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username required"})
		return
	}
	if err := h.accounts.Approve(c.Request.Context(), req.Username); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User approved"})
}

// RejectSignup drops a queued request.
// POST /api/reject-signup
func (h *AdminHandlers) RejectSignup(c *gin.Context) {
	var req UsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username required"})
		return
	}
	if err := h.accounts.Reject(req.Username); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User rejected"})
}

// AddUser creates an account without the signup queue.
// POST /api/admin-add-user
func (h *AdminHandlers) AddUser(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password required"})
		return
	}
	if err := h.accounts.AddUser(c.Request.Context(), req.Username, req.Password); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, MessageResponse{Message: "User added"})
}

// DeleteUser removes an account and drops its live connections. The moderator
// account is refused.
// POST /api/delete-user
func (h *AdminHandlers) DeleteUser(c *gin.Context) {
	var req UsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username required"})
		return
	}
	if err := h.accounts.DeleteUser(c.Request.Context(), req.Username); err != nil {
		writeError(c, h.log, err)
		return
	}
	if err := h.hub.DisconnectUser(c.Request.Context(), req.Username); err != nil {
		// The account is gone; Resolve already refuses its tokens.
		h.log.Warn().Err(err).Str("user", req.Username).Msg("disconnect deleted user")
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User deleted"})
}

// Broadcast appends text to every room and pushes it to every connection.
// POST /api/broadcast
func (h *AdminHandlers) Broadcast(c *gin.Context) {
	var req TextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "message text required"})
		return
	}
	if err := h.hub.Broadcast(c.Request.Context(), req.Text); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Broadcast sent"})
}
