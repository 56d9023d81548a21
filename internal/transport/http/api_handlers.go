package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/access"
	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/service/accounts"
)

// APIHandlers provides the session and signup endpoints.
type APIHandlers struct {
	authService *auth.Service
	accounts    *accounts.Service
	moderator   access.Moderator
	cookieTTL   time.Duration
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, acc *accounts.Service, moderator access.Moderator, cookieTTL time.Duration, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		accounts:    acc,
		moderator:   moderator,
		cookieTTL:   cookieTTL,
		log:         logger,
	}
}

// CredentialsRequest is the body of login, signup and admin-add-user.
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// MeResponse names the authenticated user.
type MeResponse struct {
	Username string `json:"username"`
}

// ModResponse names the moderator account.
type ModResponse struct {
	Mod string `json:"mod"`
}

// MessageResponse acknowledges a request.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Login handles user login.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, identity, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.log.Info().Str("user", req.Username).Msg("login rejected")
		}
		writeError(c, h.log, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(h.cookieTTL.Seconds()), "/", "", false, true)

	h.log.Info().Str("user", identity.Username).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token, Username: identity.Username})
}

// Logout ends the caller's session. Outstanding tokens for it stop resolving.
// POST /api/logout
func (h *APIHandlers) Logout(c *gin.Context) {
	if err := h.authService.Invalidate(c.Request.Context(), currentSession(c)); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	h.log.Info().Str("user", currentUser(c)).Msg("user logged out")
	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out"})
}

// Me returns the caller's username.
// GET /api/me
func (h *APIHandlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, MeResponse{Username: currentUser(c)})
}

// Mod returns the moderator's username.
// GET /api/mod
func (h *APIHandlers) Mod(c *gin.Context) {
	c.JSON(http.StatusOK, ModResponse{Mod: h.moderator.Name()})
}

// Signup queues an account request for moderator approval.
// POST /api/signup
func (h *APIHandlers) Signup(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password required"})
		return
	}

	if err := h.accounts.Signup(c.Request.Context(), req.Username, req.Password); err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "Signup request submitted, awaiting admin approval"})
}
