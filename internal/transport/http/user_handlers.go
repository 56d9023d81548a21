package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/service/accounts"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	accounts *accounts.Service
	log      *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(acc *accounts.Service, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		accounts: acc,
		log:      logger,
	}
}

// ListUsers returns every username except the moderator's.
// GET /api/users
func (h *UserHandlers) ListUsers(c *gin.Context) {
	names, err := h.accounts.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, names)
}
