package http

import (
	"errors"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/service/accounts"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
	"github.com/vovakirdan/roomchat/internal/store"
)

// errorStatuses maps domain sentinels to HTTP statuses. The response body is
// the sentinel's text, not the wrapped error.
var errorStatuses = []struct {
	err    error
	status int
}{
	{auth.ErrInvalidCredentials, stdhttp.StatusUnauthorized},
	{auth.ErrUnauthorized, stdhttp.StatusUnauthorized},
	{rooms.ErrForbidden, stdhttp.StatusForbidden},
	{rooms.ErrNotMember, stdhttp.StatusNotFound},
	{accounts.ErrNoPendingSignup, stdhttp.StatusNotFound},
	{accounts.ErrUserNotFound, stdhttp.StatusNotFound},
	{store.ErrNotFound, stdhttp.StatusNotFound},
	{rooms.ErrAlreadyMember, stdhttp.StatusConflict},
	{accounts.ErrUserExists, stdhttp.StatusConflict},
	{accounts.ErrSignupPending, stdhttp.StatusConflict},
	{store.ErrConflict, stdhttp.StatusConflict},
	{rooms.ErrNotPrivate, stdhttp.StatusBadRequest},
	{rooms.ErrProtectedMember, stdhttp.StatusBadRequest},
	{rooms.ErrInvalidName, stdhttp.StatusBadRequest},
	{rooms.ErrUsernameRequired, stdhttp.StatusBadRequest},
	{rooms.ErrEmptyMessage, stdhttp.StatusBadRequest},
	{accounts.ErrProtectedAccount, stdhttp.StatusBadRequest},
	{auth.ErrInvalidUsername, stdhttp.StatusBadRequest},
	{auth.ErrInvalidPassword, stdhttp.StatusBadRequest},
	{core.ErrHubStopped, stdhttp.StatusServiceUnavailable},
}

func writeError(c *gin.Context, logger *zerolog.Logger, err error) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			c.JSON(e.status, ErrorResponse{Error: e.err.Error()})
			return
		}
	}

	logger.Error().Err(err).Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Msg("request failed")
	c.JSON(stdhttp.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
