package http

import (
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/access"
	"github.com/vovakirdan/roomchat/internal/admission"
	"github.com/vovakirdan/roomchat/internal/auth"
)

const (
	// ContextKeyUsername is the context key for storing username.
	ContextKeyUsername = "username"
	// ContextKeySessionID is the context key for storing the session id.
	ContextKeySessionID = "session_id"

	// SessionCookie carries the session token for browser clients.
	SessionCookie = "chat_session"
)

// LockdownMiddleware drops every new request while the gate is locked by
// hijacking and closing the TCP connection. Writers that cannot be hijacked get 503.
// Connections upgraded before the lockdown are not affected.
func LockdownMiddleware(gate *admission.Gate, logger *zerolog.Logger, next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if gate == nil || !gate.Locked() {
			next.ServeHTTP(w, r)
			return
		}

		logger.Debug().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("dropping request during lockdown")

		hj, ok := w.(stdhttp.Hijacker)
		if !ok {
			w.WriteHeader(stdhttp.StatusServiceUnavailable)
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			w.WriteHeader(stdhttp.StatusServiceUnavailable)
			return
		}
		_ = conn.Close()
	})
}

// AuthMiddleware resolves the request's token to a live session.
func AuthMiddleware(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authService.Resolve(c.Request.Context(), tokenFromRequest(c.Request))
		if err != nil {
			logger.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("unauthenticated request")
			c.AbortWithStatusJSON(stdhttp.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			return
		}

		c.Set(ContextKeyUsername, identity.Username)
		c.Set(ContextKeySessionID, identity.SessionID)

		c.Next()
	}
}

// ModeratorOnly rejects everyone but the moderator. It must run after AuthMiddleware.
func ModeratorOnly(moderator access.Moderator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !moderator.Is(currentUser(c)) {
			c.AbortWithStatusJSON(stdhttp.StatusForbidden, ErrorResponse{Error: "forbidden"})
			return
		}
		c.Next()
	}
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}

// tokenFromRequest looks at the Authorization header, then the session
// cookie, then the token query parameter used by WebSocket clients.
func tokenFromRequest(r *stdhttp.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

func currentUser(c *gin.Context) string {
	return c.GetString(ContextKeyUsername)
}

func currentSession(c *gin.Context) string {
	return c.GetString(ContextKeySessionID)
}
