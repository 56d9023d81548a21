package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/admission"
	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/service/accounts"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
)

// Deps are the services the HTTP layer fronts.
type Deps struct {
	Hub       *core.Hub
	Auth      *auth.Service
	Accounts  *accounts.Service
	Rooms     *rooms.Service
	Admission *admission.Gate
}

// NewServer builds the HTTP server with all routes.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler registers the REST and WebSocket routes behind the lockdown gate.
// The WebSocket endpoint sits on the outer mux so the upgrade never passes
// through gin's response writer.
func NewHandler(deps Deps, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	moderator := deps.Rooms.Moderator()

	apiHandlers := NewAPIHandlers(deps.Auth, deps.Accounts, moderator, cfg.Session.TTL, logger)
	adminHandlers := NewAdminHandlers(deps.Accounts, deps.Hub, logger)
	roomHandlers := NewRoomHandlers(deps.Rooms, deps.Hub, logger)
	userHandlers := NewUserHandlers(deps.Accounts, logger)

	router.GET("/health", healthHandler)

	public := router.Group("/api")
	{
		public.POST("/login", apiHandlers.Login)
		public.POST("/signup", apiHandlers.Signup)
		public.GET("/mod", apiHandlers.Mod)
	}

	api := router.Group("/api", AuthMiddleware(deps.Auth, logger))
	{
		api.POST("/logout", apiHandlers.Logout)
		api.GET("/me", apiHandlers.Me)
		api.GET("/users", userHandlers.ListUsers)

		api.GET("/rooms", roomHandlers.ListRooms)
		api.POST("/rooms", roomHandlers.CreateRoom)
		api.DELETE("/rooms/:name", roomHandlers.DeleteRoom)
		api.POST("/rooms/:name/add-user", roomHandlers.AddUser)
		api.POST("/rooms/:name/remove-user", roomHandlers.RemoveUser)
		api.DELETE("/rooms/:name/messages/:idx", roomHandlers.DeleteMessage)
	}

	admin := api.Group("", ModeratorOnly(moderator))
	{
		admin.GET("/pending-signups", adminHandlers.PendingSignups)
		admin.POST("/approve-signup", adminHandlers.ApproveSignup)
		admin.POST("/reject-signup", adminHandlers.RejectSignup)
		admin.POST("/admin-add-user", adminHandlers.AddUser)
		admin.POST("/delete-user", adminHandlers.DeleteUser)
		admin.POST("/broadcast", adminHandlers.Broadcast)
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Hub, deps.Auth, cfg, logger))
	mux.Handle("/", router)

	return LockdownMiddleware(deps.Admission, logger, mux)
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
