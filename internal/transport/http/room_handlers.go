package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
	"github.com/vovakirdan/roomchat/internal/store"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	rooms *rooms.Service
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(svc *rooms.Service, hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		rooms: svc,
		hub:   hub,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name      string   `json:"name"`
	IsPrivate bool     `json:"isPrivate"`
	Allowed   []string `json:"allowed"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	Name    string   `json:"name"`
	Private bool     `json:"private"`
	Allowed []string `json:"allowed"`
	Creator string   `json:"creator"`
}

func roomResponse(r *store.Room) RoomResponse {
	return RoomResponse{
		Name:    r.Name,
		Private: r.Private,
		Allowed: r.Allowed,
		Creator: r.Creator,
	}
}

// ListRooms returns the names of rooms the caller may join.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.rooms.ListAccessible(c.Request.Context(), currentUser(c)))
}

// CreateRoom handles room creation.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.rooms.Create(c.Request.Context(), currentUser(c), req.Name, req.IsPrivate, req.Allowed)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, roomResponse(room))
}

// DeleteRoom removes a room and its history and unsubscribes its live connections.
// DELETE /api/rooms/:name
func (h *RoomHandlers) DeleteRoom(c *gin.Context) {
	if err := h.hub.DeleteRoom(c.Request.Context(), currentUser(c), c.Param("name")); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Room removed"})
}

// AddUser grants a user access to a private room.
// POST /api/rooms/:name/add-user
func (h *RoomHandlers) AddUser(c *gin.Context) {
	var req UsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: rooms.ErrUsernameRequired.Error()})
		return
	}

	room, err := h.rooms.AddUser(c.Request.Context(), currentUser(c), c.Param("name"), req.Username)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, roomResponse(room))
}

// RemoveUser revokes a user's access to a private room and unsubscribes
// their live connections from it.
// POST /api/rooms/:name/remove-user
func (h *RoomHandlers) RemoveUser(c *gin.Context) {
	var req UsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: rooms.ErrUsernameRequired.Error()})
		return
	}

	room, err := h.hub.RemoveMember(c.Request.Context(), currentUser(c), c.Param("name"), req.Username)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, roomResponse(room))
}

// DeleteMessage removes one log entry. Only its author or the moderator may do it.
// DELETE /api/rooms/:name/messages/:idx
func (h *RoomHandlers) DeleteMessage(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message index"})
		return
	}

	if err := h.hub.DeleteMessage(c.Request.Context(), currentUser(c), c.Param("name"), idx); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Message deleted"})
}
