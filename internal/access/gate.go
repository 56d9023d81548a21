// Package access decides whether a user may read or write a room.
package access

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/store"
)

// Moderator is the configured privileged username.
type Moderator string

// Is reports whether username names the moderator, ignoring case.
func (m Moderator) Is(username string) bool {
	return m != "" && username != "" && strings.EqualFold(string(m), username)
}

// Name returns the configured spelling.
func (m Moderator) Name() string {
	return string(m)
}

// Allowed is the pure access rule: public rooms admit everyone, private
// rooms admit their allowed list. The moderator is always admitted.
func Allowed(room *store.Room, user string, mod Moderator) bool {
	if room == nil || user == "" {
		return false
	}
	if !room.Private || mod.Is(user) {
		return true
	}
	return room.HasAllowed(user)
}

// Gate answers CanAccess against the current registry state. It caches nothing.
type Gate struct {
	rooms     store.RoomStore
	moderator Moderator
	log       *zerolog.Logger
}

// NewGate builds a gate over the room registry.
func NewGate(rooms store.RoomStore, moderator Moderator, logger *zerolog.Logger) *Gate {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Gate{rooms: rooms, moderator: moderator, log: logger}
}

// Moderator returns the configured moderator.
func (g *Gate) Moderator() Moderator {
	return g.moderator
}

// CanAccess reports whether user may join, read or write room. A missing or
// unreadable room is never accessible.
func (g *Gate) CanAccess(ctx context.Context, user, room string) bool {
	r, err := g.rooms.GetRoom(ctx, room)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			g.log.Warn().Err(err).Str("room", room).Msg("access check failed to read room")
		}
		return false
	}
	return Allowed(r, user, g.moderator)
}
