package rooms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/access"
	"github.com/vovakirdan/roomchat/internal/store"
)

// MaxNameLength bounds room names in runes.
const MaxNameLength = 64

// Common errors for room operations.
var (
	ErrForbidden        = errors.New("forbidden")
	ErrNotPrivate       = errors.New("room is not private")
	ErrProtectedMember  = errors.New("cannot remove moderator or creator")
	ErrNotMember        = errors.New("user not in room")
	ErrAlreadyMember    = errors.New("user already in room")
	ErrInvalidName      = errors.New("invalid room name")
	ErrUsernameRequired = errors.New("username required")
	ErrEmptyMessage     = errors.New("message text required")
)

// errUnchanged aborts an UpdateRoom whose mutation would be a no-op.
var errUnchanged = errors.New("unchanged")

// Store is the slice of persistence the room service needs.
type Store interface {
	store.RoomStore
	store.MessageStore
}

// Service owns the room registry and message log invariants.
type Service struct {
	store     Store
	gate      *access.Gate
	moderator access.Moderator
	locks     *roomLocks
	clock     *clock
	log       *zerolog.Logger
}

// New creates a room service. gate must read from the same store.
func New(st Store, gate *access.Gate, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store:     st,
		gate:      gate,
		moderator: gate.Moderator(),
		locks:     newRoomLocks(),
		clock:     newClock(),
		log:       logger,
	}
}

// Moderator returns the configured moderator.
func (s *Service) Moderator() access.Moderator {
	return s.moderator
}

// CanAccess reports whether user may join, read or write room right now.
func (s *Service) CanAccess(ctx context.Context, user, room string) bool {
	return s.gate.CanAccess(ctx, user, room)
}

// ValidateName checks a room name before it is stored.
func ValidateName(name string) error {
	if name == "" || strings.TrimSpace(name) != name || utf8.RuneCountInString(name) > MaxNameLength {
		return ErrInvalidName
	}
	for _, r := range name {
		if r == '/' || unicode.IsControl(r) {
			return ErrInvalidName
		}
	}
	return nil
}

// Create registers a room owned by creator. Private rooms always admit the
// moderator and the creator; public rooms record only the moderator.
func (s *Service) Create(ctx context.Context, creator, name string, private bool, allowed []string) (*store.Room, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	room := &store.Room{
		Name:    name,
		Private: private,
		Creator: creator,
	}
	if private {
		seed := append([]string{s.moderator.Name(), creator}, allowed...)
		room.Allowed = dedupe(seed)
	} else {
		room.Allowed = []string{s.moderator.Name()}
	}

	unlock := s.locks.lock(name)
	defer unlock()

	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	s.log.Info().Str("room", name).Str("user", creator).Bool("private", private).Msg("room created")
	return room, nil
}

// Get returns a room record.
func (s *Service) Get(ctx context.Context, name string) (*store.Room, error) {
	room, err := s.store.GetRoom(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return room, nil
}

// Delete removes a room and its history. Only the creator or the moderator may do it.
func (s *Service) Delete(ctx context.Context, requester, name string) error {
	unlock := s.locks.lock(name)
	defer unlock()

	room, err := s.store.GetRoom(ctx, name)
	if err != nil {
		return fmt.Errorf("get room: %w", err)
	}
	if room.Creator != requester && !s.moderator.Is(requester) {
		return ErrForbidden
	}

	if err := s.store.DeleteRoom(ctx, name); err != nil {
		return fmt.Errorf("delete room: %w", err)
	}

	s.log.Info().Str("room", name).Str("user", requester).Msg("room deleted")
	return nil
}

// AddUser grants username access to a private room. requester must already have access.
func (s *Service) AddUser(ctx context.Context, requester, name, username string) (*store.Room, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}

	unlock := s.locks.lock(name)
	defer unlock()

	room, err := s.store.UpdateRoom(ctx, name, func(r *store.Room) error {
		if !r.Private {
			return ErrNotPrivate
		}
		if !access.Allowed(r, requester, s.moderator) {
			return ErrForbidden
		}
		if r.HasAllowed(username) {
			return ErrAlreadyMember
		}
		r.Allowed = append(r.Allowed, username)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("add user: %w", err)
	}
	return room, nil
}

// RemoveUser revokes username's access to a private room. The moderator and
// the room's creator can never be removed.
func (s *Service) RemoveUser(ctx context.Context, requester, name, username string) (*store.Room, error) {
	if username == "" {
		return nil, ErrUsernameRequired
	}

	unlock := s.locks.lock(name)
	defer unlock()

	room, err := s.store.UpdateRoom(ctx, name, func(r *store.Room) error {
		if !r.Private {
			return ErrNotPrivate
		}
		if !access.Allowed(r, requester, s.moderator) {
			return ErrForbidden
		}
		if s.moderator.Is(username) || username == r.Creator {
			return ErrProtectedMember
		}
		if !r.HasAllowed(username) {
			return ErrNotMember
		}
		r.Allowed = remove(r.Allowed, username)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("remove user: %w", err)
	}
	return room, nil
}

// ListAccessible returns the names of rooms user may join. An unreadable
// registry yields an empty list.
func (s *Service) ListAccessible(ctx context.Context, user string) []string {
	all, err := s.store.ListRooms(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("list rooms failed")
		return []string{}
	}

	names := make([]string, 0, len(all))
	for _, r := range all {
		if access.Allowed(r, user, s.moderator) {
			names = append(names, r.Name)
		}
	}
	return names
}

// SetMuted adds user to or removes user from the room's muted set. It
// reports whether the set changed; repeating the same call is a no-op.
func (s *Service) SetMuted(ctx context.Context, name, user string, muted bool) (bool, error) {
	unlock := s.locks.lock(name)
	defer unlock()

	_, err := s.store.UpdateRoom(ctx, name, func(r *store.Room) error {
		if r.IsMuted(user) == muted {
			return errUnchanged
		}
		if muted {
			r.Muted = append(r.Muted, user)
		} else {
			r.Muted = remove(r.Muted, user)
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("update muted: %w", err)
	}

	s.log.Info().Str("room", name).Str("user", user).Bool("muted", muted).Msg("mute state changed")
	return true, nil
}

// IsMuted reports whether user is muted in room. A missing or unreadable room
// reads as not muted.
func (s *Service) IsMuted(ctx context.Context, name, user string) bool {
	room, err := s.store.GetRoom(ctx, name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn().Err(err).Str("room", name).Msg("mute check failed to read room")
		}
		return false
	}
	return room.IsMuted(user)
}

// Post appends a message to the room's log and returns it with its
// timestamp and index filled in.
func (s *Service) Post(ctx context.Context, name, from, text string, typ store.MessageType) (*store.Message, error) {
	if text == "" {
		return nil, ErrEmptyMessage
	}

	unlock := s.locks.lock(name)
	defer unlock()

	// A reply that resolves after the room was deleted must not leave orphans.
	if _, err := s.store.GetRoom(ctx, name); err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}

	msg := &store.Message{
		Room:      name,
		From:      from,
		Text:      text,
		Type:      typ,
		Timestamp: s.clock.next(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// Broadcast appends the same moderator broadcast to every room's log. Rooms
// whose append fails are skipped and reported in the returned error.
func (s *Service) Broadcast(ctx context.Context, text string) ([]*store.Message, error) {
	if text == "" {
		return nil, ErrEmptyMessage
	}

	all, err := s.store.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	ts := s.clock.next()
	posted := make([]*store.Message, 0, len(all))
	var errs []error
	for _, r := range all {
		msg := &store.Message{
			Room:      r.Name,
			From:      store.SenderBroadcast,
			Text:      text,
			Type:      store.MessageTypeBroadcast,
			Timestamp: ts,
		}
		unlock := s.locks.lock(r.Name)
		err := s.store.AppendMessage(ctx, msg)
		unlock()
		if err != nil {
			errs = append(errs, fmt.Errorf("append broadcast to %q: %w", r.Name, err))
			continue
		}
		posted = append(posted, msg)
	}
	return posted, errors.Join(errs...)
}

// History returns the whole log of a room. Read failures are logged and the
// room reads as empty.
func (s *Service) History(ctx context.Context, name string) []*store.Message {
	messages, err := s.store.ListMessages(ctx, name)
	if err != nil {
		s.log.Error().Err(err).Str("room", name).Msg("read history failed")
		return []*store.Message{}
	}
	return messages
}

// DeleteMessage removes the message at index. Only its author or the moderator may do it.
func (s *Service) DeleteMessage(ctx context.Context, requester, name string, index int) (*store.Message, error) {
	unlock := s.locks.lock(name)
	defer unlock()

	msg, err := s.store.DeleteMessageAt(ctx, name, index, func(m *store.Message) error {
		if m.From != requester && !s.moderator.Is(requester) {
			return ErrForbidden
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}
	return msg, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func remove(names []string, target string) []string {
	out := names[:0]
	for _, n := range names {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}
