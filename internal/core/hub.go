package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/access"
	"github.com/vovakirdan/roomchat/internal/admission"
	"github.com/vovakirdan/roomchat/internal/assistant"
	"github.com/vovakirdan/roomchat/internal/mirror"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
	"github.com/vovakirdan/roomchat/internal/store"
)

// RoomService is the room registry and message log as the hub uses them.
type RoomService interface {
	CanAccess(ctx context.Context, user, room string) bool
	History(ctx context.Context, room string) []*store.Message
	IsMuted(ctx context.Context, room, user string) bool
	SetMuted(ctx context.Context, room, user string, muted bool) (bool, error)
	Post(ctx context.Context, room, from, text string, typ store.MessageType) (*store.Message, error)
	Broadcast(ctx context.Context, text string) ([]*store.Message, error)
	DeleteMessage(ctx context.Context, requester, room string, index int) (*store.Message, error)
	Delete(ctx context.Context, requester, room string) error
	RemoveUser(ctx context.Context, requester, room, username string) (*store.Room, error)
}

// SessionInvalidator ends authenticated sessions.
type SessionInvalidator interface {
	Invalidate(ctx context.Context, sessionID string) error
}

// AdmissionToggler flips the process-wide lockdown flag.
type AdmissionToggler interface {
	Toggle() bool
}

// Assistant binds a chat prefix to a completion provider.
type Assistant struct {
	Prefix   string
	Sender   string
	Producer assistant.Producer
}

// Options configures a Hub. Rooms is required.
type Options struct {
	Rooms            RoomService
	Sessions         SessionInvalidator
	Admission        AdmissionToggler
	Moderator        access.Moderator
	Assistants       []Assistant
	AssistantTimeout time.Duration
	Mirror           mirror.Publisher
	Logger           *zerolog.Logger
}

// Notices sent by the command interpreter.
const (
	NoticeKicked      = "You were kicked by a moderator."
	NoticeDeleted     = "Your account was deleted."
	NoticeAIFailed    = "⚠️ AI failed to respond."
	NoticeLockdownOn  = "TURNING ON LOCKDOWN MODE"
	NoticeLockdownOff = "TURNING OFF LOCKDOWN MODE"
)

type clientCommand struct {
	client *Client
	cmd    *Command
}

// Hub is the single event loop that owns live connections and room subscriptions.
type Hub struct {
	rooms            RoomService
	sessions         SessionInvalidator
	admission        AdmissionToggler
	moderator        access.Moderator
	assistants       map[string]Assistant
	prefixes         []string
	assistantTimeout time.Duration
	mirror           mirror.Publisher
	log              *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	control    chan func(context.Context)
	stopped    chan struct{}

	// Owned by the Run goroutine.
	clients map[*Client]struct{}
	live    map[string]*Room

	tasks sync.WaitGroup
}

type nopSessions struct{}

func (nopSessions) Invalidate(context.Context, string) error { return nil }

// NewHub creates a hub. Call Run to start it.
func NewHub(opts Options) *Hub {
	h := &Hub{
		rooms:            opts.Rooms,
		sessions:         opts.Sessions,
		admission:        opts.Admission,
		moderator:        opts.Moderator,
		assistants:       make(map[string]Assistant),
		assistantTimeout: opts.AssistantTimeout,
		mirror:           opts.Mirror,
		log:              opts.Logger,
		register:         make(chan *Client),
		unregister:       make(chan *Client),
		commands:         make(chan clientCommand, 64),
		control:          make(chan func(context.Context)),
		stopped:          make(chan struct{}),
		clients:          make(map[*Client]struct{}),
		live:             make(map[string]*Room),
	}
	if h.sessions == nil {
		h.sessions = nopSessions{}
	}
	if h.admission == nil {
		h.admission = admission.New()
	}
	if h.mirror == nil {
		h.mirror = mirror.Nop{}
	}
	if h.log == nil {
		nop := zerolog.Nop()
		h.log = &nop
	}
	for _, a := range opts.Assistants {
		if a.Prefix == "" || a.Producer == nil {
			continue
		}
		h.assistants[a.Prefix] = a
		h.prefixes = append(h.prefixes, a.Prefix)
	}
	return h
}

// Run processes events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			go h.forward(ctx, c)
			h.log.Debug().Str("client_id", c.ID).Str("user", c.Name).Msg("client registered")
		case c := <-h.unregister:
			h.drop(c, CloseUnregistered)
		case cc := <-h.commands:
			if _, ok := h.clients[cc.client]; ok {
				h.handleCommand(ctx, cc.client, cc.cmd)
			}
		case fn := <-h.control:
			fn(ctx)
		}
	}
}

func (h *Hub) shutdown() {
	close(h.stopped)
	for c := range h.clients {
		h.drop(c, CloseShutdown)
	}
	h.tasks.Wait()
}

// RegisterClient hands a connection to the hub.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.stopped:
		c.close(CloseShutdown)
	}
}

// UnregisterClient removes a connection. Unregistering a dropped client is a no-op.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
	}
}

// Broadcast appends a moderator broadcast to every room and delivers it to every connection.
func (h *Hub) Broadcast(ctx context.Context, text string) error {
	return h.exec(ctx, func(context.Context) error {
		return h.broadcast(ctx, text)
	})
}

// DeleteMessage removes a log entry on behalf of requester and notifies the room.
func (h *Hub) DeleteMessage(ctx context.Context, requester, room string, index int) error {
	return h.exec(ctx, func(context.Context) error {
		return h.deleteMessage(ctx, requester, room, index)
	})
}

// DeleteRoom deletes a room on behalf of requester and unsubscribes its live connections.
func (h *Hub) DeleteRoom(ctx context.Context, requester, room string) error {
	return h.exec(ctx, func(context.Context) error {
		return h.deleteRoom(ctx, requester, room)
	})
}

// RemoveMember revokes username's access to a private room. Live connections
// of that user in the room are unsubscribed before any further traffic.
func (h *Hub) RemoveMember(ctx context.Context, requester, room, username string) (*store.Room, error) {
	var updated *store.Room
	err := h.exec(ctx, func(context.Context) error {
		r, err := h.rooms.RemoveUser(ctx, requester, room, username)
		if err != nil {
			return err
		}
		updated = r
		h.unsubscribe(room, username, fmt.Sprintf("You were removed from %s.", room))
		return nil
	})
	return updated, err
}

// DisconnectUser drops every live connection of username and revokes their
// sessions. Names match case-insensitively.
func (h *Hub) DisconnectUser(ctx context.Context, username string) error {
	return h.exec(ctx, func(loopCtx context.Context) error {
		var targets []*Client
		for c := range h.clients {
			if strings.EqualFold(c.Name, username) {
				targets = append(targets, c)
			}
		}
		for _, c := range targets {
			c.send(noticeEvent(c.room, NoticeDeleted))
			h.revoke(loopCtx, c)
			h.drop(c, CloseAccountDeleted)
		}
		if len(targets) > 0 {
			h.log.Info().Str("user", username).Int("connections", len(targets)).Msg("disconnected deleted account")
		}
		return nil
	})
}

// exec runs fn on the loop and waits for its result.
func (h *Hub) exec(ctx context.Context, fn func(context.Context) error) error {
	res := make(chan error, 1)
	job := func(loopCtx context.Context) { res <- fn(loopCtx) }

	select {
	case h.control <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopped:
		return ErrHubStopped
	}

	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopped:
		return ErrHubStopped
	}
}

// enqueue posts fn to the loop without waiting. Dropped after shutdown.
func (h *Hub) enqueue(fn func(context.Context)) {
	select {
	case h.control <- fn:
	case <-h.stopped:
	}
}

func (h *Hub) forward(ctx context.Context, c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	switch cmd.Kind {
	case CommandJoinRoom:
		h.handleJoin(ctx, c, cmd.Room)
	case CommandChat:
		h.handleChat(ctx, c, cmd.Room, cmd.Text)
	case CommandDeleteMessage:
		if err := h.deleteMessage(ctx, c.Name, cmd.Room, cmd.Index); err != nil {
			h.deliver(c, errorEvent(cmd.Room, h.deleteError(err, c)))
		}
	case CommandBroadcast:
		if !h.moderator.Is(c.Name) || cmd.Text == "" {
			return
		}
		if err := h.broadcast(ctx, cmd.Text); err != nil {
			h.log.Error().Err(err).Str("user", c.Name).Msg("broadcast failed")
			h.deliver(c, errorEvent("", coreError(ErrCodeInternal, "broadcast failed")))
		}
	default:
		h.deliver(c, errorEvent(cmd.Room, coreError(ErrCodeBadRequest, "unknown command")))
	}
}

func (h *Hub) deleteError(err error, c *Client) *CoreError {
	switch {
	case errors.Is(err, rooms.ErrForbidden):
		return coreError(ErrCodeForbidden, "not allowed")
	case errors.Is(err, store.ErrNotFound):
		return coreError(ErrCodeMessageNotFound, "message not found")
	default:
		h.log.Error().Err(err).Str("user", c.Name).Msg("delete message failed")
		return coreError(ErrCodeInternal, "delete failed")
	}
}

// handleJoin makes room the client's active room and replays its log. A
// rejected join leaves the client with no active room and an empty history.
func (h *Hub) handleJoin(ctx context.Context, c *Client, room string) {
	h.leaveRoom(c)

	if !h.rooms.CanAccess(ctx, c.Name, room) {
		h.log.Debug().Str("user", c.Name).Str("room", room).Msg("join rejected")
		h.deliver(c, &Event{Kind: EventHistory, Room: room, Messages: []Message{}})
		return
	}

	r, ok := h.live[room]
	if !ok {
		r = NewRoom(room)
		h.live[room] = r
	}
	r.AddClient(c)
	c.room = room

	history := h.rooms.History(ctx, room)
	h.deliver(c, &Event{Kind: EventHistory, Room: room, Messages: messagesFromStore(history)})
}

func (h *Hub) leaveRoom(c *Client) {
	if c.room == "" {
		return
	}
	if r, ok := h.live[c.room]; ok {
		r.RemoveClient(c)
		if r.Empty() {
			delete(h.live, c.room)
		}
	}
	c.room = ""
}

func (h *Hub) handleChat(ctx context.Context, c *Client, room, text string) {
	if room == "" || room != c.room {
		h.deliver(c, errorEvent(room, coreError(ErrCodeNotInRoom, "join the room first")))
		return
	}
	if text == "" {
		return
	}
	if !h.rooms.CanAccess(ctx, c.Name, room) {
		// Access was revoked or the room vanished since the join.
		h.leaveRoom(c)
		return
	}

	u := ParseUtterance(text, h.moderator.Is(c.Name), h.prefixes)
	switch u.Kind {
	case UtteranceOnline:
		h.online(c, room)
	case UtteranceMute, UtteranceUnmute:
		h.setMuted(ctx, c, room, u.Target, u.Kind == UtteranceMute)
	case UtteranceKick:
		h.kick(ctx, c, room, u.Target)
	case UtteranceLockdown:
		h.lockdown(c)
	case UtteranceAssistant:
		h.askAssistant(ctx, c, room, u)
	default:
		h.post(ctx, c, room, text)
	}
}

// post persists and fans out ordinary chat. Muted senders are dropped silently.
func (h *Hub) post(ctx context.Context, c *Client, room, text string) bool {
	if h.rooms.IsMuted(ctx, room, c.Name) {
		h.log.Debug().Str("user", c.Name).Str("room", room).Msg("dropped message from muted user")
		return false
	}

	msg, err := h.rooms.Post(ctx, room, c.Name, text, store.MessageTypeChat)
	if err != nil {
		h.log.Error().Err(err).Str("user", c.Name).Str("room", room).Msg("persist message failed")
		h.deliver(c, errorEvent(room, coreError(ErrCodeInternal, "message not saved")))
		return false
	}
	h.publish(msg)
	return true
}

func (h *Hub) publish(msg *store.Message) {
	h.fanout(msg.Room, &Event{Kind: EventMessage, Room: msg.Room, Message: messageFromStore(msg)})
	if err := h.mirror.Publish(msg); err != nil {
		h.log.Warn().Err(err).Str("room", msg.Room).Msg("mirror publish failed")
	}
}

func (h *Hub) online(c *Client, room string) {
	var names []string
	if r, ok := h.live[room]; ok {
		names = r.Names()
	}
	text := fmt.Sprintf("No users currently in %s.", room)
	if len(names) > 0 {
		text = fmt.Sprintf("Online users in %s: %s", room, strings.Join(names, ", "))
	}
	h.deliver(c, noticeEvent(room, text))
}

func (h *Hub) setMuted(ctx context.Context, c *Client, room, target string, muted bool) {
	if target == "" {
		return
	}

	changed, err := h.rooms.SetMuted(ctx, room, target, muted)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Str("user", target).Msg("update mute failed")
		h.deliver(c, errorEvent(room, coreError(ErrCodeInternal, "mute update failed")))
		return
	}
	if !changed {
		return
	}

	verb := "unmuted"
	if muted {
		verb = "muted"
	}
	h.fanout(room, noticeEvent(room, fmt.Sprintf("%s has been %s.", target, verb)))
}

// kick disconnects every connection of target in room and revokes their sessions.
func (h *Hub) kick(ctx context.Context, c *Client, room, target string) {
	if target == "" {
		return
	}

	var targets []*Client
	if r, ok := h.live[room]; ok {
		targets = r.ClientsNamed(target)
	}
	if len(targets) == 0 {
		h.deliver(c, noticeEvent(room, fmt.Sprintf("User %s not found or not connected.", target)))
		return
	}

	for _, t := range targets {
		t.send(noticeEvent(room, NoticeKicked))
		h.revoke(ctx, t)
		h.drop(t, CloseKicked)
	}

	h.log.Info().Str("room", room).Str("user", target).Str("by", c.Name).Msg("user kicked")
	h.fanout(room, noticeEvent(room, fmt.Sprintf("%s has been kicked from the room.", target)))
}

func (h *Hub) revoke(ctx context.Context, c *Client) {
	if c.SessionID == "" {
		return
	}
	if err := h.sessions.Invalidate(ctx, c.SessionID); err != nil {
		h.log.Error().Err(err).Str("user", c.Name).Msg("invalidate session failed")
	}
}

// unsubscribe removes every connection of username from room and tells each one why.
func (h *Hub) unsubscribe(room, username, notice string) {
	r, ok := h.live[room]
	if !ok {
		return
	}
	ev := noticeEvent(room, notice)
	for _, c := range r.ClientsNamed(username) {
		h.leaveRoom(c)
		h.deliver(c, ev)
	}
}

func (h *Hub) lockdown(c *Client) {
	text := NoticeLockdownOff
	if h.admission.Toggle() {
		text = NoticeLockdownOn
	}
	h.log.Warn().Str("by", c.Name).Msg(strings.ToLower(text))
	h.deliver(c, noticeEvent("", text))
}

// askAssistant posts the triggering line and asks the provider in the
// background. The reply is persisted from the loop once it arrives.
func (h *Hub) askAssistant(ctx context.Context, c *Client, room string, u Utterance) {
	if !h.post(ctx, c, room, u.Text) {
		return
	}

	a := h.assistants[u.Prefix]
	h.tasks.Add(1)
	go func() {
		defer h.tasks.Done()

		var (
			callCtx context.Context
			cancel  context.CancelFunc
		)
		if h.assistantTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, h.assistantTimeout)
		} else {
			callCtx, cancel = context.WithCancel(ctx)
		}
		reply, err := a.Producer.Complete(callCtx, u.Prompt)
		cancel()

		h.enqueue(func(loopCtx context.Context) {
			h.finishAssistant(loopCtx, room, a, reply, err)
		})
	}()
}

func (h *Hub) finishAssistant(ctx context.Context, room string, a Assistant, reply string, err error) {
	if err == nil && reply == "" {
		err = assistant.ErrEmptyReply
	}
	if err != nil {
		h.log.Warn().Err(err).Str("room", room).Str("assistant", a.Sender).Msg("assistant failed")
		h.fanout(room, noticeEvent(room, NoticeAIFailed))
		return
	}

	msg, err := h.rooms.Post(ctx, room, a.Sender, reply, store.MessageTypeChat)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("persist assistant reply failed")
		return
	}
	h.publish(msg)
}

func (h *Hub) broadcast(ctx context.Context, text string) error {
	posted, err := h.rooms.Broadcast(ctx, text)
	if len(posted) == 0 && err != nil {
		return err
	}

	byRoom := make(map[string]Message, len(posted))
	fallback := Message{
		From:      store.SenderBroadcast,
		Text:      text,
		Type:      store.MessageTypeBroadcast,
		Timestamp: time.Now().UnixMilli(),
	}
	for _, m := range posted {
		byRoom[m.Room] = messageFromStore(m)
		fallback.Timestamp = m.Timestamp
		if perr := h.mirror.Publish(m); perr != nil {
			h.log.Warn().Err(perr).Str("room", m.Room).Msg("mirror publish failed")
		}
	}

	for c := range h.clients {
		msg, ok := byRoom[c.room]
		if !ok {
			msg = fallback
		}
		h.deliver(c, &Event{Kind: EventMessage, Room: msg.Room, Message: msg})
	}

	h.log.Info().Int("rooms", len(posted)).Msg("broadcast sent")
	return err
}

// deleteMessage requires current room access on top of authorship, so a
// user removed from a private room cannot touch its log.
func (h *Hub) deleteMessage(ctx context.Context, requester, room string, index int) error {
	if !h.rooms.CanAccess(ctx, requester, room) {
		return rooms.ErrForbidden
	}
	if _, err := h.rooms.DeleteMessage(ctx, requester, room, index); err != nil {
		return err
	}
	h.fanout(room, &Event{Kind: EventMessageDeleted, Room: room, Index: index})
	return nil
}

func (h *Hub) deleteRoom(ctx context.Context, requester, room string) error {
	if err := h.rooms.Delete(ctx, requester, room); err != nil {
		return err
	}

	r, ok := h.live[room]
	if !ok {
		return nil
	}
	subscribers := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		subscribers = append(subscribers, c)
	}
	ev := noticeEvent(room, fmt.Sprintf("Room %s was deleted.", room))
	for _, c := range subscribers {
		h.leaveRoom(c)
		h.deliver(c, ev)
	}
	return nil
}

func (h *Hub) fanout(room string, ev *Event) {
	r, ok := h.live[room]
	if !ok {
		return
	}
	for _, c := range r.Broadcast(ev) {
		h.evict(c)
	}
}

func (h *Hub) deliver(c *Client, ev *Event) {
	if !c.send(ev) {
		h.evict(c)
	}
}

// evict drops a client that cannot keep up, so surviving subscribers never see gaps.
func (h *Hub) evict(c *Client) {
	h.log.Warn().Str("client_id", c.ID).Str("user", c.Name).Msg("evicting slow consumer")
	h.drop(c, CloseSlowConsumer)
}

func (h *Hub) drop(c *Client, reason CloseReason) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	h.leaveRoom(c)
	delete(h.clients, c)
	c.close(reason)
}

func noticeEvent(room, text string) *Event {
	return &Event{Kind: EventNotice, Room: room, Text: text}
}

func errorEvent(room string, err *CoreError) *Event {
	return &Event{Kind: EventError, Room: room, Error: err}
}
