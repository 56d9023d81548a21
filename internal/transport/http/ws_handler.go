package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/utils"
)

// errHubClosed means the hub dropped the client and the close frame was already sent.
var errHubClosed = errors.New("closed by hub")

// WSHandler upgrades HTTP connections and bridges them to core.Client.
type WSHandler struct {
	hub        *core.Hub
	auth       *auth.Service
	readLimit  int64
	ratePerMin int
	log        *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:        hub,
		auth:       authService,
		readLimit:  cfg.MaxMessageBytes,
		ratePerMin: cfg.RateLimitPerMinute,
		log:        logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	identity, authErr := h.auth.Resolve(r.Context(), tokenFromRequest(r))

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if authErr != nil {
		h.log.Debug().Err(authErr).Str("remote", r.RemoteAddr).Msg("terminating unauthenticated ws connection")
		conn.Close(websocket.StatusPolicyViolation, "")
		return
	}

	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	client := core.NewClient(utils.NewID(), identity.Username, identity.SessionID)
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	h.log.Debug().Str("client_id", client.ID).Str("user", client.Name).Msg("ws connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	if errors.Is(err, errHubClosed) {
		return
	}

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "read error"
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	limiter := newRateLimiter(h.ratePerMin)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			if err := h.writeError(ctx, conn, core.ErrCodeRateLimited, "too many messages"); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if typ != websocket.MessageText || json.Unmarshal(data, &inbound) != nil {
			if err := h.writeError(ctx, conn, core.ErrCodeInvalidMessage, "malformed message"); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			if err := wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr}); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-client.Done():
			return errHubClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeError(ctx context.Context, conn *websocket.Conn, code, msg string) error {
	return wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: code, Msg: msg},
	})
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			return h.closeFromHub(ctx, conn, client)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// closeFromHub sends the close frame for a client the hub dropped. A kicked or
// deleted client first receives whatever is still buffered, including its notice.
func (h *WSHandler) closeFromHub(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	reason := client.CloseReason()

	if reason == core.CloseKicked || reason == core.CloseAccountDeleted {
	flush:
		for {
			select {
			case event := <-client.Events:
				if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
					return err
				}
			default:
				break flush
			}
		}
	}

	status, text := closeStatus(reason)
	h.log.Debug().Str("client_id", client.ID).Str("user", client.Name).Str("reason", text).Msg("closing ws connection")
	conn.Close(status, text)
	return errHubClosed
}

func closeStatus(reason core.CloseReason) (websocket.StatusCode, string) {
	switch reason {
	case core.CloseKicked:
		return websocket.StatusPolicyViolation, "kicked"
	case core.CloseAccountDeleted:
		return websocket.StatusPolicyViolation, "account deleted"
	case core.CloseSlowConsumer:
		return websocket.StatusTryAgainLater, "slow consumer"
	case core.CloseShutdown:
		return websocket.StatusGoingAway, "server shutting down"
	default:
		return websocket.StatusNormalClosure, "closing"
	}
}
