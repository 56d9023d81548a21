package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/access"
	"github.com/vovakirdan/roomchat/internal/admission"
	"github.com/vovakirdan/roomchat/internal/auth"
	"github.com/vovakirdan/roomchat/internal/config"
	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/service/accounts"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
	"github.com/vovakirdan/roomchat/internal/session"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

const (
	testModerator = "Admin"
	testPassword  = "password123"
)

type testServer struct {
	ts        *httptest.Server
	auth      *auth.Service
	accounts  *accounts.Service
	rooms     *rooms.Service
	hub       *core.Hub
	admission *admission.Gate
}

func newTestServer(t *testing.T, tweak ...func(*config.Config)) *testServer {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.Default()
	cfg.RateLimitPerMinute = 0
	cfg.Moderator.Username = testModerator
	for _, fn := range tweak {
		fn(&cfg)
	}

	authService := auth.NewService(st, session.NewMemoryStore(time.Hour), &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      time.Hour,
	})
	moderator := access.Moderator(testModerator)
	roomService := rooms.New(st, access.NewGate(st, moderator, nil), nil)
	accountService := accounts.New(st, moderator, nil)
	gate := admission.New()

	hub := core.NewHub(core.Options{
		Rooms:     roomService,
		Sessions:  authService,
		Admission: gate,
		Moderator: moderator,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	disabledLogger := zerolog.Nop()
	handler := NewHandler(Deps{
		Hub:       hub,
		Auth:      authService,
		Accounts:  accountService,
		Rooms:     roomService,
		Admission: gate,
	}, &cfg, &disabledLogger)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	if err := accountService.SeedModerator(context.Background(), testPassword); err != nil {
		t.Fatalf("seed moderator: %v", err)
	}

	return &testServer{
		ts:        ts,
		auth:      authService,
		accounts:  accountService,
		rooms:     roomService,
		hub:       hub,
		admission: gate,
	}
}

// login creates the account if needed and returns a session token.
func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()

	if username != testModerator {
		_ = s.accounts.AddUser(context.Background(), username, testPassword)
	}
	token, _, err := s.auth.Login(context.Background(), username, testPassword)
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()

	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected status %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func (s *testServer) wsURL(token string) string {
	return strings.Replace(s.ts.URL, "http", "ws", 1) + "/ws?token=" + token
}

func (s *testServer) dial(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, s.wsURL(token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

type outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) outbound {
	t.Helper()

	var out outbound
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		t.Fatalf("read outbound: %v", err)
	}
	return out
}

// readEvent skips frames until an event of the given name arrives.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) outbound {
	t.Helper()

	for {
		out := read(t, ctx, conn)
		if out.Type == proto.OutboundTypeEvent && out.Event == event {
			return out
		}
	}
}

func joinRoom(t *testing.T, ctx context.Context, conn *websocket.Conn, room string) proto.EventHistoryData {
	t.Helper()

	send(t, ctx, conn, proto.InboundTypeJoin, proto.JoinData{Room: room})
	out := readEvent(t, ctx, conn, proto.EventHistory)

	var hist proto.EventHistoryData
	if err := json.Unmarshal(out.Data, &hist); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	return hist
}
