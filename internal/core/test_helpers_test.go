package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/access"
	"github.com/vovakirdan/roomchat/internal/admission"
	"github.com/vovakirdan/roomchat/internal/service/rooms"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

const testModerator = "Admin"

type recordingSessions struct {
	mu          sync.Mutex
	invalidated []string
}

func (r *recordingSessions) Invalidate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated = append(r.invalidated, id)
	return nil
}

func (r *recordingSessions) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.invalidated...)
}

type testEnv struct {
	hub       *Hub
	rooms     *rooms.Service
	sessions  *recordingSessions
	admission *admission.Gate
}

func newTestEnv(t *testing.T, assistants ...Assistant) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	svc := rooms.New(st, access.NewGate(st, testModerator, nil), nil)
	env := &testEnv{
		rooms:     svc,
		sessions:  &recordingSessions{},
		admission: admission.New(),
	}
	env.hub = NewHub(Options{
		Rooms:            svc,
		Sessions:         env.sessions,
		Admission:        env.admission,
		Moderator:        testModerator,
		Assistants:       assistants,
		AssistantTimeout: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go env.hub.Run(ctx)
	return env
}

func (e *testEnv) createRoom(t *testing.T, creator, name string, private bool, allowed ...string) {
	t.Helper()
	if _, err := e.rooms.Create(context.Background(), creator, name, private, allowed); err != nil {
		t.Fatalf("create room %s: %v", name, err)
	}
}

func (e *testEnv) connect(name string) *Client {
	c := NewClient(name+"-conn", name, "sess-"+name)
	e.hub.RegisterClient(c)
	return c
}

func join(t *testing.T, c *Client, room string) *Event {
	t.Helper()
	c.Commands <- &Command{Kind: CommandJoinRoom, Room: room}
	return mustEvent(t, c.Events, EventHistory)
}

func say(c *Client, room, text string) {
	c.Commands <- &Command{Kind: CommandChat, Room: room, Text: text}
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// nextEvent returns whatever the client receives next.
func nextEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func mustNotice(t *testing.T, ch <-chan *Event, text string) {
	t.Helper()

	ev := mustEvent(t, ch, EventNotice)
	if ev.Text != text {
		t.Fatalf("expected notice %q, got %q", text, ev.Text)
	}
}

func expectSilence(t *testing.T, ch <-chan *Event) {
	t.Helper()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
