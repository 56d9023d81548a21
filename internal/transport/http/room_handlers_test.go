package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/vovakirdan/roomchat/internal/proto"
	"github.com/vovakirdan/roomchat/internal/store"
)

func TestCreateRoom(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login(t, "alice")

	resp := srv.do(t, http.MethodPost, "/api/rooms", token, CreateRoomRequest{Name: "team", IsPrivate: true, Allowed: []string{"bob"}})
	expectStatus(t, resp, http.StatusCreated)

	room := decode[RoomResponse](t, resp)
	if room.Name != "team" || !room.Private || room.Creator != "alice" {
		t.Fatalf("unexpected room %+v", room)
	}
	if len(room.Allowed) != 3 || room.Allowed[0] != testModerator || room.Allowed[1] != "alice" || room.Allowed[2] != "bob" {
		t.Fatalf("unexpected allowed list %v", room.Allowed)
	}

	// Without token
	expectStatus(t, srv.do(t, http.MethodPost, "/api/rooms", "", CreateRoomRequest{Name: "nope"}), http.StatusUnauthorized)

	// Duplicate name
	expectStatus(t, srv.do(t, http.MethodPost, "/api/rooms", token, CreateRoomRequest{Name: "team"}), http.StatusConflict)

	// Missing name
	expectStatus(t, srv.do(t, http.MethodPost, "/api/rooms", token, CreateRoomRequest{}), http.StatusBadRequest)
}

func TestListRoomsFiltersByAccess(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	if _, err := srv.rooms.Create(ctx, "alice", "general", false, nil); err != nil {
		t.Fatalf("create general: %v", err)
	}
	if _, err := srv.rooms.Create(ctx, "alice", "team", true, []string{"bob"}); err != nil {
		t.Fatalf("create team: %v", err)
	}

	cases := map[string][]string{
		"bob":         {"general", "team"},
		"carol":       {"general"},
		testModerator: {"general", "team"},
	}
	for user, want := range cases {
		resp := srv.do(t, http.MethodGet, "/api/rooms", srv.login(t, user), nil)
		expectStatus(t, resp, http.StatusOK)

		got := decode[[]string](t, resp)
		if len(got) != len(want) {
			t.Fatalf("%s: expected %v, got %v", user, want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: expected %v, got %v", user, want, got)
			}
		}
	}

	expectStatus(t, srv.do(t, http.MethodGet, "/api/rooms", "", nil), http.StatusUnauthorized)
}

func TestRoomMembershipEndpoints(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.login(t, "alice")
	carol := srv.login(t, "carol")

	expectStatus(t, srv.do(t, http.MethodPost, "/api/rooms", alice, CreateRoomRequest{Name: "team", IsPrivate: true}), http.StatusCreated)
	expectStatus(t, srv.do(t, http.MethodPost, "/api/rooms", alice, CreateRoomRequest{Name: "open"}), http.StatusCreated)

	add := func(token, room, user string) *http.Response {
		return srv.do(t, http.MethodPost, "/api/rooms/"+room+"/add-user", token, UsernameRequest{Username: user})
	}
	remove := func(token, room, user string) *http.Response {
		return srv.do(t, http.MethodPost, "/api/rooms/"+room+"/remove-user", token, UsernameRequest{Username: user})
	}

	expectStatus(t, add(carol, "team", "carol"), http.StatusForbidden)
	expectStatus(t, add(alice, "team", "bob"), http.StatusOK)
	expectStatus(t, add(alice, "team", "bob"), http.StatusConflict)
	expectStatus(t, add(alice, "open", "bob"), http.StatusBadRequest)
	expectStatus(t, add(alice, "ghost", "bob"), http.StatusNotFound)
	expectStatus(t, srv.do(t, http.MethodPost, "/api/rooms/team/add-user", alice, map[string]string{}), http.StatusBadRequest)

	expectStatus(t, remove(alice, "team", testModerator), http.StatusBadRequest)
	expectStatus(t, remove(alice, "team", "alice"), http.StatusBadRequest)
	expectStatus(t, remove(alice, "team", "carol"), http.StatusNotFound)

	resp := remove(alice, "team", "bob")
	expectStatus(t, resp, http.StatusOK)
	room := decode[RoomResponse](t, resp)
	if len(room.Allowed) != 2 {
		t.Fatalf("unexpected allowed list %v", room.Allowed)
	}
}

func TestDeleteRoomNotifiesSubscribers(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.login(t, "alice")
	bob := srv.login(t, "bob")

	expectStatus(t, srv.do(t, http.MethodPost, "/api/rooms", alice, CreateRoomRequest{Name: "general"}), http.StatusCreated)
	if _, err := srv.rooms.Post(context.Background(), "general", "alice", "hello", store.MessageTypeChat); err != nil {
		t.Fatalf("post: %v", err)
	}

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()
	conn := srv.dial(t, ctx, bob)
	joinRoom(t, ctx, conn, "general")

	expectStatus(t, srv.do(t, http.MethodDelete, "/api/rooms/general", bob, nil), http.StatusForbidden)
	expectStatus(t, srv.do(t, http.MethodDelete, "/api/rooms/general", alice, nil), http.StatusOK)
	expectStatus(t, srv.do(t, http.MethodDelete, "/api/rooms/general", alice, nil), http.StatusNotFound)

	out := readEvent(t, ctx, conn, proto.EventNotice)
	var notice proto.EventNoticeData
	if err := json.Unmarshal(out.Data, &notice); err != nil {
		t.Fatalf("unmarshal notice: %v", err)
	}
	if notice.Text != "Room general was deleted." {
		t.Fatalf("unexpected notice %q", notice.Text)
	}

	// Recreating the room starts with an empty log.
	expectStatus(t, srv.do(t, http.MethodPost, "/api/rooms", alice, CreateRoomRequest{Name: "general"}), http.StatusCreated)
	if h := srv.rooms.History(context.Background(), "general"); len(h) != 0 {
		t.Fatalf("history survived deletion: %+v", h)
	}
}

func TestDeleteMessageEndpoint(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.login(t, "alice")
	bob := srv.login(t, "bob")
	mod := srv.login(t, testModerator)

	expectStatus(t, srv.do(t, http.MethodPost, "/api/rooms", alice, CreateRoomRequest{Name: "general"}), http.StatusCreated)
	for _, text := range []string{"first", "second"} {
		if _, err := srv.rooms.Post(context.Background(), "general", "alice", text, store.MessageTypeChat); err != nil {
			t.Fatalf("post: %v", err)
		}
	}

	expectStatus(t, srv.do(t, http.MethodDelete, "/api/rooms/general/messages/abc", alice, nil), http.StatusBadRequest)
	expectStatus(t, srv.do(t, http.MethodDelete, "/api/rooms/general/messages/9", alice, nil), http.StatusNotFound)
	expectStatus(t, srv.do(t, http.MethodDelete, "/api/rooms/general/messages/0", bob, nil), http.StatusForbidden)
	expectStatus(t, srv.do(t, http.MethodDelete, "/api/rooms/general/messages/0", alice, nil), http.StatusOK)
	expectStatus(t, srv.do(t, http.MethodDelete, "/api/rooms/general/messages/0", mod, nil), http.StatusOK)

	if h := srv.rooms.History(context.Background(), "general"); len(h) != 0 {
		t.Fatalf("expected empty log, got %+v", h)
	}
}

func TestRemoveUserUnsubscribesLiveConnection(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.login(t, "alice")
	bob := srv.login(t, "bob")

	expectStatus(t, srv.do(t, http.MethodPost, "/api/rooms", alice, CreateRoomRequest{Name: "team", IsPrivate: true, Allowed: []string{"bob"}}), http.StatusCreated)
	expectStatus(t, srv.do(t, http.MethodPost, "/api/rooms", alice, CreateRoomRequest{Name: "open"}), http.StatusCreated)

	ctx, closeCtx := context.WithTimeout(context.Background(), 5*time.Second)
	defer closeCtx()
	connA := srv.dial(t, ctx, alice)
	connB := srv.dial(t, ctx, bob)
	joinRoom(t, ctx, connA, "team")
	joinRoom(t, ctx, connB, "team")

	expectStatus(t, srv.do(t, http.MethodPost, "/api/rooms/team/remove-user", alice, UsernameRequest{Username: "bob"}), http.StatusOK)

	out := readEvent(t, ctx, connB, proto.EventNotice)
	var notice proto.EventNoticeData
	if err := json.Unmarshal(out.Data, &notice); err != nil {
		t.Fatalf("unmarshal notice: %v", err)
	}
	if notice.Text != "You were removed from team." {
		t.Fatalf("unexpected notice %q", notice.Text)
	}

	send(t, ctx, connA, proto.InboundTypeChat, proto.ChatData{Room: "team", Text: "secret plans"})
	readEvent(t, ctx, connA, proto.EventMessage)

	// The hub handles bob's join after alice's message, so anything bob was
	// still subscribed to would arrive before the history.
	send(t, ctx, connB, proto.InboundTypeJoin, proto.JoinData{Room: "open"})
	for {
		out := read(t, ctx, connB)
		if out.Event == proto.EventMessage {
			t.Fatalf("removed member received %s", out.Data)
		}
		if out.Event == proto.EventHistory {
			break
		}
	}
}
