package access

import (
	"context"
	"testing"

	"github.com/vovakirdan/roomchat/internal/store"
	"github.com/vovakirdan/roomchat/internal/store/sqlite"
)

func TestModeratorIsCaseInsensitive(t *testing.T) {
	mod := Moderator("Admin")
	if !mod.Is("admin") || !mod.Is("ADMIN") {
		t.Fatal("expected case-insensitive moderator match")
	}
	if mod.Is("") || mod.Is("bob") {
		t.Fatal("unexpected moderator match")
	}
	if Moderator("").Is("") {
		t.Fatal("empty moderator must never match")
	}
}

func TestAllowed(t *testing.T) {
	mod := Moderator("Admin")
	public := &store.Room{Name: "general", Allowed: []string{"Admin"}, Creator: "alice"}
	team := &store.Room{Name: "team", Private: true, Allowed: []string{"Admin", "alice", "bob"}, Creator: "alice"}

	tests := []struct {
		name string
		room *store.Room
		user string
		want bool
	}{
		{"public admits anyone", public, "carol", true},
		{"private admits member", team, "bob", true},
		{"private rejects outsider", team, "carol", false},
		{"private admits moderator any case", team, "admin", true},
		{"nil room", nil, "alice", false},
		{"empty user", public, "", false},
		{"membership is case sensitive", team, "Bob", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Allowed(tt.room, tt.user, mod); got != tt.want {
				t.Fatalf("Allowed(%v, %q) = %v, want %v", tt.room, tt.user, got, tt.want)
			}
		})
	}
}

func TestGateReadsCurrentRegistryState(t *testing.T) {
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	gate := NewGate(st, "Admin", nil)

	if gate.CanAccess(ctx, "alice", "team") {
		t.Fatal("missing room must not be accessible")
	}

	if err := st.CreateRoom(ctx, &store.Room{Name: "team", Private: true, Allowed: []string{"Admin", "alice"}, Creator: "alice"}); err != nil {
		t.Fatalf("create room: %v", err)
	}
	if gate.CanAccess(ctx, "bob", "team") {
		t.Fatal("bob is not allowed yet")
	}

	if _, err := st.UpdateRoom(ctx, "team", func(r *store.Room) error {
		r.Allowed = append(r.Allowed, "bob")
		return nil
	}); err != nil {
		t.Fatalf("update room: %v", err)
	}
	if !gate.CanAccess(ctx, "bob", "team") {
		t.Fatal("bob should be admitted after being added")
	}
}
