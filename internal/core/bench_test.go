package core

import (
	"context"
	"strconv"
	"testing"

	"github.com/vovakirdan/roomchat/internal/store"
)

// memRooms keeps the benchmark on the fan-out path instead of the database.
type memRooms struct{ next int }

func (m *memRooms) CanAccess(context.Context, string, string) bool { return true }
func (m *memRooms) History(context.Context, string) []*store.Message {
	return nil
}
func (m *memRooms) IsMuted(context.Context, string, string) bool { return false }
func (m *memRooms) SetMuted(context.Context, string, string, bool) (bool, error) {
	return false, nil
}

func (m *memRooms) Post(_ context.Context, room, from, text string, typ store.MessageType) (*store.Message, error) {
	msg := &store.Message{Room: room, From: from, Text: text, Type: typ, Index: m.next, Timestamp: int64(m.next)}
	m.next++
	return msg, nil
}

func (m *memRooms) Broadcast(context.Context, string) ([]*store.Message, error) { return nil, nil }
func (m *memRooms) DeleteMessage(context.Context, string, string, int) (*store.Message, error) {
	return nil, store.ErrNotFound
}
func (m *memRooms) Delete(context.Context, string, string) error { return nil }
func (m *memRooms) RemoveUser(context.Context, string, string, string) (*store.Room, error) {
	return nil, store.ErrNotFound
}

func drain(c *Client) {
	for {
		select {
		case <-c.Events:
		case <-c.Done():
			return
		}
	}
}

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(Options{Rooms: &memRooms{}})
	go hub.Run(ctx)

	joinBench := func(c *Client) {
		hub.RegisterClient(c)
		c.Commands <- &Command{Kind: CommandJoinRoom, Room: "bench"}
		<-c.Events
	}

	sender := NewClient("sender", "sender", "")
	joinBench(sender)
	go drain(sender)

	clients := make([]*Client, 0, recipients)
	for i := range recipients {
		c := NewClient("c"+strconv.Itoa(i), "client", "")
		joinBench(c)
		clients = append(clients, c)
	}

	// Only the first recipient is read synchronously.
	target := clients[0]
	for _, c := range clients[1:] {
		go drain(c)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sender.Commands <- &Command{Kind: CommandChat, Room: "bench", Text: "payload"}
		<-target.Events
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }
