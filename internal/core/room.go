package core

import "sort"

// Room groups the live connections whose active room it is.
type Room struct {
	Name    string
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast sends an event to all clients in the room and returns those whose
// buffer was full.
func (r *Room) Broadcast(event *Event) []*Client {
	var slow []*Client
	for client := range r.clients {
		if !client.send(event) {
			slow = append(slow, client)
		}
	}
	return slow
}

// ClientsNamed returns the connections authenticated as name.
func (r *Room) ClientsNamed(name string) []*Client {
	var out []*Client
	for client := range r.clients {
		if client.Name == name {
			out = append(out, client)
		}
	}
	return out
}

// Names returns the distinct usernames present, sorted.
func (r *Room) Names() []string {
	seen := make(map[string]struct{}, len(r.clients))
	names := make([]string, 0, len(r.clients))
	for client := range r.clients {
		if _, ok := seen[client.Name]; ok {
			continue
		}
		seen[client.Name] = struct{}{}
		names = append(names, client.Name)
	}
	sort.Strings(names)
	return names
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}
