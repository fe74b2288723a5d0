// Package rooms groups connections into per-chat broadcast groups and fans
// events out to the members of a group.
package rooms

import "sync"

// Sender delivers an event to a single connection. Delivery is best-effort
// and fire-and-forget: a connection that has since disconnected simply does
// not receive it and no error is surfaced.
type Sender interface {
	Send(connID string, event string, payload any)
}

// Router manages room membership. A connection may belong to many rooms at
// once (one per chat it is viewing). All mutations share one mutex; finer
// locking is unnecessary at this scale.
type Router struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]struct{} // roomID -> set of connIDs
	sender Sender
}

func NewRouter(sender Sender) *Router {
	return &Router{
		rooms:  make(map[string]map[string]struct{}),
		sender: sender,
	}
}

// Join adds the connection to the room. Joining an already-joined room is
// idempotent.
func (r *Router) Join(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[string]struct{})
		r.rooms[roomID] = room
	}
	room[connID] = struct{}{}
}

// Leave removes the connection from the room. Empty rooms are dropped.
func (r *Router) Leave(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, roomID)
}

// LeaveAll removes the connection from every room it joined. Called on
// disconnect.
func (r *Router) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for roomID := range r.rooms {
		r.leaveLocked(connID, roomID)
	}
}

func (r *Router) leaveLocked(connID, roomID string) {
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}
}

// Broadcast delivers event+payload to every connection in roomID except the
// optionally excluded one (pass "" to exclude nobody).
func (r *Router) Broadcast(roomID, event string, payload any, excludeConnID string) {
	r.mu.RLock()
	members := make([]string, 0, len(r.rooms[roomID]))
	for connID := range r.rooms[roomID] {
		if connID != excludeConnID {
			members = append(members, connID)
		}
	}
	r.mu.RUnlock()

	for _, connID := range members {
		r.sender.Send(connID, event, payload)
	}
}

// Members returns the connections currently in roomID.
func (r *Router) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]string, 0, len(r.rooms[roomID]))
	for connID := range r.rooms[roomID] {
		members = append(members, connID)
	}
	return members
}
