package ws

import (
	"log/slog"
	"sync"
	"time"

	"molva/internal/models"
	"molva/internal/presence"
	"molva/internal/rooms"
)

// outboundBuffer is the per-connection queue depth. A connection that cannot
// drain in time loses events rather than blocking the hub.
const outboundBuffer = 100

type lastSeenStore interface {
	UpdateLastSeen(userID string, lastSeen time.Time) error
}

// Hub owns the presence registry, the room router and the set of live
// connections. It is the single place connection events mutate shared state.
type Hub struct {
	presence *presence.Registry
	rooms    *rooms.Router
	store    lastSeenStore
	logger   *slog.Logger

	mu    sync.RWMutex
	conns map[string]chan ServerEvent
}

func NewHub(reg *presence.Registry, store lastSeenStore, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		presence: reg,
		store:    store,
		logger:   logger,
		conns:    make(map[string]chan ServerEvent),
	}
	h.rooms = rooms.NewRouter(h)
	return h
}

// Presence exposes the registry for read-only collaborators.
func (h *Hub) Presence() *presence.Registry {
	return h.presence
}

// Register creates the outbound channel for a new connection.
func (h *Hub) Register(connID string) chan ServerEvent {
	ch := make(chan ServerEvent, outboundBuffer)
	h.mu.Lock()
	h.conns[connID] = ch
	h.mu.Unlock()
	return ch
}

// Unregister tears the connection down: leaves all rooms, clears presence,
// persists last-seen and tells everyone. A connection that never
// authenticated leaves no presence trace.
func (h *Hub) Unregister(connID string) {
	h.rooms.LeaveAll(connID)

	userID, wasOnline := h.presence.MarkOffline(connID)

	h.mu.Lock()
	if ch, ok := h.conns[connID]; ok {
		close(ch)
		delete(h.conns, connID)
	}
	h.mu.Unlock()

	if !wasOnline {
		return
	}

	lastSeen := time.Now()
	if err := h.store.UpdateLastSeen(userID, lastSeen); err != nil {
		h.logger.Error("failed to persist last seen", "user_id", userID, "error", err)
	}
	h.BroadcastAll(models.EventUpdateOnlineUsers, h.presence.Online())
	h.BroadcastAll(models.EventUserLastSeen, models.LastSeenNotice{UserID: userID, LastSeen: lastSeen})
}

// UserOnline binds a user identity to a connection and announces the new
// online set. A newer connection silently replaces an older one for the
// same user.
func (h *Hub) UserOnline(connID, userID string) {
	h.presence.MarkOnline(userID, connID)
	h.BroadcastAll(models.EventUpdateOnlineUsers, h.presence.Online())
}

// JoinRoom adds the connection to a chat's broadcast group.
func (h *Hub) JoinRoom(connID, chatID string) {
	h.rooms.Join(connID, chatID)
}

// Relay re-broadcasts an ephemeral event (typing indicators) to the room
// verbatim, excluding the sender. No persistence, errors swallowed.
func (h *Hub) Relay(connID, event, chatID string, payload any) {
	h.rooms.Broadcast(chatID, event, payload, connID)
}

// Send delivers an event to a single connection. Implements rooms.Sender:
// fire-and-forget, dropped when the connection is gone or its queue is full.
func (h *Hub) Send(connID, event string, payload any) {
	h.mu.RLock()
	ch, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case ch <- ServerEvent{Type: event, Data: payload}:
	default:
		h.logger.Warn("dropping event for slow connection", "conn_id", connID, "event", event)
	}
}

// ToRoom broadcasts to every member of a room except excludeConnID.
// Implements the lifecycle manager's Broadcaster.
func (h *Hub) ToRoom(roomID, event string, payload any, excludeConnID string) {
	h.rooms.Broadcast(roomID, event, payload, excludeConnID)
}

// ToConn delivers directly to one connection.
func (h *Hub) ToConn(connID, event string, payload any) {
	h.Send(connID, event, payload)
}

// BroadcastAll delivers to every live connection.
func (h *Hub) BroadcastAll(event string, payload any) {
	h.mu.RLock()
	connIDs := make([]string, 0, len(h.conns))
	for connID := range h.conns {
		connIDs = append(connIDs, connID)
	}
	h.mu.RUnlock()

	for _, connID := range connIDs {
		h.Send(connID, event, payload)
	}
}
