package relay

import (
	"sync"
)

// Hub tracks which senders belong to which room and fans events out to
// them. It is transport-level only: room membership semantics live in
// the registry, the hub just knows where to deliver bytes.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[EventSender]bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[EventSender]bool)}
}

// Join adds a sender to a room's delivery set.
func (h *Hub) Join(roomCode string, sender EventSender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomCode]; !ok {
		h.rooms[roomCode] = make(map[EventSender]bool)
	}
	h.rooms[roomCode][sender] = true
}

// Leave removes a sender; the room's delivery set disappears with its
// last sender.
func (h *Hub) Leave(roomCode string, sender EventSender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	senders, ok := h.rooms[roomCode]
	if !ok {
		return
	}
	delete(senders, sender)
	if len(senders) == 0 {
		delete(h.rooms, roomCode)
	}
}

// Broadcast delivers an event to every sender in the room. Delivery is
// non-blocking per recipient: a client with a full queue misses the
// event rather than stalling the rest of the room.
func (h *Hub) Broadcast(roomCode string, e Event) {
	h.mu.RLock()
	senders := make([]EventSender, 0, len(h.rooms[roomCode]))
	for sender := range h.rooms[roomCode] {
		senders = append(senders, sender)
	}
	h.mu.RUnlock()

	for _, sender := range senders {
		if !sender.Send(e) {
			Warn("broadcast dropped for slow client", map[string]any{"room": roomCode, "event": e.Type})
		}
	}
}

// ConnectedClients reports the total sender count across rooms.
func (h *Hub) ConnectedClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, senders := range h.rooms {
		total += len(senders)
	}
	return total
}
