package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub tracks live websocket connections and the channel rooms they watch.
// One connection may watch many channels; fan-out to a room walks only that
// room's connections.
type Hub struct {
	mu        sync.RWMutex
	conns     map[string]*Connection                    // connection ID -> connection
	rooms     map[uuid.UUID]map[string]*Connection      // channel ID -> connection ID -> connection
	connRooms map[string]map[uuid.UUID]struct{}         // connection ID -> watched channel IDs
}

func NewHub() *Hub {
	return &Hub{
		conns:     make(map[string]*Connection),
		rooms:     make(map[uuid.UUID]map[string]*Connection),
		connRooms: make(map[string]map[uuid.UUID]struct{}),
	}
}

// Attach registers a connection and starts its write loop.
func (h *Hub) Attach(conn *Connection) {
	h.mu.Lock()
	h.conns[conn.ID] = conn
	h.connRooms[conn.ID] = make(map[uuid.UUID]struct{})
	h.mu.Unlock()

	conn.Start()
}

// Detach removes a connection from the hub and every room it watches.
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	h.detachLocked(conn.ID)
	h.mu.Unlock()
}

// Join subscribes the connection to a channel room.
func (h *Hub) Join(channelID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[conn.ID]; !ok {
		return
	}
	room := h.rooms[channelID]
	if room == nil {
		room = make(map[string]*Connection)
		h.rooms[channelID] = room
	}
	room[conn.ID] = conn
	h.connRooms[conn.ID][channelID] = struct{}{}
}

// Leave unsubscribes the connection from a channel room.
func (h *Hub) Leave(channelID uuid.UUID, conn *Connection) {
	h.mu.Lock()
	h.leaveLocked(channelID, conn.ID)
	h.mu.Unlock()
}

// Broadcast delivers payload to every connection watching the channel and
// returns how many deliveries succeeded.
func (h *Hub) Broadcast(channelID uuid.UUID, payload []byte) int {
	h.mu.RLock()
	room := h.rooms[channelID]
	conns := make([]*Connection, 0, len(room))
	for _, conn := range room {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// Close terminates every tracked connection and clears hub state.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[string]*Connection)
	h.rooms = make(map[uuid.UUID]map[string]*Connection)
	h.connRooms = make(map[string]map[uuid.UUID]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(websocket.CloseGoingAway, "hub shutdown")
	}
}

func (h *Hub) detachLocked(connID string) {
	if _, ok := h.conns[connID]; !ok {
		return
	}
	delete(h.conns, connID)
	for channelID := range h.connRooms[connID] {
		h.leaveLocked(channelID, connID)
	}
	delete(h.connRooms, connID)
}

func (h *Hub) leaveLocked(channelID uuid.UUID, connID string) {
	room := h.rooms[channelID]
	if room == nil {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(h.rooms, channelID)
	}
	if watched, ok := h.connRooms[connID]; ok {
		delete(watched, channelID)
	}
}
