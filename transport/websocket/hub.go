package websocket

import (
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yacoubb/roomhub/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Hub maintains the set of active clients and the named groups used for
// room broadcasts. It implements protocol.Broadcaster.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]*Client
	groups map[string]map[string]protocol.Conn

	dispatcher protocol.Dispatcher
}

// NewHub creates an empty hub. A dispatcher must be set before serving.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]*Client),
		groups: make(map[string]map[string]protocol.Conn),
	}
}

// SetDispatcher wires the protocol layer in. The hub and the dispatcher
// reference each other, so this runs after both are constructed.
func (h *Hub) SetDispatcher(d protocol.Dispatcher) {
	h.dispatcher = d
}

// ServeWS upgrades an HTTP request to a WebSocket connection and starts
// serving it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := newClient(h, conn, uuid.NewString())

	h.mu.Lock()
	h.conns[client.id] = client
	h.mu.Unlock()

	go client.writePump()
	h.dispatcher.Connected(client)
	go client.readPump()
}

// JoinGroup subscribes a connection to a group.
func (h *Hub) JoinGroup(group string, c protocol.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.groups[group] == nil {
		h.groups[group] = make(map[string]protocol.Conn)
	}
	h.groups[group][c.ID()] = c
}

// LeaveGroup unsubscribes a connection from a group.
func (h *Hub) LeaveGroup(group, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.groups[group], connID)
	if len(h.groups[group]) == 0 {
		delete(h.groups, group)
	}
}

// Broadcast sends an event to every current member of a group. The member
// snapshot is taken atomically, so a connection joining or leaving
// concurrently either gets the event or does not; it never gets a torn
// delivery.
func (h *Hub) Broadcast(group, event string, payload any) {
	h.mu.Lock()
	members := make([]protocol.Conn, 0, len(h.groups[group]))
	for _, c := range h.groups[group] {
		members = append(members, c)
	}
	h.mu.Unlock()

	for _, c := range members {
		c.Notify(event, payload)
	}
}

// Notify sends an event to a single connection by ID.
func (h *Hub) Notify(connID, event string, payload any) bool {
	h.mu.Lock()
	c, exists := h.conns[connID]
	h.mu.Unlock()
	if !exists {
		return false
	}
	c.Notify(event, payload)
	return true
}

// Clients returns the number of live connections.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// remove drops a connection from the hub and every group it is in. Group
// membership is normally already gone by the time this runs because the
// dispatcher's disconnect handling leaves the room first.
func (h *Hub) remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
	for group, members := range h.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}
