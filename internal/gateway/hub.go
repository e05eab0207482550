// Package gateway fronts the order service: it proxies the HTTP API and pushes each customer's
// lifecycle events to their open websocket connections.
package gateway

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"gozon/internal/events"
	"gozon/internal/logging"
)

const logService = "api-gateway"

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// seenEvents bounds how many recent event ids Dispatch remembers for deduplication.
const seenEvents = 4096

type WSHub struct {
	mu      sync.RWMutex
	clients map[int64][]Conn

	seenMu sync.Mutex
	seen   map[string]struct{}
	order  []string
}

func NewWSHub() *WSHub {
	return &WSHub{
		clients: make(map[int64][]Conn),
		seen:    make(map[string]struct{}, seenEvents),
	}
}

func (h *WSHub) AddClient(customerID int64, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[customerID] = append(h.clients[customerID], conn)
	logging.Log(logging.Fields{Service: logService, ActorID: customerID, Step: "ws_connect"})
}

func (h *WSHub) RemoveClient(customerID int64, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(customerID, conn)
	conn.Close()
	logging.Log(logging.Fields{Service: logService, ActorID: customerID, Step: "ws_disconnect"})
}

func (h *WSHub) removeLocked(customerID int64, conn Conn) {
	conns := h.clients[customerID]
	for i, c := range conns {
		if c == conn {
			h.clients[customerID] = append(conns[:i:i], conns[i+1:]...)
			break
		}
	}
	if len(h.clients[customerID]) == 0 {
		delete(h.clients, customerID)
	}
}

// Broadcast writes message to every connection of the customer, dropping the ones that fail.
func (h *WSHub) Broadcast(customerID int64, message []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for _, conn := range append([]Conn(nil), h.clients[customerID]...) {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Log(logging.Fields{Service: logService, ActorID: customerID, Step: "ws_write", Status: "error", Error: err.Error()})
			h.removeLocked(customerID, conn)
			conn.Close()
			continue
		}
		delivered++
	}
	return delivered
}

func (h *WSHub) Connections(customerID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[customerID])
}

// Dispatch routes one broker message to its customer. Malformed bodies and event ids
// delivered recently are dropped; the outbox publishes at least once.
func (h *WSHub) Dispatch(body []byte) {
	var ev events.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		logging.Log(logging.Fields{Service: logService, Step: "dispatch", Status: "malformed", Error: err.Error()})
		return
	}
	if ev.CustomerID == 0 {
		return
	}
	if ev.EventID != "" && !h.firstSeen(ev.EventID) {
		logging.Log(logging.Fields{Service: logService, EventID: ev.EventID, Step: "dispatch", Status: "duplicate"})
		return
	}
	h.Broadcast(ev.CustomerID, body)
}

func (h *WSHub) firstSeen(eventID string) bool {
	h.seenMu.Lock()
	defer h.seenMu.Unlock()
	if _, ok := h.seen[eventID]; ok {
		return false
	}
	if len(h.order) == seenEvents {
		delete(h.seen, h.order[0])
		h.order = h.order[1:]
	}
	h.seen[eventID] = struct{}{}
	h.order = append(h.order, eventID)
	return true
}
