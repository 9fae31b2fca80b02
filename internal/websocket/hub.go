package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cleanmap/reports-service/internal/types"
)

// Hub maintains the set of connected moderation-feed clients and
// fans events out to all of them.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Events to fan out to every connected client
	broadcast chan *types.Event

	// Mutex to protect the clients map
	mu sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *types.Event, 64),
	}
}

// Run processes register/unregister/broadcast requests. Call in its
// own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Info("Moderation feed client connected", slog.String("user_id", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			slog.Info("Moderation feed client disconnected", slog.String("user_id", client.userID))

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				slog.Error("Failed to marshal event", slog.String("error", err.Error()))
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// slow client; drop the event rather than block the hub
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for delivery to every connected client.
// Never blocks; if the hub is saturated the event is dropped.
func (h *Hub) Broadcast(event *types.Event) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("Event broadcast dropped, hub saturated", slog.String("type", string(event.Type)))
	}
}

// RegisterClient adds a client to the hub.
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
