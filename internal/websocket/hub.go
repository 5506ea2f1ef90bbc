package websocket

import (
	"context"
	"encoding/json"
	"log/slog"

	"sotto-note/internal/event"
)

// Hub fans bus events out to the sockets of the user each event belongs to.
// The browser mirror listens here to know when to drop cached state.
type Hub struct {
	// Connected clients, grouped by user id.
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	bus event.Bus
}

func NewHub(bus event.Bus) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		bus:        bus,
	}
}

func (h *Hub) Run(ctx context.Context) {
	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = map[string]map[*Client]struct{}{}
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			h.remove(client)
		case e, ok := <-events:
			if !ok {
				return
			}
			h.deliver(e)
		}
	}
}

func (h *Hub) deliver(e event.Event) {
	set := h.clients[e.UserID]
	if len(set) == 0 {
		return
	}

	message, err := json.Marshal(e)
	if err != nil {
		slog.Error("failed to marshal event", "error", err, "type", e.Type)
		return
	}

	for client := range set {
		select {
		case client.send <- message:
		default:
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}

	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}
