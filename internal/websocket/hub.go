// Itinera - Live Location Trails and Remote Recording Configuration
// Copyright 2026 Itinera Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/itinera/itinera

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/itinera/itinera/internal/logging"
	"github.com/itinera/itinera/internal/metrics"
)

// Message types carried over the wire. config, tracks, and notice are
// server-pushed; ping and pong keep the connection alive.
const (
	MessageTypeConfig = "config"
	MessageTypeTracks = "tracks"
	MessageTypeNotice = "notice"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
)

// Message is one websocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub maintains the set of active clients and fans messages out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.Mutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// String implements suture's service naming.
func (h *Hub) String() string { return "websocket-hub" }

// Publish implements the engine's publisher contract. A full broadcast
// queue drops the message; clients resynchronize on their next connect.
func (h *Hub) Publish(event string, payload any) {
	select {
	case h.broadcast <- Message{Type: event, Data: payload}:
	default:
		logging.Warn().Str("type", event).Msg("broadcast queue full, dropping message")
	}
}

// Broadcast enqueues a message for every connected client.
func (h *Hub) Broadcast(msg Message) {
	h.Publish(msg.Type, msg.Data)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve implements suture.Service. Lifecycle events take priority over
// broadcasts so the client set is settled before a message fans out; when
// several channels are ready Go's select picks randomly, so the priority
// is imposed with a non-blocking pre-check.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WebsocketClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WebsocketClients.Set(float64(total))
	logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
}

// fanOut delivers msg to every client in ID order. A client whose send
// buffer is full is disconnected; it will resynchronize when it reconnects.
func (h *Hub) fanOut(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var stale []*Client
	for _, client := range clients {
		select {
		case client.send <- msg:
		default:
			stale = append(stale, client)
		}
	}
	for _, client := range stale {
		close(client.send)
		delete(h.clients, client)
		logging.Warn().Uint64("client_id", client.id).Msg("dropping slow websocket client")
	}
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.WebsocketClients.Set(0)
	logging.Info().
		Str("component", "websocket-hub").
		AnErr("reason", ctx.Err()).
		Int("clients_closed", len(clients)).
		Msg("websocket hub stopped")
}
