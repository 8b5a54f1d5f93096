// Citywatch - Public Safety Radio Intelligence
// Copyright 2026 Citywatch Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citywatch-project/citywatch

// Package broadcast fans bus events out to websocket subscribers. The
// hub is a plain register/unregister/broadcast loop; slow clients are
// dropped rather than allowed to back-pressure the bus.
package broadcast

import (
	"context"

	"github.com/citywatch-project/citywatch/internal/logging"
	"github.com/citywatch-project/citywatch/internal/metrics"
)

// Hub tracks connected websocket clients and fans messages out to them.
// All client-set mutation happens on the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

// NewHub creates an empty hub. Call Run before registering clients.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
	}
}

// String names the hub in supervisor logs.
func (h *Hub) String() string { return "broadcast-hub" }

// Serve runs the hub loop until the context ends. Implements
// suture.Service.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			metrics.WebSocketClients.Set(0)
			return ctx.Err()
		case client := <-h.register:
			h.clients[client] = true
			metrics.WebSocketClients.Set(float64(len(h.clients)))
			logging.Debug().Str("remote", client.remoteAddr).Int("clients", len(h.clients)).
				Msg("websocket client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebSocketClients.Set(float64(len(h.clients)))
				logging.Debug().Str("remote", client.remoteAddr).Int("clients", len(h.clients)).
					Msg("websocket client disconnected")
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Send buffer full: the client is not keeping up.
					delete(h.clients, client)
					close(client.send)
					metrics.WebSocketClients.Set(float64(len(h.clients)))
					logging.Warn().Str("remote", client.remoteAddr).Msg("slow websocket client dropped")
				}
			}
		}
	}
}

// Broadcast queues a message for every connected client. Drops the
// message when the hub itself is saturated.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Msg("broadcast hub saturated, message dropped")
	}
}
