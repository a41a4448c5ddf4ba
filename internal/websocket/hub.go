// Fieldtrack - Field Personnel Location Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldtrack

// Package websocket fans newly ingested location fixes out to connected
// live viewers.
//
// Delivery is at-most-once with no replay. Publish never blocks: a fix that
// does not fit into the hub queue, or into a viewer's send buffer, is dropped
// and counted in fieldtrack_broadcast_dropped_total.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldtrack/internal/logging"
	"github.com/tomtom215/fieldtrack/internal/metrics"
	"github.com/tomtom215/fieldtrack/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeLocationUpdate = models.LocationUpdateEvent
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	defaultBroadcastBuffer = 256
	defaultClientBuffer    = 64
)

// Hub maintains the set of active clients and broadcasts fixes to them.
type Hub struct {
	clients      map[*Client]bool
	broadcast    chan models.LocationFix
	Register     chan *Client
	Unregister   chan *Client
	clientBuffer int
	mu           sync.RWMutex
}

// NewHub creates a Hub. broadcastBuffer bounds the hub queue and
// clientBuffer bounds each viewer's send channel.
func NewHub(broadcastBuffer, clientBuffer int) *Hub {
	if broadcastBuffer <= 0 {
		broadcastBuffer = defaultBroadcastBuffer
	}
	if clientBuffer <= 0 {
		clientBuffer = defaultClientBuffer
	}
	return &Hub{
		broadcast:    make(chan models.LocationFix, broadcastBuffer),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		clients:      make(map[*Client]bool),
		clientBuffer: clientBuffer,
	}
}

// Publish queues a persisted fix for delivery. It never blocks.
func (h *Hub) Publish(fix models.LocationFix) {
	select {
	case h.broadcast <- fix:
	default:
		metrics.BroadcastDropped.WithLabelValues("hub").Inc()
		logging.Warn().Str("user_id", fix.UserID).Msg("broadcast channel full, dropping location update")
	}
}

// RunWithContext runs the hub until ctx is canceled, then closes every
// client. It is designed for suture supervision.
//
// Lifecycle events are handled before broadcasts so a client registered
// before a Publish call sees that fix.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case fix := <-h.broadcast:
			h.broadcastToClients(fix)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Inc()
	logging.Info().
		Int("total_clients", total).
		Str("user_id", client.principal.ID).
		Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		metrics.WSConnections.Dec()
		logging.Info().Int("total_clients", total).Msg("websocket client disconnected")
	}
}

// logGracefulShutdown closes every client and logs the shutdown. Context
// cancellation is expected here, so it is not logged as an error.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// broadcastToClients delivers one fix to every interested client in client
// id order. A client whose buffer is full misses this fix but stays
// connected.
func (h *Hub) broadcastToClients(fix models.LocationFix) {
	message := Message{
		Type: MessageTypeLocationUpdate,
		Data: models.NewLocationUpdate(&fix),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.sortedClients() {
		if !client.wants(fix.UserID) {
			continue
		}
		select {
		case client.send <- message:
			metrics.BroadcastDelivered.Inc()
		default:
			metrics.BroadcastDropped.WithLabelValues("client").Inc()
			logging.Debug().Uint64("client_id", client.id).Msg("client buffer full, dropping location update")
		}
	}
}

// sortedClients returns clients ordered by id. Callers hold h.mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
