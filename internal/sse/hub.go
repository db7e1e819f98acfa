// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package sse fans review events out to connected admin dashboards.
package sse

import (
	"context"
	"sync"

	"codeberg.org/procclean/reviewgate/internal/models"
	"github.com/samber/lo"
)

// Event names sent to admin clients.
const (
	EventConnected = "connected"
	EventReview    = "review"
	EventFlagged   = "review_flagged"
)

const clientBuffer = 10

// Hub manages SSE clients per admin. One admin may hold several
// connections (tabs, browsers).
type Hub struct {
	clients map[int64][]chan string
	mu      sync.RWMutex
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64][]chan string),
	}
}

// Register adds a new client channel for the given admin.
// Returns the channel to receive events on.
func (h *Hub) Register(adminID int64) chan string {
	ch := make(chan string, clientBuffer) // buffered to prevent blocking

	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[adminID] = append(h.clients[adminID], ch)
	return ch
}

// Unregister removes and closes a client channel.
func (h *Hub) Unregister(adminID int64, ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[adminID] = lo.Filter(h.clients[adminID], func(c chan string, _ int) bool {
		return c != ch
	})
	if len(h.clients[adminID]) == 0 {
		delete(h.clients, adminID)
	}

	close(ch)
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.clients {
		for _, ch := range clients {
			send(ch, message)
		}
	}
}

// send drops the message when the client is not keeping up.
func send(ch chan string, message string) {
	select {
	case ch <- message:
	default:
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.SumBy(lo.Values(h.clients), func(clients []chan string) int {
		return len(clients)
	})
}

// AdminCount returns the number of admins with at least one connection.
func (h *Hub) AdminCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// NotifyReview pushes a newly submitted review to every connected admin.
func (h *Hub) NotifyReview(_ context.Context, rv *models.Review) error {
	name := EventReview
	if rv.Flagged {
		name = EventFlagged
	}
	msg, err := FormatJSONEvent(name, rv)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}
