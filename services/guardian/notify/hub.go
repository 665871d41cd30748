// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/gorilla/websocket"
)

const (
	// clientSendBuffer bounds the per-client outbound queue. A client
	// that cannot drain it gets disconnected rather than blocking the
	// hub.
	clientSendBuffer = 32

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
)

// Client is one connected websocket subscriber.
type Client struct {
	// UserID scopes which messages the client receives. Empty receives
	// everything (admin feeds).
	UserID string

	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub fans notification messages out to connected websocket clients.
//
// Delivery is strictly best-effort: a missing, slow, or dead client
// never fails a notification.
//
// # Thread Safety
//
// Register, Unregister, and Deliver are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub returns an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger.With("component", "notify_hub"),
	}
}

// Register wraps an upgraded connection into a Client and starts its
// read and write pumps.
func (h *Hub) Register(conn *websocket.Conn, userID string) *Client {
	client := &Client{
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, clientSendBuffer),
		hub:    h,
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()

	h.logger.Debug("websocket client registered", "userId", userID)
	return client
}

// Unregister removes a client and closes its connection.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	_ = client.conn.Close()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Channel identifies the realtime transport.
func (h *Hub) Channel() datatypes.DeliveryChannel {
	return datatypes.ChannelRealtime
}

// Deliver broadcasts the message to every client whose scope matches.
// Clients with full send buffers are dropped.
func (h *Hub) Deliver(_ context.Context, msg *datatypes.NotificationMessage, _ string) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	stale := make([]*Client, 0)
	for client := range h.clients {
		if client.UserID != "" && msg.UserID != "" && client.UserID != msg.UserID {
			continue
		}
		select {
		case client.send <- payload:
		default:
			stale = append(stale, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range stale {
		h.logger.Warn("dropping slow websocket client", "userId", client.UserID)
		h.Unregister(client)
	}
	return nil
}

// writePump drains the send channel to the connection and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames. The feed is one-way; reading only
// services control frames and detects disconnects.
func (c *Client) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Compile-time interface compliance check.
var _ ChannelAdapter = (*Hub)(nil)
