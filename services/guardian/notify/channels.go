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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"golang.org/x/time/rate"
)

// timeNow abstracts the clock for tests.
type timeNow func() time.Time

// ChannelAdapter delivers one message over one transport.
//
// Implementations must be safe for concurrent use. Endpoint is the
// recipient's contact address for the channel (email address, phone
// number, webhook URL); it may be empty for channels that do not need
// one (realtime, in-app).
type ChannelAdapter interface {
	// Channel identifies the transport this adapter serves.
	Channel() datatypes.DeliveryChannel

	// Deliver sends the message. Errors mark the channel's delivery
	// state failed but never abort delivery on other channels.
	Deliver(ctx context.Context, msg *datatypes.NotificationMessage, endpoint string) error
}

// =============================================================================
// In-app inbox
// =============================================================================

// DefaultInboxCapacity bounds each user's in-app inbox. Oldest entries
// are evicted first.
const DefaultInboxCapacity = 100

// InAppStore keeps a bounded per-user inbox of delivered messages.
//
// The empty user key holds broadcast messages with no user scope.
type InAppStore struct {
	mu       sync.RWMutex
	inboxes  map[string][]datatypes.NotificationMessage
	capacity int
}

// NewInAppStore returns an in-app store with the given per-user
// capacity. Zero or negative falls back to DefaultInboxCapacity.
func NewInAppStore(capacity int) *InAppStore {
	if capacity <= 0 {
		capacity = DefaultInboxCapacity
	}
	return &InAppStore{
		inboxes:  make(map[string][]datatypes.NotificationMessage),
		capacity: capacity,
	}
}

// Channel identifies the in-app transport.
func (s *InAppStore) Channel() datatypes.DeliveryChannel {
	return datatypes.ChannelInApp
}

// Deliver appends a copy of the message to the scoped inbox.
func (s *InAppStore) Deliver(_ context.Context, msg *datatypes.NotificationMessage, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inbox := s.inboxes[msg.UserID]
	if len(inbox) >= s.capacity {
		inbox = inbox[1:]
	}
	s.inboxes[msg.UserID] = append(inbox, *msg)
	return nil
}

// Inbox returns a copy of the user's inbox, newest first.
func (s *InAppStore) Inbox(userID string) []datatypes.NotificationMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inbox := s.inboxes[userID]
	out := make([]datatypes.NotificationMessage, len(inbox))
	copy(out, inbox)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// =============================================================================
// Webhook adapter
// =============================================================================

// WebhookAdapter posts messages as JSON to recipient-configured URLs.
//
// Posts are rate limited; when the limiter is exhausted the delivery
// fails immediately instead of queueing, so a slow webhook cannot back
// up the notification engine.
type WebhookAdapter struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewWebhookAdapter returns a webhook adapter allowing roughly rps
// posts per second with the given burst.
func NewWebhookAdapter(client *http.Client, rps float64, burst int) *WebhookAdapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookAdapter{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Channel identifies the webhook transport.
func (w *WebhookAdapter) Channel() datatypes.DeliveryChannel {
	return datatypes.ChannelWebhook
}

// Deliver posts the message to the endpoint URL.
func (w *WebhookAdapter) Deliver(ctx context.Context, msg *datatypes.NotificationMessage, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("webhook delivery for %s has no endpoint URL", msg.ID)
	}
	if !w.limiter.Allow() {
		return fmt.Errorf("webhook rate limit exceeded, dropping delivery for %s", msg.ID)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification %s: %w", msg.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// =============================================================================
// Log adapter
// =============================================================================

// LogAdapter stands in for external transports (email, SMS, chat) by
// writing the delivery to structured logs. Local deployments run with
// log adapters; hosted deployments swap in real integrations.
type LogAdapter struct {
	channel datatypes.DeliveryChannel
	logger  *slog.Logger
}

// NewLogAdapter returns a log-backed adapter for the given channel.
func NewLogAdapter(channel datatypes.DeliveryChannel, logger *slog.Logger) *LogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAdapter{channel: channel, logger: logger.With("adapter", string(channel))}
}

// Channel identifies the transport this adapter stands in for.
func (a *LogAdapter) Channel() datatypes.DeliveryChannel {
	return a.channel
}

// Deliver logs the delivery.
func (a *LogAdapter) Deliver(ctx context.Context, msg *datatypes.NotificationMessage, endpoint string) error {
	a.logger.InfoContext(ctx, "notification delivered",
		"notificationId", msg.ID,
		"type", string(msg.Type),
		"priority", msg.Priority.String(),
		"endpoint", endpoint,
		"title", msg.Title)
	return nil
}

// Compile-time interface compliance checks.
var (
	_ ChannelAdapter = (*InAppStore)(nil)
	_ ChannelAdapter = (*WebhookAdapter)(nil)
	_ ChannelAdapter = (*LogAdapter)(nil)
)
