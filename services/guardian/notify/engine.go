// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package notify implements the guardian's notification engine:
// emission with per-type throttling, multi-channel delivery with
// recipient matching, escalation of unacknowledged alerts, and
// retention cleanup.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/observability"
	"github.com/google/uuid"
)

// ErrThrottled is returned by Emit when an emission lands inside the
// type's throttle window. It signals an exceptional regime to callers:
// the event happened but no message was produced.
var ErrThrottled = errors.New("notification throttled")

// DefaultAutoAckDelay is how long after emission an auto-acknowledging
// message acknowledges itself.
const DefaultAutoAckDelay = 1 * time.Second

// DefaultCleanupInterval is how often expired messages and stale
// throttle entries are purged.
const DefaultCleanupInterval = 1 * time.Hour

// EngineConfig carries engine construction parameters. Zero values fall
// back to the documented defaults.
type EngineConfig struct {
	// Logger receives engine diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// Audit mirrors notification lifecycle events. Defaults to the nop
	// logger.
	Audit extensions.AuditLogger

	// Clock overrides time.Now for tests.
	Clock func() time.Time

	// AutoAckDelay overrides DefaultAutoAckDelay.
	AutoAckDelay time.Duration

	// CleanupInterval overrides DefaultCleanupInterval.
	CleanupInterval time.Duration

	// MessageTTL overrides datatypes.DefaultNotificationTTL.
	MessageTTL time.Duration
}

// Engine is the notification engine.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Delivery runs
// inside Emit on the caller's goroutine; escalation and auto-ack run on
// timer goroutines.
type Engine struct {
	mu       sync.Mutex
	configs  map[datatypes.NotificationType]datatypes.NotificationConfig
	messages map[string]*datatypes.NotificationMessage
	throttle map[string]time.Time
	timers   map[string]*time.Timer

	registry *Registry
	adapters map[datatypes.DeliveryChannel]ChannelAdapter

	logger *slog.Logger
	audit  extensions.AuditLogger
	now    timeNow

	autoAckDelay    time.Duration
	cleanupInterval time.Duration
	messageTTL      time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewEngine returns an engine seeded with the default per-type configs.
// The registry may be shared with the recipients API.
func NewEngine(cfg EngineConfig, registry *Registry) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Audit == nil {
		cfg.Audit = &extensions.NopAuditLogger{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.AutoAckDelay <= 0 {
		cfg.AutoAckDelay = DefaultAutoAckDelay
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.MessageTTL <= 0 {
		cfg.MessageTTL = datatypes.DefaultNotificationTTL
	}
	if registry == nil {
		registry = NewRegistry()
	}

	return &Engine{
		configs:         defaultConfigs(),
		messages:        make(map[string]*datatypes.NotificationMessage),
		throttle:        make(map[string]time.Time),
		timers:          make(map[string]*time.Timer),
		registry:        registry,
		adapters:        make(map[datatypes.DeliveryChannel]ChannelAdapter),
		logger:          cfg.Logger.With("component", "notify_engine"),
		audit:           cfg.Audit,
		now:             cfg.Clock,
		autoAckDelay:    cfg.AutoAckDelay,
		cleanupInterval: cfg.CleanupInterval,
		messageTTL:      cfg.MessageTTL,
		done:            make(chan struct{}),
	}
}

// defaultConfigs seeds every notification type with its fixed startup
// configuration.
func defaultConfigs() map[datatypes.NotificationType]datatypes.NotificationConfig {
	realtimeInApp := []datatypes.DeliveryChannel{datatypes.ChannelRealtime, datatypes.ChannelInApp}
	alerting := []datatypes.DeliveryChannel{
		datatypes.ChannelRealtime, datatypes.ChannelInApp, datatypes.ChannelEmail,
	}
	everything := []datatypes.DeliveryChannel{
		datatypes.ChannelRealtime, datatypes.ChannelInApp, datatypes.ChannelEmail,
		datatypes.ChannelSMS, datatypes.ChannelChat, datatypes.ChannelWebhook,
	}

	return map[datatypes.NotificationType]datatypes.NotificationConfig{
		datatypes.TypeDangerousModeEnabled: {
			Enabled: true, Methods: realtimeInApp,
			Priority: datatypes.PriorityHigh, ThrottleInterval: time.Minute,
			EscalationDelay: 5 * time.Minute,
		},
		datatypes.TypeDangerousModeDisabled: {
			Enabled: true, Methods: realtimeInApp,
			Priority: datatypes.PriorityMedium, ThrottleInterval: time.Minute,
			AutoAcknowledge: true,
		},
		datatypes.TypeTimeoutWarning: {
			Enabled: true, Methods: realtimeInApp,
			Priority: datatypes.PriorityMedium, ThrottleInterval: 3 * time.Minute,
			AutoAcknowledge: true,
		},
		datatypes.TypeCommandBlocked: {
			Enabled: true, Methods: realtimeInApp,
			Priority: datatypes.PriorityHigh, ThrottleInterval: 30 * time.Second,
		},
		datatypes.TypeRiskThreshold: {
			Enabled: true, Methods: alerting,
			Priority: datatypes.PriorityCritical,
			EscalationDelay: 10 * time.Minute,
		},
		datatypes.TypeSecurityAlert: {
			Enabled: true, Methods: alerting,
			Priority: datatypes.PriorityCritical,
			EscalationDelay: 15 * time.Minute,
		},
		datatypes.TypeEmergencyStop: {
			Enabled: true, Methods: everything,
			Priority: datatypes.PriorityEmergency,
		},
	}
}

// RegisterAdapter wires a channel adapter into the engine. Later
// registrations for the same channel replace earlier ones.
func (e *Engine) RegisterAdapter(adapter ChannelAdapter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adapters[adapter.Channel()] = adapter
}

// Registry returns the engine's recipient registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// =============================================================================
// Emission
// =============================================================================

// Emit creates and delivers a notification of the given type.
//
// # Description
//
// Disabled and unknown types are silent no-ops returning (nil, nil).
// An emission inside the type's throttle window returns ErrThrottled
// (wrapped); the event is counted but no message is produced. On
// success the message is stored, delivered across the configured
// channels, and its escalation or auto-acknowledge timer is armed.
//
// # Thread Safety
//
// Safe for concurrent use. Delivery happens on the caller's goroutine.
func (e *Engine) Emit(ctx context.Context, t datatypes.NotificationType, event datatypes.EventContext) (*datatypes.NotificationMessage, error) {
	e.mu.Lock()

	cfg, known := e.configs[t]
	if !known {
		e.mu.Unlock()
		e.logger.WarnContext(ctx, "ignoring unknown notification type", "type", string(t))
		return nil, nil
	}
	if !cfg.Enabled {
		e.mu.Unlock()
		return nil, nil
	}

	now := e.now()
	key := throttleKey(t, event.UserID)
	if cfg.ThrottleInterval > 0 {
		if last, ok := e.throttle[key]; ok && now.Sub(last) < cfg.ThrottleInterval {
			e.mu.Unlock()
			observability.RecordNotificationThrottled(string(t))
			_ = e.audit.Log(ctx, extensions.AuditEvent{
				Category: "notification", Action: "emit", Outcome: "blocked",
				Severity: "info", UserID: event.UserID, SessionID: event.SessionID,
				Details: map[string]any{"type": string(t), "reason": "throttled"},
			})
			return nil, fmt.Errorf("notification type %s for %s: %w", t, targetOf(event.UserID), ErrThrottled)
		}
	}
	e.throttle[key] = now

	msg := e.buildLocked(t, cfg, event, now)
	e.mu.Unlock()

	e.deliver(ctx, msg, cfg)
	e.armTimer(msg.ID, cfg)

	observability.RecordNotificationEmitted(string(t), msg.Priority.String())
	_ = e.audit.Log(ctx, extensions.AuditEvent{
		Category: "notification", Action: "emit", Outcome: "success",
		Severity: "info", UserID: event.UserID, SessionID: event.SessionID,
		ResourceType: "notification", ResourceID: msg.ID,
		Details: map[string]any{"type": string(t), "priority": msg.Priority.String()},
	})

	return e.snapshot(msg.ID), nil
}

// buildLocked constructs and stores a message. Caller holds e.mu.
func (e *Engine) buildLocked(t datatypes.NotificationType, cfg datatypes.NotificationConfig, event datatypes.EventContext, now time.Time) *datatypes.NotificationMessage {
	severity := event.Severity
	if severity == "" {
		severity = datatypes.SeverityInfo
	}

	msg := &datatypes.NotificationMessage{
		ID:              uuid.NewString(),
		Type:            t,
		Priority:        cfg.Priority,
		Severity:        severity,
		Timestamp:       now,
		UserID:          event.UserID,
		SessionID:       event.SessionID,
		Title:           event.Title,
		Body:            event.Body,
		Details:         event.Details,
		DeliveryMethods: append([]datatypes.DeliveryChannel(nil), cfg.Methods...),
		DeliveryStatus:  make(map[datatypes.DeliveryChannel]datatypes.DeliveryState),
		ExpiresAt:       now.Add(e.messageTTL),
	}
	for _, ch := range msg.DeliveryMethods {
		msg.DeliveryStatus[ch] = datatypes.DeliveryPending
	}
	e.messages[msg.ID] = msg
	return msg
}

// deliver fans the message out across its channels. The realtime feed
// is always attempted even when not configured for the type; every
// other channel goes through recipient matching. A failing channel
// never aborts the others.
func (e *Engine) deliver(ctx context.Context, msg *datatypes.NotificationMessage, cfg datatypes.NotificationConfig) {
	recipients := e.registry.Match(msg, e.now)

	channels := make(map[datatypes.DeliveryChannel]struct{}, len(cfg.Methods)+1)
	for _, ch := range cfg.Methods {
		channels[ch] = struct{}{}
	}
	channels[datatypes.ChannelRealtime] = struct{}{}

	for ch := range channels {
		e.mu.Lock()
		adapter, ok := e.adapters[ch]
		e.mu.Unlock()
		if !ok {
			continue
		}

		var state datatypes.DeliveryState
		switch ch {
		case datatypes.ChannelRealtime, datatypes.ChannelInApp:
			// Broadcast channels need no recipient matching.
			state = e.attempt(ctx, adapter, msg, "")
		default:
			state = e.deliverToRecipients(ctx, adapter, msg, recipients)
		}

		if state == "" {
			continue
		}
		e.mu.Lock()
		if stored, exists := e.messages[msg.ID]; exists {
			stored.DeliveryStatus[ch] = state
		}
		e.mu.Unlock()
		observability.RecordDelivery(string(ch), string(state))
	}
}

// deliverToRecipients attempts delivery to every matched recipient that
// accepts the channel. Returns the channel's aggregate state, or empty
// when no recipient uses the channel.
func (e *Engine) deliverToRecipients(ctx context.Context, adapter ChannelAdapter, msg *datatypes.NotificationMessage, recipients []datatypes.Recipient) datatypes.DeliveryState {
	ch := adapter.Channel()
	attempted, succeeded := 0, 0
	for _, recipient := range recipients {
		if !recipient.UsesChannel(ch) {
			continue
		}
		attempted++
		if e.attempt(ctx, adapter, msg, recipient.Contacts[ch]) == datatypes.DeliverySent {
			succeeded++
		}
	}
	switch {
	case attempted == 0:
		return ""
	case succeeded > 0:
		return datatypes.DeliverySent
	default:
		return datatypes.DeliveryFailed
	}
}

// attempt runs one adapter delivery, isolating panics so a broken
// adapter cannot take down the engine.
func (e *Engine) attempt(ctx context.Context, adapter ChannelAdapter, msg *datatypes.NotificationMessage, endpoint string) (state datatypes.DeliveryState) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "channel adapter panicked",
				"channel", string(adapter.Channel()), "panic", fmt.Sprint(r))
			state = datatypes.DeliveryFailed
		}
	}()

	if err := adapter.Deliver(ctx, msg, endpoint); err != nil {
		e.logger.WarnContext(ctx, "delivery failed",
			"channel", string(adapter.Channel()),
			"notificationId", msg.ID,
			"error", err)
		return datatypes.DeliveryFailed
	}
	return datatypes.DeliverySent
}

// =============================================================================
// Escalation and acknowledgment
// =============================================================================

// armTimer schedules either the auto-acknowledge or the escalation for
// a freshly emitted message.
func (e *Engine) armTimer(id string, cfg datatypes.NotificationConfig) {
	var timer *time.Timer
	switch {
	case cfg.AutoAcknowledge:
		timer = time.AfterFunc(e.autoAckDelay, func() {
			_ = e.acknowledge(context.Background(), id, "system")
		})
	case cfg.EscalationDelay > 0:
		timer = time.AfterFunc(cfg.EscalationDelay, func() {
			e.escalate(context.Background(), id)
		})
	default:
		return
	}

	e.mu.Lock()
	e.timers[id] = timer
	e.mu.Unlock()
}

// Acknowledge marks a message acknowledged and cancels its pending
// escalation. Acknowledging twice is a no-op.
func (e *Engine) Acknowledge(ctx context.Context, id, by string) error {
	return e.acknowledge(ctx, id, by)
}

func (e *Engine) acknowledge(ctx context.Context, id, by string) error {
	e.mu.Lock()
	msg, ok := e.messages[id]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("notification %s not found", id)
	}
	if msg.Acknowledged {
		e.mu.Unlock()
		return nil
	}
	now := e.now()
	msg.Acknowledged = true
	msg.AcknowledgedAt = &now
	msg.AcknowledgedBy = by
	if timer, exists := e.timers[id]; exists {
		timer.Stop()
		delete(e.timers, id)
	}
	userID, sessionID := msg.UserID, msg.SessionID
	e.mu.Unlock()

	_ = e.audit.Log(ctx, extensions.AuditEvent{
		Category: "notification", Action: "acknowledge", Outcome: "success",
		Severity: "info", UserID: by, SessionID: sessionID,
		ResourceType: "notification", ResourceID: id,
		Details: map[string]any{"owner": userID},
	})
	return nil
}

// escalate promotes an unacknowledged message into a security alert one
// priority level higher. A message escalates at most once, and the
// escalation bypasses throttling so it cannot be silently lost.
func (e *Engine) escalate(ctx context.Context, id string) {
	e.mu.Lock()
	original, ok := e.messages[id]
	if !ok || original.Acknowledged || original.Escalated {
		e.mu.Unlock()
		return
	}
	original.Escalated = true
	delete(e.timers, id)

	cfg := e.configs[datatypes.TypeSecurityAlert]
	now := e.now()
	priority := original.Priority + 1
	if priority > datatypes.PriorityEmergency {
		priority = datatypes.PriorityEmergency
	}

	alert := e.buildLocked(datatypes.TypeSecurityAlert, cfg, datatypes.EventContext{
		UserID:    original.UserID,
		SessionID: original.SessionID,
		Title:     "Unacknowledged: " + original.Title,
		Body: fmt.Sprintf("A %s notification has not been acknowledged. Original: %s",
			original.Priority.String(), original.Body),
		Severity: datatypes.SeverityWarning,
		Details:  map[string]any{"originalId": original.ID, "originalType": string(original.Type)},
	}, now)
	alert.Priority = priority
	alert.EscalatedFrom = original.ID
	e.mu.Unlock()

	e.deliver(ctx, alert, cfg)
	e.armTimer(alert.ID, cfg)

	observability.RecordEscalation()
	observability.RecordNotificationEmitted(string(datatypes.TypeSecurityAlert), priority.String())
	_ = e.audit.Log(ctx, extensions.AuditEvent{
		Category: "notification", Action: "escalate", Outcome: "success",
		Severity: "warning", UserID: "system", SessionID: alert.SessionID,
		ResourceType: "notification", ResourceID: alert.ID,
		Details: map[string]any{"escalatedFrom": id, "priority": priority.String()},
	})
	e.logger.WarnContext(ctx, "notification escalated",
		"originalId", id, "alertId", alert.ID, "priority", priority.String())
}

// =============================================================================
// Queries
// =============================================================================

// Get returns a copy of one message.
func (e *Engine) Get(id string) (datatypes.NotificationMessage, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg, ok := e.messages[id]
	if !ok {
		return datatypes.NotificationMessage{}, false
	}
	return *msg, true
}

// snapshot returns a copy of a stored message, or nil if it vanished.
func (e *Engine) snapshot(id string) *datatypes.NotificationMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	msg, ok := e.messages[id]
	if !ok {
		return nil
	}
	out := *msg
	return &out
}

// Query filters a notification listing. The zero value returns every
// unacknowledged message visible to the user.
type Query struct {
	// IncludeAcknowledged also returns acknowledged messages.
	IncludeAcknowledged bool

	// Limit caps the result length after ordering. Zero means no cap.
	Limit int

	// Since drops messages emitted at or before this instant. The zero
	// time means no lower bound.
	Since time.Time

	// Types restricts results to the listed types. Empty means all.
	Types []datatypes.NotificationType
}

// matches reports whether a message passes the query filters.
func (q Query) matches(msg *datatypes.NotificationMessage) bool {
	if msg.Acknowledged && !q.IncludeAcknowledged {
		return false
	}
	if !q.Since.IsZero() && !msg.Timestamp.After(q.Since) {
		return false
	}
	if len(q.Types) > 0 {
		found := false
		for _, t := range q.Types {
			if msg.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ListForUser returns the messages visible to a user: their own plus
// unscoped broadcasts, filtered by the query. Results are ordered by
// priority descending, then newest first.
func (e *Engine) ListForUser(userID string, q Query) []datatypes.NotificationMessage {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]datatypes.NotificationMessage, 0)
	for _, msg := range e.messages {
		if msg.UserID != "" && msg.UserID != userID {
			continue
		}
		if !q.matches(msg) {
			continue
		}
		out = append(out, *msg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// =============================================================================
// Configuration
// =============================================================================

// Config returns the configuration for one type.
func (e *Engine) Config(t datatypes.NotificationType) (datatypes.NotificationConfig, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, ok := e.configs[t]
	return cfg, ok
}

// Configs returns a copy of every per-type configuration.
func (e *Engine) Configs() map[datatypes.NotificationType]datatypes.NotificationConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[datatypes.NotificationType]datatypes.NotificationConfig, len(e.configs))
	for t, cfg := range e.configs {
		out[t] = cfg
	}
	return out
}

// SetConfig replaces the configuration for a known type. Unknown types,
// unknown channels, and negative intervals are rejected.
func (e *Engine) SetConfig(t datatypes.NotificationType, cfg datatypes.NotificationConfig) error {
	if err := validateConfig(t, cfg); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, known := e.configs[t]; !known {
		return fmt.Errorf("unknown notification type %q", t)
	}
	e.configs[t] = cfg
	return nil
}

func validateConfig(t datatypes.NotificationType, cfg datatypes.NotificationConfig) error {
	if cfg.ThrottleInterval < 0 {
		return fmt.Errorf("notification type %q: negative throttle interval", t)
	}
	if cfg.EscalationDelay < 0 {
		return fmt.Errorf("notification type %q: negative escalation delay", t)
	}
	if cfg.Priority < datatypes.PriorityLow || cfg.Priority > datatypes.PriorityEmergency {
		return fmt.Errorf("notification type %q: invalid priority %d", t, cfg.Priority)
	}
	known := map[datatypes.DeliveryChannel]struct{}{
		datatypes.ChannelRealtime: {}, datatypes.ChannelInApp: {},
		datatypes.ChannelEmail: {}, datatypes.ChannelSMS: {},
		datatypes.ChannelChat: {}, datatypes.ChannelWebhook: {},
	}
	for _, ch := range cfg.Methods {
		if _, ok := known[ch]; !ok {
			return fmt.Errorf("notification type %q: unknown delivery channel %q", t, ch)
		}
	}
	return nil
}

// =============================================================================
// Retention
// =============================================================================

// Start launches the hourly cleanup loop. Call Stop to end it.
func (e *Engine) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(e.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.RunCleanupNow(ctx)
			case <-e.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the cleanup loop and cancels all pending timers.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.done) })

	e.mu.Lock()
	defer e.mu.Unlock()
	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
	}
}

// RunCleanupNow purges expired messages and stale throttle entries
// immediately. Exposed for tests and admin tooling.
func (e *Engine) RunCleanupNow(ctx context.Context) {
	now := e.now()
	removedMessages, removedThrottle := 0, 0

	e.mu.Lock()
	for id, msg := range e.messages {
		if now.After(msg.ExpiresAt) {
			if timer, exists := e.timers[id]; exists {
				timer.Stop()
				delete(e.timers, id)
			}
			delete(e.messages, id)
			removedMessages++
		}
	}
	for key, last := range e.throttle {
		if now.Sub(last) > e.messageTTL {
			delete(e.throttle, key)
			removedThrottle++
		}
	}
	e.mu.Unlock()

	if removedMessages > 0 || removedThrottle > 0 {
		e.logger.InfoContext(ctx, "notification cleanup complete",
			"expiredMessages", removedMessages,
			"staleThrottleEntries", removedThrottle)
	}
}

// MessageCount returns the number of retained messages.
func (e *Engine) MessageCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.messages)
}

func throttleKey(t datatypes.NotificationType, userID string) string {
	return string(t) + "|" + targetOf(userID)
}

func targetOf(userID string) string {
	if userID == "" {
		return "global"
	}
	return userID
}
