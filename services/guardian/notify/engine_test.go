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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
)

// captureAdapter records every delivery it receives.
type captureAdapter struct {
	channel datatypes.DeliveryChannel
	err     error

	mu        sync.Mutex
	delivered []datatypes.NotificationMessage
	endpoints []string
}

func (c *captureAdapter) Channel() datatypes.DeliveryChannel { return c.channel }

func (c *captureAdapter) Deliver(_ context.Context, msg *datatypes.NotificationMessage, endpoint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delivered = append(c.delivered, *msg)
	c.endpoints = append(c.endpoints, endpoint)
	return c.err
}

func (c *captureAdapter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.delivered)
}

func newTestEngine(t *testing.T, cfg EngineConfig) *Engine {
	t.Helper()
	e := NewEngine(cfg, NewRegistry())
	t.Cleanup(e.Stop)
	return e
}

func TestEmit_DeliversAndStores(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	realtime := &captureAdapter{channel: datatypes.ChannelRealtime}
	inApp := &captureAdapter{channel: datatypes.ChannelInApp}
	e.RegisterAdapter(realtime)
	e.RegisterAdapter(inApp)

	msg, err := e.Emit(context.Background(), datatypes.TypeDangerousModeEnabled, datatypes.EventContext{
		UserID:    "alice",
		SessionID: "s1",
		Title:     "Dangerous mode enabled",
		Body:      "Session s1 now holds elevated privileges",
	})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if msg == nil {
		t.Fatal("Expected a message, got nil")
	}
	if msg.Priority != datatypes.PriorityHigh {
		t.Errorf("Expected high priority from the type config, got %s", msg.Priority)
	}
	if realtime.count() != 1 || inApp.count() != 1 {
		t.Errorf("Expected one delivery per channel, got realtime=%d inApp=%d",
			realtime.count(), inApp.count())
	}
	if msg.ExpiresAt.Sub(msg.Timestamp) != datatypes.DefaultNotificationTTL {
		t.Errorf("Expected the default 24h TTL, got %v", msg.ExpiresAt.Sub(msg.Timestamp))
	}

	stored, ok := e.Get(msg.ID)
	if !ok {
		t.Fatal("Expected the message to be retained")
	}
	if stored.DeliveryStatus[datatypes.ChannelRealtime] != datatypes.DeliverySent {
		t.Errorf("Expected realtime marked sent, got %s", stored.DeliveryStatus[datatypes.ChannelRealtime])
	}
}

func TestEmit_ThrottlesRepeatEmissions(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})

	ctx := context.Background()
	event := datatypes.EventContext{UserID: "alice", Title: "first"}

	if _, err := e.Emit(ctx, datatypes.TypeDangerousModeEnabled, event); err != nil {
		t.Fatalf("First emit failed: %v", err)
	}
	_, err := e.Emit(ctx, datatypes.TypeDangerousModeEnabled, event)
	if !errors.Is(err, ErrThrottled) {
		t.Fatalf("Expected ErrThrottled on the second emit, got %v", err)
	}
}

func TestEmit_ThrottleIsPerUser(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()

	if _, err := e.Emit(ctx, datatypes.TypeDangerousModeEnabled, datatypes.EventContext{UserID: "alice"}); err != nil {
		t.Fatalf("Emit for alice failed: %v", err)
	}
	if _, err := e.Emit(ctx, datatypes.TypeDangerousModeEnabled, datatypes.EventContext{UserID: "bob"}); err != nil {
		t.Errorf("Expected bob's emission to pass, got %v", err)
	}
}

func TestEmit_ThrottleWindowExpires(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	e := newTestEngine(t, EngineConfig{Clock: clock})
	ctx := context.Background()

	if _, err := e.Emit(ctx, datatypes.TypeDangerousModeEnabled, datatypes.EventContext{UserID: "alice"}); err != nil {
		t.Fatalf("First emit failed: %v", err)
	}

	mu.Lock()
	current = current.Add(2 * time.Minute)
	mu.Unlock()

	if _, err := e.Emit(ctx, datatypes.TypeDangerousModeEnabled, datatypes.EventContext{UserID: "alice"}); err != nil {
		t.Errorf("Expected the throttle window to have expired, got %v", err)
	}
}

func TestEmit_DisabledTypeIsNoOp(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})

	cfg, _ := e.Config(datatypes.TypeTimeoutWarning)
	cfg.Enabled = false
	if err := e.SetConfig(datatypes.TypeTimeoutWarning, cfg); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}

	msg, err := e.Emit(context.Background(), datatypes.TypeTimeoutWarning, datatypes.EventContext{UserID: "alice"})
	if err != nil || msg != nil {
		t.Errorf("Expected a silent no-op, got msg=%v err=%v", msg, err)
	}
	if e.MessageCount() != 0 {
		t.Errorf("Expected no stored messages, got %d", e.MessageCount())
	}
}

func TestEmit_UnknownTypeIsNoOp(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})

	msg, err := e.Emit(context.Background(), datatypes.NotificationType("made_up"), datatypes.EventContext{})
	if err != nil || msg != nil {
		t.Errorf("Expected a silent no-op for an unknown type, got msg=%v err=%v", msg, err)
	}
}

func TestEscalation_FiresForUnacknowledged(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})

	cfg, _ := e.Config(datatypes.TypeRiskThreshold)
	cfg.EscalationDelay = 20 * time.Millisecond
	cfg.ThrottleInterval = 0
	if err := e.SetConfig(datatypes.TypeRiskThreshold, cfg); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}

	msg, err := e.Emit(context.Background(), datatypes.TypeRiskThreshold, datatypes.EventContext{
		UserID: "alice", Title: "risk budget exhausted",
	})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	time.Sleep(120 * time.Millisecond)

	var alert *datatypes.NotificationMessage
	for _, m := range e.ListForUser("alice", Query{IncludeAcknowledged: true}) {
		if m.EscalatedFrom == msg.ID {
			alert = &m
			break
		}
	}
	if alert == nil {
		t.Fatal("Expected an escalation alert referencing the original")
	}
	if alert.Type != datatypes.TypeSecurityAlert {
		t.Errorf("Expected a security alert, got %s", alert.Type)
	}
	if alert.Priority <= msg.Priority {
		t.Errorf("Expected a higher priority than the original (%s), got %s",
			msg.Priority, alert.Priority)
	}

	original, _ := e.Get(msg.ID)
	if !original.Escalated {
		t.Error("Expected the original marked escalated")
	}
}

func TestEscalation_CancelledByAcknowledgment(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})

	cfg, _ := e.Config(datatypes.TypeRiskThreshold)
	cfg.EscalationDelay = 30 * time.Millisecond
	if err := e.SetConfig(datatypes.TypeRiskThreshold, cfg); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}

	msg, err := e.Emit(context.Background(), datatypes.TypeRiskThreshold, datatypes.EventContext{UserID: "alice"})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if err := e.Acknowledge(context.Background(), msg.ID, "alice"); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}

	time.Sleep(120 * time.Millisecond)

	for _, m := range e.ListForUser("alice", Query{IncludeAcknowledged: true}) {
		if m.EscalatedFrom == msg.ID {
			t.Fatal("Expected acknowledgment to cancel the escalation")
		}
	}
}

func TestAutoAcknowledge(t *testing.T) {
	e := newTestEngine(t, EngineConfig{AutoAckDelay: 10 * time.Millisecond})

	msg, err := e.Emit(context.Background(), datatypes.TypeDangerousModeDisabled, datatypes.EventContext{UserID: "alice"})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	time.Sleep(80 * time.Millisecond)

	stored, _ := e.Get(msg.ID)
	if !stored.Acknowledged {
		t.Fatal("Expected the informational message to auto-acknowledge")
	}
	if stored.AcknowledgedBy != "system" {
		t.Errorf("Expected acknowledgment by system, got %q", stored.AcknowledgedBy)
	}
}

func TestAcknowledge_UnknownIDFails(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	if err := e.Acknowledge(context.Background(), "missing", "alice"); err == nil {
		t.Error("Expected an error for an unknown notification")
	}
}

func TestListForUser_ScopingAndOrdering(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()

	if _, err := e.Emit(ctx, datatypes.TypeTimeoutWarning, datatypes.EventContext{UserID: "alice", Title: "expiring"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if _, err := e.Emit(ctx, datatypes.TypeEmergencyStop, datatypes.EventContext{Title: "global stop"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if _, err := e.Emit(ctx, datatypes.TypeCommandBlocked, datatypes.EventContext{UserID: "bob", Title: "blocked"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	list := e.ListForUser("alice", Query{IncludeAcknowledged: true})
	if len(list) != 2 {
		t.Fatalf("Expected alice to see her message plus the broadcast, got %d", len(list))
	}
	if list[0].Type != datatypes.TypeEmergencyStop {
		t.Errorf("Expected the emergency broadcast first by priority, got %s", list[0].Type)
	}
	for _, m := range list {
		if m.UserID == "bob" {
			t.Error("Expected bob's message to be invisible to alice")
		}
	}
}

func TestListForUser_TypeFilter(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()

	if _, err := e.Emit(ctx, datatypes.TypeTimeoutWarning, datatypes.EventContext{UserID: "alice"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if _, err := e.Emit(ctx, datatypes.TypeCommandBlocked, datatypes.EventContext{UserID: "alice"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if _, err := e.Emit(ctx, datatypes.TypeRiskThreshold, datatypes.EventContext{UserID: "alice"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	list := e.ListForUser("alice", Query{
		IncludeAcknowledged: true,
		Types: []datatypes.NotificationType{
			datatypes.TypeCommandBlocked,
			datatypes.TypeRiskThreshold,
		},
	})
	if len(list) != 2 {
		t.Fatalf("Expected the two requested types, got %d messages", len(list))
	}
	for _, m := range list {
		if m.Type == datatypes.TypeTimeoutWarning {
			t.Error("Expected the timeout warning filtered out by type")
		}
	}
}

func TestListForUser_SinceFilter(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	e := newTestEngine(t, EngineConfig{Clock: clock})
	ctx := context.Background()

	if _, err := e.Emit(ctx, datatypes.TypeTimeoutWarning, datatypes.EventContext{UserID: "alice"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	cutoff := current
	mu.Lock()
	current = current.Add(10 * time.Minute)
	mu.Unlock()
	if _, err := e.Emit(ctx, datatypes.TypeCommandBlocked, datatypes.EventContext{UserID: "alice"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	list := e.ListForUser("alice", Query{IncludeAcknowledged: true, Since: cutoff})
	if len(list) != 1 {
		t.Fatalf("Expected only the message after the cutoff, got %d", len(list))
	}
	if list[0].Type != datatypes.TypeCommandBlocked {
		t.Errorf("Expected the newer message to survive the cutoff, got %s", list[0].Type)
	}
}

func TestListForUser_LimitCapsAfterOrdering(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	ctx := context.Background()

	if _, err := e.Emit(ctx, datatypes.TypeTimeoutWarning, datatypes.EventContext{UserID: "alice"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if _, err := e.Emit(ctx, datatypes.TypeEmergencyStop, datatypes.EventContext{Title: "global stop"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	list := e.ListForUser("alice", Query{IncludeAcknowledged: true, Limit: 1})
	if len(list) != 1 {
		t.Fatalf("Expected the limit to cap the result at 1, got %d", len(list))
	}
	if list[0].Type != datatypes.TypeEmergencyStop {
		t.Errorf("Expected the highest-priority message to survive the cap, got %s", list[0].Type)
	}
}

func TestCleanup_PurgesExpiredMessages(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return current
	}
	e := newTestEngine(t, EngineConfig{Clock: clock})
	ctx := context.Background()

	msg, err := e.Emit(ctx, datatypes.TypeCommandBlocked, datatypes.EventContext{UserID: "alice"})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	e.RunCleanupNow(ctx)
	if _, ok := e.Get(msg.ID); !ok {
		t.Fatal("Expected a fresh message to survive cleanup")
	}

	mu.Lock()
	current = current.Add(25 * time.Hour)
	mu.Unlock()

	e.RunCleanupNow(ctx)
	if _, ok := e.Get(msg.ID); ok {
		t.Error("Expected the expired message to be purged")
	}
	if e.MessageCount() != 0 {
		t.Errorf("Expected an empty store, got %d messages", e.MessageCount())
	}

	// Stale throttle entries go with it: a new emission must pass.
	if _, err := e.Emit(ctx, datatypes.TypeCommandBlocked, datatypes.EventContext{UserID: "alice"}); err != nil {
		t.Errorf("Expected the throttle entry to be purged, got %v", err)
	}
}

func TestSetConfig_RejectsInvalidValues(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})

	base, _ := e.Config(datatypes.TypeCommandBlocked)

	bad := base
	bad.ThrottleInterval = -time.Second
	if err := e.SetConfig(datatypes.TypeCommandBlocked, bad); err == nil {
		t.Error("Expected a negative throttle interval to be rejected")
	}

	bad = base
	bad.Methods = []datatypes.DeliveryChannel{"carrier_pigeon"}
	if err := e.SetConfig(datatypes.TypeCommandBlocked, bad); err == nil {
		t.Error("Expected an unknown channel to be rejected")
	}

	if err := e.SetConfig(datatypes.NotificationType("made_up"), base); err == nil {
		t.Error("Expected an unknown type to be rejected")
	}
}

func TestDeliver_FailingAdapterDoesNotAbortOthers(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	realtime := &captureAdapter{channel: datatypes.ChannelRealtime, err: errors.New("socket closed")}
	inApp := &captureAdapter{channel: datatypes.ChannelInApp}
	e.RegisterAdapter(realtime)
	e.RegisterAdapter(inApp)

	msg, err := e.Emit(context.Background(), datatypes.TypeCommandBlocked, datatypes.EventContext{UserID: "alice"})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	stored, _ := e.Get(msg.ID)
	if stored.DeliveryStatus[datatypes.ChannelRealtime] != datatypes.DeliveryFailed {
		t.Errorf("Expected realtime marked failed, got %s", stored.DeliveryStatus[datatypes.ChannelRealtime])
	}
	if stored.DeliveryStatus[datatypes.ChannelInApp] != datatypes.DeliverySent {
		t.Errorf("Expected in-app marked sent, got %s", stored.DeliveryStatus[datatypes.ChannelInApp])
	}
}

func TestDeliver_RecipientChannels(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	email := &captureAdapter{channel: datatypes.ChannelEmail}
	e.RegisterAdapter(email)

	if _, err := e.Registry().Add(datatypes.Recipient{
		ID:       "ops",
		Channels: []datatypes.DeliveryChannel{datatypes.ChannelEmail},
		Contacts: map[datatypes.DeliveryChannel]string{datatypes.ChannelEmail: "ops@example.com"},
		Active:   true,
	}); err != nil {
		t.Fatalf("Add recipient failed: %v", err)
	}

	_, err := e.Emit(context.Background(), datatypes.TypeRiskThreshold, datatypes.EventContext{
		UserID: "alice", Title: "budget exhausted",
	})
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	if email.count() != 1 {
		t.Fatalf("Expected one email delivery, got %d", email.count())
	}
	email.mu.Lock()
	endpoint := email.endpoints[0]
	email.mu.Unlock()
	if endpoint != "ops@example.com" {
		t.Errorf("Expected the recipient's contact endpoint, got %q", endpoint)
	}
}
