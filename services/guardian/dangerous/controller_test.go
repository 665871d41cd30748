// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dangerous

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
)

// fakeClock is a mutable test clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// fakeSink records emitted notifications.
type fakeSink struct {
	mu     sync.Mutex
	events []struct {
		Type  datatypes.NotificationType
		Event datatypes.EventContext
	}
	err error
}

func (f *fakeSink) Emit(_ context.Context, t datatypes.NotificationType, event datatypes.EventContext) (*datatypes.NotificationMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, struct {
		Type  datatypes.NotificationType
		Event datatypes.EventContext
	}{t, event})
	if f.err != nil {
		return nil, f.err
	}
	return &datatypes.NotificationMessage{Type: t}, nil
}

func (f *fakeSink) countOf(t datatypes.NotificationType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// fakeClassifier delegates to a closure.
type fakeClassifier struct {
	fn func(cmd extensions.CommandContext) (*extensions.ClassificationResult, error)
}

func (f *fakeClassifier) ClassifyCommand(_ context.Context, cmd extensions.CommandContext) (*extensions.ClassificationResult, error) {
	return f.fn(cmd)
}

func newTestController(t *testing.T, cfg Config, deps Deps) (*Controller, *fakeClock, *fakeSink) {
	t.Helper()
	clock := newFakeClock()
	sink := &fakeSink{}
	if deps.Clock == nil {
		deps.Clock = clock.Now
	}
	if deps.Sink == nil {
		deps.Sink = sink
	}
	c := NewController(cfg, deps)
	t.Cleanup(c.Stop)
	return c, clock, sink
}

func activationRequest(sessionID string) datatypes.ActivationRequest {
	return datatypes.ActivationRequest{
		SessionID: sessionID,
		UserID:    "alice",
		UserRole:  "developer",
		Reason:    "cleanup task",
	}
}

// enable drives a session through the full handshake.
func enable(t *testing.T, c *Controller, sessionID string) {
	t.Helper()
	ctx := context.Background()
	res, err := c.RequestActivation(ctx, activationRequest(sessionID))
	if err != nil {
		t.Fatalf("RequestActivation failed: %v", err)
	}
	if !res.Success || res.State != datatypes.StatePendingConfirmation {
		t.Fatalf("Expected a pending confirmation, got %+v", res)
	}
	confirmed, err := c.ConfirmActivation(ctx, datatypes.ConfirmationRequest{
		SessionID:        sessionID,
		ConfirmationCode: res.ConfirmationCode,
	})
	if err != nil {
		t.Fatalf("ConfirmActivation failed: %v", err)
	}
	if !confirmed.Success || confirmed.State != datatypes.StateEnabled {
		t.Fatalf("Expected the session enabled, got %+v", confirmed)
	}
}

func TestActivationHandshake(t *testing.T) {
	c, _, sink := newTestController(t, DefaultConfig(), Deps{})
	ctx := context.Background()

	res, err := c.RequestActivation(ctx, activationRequest("s1"))
	if err != nil {
		t.Fatalf("RequestActivation failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("Expected the request accepted, got %q", res.Message)
	}
	if len(res.ConfirmationCode) != 8 {
		t.Errorf("Expected an 8-character code, got %q", res.ConfirmationCode)
	}
	if res.ConfirmationCode != strings.ToUpper(res.ConfirmationCode) {
		t.Errorf("Expected an uppercase code, got %q", res.ConfirmationCode)
	}
	if len(res.Warnings) == 0 {
		t.Error("Expected the activation dialog risks on the result")
	}

	confirmed, err := c.ConfirmActivation(ctx, datatypes.ConfirmationRequest{
		SessionID:        "s1",
		ConfirmationCode: res.ConfirmationCode,
	})
	if err != nil {
		t.Fatalf("ConfirmActivation failed: %v", err)
	}
	if !confirmed.Success || confirmed.State != datatypes.StateEnabled {
		t.Fatalf("Expected the session enabled, got %+v", confirmed)
	}
	if confirmed.ExpiresAt == nil {
		t.Fatal("Expected an expiry on the enabled session")
	}

	session, ok := c.GetSessionStatus("s1")
	if !ok || !session.IsActive() {
		t.Fatalf("Expected an active session, got %+v", session)
	}
	if session.RiskScore != 0 || session.CommandsExecuted != 0 {
		t.Error("Expected fresh per-period counters")
	}
	if sink.countOf(datatypes.TypeDangerousModeEnabled) != 1 {
		t.Error("Expected an enabled notification")
	}
}

func TestConfirmation_CodeIsSingleUse(t *testing.T) {
	c, _, _ := newTestController(t, DefaultConfig(), Deps{})
	ctx := context.Background()

	res, _ := c.RequestActivation(ctx, activationRequest("s1"))
	code := res.ConfirmationCode

	if confirmed, _ := c.ConfirmActivation(ctx, datatypes.ConfirmationRequest{
		SessionID: "s1", ConfirmationCode: code,
	}); !confirmed.Success {
		t.Fatalf("Expected the first confirmation to succeed, got %+v", confirmed)
	}

	again, _ := c.ConfirmActivation(ctx, datatypes.ConfirmationRequest{
		SessionID: "s1", ConfirmationCode: code,
	})
	if again.Success {
		t.Fatal("Expected the code to be single-use")
	}
}

func TestConfirmation_InvalidatedAfterThreeFailures(t *testing.T) {
	c, _, _ := newTestController(t, DefaultConfig(), Deps{})
	ctx := context.Background()

	res, _ := c.RequestActivation(ctx, activationRequest("s1"))

	for i := 0; i < 2; i++ {
		wrong, _ := c.ConfirmActivation(ctx, datatypes.ConfirmationRequest{
			SessionID: "s1", ConfirmationCode: "WRONGAAA",
		})
		if wrong.Success || wrong.State != datatypes.StatePendingConfirmation {
			t.Fatalf("Expected attempt %d refused but still pending, got %+v", i+1, wrong)
		}
	}

	third, _ := c.ConfirmActivation(ctx, datatypes.ConfirmationRequest{
		SessionID: "s1", ConfirmationCode: "WRONGAAA",
	})
	if third.Success || third.State != datatypes.StateDisabled {
		t.Fatalf("Expected the third failure to invalidate the confirmation, got %+v", third)
	}

	// Even the originally correct code is now dead.
	late, _ := c.ConfirmActivation(ctx, datatypes.ConfirmationRequest{
		SessionID: "s1", ConfirmationCode: res.ConfirmationCode,
	})
	if late.Success {
		t.Fatal("Expected the original code to be invalidated")
	}
}

func TestRequestActivation_RefusesWhilePending(t *testing.T) {
	c, _, _ := newTestController(t, DefaultConfig(), Deps{})
	ctx := context.Background()

	if res, _ := c.RequestActivation(ctx, activationRequest("s1")); !res.Success {
		t.Fatalf("First request refused: %q", res.Message)
	}
	second, _ := c.RequestActivation(ctx, activationRequest("s1"))
	if second.Success {
		t.Fatal("Expected a second request to be refused while one is pending")
	}
	if second.State != datatypes.StatePendingConfirmation {
		t.Errorf("Expected the pending state reported, got %s", second.State)
	}
}

func TestActivationRateLimit_RollingHour(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false
	c, clock, _ := newTestController(t, cfg, Deps{})
	ctx := context.Background()

	cycle := func() *datatypes.ActivationResult {
		res, err := c.RequestActivation(ctx, activationRequest("s1"))
		if err != nil {
			t.Fatalf("RequestActivation failed: %v", err)
		}
		return res
	}

	for i := 0; i < 3; i++ {
		if res := cycle(); !res.Success {
			t.Fatalf("Expected activation %d to pass, got %q", i+1, res.Message)
		}
		if res, _ := c.Disable(ctx, "s1", datatypes.DisableRequest{}, "alice"); !res.Success {
			t.Fatalf("Disable failed: %q", res.Message)
		}
		clock.Advance(6 * time.Minute) // clears the cooldown
	}

	fourth := cycle()
	if fourth.Success {
		t.Fatal("Expected the fourth activation inside the hour to be refused")
	}
	if !strings.Contains(fourth.Message, "limit") {
		t.Errorf("Expected a rate-limit message, got %q", fourth.Message)
	}

	// The window is rolling: an hour after the last activation the
	// counter resets.
	clock.Advance(61 * time.Minute)
	if res := cycle(); !res.Success {
		t.Errorf("Expected the window to reset after an hour, got %q", res.Message)
	}
}

func TestDisable_EntersCooldownThenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false
	c, clock, sink := newTestController(t, cfg, Deps{})
	ctx := context.Background()

	if res, _ := c.RequestActivation(ctx, activationRequest("s1")); !res.Success {
		t.Fatalf("Activation refused: %q", res.Message)
	}
	res, _ := c.Disable(ctx, "s1", datatypes.DisableRequest{}, "alice")
	if !res.Success || res.State != datatypes.StateCooldown {
		t.Fatalf("Expected cooldown after disable, got %+v", res)
	}
	if sink.countOf(datatypes.TypeDangerousModeDisabled) != 1 {
		t.Error("Expected a disabled notification")
	}

	// Re-activation during cooldown is refused.
	refused, _ := c.RequestActivation(ctx, activationRequest("s1"))
	if refused.Success || refused.State != datatypes.StateCooldown {
		t.Fatalf("Expected a cooldown refusal, got %+v", refused)
	}

	clock.Advance(6 * time.Minute)
	session, _ := c.GetSessionStatus("s1")
	if session.State != datatypes.StateDisabled {
		t.Fatalf("Expected the cooldown to elapse into disabled, got %s", session.State)
	}
}

func TestDisable_CancelsPendingConfirmation(t *testing.T) {
	c, _, _ := newTestController(t, DefaultConfig(), Deps{})
	ctx := context.Background()

	res, _ := c.RequestActivation(ctx, activationRequest("s1"))
	disabled, _ := c.Disable(ctx, "s1", datatypes.DisableRequest{}, "alice")
	if !disabled.Success || disabled.State != datatypes.StateDisabled {
		t.Fatalf("Expected the pending confirmation cancelled, got %+v", disabled)
	}

	late, _ := c.ConfirmActivation(ctx, datatypes.ConfirmationRequest{
		SessionID: "s1", ConfirmationCode: res.ConfirmationCode,
	})
	if late.Success {
		t.Fatal("Expected the cancelled code to be dead")
	}
}

func TestDisable_RejectsSystemReasons(t *testing.T) {
	c, _, _ := newTestController(t, DefaultConfig(), Deps{})
	if _, err := c.Disable(context.Background(), "s1", datatypes.DisableRequest{
		Reason: datatypes.DisableSuspiciousActivity,
	}, "alice"); err == nil {
		t.Error("Expected a system-only reason to be rejected")
	}
}

func TestExpiry_AutomaticTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false
	c, clock, _ := newTestController(t, cfg, Deps{})
	ctx := context.Background()

	if res, _ := c.RequestActivation(ctx, activationRequest("s1")); !res.Success {
		t.Fatalf("Activation refused: %q", res.Message)
	}

	clock.Advance(31 * time.Minute)
	session, _ := c.GetSessionStatus("s1")
	if session.State != datatypes.StateCooldown {
		t.Fatalf("Expected the expired session in cooldown, got %s", session.State)
	}
	if session.ExpiresAt != nil {
		t.Error("Expected the expiry cleared after timeout")
	}
}

func TestEmergencyStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false
	c, _, sink := newTestController(t, cfg, Deps{})
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		req := activationRequest(id)
		if res, _ := c.RequestActivation(ctx, req); !res.Success {
			t.Fatalf("Activation of %s refused: %q", id, res.Message)
		}
	}

	affected := c.EmergencyDisableAll(ctx, "admin")
	if len(affected) != 2 {
		t.Fatalf("Expected 2 suspended sessions, got %v", affected)
	}
	if affected[0] != "s1" || affected[1] != "s2" {
		t.Errorf("Expected the enabled session ids reported, got %v", affected)
	}
	if !c.EmergencyActive() {
		t.Fatal("Expected the emergency flag set")
	}
	if sink.countOf(datatypes.TypeEmergencyStop) != 1 {
		t.Error("Expected one emergency broadcast")
	}

	for _, id := range []string{"s1", "s2"} {
		session, _ := c.GetSessionStatus(id)
		if session.State != datatypes.StateSuspended {
			t.Errorf("Expected %s suspended, got %s", id, session.State)
		}
	}

	// New activations are blocked while the stop is engaged.
	refused, _ := c.RequestActivation(ctx, activationRequest("s3"))
	if refused.Success {
		t.Fatal("Expected activations blocked during the emergency stop")
	}

	c.ClearEmergencyStop(ctx, "admin")
	if c.EmergencyActive() {
		t.Fatal("Expected the emergency flag cleared")
	}
	session, _ := c.GetSessionStatus("s1")
	if session.State != datatypes.StateDisabled {
		t.Errorf("Expected suspended sessions back to disabled, got %s", session.State)
	}

	// Nothing re-enables automatically, but activation works again.
	if res, _ := c.RequestActivation(ctx, activationRequest("s1")); !res.Success {
		t.Errorf("Expected activation to work after clearing, got %q", res.Message)
	}
}

func TestEmergencyStop_ReportsEnabledSessionsFirst(t *testing.T) {
	c, _, _ := newTestController(t, DefaultConfig(), Deps{})
	ctx := context.Background()

	enable(t, c, "live")
	if res, _ := c.RequestActivation(ctx, activationRequest("waiting")); !res.Success {
		t.Fatal("Expected a pending confirmation")
	}

	affected := c.EmergencyDisableAll(ctx, "admin")
	if len(affected) != 2 {
		t.Fatalf("Expected both sessions affected, got %v", affected)
	}
	if affected[0] != "live" {
		t.Errorf("Expected the enabled session reported first, got %v", affected)
	}
	if affected[1] != "waiting" {
		t.Errorf("Expected the pending session reported after, got %v", affected)
	}
}

// A stop engaged after the entry checks but before the state mutation
// must still refuse the activation: the emergency iteration may already
// have passed (or never seen) this session, so the late flag read under
// the entry lock is the only thing keeping it out of StateEnabled.
func TestActivationObservesLateEmergencyStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false

	var c *Controller
	var trap atomic.Bool
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		// The controller reads the clock only after its entry-level
		// checks, so engaging here lands in the race window.
		if trap.Load() {
			c.emergency.Store(true)
		}
		return base
	}
	c, _, _ = newTestController(t, cfg, Deps{Clock: clock})
	ctx := context.Background()

	trap.Store(true)
	res, err := c.RequestActivation(ctx, activationRequest("s1"))
	if err != nil {
		t.Fatalf("RequestActivation failed: %v", err)
	}
	if res.Success {
		t.Fatal("Expected the late emergency stop to refuse the activation")
	}
	if res.State != datatypes.StateSuspended {
		t.Errorf("Expected a suspended refusal, got %s", res.State)
	}

	trap.Store(false)
	session, _ := c.GetSessionStatus("s1")
	if session.State == datatypes.StateEnabled {
		t.Fatal("Session enabled despite the active emergency stop")
	}
}

func TestConfirmObservesLateEmergencyStop(t *testing.T) {
	var c *Controller
	var trap atomic.Bool
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		if trap.Load() {
			c.emergency.Store(true)
		}
		return base
	}
	c, _, _ = newTestController(t, DefaultConfig(), Deps{Clock: clock})
	ctx := context.Background()

	res, err := c.RequestActivation(ctx, activationRequest("s1"))
	if err != nil || !res.Success {
		t.Fatalf("Expected a pending confirmation, got %+v (%v)", res, err)
	}

	trap.Store(true)
	confirmed, err := c.ConfirmActivation(ctx, datatypes.ConfirmationRequest{
		SessionID:        "s1",
		ConfirmationCode: res.ConfirmationCode,
	})
	if err != nil {
		t.Fatalf("ConfirmActivation failed: %v", err)
	}
	if confirmed.Success {
		t.Fatal("Expected the late emergency stop to refuse the confirmation")
	}

	trap.Store(false)
	session, _ := c.GetSessionStatus("s1")
	if session.State == datatypes.StateEnabled {
		t.Fatal("Session enabled despite the active emergency stop")
	}
}

func TestRequestActivation_RoleRestriction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedRoles = []string{"admin"}
	c, _, _ := newTestController(t, cfg, Deps{})

	res, _ := c.RequestActivation(context.Background(), activationRequest("s1"))
	if res.Success {
		t.Fatal("Expected a developer to be refused when only admins are allowed")
	}
}

func TestRequestActivation_RequireReason(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireReason = true
	c, _, _ := newTestController(t, cfg, Deps{})

	req := activationRequest("s1")
	req.Reason = ""
	res, _ := c.RequestActivation(context.Background(), req)
	if res.Success {
		t.Fatal("Expected a missing reason to refuse the request")
	}
}

func TestSink_ThrottleErrorsAreSwallowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false
	clock := newFakeClock()
	sink := &fakeSink{err: context.DeadlineExceeded}
	c := NewController(cfg, Deps{Clock: clock.Now, Sink: sink})
	t.Cleanup(c.Stop)

	res, err := c.RequestActivation(context.Background(), activationRequest("s1"))
	if err != nil {
		t.Fatalf("Expected sink errors to be swallowed, got %v", err)
	}
	if !res.Success {
		t.Fatalf("Expected the activation to succeed regardless, got %q", res.Message)
	}
}
