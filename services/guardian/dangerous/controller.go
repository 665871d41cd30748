// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dangerous implements the elevated-privilege session
// controller: the state machine that grants, monitors, and revokes
// dangerous-mode sessions.
//
// # Description
//
// Each user session moves through a fixed lifecycle:
//
//	disabled -> pending_confirmation -> enabled -> cooldown -> disabled
//
// with two forced exits: automatic expiry after the maximum duration,
// and forced disable when the accumulated risk score crosses the
// configured budget. A global emergency stop suspends every session at
// once and blocks new activations until cleared.
//
// Expected refusals (wrong code, rate limit, cooldown) are results, not
// errors: callers receive Success=false with an explanation. Errors are
// reserved for internal failures.
package dangerous

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/observability"
	"github.com/AleutianAI/AleutianGuard/services/guardian/risk"
	"github.com/AleutianAI/AleutianGuard/services/guardian/warnings"
)

// MaxFailedConfirmations is how many wrong codes invalidate a pending
// confirmation and force a fresh activation request.
const MaxFailedConfirmations = 3

// confirmationCodeLength is the length of generated activation codes.
const confirmationCodeLength = 8

// codeAlphabet omits ambiguous characters (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// NotificationSink receives the controller's domain events. The notify
// engine is the working implementation; tests substitute fakes.
type NotificationSink interface {
	// Emit creates and delivers a notification. A throttled emission
	// returns an error wrapping notify.ErrThrottled; the controller
	// treats that as best-effort and moves on.
	Emit(ctx context.Context, t datatypes.NotificationType, event datatypes.EventContext) (*datatypes.NotificationMessage, error)
}

// Config carries the controller's tunable limits.
type Config struct {
	// MaxDuration is how long a session stays enabled before automatic
	// expiry.
	MaxDuration time.Duration

	// CooldownDuration is the mandatory wait after deactivation before
	// the session may be activated again.
	CooldownDuration time.Duration

	// MaxActivationsPerHour is the rolling-window activation rate limit.
	MaxActivationsPerHour int

	// MaxRiskScore is the risk budget. A session whose accumulated score
	// exceeds this (strictly) is force-disabled.
	MaxRiskScore int

	// RequireConfirmation gates enabling behind a single-use code.
	RequireConfirmation bool

	// RequireReason refuses activation requests without a justification.
	RequireReason bool

	// AllowedRoles limits who may activate. Empty allows any role.
	AllowedRoles []string

	// ExpirySweepInterval is how often the backstop expiry/GC sweep runs.
	ExpirySweepInterval time.Duration

	// WarningSweepInterval is how often the timeout-warning sweep runs.
	WarningSweepInterval time.Duration

	// WarningLeadTime is how far before expiry the timeout warning fires.
	WarningLeadTime time.Duration

	// IdleGCThreshold is how long a disabled session may sit idle before
	// the sweep deletes it.
	IdleGCThreshold time.Duration
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		MaxDuration:           30 * time.Minute,
		CooldownDuration:      5 * time.Minute,
		MaxActivationsPerHour: 3,
		MaxRiskScore:          80,
		RequireConfirmation:   true,
		RequireReason:         false,
		ExpirySweepInterval:   time.Minute,
		WarningSweepInterval:  30 * time.Second,
		WarningLeadTime:       5 * time.Minute,
		IdleGCThreshold:       24 * time.Hour,
	}
}

// sessionEntry pairs a session with its own lock and timer bookkeeping.
// Lock ordering: Controller.mu before entry.mu, never the reverse.
type sessionEntry struct {
	mu sync.Mutex
	s  datatypes.Session

	// timerGen invalidates outstanding expiry/cooldown timers. Every
	// state transition bumps it; a firing timer with a stale generation
	// does nothing.
	timerGen uint64

	// warnedForExpiry is set once the timeout warning has fired for the
	// current enabled period.
	warnedForExpiry bool
}

// Controller owns every dangerous-mode session.
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Per-session
// operations serialize on the session's own lock so distinct sessions
// never contend.
type Controller struct {
	cfg         Config
	classifier  extensions.CommandClassifier
	accumulator *risk.Accumulator
	warnings    *warnings.Factory
	sink        NotificationSink
	audit       extensions.AuditLogger
	logger      *slog.Logger
	clock       func() time.Time

	mu        sync.RWMutex
	sessions  map[string]*sessionEntry
	emergency atomic.Bool
	active    atomic.Int64

	done     chan struct{}
	stopOnce sync.Once
}

// Deps carries the controller's collaborators. Nil fields fall back to
// nop implementations.
type Deps struct {
	Classifier extensions.CommandClassifier
	Sink       NotificationSink
	Audit      extensions.AuditLogger
	Logger     *slog.Logger
	Clock      func() time.Time
}

// NewController returns a controller with the given limits and
// collaborators.
func NewController(cfg Config, deps Deps) *Controller {
	def := DefaultConfig()
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = def.MaxDuration
	}
	if cfg.CooldownDuration <= 0 {
		cfg.CooldownDuration = def.CooldownDuration
	}
	if cfg.MaxActivationsPerHour <= 0 {
		cfg.MaxActivationsPerHour = def.MaxActivationsPerHour
	}
	if cfg.MaxRiskScore <= 0 {
		cfg.MaxRiskScore = def.MaxRiskScore
	}
	if cfg.ExpirySweepInterval <= 0 {
		cfg.ExpirySweepInterval = def.ExpirySweepInterval
	}
	if cfg.WarningSweepInterval <= 0 {
		cfg.WarningSweepInterval = def.WarningSweepInterval
	}
	if cfg.WarningLeadTime <= 0 {
		cfg.WarningLeadTime = def.WarningLeadTime
	}
	if cfg.IdleGCThreshold <= 0 {
		cfg.IdleGCThreshold = def.IdleGCThreshold
	}

	if deps.Classifier == nil {
		deps.Classifier = &extensions.NopCommandClassifier{}
	}
	if deps.Audit == nil {
		deps.Audit = &extensions.NopAuditLogger{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return &Controller{
		cfg:         cfg,
		classifier:  deps.Classifier,
		accumulator: risk.NewAccumulator(),
		warnings:    warnings.NewFactory(),
		sink:        deps.Sink,
		audit:       deps.Audit,
		logger:      deps.Logger.With("component", "dangerous_controller"),
		clock:       deps.Clock,
		sessions:    make(map[string]*sessionEntry),
		done:        make(chan struct{}),
	}
}

// Config returns the controller's limits.
func (c *Controller) Config() Config {
	return c.cfg
}

// =============================================================================
// Activation
// =============================================================================

// RequestActivation begins the activation handshake for a session.
//
// # Description
//
// Refusals (emergency stop, role check, missing reason, cooldown, rate
// limit, already enabled or pending) come back as Success=false with an
// explanation. When confirmation is required the result carries the
// single-use code and the session waits in pending_confirmation;
// otherwise the session enables immediately.
func (c *Controller) RequestActivation(ctx context.Context, req datatypes.ActivationRequest) (*datatypes.ActivationResult, error) {
	if c.emergency.Load() {
		c.auditActivation(ctx, req, "blocked", "emergency stop active")
		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StateSuspended, "emergency stop is active; activations are suspended"), nil
	}
	if len(c.cfg.AllowedRoles) > 0 && !roleAllowed(c.cfg.AllowedRoles, req.UserRole) {
		c.auditActivation(ctx, req, "blocked", "role not permitted")
		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StateDisabled,
			fmt.Sprintf("role %q may not activate dangerous mode", req.UserRole)), nil
	}
	if c.cfg.RequireReason && req.Reason == "" {
		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StateDisabled, "a reason is required to activate dangerous mode"), nil
	}

	entry := c.getOrCreate(req.SessionID, req.UserID)
	entry.mu.Lock()
	now := c.clock()
	c.normalizeLocked(entry, now)

	switch entry.s.State {
	case datatypes.StateEnabled:
		entry.mu.Unlock()
		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StateEnabled, "dangerous mode is already enabled for this session"), nil
	case datatypes.StatePendingConfirmation:
		entry.mu.Unlock()
		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StatePendingConfirmation,
			"a confirmation is already pending for this session"), nil
	case datatypes.StateCooldown:
		remaining := c.cooldownRemainingLocked(entry, now)
		entry.mu.Unlock()
		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StateCooldown,
			fmt.Sprintf("session is in cooldown for another %s", remaining.Round(time.Second))), nil
	case datatypes.StateSuspended:
		entry.mu.Unlock()
		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StateSuspended,
			"session is suspended; the emergency stop must be cleared first"), nil
	}

	// Rolling-hour rate limit. The counter resets once the last
	// activation is more than an hour old.
	if now.Sub(entry.s.LastActivation) > time.Hour {
		entry.s.ActivationCount = 0
	}
	if entry.s.ActivationCount >= c.cfg.MaxActivationsPerHour {
		entry.mu.Unlock()
		c.auditActivation(ctx, req, "blocked", "hourly activation limit exceeded")
		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StateDisabled,
			fmt.Sprintf("activation limit of %d per hour exceeded; try again later",
				c.cfg.MaxActivationsPerHour)), nil
	}

	entry.s.Reason = req.Reason
	if req.UserID != "" {
		entry.s.UserID = req.UserID
	}

	// The flag may have been stored after the entry check above but
	// before this entry was locked; the emergency sweep could already
	// have passed this session, so the re-check here is what keeps it
	// out of StateEnabled.
	if c.emergency.Load() {
		entry.mu.Unlock()
		c.auditActivation(ctx, req, "blocked", "emergency stop active")
		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StateSuspended, "emergency stop is active; activations are suspended"), nil
	}

	if !c.cfg.RequireConfirmation {
		c.enableLocked(entry, now)
		expiresAt := *entry.s.ExpiresAt
		userID := entry.s.UserID
		entry.mu.Unlock()

		c.afterEnable(ctx, req.SessionID, userID, req.Reason, expiresAt)
		observability.RecordActivation("enabled")
		return &datatypes.ActivationResult{
			Success:   true,
			State:     datatypes.StateEnabled,
			Message:   "dangerous mode enabled",
			ExpiresAt: &expiresAt,
		}, nil
	}

	code, err := generateConfirmationCode()
	if err != nil {
		entry.mu.Unlock()
		return nil, fmt.Errorf("failed to generate confirmation code: %w", err)
	}
	entry.s.State = datatypes.StatePendingConfirmation
	entry.s.ConfirmationCode = code
	entry.s.FailedConfirmations = 0
	entry.s.LastTransition = now
	entry.timerGen++
	entry.mu.Unlock()

	dialog := c.warnings.ActivationConfirmation(warnings.ActivationContext{
		SessionID:   req.SessionID,
		UserID:      req.UserID,
		Reason:      req.Reason,
		MaxDuration: c.cfg.MaxDuration,
	})

	c.auditActivation(ctx, req, "success", "confirmation pending")
	observability.RecordActivation("pending")
	return &datatypes.ActivationResult{
		Success:          true,
		State:            datatypes.StatePendingConfirmation,
		ConfirmationCode: code,
		Message:          "confirm activation with the provided code",
		Warnings:         dialog.Risks,
	}, nil
}

// ConfirmActivation completes the handshake with the single-use code.
//
// Three wrong codes invalidate the pending confirmation entirely; the
// user must request activation again.
func (c *Controller) ConfirmActivation(ctx context.Context, req datatypes.ConfirmationRequest) (*datatypes.ActivationResult, error) {
	if c.emergency.Load() {
		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StateSuspended, "emergency stop is active; activations are suspended"), nil
	}

	entry, ok := c.lookup(req.SessionID)
	if !ok {
		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StateDisabled, "no activation is pending for this session"), nil
	}

	entry.mu.Lock()
	now := c.clock()
	c.normalizeLocked(entry, now)

	if entry.s.State != datatypes.StatePendingConfirmation {
		state := entry.s.State
		entry.mu.Unlock()
		observability.RecordActivation("refused")
		return refuseActivation(state, "no activation is pending for this session"), nil
	}

	if subtle.ConstantTimeCompare([]byte(entry.s.ConfirmationCode), []byte(req.ConfirmationCode)) != 1 {
		entry.s.FailedConfirmations++
		if entry.s.FailedConfirmations >= MaxFailedConfirmations {
			entry.s.State = datatypes.StateDisabled
			entry.s.ConfirmationCode = ""
			entry.s.FailedConfirmations = 0
			entry.s.LastTransition = now
			entry.timerGen++
			entry.mu.Unlock()

			c.auditConfirmation(ctx, req.SessionID, "blocked", "confirmation invalidated after repeated failures")
			observability.RecordActivation("refused")
			return refuseActivation(datatypes.StateDisabled,
				"too many failed confirmation attempts; request activation again"), nil
		}
		remaining := MaxFailedConfirmations - entry.s.FailedConfirmations
		entry.mu.Unlock()

		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StatePendingConfirmation,
			fmt.Sprintf("invalid confirmation code; %d attempts remaining", remaining)), nil
	}

	// Same race as in RequestActivation: the stop may have engaged
	// after the entry check. The session stays pending here; the
	// emergency iteration holds the snapshot and suspends it once this
	// lock is released.
	if c.emergency.Load() {
		entry.mu.Unlock()
		observability.RecordActivation("refused")
		return refuseActivation(datatypes.StateSuspended, "emergency stop is active; activations are suspended"), nil
	}

	if req.Reason != "" {
		entry.s.Reason = req.Reason
	}
	c.enableLocked(entry, now)
	expiresAt := *entry.s.ExpiresAt
	userID := entry.s.UserID
	reason := entry.s.Reason
	entry.mu.Unlock()

	c.afterEnable(ctx, req.SessionID, userID, reason, expiresAt)
	observability.RecordActivation("enabled")
	return &datatypes.ActivationResult{
		Success:   true,
		State:     datatypes.StateEnabled,
		Message:   "dangerous mode enabled",
		ExpiresAt: &expiresAt,
	}, nil
}

// Disable explicitly ends a session's elevated privileges.
//
// Disabling a pending confirmation cancels it. Disabling an enabled
// session moves it to cooldown. Anything else is a refusal.
func (c *Controller) Disable(ctx context.Context, sessionID string, req datatypes.DisableRequest, by string) (*datatypes.DisableResult, error) {
	reason := req.Reason
	if reason == "" {
		reason = datatypes.DisableUserRequest
	}
	switch reason {
	case datatypes.DisableUserRequest, datatypes.DisableAdmin:
	default:
		return nil, fmt.Errorf("disable reason %q is not caller-selectable", reason)
	}

	entry, ok := c.lookup(sessionID)
	if !ok {
		return &datatypes.DisableResult{
			Success: false,
			State:   datatypes.StateDisabled,
			Message: "session not found",
		}, nil
	}

	entry.mu.Lock()
	now := c.clock()
	c.normalizeLocked(entry, now)

	switch entry.s.State {
	case datatypes.StatePendingConfirmation:
		entry.s.State = datatypes.StateDisabled
		entry.s.ConfirmationCode = ""
		entry.s.FailedConfirmations = 0
		entry.s.LastTransition = now
		entry.timerGen++
		entry.mu.Unlock()

		_ = c.audit.Log(ctx, extensions.AuditEvent{
			Category: "dangerous_mode", Action: "disable", Outcome: "success",
			Severity: "info", UserID: by, SessionID: sessionID,
			ResourceType: "session", ResourceID: sessionID,
			Details: map[string]any{"reason": string(reason), "cancelledPending": true},
		})
		return &datatypes.DisableResult{
			Success: true,
			State:   datatypes.StateDisabled,
			Message: "pending activation cancelled",
		}, nil

	case datatypes.StateEnabled:
		riskScore := entry.s.RiskScore
		userID := entry.s.UserID
		c.disableLocked(entry, reason, now)
		entry.mu.Unlock()

		c.afterDisable(ctx, sessionID, userID, by, reason, riskScore)
		return &datatypes.DisableResult{
			Success: true,
			State:   datatypes.StateCooldown,
			Message: fmt.Sprintf("dangerous mode disabled; cooldown for %s", c.cfg.CooldownDuration),
		}, nil

	default:
		state := entry.s.State
		entry.mu.Unlock()
		return &datatypes.DisableResult{
			Success: false,
			State:   state,
			Message: "dangerous mode is not enabled for this session",
		}, nil
	}
}

// GetSessionStatus returns a normalized copy of one session.
func (c *Controller) GetSessionStatus(sessionID string) (datatypes.Session, bool) {
	entry, ok := c.lookup(sessionID)
	if !ok {
		return datatypes.Session{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	c.normalizeLocked(entry, c.clock())
	return entry.s, true
}

// ListSessions returns normalized copies of every tracked session.
func (c *Controller) ListSessions() []datatypes.Session {
	c.mu.RLock()
	entries := make([]*sessionEntry, 0, len(c.sessions))
	for _, entry := range c.sessions {
		entries = append(entries, entry)
	}
	c.mu.RUnlock()

	now := c.clock()
	out := make([]datatypes.Session, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		c.normalizeLocked(entry, now)
		out = append(out, entry.s)
		entry.mu.Unlock()
	}
	return out
}

// =============================================================================
// Emergency stop
// =============================================================================

// EmergencyDisableAll suspends every session and blocks new activations
// until ClearEmergencyStop. Returns the IDs of the suspended sessions,
// enabled ones first so callers can tell which held live privileges.
func (c *Controller) EmergencyDisableAll(ctx context.Context, by string) []string {
	c.emergency.Store(true)

	c.mu.RLock()
	entries := make([]*sessionEntry, 0, len(c.sessions))
	ids := make([]string, 0, len(c.sessions))
	for id, entry := range c.sessions {
		entries = append(entries, entry)
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	now := c.clock()
	wasEnabled := make([]string, 0, len(entries))
	wasElevating := make([]string, 0)
	for i, entry := range entries {
		entry.mu.Lock()
		state := entry.s.State
		switch state {
		case datatypes.StateEnabled:
			c.active.Add(-1)
			fallthrough
		case datatypes.StatePendingConfirmation, datatypes.StateCooldown:
			entry.s.State = datatypes.StateSuspended
			entry.s.Reason = ""
			entry.s.ConfirmationCode = ""
			entry.s.EnabledAt = nil
			entry.s.ExpiresAt = nil
			entry.s.LastTransition = now
			entry.timerGen++
			if state == datatypes.StateEnabled {
				wasEnabled = append(wasEnabled, ids[i])
			} else {
				wasElevating = append(wasElevating, ids[i])
			}
			observability.RecordForcedDisable(string(datatypes.DisableEmergency), entry.s.RiskScore)
			c.logger.WarnContext(ctx, "session suspended by emergency stop",
				"sessionId", ids[i], "priorState", string(state))
		}
		entry.mu.Unlock()
	}
	observability.SetActiveSessions(int(c.active.Load()))

	sort.Strings(wasEnabled)
	sort.Strings(wasElevating)
	affected := append(wasEnabled, wasElevating...)

	_ = c.audit.Log(ctx, extensions.AuditEvent{
		Category: "emergency", Action: "emergency_stop", Outcome: "success",
		Severity: "critical", UserID: by,
		Details: map[string]any{"affectedSessions": affected},
	})
	c.emit(ctx, datatypes.TypeEmergencyStop, datatypes.EventContext{
		Title:    "Emergency stop engaged",
		Body:     fmt.Sprintf("All dangerous-mode sessions suspended (%d affected). New activations are blocked.", len(affected)),
		Severity: datatypes.SeverityCritical,
		Details:  map[string]any{"affectedSessions": affected, "by": by},
	})
	return affected
}

// ClearEmergencyStop lifts the global stop. Suspended sessions return
// to disabled; nothing re-enables automatically.
func (c *Controller) ClearEmergencyStop(ctx context.Context, by string) {
	if !c.emergency.CompareAndSwap(true, false) {
		return
	}

	c.mu.RLock()
	entries := make([]*sessionEntry, 0, len(c.sessions))
	for _, entry := range c.sessions {
		entries = append(entries, entry)
	}
	c.mu.RUnlock()

	now := c.clock()
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.s.State == datatypes.StateSuspended {
			entry.s.State = datatypes.StateDisabled
			entry.s.LastTransition = now
			entry.timerGen++
		}
		entry.mu.Unlock()
	}

	_ = c.audit.Log(ctx, extensions.AuditEvent{
		Category: "emergency", Action: "clear_emergency_stop", Outcome: "success",
		Severity: "warning", UserID: by,
	})
	c.logger.InfoContext(ctx, "emergency stop cleared", "by", by)
}

// EmergencyActive reports whether the global stop is engaged.
func (c *Controller) EmergencyActive() bool {
	return c.emergency.Load()
}

// =============================================================================
// Internals
// =============================================================================

// getOrCreate returns the entry for a session, creating it lazily.
func (c *Controller) getOrCreate(sessionID, userID string) *sessionEntry {
	c.mu.RLock()
	entry, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if ok {
		return entry
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok = c.sessions[sessionID]; ok {
		return entry
	}
	entry = &sessionEntry{s: datatypes.Session{
		SessionID:      sessionID,
		UserID:         userID,
		State:          datatypes.StateDisabled,
		LastTransition: c.clock(),
	}}
	c.sessions[sessionID] = entry
	return entry
}

func (c *Controller) lookup(sessionID string) (*sessionEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.sessions[sessionID]
	return entry, ok
}

// normalizeLocked advances time-driven transitions the timers have not
// caught yet: enabled past expiry moves to cooldown, cooldown past its
// window moves to disabled. Caller holds entry.mu.
func (c *Controller) normalizeLocked(entry *sessionEntry, now time.Time) {
	if entry.s.State == datatypes.StateEnabled &&
		entry.s.ExpiresAt != nil && !now.Before(*entry.s.ExpiresAt) {
		riskScore := entry.s.RiskScore
		userID := entry.s.UserID
		sessionID := entry.s.SessionID
		c.disableLocked(entry, datatypes.DisableTimeout, *entry.s.ExpiresAt)
		go c.afterDisable(context.Background(), sessionID, userID, "system", datatypes.DisableTimeout, riskScore)
	}
	if entry.s.State == datatypes.StateCooldown &&
		now.Sub(entry.s.LastTransition) >= c.cfg.CooldownDuration {
		entry.s.State = datatypes.StateDisabled
		entry.s.Reason = ""
		entry.s.LastTransition = entry.s.LastTransition.Add(c.cfg.CooldownDuration)
		entry.timerGen++
	}
}

func (c *Controller) cooldownRemainingLocked(entry *sessionEntry, now time.Time) time.Duration {
	remaining := c.cfg.CooldownDuration - now.Sub(entry.s.LastTransition)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// enableLocked transitions to enabled, resets the per-period counters,
// and arms the expiry timer. Caller holds entry.mu.
func (c *Controller) enableLocked(entry *sessionEntry, now time.Time) {
	expiresAt := now.Add(c.cfg.MaxDuration)
	entry.s.State = datatypes.StateEnabled
	entry.s.EnabledAt = &now
	entry.s.ExpiresAt = &expiresAt
	entry.s.ConfirmationCode = ""
	entry.s.FailedConfirmations = 0
	entry.s.RiskScore = 0
	entry.s.CommandsExecuted = 0
	entry.s.ActivationCount++
	entry.s.LastActivation = now
	entry.s.LastTransition = now
	entry.warnedForExpiry = false
	entry.timerGen++

	c.active.Add(1)
	observability.SetActiveSessions(int(c.active.Load()))
	c.armExpiry(entry, entry.timerGen, c.cfg.MaxDuration)
}

// disableLocked transitions out of enabled. Emergency goes to
// suspended; everything else goes to cooldown with its timer armed.
// Caller holds entry.mu.
func (c *Controller) disableLocked(entry *sessionEntry, reason datatypes.DisableReason, now time.Time) {
	entry.s.EnabledAt = nil
	entry.s.ExpiresAt = nil
	entry.s.Reason = ""
	entry.s.LastTransition = now
	entry.timerGen++
	c.active.Add(-1)
	observability.SetActiveSessions(int(c.active.Load()))

	if reason == datatypes.DisableEmergency {
		entry.s.State = datatypes.StateSuspended
		return
	}
	entry.s.State = datatypes.StateCooldown
	c.armCooldown(entry, entry.timerGen, c.cfg.CooldownDuration)
}

// afterEnable runs the side effects of a successful enable outside the
// session lock.
func (c *Controller) afterEnable(ctx context.Context, sessionID, userID, reason string, expiresAt time.Time) {
	_ = c.audit.Log(ctx, extensions.AuditEvent{
		Category: "dangerous_mode", Action: "enable", Outcome: "success",
		Severity: "warning", UserID: userID, SessionID: sessionID,
		ResourceType: "session", ResourceID: sessionID,
		Details: map[string]any{"reason": reason, "expiresAt": expiresAt},
	})
	c.emit(ctx, datatypes.TypeDangerousModeEnabled, datatypes.EventContext{
		UserID:    userID,
		SessionID: sessionID,
		Title:     "Dangerous mode enabled",
		Body: fmt.Sprintf("Session %s holds elevated privileges until %s.",
			sessionID, expiresAt.Format(time.RFC3339)),
		Severity: datatypes.SeverityWarning,
		Details:  map[string]any{"reason": reason},
	})
	c.logger.InfoContext(ctx, "dangerous mode enabled",
		"sessionId", sessionID, "userId", userID, "expiresAt", expiresAt)
}

// afterDisable runs the side effects of leaving the enabled state
// outside the session lock.
func (c *Controller) afterDisable(ctx context.Context, sessionID, userID, by string, reason datatypes.DisableReason, riskScore int) {
	severity := "info"
	if reason != datatypes.DisableUserRequest {
		severity = "warning"
		observability.RecordForcedDisable(string(reason), riskScore)
	}
	_ = c.audit.Log(ctx, extensions.AuditEvent{
		Category: "dangerous_mode", Action: "disable", Outcome: "success",
		Severity: severity, UserID: by, SessionID: sessionID,
		ResourceType: "session", ResourceID: sessionID,
		Details: map[string]any{"reason": string(reason), "riskScore": riskScore},
	})
	c.emit(ctx, datatypes.TypeDangerousModeDisabled, datatypes.EventContext{
		UserID:    userID,
		SessionID: sessionID,
		Title:     "Dangerous mode disabled",
		Body:      fmt.Sprintf("Session %s lost elevated privileges (%s).", sessionID, reason),
		Severity:  datatypes.SeverityInfo,
		Details:   map[string]any{"reason": string(reason), "riskScore": riskScore},
	})
	c.logger.InfoContext(ctx, "dangerous mode disabled",
		"sessionId", sessionID, "reason", string(reason), "riskScore", riskScore)
}

// emit sends a notification best-effort. Throttled or failed emissions
// are logged and dropped; they never fail the calling operation.
func (c *Controller) emit(ctx context.Context, t datatypes.NotificationType, event datatypes.EventContext) {
	if c.sink == nil {
		return
	}
	if _, err := c.sink.Emit(ctx, t, event); err != nil {
		c.logger.DebugContext(ctx, "notification dropped",
			"type", string(t), "error", err)
	}
}

func (c *Controller) auditActivation(ctx context.Context, req datatypes.ActivationRequest, outcome, detail string) {
	_ = c.audit.Log(ctx, extensions.AuditEvent{
		Category: "dangerous_mode", Action: "request_activation", Outcome: outcome,
		Severity: "info", UserID: req.UserID, SessionID: req.SessionID,
		ResourceType: "session", ResourceID: req.SessionID,
		Details: map[string]any{"detail": detail, "reason": req.Reason},
	})
}

func (c *Controller) auditConfirmation(ctx context.Context, sessionID, outcome, detail string) {
	_ = c.audit.Log(ctx, extensions.AuditEvent{
		Category: "dangerous_mode", Action: "confirm_activation", Outcome: outcome,
		Severity: "warning", SessionID: sessionID,
		ResourceType: "session", ResourceID: sessionID,
		Details: map[string]any{"detail": detail},
	})
}

func refuseActivation(state datatypes.SessionState, message string) *datatypes.ActivationResult {
	return &datatypes.ActivationResult{Success: false, State: state, Message: message}
}

func roleAllowed(allowed []string, role string) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}

// generateConfirmationCode returns an 8-character uppercase code from
// crypto/rand.
func generateConfirmationCode() (string, error) {
	buf := make([]byte, confirmationCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	code := make([]byte, confirmationCodeLength)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}
