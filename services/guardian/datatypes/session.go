// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the domain types shared across the guardian
// service: dangerous-mode sessions, notification messages, recipients,
// and the request/response contracts exposed to the API layer.
package datatypes

import "time"

// =============================================================================
// Session State Machine Types
// =============================================================================

// SessionState is the lifecycle state of a dangerous-mode session.
type SessionState string

const (
	// StateDisabled is the resting state. Commands classified above the
	// allowed baseline are refused.
	StateDisabled SessionState = "disabled"

	// StatePendingConfirmation means an activation request was accepted
	// and the session is waiting for its confirmation code.
	StatePendingConfirmation SessionState = "pending_confirmation"

	// StateEnabled is the elevated state in which otherwise-blocked
	// commands may run, subject to risk accumulation.
	StateEnabled SessionState = "enabled"

	// StateCooldown is the mandatory waiting state after deactivation.
	// The session returns to StateDisabled automatically.
	StateCooldown SessionState = "cooldown"

	// StateSuspended is entered on emergency disable. It does not
	// auto-recover; the global emergency stop must be cleared first.
	StateSuspended SessionState = "suspended"
)

// DisableReason records why a session left StateEnabled.
type DisableReason string

const (
	// DisableUserRequest is an explicit disable by the session owner.
	DisableUserRequest DisableReason = "user_request"

	// DisableTimeout means the session's maximum duration elapsed.
	DisableTimeout DisableReason = "timeout"

	// DisableSuspiciousActivity is the forced disable applied when the
	// accumulated risk score crosses the configured threshold.
	DisableSuspiciousActivity DisableReason = "suspicious_activity"

	// DisableAdmin is an administrative disable of another user's session.
	DisableAdmin DisableReason = "admin_disable"

	// DisableEmergency is applied by the global emergency stop. Sessions
	// disabled this way move to StateSuspended, not StateCooldown.
	DisableEmergency DisableReason = "emergency"
)

// MaxSessionWarnings bounds the per-session warning history. Older
// entries are dropped first.
const MaxSessionWarnings = 10

// SessionWarning is one entry in a session's bounded warning history.
type SessionWarning struct {
	// Type identifies the warning kind.
	// Values: "command_blocked", "risk_increase", "timeout_warning",
	// "suspicious_pattern"
	Type string `json:"type"`

	// Message is the human-readable warning text.
	Message string `json:"message"`

	// Command is the command that triggered the warning, if any.
	Command string `json:"command,omitempty"`

	// Timestamp is when the warning was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Session is the per-user dangerous-mode session record.
//
// Sessions are created lazily on the first activation request and
// garbage-collected after 24 hours of inactivity while disabled. All
// mutation happens inside the session controller under the per-session
// lock; callers only ever see copies.
type Session struct {
	// SessionID and UserID identify the session. Immutable.
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`

	// State is the current lifecycle state.
	State SessionState `json:"state"`

	// EnabledAt and ExpiresAt are set only while State is StateEnabled.
	EnabledAt *time.Time `json:"enabledAt,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`

	// Reason is the free-text justification supplied at activation.
	Reason string `json:"reason,omitempty"`

	// ConfirmationCode is the single-use activation token. Present only
	// while State is StatePendingConfirmation. Never serialized.
	ConfirmationCode string `json:"-"`

	// FailedConfirmations counts wrong-code attempts for the current
	// pending confirmation. The code is invalidated after three.
	FailedConfirmations int `json:"-"`

	// ActivationCount and LastActivation implement the rolling-hour
	// activation rate limit. The counter resets once LastActivation is
	// more than one hour old.
	ActivationCount int       `json:"activationCount"`
	LastActivation  time.Time `json:"lastActivation,omitempty"`

	// RiskScore is the accumulated risk for the current enabled period.
	// It resets to zero on every transition into StateEnabled and is
	// otherwise non-decreasing while enabled.
	RiskScore int `json:"riskScore"`

	// CommandsExecuted counts validated commands in the current enabled
	// period. Reset together with RiskScore.
	CommandsExecuted int `json:"commandsExecuted"`

	// Warnings holds the most recent MaxSessionWarnings warning records.
	Warnings []SessionWarning `json:"warnings,omitempty"`

	// LastTransition is when State last changed. Used by the idle
	// garbage-collection sweep.
	LastTransition time.Time `json:"lastTransition"`
}

// IsActive reports whether the session currently holds elevated
// privileges.
func (s *Session) IsActive() bool {
	return s.State == StateEnabled
}

// RemainingTime returns the time until automatic expiry, or zero when
// the session is not enabled.
func (s *Session) RemainingTime(now time.Time) time.Duration {
	if s.State != StateEnabled || s.ExpiresAt == nil {
		return 0
	}
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// =============================================================================
// API Contracts
// =============================================================================

// ActivationRequest is the input contract for requesting dangerous mode.
type ActivationRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	UserID    string `json:"userId"`
	UserRole  string `json:"userRole"`
	Reason    string `json:"reason"`
}

// ConfirmationRequest is the input contract for confirming activation.
type ConfirmationRequest struct {
	SessionID        string `json:"sessionId" binding:"required"`
	ConfirmationCode string `json:"confirmationCode" binding:"required"`
	Reason           string `json:"reason"`
}

// ActivationResult is the shared output contract for activation and
// confirmation calls. Expected refusals set Success=false with an
// explanatory Message; they are never returned as errors.
type ActivationResult struct {
	Success          bool         `json:"success"`
	State            SessionState `json:"state"`
	ConfirmationCode string       `json:"confirmationCode,omitempty"`
	Message          string       `json:"message"`
	ExpiresAt        *time.Time   `json:"expiresAt,omitempty"`
	Warnings         []string     `json:"warnings,omitempty"`
}

// ValidationRequest is the input contract for command validation.
type ValidationRequest struct {
	SessionID string   `json:"sessionId" binding:"required"`
	Command   string   `json:"command" binding:"required"`
	Args      []string `json:"args"`
}

// ValidationResult is the output contract for command validation.
type ValidationResult struct {
	Allowed      bool     `json:"allowed"`
	Message      string   `json:"message,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
	RiskIncrease int      `json:"riskIncrease"`
}

// DisableRequest is the input contract for explicitly disabling a session.
type DisableRequest struct {
	Reason DisableReason `json:"reason"`
}

// DisableResult is the output contract for explicit disables.
type DisableResult struct {
	Success bool         `json:"success"`
	State   SessionState `json:"state"`
	Message string       `json:"message"`
}
