// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"time"
)

// AuditEvent represents a security-relevant event for compliance logging.
//
// Every dangerous-mode refusal, state transition, and blocked command is
// mirrored into an AuditEvent. The guardian treats audit logging as
// fire-and-forget: a failing logger must never block or fail the caller.
//
// # Event Categories
//
// Events are categorized for filtering and alerting:
//   - "dangerous_mode": activation, confirmation, disable, expiry
//   - "command": validation, blocking, risk accumulation
//   - "emergency": emergency stop set/cleared
//   - "notification": emission, escalation, acknowledgment
//
// Example:
//
//	event := AuditEvent{
//	    Category:     "dangerous_mode",
//	    Action:       "request_activation",
//	    Timestamp:    time.Now().UTC(),
//	    UserID:       authInfo.UserID,
//	    SessionID:    sessionID,
//	    ResourceType: "session",
//	    ResourceID:   sessionID,
//	    Outcome:      "blocked",
//	    Severity:     "warning",
//	    Details: map[string]any{
//	        "reason": "hourly activation limit exceeded",
//	    },
//	}
type AuditEvent struct {
	// Category groups related events for filtering.
	// Values: "dangerous_mode", "command", "emergency", "notification"
	Category string

	// Action describes what operation was attempted.
	// Examples: "request_activation", "confirm_activation",
	// "validate_command", "disable", "emergency_stop"
	Action string

	// Timestamp is when the event occurred (always use UTC).
	// If zero, implementations should set it to time.Now().UTC().
	Timestamp time.Time

	// UserID identifies who performed the action.
	// Use "system" for sweep/timer-driven actions.
	UserID string

	// SessionID is the dangerous-mode session involved, if any.
	SessionID string

	// ResourceType is the category of resource involved.
	// Examples: "session", "notification", "recipient"
	ResourceType string

	// ResourceID is the specific resource instance (optional).
	ResourceID string

	// Outcome indicates the result of the action.
	// Values: "success", "failure", "blocked"
	Outcome string

	// Severity indicates how alarming the event is.
	// Values: "info", "warning", "error", "critical"
	Severity string

	// Details holds additional event-specific data, such as the
	// refusal reason, the command that was blocked, or the risk
	// score at the time of a forced disable.
	Details map[string]any
}

// AuditFilter defines criteria for querying audit events.
//
// All fields are optional; only non-zero values are applied.
// Multiple fields combine with AND logic.
type AuditFilter struct {
	// Categories limits results to specific event categories.
	Categories []string

	// UserID limits results to events from a specific user.
	UserID string

	// SessionID limits results to events for a specific session.
	SessionID string

	// StartTime is the earliest event timestamp to include (inclusive).
	StartTime time.Time

	// EndTime is the latest event timestamp to include (exclusive).
	EndTime time.Time

	// Outcome limits results to a specific outcome tag.
	Outcome string
}

// AuditLogger records security-relevant events.
//
// Implementations may choose sync or async logging:
//   - Sync: blocks until the event is persisted (safer, slower)
//   - Async: returns immediately, buffers events (faster, may lose events)
//
// The guardian swallows any error returned from Log; implementations
// should still return errors for callers that care.
type AuditLogger interface {
	// Log records a security-relevant event.
	//
	// Implementations should:
	//  1. Set Timestamp if zero
	//  2. Persist or transmit the event
	//  3. Return quickly (use async buffering if needed)
	Log(ctx context.Context, event AuditEvent) error

	// Query retrieves audit events matching the filter criteria,
	// ordered by Timestamp descending.
	//
	// NopAuditLogger returns an empty slice (no events stored).
	Query(ctx context.Context, filter AuditFilter) ([]AuditEvent, error)

	// Flush ensures all buffered events are persisted.
	// Call before shutdown to prevent event loss.
	Flush(ctx context.Context) error
}

// NopAuditLogger is the default audit logger for open source.
//
// It discards all events without recording them. This is appropriate
// for local single-user deployments where audit trails aren't required.
type NopAuditLogger struct{}

// Log discards the event without recording it.
func (l *NopAuditLogger) Log(_ context.Context, _ AuditEvent) error {
	return nil
}

// Query returns an empty slice (no events are stored).
func (l *NopAuditLogger) Query(_ context.Context, _ AuditFilter) ([]AuditEvent, error) {
	return []AuditEvent{}, nil
}

// Flush is a no-op since nothing is buffered.
func (l *NopAuditLogger) Flush(_ context.Context) error {
	return nil
}

// Compile-time interface compliance check.
var _ AuditLogger = (*NopAuditLogger)(nil)
