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
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/observability"
)

// ValidateCommand classifies a command against the session's current
// privileges and accumulates risk.
//
// # Description
//
// The classifier sees whether the session holds elevated privileges and
// decides the verdict and risk tier. Refused commands are recorded on
// the session's warning history and emitted as command_blocked
// notifications. Allowed commands on an enabled session add their risk
// increment to the session's running score; crossing the budget
// (strictly) force-disables the session and refuses the command.
//
// Classifier failures fail closed: the command is refused.
func (c *Controller) ValidateCommand(ctx context.Context, req datatypes.ValidationRequest) (*datatypes.ValidationResult, error) {
	entry, tracked := c.lookup(req.SessionID)

	enabled := false
	userID := ""
	if tracked {
		entry.mu.Lock()
		c.normalizeLocked(entry, c.clock())
		enabled = entry.s.State == datatypes.StateEnabled
		userID = entry.s.UserID
		entry.mu.Unlock()
	}
	if c.emergency.Load() {
		enabled = false
	}

	verdict, err := c.classifier.ClassifyCommand(ctx, extensions.CommandContext{
		Command:              req.Command,
		Args:                 req.Args,
		SessionID:            req.SessionID,
		UserID:               userID,
		DangerousModeEnabled: enabled,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "classifier failed, refusing command",
			"sessionId", req.SessionID, "command", req.Command, "error", err)
		observability.RecordValidation("unknown", "blocked")
		return &datatypes.ValidationResult{
			Allowed: false,
			Message: "command classification failed; refusing to run",
		}, nil
	}

	if !verdict.Allowed {
		message := strings.Join(verdict.Errors, "; ")
		if message == "" {
			message = "command refused by policy"
		}
		if tracked {
			c.recordWarning(entry, datatypes.SessionWarning{
				Type:    "command_blocked",
				Message: message,
				Command: req.Command,
			})
		}
		observability.RecordValidation(string(verdict.Risk), "blocked")
		_ = c.audit.Log(ctx, extensions.AuditEvent{
			Category: "command", Action: "validate_command", Outcome: "blocked",
			Severity: "warning", UserID: userID, SessionID: req.SessionID,
			Details: map[string]any{"command": req.Command, "risk": string(verdict.Risk), "message": message},
		})
		c.emit(ctx, datatypes.TypeCommandBlocked, datatypes.EventContext{
			UserID:    userID,
			SessionID: req.SessionID,
			Title:     "Command blocked",
			Body:      fmt.Sprintf("%q was refused: %s", req.Command, message),
			Severity:  datatypes.SeverityWarning,
			Details:   map[string]any{"command": req.Command, "risk": string(verdict.Risk)},
		})
		return &datatypes.ValidationResult{
			Allowed:  false,
			Message:  message,
			Warnings: verdict.Warnings,
		}, nil
	}

	result := &datatypes.ValidationResult{
		Allowed:  true,
		Warnings: append([]string(nil), verdict.Warnings...),
	}

	// Risk accumulates only while the session holds elevated privileges.
	if enabled && tracked {
		increment := c.accumulator.ScoreFor(verdict.Risk)
		forced, total := c.accumulate(ctx, entry, req.Command, increment, result)
		result.RiskIncrease = increment
		if forced {
			observability.RecordValidation(string(verdict.Risk), "blocked")
			return &datatypes.ValidationResult{
				Allowed: false,
				Message: fmt.Sprintf("risk budget exhausted (%d of %d); dangerous mode disabled",
					total, c.cfg.MaxRiskScore),
				RiskIncrease: increment,
			}, nil
		}
	}

	observability.RecordValidation(string(verdict.Risk), "allowed")
	return result, nil
}

// accumulate adds a risk increment to an enabled session, recording a
// warning on large increments and force-disabling when the budget is
// exceeded. Returns whether the session was force-disabled and the
// resulting total.
func (c *Controller) accumulate(ctx context.Context, entry *sessionEntry, command string, increment int, result *datatypes.ValidationResult) (bool, int) {
	entry.mu.Lock()
	if entry.s.State != datatypes.StateEnabled {
		// Lost the race with an expiry or disable; nothing to accumulate.
		total := entry.s.RiskScore
		entry.mu.Unlock()
		return false, total
	}

	entry.s.RiskScore += increment
	entry.s.CommandsExecuted++
	total := entry.s.RiskScore
	userID := entry.s.UserID
	sessionID := entry.s.SessionID

	if c.accumulator.IsHighIncrement(increment) {
		payload := c.warnings.HighRiskOperation(command, increment, total, c.cfg.MaxRiskScore)
		c.appendWarningLocked(entry, datatypes.SessionWarning{
			Type:      "risk_increase",
			Message:   payload.Message,
			Command:   command,
			Timestamp: c.clock(),
		})
		result.Warnings = append(result.Warnings, payload.Message)
	}

	if total <= c.cfg.MaxRiskScore {
		entry.mu.Unlock()
		return false, total
	}

	// Budget exceeded strictly: forced disable.
	c.appendWarningLocked(entry, datatypes.SessionWarning{
		Type:      "suspicious_pattern",
		Message:   fmt.Sprintf("risk score %d exceeded the budget of %d", total, c.cfg.MaxRiskScore),
		Command:   command,
		Timestamp: c.clock(),
	})
	c.disableLocked(entry, datatypes.DisableSuspiciousActivity, c.clock())
	entry.mu.Unlock()

	c.afterDisable(ctx, sessionID, userID, "system", datatypes.DisableSuspiciousActivity, total)
	c.emit(ctx, datatypes.TypeRiskThreshold, datatypes.EventContext{
		UserID:    userID,
		SessionID: sessionID,
		Title:     "Risk budget exhausted",
		Body: fmt.Sprintf("Session %s accumulated %d risk points (budget %d) and was disabled.",
			sessionID, total, c.cfg.MaxRiskScore),
		Severity: datatypes.SeverityCritical,
		Details:  map[string]any{"riskScore": total, "command": command},
	})
	return true, total
}

// recordWarning appends to the session's bounded warning history.
func (c *Controller) recordWarning(entry *sessionEntry, warning datatypes.SessionWarning) {
	if warning.Timestamp.IsZero() {
		warning.Timestamp = c.clock()
	}
	entry.mu.Lock()
	c.appendWarningLocked(entry, warning)
	entry.mu.Unlock()
}

// appendWarningLocked drops the oldest entry once the history is full.
// Caller holds entry.mu.
func (c *Controller) appendWarningLocked(entry *sessionEntry, warning datatypes.SessionWarning) {
	if warning.Timestamp.IsZero() {
		warning.Timestamp = c.clock()
	}
	if len(entry.s.Warnings) >= datatypes.MaxSessionWarnings {
		entry.s.Warnings = entry.s.Warnings[1:]
	}
	entry.s.Warnings = append(entry.s.Warnings, warning)
}
