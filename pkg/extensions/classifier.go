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

import "context"

// RiskLevel is the risk tier assigned to a command by a classifier.
//
// Levels are ordered: Safe < Moderate < Dangerous < Critical. The session
// controller maps each level to a numeric score increment and accumulates
// it against the session's risk budget.
type RiskLevel string

const (
	// RiskSafe covers read-only or trivially reversible commands
	// (ls, cat, git status).
	RiskSafe RiskLevel = "safe"

	// RiskModerate covers commands that change state in recoverable
	// ways (package installs, file moves inside the workspace).
	RiskModerate RiskLevel = "moderate"

	// RiskDangerous covers destructive or hard-to-reverse commands
	// (recursive deletes, permission changes, service restarts).
	RiskDangerous RiskLevel = "dangerous"

	// RiskCritical covers commands that can destroy data or compromise
	// the host (disk formatting, firewall flushes, curl-pipe-to-shell).
	RiskCritical RiskLevel = "critical"
)

// Ordinal returns the level's position for ordering comparisons.
// Unknown levels sort above Critical so fail-closed logic treats them
// as maximally risky.
func (r RiskLevel) Ordinal() int {
	switch r {
	case RiskSafe:
		return 0
	case RiskModerate:
		return 1
	case RiskDangerous:
		return 2
	case RiskCritical:
		return 3
	default:
		return 4
	}
}

// CommandContext carries everything a classifier may consider when
// assigning a risk level to a command.
type CommandContext struct {
	// Command is the executable or builtin being invoked.
	Command string

	// Args are the raw arguments, unjoined and unescaped.
	Args []string

	// SessionID is the dangerous-mode session requesting execution.
	SessionID string

	// UserID is the user on whose behalf the agent is acting.
	UserID string

	// DangerousModeEnabled reports whether the session is currently
	// in the elevated state. Classifiers may relax or tighten rules
	// based on it.
	DangerousModeEnabled bool

	// UserRole is the caller's primary role, for role-scoped rules.
	UserRole string
}

// ClassificationResult is the classifier's verdict on a single command.
//
// Allowed=false is an immediate refusal: the session controller blocks
// the command before any risk accumulation runs.
type ClassificationResult struct {
	// Allowed reports whether the command may run at all.
	Allowed bool

	// Errors lists the rule violations when Allowed is false.
	Errors []string

	// Warnings lists advisory findings that do not block execution.
	Warnings []string

	// Risk is the assigned risk level. Meaningful only when Allowed.
	Risk RiskLevel
}

// CommandClassifier assigns a risk level to a raw command.
//
// Implementations must be safe for concurrent use and must not block on
// I/O for longer than the request deadline allows.
//
// # Open Source Behavior
//
// The guardian's embedded pattern classifier (services/guardian/classify)
// is the working default. NopCommandClassifier exists for tests and for
// deployments that delegate all risk decisions to an external system.
type CommandClassifier interface {
	// ClassifyCommand returns the verdict for one command invocation.
	//
	// Returns:
	//   - *ClassificationResult: Never nil on success
	//   - error: Non-nil only for internal classifier failures; the
	//     session controller fails closed (refuses the command) on error
	ClassifyCommand(ctx context.Context, cmd CommandContext) (*ClassificationResult, error)
}

// NopCommandClassifier allows every command at Safe risk.
//
// Useful in tests and in deployments where classification happens
// upstream of the guardian.
type NopCommandClassifier struct{}

// ClassifyCommand always allows the command at RiskSafe.
func (c *NopCommandClassifier) ClassifyCommand(_ context.Context, _ CommandContext) (*ClassificationResult, error) {
	return &ClassificationResult{
		Allowed: true,
		Risk:    RiskSafe,
	}, nil
}

// Compile-time interface compliance check.
var _ CommandClassifier = (*NopCommandClassifier)(nil)
