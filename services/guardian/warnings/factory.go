// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package warnings builds the structured warning and confirmation
// payloads shown to users before and during dangerous-mode sessions.
//
// All builders are stateless and pure: the same context always produces
// the same payload. The API layer renders activation/command
// confirmation dialogs from these payloads; the session controller uses
// them to synthesize in-session warnings.
package warnings

import (
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
)

// Confirmation phrases, scaled by severity. The stronger phrase forces
// the user to type out the consequence, not just a token.
const (
	PhraseStandard = "ENABLE DANGEROUS MODE"
	PhraseCommand  = "RUN DANGEROUS COMMAND"
	PhraseCritical = "I ACCEPT THE RISK OF DATA LOSS"
)

// Countdown seconds per risk tier for command confirmation dialogs.
const (
	CountdownDangerous = 5
	CountdownCritical  = 15
)

// Payload is an immutable warning or confirmation dialog description.
//
// Style is UI metadata only; nothing in the guardian core branches on it.
type Payload struct {
	Title    string              `json:"title"`
	Message  string              `json:"message"`
	Severity datatypes.Severity  `json:"severity"`

	// Risks lists what can go wrong if the user proceeds.
	Risks []string `json:"risks,omitempty"`

	// SaferAlternatives suggests less destructive ways to reach the
	// same goal.
	SaferAlternatives []string `json:"saferAlternatives,omitempty"`

	// ConfirmationPhrase, when non-empty, must be typed verbatim by the
	// user before the dialog's confirm button activates.
	ConfirmationPhrase string `json:"confirmationPhrase,omitempty"`

	// CountdownSeconds delays the confirm button to prevent reflexive
	// click-through.
	CountdownSeconds int `json:"countdownSeconds,omitempty"`

	// Dismissible dialogs can be closed without action. Data-destruction
	// warnings are never dismissible.
	Dismissible bool `json:"dismissible"`

	Style Style `json:"style"`
}

// Style is the severity-derived presentation hint attached to each
// payload.
type Style struct {
	Color         string `json:"color"`
	Icon          string `json:"icon"`
	RequiresModal bool   `json:"requiresModal"`
}

// StyleFor returns the presentation hint for a severity level.
func StyleFor(severity datatypes.Severity) Style {
	switch severity {
	case datatypes.SeverityInfo:
		return Style{Color: "#2563eb", Icon: "info"}
	case datatypes.SeverityWarning:
		return Style{Color: "#d97706", Icon: "alert-triangle"}
	case datatypes.SeverityError:
		return Style{Color: "#dc2626", Icon: "alert-octagon", RequiresModal: true}
	case datatypes.SeverityCritical:
		return Style{Color: "#7f1d1d", Icon: "shield-off", RequiresModal: true}
	default:
		return Style{Color: "#6b7280", Icon: "help-circle"}
	}
}

// =============================================================================
// Factory
// =============================================================================

// Factory builds warning payloads. It carries no state; the struct
// exists so callers can inject it as a dependency and tests can swap it.
type Factory struct{}

// NewFactory returns a warning factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ActivationContext describes a pending dangerous-mode activation for
// the confirmation dialog.
type ActivationContext struct {
	SessionID   string
	UserID      string
	Reason      string
	MaxDuration time.Duration
}

// ActivationConfirmation builds the dialog shown before a session is
// granted elevated privileges.
func (f *Factory) ActivationConfirmation(ctx ActivationContext) Payload {
	minutes := int(ctx.MaxDuration.Minutes())
	return Payload{
		Title: "Enable Dangerous Mode?",
		Message: fmt.Sprintf(
			"Dangerous mode lets the agent run destructive commands for up to %d minutes. "+
				"All commands are risk-scored and the session shuts down automatically if the budget is exhausted.",
			minutes),
		Severity: datatypes.SeverityWarning,
		Risks: []string{
			"Files may be permanently deleted",
			"System configuration and permissions may change",
			"Network rules and services may be modified",
		},
		SaferAlternatives: []string{
			"Run the specific command yourself in a terminal",
			"Ask the agent to print the commands instead of executing them",
			"Use a disposable sandbox or container for the task",
		},
		ConfirmationPhrase: PhraseStandard,
		CountdownSeconds:   CountdownDangerous,
		Dismissible:        true,
		Style:              StyleFor(datatypes.SeverityWarning),
	}
}

// CommandContext describes one classified command for the per-command
// confirmation dialog.
type CommandContext struct {
	Command string
	Args    []string
	Risk    extensions.RiskLevel
}

// CommandConfirmation builds the dialog for an individual dangerous
// command. Critical commands get a longer countdown and the strong
// confirmation phrase.
func (f *Factory) CommandConfirmation(ctx CommandContext) Payload {
	p := Payload{
		Title: "Confirm Dangerous Command",
		Message: fmt.Sprintf("The agent wants to run: %s — classified %s risk.",
			commandLine(ctx.Command, ctx.Args), ctx.Risk),
		Severity:           datatypes.SeverityWarning,
		ConfirmationPhrase: PhraseCommand,
		CountdownSeconds:   CountdownDangerous,
		Dismissible:        true,
	}
	if ctx.Risk == extensions.RiskCritical {
		p.Title = "Confirm Critical Command"
		p.Severity = datatypes.SeverityCritical
		p.ConfirmationPhrase = PhraseCritical
		p.CountdownSeconds = CountdownCritical
	}
	p.Style = StyleFor(p.Severity)
	return p
}

// TimeoutWarning builds the in-session warning emitted when an enabled
// session approaches its automatic expiry.
func (f *Factory) TimeoutWarning(remaining time.Duration) Payload {
	minutes := int(remaining.Round(time.Minute).Minutes())
	return Payload{
		Title: "Dangerous Mode Expiring",
		Message: fmt.Sprintf("Elevated privileges expire in about %d minutes. "+
			"Finish or re-request activation afterwards.", minutes),
		Severity:    datatypes.SeverityInfo,
		Dismissible: true,
		Style:       StyleFor(datatypes.SeverityInfo),
	}
}

// HighRiskOperation builds the warning recorded when a single command
// consumes a large slice of the session's risk budget.
func (f *Factory) HighRiskOperation(command string, increase, total, max int) Payload {
	return Payload{
		Title: "High-Risk Operation",
		Message: fmt.Sprintf("%q added %d risk points (session now %d of %d).",
			command, increase, total, max),
		Severity:    datatypes.SeverityWarning,
		Dismissible: true,
		Style:       StyleFor(datatypes.SeverityWarning),
	}
}

// SystemModification builds the warning for commands that alter system
// configuration (permissions, services, kernel parameters).
func (f *Factory) SystemModification(command string) Payload {
	return Payload{
		Title:   "System Modification",
		Message: fmt.Sprintf("%q modifies system configuration. Changes may affect other processes and users.", command),
		Severity: datatypes.SeverityWarning,
		Risks: []string{
			"Other services on this machine may break",
			"Changes may persist across reboots",
		},
		Dismissible: true,
		Style:       StyleFor(datatypes.SeverityWarning),
	}
}

// DataDestruction builds the warning for irreversibly destructive
// commands. It is never dismissible.
func (f *Factory) DataDestruction(command string, targets []string) Payload {
	return Payload{
		Title:   "Irreversible Data Destruction",
		Message: fmt.Sprintf("%q will permanently destroy data. There is no undo.", command),
		Severity: datatypes.SeverityCritical,
		Risks: append([]string{"Destroyed data cannot be recovered"},
			targetRisks(targets)...),
		SaferAlternatives: []string{
			"Move the files to a trash directory instead",
			"Take a backup or snapshot first",
		},
		ConfirmationPhrase: PhraseCritical,
		CountdownSeconds:   CountdownCritical,
		Dismissible:        false,
		Style:              StyleFor(datatypes.SeverityCritical),
	}
}

// SuspiciousPattern builds the warning recorded when command sequences
// match a known-bad pattern (rapid privilege probing, mass deletion).
func (f *Factory) SuspiciousPattern(description string) Payload {
	return Payload{
		Title:       "Suspicious Activity Pattern",
		Message:     description,
		Severity:    datatypes.SeverityError,
		Dismissible: false,
		Style:       StyleFor(datatypes.SeverityError),
	}
}

// commandLine joins a command and its args for display.
func commandLine(command string, args []string) string {
	line := command
	for _, a := range args {
		line += " " + a
	}
	return line
}

// targetRisks renders destruction targets as risk lines.
func targetRisks(targets []string) []string {
	risks := make([]string, 0, len(targets))
	for _, t := range targets {
		risks = append(risks, fmt.Sprintf("Affects: %s", t))
	}
	return risks
}
