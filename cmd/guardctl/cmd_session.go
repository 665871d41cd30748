// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/AleutianAI/AleutianGuard/pkg/ux"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/spf13/cobra"
)

// sessionListResponse mirrors the guardian's session list payload.
type sessionListResponse struct {
	Sessions []datatypes.Session `json:"sessions"`
}

func runListSessions(cmd *cobra.Command, args []string) {
	var resp sessionListResponse
	if err := callGuardian(http.MethodGet, "/v1/dangerous/sessions", nil, &resp); err != nil {
		OutputError(outputJSON, "Failed to list sessions", err)
		os.Exit(CLIExitError)
	}

	if outputJSON {
		if err := OutputJSON(resp); err != nil {
			os.Exit(CLIExitError)
		}
		return
	}

	if len(resp.Sessions) == 0 {
		fmt.Println("No tracked sessions.")
		return
	}
	fmt.Printf("%-38s %-22s %-6s %s\n", "SESSION", "STATE", "RISK", "EXPIRES")
	for _, s := range resp.Sessions {
		fmt.Printf("%-38s %-22s %-6d %s\n", s.SessionID, s.State, s.RiskScore, formatExpiry(&s))
	}
}

func runSessionStatus(cmd *cobra.Command, args []string) {
	var session datatypes.Session
	if err := callGuardian(http.MethodGet, "/v1/dangerous/sessions/"+args[0], nil, &session); err != nil {
		OutputError(outputJSON, "Failed to fetch session", err)
		os.Exit(CLIExitError)
	}

	if outputJSON {
		if err := OutputJSON(session); err != nil {
			os.Exit(CLIExitError)
		}
		return
	}

	fmt.Printf("Session:      %s\n", session.SessionID)
	fmt.Printf("State:        %s\n", session.State)
	fmt.Printf("Risk score:   %d\n", session.RiskScore)
	fmt.Printf("Commands run: %d\n", session.CommandsExecuted)
	fmt.Printf("Expires:      %s\n", formatExpiry(&session))
	if len(session.Warnings) > 0 {
		fmt.Println("Warnings:")
		for _, w := range session.Warnings {
			fmt.Printf("  [%s] %s\n", w.Type, w.Message)
		}
	}
}

func runActivate(cmd *cobra.Command, args []string) {
	req := datatypes.ActivationRequest{
		SessionID: args[0],
		Reason:    activateReason,
	}

	var result datatypes.ActivationResult
	if err := callGuardian(http.MethodPost, "/v1/dangerous/activate", req, &result); err != nil {
		OutputError(outputJSON, "Activation request failed", err)
		os.Exit(CLIExitError)
	}

	if outputJSON {
		if err := OutputJSON(result); err != nil {
			os.Exit(CLIExitError)
		}
	} else {
		fmt.Println(result.Message)
		for _, warning := range result.Warnings {
			ux.Warning(warning)
		}
		if result.ConfirmationCode != "" {
			fmt.Printf("\nConfirmation code: %s\n", ux.Styles.Bold.Render(result.ConfirmationCode))
			ux.Muted(fmt.Sprintf("Run: guardctl session confirm %s %s", args[0], result.ConfirmationCode))
		}
	}

	if !result.Success {
		os.Exit(CLIExitFindings)
	}
}

func runConfirm(cmd *cobra.Command, args []string) {
	req := datatypes.ConfirmationRequest{
		SessionID:        args[0],
		ConfirmationCode: args[1],
	}

	var result datatypes.ActivationResult
	if err := callGuardian(http.MethodPost, "/v1/dangerous/confirm", req, &result); err != nil {
		OutputError(outputJSON, "Confirmation failed", err)
		os.Exit(CLIExitError)
	}

	if outputJSON {
		if err := OutputJSON(result); err != nil {
			os.Exit(CLIExitError)
		}
	} else if result.Success {
		ux.Success(result.Message)
		if result.ExpiresAt != nil {
			ux.Info(fmt.Sprintf("Dangerous mode expires at %s", result.ExpiresAt.Format(time.RFC3339)))
		}
	} else {
		ux.Refused(result.Message)
	}

	if !result.Success {
		os.Exit(CLIExitFindings)
	}
}

func runValidate(cmd *cobra.Command, args []string) {
	req := datatypes.ValidationRequest{
		SessionID: args[0],
		Command:   args[1],
		Args:      append(validateArgs, args[2:]...),
	}

	var result datatypes.ValidationResult
	if err := callGuardian(http.MethodPost, "/v1/dangerous/validate", req, &result); err != nil {
		OutputError(outputJSON, "Validation failed", err)
		os.Exit(CLIExitError)
	}

	if outputJSON {
		if err := OutputJSON(result); err != nil {
			os.Exit(CLIExitError)
		}
	} else {
		ux.Verdict(result.Allowed, fmt.Sprintf("risk_increase=%d", result.RiskIncrease))
		for _, warning := range result.Warnings {
			ux.Warning(warning)
		}
		if result.Message != "" {
			ux.Info(result.Message)
		}
	}

	if !result.Allowed {
		os.Exit(CLIExitFindings)
	}
}

func runDisable(cmd *cobra.Command, args []string) {
	req := datatypes.DisableRequest{
		Reason: datatypes.DisableReason(disableReason),
	}

	var result datatypes.DisableResult
	err := callGuardian(http.MethodPost, "/v1/dangerous/sessions/"+args[0]+"/disable", req, &result)
	if err != nil {
		OutputError(outputJSON, "Disable failed", err)
		os.Exit(CLIExitError)
	}

	if outputJSON {
		if err := OutputJSON(result); err != nil {
			os.Exit(CLIExitError)
		}
	} else {
		fmt.Println(result.Message)
	}

	if !result.Success {
		os.Exit(CLIExitFindings)
	}
}

// formatExpiry renders the session deadline for the table views.
func formatExpiry(s *datatypes.Session) string {
	if s.ExpiresAt == nil {
		return "-"
	}
	remaining := time.Until(*s.ExpiresAt).Round(time.Second)
	if remaining <= 0 {
		return "expired"
	}
	return fmt.Sprintf("%s (%s)", s.ExpiresAt.Format(time.RFC3339), remaining)
}
