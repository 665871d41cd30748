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

	"github.com/AleutianAI/AleutianGuard/pkg/ux"
	"github.com/spf13/cobra"
)

// emergencyResponse mirrors the guardian's emergency-stop payload.
type emergencyResponse struct {
	Engaged           bool     `json:"engaged"`
	AffectedSessions  []string `json:"affectedSessions"`
	SuspendedSessions int      `json:"suspendedSessions"`
}

func runEmergencyStop(cmd *cobra.Command, args []string) {
	var resp emergencyResponse
	if err := callGuardian(http.MethodPost, "/v1/dangerous/emergency-stop", nil, &resp); err != nil {
		OutputError(outputJSON, "Failed to engage the emergency stop", err)
		os.Exit(CLIExitError)
	}

	if outputJSON {
		if err := OutputJSON(resp); err != nil {
			os.Exit(CLIExitError)
		}
		return
	}
	ux.DangerBox("EMERGENCY STOP ENGAGED", []string{
		fmt.Sprintf("Suspended %d session(s).", resp.SuspendedSessions),
		"No session can activate until the stop is cleared",
		"with 'guardctl emergency clear'.",
	})
	for _, id := range resp.AffectedSessions {
		ux.Info("suspended " + id)
	}
}

func runEmergencyClear(cmd *cobra.Command, args []string) {
	var resp emergencyResponse
	if err := callGuardian(http.MethodDelete, "/v1/dangerous/emergency-stop", nil, &resp); err != nil {
		OutputError(outputJSON, "Failed to clear the emergency stop", err)
		os.Exit(CLIExitError)
	}

	if outputJSON {
		if err := OutputJSON(resp); err != nil {
			os.Exit(CLIExitError)
		}
		return
	}
	ux.Success("Emergency stop cleared. Suspended sessions are now disabled;")
	ux.Muted("users must request activation again to regain elevated privileges.")
}
