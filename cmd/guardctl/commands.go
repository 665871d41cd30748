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
	"github.com/AleutianAI/AleutianGuard/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	outputJSON     bool
	activateReason string
	disableReason  string
	validateArgs   []string
	notifyAll      bool

	rootCmd = &cobra.Command{
		Use:   "guardctl",
		Short: "A cli to manage the AleutianGuard elevated-privilege controller",
		Long: `guardctl is the operator tool for the guardian service: inspect and
				control dangerous-mode sessions, engage the emergency stop, and
				manage security notifications.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ux.InitPersonality()
			if outputJSON {
				// JSON output must stay clean of styled text
				ux.SetPersonalityLevel(ux.PersonalityMachine)
			}
		},
	}

	// --- Sessions ---
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Manage dangerous-mode sessions",
	}
	listSessionsCmd = &cobra.Command{
		Use:   "list",
		Short: "List all tracked sessions and their states",
		Run:   runListSessions, // Defined in cmd_session.go
	}
	sessionStatusCmd = &cobra.Command{
		Use:   "status [session_id]",
		Short: "Show the full state of one session",
		Args:  cobra.ExactArgs(1),
		Run:   runSessionStatus, // Defined in cmd_session.go
	}
	activateCmd = &cobra.Command{
		Use:   "activate [session_id]",
		Short: "Request dangerous-mode activation for a session",
		Args:  cobra.ExactArgs(1),
		Run:   runActivate, // Defined in cmd_session.go
	}
	confirmCmd = &cobra.Command{
		Use:   "confirm [session_id] [code]",
		Short: "Confirm a pending activation with its code",
		Args:  cobra.ExactArgs(2),
		Run:   runConfirm, // Defined in cmd_session.go
	}
	validateCmd = &cobra.Command{
		Use:   "validate [session_id] [command]",
		Short: "Ask the guardian whether a command may run in a session",
		Args:  cobra.MinimumNArgs(2),
		Run:   runValidate, // Defined in cmd_session.go
	}
	disableCmd = &cobra.Command{
		Use:   "disable [session_id]",
		Short: "Disable dangerous mode for a session",
		Args:  cobra.ExactArgs(1),
		Run:   runDisable, // Defined in cmd_session.go
	}

	// --- Emergency Stop ---
	emergencyCmd = &cobra.Command{
		Use:   "emergency",
		Short: "Engage or clear the service-wide emergency stop",
	}
	emergencyStopCmd = &cobra.Command{
		Use:   "stop",
		Short: "DANGER: suspend every elevated session immediately",
		Run:   runEmergencyStop, // Defined in cmd_emergency.go
	}
	emergencyClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Clear the emergency stop so sessions may activate again",
		Run:   runEmergencyClear, // Defined in cmd_emergency.go
	}

	// --- Notifications ---
	notifyCmd = &cobra.Command{
		Use:   "notify",
		Short: "Inspect and acknowledge security notifications",
	}
	listNotificationsCmd = &cobra.Command{
		Use:   "list",
		Short: "List unacknowledged notifications",
		Run:   runListNotifications, // Defined in cmd_notify.go
	}
	ackNotificationCmd = &cobra.Command{
		Use:   "ack [notification_id]",
		Short: "Acknowledge a notification and cancel its escalation",
		Args:  cobra.ExactArgs(1),
		Run:   runAckNotification, // Defined in cmd_notify.go
	}

	// --- Embedded Rules ---
	rulesCmd = &cobra.Command{
		Use:   "rules",
		Short: "Base command to interact with the embedded command risk rules",
		Long: `Use rules + subcommands to interact with the risk rules that are embedded
				in the guardian binary. You can define new versions as long as you rebuild
				the binary.`,
	}
	verifyRulesCmd = &cobra.Command{
		Use:   "verify",
		Short: "Verify the integrity of the embedded risk rules",
		Long:  `Calculates the SHA256 hash of the compiled-in rule definitions. Use this to verify that the binary is running the expected version of your command risk rules.`,
		Run:   verifyRules, // Defined in cmd_rules.go
	}
	dumpRulesCmd = &cobra.Command{
		Use:   "dump",
		Short: "Prints the whole rule file to stdout",
		Run:   dumpRules, // Defined in cmd_rules.go
	}
	testRulesCmd = &cobra.Command{
		Use:   "test [command]",
		Short: "Classify a command locally against the embedded rules",
		Args:  cobra.MinimumNArgs(1),
		Run:   testRules, // Defined in cmd_rules.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false,
		"Emit machine-readable JSON instead of text")

	// session commands
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(listSessionsCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(activateCmd)
	activateCmd.Flags().StringVar(&activateReason, "reason", "", "Why elevated privileges are needed")
	sessionCmd.AddCommand(confirmCmd)
	sessionCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringSliceVar(&validateArgs, "arg", nil, "Command argument (repeatable)")
	sessionCmd.AddCommand(disableCmd)
	disableCmd.Flags().StringVar(&disableReason, "reason", "user_request",
		"Disable reason: user_request or admin_disable")

	// emergency commands
	rootCmd.AddCommand(emergencyCmd)
	emergencyCmd.AddCommand(emergencyStopCmd)
	emergencyCmd.AddCommand(emergencyClearCmd)

	// notification commands
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(listNotificationsCmd)
	listNotificationsCmd.Flags().BoolVar(&notifyAll, "all", false, "Include acknowledged notifications")
	notifyCmd.AddCommand(ackNotificationCmd)

	// embedded rule commands
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(verifyRulesCmd)
	rulesCmd.AddCommand(dumpRulesCmd)
	rulesCmd.AddCommand(testRulesCmd)
}
