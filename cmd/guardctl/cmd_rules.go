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
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"strings"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/pkg/ux"
	"github.com/AleutianAI/AleutianGuard/services/guardian/classify"
	"github.com/AleutianAI/AleutianGuard/services/guardian/classify/enforcement"
	"github.com/spf13/cobra"
)

// RulesVerifyResult is the JSON output of "guardctl rules verify".
type RulesVerifyResult struct {
	Valid    bool   `json:"valid"`
	Hash     string `json:"hash"`
	ByteSize int    `json:"byte_size"`
	Version  string `json:"version"`
}

// RulesTestResult is the JSON output of "guardctl rules test".
type RulesTestResult struct {
	Command  string   `json:"command"`
	Allowed  bool     `json:"allowed"`
	Risk     string   `json:"risk"`
	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// verifyRules is the CLI handler for the "guardctl rules verify" command.
//
// It retrieves the raw bytes of the embedded rule file from the
// enforcement package and calculates a SHA256 checksum, letting
// operators verify that the binary they are running contains the
// expected version of the command risk rules.
//
// # Exit Codes
//
//   - 0: Rules verified successfully
//   - 2: Error (should not happen for embedded rules)
func verifyRules(cmd *cobra.Command, args []string) {
	data := enforcement.CommandRiskRules
	hash := sha256.Sum256(data)
	hashStr := fmt.Sprintf("sha256:%x", hash)

	if outputJSON {
		result := RulesVerifyResult{
			Valid:    true,
			Hash:     hashStr,
			ByteSize: len(data),
			Version:  "1.0",
		}
		if err := OutputJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
		os.Exit(CLIExitSuccess)
	}

	fmt.Println("--- Embedded Rule Verification ---")
	fmt.Printf("Rule byte size: %d bytes\n", len(data))
	fmt.Printf("SHA256 Fingerprint: %x\n", hash)
	fmt.Println("----------------------------------")
}

// dumpRules outputs the embedded rule file.
func dumpRules(cmd *cobra.Command, args []string) {
	fmt.Println(string(enforcement.CommandRiskRules))
}

// testRules classifies a command locally against the embedded rules.
//
// The classification runs as if dangerous mode were enabled, so the
// verdict reflects the rules alone rather than session state.
//
// # Exit Codes
//
//   - 0: Command allowed
//   - 1: Command refused by the rules
//   - 2: Error
func testRules(cmd *cobra.Command, args []string) {
	classifier, err := classify.NewRuleClassifier()
	if err != nil {
		OutputError(outputJSON, "Failed to compile the embedded rules", err)
		os.Exit(CLIExitError)
	}

	result, err := classifier.ClassifyCommand(context.Background(), extensions.CommandContext{
		Command:              args[0],
		Args:                 args[1:],
		DangerousModeEnabled: true,
	})
	if err != nil {
		OutputError(outputJSON, "Classification failed", err)
		os.Exit(CLIExitError)
	}

	commandLine := strings.Join(args, " ")
	if outputJSON {
		out := RulesTestResult{
			Command:  commandLine,
			Allowed:  result.Allowed,
			Risk:     string(result.Risk),
			Warnings: result.Warnings,
			Errors:   result.Errors,
		}
		if err := OutputJSON(out); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			os.Exit(CLIExitError)
		}
	} else {
		ux.Verdict(result.Allowed, fmt.Sprintf("risk=%s  command=%q", result.Risk, commandLine))
		for _, warning := range result.Warnings {
			ux.Warning(warning)
		}
		for _, e := range result.Errors {
			ux.Refused(e)
		}
	}

	if !result.Allowed {
		os.Exit(CLIExitFindings)
	}
	os.Exit(CLIExitSuccess)
}
