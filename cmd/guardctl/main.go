// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command guardctl is the operator CLI for the AleutianGuard guardian
// service.
//
// It talks to the guardian HTTP API for session management, emergency
// control, and notifications, and can inspect the embedded command risk
// rules without a running server.
//
// # Environment Variables
//
//   - GUARDIAN_URL: base URL of the guardian service (default: http://localhost:12230)
//   - GUARDIAN_TOKEN: bearer token for authenticated deployments (optional)
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
