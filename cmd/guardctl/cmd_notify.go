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

// notificationListResponse mirrors the guardian's notification payload.
type notificationListResponse struct {
	Notifications []datatypes.NotificationMessage `json:"notifications"`
}

func runListNotifications(cmd *cobra.Command, args []string) {
	path := "/v1/notifications"
	if notifyAll {
		path += "?all=true"
	}

	var resp notificationListResponse
	if err := callGuardian(http.MethodGet, path, nil, &resp); err != nil {
		OutputError(outputJSON, "Failed to list notifications", err)
		os.Exit(CLIExitError)
	}

	if outputJSON {
		if err := OutputJSON(resp); err != nil {
			os.Exit(CLIExitError)
		}
		return
	}

	if len(resp.Notifications) == 0 {
		fmt.Println("No notifications.")
		return
	}
	for _, n := range resp.Notifications {
		marker := " "
		if n.Acknowledged {
			marker = "*"
		}
		fmt.Printf("%s [%s] %-24s %s\n", marker, n.Priority, n.Type, n.Title)
		fmt.Printf("    id=%s  at=%s\n", n.ID, n.Timestamp.Format(time.RFC3339))
	}
}

func runAckNotification(cmd *cobra.Command, args []string) {
	if err := callGuardian(http.MethodPost, "/v1/notifications/"+args[0]+"/ack", nil, nil); err != nil {
		OutputError(outputJSON, "Failed to acknowledge notification", err)
		os.Exit(CLIExitError)
	}

	if outputJSON {
		_ = OutputJSON(map[string]bool{"acknowledged": true})
		return
	}
	ux.Success("Acknowledged.")
}
