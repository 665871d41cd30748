// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/AleutianAI/AleutianGuard/services/guardian/middleware"
	"github.com/AleutianAI/AleutianGuard/services/guardian/notify"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// upgrader upgrades HTTP connections to websocket. The guardian serves
// local and same-origin UIs; origin enforcement belongs to the reverse
// proxy in front of hosted deployments.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// NotificationFeed handles GET /v1/notifications/ws.
//
// Upgrades the connection and registers it with the hub. The feed is
// scoped to the authenticated user; admin clients connect with the
// ?scope=all query to receive every message.
func NotificationFeed(hub *notify.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := ""
		if info := middleware.GetAuthInfo(c); info != nil {
			userID = info.UserID
		}
		if c.Query("scope") == "all" {
			info := middleware.GetAuthInfo(c)
			if info == nil || !info.HasRole("admin") {
				c.JSON(http.StatusForbidden, gin.H{"error": "admin role required for the unscoped feed"})
				return
			}
			userID = ""
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the error response.
			return
		}
		hub.Register(conn, userID)
	}
}
