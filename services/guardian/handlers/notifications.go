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
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/middleware"
	"github.com/AleutianAI/AleutianGuard/services/guardian/notify"
	"github.com/gin-gonic/gin"
)

// ListNotifications handles GET /v1/notifications.
//
// Returns the caller's notifications plus unscoped broadcasts, ordered
// by priority then recency. Query parameters: ?all=true includes
// acknowledged messages, ?limit=N caps the result, ?since=RFC3339
// drops older messages, and ?types=a,b restricts the types returned.
func ListNotifications(engine *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := ""
		if info := middleware.GetAuthInfo(c); info != nil {
			userID = info.UserID
		}

		q := notify.Query{IncludeAcknowledged: c.Query("all") == "true"}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil || limit < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			q.Limit = limit
		}
		if raw := c.Query("since"); raw != "" {
			since, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "since must be an RFC 3339 timestamp"})
				return
			}
			q.Since = since
		}
		if raw := c.Query("types"); raw != "" {
			for _, t := range strings.Split(raw, ",") {
				if t = strings.TrimSpace(t); t != "" {
					q.Types = append(q.Types, datatypes.NotificationType(t))
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"notifications": engine.ListForUser(userID, q),
		})
	}
}

// AcknowledgeNotification handles POST /v1/notifications/:id/ack.
func AcknowledgeNotification(engine *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		by := "unknown"
		if info := middleware.GetAuthInfo(c); info != nil {
			by = info.UserID
		}
		if err := engine.Acknowledge(c.Request.Context(), c.Param("id"), by); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"acknowledged": true})
	}
}

// GetNotificationConfig handles GET /v1/notifications/config/:type.
func GetNotificationConfig(engine *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := datatypes.NotificationType(c.Param("type"))
		cfg, ok := engine.Config(t)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown notification type"})
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

// ListNotificationConfigs handles GET /v1/notifications/config.
func ListNotificationConfigs(engine *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, engine.Configs())
	}
}

// PutNotificationConfig handles PUT /v1/notifications/config/:type.
func PutNotificationConfig(engine *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		t := datatypes.NotificationType(c.Param("type"))
		var cfg datatypes.NotificationConfig
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := engine.SetConfig(t, cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

// =============================================================================
// Recipients
// =============================================================================

// ListRecipients handles GET /v1/notifications/recipients.
func ListRecipients(engine *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"recipients": engine.Registry().List()})
	}
}

// CreateRecipient handles POST /v1/notifications/recipients.
func CreateRecipient(engine *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var recipient datatypes.Recipient
		if err := c.ShouldBindJSON(&recipient); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		created, err := engine.Registry().Add(recipient)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

// UpdateRecipient handles PUT /v1/notifications/recipients/:id.
func UpdateRecipient(engine *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var recipient datatypes.Recipient
		if err := c.ShouldBindJSON(&recipient); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		recipient.ID = c.Param("id")
		if err := engine.Registry().Update(recipient); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, recipient)
	}
}

// DeleteRecipient handles DELETE /v1/notifications/recipients/:id.
func DeleteRecipient(engine *notify.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := engine.Registry().Remove(c.Param("id")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}
