// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the guardian's HTTP handlers.
//
// Handlers translate between HTTP and the domain layer only: request
// binding, auth context, status codes. Every policy decision lives in
// the controller and the notification engine. Expected refusals come
// back as 200 responses with success=false or allowed=false; error
// statuses are reserved for malformed requests and internal failures.
package handlers

import (
	"net/http"

	"github.com/AleutianAI/AleutianGuard/services/guardian/dangerous"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/AleutianAI/AleutianGuard/services/guardian/middleware"
	"github.com/gin-gonic/gin"
)

// RequestActivation handles POST /v1/dangerous/activate.
func RequestActivation(controller *dangerous.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ActivationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if info := middleware.GetAuthInfo(c); info != nil {
			req.UserID = info.UserID
			if req.UserRole == "" && len(info.Roles) > 0 {
				req.UserRole = info.Roles[0]
			}
		}

		result, err := controller.RequestActivation(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "activation failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ConfirmActivation handles POST /v1/dangerous/confirm.
func ConfirmActivation(controller *dangerous.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ConfirmationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := controller.ConfirmActivation(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "confirmation failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ValidateCommand handles POST /v1/dangerous/validate.
func ValidateCommand(controller *dangerous.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.ValidationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := controller.ValidateCommand(c.Request.Context(), req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// GetSession handles GET /v1/dangerous/sessions/:sessionId.
func GetSession(controller *dangerous.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := controller.GetSessionStatus(c.Param("sessionId"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// ListSessions handles GET /v1/dangerous/sessions.
func ListSessions(controller *dangerous.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sessions": controller.ListSessions()})
	}
}

// DisableSession handles POST /v1/dangerous/sessions/:sessionId/disable.
func DisableSession(controller *dangerous.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.DisableRequest
		// The body is optional; an empty one means user_request.
		_ = c.ShouldBindJSON(&req)

		by := ""
		if info := middleware.GetAuthInfo(c); info != nil {
			by = info.UserID
		}

		result, err := controller.Disable(c.Request.Context(), c.Param("sessionId"), req, by)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// EmergencyStop handles POST /v1/dangerous/emergency-stop.
func EmergencyStop(controller *dangerous.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		by := "admin"
		if info := middleware.GetAuthInfo(c); info != nil {
			by = info.UserID
		}
		affected := controller.EmergencyDisableAll(c.Request.Context(), by)
		c.JSON(http.StatusOK, gin.H{
			"engaged":           true,
			"affectedSessions":  affected,
			"suspendedSessions": len(affected),
		})
	}
}

// ClearEmergencyStop handles DELETE /v1/dangerous/emergency-stop.
func ClearEmergencyStop(controller *dangerous.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		by := "admin"
		if info := middleware.GetAuthInfo(c); info != nil {
			by = info.UserID
		}
		controller.ClearEmergencyStop(c.Request.Context(), by)
		c.JSON(http.StatusOK, gin.H{"engaged": false})
	}
}
