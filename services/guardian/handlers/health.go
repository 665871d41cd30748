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

	"github.com/AleutianAI/AleutianGuard/services/guardian/dangerous"
	"github.com/gin-gonic/gin"
)

// HealthCheck handles GET /health.
//
// Reports liveness plus the one piece of state operators always want
// first: whether the emergency stop is engaged.
func HealthCheck(controller *dangerous.Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"service":         "guardian",
			"emergencyActive": controller.EmergencyActive(),
		})
	}
}
