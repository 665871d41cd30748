// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/services/guardian/dangerous"
	"github.com/AleutianAI/AleutianGuard/services/guardian/handlers"
	"github.com/AleutianAI/AleutianGuard/services/guardian/middleware"
	"github.com/AleutianAI/AleutianGuard/services/guardian/notify"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// SetupRoutes wires the guardian's HTTP surface onto the router.
//
// Administrative routes (emergency stop, notification config,
// recipients) require the admin role; everything else needs only a
// valid identity.
func SetupRoutes(router *gin.Engine, controller *dangerous.Controller, engine *notify.Engine,
	hub *notify.Hub, opts *extensions.ServiceOptions) {

	router.Use(otelgin.Middleware("guardian"))

	router.GET("/health", handlers.HealthCheck(controller))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(opts.AuthProvider))
	{
		dangerousGroup := v1.Group("/dangerous")
		{
			dangerousGroup.POST("/activate", handlers.RequestActivation(controller))
			dangerousGroup.POST("/confirm", handlers.ConfirmActivation(controller))
			dangerousGroup.POST("/validate", handlers.ValidateCommand(controller))
			dangerousGroup.GET("/sessions", handlers.ListSessions(controller))
			dangerousGroup.GET("/sessions/:sessionId", handlers.GetSession(controller))
			dangerousGroup.POST("/sessions/:sessionId/disable", handlers.DisableSession(controller))

			emergency := dangerousGroup.Group("/emergency-stop", middleware.RequireRole("admin"))
			{
				emergency.POST("", handlers.EmergencyStop(controller))
				emergency.DELETE("", handlers.ClearEmergencyStop(controller))
			}
		}

		notifications := v1.Group("/notifications")
		{
			notifications.GET("", handlers.ListNotifications(engine))
			notifications.POST("/:id/ack", handlers.AcknowledgeNotification(engine))
			notifications.GET("/ws", handlers.NotificationFeed(hub))

			admin := notifications.Group("", middleware.RequireRole("admin"))
			{
				admin.GET("/config", handlers.ListNotificationConfigs(engine))
				admin.GET("/config/:type", handlers.GetNotificationConfig(engine))
				admin.PUT("/config/:type", handlers.PutNotificationConfig(engine))
				admin.GET("/recipients", handlers.ListRecipients(engine))
				admin.POST("/recipients", handlers.CreateRecipient(engine))
				admin.PUT("/recipients/:id", handlers.UpdateRecipient(engine))
				admin.DELETE("/recipients/:id", handlers.DeleteRecipient(engine))
			}
		}
	}
}
