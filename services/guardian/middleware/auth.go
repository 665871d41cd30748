// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides HTTP middleware for the guardian service.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization header,
// validates it using the configured AuthProvider, and stores the resulting
// AuthInfo in the Gin context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	AuthMiddleware
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │
//	   ├─► provider.Validate(ctx, token)
//	   │
//	   └─► Store AuthInfo in context
//	           │
//	           ▼
//	       Handler (retrieves via GetAuthInfo)
//
// # Open Source Behavior
//
// When using NopAuthProvider (default), all requests are authenticated
// as "local-user" with admin privileges. This keeps single-user local
// deployments working without any authentication infrastructure.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/gin-gonic/gin"
)

// authInfoKey is the context key for storing AuthInfo.
// Using a typed key prevents collisions with other context values.
const authInfoKey = "guardian_auth_info"

// SetAuthInfo stores the authenticated user info in the Gin context.
//
// Called by AuthMiddleware after successful authentication. The stored
// AuthInfo can be retrieved by handlers via GetAuthInfo.
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated user info from the Gin
// context. Returns nil if the request was not authenticated.
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	value, exists := c.Get(authInfoKey)
	if !exists {
		return nil
	}
	info, ok := value.(*extensions.AuthInfo)
	if !ok {
		return nil
	}
	return info
}

// AuthMiddleware validates the bearer token on every request.
//
// # Description
//
// Extracts the token from the Authorization header and validates it via
// the provider. Requests without a header are still passed to the
// provider with an empty token: the nop provider authenticates them as
// the local user, while real providers reject them.
//
// # Outputs
//
//   - gin.HandlerFunc: Aborts with 401 on validation failure, otherwise
//     stores AuthInfo and continues the chain.
func AuthMiddleware(provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c.GetHeader("Authorization"))

		info, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, extensions.ErrUnauthorized) {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{"error": "authentication failed"})
			return
		}

		SetAuthInfo(c, info)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated user holds at
// least one of the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := GetAuthInfo(c)
		if info == nil || !info.HasAnyRole(roles) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient privileges"})
			return
		}
		c.Next()
	}
}

// extractBearerToken pulls the token out of "Bearer <token>". Returns
// an empty string for missing or malformed headers.
func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
