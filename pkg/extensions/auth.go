// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when a token fails validation or a user
// lacks permission for the requested action. Wrap it so callers can
// branch with errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo carries the identity of an authenticated caller.
//
// The session controller uses Roles to decide whether a caller may
// request dangerous-mode activation; everything else is informational.
//
// Example:
//
//	info := &AuthInfo{
//	    UserID: "user-123",
//	    Email:  "user@example.com",
//	    Roles:  []string{"developer"},
//	    Metadata: NewMetadata().
//	        Set("mfa_verified", true),
//	}
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	// This is the only required field and must never be empty.
	UserID string

	// Email is the user's email address.
	// May be empty if not provided by the auth provider.
	Email string

	// Roles contains the user's role memberships for authorization
	// decisions. Common roles: "admin", "developer", "operator", "auditor".
	Roles []string

	// Metadata holds additional claims from the identity provider.
	// Enterprise implementations can store provider-specific data here
	// without requiring changes to the core struct.
	Metadata Metadata
}

// HasRole checks if the user has a specific role.
//
// This is a convenience method for authorization checks:
//
//	if !authInfo.HasRole("admin") {
//	    return ErrUnauthorized
//	}
func (a *AuthInfo) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the user holds at least one of the given roles.
// An empty allowed set matches nothing.
func (a *AuthInfo) HasAnyRole(roles []string) bool {
	for _, role := range roles {
		if a.HasRole(role) {
			return true
		}
	}
	return false
}

// AuthProvider validates authentication tokens and returns user identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Open Source Behavior
//
// The default NopAuthProvider always returns a valid "local-user" with
// admin privileges. This lets a single-user guardian function without any
// authentication infrastructure.
//
// # Enterprise Implementation
//
// Enterprise versions implement this interface to validate tokens against
// identity providers like Okta, Auth0, or Azure AD:
//
//	func (p *OktaAuthProvider) Validate(ctx context.Context, token string) (*AuthInfo, error) {
//	    claims, err := p.client.VerifyToken(ctx, token)
//	    if err != nil {
//	        return nil, fmt.Errorf("okta validation failed: %w", ErrUnauthorized)
//	    }
//	    return &AuthInfo{UserID: claims.Subject, Roles: claims.Groups}, nil
//	}
type AuthProvider interface {
	// Validate checks if the token is valid and returns the user's identity.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - token: The authentication token (JWT, session ID, API key, etc.)
	//
	// Returns:
	//   - *AuthInfo: Identity of the caller on success
	//   - error: Wraps ErrUnauthorized if the token is invalid
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest describes a permission check.
//
// The guardian issues these for administrative operations (emergency
// stop, notification config changes) in addition to its own role gate
// on activation requests.
type AuthzRequest struct {
	// UserID is the user requesting the action.
	UserID string

	// Action is the operation being attempted.
	// Examples: "dangerous.activate", "dangerous.emergency_stop",
	// "notifications.configure"
	Action string

	// ResourceType is the category of resource involved.
	// Examples: "session", "notification_config", "recipient"
	ResourceType string

	// ResourceID is the specific resource instance.
	// If empty, the check is for the resource type in general.
	ResourceID string
}

// AuthzProvider checks whether an authenticated user may perform an action.
//
// Implementations must be safe for concurrent use.
type AuthzProvider interface {
	// Authorize returns nil if the action is permitted.
	//
	// Returns:
	//   - error: Wraps ErrUnauthorized when the action is denied
	Authorize(ctx context.Context, req AuthzRequest) error
}

// =============================================================================
// No-op Implementations (open source defaults)
// =============================================================================

// NopAuthProvider authenticates every request as a local admin user.
//
// This is the open source default: the guardian runs on a developer's
// machine where OS-level access already implies full trust.
type NopAuthProvider struct{}

// Validate always succeeds with a local admin identity.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Roles:  []string{"admin", "developer"},
	}, nil
}

// NopAuthzProvider permits every action.
type NopAuthzProvider struct{}

// Authorize always returns nil.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
)
