// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guardian

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/services/guardian/classify"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	// Set Gin to test mode to reduce noise in test output
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Config Tests
// =============================================================================

// TestApplyConfigDefaults_AllDefaults verifies default values are applied.
func TestApplyConfigDefaults_AllDefaults(t *testing.T) {
	// Arrange
	cfg := Config{}

	// Act
	result := applyConfigDefaults(cfg)

	// Assert
	assert.Equal(t, 12230, result.Port, "default port should be 12230")
	assert.Equal(t, "aleutian-otel-collector:4317", result.OTelEndpoint,
		"default OTel endpoint should be aleutian-otel-collector:4317")
	assert.True(t, result.EnableMetrics, "metrics should be enabled by default")
	assert.Equal(t, float64(1), result.WebhookRatePerSecond,
		"default webhook rate should be 1/s")
}

// TestApplyConfigDefaults_PreservesCustomValues verifies custom values are
// not overwritten.
func TestApplyConfigDefaults_PreservesCustomValues(t *testing.T) {
	// Arrange
	cfg := Config{
		Port:                 8080,
		OTelEndpoint:         "custom-collector:4317",
		WebhookURL:           "https://hooks.example.com/guardian",
		WebhookRatePerSecond: 2.5,
	}

	// Act
	result := applyConfigDefaults(cfg)

	// Assert
	assert.Equal(t, 8080, result.Port, "custom port should be preserved")
	assert.Equal(t, "custom-collector:4317", result.OTelEndpoint,
		"custom OTel endpoint should be preserved")
	assert.Equal(t, "https://hooks.example.com/guardian", result.WebhookURL,
		"custom webhook URL should be preserved")
	assert.Equal(t, 2.5, result.WebhookRatePerSecond,
		"custom webhook rate should be preserved")
}

// =============================================================================
// ServiceOptions Tests
// =============================================================================

// TestServiceOptions_WithNilUseDefaults verifies nil opts uses defaults.
func TestServiceOptions_WithNilUseDefaults(t *testing.T) {
	// Arrange
	var opts *extensions.ServiceOptions = nil

	// Act - simulate what New() does
	var actualOpts extensions.ServiceOptions
	if opts != nil {
		actualOpts = *opts
	} else {
		actualOpts = extensions.DefaultOptions()
	}

	// Assert
	assert.NotNil(t, actualOpts.AuthProvider, "default AuthProvider should be set")
	assert.NotNil(t, actualOpts.AuthzProvider, "default AuthzProvider should be set")
	assert.NotNil(t, actualOpts.AuditLogger, "default AuditLogger should be set")
	assert.NotNil(t, actualOpts.Classifier, "default Classifier should be set")

	// Verify they are the Nop implementations
	_, isNopAuth := actualOpts.AuthProvider.(*extensions.NopAuthProvider)
	assert.True(t, isNopAuth, "AuthProvider should be NopAuthProvider")

	_, isNopClassifier := actualOpts.Classifier.(*extensions.NopCommandClassifier)
	assert.True(t, isNopClassifier, "Classifier should be NopCommandClassifier")
}

// TestNew_ReplacesNopClassifier verifies the embedded pattern classifier
// is substituted for the nop default at construction time.
func TestNew_ReplacesNopClassifier(t *testing.T) {
	svc, err := New(Config{DisableTracing: true, GinMode: gin.TestMode}, nil)
	require.NoError(t, err)
	defer svc.Shutdown(context.Background())

	impl, ok := svc.(*service)
	require.True(t, ok)

	_, isRule := impl.opts.Classifier.(*classify.RuleClassifier)
	assert.True(t, isRule, "nop classifier should be replaced with the rule classifier")
}

// TestNew_HonorsInjectedClassifier verifies an injected classifier is
// kept as-is.
func TestNew_HonorsInjectedClassifier(t *testing.T) {
	custom := &mockClassifier{}
	opts := extensions.DefaultOptions().WithClassifier(custom)

	svc, err := New(Config{DisableTracing: true, GinMode: gin.TestMode}, &opts)
	require.NoError(t, err)
	defer svc.Shutdown(context.Background())

	impl, ok := svc.(*service)
	require.True(t, ok)
	assert.Same(t, custom, impl.opts.Classifier, "injected classifier should be used")
}

// =============================================================================
// Constructor / Router Tests
// =============================================================================

// TestNew_ServesHealth builds a full service and exercises the health
// endpoint through the returned router.
func TestNew_ServesHealth(t *testing.T) {
	svc, err := New(Config{DisableTracing: true, GinMode: gin.TestMode}, nil)
	require.NoError(t, err)
	defer svc.Shutdown(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "guardian")
}

// TestNotificationList_QueryParams verifies the listing endpoint binds
// the type and limit filters from the query string.
func TestNotificationList_QueryParams(t *testing.T) {
	svc, err := New(Config{DisableTracing: true, GinMode: gin.TestMode}, nil)
	require.NoError(t, err)
	defer svc.Shutdown(context.Background())

	impl, ok := svc.(*service)
	require.True(t, ok)

	_, err = impl.engine.Emit(context.Background(), datatypes.TypeTimeoutWarning,
		datatypes.EventContext{Title: "session expiring"})
	require.NoError(t, err)
	_, err = impl.engine.Emit(context.Background(), datatypes.TypeCommandBlocked,
		datatypes.EventContext{Title: "rm blocked"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet,
		"/v1/notifications?all=true&types=command_blocked&limit=5", nil)
	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "command_blocked")
	assert.NotContains(t, w.Body.String(), "timeout_warning")

	// A malformed limit is a client error, not a silent default.
	req = httptest.NewRequest(http.MethodGet, "/v1/notifications?limit=abc", nil)
	w = httptest.NewRecorder()
	svc.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestNew_ShutdownIsIdempotent verifies Shutdown can be called twice,
// as happens when Run()'s deferred cleanup follows a signal handler.
func TestNew_ShutdownIsIdempotent(t *testing.T) {
	svc, err := New(Config{DisableTracing: true, GinMode: gin.TestMode}, nil)
	require.NoError(t, err)

	svc.Shutdown(context.Background())
	svc.Shutdown(context.Background())
}

// =============================================================================
// Mock Implementations for Testing
// =============================================================================

// mockClassifier is a test double for CommandClassifier.
type mockClassifier struct {
	extensions.NopCommandClassifier
}
