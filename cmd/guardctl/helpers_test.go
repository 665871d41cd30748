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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
)

func TestGetGuardianBaseURL_Default(t *testing.T) {
	t.Setenv("GUARDIAN_URL", "")
	t.Setenv("HOME", t.TempDir()) // sidestep any real ~/.guardctl.yaml
	if got := getGuardianBaseURL(); got != "http://localhost:12230" {
		t.Errorf("Expected default URL, got %q", got)
	}
}

func TestGetGuardianBaseURL_EnvOverride(t *testing.T) {
	t.Setenv("GUARDIAN_URL", "http://guardian.internal:9999")
	if got := getGuardianBaseURL(); got != "http://guardian.internal:9999" {
		t.Errorf("Expected env override, got %q", got)
	}
}

func TestCallGuardian_SendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}))
	defer server.Close()

	t.Setenv("GUARDIAN_URL", server.URL)
	t.Setenv("GUARDIAN_TOKEN", "secret-token")

	var out map[string]bool
	if err := callGuardian(http.MethodGet, "/health", nil, &out); err != nil {
		t.Fatalf("callGuardian failed: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Expected bearer header, got %q", gotAuth)
	}
	if !out["ok"] {
		t.Error("Expected decoded response body")
	}
}

func TestCallGuardian_NonOKStatusIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"nope"}`, http.StatusForbidden)
	}))
	defer server.Close()

	t.Setenv("GUARDIAN_URL", server.URL)
	t.Setenv("GUARDIAN_TOKEN", "")

	err := callGuardian(http.MethodPost, "/v1/dangerous/emergency-stop", nil, nil)
	if err == nil {
		t.Fatal("Expected an error for a 403 response")
	}
}

func TestFormatExpiry(t *testing.T) {
	if got := formatExpiry(&datatypes.Session{}); got != "-" {
		t.Errorf("Expected '-' for no deadline, got %q", got)
	}

	past := time.Now().Add(-time.Minute)
	if got := formatExpiry(&datatypes.Session{ExpiresAt: &past}); got != "expired" {
		t.Errorf("Expected 'expired', got %q", got)
	}
}
