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
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// CLI exit codes. Findings (a refused command, an engaged stop) are
// distinct from hard errors so scripts can branch on them.
const (
	CLIExitSuccess  = 0
	CLIExitFindings = 1
	CLIExitError    = 2
)

// getGuardianBaseURL resolves the guardian endpoint. Precedence:
// GUARDIAN_URL, then ~/.guardctl.yaml, then the local default.
func getGuardianBaseURL() string {
	if url := os.Getenv("GUARDIAN_URL"); url != "" {
		return url
	}
	if cfg := loadCLIConfig(); cfg.URL != "" {
		return cfg.URL
	}
	return "http://localhost:12230"
}

// getGuardianToken resolves the bearer token with the same precedence
// as the URL. Empty means unauthenticated.
func getGuardianToken() string {
	if token := os.Getenv("GUARDIAN_TOKEN"); token != "" {
		return token
	}
	return loadCLIConfig().Token
}

// newRequest builds a request with the optional bearer token applied.
func newRequest(method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, getGuardianBaseURL()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := getGuardianToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// callGuardian performs the request and decodes the JSON response into
// out (which may be nil to discard the body). Non-2xx statuses become
// errors carrying the response body.
func callGuardian(method, path string, body, out any) error {
	req, err := newRequest(method, path, body)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach the guardian at %s: %w", getGuardianBaseURL(), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("guardian returned %d: %s", resp.StatusCode, string(payload))
	}
	if out != nil {
		return json.Unmarshal(payload, out)
	}
	return nil
}

// OutputJSON writes v to stdout as indented JSON.
func OutputJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// OutputError prints an error in the selected output format.
func OutputError(asJSON bool, message string, err error) {
	if asJSON {
		_ = OutputJSON(map[string]string{"error": message, "detail": err.Error()})
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", message, err)
}
