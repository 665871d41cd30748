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
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// cliConfig holds the persistent guardctl settings read from
// ~/.guardctl.yaml. Environment variables always win over the file.
type cliConfig struct {
	// URL is the guardian base endpoint, e.g. "http://guardian.internal:12230"
	URL string `yaml:"url"`

	// Token is the bearer token sent with every request
	Token string `yaml:"token"`
}

var (
	loadedConfig     cliConfig
	loadedConfigOnce sync.Once
)

// loadCLIConfig reads ~/.guardctl.yaml once. A missing or malformed
// file is not an error; guardctl falls back to env vars and defaults.
func loadCLIConfig() cliConfig {
	loadedConfigOnce.Do(func() {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		data, err := os.ReadFile(filepath.Join(home, ".guardctl.yaml"))
		if err != nil {
			return
		}
		_ = yaml.Unmarshal(data, &loadedConfig)
	})
	return loadedConfig
}
