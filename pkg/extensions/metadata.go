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

// Metadata stores arbitrary key-value claims attached to an identity.
//
// Using a defined type rather than a bare map provides clearer intent in
// signatures and room for type-safe accessors. Metadata is NOT
// thread-safe; do not share one instance across goroutines without
// external synchronization.
//
// Example:
//
//	meta := extensions.NewMetadata().
//	    Set("mfa_verified", true).
//	    Set("department", "platform")
type Metadata map[string]any

// NewMetadata creates an empty Metadata instance.
func NewMetadata() Metadata {
	return make(Metadata)
}

// Set adds or updates a key-value pair and returns the Metadata for
// chaining.
func (m Metadata) Set(key string, value any) Metadata {
	m[key] = value
	return m
}

// Get retrieves a value by key.
func (m Metadata) Get(key string) (any, bool) {
	value, ok := m[key]
	return value, ok
}

// GetString retrieves a string value by key. Returns "" and false if the
// key is absent or the value is not a string.
func (m Metadata) GetString(key string) (string, bool) {
	value, ok := m[key]
	if !ok {
		return "", false
	}
	str, ok := value.(string)
	return str, ok
}

// GetBool retrieves a bool value by key. Returns false and false if the
// key is absent or the value is not a bool.
func (m Metadata) GetBool(key string) (bool, bool) {
	value, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := value.(bool)
	return b, ok
}

// Has checks if a key exists, regardless of its value.
func (m Metadata) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Clone creates a shallow copy of the Metadata.
func (m Metadata) Clone() Metadata {
	clone := make(Metadata, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}
