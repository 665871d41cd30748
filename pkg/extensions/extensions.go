// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extensions defines the dependency-injection seams of AleutianGuard.
//
// The guardian core never reaches out to concrete infrastructure directly.
// Every external collaborator is expressed as a small interface here:
//
//   - AuthProvider / AuthzProvider: token validation and role resolution
//   - AuditLogger: compliance audit trail for every refusal and transition
//   - CommandClassifier: risk classification of raw shell commands
//
// Open source builds run with the no-op / embedded defaults returned by
// DefaultOptions(). Enterprise builds inject real implementations (Okta,
// Splunk, custom classifiers) without modifying the core.
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
// Multiple goroutines may call methods simultaneously.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// Pass this to the guardian service constructor to override collaborators.
// All fields are optional; nil values are replaced with defaults when
// DefaultOptions() is called or when the service checks for nil.
//
// Example:
//
//	// Open source: use defaults
//	opts := extensions.DefaultOptions()
//
//	// Enterprise: inject implementations
//	opts := extensions.ServiceOptions{
//	    AuthProvider: oktaProvider,
//	    AuditLogger:  splunkAuditor,
//	    Classifier:   mlClassifier,
//	}
type ServiceOptions struct {
	// AuthProvider validates authentication tokens.
	// Default: NopAuthProvider (always returns valid local user)
	AuthProvider AuthProvider

	// AuthzProvider checks authorization permissions.
	// Default: NopAuthzProvider (always allows all actions)
	AuthzProvider AuthzProvider

	// AuditLogger records security-relevant events.
	// Default: NopAuditLogger (discards all events)
	AuditLogger AuditLogger

	// Classifier assigns a risk level to raw commands before the
	// session controller accumulates risk.
	// Default: NopCommandClassifier (everything is Safe and allowed)
	Classifier CommandClassifier
}

// DefaultOptions returns ServiceOptions with no-op defaults.
//
// This is the configuration used by the open source version: all
// operations are allowed, no audit trail, every command classified Safe.
// The guardian service replaces the Nop classifier with the embedded
// pattern classifier at construction time.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:  &NopAuthProvider{},
		AuthzProvider: &NopAuthzProvider{},
		AuditLogger:   &NopAuditLogger{},
		Classifier:    &NopCommandClassifier{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
// Useful for fluent configuration.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAuthz returns a copy of opts with the given AuthzProvider.
func (opts ServiceOptions) WithAuthz(provider AuthzProvider) ServiceOptions {
	opts.AuthzProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}

// WithClassifier returns a copy of opts with the given CommandClassifier.
func (opts ServiceOptions) WithClassifier(classifier CommandClassifier) ServiceOptions {
	opts.Classifier = classifier
	return opts
}
