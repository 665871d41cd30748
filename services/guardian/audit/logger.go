// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package audit provides the guardian's working AuditLogger
// implementations.
//
// MemoryAuditLogger keeps a bounded in-memory ring of events and backs
// the query API; SlogAuditLogger wraps it and additionally mirrors every
// event to structured logs so a log shipper can pick them up. Both are
// drop-in implementations of extensions.AuditLogger.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
)

// DefaultCapacity bounds the in-memory event ring. Oldest events are
// evicted first.
const DefaultCapacity = 10000

// MemoryAuditLogger stores events in a bounded in-memory ring.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type MemoryAuditLogger struct {
	mu       sync.RWMutex
	events   []extensions.AuditEvent
	capacity int
}

// NewMemoryAuditLogger returns a memory logger with the given capacity.
// Zero or negative capacity falls back to DefaultCapacity.
func NewMemoryAuditLogger(capacity int) *MemoryAuditLogger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryAuditLogger{capacity: capacity}
}

// Log appends the event, evicting the oldest entry when full.
func (l *MemoryAuditLogger) Log(_ context.Context, event extensions.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) >= l.capacity {
		l.events = l.events[1:]
	}
	l.events = append(l.events, event)
	return nil
}

// Query returns matching events ordered newest first.
func (l *MemoryAuditLogger) Query(_ context.Context, filter extensions.AuditFilter) ([]extensions.AuditEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matches := make([]extensions.AuditEvent, 0)
	// Iterate backwards so results come out newest first without a sort.
	for i := len(l.events) - 1; i >= 0; i-- {
		if eventMatches(l.events[i], filter) {
			matches = append(matches, l.events[i])
		}
	}
	return matches, nil
}

// Flush is a no-op; events live in memory only.
func (l *MemoryAuditLogger) Flush(_ context.Context) error {
	return nil
}

// Len returns the number of stored events.
func (l *MemoryAuditLogger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

func eventMatches(event extensions.AuditEvent, filter extensions.AuditFilter) bool {
	if len(filter.Categories) > 0 {
		found := false
		for _, c := range filter.Categories {
			if event.Category == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.UserID != "" && event.UserID != filter.UserID {
		return false
	}
	if filter.SessionID != "" && event.SessionID != filter.SessionID {
		return false
	}
	if !filter.StartTime.IsZero() && event.Timestamp.Before(filter.StartTime) {
		return false
	}
	if !filter.EndTime.IsZero() && !event.Timestamp.Before(filter.EndTime) {
		return false
	}
	if filter.Outcome != "" && event.Outcome != filter.Outcome {
		return false
	}
	return true
}

// Compile-time interface compliance check.
var _ extensions.AuditLogger = (*MemoryAuditLogger)(nil)

// =============================================================================
// Slog-backed logger
// =============================================================================

// SlogAuditLogger mirrors every event to structured logs and delegates
// storage and querying to an inner MemoryAuditLogger.
type SlogAuditLogger struct {
	logger *slog.Logger
	store  *MemoryAuditLogger
}

// NewSlogAuditLogger returns a logger writing audit lines through the
// given slog.Logger. A nil logger uses slog.Default().
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{
		logger: logger.With("component", "audit"),
		store:  NewMemoryAuditLogger(DefaultCapacity),
	}
}

// Log records the event in the store and emits a structured log line.
func (l *SlogAuditLogger) Log(ctx context.Context, event extensions.AuditEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := l.store.Log(ctx, event); err != nil {
		return err
	}

	attrs := []any{
		"category", event.Category,
		"action", event.Action,
		"outcome", event.Outcome,
		"severity", event.Severity,
		"userId", event.UserID,
	}
	if event.SessionID != "" {
		attrs = append(attrs, "sessionId", event.SessionID)
	}
	if event.ResourceType != "" {
		attrs = append(attrs, "resourceType", event.ResourceType, "resourceId", event.ResourceID)
	}
	if len(event.Details) > 0 {
		attrs = append(attrs, "details", event.Details)
	}

	switch event.Severity {
	case "critical", "error":
		l.logger.ErrorContext(ctx, "audit event", attrs...)
	case "warning":
		l.logger.WarnContext(ctx, "audit event", attrs...)
	default:
		l.logger.InfoContext(ctx, "audit event", attrs...)
	}
	return nil
}

// Query delegates to the in-memory store.
func (l *SlogAuditLogger) Query(ctx context.Context, filter extensions.AuditFilter) ([]extensions.AuditEvent, error) {
	return l.store.Query(ctx, filter)
}

// Flush delegates to the in-memory store.
func (l *SlogAuditLogger) Flush(ctx context.Context) error {
	return l.store.Flush(ctx)
}

// Compile-time interface compliance check.
var _ extensions.AuditLogger = (*SlogAuditLogger)(nil)
