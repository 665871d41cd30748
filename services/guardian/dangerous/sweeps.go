// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dangerous

import (
	"context"
	"fmt"
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
)

// Start launches the controller's periodic sweeps:
//
//   - The expiry sweep (every ExpirySweepInterval) catches sessions the
//     per-session timers missed and garbage-collects disabled sessions
//     idle past IdleGCThreshold.
//   - The warning sweep (every WarningSweepInterval) fires the one-shot
//     timeout warning once a session's remaining time drops inside
//     WarningLeadTime.
//
// Call Stop to end both loops.
func (c *Controller) Start(ctx context.Context) {
	go c.runLoop(ctx, c.cfg.ExpirySweepInterval, c.RunExpirySweep)
	go c.runLoop(ctx, c.cfg.WarningSweepInterval, c.RunWarningSweep)
	c.logger.InfoContext(ctx, "controller sweeps started",
		"expiryInterval", c.cfg.ExpirySweepInterval,
		"warningInterval", c.cfg.WarningSweepInterval)
}

// Stop ends the sweep loops. Outstanding per-session timers are left to
// their generation guards.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}

func (c *Controller) runLoop(ctx context.Context, interval time.Duration, sweep func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sweep(ctx)
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunExpirySweep normalizes every session and deletes disabled sessions
// idle past the GC threshold. Exposed for tests and admin tooling.
func (c *Controller) RunExpirySweep(ctx context.Context) {
	now := c.clock()

	c.mu.RLock()
	entries := make([]*sessionEntry, 0, len(c.sessions))
	ids := make([]string, 0, len(c.sessions))
	for id, entry := range c.sessions {
		entries = append(entries, entry)
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	stale := make([]string, 0)
	for i, entry := range entries {
		entry.mu.Lock()
		c.normalizeLocked(entry, now)
		if entry.s.State == datatypes.StateDisabled &&
			now.Sub(entry.s.LastTransition) > c.cfg.IdleGCThreshold {
			stale = append(stale, ids[i])
		}
		entry.mu.Unlock()
	}

	if len(stale) == 0 {
		return
	}
	c.mu.Lock()
	for _, id := range stale {
		// Re-check under the write lock; the session may have been
		// reactivated since the scan.
		if entry, ok := c.sessions[id]; ok {
			entry.mu.Lock()
			idle := entry.s.State == datatypes.StateDisabled &&
				now.Sub(entry.s.LastTransition) > c.cfg.IdleGCThreshold
			entry.mu.Unlock()
			if idle {
				delete(c.sessions, id)
			}
		}
	}
	c.mu.Unlock()
	c.logger.InfoContext(ctx, "garbage-collected idle sessions", "count", len(stale))
}

// RunWarningSweep fires the one-shot timeout warning for enabled
// sessions approaching expiry. Exposed for tests.
func (c *Controller) RunWarningSweep(ctx context.Context) {
	now := c.clock()

	c.mu.RLock()
	entries := make([]*sessionEntry, 0, len(c.sessions))
	for _, entry := range c.sessions {
		entries = append(entries, entry)
	}
	c.mu.RUnlock()

	for _, entry := range entries {
		entry.mu.Lock()
		if entry.s.State != datatypes.StateEnabled || entry.warnedForExpiry {
			entry.mu.Unlock()
			continue
		}
		remaining := entry.s.RemainingTime(now)
		if remaining <= 0 || remaining > c.cfg.WarningLeadTime {
			entry.mu.Unlock()
			continue
		}

		entry.warnedForExpiry = true
		payload := c.warnings.TimeoutWarning(remaining)
		c.appendWarningLocked(entry, datatypes.SessionWarning{
			Type:      "timeout_warning",
			Message:   payload.Message,
			Timestamp: now,
		})
		sessionID := entry.s.SessionID
		userID := entry.s.UserID
		entry.mu.Unlock()

		c.emit(ctx, datatypes.TypeTimeoutWarning, datatypes.EventContext{
			UserID:    userID,
			SessionID: sessionID,
			Title:     payload.Title,
			Body:      payload.Message,
			Severity:  datatypes.SeverityInfo,
			Details:   map[string]any{"remaining": fmt.Sprint(remaining.Round(time.Second))},
		})
	}
}
