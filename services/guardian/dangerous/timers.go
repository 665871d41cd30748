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
	"time"

	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
)

// Per-session timers fire the precise expiry and cooldown transitions;
// the periodic sweeps in sweeps.go are the backstop. Every timer
// captures the generation it was armed under, and a stale generation
// means a later transition already superseded it.

// armExpiry schedules the automatic disable at the end of the enabled
// period. Caller holds entry.mu and has already bumped timerGen.
func (c *Controller) armExpiry(entry *sessionEntry, gen uint64, after time.Duration) {
	time.AfterFunc(after, func() {
		c.fireExpiry(entry, gen)
	})
}

func (c *Controller) fireExpiry(entry *sessionEntry, gen uint64) {
	entry.mu.Lock()
	if entry.timerGen != gen || entry.s.State != datatypes.StateEnabled {
		entry.mu.Unlock()
		return
	}
	sessionID := entry.s.SessionID
	userID := entry.s.UserID
	riskScore := entry.s.RiskScore
	c.disableLocked(entry, datatypes.DisableTimeout, c.clock())
	entry.mu.Unlock()

	c.afterDisable(context.Background(), sessionID, userID, "system", datatypes.DisableTimeout, riskScore)
}

// armCooldown schedules the return from cooldown to disabled. Caller
// holds entry.mu and has already bumped timerGen.
func (c *Controller) armCooldown(entry *sessionEntry, gen uint64, after time.Duration) {
	time.AfterFunc(after, func() {
		c.fireCooldownEnd(entry, gen)
	})
}

func (c *Controller) fireCooldownEnd(entry *sessionEntry, gen uint64) {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.timerGen != gen || entry.s.State != datatypes.StateCooldown {
		return
	}
	entry.s.State = datatypes.StateDisabled
	entry.s.Reason = ""
	entry.s.LastTransition = c.clock()
	entry.timerGen++
}
