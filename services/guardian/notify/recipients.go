// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package notify

import (
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
	"github.com/google/uuid"
)

// Registry is the administrator-managed set of notification recipients.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	recipients map[string]datatypes.Recipient
}

// NewRegistry returns an empty recipient registry.
func NewRegistry() *Registry {
	return &Registry{recipients: make(map[string]datatypes.Recipient)}
}

// Add registers a recipient. A missing ID is generated; an existing ID
// is an error (use Update to modify).
func (r *Registry) Add(recipient datatypes.Recipient) (datatypes.Recipient, error) {
	if recipient.ID == "" {
		recipient.ID = uuid.NewString()
	}
	if len(recipient.Channels) == 0 {
		return datatypes.Recipient{}, fmt.Errorf("recipient %s has no delivery channels", recipient.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.recipients[recipient.ID]; exists {
		return datatypes.Recipient{}, fmt.Errorf("recipient %s already exists", recipient.ID)
	}
	r.recipients[recipient.ID] = recipient
	return recipient, nil
}

// Update replaces an existing recipient.
func (r *Registry) Update(recipient datatypes.Recipient) error {
	if len(recipient.Channels) == 0 {
		return fmt.Errorf("recipient %s has no delivery channels", recipient.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.recipients[recipient.ID]; !exists {
		return fmt.Errorf("recipient %s not found", recipient.ID)
	}
	r.recipients[recipient.ID] = recipient
	return nil
}

// Remove deletes a recipient by ID.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.recipients[id]; !exists {
		return fmt.Errorf("recipient %s not found", id)
	}
	delete(r.recipients, id)
	return nil
}

// Get returns a recipient by ID.
func (r *Registry) Get(id string) (datatypes.Recipient, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recipient, ok := r.recipients[id]
	return recipient, ok
}

// List returns all recipients ordered by ID.
func (r *Registry) List() []datatypes.Recipient {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]datatypes.Recipient, 0, len(r.recipients))
	for _, recipient := range r.recipients {
		out = append(out, recipient)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Match returns the recipients a message should reach. A recipient
// matches when it is active, subscribed to the message type, and meets
// the priority floor. Quiet hours suppress everything below Emergency.
//
// A message scoped to one user is delivered only to the recipient
// registered under that user's ID; it broadcasts to all matching
// recipients only when no such recipient is registered.
func (r *Registry) Match(msg *datatypes.NotificationMessage, now timeNow) []datatypes.Recipient {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if msg.UserID != "" {
		if recipient, ok := r.recipients[msg.UserID]; ok {
			if r.matchesLocked(recipient, msg, now) {
				return []datatypes.Recipient{recipient}
			}
			return nil
		}
	}

	matched := make([]datatypes.Recipient, 0)
	for _, recipient := range r.recipients {
		if r.matchesLocked(recipient, msg, now) {
			matched = append(matched, recipient)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return matched
}

// matchesLocked applies the type/priority/quiet-hours filters.
func (r *Registry) matchesLocked(recipient datatypes.Recipient, msg *datatypes.NotificationMessage, now timeNow) bool {
	if !recipient.Active {
		return false
	}
	if !recipient.SubscribedTo(msg.Type) {
		return false
	}
	if msg.Priority < recipient.MinPriority {
		return false
	}
	if recipient.QuietHours != nil &&
		msg.Priority < datatypes.PriorityEmergency &&
		recipient.QuietHours.Contains(now()) {
		return false
	}
	return true
}
