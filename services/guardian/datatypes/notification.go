// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// =============================================================================
// Notification Types
// =============================================================================

// NotificationType is the closed set of event kinds the notification
// engine knows how to deliver. Emitting an unknown type is a no-op.
type NotificationType string

const (
	// TypeDangerousModeEnabled fires when a session enters StateEnabled.
	TypeDangerousModeEnabled NotificationType = "dangerous_mode_enabled"

	// TypeDangerousModeDisabled fires when a session leaves StateEnabled
	// for any reason.
	TypeDangerousModeDisabled NotificationType = "dangerous_mode_disabled"

	// TypeTimeoutWarning fires when an enabled session approaches its
	// automatic expiry.
	TypeTimeoutWarning NotificationType = "timeout_warning"

	// TypeCommandBlocked fires when the classifier refuses a command.
	TypeCommandBlocked NotificationType = "command_blocked"

	// TypeRiskThreshold fires when a session is force-disabled because
	// its risk score crossed the configured maximum.
	TypeRiskThreshold NotificationType = "risk_threshold"

	// TypeSecurityAlert is the high-priority alert kind, also used for
	// escalations of unacknowledged notifications.
	TypeSecurityAlert NotificationType = "security_alert"

	// TypeEmergencyStop fires when the global emergency stop is set.
	TypeEmergencyStop NotificationType = "emergency_stop"
)

// AllNotificationTypes lists every known type, in a stable order, for
// config seeding and validation.
func AllNotificationTypes() []NotificationType {
	return []NotificationType{
		TypeDangerousModeEnabled,
		TypeDangerousModeDisabled,
		TypeTimeoutWarning,
		TypeCommandBlocked,
		TypeRiskThreshold,
		TypeSecurityAlert,
		TypeEmergencyStop,
	}
}

// Priority orders notifications for filtering and display.
// Low < Medium < High < Critical < Emergency.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
	PriorityEmergency
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	case PriorityEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// ParsePriority converts a lowercase priority name back to a Priority.
// Unknown names return PriorityLow and false.
func ParsePriority(s string) (Priority, bool) {
	switch s {
	case "low":
		return PriorityLow, true
	case "medium":
		return PriorityMedium, true
	case "high":
		return PriorityHigh, true
	case "critical":
		return PriorityCritical, true
	case "emergency":
		return PriorityEmergency, true
	default:
		return PriorityLow, false
	}
}

// Severity mirrors the audit severity scale on notification payloads.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// DeliveryChannel identifies one transport for a notification.
type DeliveryChannel string

const (
	// ChannelRealtime is the live feed (websocket) channel. Every
	// delivery attempts it best-effort regardless of recipient matching.
	ChannelRealtime DeliveryChannel = "realtime"

	// ChannelInApp stores the message in the recipient's in-app inbox.
	ChannelInApp DeliveryChannel = "in_app"

	ChannelEmail   DeliveryChannel = "email"
	ChannelSMS     DeliveryChannel = "sms"
	ChannelChat    DeliveryChannel = "chat"
	ChannelWebhook DeliveryChannel = "webhook"
)

// DeliveryState tracks per-channel delivery progress.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliverySent      DeliveryState = "sent"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryFailed    DeliveryState = "failed"
)

// =============================================================================
// Notification Message
// =============================================================================

// DefaultNotificationTTL is how long a message is retained before the
// hourly cleanup purges it.
const DefaultNotificationTTL = 24 * time.Hour

// NotificationMessage is one emitted alert.
type NotificationMessage struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Priority  Priority         `json:"priority"`
	Severity  Severity         `json:"severity"`
	Timestamp time.Time        `json:"timestamp"`

	// UserID and SessionID scope the message. A message with a UserID is
	// delivered only to that recipient when one is registered; otherwise
	// it broadcasts to all matching recipients.
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`

	Title string `json:"title"`
	Body  string `json:"body"`

	// Details carries structured event context (risk scores, commands,
	// refusal reasons).
	Details map[string]any `json:"details,omitempty"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy string     `json:"acknowledgedBy,omitempty"`

	// DeliveryMethods is the channel set configured for this type at
	// emission time.
	DeliveryMethods []DeliveryChannel `json:"deliveryMethods"`

	// DeliveryStatus records per-channel delivery outcomes.
	DeliveryStatus map[DeliveryChannel]DeliveryState `json:"deliveryStatus"`

	// Escalated is set once an unacknowledged message has produced a
	// higher-priority security alert. A message escalates at most once.
	Escalated bool `json:"escalated"`

	// EscalatedFrom references the original message on an escalation
	// alert.
	EscalatedFrom string `json:"escalatedFrom,omitempty"`

	// ExpiresAt is the retention deadline for cleanup.
	ExpiresAt time.Time `json:"expiresAt"`
}

// EventContext is the payload the session controller hands to the
// notification engine when emitting a domain event.
type EventContext struct {
	UserID    string
	SessionID string
	Title     string
	Body      string
	Severity  Severity
	Details   map[string]any
}

// =============================================================================
// Notification Config
// =============================================================================

// NotificationConfig controls emission and delivery for one type.
// Seeded with fixed defaults at startup; mutable at runtime through the
// typed setters on the engine.
type NotificationConfig struct {
	// Enabled gates emission entirely. Disabled types are silent no-ops.
	Enabled bool `json:"enabled"`

	// Methods is the channel set used for deliveries of this type.
	Methods []DeliveryChannel `json:"methods"`

	// Priority is assigned to every message of this type.
	Priority Priority `json:"priority"`

	// ThrottleInterval is the minimum spacing between emissions of this
	// type for the same target (user, or global when unscoped). A second
	// emission inside the window fails with ErrThrottled.
	ThrottleInterval time.Duration `json:"throttleInterval"`

	// EscalationDelay is how long an unacknowledged message waits before
	// escalating to a security alert. Zero disables escalation.
	EscalationDelay time.Duration `json:"escalationDelay"`

	// AutoAcknowledge marks informational types that acknowledge
	// themselves shortly after emission instead of escalating.
	AutoAcknowledge bool `json:"autoAcknowledge"`
}

// =============================================================================
// Recipients
// =============================================================================

// QuietHours is a recipient-local window during which non-emergency
// notifications are suppressed. Hours are 0-23; a window may wrap
// midnight (e.g. Start=22, End=6).
type QuietHours struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}

// Contains reports whether the given time falls inside the window.
func (q QuietHours) Contains(t time.Time) bool {
	h := t.Hour()
	if q.StartHour == q.EndHour {
		return false
	}
	if q.StartHour < q.EndHour {
		return h >= q.StartHour && h < q.EndHour
	}
	// Wraps midnight.
	return h >= q.StartHour || h < q.EndHour
}

// Recipient is one administrator-managed delivery target.
type Recipient struct {
	ID string `json:"id"`

	// Contacts maps channels to endpoints (email address, phone number,
	// webhook URL). A channel without an endpoint falls back to the
	// adapter's default behavior.
	Contacts map[DeliveryChannel]string `json:"contacts,omitempty"`

	// SubscribedTypes limits which notification types this recipient
	// receives. Empty means all types.
	SubscribedTypes []NotificationType `json:"subscribedTypes,omitempty"`

	// Channels limits which delivery channels reach this recipient.
	Channels []DeliveryChannel `json:"channels"`

	// MinPriority filters out lower-priority notifications.
	MinPriority Priority `json:"minPriority"`

	// QuietHours optionally suppresses non-emergency deliveries.
	QuietHours *QuietHours `json:"quietHours,omitempty"`

	// Roles tags the recipient for role-scoped alerting.
	Roles []string `json:"roles,omitempty"`

	// Active recipients receive deliveries; inactive ones are skipped
	// without being deleted.
	Active bool `json:"active"`
}

// SubscribedTo reports whether the recipient wants this type.
// An empty subscription list means all types.
func (r *Recipient) SubscribedTo(t NotificationType) bool {
	if len(r.SubscribedTypes) == 0 {
		return true
	}
	for _, st := range r.SubscribedTypes {
		if st == t {
			return true
		}
	}
	return false
}

// UsesChannel reports whether the recipient accepts the channel.
func (r *Recipient) UsesChannel(ch DeliveryChannel) bool {
	for _, c := range r.Channels {
		if c == ch {
			return true
		}
	}
	return false
}
