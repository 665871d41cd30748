// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the guardian.
//
// # Description
//
// This package implements Prometheus metrics for monitoring dangerous-mode
// sessions and notification delivery. Metrics include:
//   - Activation counters (by outcome)
//   - Command validation counters (by risk level and verdict)
//   - Forced-disable counters (by reason)
//   - Notification emission, throttling, delivery, and escalation counters
//   - Active session gauge
//
// # Integration
//
// Metrics are exposed via /metrics endpoint. Use with Prometheus + Grafana
// for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for guardian metrics
const guardianSubsystem = "guardian"

// GuardianMetrics holds all Prometheus metrics for the guardian service.
//
// Initialize once at startup via InitMetrics(). All operations are
// thread-safe.
type GuardianMetrics struct {
	// ActivationsTotal counts dangerous-mode activation attempts.
	// Labels: outcome (pending, enabled, refused)
	ActivationsTotal *prometheus.CounterVec

	// ValidationsTotal counts command validations.
	// Labels: risk (safe, moderate, dangerous, critical), verdict (allowed, blocked)
	ValidationsTotal *prometheus.CounterVec

	// ForcedDisablesTotal counts automatic disables.
	// Labels: reason (timeout, suspicious_activity, emergency, admin_disable)
	ForcedDisablesTotal *prometheus.CounterVec

	// ActiveSessions tracks sessions currently in the enabled state.
	ActiveSessions prometheus.Gauge

	// RiskScore observes accumulated risk at disable time.
	RiskScore prometheus.Histogram

	// NotificationsEmittedTotal counts emitted notifications.
	// Labels: type, priority
	NotificationsEmittedTotal *prometheus.CounterVec

	// NotificationsThrottledTotal counts emissions refused by the
	// throttle window. Labels: type
	NotificationsThrottledTotal *prometheus.CounterVec

	// DeliveriesTotal counts per-channel delivery outcomes.
	// Labels: channel, status (sent, failed)
	DeliveriesTotal *prometheus.CounterVec

	// EscalationsTotal counts unacknowledged notifications escalated to
	// security alerts.
	EscalationsTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of GuardianMetrics.
// Initialized by InitMetrics(). Nil until then; use the Record helpers,
// which tolerate a nil singleton, from library code.
var DefaultMetrics *GuardianMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *GuardianMetrics {
	DefaultMetrics = &GuardianMetrics{
		ActivationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "activations_total",
				Help:      "Total dangerous-mode activation attempts by outcome",
			},
			[]string{"outcome"},
		),

		ValidationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "validations_total",
				Help:      "Total command validations by risk level and verdict",
			},
			[]string{"risk", "verdict"},
		),

		ForcedDisablesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "forced_disables_total",
				Help:      "Total automatic session disables by reason",
			},
			[]string{"reason"},
		),

		ActiveSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "active_sessions",
				Help:      "Number of sessions currently holding elevated privileges",
			},
		),

		RiskScore: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "risk_score_at_disable",
				Help:      "Accumulated risk score observed when a session is disabled",
				Buckets:   []float64{5, 10, 20, 40, 60, 80, 100, 150},
			},
		),

		NotificationsEmittedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "notifications_emitted_total",
				Help:      "Total notifications emitted by type and priority",
			},
			[]string{"type", "priority"},
		),

		NotificationsThrottledTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "notifications_throttled_total",
				Help:      "Total notification emissions refused by the throttle window",
			},
			[]string{"type"},
		),

		DeliveriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "deliveries_total",
				Help:      "Total per-channel notification delivery outcomes",
			},
			[]string{"channel", "status"},
		),

		EscalationsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: guardianSubsystem,
				Name:      "escalations_total",
				Help:      "Total unacknowledged notifications escalated to security alerts",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Record Helpers
// =============================================================================

// The helpers below tolerate an uninitialized DefaultMetrics so library
// code and tests can run without a registry.

// RecordActivation counts an activation attempt outcome.
func RecordActivation(outcome string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ActivationsTotal.WithLabelValues(outcome).Inc()
}

// RecordValidation counts a command validation verdict.
func RecordValidation(risk, verdict string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ValidationsTotal.WithLabelValues(risk, verdict).Inc()
}

// RecordForcedDisable counts an automatic disable and observes the
// session's final risk score.
func RecordForcedDisable(reason string, riskScore int) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ForcedDisablesTotal.WithLabelValues(reason).Inc()
	DefaultMetrics.RiskScore.Observe(float64(riskScore))
}

// SetActiveSessions updates the active-session gauge.
func SetActiveSessions(n int) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.ActiveSessions.Set(float64(n))
}

// RecordNotificationEmitted counts an emitted notification.
func RecordNotificationEmitted(notificationType, priority string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.NotificationsEmittedTotal.WithLabelValues(notificationType, priority).Inc()
}

// RecordNotificationThrottled counts a throttled emission.
func RecordNotificationThrottled(notificationType string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.NotificationsThrottledTotal.WithLabelValues(notificationType).Inc()
}

// RecordDelivery counts a per-channel delivery outcome.
func RecordDelivery(channel, status string) {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.DeliveriesTotal.WithLabelValues(channel, status).Inc()
}

// RecordEscalation counts an escalation.
func RecordEscalation() {
	if DefaultMetrics == nil {
		return
	}
	DefaultMetrics.EscalationsTotal.Inc()
}
