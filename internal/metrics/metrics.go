// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

// Package metrics exposes Prometheus collectors for the engine. All
// metrics are registered on the default registry and served from the
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed metrics.
	FeedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_events_total",
			Help: "Total login events consumed from the change feed",
		},
	)

	FeedEventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_events_skipped_total",
			Help: "Login events skipped without evaluation",
		},
		[]string{"reason"}, // "malformed", "process_error"
	)

	FeedReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_reconnects_total",
			Help: "Change feed re-subscriptions after read failures",
		},
	)

	FeedLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_lag_seconds",
			Help: "Age of the most recently consumed login event",
		},
	)

	// Detection metrics.
	DetectionEventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "detection_events_processed_total",
			Help: "Login events evaluated by the correlator",
		},
	)

	DetectionFindings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detection_findings_total",
			Help: "Findings raised by the correlator",
		},
		[]string{"kind"}, // "multi_device", "multi_ip_window", "multi_country", "vpn_detected"
	)

	DetectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detection_errors_total",
			Help: "Detector evaluation errors",
		},
		[]string{"kind"},
	)

	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "detection_duration_seconds",
			Help:    "Per-event correlation time including history queries",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// Lifecycle metrics.
	LifecycleTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_transitions_total",
			Help: "Account status transitions applied",
		},
		[]string{"from", "to", "trigger"}, // trigger: "sweep", "admin"
	)

	LifecycleConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_transition_conflicts_total",
			Help: "Conditional status updates lost to a concurrent writer",
		},
	)

	// Sweep metrics.
	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of periodic account sweeps",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"sweep"}, // "inactivity", "expiry"
	)

	SweepErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_errors_total",
			Help: "Per-account errors during sweeps (sweep continues)",
		},
		[]string{"sweep"},
	)

	ExpiryWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "expiry_warnings_total",
			Help: "Expiry warnings emitted",
		},
		[]string{"days_remaining"},
	)

	// Reputation metrics.
	ReputationLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reputation_lookups_total",
			Help: "External reputation/geo lookups",
		},
		[]string{"service", "result"}, // service: "proxycheck", "geo"; result: "ok", "error", "breaker_open"
	)

	ReputationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reputation_lookup_duration_seconds",
			Help:    "External lookup latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service"},
	)

	// Alert metrics.
	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_emitted_total",
			Help: "Alert payloads handed to the emitter",
		},
		[]string{"kind"},
	)

	AlertErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alert_errors_total",
			Help: "Emitter failures (logged and dropped, never retried)",
		},
	)
)
