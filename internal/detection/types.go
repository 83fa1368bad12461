// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

// Package detection implements the leak/anomaly correlator: for each
// login event it derives the account's fingerprint history, consults
// the reputation checker, and applies the detection rules. All findings
// for one event are bundled into a single alert payload.
package detection

import (
	"context"
	"time"

	"github.com/tomtom215/warden/internal/alert"
	"github.com/tomtom215/warden/internal/models"
)

// FindingKind identifies the detection rule that produced a finding.
type FindingKind string

const (
	// FindingMultiDevice fires when the account has history from any
	// HWID other than the event's.
	FindingMultiDevice FindingKind = "multi_device"

	// FindingMultiIPWindow fires when more than one other distinct IP
	// was seen within the trailing window.
	FindingMultiIPWindow FindingKind = "multi_ip_window"

	// FindingMultiCountry fires when the account has been seen from
	// more than two distinct countries in total.
	FindingMultiCountry FindingKind = "multi_country"

	// FindingVPNDetected fires when the event IP is a known
	// anonymizing proxy or VPN exit.
	FindingVPNDetected FindingKind = "vpn_detected"
)

// Finding is one correlator output. Findings are ephemeral: they exist
// only until they are folded into the alert payload for the event.
type Finding struct {
	Kind     FindingKind    `json:"kind"`
	Severity alert.Severity `json:"severity"`
	Reason   string         `json:"reason"`
	// Count is the rule-specific figure behind the finding: other
	// HWIDs, other IPs in window, or distinct countries.
	Count int `json:"count,omitempty"`
}

// History is the fingerprint history for an account as of one event,
// derived on demand from the login log. "Other" slices exclude the
// event's own HWID/IP; "Known" slices include them.
type History struct {
	// OtherHWIDs is the distinct set of HWIDs ever seen for the
	// account, excluding the event's own HWID.
	OtherHWIDs []string

	// OtherIPs is the distinct set of IPs seen within the trailing
	// window ending at the event, excluding the event's own IP.
	OtherIPs []string

	// Countries is the distinct set of countries ever recorded for the
	// account. The event's own resolved country is not included; the
	// multi-country rule adds it before counting.
	Countries []string

	// KnownHWIDs and KnownIPs are the full distinct sets across the
	// account's history, carried as alert evidence.
	KnownHWIDs []string
	KnownIPs   []string
}

// HistorySource derives the fingerprint history for the account behind
// an event. Each evaluation re-queries fresh state; duplicate event
// delivery therefore cannot double-count anything.
type HistorySource interface {
	HistoryFor(ctx context.Context, ev *models.LoginEvent, window time.Duration) (*History, error)
}

// ReputationChecker answers VPN/proxy and country questions about an
// IP. Both methods fail open: on timeout or error IsAnonymizing
// returns false and CountryOf returns "Unknown".
type ReputationChecker interface {
	IsAnonymizing(ctx context.Context, ip string) bool
	CountryOf(ctx context.Context, ip string) string
}

// Evaluation is the evidence a detector sees for one event: the event
// itself, the account's history, and the reputation verdicts. Detectors
// are pure functions of an Evaluation.
type Evaluation struct {
	Event   *models.LoginEvent
	History *History

	// VPN is the fail-open result of IsAnonymizing(event IP).
	VPN bool

	// Country is the resolved country of the event IP, "Unknown" when
	// resolution failed.
	Country string
}

// Detector implements one detection rule.
type Detector interface {
	// Kind returns the finding kind this detector produces.
	Kind() FindingKind

	// Check evaluates the rule. It returns a finding when the rule
	// triggers, nil otherwise.
	Check(ctx context.Context, ev *Evaluation) (*Finding, error)

	// Enabled reports whether this detector participates in
	// evaluation.
	Enabled() bool

	// SetEnabled enables or disables the detector.
	SetEnabled(enabled bool)
}

// UnknownCountry is the fail-open sentinel for country resolution. It
// never counts as a distinct country.
const UnknownCountry = "Unknown"
