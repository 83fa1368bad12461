// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

// Package alert defines the structured alert payload the engine hands to
// its emitter. Delivery is fire-and-forget: the engine never blocks on
// acknowledgment and an emitter failure is logged and dropped.
package alert

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Kind identifies what an alert is about.
type Kind string

const (
	// KindLeakSuspected bundles all correlator findings for one login
	// event into a single payload.
	KindLeakSuspected Kind = "leak_suspected"

	KindInactive Kind = "account_inactive"
	KindExpiring Kind = "license_expiring"
	KindExpired  Kind = "license_expired"
	KindBanned   Kind = "account_banned"
	KindReset    Kind = "account_reset"
)

// Severity indicates how urgent an alert is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is the payload delivered to the emitter. Evidence is
// kind-specific JSON; the engine does not interpret it after emission.
type Alert struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	Account   string          `json:"account"`
	Severity  Severity        `json:"severity"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Evidence  json.RawMessage `json:"evidence,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// New builds an alert with a fresh ID and the current time.
func New(kind Kind, account string, severity Severity, title, message string) *Alert {
	return &Alert{
		ID:        uuid.New().String(),
		Kind:      kind,
		Account:   account,
		Severity:  severity,
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// WithEvidence attaches kind-specific evidence, replacing any existing
// evidence. Marshal errors are impossible for the evidence types used
// in this module, but are surfaced to keep the contract honest.
func (a *Alert) WithEvidence(v any) (*Alert, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return a, err
	}
	a.Evidence = raw
	return a, nil
}

// Emitter delivers alerts to an external system. Implementations must
// be safe for concurrent use. At-most-once delivery: the caller never
// retries.
type Emitter interface {
	Emit(ctx context.Context, a *Alert) error
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, a *Alert) error

// Emit implements Emitter.
func (f EmitterFunc) Emit(ctx context.Context, a *Alert) error {
	return f(ctx, a)
}
