// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

// Package lifecycle owns the account status state machine. Every status
// change — sweep-driven or administrative — goes through the Manager,
// which applies it as a conditional update keyed on the current status
// so racing triggers cannot both win. Exactly one alert is emitted per
// applied transition.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tomtom215/warden/internal/alert"
	"github.com/tomtom215/warden/internal/logging"
	"github.com/tomtom215/warden/internal/metrics"
	"github.com/tomtom215/warden/internal/models"
	"github.com/tomtom215/warden/internal/store"
)

// transitions is the recognized edge set: target status to the source
// statuses allowed to reach it automatically or administratively.
// banned is terminal for automatic triggers; only Reset leaves it.
var transitions = map[models.Status][]models.Status{
	models.StatusInactive: {models.StatusActive},
	models.StatusExpired:  {models.StatusActive},
	models.StatusBanned:   {models.StatusActive, models.StatusInactive, models.StatusExpired},
	models.StatusActive:   {models.StatusBanned, models.StatusInactive, models.StatusExpired},
}

// CanTransition reports whether from→to is a recognized edge.
func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// AccountStore is the slice of the document store the state machine
// needs. Satisfied by *store.Store.
type AccountStore interface {
	FindAccount(ctx context.Context, username string) (*models.Account, error)
	UpdateStatus(ctx context.Context, username string, expected []models.Status, to models.Status, set bson.M, unset []string) error
	ClearMemo(ctx context.Context, username string) error
}

// Manager applies lifecycle transitions.
type Manager struct {
	store   AccountStore
	emitter alert.Emitter
}

// NewManager creates a lifecycle manager.
func NewManager(st AccountStore, emitter alert.Emitter) *Manager {
	return &Manager{store: st, emitter: emitter}
}

// MarkInactive transitions an active account to inactive. The sweep
// calls this only for accounts it just read as active; if another
// writer got there first the conditional update reports the conflict
// and no alert is emitted, keeping re-evaluation idempotent.
func (m *Manager) MarkInactive(ctx context.Context, acct *models.Account) error {
	err := m.store.UpdateStatus(ctx, acct.Username,
		[]models.Status{models.StatusActive}, models.StatusInactive, nil, nil)
	if err != nil {
		return m.classify(err)
	}

	metrics.LifecycleTransitions.WithLabelValues(
		string(models.StatusActive), string(models.StatusInactive), "sweep").Inc()

	a := alert.New(alert.KindInactive, acct.Username, alert.SeverityWarning,
		"User Inactivity Alert",
		fmt.Sprintf("%s has not logged in for over a week", acct.Username))
	if _, err := a.WithEvidence(inactivityEvidence(acct)); err != nil {
		logging.Error().Err(err).Str("account", acct.Username).Msg("marshal inactivity evidence")
	}
	m.emit(ctx, a)
	return nil
}

// MarkExpired transitions an active account past its expiry date to
// expired and clears its notification memo.
func (m *Manager) MarkExpired(ctx context.Context, acct *models.Account) error {
	err := m.store.UpdateStatus(ctx, acct.Username,
		[]models.Status{models.StatusActive}, models.StatusExpired, nil, nil)
	if err != nil {
		return m.classify(err)
	}

	metrics.LifecycleTransitions.WithLabelValues(
		string(models.StatusActive), string(models.StatusExpired), "sweep").Inc()

	// The account has left the expiring state; its warning thresholds
	// start fresh on any future license renewal.
	if err := m.store.ClearMemo(ctx, acct.Username); err != nil {
		logging.Error().Err(err).Str("account", acct.Username).Msg("clear notification memo")
	}

	a := alert.New(alert.KindExpired, acct.Username, alert.SeverityCritical,
		"License Expired",
		fmt.Sprintf("license for %s expired on %s", acct.Username,
			acct.ExpiryDate.UTC().Format("2006-01-02 15:04 UTC")))
	if _, err := a.WithEvidence(licenseEvidence(acct)); err != nil {
		logging.Error().Err(err).Str("account", acct.Username).Msg("marshal expiry evidence")
	}
	m.emit(ctx, a)
	return nil
}

// Ban applies the administrative ban action. Banned accounts cannot be
// re-banned; everything else can.
func (m *Manager) Ban(ctx context.Context, username, reason string) error {
	if reason == "" {
		reason = "No reason provided"
	}
	now := time.Now().UTC()

	err := m.store.UpdateStatus(ctx, username,
		transitions[models.StatusBanned], models.StatusBanned,
		bson.M{"ban_reason": reason, "banned_at": now}, nil)
	if err != nil {
		return m.classify(err)
	}

	metrics.LifecycleTransitions.WithLabelValues("*", string(models.StatusBanned), "admin").Inc()

	a := alert.New(alert.KindBanned, username, alert.SeverityCritical,
		"User Banned", fmt.Sprintf("%s was banned: %s", username, reason))
	if _, err := a.WithEvidence(map[string]any{"reason": reason, "banned_at": now}); err != nil {
		logging.Error().Err(err).Str("account", username).Msg("marshal ban evidence")
	}
	m.emit(ctx, a)
	return nil
}

// Reset is the administrative unban/reset action: it returns a banned,
// inactive, or expired account to active and removes the ban fields.
// This is the only edge out of banned.
func (m *Manager) Reset(ctx context.Context, username string) error {
	err := m.store.UpdateStatus(ctx, username,
		transitions[models.StatusActive], models.StatusActive,
		nil, []string{"ban_reason", "banned_at"})
	if err != nil {
		return m.classify(err)
	}

	metrics.LifecycleTransitions.WithLabelValues("*", string(models.StatusActive), "admin").Inc()

	a := alert.New(alert.KindReset, username, alert.SeverityInfo,
		"Account Reset", fmt.Sprintf("%s was reset to active", username))
	m.emit(ctx, a)
	return nil
}

// classify counts lost CAS races; everything else passes through.
func (m *Manager) classify(err error) error {
	if errors.Is(err, store.ErrConflict) {
		metrics.LifecycleConflicts.Inc()
	}
	return err
}

func (m *Manager) emit(ctx context.Context, a *alert.Alert) {
	if err := m.emitter.Emit(ctx, a); err != nil {
		logging.Error().Err(err).Str("alert_id", a.ID).Msg("emit lifecycle alert")
	}
}

func inactivityEvidence(acct *models.Account) map[string]any {
	ev := map[string]any{"license_type": acct.LicenseType}
	if acct.LastLogin != nil {
		ev["last_login"] = acct.LastLogin.UTC()
	}
	return ev
}

func licenseEvidence(acct *models.Account) map[string]any {
	return map[string]any{
		"license_type": acct.LicenseType,
		"expiry_date":  acct.ExpiryDate.UTC(),
	}
}
