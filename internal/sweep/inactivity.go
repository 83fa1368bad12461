// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

// Package sweep contains the periodic account scans: the inactivity
// sweep and the expiry sweep. Each runs as its own supervised service
// with an independent failure domain; a per-account error is logged and
// counted, never allowed to abort the rest of the scan.
package sweep

import (
	"context"
	"time"

	"github.com/tomtom215/warden/internal/logging"
	"github.com/tomtom215/warden/internal/metrics"
	"github.com/tomtom215/warden/internal/models"
)

// AccountScanner is the slice of the store the sweeps read from.
// Satisfied by *store.Store.
type AccountScanner interface {
	ActiveAccounts(ctx context.Context, batchSize int, fn func(*models.Account) error) error
	ExpiringAccounts(ctx context.Context, now time.Time, horizon time.Duration, batchSize int, fn func(*models.Account) error) error
	ExpiredAccounts(ctx context.Context, now time.Time, batchSize int, fn func(*models.Account) error) error
	Memo(ctx context.Context, username string) (*models.NotificationMemo, error)
	MarkNotified(ctx context.Context, username string, threshold int) error
}

// Lifecycle is the slice of the lifecycle manager the sweeps drive.
// Satisfied by *lifecycle.Manager.
type Lifecycle interface {
	MarkInactive(ctx context.Context, acct *models.Account) error
	MarkExpired(ctx context.Context, acct *models.Account) error
}

// InactivitySweep scans active accounts and transitions those without a
// recent login to inactive. Accounts that never logged in are left
// alone; there is nothing to measure inactivity against.
type InactivitySweep struct {
	store     AccountScanner
	lifecycle Lifecycle

	interval  time.Duration
	after     time.Duration
	batchSize int
	perOpTime time.Duration
	now       func() time.Time
}

// NewInactivitySweep creates the sweep.
func NewInactivitySweep(st AccountScanner, lc Lifecycle, interval, after time.Duration, batchSize int, perOpTime time.Duration) *InactivitySweep {
	return &InactivitySweep{
		store:     st,
		lifecycle: lc,
		interval:  interval,
		after:     after,
		batchSize: batchSize,
		perOpTime: perOpTime,
		now:       time.Now,
	}
}

// Serve implements suture.Service: one sweep immediately, then one per
// interval until the context is canceled.
func (s *InactivitySweep) Serve(ctx context.Context) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *InactivitySweep) String() string {
	return "inactivity-sweep"
}

// runOnce performs a single scan. Store-level scan errors are logged
// and retried on the next tick; they never crash the service.
func (s *InactivitySweep) runOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues("inactivity").Observe(time.Since(start).Seconds())
	}()

	now := s.now().UTC()
	cutoff := now.Add(-s.after)

	err := s.store.ActiveAccounts(ctx, s.batchSize, func(acct *models.Account) error {
		if acct.LastLogin == nil || acct.LastLogin.After(cutoff) {
			return nil
		}
		s.markInactive(ctx, acct)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		metrics.SweepErrors.WithLabelValues("inactivity").Inc()
		logging.Error().Err(err).Msg("inactivity sweep scan failed")
	}
}

func (s *InactivitySweep) markInactive(ctx context.Context, acct *models.Account) {
	opCtx, cancel := context.WithTimeout(ctx, s.perOpTime)
	defer cancel()

	if err := s.lifecycle.MarkInactive(opCtx, acct); err != nil {
		metrics.SweepErrors.WithLabelValues("inactivity").Inc()
		logging.Error().Err(err).Str("account", acct.Username).Msg("mark inactive failed")
		return
	}
	logging.Info().
		Str("account", acct.Username).
		Time("last_login", *acct.LastLogin).
		Msg("account marked inactive")
}
