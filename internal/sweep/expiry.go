// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package sweep

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tomtom215/warden/internal/alert"
	"github.com/tomtom215/warden/internal/logging"
	"github.com/tomtom215/warden/internal/metrics"
	"github.com/tomtom215/warden/internal/models"
)

// ExpirySweep warns about licenses approaching expiry and transitions
// accounts past expiry to expired. Warning thresholds are recorded in
// the per-account notification memo so each fires at most once even
// though daysRemaining holds its value across many sweep ticks.
type ExpirySweep struct {
	store     AccountScanner
	lifecycle Lifecycle
	emitter   alert.Emitter

	interval  time.Duration
	horizon   time.Duration
	warnDays  []int
	batchSize int
	perOpTime time.Duration
	now       func() time.Time
}

// NewExpirySweep creates the sweep. warnDays are the days-remaining
// values that trigger a warning, conventionally {7, 3, 1}.
func NewExpirySweep(st AccountScanner, lc Lifecycle, emitter alert.Emitter, interval, horizon time.Duration, warnDays []int, batchSize int, perOpTime time.Duration) *ExpirySweep {
	return &ExpirySweep{
		store:     st,
		lifecycle: lc,
		emitter:   emitter,
		interval:  interval,
		horizon:   horizon,
		warnDays:  warnDays,
		batchSize: batchSize,
		perOpTime: perOpTime,
		now:       time.Now,
	}
}

// Serve implements suture.Service.
func (s *ExpirySweep) Serve(ctx context.Context) error {
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
func (s *ExpirySweep) String() string {
	return "expiry-sweep"
}

func (s *ExpirySweep) runOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.WithLabelValues("expiry").Observe(time.Since(start).Seconds())
	}()

	now := s.now().UTC()
	s.warnExpiring(ctx, now)
	s.expireOverdue(ctx, now)
}

// warnExpiring emits at most one warning per account per threshold.
func (s *ExpirySweep) warnExpiring(ctx context.Context, now time.Time) {
	err := s.store.ExpiringAccounts(ctx, now, s.horizon, s.batchSize, func(acct *models.Account) error {
		if acct.Status != models.StatusActive {
			return nil
		}
		s.warnAccount(ctx, acct, now)
		return nil
	})
	if err != nil && ctx.Err() == nil {
		metrics.SweepErrors.WithLabelValues("expiry").Inc()
		logging.Error().Err(err).Msg("expiry warning scan failed")
	}
}

func (s *ExpirySweep) warnAccount(ctx context.Context, acct *models.Account, now time.Time) {
	daysRemaining := acct.DaysUntilExpiry(now)
	if !s.isWarnThreshold(daysRemaining) {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, s.perOpTime)
	defer cancel()

	memo, err := s.store.Memo(opCtx, acct.Username)
	if err != nil {
		metrics.SweepErrors.WithLabelValues("expiry").Inc()
		logging.Error().Err(err).Str("account", acct.Username).Msg("read notification memo failed")
		return
	}
	if memo.Notified(daysRemaining) {
		return
	}

	// Record before emitting: a sweep interrupted between the two can
	// lose a warning but never duplicate one (at-most-once holds).
	if err := s.store.MarkNotified(opCtx, acct.Username, daysRemaining); err != nil {
		metrics.SweepErrors.WithLabelValues("expiry").Inc()
		logging.Error().Err(err).Str("account", acct.Username).Msg("record notification memo failed")
		return
	}

	a := alert.New(alert.KindExpiring, acct.Username, alert.SeverityWarning,
		"License Expiring Soon",
		fmt.Sprintf("license for %s expires in %d day(s)", acct.Username, daysRemaining))
	if _, err := a.WithEvidence(map[string]any{
		"days_remaining": daysRemaining,
		"expiry_date":    acct.ExpiryDate.UTC(),
		"license_type":   acct.LicenseType,
	}); err != nil {
		logging.Error().Err(err).Str("account", acct.Username).Msg("marshal expiry warning evidence")
	}
	if err := s.emitter.Emit(opCtx, a); err != nil {
		logging.Error().Err(err).Str("alert_id", a.ID).Msg("emit expiry warning")
	}

	metrics.ExpiryWarnings.WithLabelValues(strconv.Itoa(daysRemaining)).Inc()
}

// expireOverdue transitions accounts past their expiry date.
func (s *ExpirySweep) expireOverdue(ctx context.Context, now time.Time) {
	err := s.store.ExpiredAccounts(ctx, now, s.batchSize, func(acct *models.Account) error {
		opCtx, cancel := context.WithTimeout(ctx, s.perOpTime)
		defer cancel()

		if err := s.lifecycle.MarkExpired(opCtx, acct); err != nil {
			metrics.SweepErrors.WithLabelValues("expiry").Inc()
			logging.Error().Err(err).Str("account", acct.Username).Msg("mark expired failed")
			return nil
		}
		logging.Info().
			Str("account", acct.Username).
			Time("expiry_date", acct.ExpiryDate).
			Msg("account expired")
		return nil
	})
	if err != nil && ctx.Err() == nil {
		metrics.SweepErrors.WithLabelValues("expiry").Inc()
		logging.Error().Err(err).Msg("expired account scan failed")
	}
}

func (s *ExpirySweep) isWarnThreshold(days int) bool {
	for _, d := range s.warnDays {
		if d == days {
			return true
		}
	}
	return false
}
