// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package alert

import (
	"context"

	"github.com/tomtom215/warden/internal/logging"
	"github.com/tomtom215/warden/internal/metrics"
)

// LogEmitter writes alert payloads to the structured log. The actual
// notification transport (chat webhook, mail, pager) lives outside this
// engine and consumes these records.
type LogEmitter struct{}

// NewLogEmitter creates a LogEmitter.
func NewLogEmitter() *LogEmitter {
	return &LogEmitter{}
}

// Emit implements Emitter.
func (e *LogEmitter) Emit(_ context.Context, a *Alert) error {
	logging.Info().
		Str("alert_id", a.ID).
		Str("kind", string(a.Kind)).
		Str("account", a.Account).
		Str("severity", string(a.Severity)).
		Str("title", a.Title).
		RawJSON("evidence", evidenceOrNull(a)).
		Msg(a.Message)
	return nil
}

func evidenceOrNull(a *Alert) []byte {
	if len(a.Evidence) == 0 {
		return []byte("null")
	}
	return a.Evidence
}

// Fanout delivers each alert to every wrapped emitter. A failing
// emitter is logged and counted; it never blocks or fails the others.
type Fanout struct {
	emitters []Emitter
}

// NewFanout creates a Fanout over the given emitters.
func NewFanout(emitters ...Emitter) *Fanout {
	return &Fanout{emitters: emitters}
}

// Emit implements Emitter. It always returns nil: delivery failures are
// terminal per the at-most-once contract.
func (f *Fanout) Emit(ctx context.Context, a *Alert) error {
	for _, e := range f.emitters {
		if err := e.Emit(ctx, a); err != nil {
			metrics.AlertErrors.Inc()
			logging.Error().Err(err).Str("alert_id", a.ID).Msg("alert emitter failed")
		} else {
			metrics.AlertsEmitted.WithLabelValues(string(a.Kind)).Inc()
		}
	}
	return nil
}
