// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package detection

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/warden/internal/alert"
	"github.com/tomtom215/warden/internal/logging"
	"github.com/tomtom215/warden/internal/metrics"
	"github.com/tomtom215/warden/internal/models"
)

// Engine evaluates login events against the registered detectors and
// bundles all findings for one event into a single alert.
type Engine struct {
	history    HistorySource
	reputation ReputationChecker
	emitter    alert.Emitter
	window     time.Duration

	mu        sync.RWMutex
	detectors []Detector
	enabled   bool
}

// NewEngine creates a correlator engine. The window bounds the
// multi-IP history query.
func NewEngine(history HistorySource, reputation ReputationChecker, emitter alert.Emitter, window time.Duration) *Engine {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Engine{
		history:    history,
		reputation: reputation,
		emitter:    emitter,
		window:     window,
		enabled:    true,
	}
}

// RegisterDetector adds a detector to the engine.
func (e *Engine) RegisterDetector(d Detector) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detectors = append(e.detectors, d)
	logging.Info().Str("detector", string(d.Kind())).Msg("registered detector")
}

// SetEnabled enables or disables the whole engine.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// Enabled reports whether the engine is enabled.
func (e *Engine) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

// Detectors returns the registered detectors.
func (e *Engine) Detectors() []Detector {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Detector, len(e.detectors))
	copy(out, e.detectors)
	return out
}

// Process evaluates one login event. It returns the findings the event
// produced; zero findings is the common case and costs one history
// query plus the bounded reputation lookups. A non-nil error means the
// event could not be evaluated at all (the caller decides whether to
// retry or skip); per-detector errors are logged and do not abort the
// remaining detectors.
func (e *Engine) Process(ctx context.Context, ev *models.LoginEvent) ([]*Finding, error) {
	detectors := e.enabledDetectors()
	if detectors == nil {
		return nil, nil
	}

	if err := ev.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		metrics.DetectionDuration.Observe(time.Since(start).Seconds())
		metrics.DetectionEventsProcessed.Inc()
	}()

	hist, err := e.history.HistoryFor(ctx, ev, e.window)
	if err != nil {
		return nil, fmt.Errorf("fingerprint history for %s: %w", ev.Username, err)
	}

	eval := &Evaluation{
		Event:   ev,
		History: hist,
		VPN:     e.reputation.IsAnonymizing(ctx, ev.IPAddress),
		Country: e.resolveCountry(ctx, ev),
	}

	var findings []*Finding
	for _, d := range detectors {
		finding, err := d.Check(ctx, eval)
		if err != nil {
			metrics.DetectionErrors.WithLabelValues(string(d.Kind())).Inc()
			logging.Error().Err(err).
				Str("detector", string(d.Kind())).
				Str("account", ev.Username).
				Msg("detector check failed")
			continue
		}
		if finding != nil {
			metrics.DetectionFindings.WithLabelValues(string(finding.Kind)).Inc()
			findings = append(findings, finding)
		}
	}

	if len(findings) > 0 {
		e.emit(ctx, eval, findings)
	}
	return findings, nil
}

// resolveCountry prefers the country already stored on the event and
// falls back to a live lookup.
func (e *Engine) resolveCountry(ctx context.Context, ev *models.LoginEvent) string {
	if ev.Country != "" {
		return ev.Country
	}
	return e.reputation.CountryOf(ctx, ev.IPAddress)
}

func (e *Engine) enabledDetectors() []Detector {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.enabled || len(e.detectors) == 0 {
		return nil
	}
	out := make([]Detector, 0, len(e.detectors))
	for _, d := range e.detectors {
		if d.Enabled() {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// LeakEvidence is the evidence payload on a bundled leak alert.
type LeakEvidence struct {
	Findings   []*Finding `json:"findings"`
	HWID       string     `json:"hwid"`
	IPAddress  string     `json:"ip_address"`
	Country    string     `json:"country,omitempty"`
	KnownHWIDs []string   `json:"known_hwids,omitempty"`
	KnownIPs   []string   `json:"known_ips,omitempty"`
}

// emit folds the findings into one alert and hands it to the emitter.
// Emission is fire-and-forget; a failure is logged and dropped.
func (e *Engine) emit(ctx context.Context, eval *Evaluation, findings []*Finding) {
	reasons := make([]string, len(findings))
	severity := alert.SeverityInfo
	for i, f := range findings {
		reasons[i] = f.Reason
		if severityRank(f.Severity) > severityRank(severity) {
			severity = f.Severity
		}
	}

	a := alert.New(
		alert.KindLeakSuspected,
		eval.Event.Username,
		severity,
		"Suspicious Login Detected",
		strings.Join(reasons, "; "),
	)
	if _, err := a.WithEvidence(LeakEvidence{
		Findings:   findings,
		HWID:       eval.Event.HWID,
		IPAddress:  eval.Event.IPAddress,
		Country:    eval.Country,
		KnownHWIDs: eval.History.KnownHWIDs,
		KnownIPs:   eval.History.KnownIPs,
	}); err != nil {
		logging.Error().Err(err).Str("account", eval.Event.Username).Msg("marshal alert evidence")
	}

	if err := e.emitter.Emit(ctx, a); err != nil {
		logging.Error().Err(err).Str("alert_id", a.ID).Msg("emit leak alert")
	}
}

func severityRank(s alert.Severity) int {
	switch s {
	case alert.SeverityCritical:
		return 2
	case alert.SeverityWarning:
		return 1
	default:
		return 0
	}
}
