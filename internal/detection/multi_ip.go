// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/warden/internal/alert"
)

// MultiIPConfig configures the windowed multi-IP rule.
type MultiIPConfig struct {
	// Window is the trailing window the history source was queried
	// with. Carried here so alerts can report it.
	Window time.Duration `json:"window"`

	// MaxDistinctIPs is the count of other distinct IPs above which
	// the rule fires.
	MaxDistinctIPs int `json:"max_distinct_ips"`
}

// DefaultMultiIPConfig preserves the historical thresholds: more than
// one other IP within 24 hours.
func DefaultMultiIPConfig() MultiIPConfig {
	return MultiIPConfig{
		Window:         24 * time.Hour,
		MaxDistinctIPs: 1,
	}
}

// MultiIPDetector flags an account seen from several distinct IPs
// within a sliding window. One extra IP is tolerated (home plus mobile
// is normal); more suggests the credential is circulating.
type MultiIPDetector struct {
	config  MultiIPConfig
	enabled bool
	mu      sync.RWMutex
}

// NewMultiIPDetector creates a windowed multi-IP detector.
func NewMultiIPDetector(config MultiIPConfig) *MultiIPDetector {
	if config.MaxDistinctIPs <= 0 {
		config = DefaultMultiIPConfig()
	}
	return &MultiIPDetector{config: config, enabled: true}
}

// Kind returns the finding kind.
func (d *MultiIPDetector) Kind() FindingKind {
	return FindingMultiIPWindow
}

// Check evaluates the rule.
func (d *MultiIPDetector) Check(_ context.Context, ev *Evaluation) (*Finding, error) {
	d.mu.RLock()
	enabled := d.enabled
	config := d.config
	d.mu.RUnlock()

	if !enabled {
		return nil, nil
	}

	distinct := len(ev.History.OtherIPs)
	if distinct <= config.MaxDistinctIPs {
		return nil, nil
	}

	return &Finding{
		Kind:     FindingMultiIPWindow,
		Severity: alert.SeverityCritical,
		Reason: fmt.Sprintf("multiple IPs in last %s (%d total)",
			config.Window, distinct),
		Count: distinct,
	}, nil
}

// Enabled reports whether this detector is enabled.
func (d *MultiIPDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// SetEnabled enables or disables the detector.
func (d *MultiIPDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}
