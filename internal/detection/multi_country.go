// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package detection

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/warden/internal/alert"
)

// MultiCountryConfig configures the multi-country rule.
type MultiCountryConfig struct {
	// MaxDistinctCountries is the count of distinct countries above
	// which the rule fires.
	MaxDistinctCountries int `json:"max_distinct_countries"`
}

// DefaultMultiCountryConfig preserves the historical threshold: more
// than two countries across the account's lifetime.
func DefaultMultiCountryConfig() MultiCountryConfig {
	return MultiCountryConfig{MaxDistinctCountries: 2}
}

// MultiCountryDetector flags an account seen from too many distinct
// countries over its whole history. The event's own resolved country
// participates in the count; unresolved lookups ("Unknown") never do.
type MultiCountryDetector struct {
	config  MultiCountryConfig
	enabled bool
	mu      sync.RWMutex
}

// NewMultiCountryDetector creates a multi-country detector.
func NewMultiCountryDetector(config MultiCountryConfig) *MultiCountryDetector {
	if config.MaxDistinctCountries <= 0 {
		config = DefaultMultiCountryConfig()
	}
	return &MultiCountryDetector{config: config, enabled: true}
}

// Kind returns the finding kind.
func (d *MultiCountryDetector) Kind() FindingKind {
	return FindingMultiCountry
}

// Check evaluates the rule.
func (d *MultiCountryDetector) Check(_ context.Context, ev *Evaluation) (*Finding, error) {
	d.mu.RLock()
	enabled := d.enabled
	config := d.config
	d.mu.RUnlock()

	if !enabled {
		return nil, nil
	}

	countries := make(map[string]struct{}, len(ev.History.Countries)+1)
	for _, c := range ev.History.Countries {
		if c != "" && c != UnknownCountry {
			countries[c] = struct{}{}
		}
	}
	if ev.Country != "" && ev.Country != UnknownCountry {
		countries[ev.Country] = struct{}{}
	}

	distinct := len(countries)
	if distinct <= config.MaxDistinctCountries {
		return nil, nil
	}

	return &Finding{
		Kind:     FindingMultiCountry,
		Severity: alert.SeverityWarning,
		Reason:   fmt.Sprintf("logins from %d different countries", distinct),
		Count:    distinct,
	}, nil
}

// Enabled reports whether this detector is enabled.
func (d *MultiCountryDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// SetEnabled enables or disables the detector.
func (d *MultiCountryDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}
