// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package detection

import (
	"context"
	"sync"

	"github.com/tomtom215/warden/internal/alert"
)

// VPNUsageDetector flags logins from anonymizing proxies or VPN exits.
// The verdict comes from the reputation checker, which fails open: an
// unreachable reputation service never produces this finding.
type VPNUsageDetector struct {
	enabled bool
	mu      sync.RWMutex
}

// NewVPNUsageDetector creates a VPN usage detector.
func NewVPNUsageDetector() *VPNUsageDetector {
	return &VPNUsageDetector{enabled: true}
}

// Kind returns the finding kind.
func (d *VPNUsageDetector) Kind() FindingKind {
	return FindingVPNDetected
}

// Check evaluates the rule.
func (d *VPNUsageDetector) Check(_ context.Context, ev *Evaluation) (*Finding, error) {
	if !d.Enabled() || !ev.VPN {
		return nil, nil
	}

	return &Finding{
		Kind:     FindingVPNDetected,
		Severity: alert.SeverityWarning,
		Reason:   "VPN/proxy detected",
	}, nil
}

// Enabled reports whether this detector is enabled.
func (d *VPNUsageDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// SetEnabled enables or disables the detector.
func (d *VPNUsageDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}
