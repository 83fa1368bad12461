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

// MultiDeviceDetector flags an account whose history contains any HWID
// other than the one on the current event. A second device is the
// strongest signal of a shared or leaked credential, so a single other
// HWID is enough to trigger.
type MultiDeviceDetector struct {
	enabled bool
	mu      sync.RWMutex
}

// NewMultiDeviceDetector creates a multi-device detector.
func NewMultiDeviceDetector() *MultiDeviceDetector {
	return &MultiDeviceDetector{enabled: true}
}

// Kind returns the finding kind.
func (d *MultiDeviceDetector) Kind() FindingKind {
	return FindingMultiDevice
}

// Check evaluates the rule.
func (d *MultiDeviceDetector) Check(_ context.Context, ev *Evaluation) (*Finding, error) {
	if !d.Enabled() {
		return nil, nil
	}

	otherCount := len(ev.History.OtherHWIDs)
	if otherCount == 0 {
		return nil, nil
	}

	return &Finding{
		Kind:     FindingMultiDevice,
		Severity: alert.SeverityCritical,
		Reason:   fmt.Sprintf("multiple HWIDs detected (%d total)", otherCount+1),
		Count:    otherCount,
	}, nil
}

// Enabled reports whether this detector is enabled.
func (d *MultiDeviceDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// SetEnabled enables or disables the detector.
func (d *MultiDeviceDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}
