// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package detection

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/warden/internal/alert"
	"github.com/tomtom215/warden/internal/models"
)

func testEvent() *models.LoginEvent {
	return &models.LoginEvent{
		Username:  "steve",
		IPAddress: "203.0.113.10",
		HWID:      "hwid-1",
		Timestamp: time.Now().UTC(),
	}
}

func TestMultiDeviceDetector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		otherHWIDs []string
		wantFire   bool
		wantCount  int
	}{
		{name: "no other devices", otherHWIDs: nil, wantFire: false},
		{name: "one other device", otherHWIDs: []string{"hwid-2"}, wantFire: true, wantCount: 1},
		{name: "several other devices", otherHWIDs: []string{"hwid-2", "hwid-3"}, wantFire: true, wantCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewMultiDeviceDetector()
			eval := &Evaluation{Event: testEvent(), History: &History{OtherHWIDs: tt.otherHWIDs}}

			finding, err := d.Check(context.Background(), eval)
			if err != nil {
				t.Fatalf("Check returned error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired = %v, want %v", finding != nil, tt.wantFire)
			}
			if finding == nil {
				return
			}
			if finding.Kind != FindingMultiDevice {
				t.Errorf("kind = %q, want %q", finding.Kind, FindingMultiDevice)
			}
			if finding.Severity != alert.SeverityCritical {
				t.Errorf("severity = %q, want critical", finding.Severity)
			}
			if finding.Count != tt.wantCount {
				t.Errorf("count = %d, want %d", finding.Count, tt.wantCount)
			}
		})
	}
}

func TestMultiIPDetector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		otherIPs []string
		maxIPs   int
		wantFire bool
	}{
		{name: "no other ips", otherIPs: nil, maxIPs: 1, wantFire: false},
		{name: "one other ip is tolerated", otherIPs: []string{"198.51.100.1"}, maxIPs: 1, wantFire: false},
		{name: "two other ips fire", otherIPs: []string{"198.51.100.1", "198.51.100.2"}, maxIPs: 1, wantFire: true},
		{name: "raised threshold holds", otherIPs: []string{"198.51.100.1", "198.51.100.2"}, maxIPs: 2, wantFire: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewMultiIPDetector(MultiIPConfig{Window: 24 * time.Hour, MaxDistinctIPs: tt.maxIPs})
			eval := &Evaluation{Event: testEvent(), History: &History{OtherIPs: tt.otherIPs}}

			finding, err := d.Check(context.Background(), eval)
			if err != nil {
				t.Fatalf("Check returned error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired = %v, want %v", finding != nil, tt.wantFire)
			}
			if finding != nil && finding.Kind != FindingMultiIPWindow {
				t.Errorf("kind = %q, want %q", finding.Kind, FindingMultiIPWindow)
			}
		})
	}
}

func TestMultiCountryDetector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		countries []string
		eventCtry string
		wantFire  bool
	}{
		{name: "single country", countries: []string{"Germany"}, eventCtry: "Germany", wantFire: false},
		{name: "two countries", countries: []string{"Germany"}, eventCtry: "France", wantFire: false},
		{name: "three countries fire", countries: []string{"Germany", "France"}, eventCtry: "Brazil", wantFire: true},
		{name: "event country already known", countries: []string{"Germany", "France", "Brazil"}, eventCtry: "Brazil", wantFire: true},
		{name: "unknown never counts", countries: []string{"Germany", "France"}, eventCtry: UnknownCountry, wantFire: false},
		{name: "empty history country ignored", countries: []string{"Germany", "", "France"}, eventCtry: "France", wantFire: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewMultiCountryDetector(MultiCountryConfig{MaxDistinctCountries: 2})
			eval := &Evaluation{
				Event:   testEvent(),
				History: &History{Countries: tt.countries},
				Country: tt.eventCtry,
			}

			finding, err := d.Check(context.Background(), eval)
			if err != nil {
				t.Fatalf("Check returned error: %v", err)
			}
			if (finding != nil) != tt.wantFire {
				t.Fatalf("fired = %v, want %v", finding != nil, tt.wantFire)
			}
			if finding != nil && finding.Severity != alert.SeverityWarning {
				t.Errorf("severity = %q, want warning", finding.Severity)
			}
		})
	}
}

func TestVPNUsageDetector(t *testing.T) {
	t.Parallel()

	d := NewVPNUsageDetector()

	finding, err := d.Check(context.Background(), &Evaluation{Event: testEvent(), History: &History{}, VPN: false})
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if finding != nil {
		t.Fatal("fired without VPN verdict")
	}

	finding, err = d.Check(context.Background(), &Evaluation{Event: testEvent(), History: &History{}, VPN: true})
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	if finding == nil {
		t.Fatal("did not fire on VPN verdict")
	}
	if finding.Kind != FindingVPNDetected {
		t.Errorf("kind = %q, want %q", finding.Kind, FindingVPNDetected)
	}
}

func TestDetectorEnableDisable(t *testing.T) {
	t.Parallel()

	detectors := []Detector{
		NewMultiDeviceDetector(),
		NewMultiIPDetector(MultiIPConfig{}),
		NewMultiCountryDetector(MultiCountryConfig{}),
		NewVPNUsageDetector(),
	}

	for _, d := range detectors {
		if !d.Enabled() {
			t.Errorf("%s: not enabled by default", d.Kind())
		}
		d.SetEnabled(false)
		if d.Enabled() {
			t.Errorf("%s: still enabled after SetEnabled(false)", d.Kind())
		}
		d.SetEnabled(true)
		if !d.Enabled() {
			t.Errorf("%s: not re-enabled", d.Kind())
		}
	}
}
