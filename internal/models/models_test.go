// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package models

import (
	"errors"
	"testing"
	"time"
)

func TestStatusValid(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusActive, StatusInactive, StatusExpired, StatusBanned} {
		if !s.Valid() {
			t.Errorf("%s not valid", s)
		}
	}
	for _, s := range []Status{"", "deleted", "ACTIVE"} {
		if s.Valid() {
			t.Errorf("%q unexpectedly valid", s)
		}
	}
}

func TestDaysUntilExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		expiry time.Time
		want   int
	}{
		{name: "exactly seven days", expiry: now.Add(7 * 24 * time.Hour), want: 7},
		{name: "partial day floors down", expiry: now.Add(7*24*time.Hour + 12*time.Hour), want: 7},
		{name: "under a day", expiry: now.Add(6 * time.Hour), want: 0},
		{name: "already expired", expiry: now.Add(-30 * time.Hour), want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := &Account{ExpiryDate: tt.expiry}
			if got := a.DaysUntilExpiry(now); got != tt.want {
				t.Errorf("DaysUntilExpiry = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLoginEventValidate(t *testing.T) {
	t.Parallel()

	valid := LoginEvent{Username: "steve", IPAddress: "203.0.113.10", HWID: "hwid-1"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	for _, ev := range []LoginEvent{
		{IPAddress: "203.0.113.10", HWID: "hwid-1"},
		{Username: "steve", HWID: "hwid-1"},
		{Username: "steve", IPAddress: "203.0.113.10"},
		{},
	} {
		if err := ev.Validate(); !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("Validate(%+v) = %v, want ErrMalformedEvent", ev, err)
		}
	}
}

func TestNotificationMemoNotified(t *testing.T) {
	t.Parallel()

	var nilMemo *NotificationMemo
	if nilMemo.Notified(7) {
		t.Error("nil memo reported a notified threshold")
	}

	memo := &NotificationMemo{Username: "steve", NotifiedThresholds: []int{7, 3}}
	if !memo.Notified(7) || !memo.Notified(3) {
		t.Error("recorded thresholds not reported")
	}
	if memo.Notified(1) {
		t.Error("unrecorded threshold reported as notified")
	}
}
