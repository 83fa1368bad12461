// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

// Package models defines the persistent documents shared across the engine:
// accounts, login events, expiry notification memos, and feed checkpoints.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the lifecycle state of an account. Transitions between
// statuses are owned by the lifecycle package; nothing else writes
// the status field directly.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
	StatusBanned   Status = "banned"
)

// Valid reports whether s is one of the recognized statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusExpired, StatusBanned:
		return true
	}
	return false
}

// Account is a licensed proxy account. Created at registration, which is
// outside this engine; the engine only mutates status and the fields that
// accompany a status change.
type Account struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Username       string             `bson:"username" json:"username"`
	Status         Status             `bson:"status" json:"status"`
	LicenseType    string             `bson:"license_type,omitempty" json:"license_type,omitempty"`
	ExpiryDate     time.Time          `bson:"expiry_date" json:"expiry_date"`
	LastLogin      *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	BanReason      string             `bson:"ban_reason,omitempty" json:"ban_reason,omitempty"`
	BannedAt       *time.Time         `bson:"banned_at,omitempty" json:"banned_at,omitempty"`
	WelcomeMessage string             `bson:"welcome_message,omitempty" json:"welcome_message,omitempty"`
	CreatedAt      time.Time          `bson:"created_at,omitempty" json:"created_at,omitempty"`
}

// DaysUntilExpiry returns the whole number of days until the account's
// expiry date, truncated toward zero. Negative once the account is more
// than a day past expiry.
func (a *Account) DaysUntilExpiry(now time.Time) int {
	return int(a.ExpiryDate.Sub(now).Hours() / 24)
}
