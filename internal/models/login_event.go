// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrMalformedEvent marks a login record missing one of its required
// fields. Such events are skipped and logged, never fatal.
var ErrMalformedEvent = errors.New("login event missing required fields")

// LoginEvent is an immutable, append-only record of a proxy login.
// The engine only ever reads these; the proxy writes them.
type LoginEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Username  string             `bson:"username" json:"username"`
	IPAddress string             `bson:"ip_address" json:"ip_address"`
	HWID      string             `bson:"hwid" json:"hwid"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	// Country is resolved lazily by the reputation checker and may be
	// empty on records written before resolution.
	Country string `bson:"country,omitempty" json:"country,omitempty"`
}

// Validate reports ErrMalformedEvent when a required field is absent.
func (e *LoginEvent) Validate() error {
	if e.Username == "" || e.IPAddress == "" || e.HWID == "" {
		return ErrMalformedEvent
	}
	return nil
}
