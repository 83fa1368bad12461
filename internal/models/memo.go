// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationMemo records which expiry warning thresholds (days
// remaining) have already been notified for an account, so each
// threshold fires at most once no matter how often the expiry sweep
// runs. Cleared when the account leaves the expiring state.
type NotificationMemo struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Username           string             `bson:"username"`
	NotifiedThresholds []int              `bson:"notified_thresholds"`
	UpdatedAt          time.Time          `bson:"updated_at"`
}

// Notified reports whether the given threshold has already fired.
func (m *NotificationMemo) Notified(threshold int) bool {
	if m == nil {
		return false
	}
	for _, t := range m.NotifiedThresholds {
		if t == threshold {
			return true
		}
	}
	return false
}

// FeedCheckpoint stores the change-feed resume token last durably
// processed by the event consumption loop. One document per feed.
type FeedCheckpoint struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Feed        string             `bson:"feed"`
	ResumeToken []byte             `bson:"resume_token"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}
