// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomtom215/warden/internal/detection"
	"github.com/tomtom215/warden/internal/models"
)

// FingerprintHistory derives an account's device/network history from
// the login log. It implements detection.HistorySource. Every call
// re-queries the store: counts are derived from source records, never
// from incremental counters, so duplicate feed deliveries cannot skew
// them.
type FingerprintHistory struct {
	store *Store

	// countryLookback bounds the multi-country history; zero means the
	// account's whole lifetime.
	countryLookback time.Duration
}

// NewFingerprintHistory creates the history source.
func NewFingerprintHistory(s *Store, countryLookback time.Duration) *FingerprintHistory {
	return &FingerprintHistory{store: s, countryLookback: countryLookback}
}

// HistoryFor implements detection.HistorySource.
func (h *FingerprintHistory) HistoryFor(ctx context.Context, ev *models.LoginEvent, window time.Duration) (*detection.History, error) {
	ctx, cancel := h.store.opContext(ctx)
	defer cancel()

	asOf := ev.Timestamp
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	otherHWIDs, err := h.store.distinctLogins(ctx, "hwid", bson.M{
		"username": ev.Username,
		"hwid":     bson.M{"$ne": ev.HWID},
	})
	if err != nil {
		return nil, fmt.Errorf("distinct other hwids: %w", err)
	}

	otherIPs, err := h.store.distinctLogins(ctx, "ip_address", bson.M{
		"username":   ev.Username,
		"timestamp":  bson.M{"$gte": asOf.Add(-window), "$lt": asOf},
		"ip_address": bson.M{"$ne": ev.IPAddress},
	})
	if err != nil {
		return nil, fmt.Errorf("distinct other ips: %w", err)
	}

	countryFilter := bson.M{"username": ev.Username}
	if h.countryLookback > 0 {
		countryFilter["timestamp"] = bson.M{"$gte": asOf.Add(-h.countryLookback)}
	}
	countries, err := h.store.distinctLogins(ctx, "country", countryFilter)
	if err != nil {
		return nil, fmt.Errorf("distinct countries: %w", err)
	}

	knownHWIDs, err := h.store.distinctLogins(ctx, "hwid", bson.M{"username": ev.Username})
	if err != nil {
		return nil, fmt.Errorf("distinct known hwids: %w", err)
	}
	knownIPs, err := h.store.distinctLogins(ctx, "ip_address", bson.M{"username": ev.Username})
	if err != nil {
		return nil, fmt.Errorf("distinct known ips: %w", err)
	}

	return &detection.History{
		OtherHWIDs: otherHWIDs,
		OtherIPs:   otherIPs,
		Countries:  countries,
		KnownHWIDs: knownHWIDs,
		KnownIPs:   knownIPs,
	}, nil
}

// distinctLogins runs a distinct query over the login log and keeps the
// non-empty string values.
func (s *Store) distinctLogins(ctx context.Context, field string, filter bson.M) ([]string, error) {
	values, err := s.logins.Distinct(ctx, field, filter)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if str, ok := v.(string); ok && str != "" {
			out = append(out, str)
		}
	}
	return out, nil
}

// RecentLogins returns the newest login records for an account, most
// recent first. Serves the admin activity query.
func (s *Store) RecentLogins(ctx context.Context, username string, limit int64) ([]models.LoginEvent, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cur, err := s.logins.Find(ctx, bson.M{"username": username}, opts)
	if err != nil {
		return nil, fmt.Errorf("recent logins for %s: %w", username, err)
	}
	defer cur.Close(ctx)

	var events []models.LoginEvent
	if err := cur.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode recent logins: %w", err)
	}
	return events, nil
}
