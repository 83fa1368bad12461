// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tomtom215/warden/internal/models"
)

// Memo returns the expiry notification memo for an account, or nil if
// none exists yet.
func (s *Store) Memo(ctx context.Context, username string) (*models.NotificationMemo, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var memo models.NotificationMemo
	err := s.memos.FindOne(ctx, bson.M{"username": username}).Decode(&memo)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memo for %s: %w", username, err)
	}
	return &memo, nil
}

// MarkNotified records that the given threshold has fired for an
// account, creating the memo on first use. Recording the same
// threshold twice is a no-op, so a sweep retried after a partial
// failure stays idempotent.
func (s *Store) MarkNotified(ctx context.Context, username string, threshold int) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.memos.UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{
			"$addToSet": bson.M{"notified_thresholds": threshold},
			"$set":      bson.M{"updated_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mark threshold %d notified for %s: %w", threshold, username, err)
	}
	return nil
}

// ClearMemo removes the memo when an account leaves the expiring state.
func (s *Store) ClearMemo(ctx context.Context, username string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if _, err := s.memos.DeleteOne(ctx, bson.M{"username": username}); err != nil {
		return fmt.Errorf("clear memo for %s: %w", username, err)
	}
	return nil
}
