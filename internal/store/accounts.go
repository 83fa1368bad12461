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

// FindAccount reads an account by username.
func (s *Store) FindAccount(ctx context.Context, username string) (*models.Account, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var acct models.Account
	err := s.accounts.FindOne(ctx, bson.M{"username": username}).Decode(&acct)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("account %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find account %s: %w", username, err)
	}
	return &acct, nil
}

// UpdateStatus applies a compare-and-set status transition: the update
// succeeds only if the account's current status is one of expected.
// Extra fields to set alongside the status go in set (may be nil);
// fields to remove go in unset. ErrConflict means a concurrent writer
// changed the status first; ErrNotFound means no such account.
func (s *Store) UpdateStatus(ctx context.Context, username string, expected []models.Status, to models.Status, set bson.M, unset []string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if set == nil {
		set = bson.M{}
	}
	set["status"] = to

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		u := bson.M{}
		for _, f := range unset {
			u[f] = ""
		}
		update["$unset"] = u
	}

	res, err := s.accounts.UpdateOne(ctx, bson.M{
		"username": username,
		"status":   bson.M{"$in": expected},
	}, update)
	if err != nil {
		return fmt.Errorf("update status of %s: %w", username, err)
	}
	if res.MatchedCount == 0 {
		// Distinguish a missing account from a lost race.
		if _, ferr := s.FindAccount(ctx, username); ferr != nil {
			return ferr
		}
		return fmt.Errorf("account %s: %w", username, ErrConflict)
	}
	return nil
}

// TouchLastLogin advances last_login to ts if it is newer than the
// stored value. Duplicate or reordered feed deliveries are no-ops.
func (s *Store) TouchLastLogin(ctx context.Context, username string, ts time.Time) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.accounts.UpdateOne(ctx,
		bson.M{"username": username},
		bson.M{"$max": bson.M{"last_login": ts}},
	)
	if err != nil {
		return fmt.Errorf("touch last_login of %s: %w", username, err)
	}
	return nil
}

// ActiveAccounts streams all accounts with status active to fn in
// batches. An fn error for one account is returned to the caller's
// iterator contract; cursor errors abort the scan.
func (s *Store) ActiveAccounts(ctx context.Context, batchSize int, fn func(*models.Account) error) error {
	return s.scanAccounts(ctx, bson.M{"status": models.StatusActive}, batchSize, fn)
}

// ExpiringAccounts streams accounts whose expiry_date lies in
// (now, now+horizon], regardless of how often the sweep runs.
func (s *Store) ExpiringAccounts(ctx context.Context, now time.Time, horizon time.Duration, batchSize int, fn func(*models.Account) error) error {
	filter := bson.M{
		"expiry_date": bson.M{
			"$gt":  now,
			"$lte": now.Add(horizon),
		},
	}
	return s.scanAccounts(ctx, filter, batchSize, fn)
}

// ExpiredAccounts streams accounts that are past expiry but still
// marked active.
func (s *Store) ExpiredAccounts(ctx context.Context, now time.Time, batchSize int, fn func(*models.Account) error) error {
	filter := bson.M{
		"expiry_date": bson.M{"$lte": now},
		"status":      models.StatusActive,
	}
	return s.scanAccounts(ctx, filter, batchSize, fn)
}

func (s *Store) scanAccounts(ctx context.Context, filter bson.M, batchSize int, fn func(*models.Account) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}

	cur, err := s.accounts.Find(ctx, filter, options.Find().SetBatchSize(int32(batchSize)))
	if err != nil {
		return fmt.Errorf("scan accounts: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var acct models.Account
		if err := cur.Decode(&acct); err != nil {
			return fmt.Errorf("decode account: %w", err)
		}
		if err := fn(&acct); err != nil {
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return fmt.Errorf("scan accounts cursor: %w", err)
	}
	return nil
}

// AccountCounts summarizes account statuses for the stats surface.
type AccountCounts struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
	Expired  int64 `json:"expired"`
	Banned   int64 `json:"banned"`
}

// CountAccounts tallies accounts by status.
func (s *Store) CountAccounts(ctx context.Context) (*AccountCounts, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	counts := &AccountCounts{}
	for _, c := range []struct {
		status models.Status
		dst    *int64
	}{
		{models.StatusActive, &counts.Active},
		{models.StatusInactive, &counts.Inactive},
		{models.StatusExpired, &counts.Expired},
		{models.StatusBanned, &counts.Banned},
	} {
		n, err := s.accounts.CountDocuments(ctx, bson.M{"status": c.status})
		if err != nil {
			return nil, fmt.Errorf("count %s accounts: %w", c.status, err)
		}
		*c.dst = n
		counts.Total += n
	}
	return counts, nil
}
