// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

// Package store is the MongoDB document store behind the engine:
// account point reads and conditional updates, login history queries,
// expiry notification memos, and the resumable login change feed.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tomtom215/warden/internal/config"
	"github.com/tomtom215/warden/internal/logging"
)

var (
	// ErrNotFound is returned when a point read matches no document.
	ErrNotFound = errors.New("store: document not found")

	// ErrConflict is returned when a conditional update matched the
	// document but not the expected status. The caller lost a race to
	// a concurrent writer and must re-read before retrying.
	ErrConflict = errors.New("store: conditional update conflict")
)

// Store owns the Mongo client and the collection handles. It is the
// explicitly constructed dependency the composition root passes to
// every component; nothing in the engine reaches for a global session.
type Store struct {
	client      *mongo.Client
	accounts    *mongo.Collection
	logins      *mongo.Collection
	memos       *mongo.Collection
	checkpoints *mongo.Collection
	opTimeout   time.Duration
}

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &Store{
		client:      client,
		accounts:    db.Collection(cfg.AccountsCollection),
		logins:      db.Collection(cfg.LoginsCollection),
		memos:       db.Collection(cfg.MemosCollection),
		checkpoints: db.Collection(cfg.CheckpointsCollection),
		opTimeout:   cfg.OperationTimeout,
	}

	logging.Info().
		Str("database", cfg.Database).
		Str("accounts", cfg.AccountsCollection).
		Str("logins", cfg.LoginsCollection).
		Msg("connected to mongodb")
	return s, nil
}

// Ping verifies the store is reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// opContext bounds a single store operation.
func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}
