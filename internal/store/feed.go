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

// loginFeedName keys the login change feed's checkpoint document.
const loginFeedName = "login_events"

// ErrFeedInvalidated is returned when the server can no longer resume
// from the supplied token (typically the oplog has rolled past it).
// The consumer must re-subscribe from "now".
var ErrFeedInvalidated = errors.New("store: change feed resume token invalidated")

// LoginFeed is one open change stream over the login log, delivering
// inserted login events in store insertion order.
type LoginFeed struct {
	stream *mongo.ChangeStream
}

// OpenLoginFeed subscribes to login-event inserts. A nil resumeToken
// starts from now; otherwise the stream resumes after the token.
// Resume-token errors surface as ErrFeedInvalidated.
func (s *Store) OpenLoginFeed(ctx context.Context, resumeToken bson.Raw) (*LoginFeed, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": "insert"}}},
	}

	opts := options.ChangeStream()
	if resumeToken != nil {
		opts.SetResumeAfter(resumeToken)
	}

	stream, err := s.logins.Watch(ctx, pipeline, opts)
	if err != nil {
		if isResumeTokenError(err) {
			return nil, fmt.Errorf("open login feed: %w", ErrFeedInvalidated)
		}
		return nil, fmt.Errorf("open login feed: %w", err)
	}
	return &LoginFeed{stream: stream}, nil
}

// loginChange is the change-stream envelope for an insert.
type loginChange struct {
	FullDocument models.LoginEvent `bson:"fullDocument"`
}

// Next blocks until the next inserted login event, the context is
// canceled, or the stream fails. The returned token resumes the feed
// after this event.
func (f *LoginFeed) Next(ctx context.Context) (*models.LoginEvent, bson.Raw, error) {
	if !f.stream.Next(ctx) {
		if err := f.stream.Err(); err != nil {
			if isResumeTokenError(err) {
				return nil, nil, ErrFeedInvalidated
			}
			return nil, nil, fmt.Errorf("read login feed: %w", err)
		}
		return nil, nil, ctx.Err()
	}

	var change loginChange
	if err := f.stream.Decode(&change); err != nil {
		return nil, nil, fmt.Errorf("decode login change: %w", err)
	}
	return &change.FullDocument, f.stream.ResumeToken(), nil
}

// Close tears down the stream.
func (f *LoginFeed) Close(ctx context.Context) error {
	return f.stream.Close(ctx)
}

// isResumeTokenError detects the server errors that mean the resume
// position is gone: ChangeStreamHistoryLost (286), ChangeStreamFatalError
// (280), and the older CappedPositionLost (136).
func isResumeTokenError(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		switch cmdErr.Code {
		case 136, 280, 286:
			return true
		}
	}
	return false
}

// LoadCheckpoint reads the persisted resume token for the login feed,
// or nil when none has been saved yet.
func (s *Store) LoadCheckpoint(ctx context.Context) (bson.Raw, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var cp models.FeedCheckpoint
	err := s.checkpoints.FindOne(ctx, bson.M{"feed": loginFeedName}).Decode(&cp)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load feed checkpoint: %w", err)
	}
	if len(cp.ResumeToken) == 0 {
		return nil, nil
	}
	return bson.Raw(cp.ResumeToken), nil
}

// SaveCheckpoint persists the resume token after an event has been
// fully processed, making it the durable resume marker.
func (s *Store) SaveCheckpoint(ctx context.Context, token bson.Raw) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	_, err := s.checkpoints.UpdateOne(ctx,
		bson.M{"feed": loginFeedName},
		bson.M{"$set": bson.M{
			"resume_token": []byte(token),
			"updated_at":   time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save feed checkpoint: %w", err)
	}
	return nil
}

// ClearCheckpoint drops the persisted token after the server reports it
// unusable, so the next subscription starts from now.
func (s *Store) ClearCheckpoint(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	if _, err := s.checkpoints.DeleteOne(ctx, bson.M{"feed": loginFeedName}); err != nil {
		return fmt.Errorf("clear feed checkpoint: %w", err)
	}
	return nil
}
