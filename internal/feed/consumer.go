// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

// Package feed drains the login-event change feed and pushes each event
// through the correlator. The loop runs indefinitely: any read failure
// is logged, backed off, and answered with a re-subscription from the
// last durable resume marker. Delivery is at-least-once across
// reconnects; everything downstream recomputes from source history, so
// duplicates are harmless.
package feed

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tomtom215/warden/internal/detection"
	"github.com/tomtom215/warden/internal/logging"
	"github.com/tomtom215/warden/internal/metrics"
	"github.com/tomtom215/warden/internal/models"
	"github.com/tomtom215/warden/internal/store"
)

// Stream is one open subscription to the login feed. Satisfied by
// *store.LoginFeed.
type Stream interface {
	Next(ctx context.Context) (*models.LoginEvent, bson.Raw, error)
	Close(ctx context.Context) error
}

// Source provides subscriptions, checkpoints, and the last-login
// touch-up the consumer applies per event.
type Source interface {
	OpenLoginFeed(ctx context.Context, resumeToken bson.Raw) (Stream, error)
	LoadCheckpoint(ctx context.Context) (bson.Raw, error)
	SaveCheckpoint(ctx context.Context, token bson.Raw) error
	ClearCheckpoint(ctx context.Context) error
	TouchLastLogin(ctx context.Context, username string, ts time.Time) error
}

// Processor evaluates one login event. Satisfied by *detection.Engine.
type Processor interface {
	Process(ctx context.Context, ev *models.LoginEvent) ([]*detection.Finding, error)
}

// Config tunes the consumer's retry behavior.
type Config struct {
	// BackoffMin and BackoffMax bound the exponential reconnect
	// backoff.
	BackoffMin time.Duration
	BackoffMax time.Duration

	// ProcessAttempts is how many times a transiently failing event is
	// retried before it is skipped.
	ProcessAttempts int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		BackoffMin:      time.Second,
		BackoffMax:      30 * time.Second,
		ProcessAttempts: 3,
	}
}

// Consumer is the event consumption loop, run as a supervised service.
type Consumer struct {
	source    Source
	processor Processor
	config    Config
}

// NewConsumer creates the consumer.
func NewConsumer(source Source, processor Processor, config Config) *Consumer {
	if config.BackoffMin <= 0 {
		config.BackoffMin = time.Second
	}
	if config.BackoffMax < config.BackoffMin {
		config.BackoffMax = 30 * time.Second
	}
	if config.ProcessAttempts <= 0 {
		config.ProcessAttempts = 3
	}
	return &Consumer{source: source, processor: processor, config: config}
}

// Serve implements suture.Service. It returns only when the context is
// canceled; every failure inside is absorbed by backoff-and-resubscribe.
func (c *Consumer) Serve(ctx context.Context) error {
	backoff := c.config.BackoffMin

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		token, err := c.source.LoadCheckpoint(ctx)
		if err != nil {
			logging.Error().Err(err).Msg("load feed checkpoint, starting from now")
			token = nil
		}

		stream, err := c.source.OpenLoginFeed(ctx, token)
		if errors.Is(err, store.ErrFeedInvalidated) {
			logging.Warn().Msg("feed resume token invalidated, resubscribing from now")
			c.dropCheckpoint(ctx)
			if !sleep(ctx, c.config.BackoffMin) {
				return ctx.Err()
			}
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.FeedReconnects.Inc()
			logging.Error().Err(err).Dur("backoff", backoff).Msg("open login feed failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, c.config.BackoffMax)
			continue
		}

		logging.Info().Bool("resumed", token != nil).Msg("login feed subscribed")
		backoff = c.config.BackoffMin

		if err := c.drain(ctx, stream); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.FeedReconnects.Inc()
			if errors.Is(err, store.ErrFeedInvalidated) {
				logging.Warn().Msg("feed invalidated mid-stream, resubscribing from now")
				c.dropCheckpoint(ctx)
				continue
			}
			logging.Error().Err(err).Dur("backoff", backoff).Msg("login feed read failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff, c.config.BackoffMax)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (c *Consumer) String() string {
	return "login-feed-consumer"
}

// drain reads the stream until it fails or the context is canceled.
// The checkpoint is saved only after an event is fully processed, so a
// crash replays rather than loses events.
func (c *Consumer) drain(ctx context.Context, stream Stream) error {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = stream.Close(closeCtx)
	}()

	for {
		ev, token, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		if ev == nil {
			return ctx.Err()
		}

		metrics.FeedEventsTotal.Inc()
		if !ev.Timestamp.IsZero() {
			metrics.FeedLag.Set(time.Since(ev.Timestamp).Seconds())
		}

		c.handle(ctx, ev)

		if err := c.source.SaveCheckpoint(ctx, token); err != nil {
			logging.Error().Err(err).Msg("save feed checkpoint")
		}
	}
}

// handle evaluates one event. A malformed record is skipped outright; a
// transient failure is retried a few times, then skipped — one bad
// event must not stall the feed.
func (c *Consumer) handle(ctx context.Context, ev *models.LoginEvent) {
	if err := ev.Validate(); err != nil {
		metrics.FeedEventsSkipped.WithLabelValues("malformed").Inc()
		logging.Warn().
			Str("account", ev.Username).
			Str("ip", ev.IPAddress).
			Msg("skipping malformed login event")
		return
	}

	if err := c.source.TouchLastLogin(ctx, ev.Username, ev.Timestamp); err != nil {
		logging.Error().Err(err).Str("account", ev.Username).Msg("touch last_login")
	}

	var err error
	for attempt := 1; attempt <= c.config.ProcessAttempts; attempt++ {
		if _, err = c.processor.Process(ctx, ev); err == nil {
			return
		}
		if errors.Is(err, models.ErrMalformedEvent) {
			metrics.FeedEventsSkipped.WithLabelValues("malformed").Inc()
			return
		}
		if ctx.Err() != nil {
			return
		}
		if attempt < c.config.ProcessAttempts {
			if !sleep(ctx, c.config.BackoffMin*time.Duration(attempt)) {
				return
			}
		}
	}

	metrics.FeedEventsSkipped.WithLabelValues("process_error").Inc()
	logging.Error().Err(err).
		Str("account", ev.Username).
		Int("attempts", c.config.ProcessAttempts).
		Msg("giving up on login event")
}

func (c *Consumer) dropCheckpoint(ctx context.Context) {
	if err := c.source.ClearCheckpoint(ctx); err != nil {
		logging.Error().Err(err).Msg("clear feed checkpoint")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
