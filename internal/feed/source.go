// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package feed

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tomtom215/warden/internal/store"
)

// storeSource adapts *store.Store to the Source interface. The only
// translation needed is the OpenLoginFeed return type.
type storeSource struct {
	st *store.Store
}

// NewStoreSource wraps st as the consumer's event source.
func NewStoreSource(st *store.Store) Source {
	return &storeSource{st: st}
}

func (s *storeSource) OpenLoginFeed(ctx context.Context, resumeToken bson.Raw) (Stream, error) {
	feed, err := s.st.OpenLoginFeed(ctx, resumeToken)
	if err != nil {
		return nil, err
	}
	return feed, nil
}

func (s *storeSource) LoadCheckpoint(ctx context.Context) (bson.Raw, error) {
	return s.st.LoadCheckpoint(ctx)
}

func (s *storeSource) SaveCheckpoint(ctx context.Context, token bson.Raw) error {
	return s.st.SaveCheckpoint(ctx, token)
}

func (s *storeSource) ClearCheckpoint(ctx context.Context) error {
	return s.st.ClearCheckpoint(ctx)
}

func (s *storeSource) TouchLastLogin(ctx context.Context, username string, ts time.Time) error {
	return s.st.TouchLastLogin(ctx, username, ts)
}

var _ Stream = (*store.LoginFeed)(nil)
