// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package store

import (
	"errors"
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsResumeTokenError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "history lost", err: mongo.CommandError{Code: 286, Message: "ChangeStreamHistoryLost"}, want: true},
		{name: "fatal stream error", err: mongo.CommandError{Code: 280, Message: "ChangeStreamFatalError"}, want: true},
		{name: "capped position lost", err: mongo.CommandError{Code: 136, Message: "CappedPositionLost"}, want: true},
		{name: "wrapped", err: fmt.Errorf("watch: %w", mongo.CommandError{Code: 286}), want: true},
		{name: "other command error", err: mongo.CommandError{Code: 11600, Message: "InterruptedAtShutdown"}, want: false},
		{name: "plain error", err: errors.New("network unreachable"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isResumeTokenError(tt.err); got != tt.want {
				t.Errorf("isResumeTokenError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
