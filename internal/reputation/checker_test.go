// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package reputation

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig(proxyURL, geoURL string) Config {
	return Config{
		ProxyCheckURL:     proxyURL,
		GeoURL:            geoURL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
		BreakerFailures:   3,
		BreakerTimeout:    time.Minute,
	}
}

func TestChecker_IsAnonymizing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want bool
	}{
		{
			name: "vpn exit",
			body: `{"status":"ok","203.0.113.10":{"proxy":"yes","type":"VPN"}}`,
			want: true,
		},
		{
			name: "clean ip",
			body: `{"status":"ok","203.0.113.10":{"proxy":"no"}}`,
			want: false,
		},
		{
			name: "ip missing from response",
			body: `{"status":"ok"}`,
			want: false,
		},
		{
			name: "garbage response fails open",
			body: `not json`,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			c := NewChecker(testConfig(srv.URL, srv.URL), nil)
			if got := c.IsAnonymizing(context.Background(), "203.0.113.10"); got != tt.want {
				t.Errorf("IsAnonymizing = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChecker_IsAnonymizingServerErrorFailsOpen(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewChecker(testConfig(srv.URL, srv.URL), nil)
	if c.IsAnonymizing(context.Background(), "203.0.113.10") {
		t.Error("server error treated as a VPN verdict")
	}
}

func TestChecker_IsAnonymizingUnreachableFailsOpen(t *testing.T) {
	t.Parallel()

	// Reserved TEST-NET address, nothing listens there.
	c := NewChecker(Config{
		ProxyCheckURL:     "http://192.0.2.1:1",
		GeoURL:            "http://192.0.2.1:1",
		Timeout:           200 * time.Millisecond,
		RequestsPerSecond: 1000,
		BreakerFailures:   3,
		BreakerTimeout:    time.Minute,
	}, nil)

	if c.IsAnonymizing(context.Background(), "203.0.113.10") {
		t.Error("unreachable service treated as a VPN verdict")
	}
}

func TestChecker_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL, srv.URL)
	cfg.BreakerFailures = 3
	c := NewChecker(cfg, nil)

	for i := 0; i < 10; i++ {
		if c.IsAnonymizing(context.Background(), "203.0.113.10") {
			t.Fatal("failure answered true")
		}
	}

	// After three consecutive failures the breaker short-circuits; the
	// backend must not see all ten calls.
	if n := hits.Load(); n >= 10 {
		t.Errorf("backend hits = %d, breaker never opened", n)
	}
}

func TestChecker_CountryOf(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"country":"Germany"}`)
	}))
	defer srv.Close()

	c := NewChecker(testConfig(srv.URL, srv.URL), nil)
	if got := c.CountryOf(context.Background(), "203.0.113.10"); got != "Germany" {
		t.Errorf("CountryOf = %q, want Germany", got)
	}
}

func TestChecker_CountryOfFailsToUnknown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "empty country",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"country":""}`)
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `<html>`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewChecker(testConfig(srv.URL, srv.URL), nil)
			if got := c.CountryOf(context.Background(), "203.0.113.10"); got != UnknownCountry {
				t.Errorf("CountryOf = %q, want %q", got, UnknownCountry)
			}
		})
	}
}

func TestChecker_ProxyCheckKeyAppended(t *testing.T) {
	t.Parallel()

	var gotKey atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL, srv.URL)
	cfg.ProxyCheckKey = "secret-key"
	c := NewChecker(cfg, nil)

	c.IsAnonymizing(context.Background(), "203.0.113.10")

	if got, _ := gotKey.Load().(string); got != "secret-key" {
		t.Errorf("key = %q, want secret-key", got)
	}
}
