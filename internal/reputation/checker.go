// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

// Package reputation wraps the external VPN/proxy reputation service
// and the GeoIP resolver. Both lookups are bounded by a timeout and
// fail open: a failed VPN check answers false, a failed country lookup
// answers "Unknown". A lookup failure must never turn into a positive
// detection.
package reputation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/warden/internal/logging"
	"github.com/tomtom215/warden/internal/metrics"
)

// UnknownCountry is returned when country resolution fails.
const UnknownCountry = "Unknown"

// Config configures the checker.
type Config struct {
	// ProxyCheckURL is the base URL of the proxy reputation API,
	// queried as GET {ProxyCheckURL}/{ip}?vpn=1[&key=...].
	ProxyCheckURL string

	// ProxyCheckKey is the optional API key.
	ProxyCheckKey string

	// GeoURL is the base URL of the country resolver, queried as
	// GET {GeoURL}/{ip} and answering {"country": "..."}.
	GeoURL string

	// Timeout bounds each outbound call.
	Timeout time.Duration

	// RequestsPerSecond budgets outbound lookups across both services.
	RequestsPerSecond float64

	// BreakerFailures is the consecutive-failure count that opens the
	// reputation circuit breaker.
	BreakerFailures uint32

	// BreakerTimeout is how long the breaker stays open before probing
	// again.
	BreakerTimeout time.Duration
}

// Checker answers VPN/proxy and country questions about IPs. It is safe
// for concurrent use.
type Checker struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[bool]
}

// NewChecker creates a reputation checker. The HTTP client may be nil,
// in which case one with the configured timeout is constructed.
func NewChecker(config Config, client *http.Client) *Checker {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 5
	}
	if config.BreakerFailures == 0 {
		config.BreakerFailures = 5
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}

	breaker := gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:    "reputation",
		Timeout: config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("reputation circuit breaker state change")
		},
	})

	return &Checker{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		breaker: breaker,
	}
}

// IsAnonymizing reports whether the IP is a known VPN/proxy exit.
// Fail-open: rate-limit exhaustion, breaker-open, timeout, transport
// and decode errors all answer false.
func (c *Checker) IsAnonymizing(ctx context.Context, ip string) bool {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ReputationLookups.WithLabelValues("proxycheck", "error").Inc()
		return false
	}

	start := time.Now()
	verdict, err := c.breaker.Execute(func() (bool, error) {
		return c.queryProxyCheck(ctx, ip)
	})
	metrics.ReputationDuration.WithLabelValues("proxycheck").Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ReputationLookups.WithLabelValues("proxycheck", "breaker_open").Inc()
		return false
	case err != nil:
		metrics.ReputationLookups.WithLabelValues("proxycheck", "error").Inc()
		logging.Warn().Err(err).Str("ip", ip).Msg("vpn reputation lookup failed, assuming clean")
		return false
	}

	metrics.ReputationLookups.WithLabelValues("proxycheck", "ok").Inc()
	return verdict
}

// proxyCheckEntry is the per-IP object in the reputation API response.
type proxyCheckEntry struct {
	Proxy string `json:"proxy"`
	Type  string `json:"type,omitempty"`
}

func (c *Checker) queryProxyCheck(ctx context.Context, ip string) (bool, error) {
	u := fmt.Sprintf("%s/%s?vpn=1", c.config.ProxyCheckURL, url.PathEscape(ip))
	if c.config.ProxyCheckKey != "" {
		u += "&key=" + url.QueryEscape(c.config.ProxyCheckKey)
	}

	body, err := c.get(ctx, u)
	if err != nil {
		return false, err
	}

	// The API keys the result object by the queried IP:
	// {"status":"ok","1.2.3.4":{"proxy":"yes","type":"VPN"}}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return false, fmt.Errorf("decode reputation response: %w", err)
	}
	raw, ok := payload[ip]
	if !ok {
		return false, nil
	}
	var entry proxyCheckEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return false, fmt.Errorf("decode reputation entry: %w", err)
	}
	return entry.Proxy == "yes", nil
}

// CountryOf resolves the country of an IP. Fail-open: any failure
// answers UnknownCountry.
func (c *Checker) CountryOf(ctx context.Context, ip string) string {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ReputationLookups.WithLabelValues("geo", "error").Inc()
		return UnknownCountry
	}

	start := time.Now()
	country, err := c.queryGeo(ctx, ip)
	metrics.ReputationDuration.WithLabelValues("geo").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ReputationLookups.WithLabelValues("geo", "error").Inc()
		logging.Warn().Err(err).Str("ip", ip).Msg("country lookup failed")
		return UnknownCountry
	}

	metrics.ReputationLookups.WithLabelValues("geo", "ok").Inc()
	return country
}

func (c *Checker) queryGeo(ctx context.Context, ip string) (string, error) {
	body, err := c.get(ctx, c.config.GeoURL+"/"+url.PathEscape(ip))
	if err != nil {
		return "", err
	}

	var payload struct {
		Country string `json:"country"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode geo response: %w", err)
	}
	if payload.Country == "" {
		return UnknownCountry, nil
	}
	return payload.Country, nil
}

func (c *Checker) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
