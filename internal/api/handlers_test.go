// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/warden/internal/models"
	"github.com/tomtom215/warden/internal/store"
)

// mockDirectory implements Directory over fixtures
type mockDirectory struct {
	accounts map[string]*models.Account
	logins   []models.LoginEvent
	pingErr  error
}

func (m *mockDirectory) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockDirectory) FindAccount(ctx context.Context, username string) (*models.Account, error) {
	acct, ok := m.accounts[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return acct, nil
}

func (m *mockDirectory) RecentLogins(ctx context.Context, username string, limit int64) ([]models.LoginEvent, error) {
	return m.logins, nil
}

func (m *mockDirectory) CountAccounts(ctx context.Context) (*store.AccountCounts, error) {
	return &store.AccountCounts{Total: 4, Active: 2, Inactive: 1, Banned: 1}, nil
}

// mockLifecycle records admin actions
type mockLifecycle struct {
	banned map[string]string
	reset  []string
	err    error
}

func (m *mockLifecycle) Ban(ctx context.Context, username, reason string) error {
	if m.err != nil {
		return m.err
	}
	if m.banned == nil {
		m.banned = make(map[string]string)
	}
	m.banned[username] = reason
	return nil
}

func (m *mockLifecycle) Reset(ctx context.Context, username string) error {
	if m.err != nil {
		return m.err
	}
	m.reset = append(m.reset, username)
	return nil
}

func testRouter(dir *mockDirectory, lc *mockLifecycle) http.Handler {
	return NewRouter(NewHandler(dir, lc), 1000)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	router := testRouter(&mockDirectory{}, &mockLifecycle{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("healthz = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz = %d, want 200", rec.Code)
	}
}

func TestReadyzStoreDown(t *testing.T) {
	t.Parallel()

	router := testRouter(&mockDirectory{pingErr: errors.New("no reachable servers")}, &mockLifecycle{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz = %d, want 503 when store is down", rec.Code)
	}
}

func TestAccountEndpoint(t *testing.T) {
	t.Parallel()

	expiry := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	dir := &mockDirectory{accounts: map[string]*models.Account{
		"steve": {
			Username:       "steve",
			Status:         models.StatusActive,
			LicenseType:    "premium",
			ExpiryDate:     expiry,
			WelcomeMessage: "internal only",
		},
	}}
	router := testRouter(dir, &mockLifecycle{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/steve/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	resp := decode(t, rec)
	if !resp.Success {
		t.Fatal("success = false")
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"username":"steve"`) {
		t.Errorf("body missing username: %s", body)
	}
	if strings.Contains(body, "internal only") {
		t.Error("welcome message leaked into API response")
	}
}

func TestAccountNotFound(t *testing.T) {
	t.Parallel()

	router := testRouter(&mockDirectory{}, &mockLifecycle{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/ghost/", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	resp := decode(t, rec)
	if resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("error code = %v, want NOT_FOUND", resp.Error)
	}
}

func TestAccountLoginsBadLimit(t *testing.T) {
	t.Parallel()

	router := testRouter(&mockDirectory{}, &mockLifecycle{})

	for _, limit := range []string{"abc", "-1", "0"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/steve/logins?limit="+limit, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", limit, rec.Code)
		}
	}
}

func TestBanEndpoint(t *testing.T) {
	t.Parallel()

	lc := &mockLifecycle{}
	router := testRouter(&mockDirectory{}, lc)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/accounts/steve/ban",
		strings.NewReader(`{"reason":"sharing credentials"}`))
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if lc.banned["steve"] != "sharing credentials" {
		t.Errorf("ban reason = %q", lc.banned["steve"])
	}
}

func TestBanEndpointNoBody(t *testing.T) {
	t.Parallel()

	lc := &mockLifecycle{}
	router := testRouter(&mockDirectory{}, lc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/accounts/steve/ban", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (reason is optional)", rec.Code)
	}
	if _, ok := lc.banned["steve"]; !ok {
		t.Error("ban not applied")
	}
}

func TestBanConflict(t *testing.T) {
	t.Parallel()

	router := testRouter(&mockDirectory{}, &mockLifecycle{err: store.ErrConflict})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/accounts/steve/ban", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 for an already banned account", rec.Code)
	}
}

func TestResetEndpoint(t *testing.T) {
	t.Parallel()

	lc := &mockLifecycle{}
	router := testRouter(&mockDirectory{}, lc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/accounts/steve/reset", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(lc.reset) != 1 || lc.reset[0] != "steve" {
		t.Errorf("reset = %v, want [steve]", lc.reset)
	}
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()

	router := testRouter(&mockDirectory{}, &mockLifecycle{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"total":4`) {
		t.Errorf("body missing counts: %s", rec.Body.String())
	}
}
