// Warden - Account Integrity and License Lifecycle Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/warden

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/warden/internal/models"
	"github.com/tomtom215/warden/internal/store"
)

// Directory is the read side of the account store used by the API.
// Satisfied by *store.Store.
type Directory interface {
	Ping(ctx context.Context) error
	FindAccount(ctx context.Context, username string) (*models.Account, error)
	RecentLogins(ctx context.Context, username string, limit int64) ([]models.LoginEvent, error)
	CountAccounts(ctx context.Context) (*store.AccountCounts, error)
}

// Lifecycle is the admin-triggered transition surface. Satisfied by
// *lifecycle.Manager.
type Lifecycle interface {
	Ban(ctx context.Context, username, reason string) error
	Reset(ctx context.Context, username string) error
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	directory Directory
	lifecycle Lifecycle
}

// NewHandler creates the handler set.
func NewHandler(directory Directory, lifecycle Lifecycle) *Handler {
	return &Handler{directory: directory, lifecycle: lifecycle}
}

// HealthLive reports process liveness. Always 200 once the server is up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]string{"status": "ok"})
}

// HealthReady reports readiness: the backing store must answer a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.directory.Ping(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "store unreachable")
		return
	}
	writeSuccess(w, map[string]string{"status": "ready"})
}

// accountView is the API projection of an account. The welcome message
// is internal and never exposed.
type accountView struct {
	Username    string     `json:"username"`
	Status      string     `json:"status"`
	LicenseType string     `json:"license_type,omitempty"`
	ExpiryDate  time.Time  `json:"expiry_date"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	BanReason   string     `json:"ban_reason,omitempty"`
	BannedAt    *time.Time `json:"banned_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func viewOf(acct *models.Account) accountView {
	return accountView{
		Username:    acct.Username,
		Status:      string(acct.Status),
		LicenseType: acct.LicenseType,
		ExpiryDate:  acct.ExpiryDate,
		LastLogin:   acct.LastLogin,
		BanReason:   acct.BanReason,
		BannedAt:    acct.BannedAt,
		CreatedAt:   acct.CreatedAt,
	}
}

// Account returns one account by username.
func (h *Handler) Account(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	acct, err := h.directory.FindAccount(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "account not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "account lookup failed")
		return
	}
	writeSuccess(w, viewOf(acct))
}

// AccountLogins returns the most recent login events for an account,
// newest first. The limit query parameter is clamped by the store.
func (h *Handler) AccountLogins(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	logins, err := h.directory.RecentLogins(r.Context(), username, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "login history lookup failed")
		return
	}
	writeSuccess(w, logins)
}

// Stats returns account counts by status.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.directory.CountAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "stats query failed")
		return
	}
	writeSuccess(w, counts)
}

type banRequest struct {
	Reason string `json:"reason"`
}

// Ban transitions an account to banned.
func (h *Handler) Ban(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req banRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "malformed request body")
			return
		}
	}

	if err := h.lifecycle.Ban(r.Context(), username, req.Reason); err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeSuccess(w, map[string]string{"username": username, "status": string(models.StatusBanned)})
}

// Reset returns a banned or lapsed account to active.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	if err := h.lifecycle.Reset(r.Context(), username); err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeSuccess(w, map[string]string{"username": username, "status": string(models.StatusActive)})
}

func (h *Handler) writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "account not found")
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, ErrCodeConflict, "account status does not permit this transition")
	default:
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "transition failed")
	}
}
