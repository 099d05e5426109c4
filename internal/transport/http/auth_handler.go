// Copyright 2026 The EventSaaS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/eventsaas/eventsaas/internal/audit"
	"github.com/eventsaas/eventsaas/internal/identity"
	"github.com/eventsaas/eventsaas/internal/observability/logger"
	"github.com/eventsaas/eventsaas/internal/tenant"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username" example:"admin"`
	Password string `json:"password" example:"secret123"`
}

// Login handles user login against the users of the current schema
// @Summary Login
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} identity.User
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /accounts/login/ [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, identity.ErrUserInactive):
			respondError(w, http.StatusForbidden, "account is disabled")
		default:
			respondServiceError(w, r, err, "log in")
		}
		return
	}

	schema, _ := tenant.SchemaFrom(r.Context())
	sess, err := h.sessionService.Create(r.Context(), schema, user.ID, getClientIP(r), r.UserAgent())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create session", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.setSessionCookie(w, sess.ID)

	h.auditRequest(r, audit.Event{
		Type:     audit.TypeLoginSuccess,
		Schema:   schema,
		ActorID:  user.ID,
		Resource: "session",
		Metadata: map[string]any{"session_id": sess.ID},
	})

	respondJSON(w, http.StatusOK, user)
}

// Logout destroys the current session. It succeeds even without one.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := h.getSessionFromCookie(r)
	if sessionID != "" {
		if sess, err := h.sessionService.Get(r.Context(), sessionID); err == nil {
			h.auditRequest(r, audit.Event{
				Type:     audit.TypeLogout,
				Schema:   sess.Schema,
				ActorID:  sess.UserID,
				Resource: "session",
				Metadata: map[string]any{"session_id": sess.ID},
			})
		}
		if err := h.sessionService.Destroy(r.Context(), sessionID); err != nil {
			slog.ErrorContext(r.Context(), "failed to destroy session", logger.Error(err))
		}
	}

	h.clearSessionCookie(w)

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// Signup registers a member of the current tenant and logs them in.
// @Summary Sign up
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body identity.SignupInput true "Account"
// @Success 201 {object} identity.User
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /accounts/signup/ [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req identity.SignupInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.identityService.Signup(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "create account")
		return
	}

	schema, _ := tenant.SchemaFrom(r.Context())
	sess, err := h.sessionService.Create(r.Context(), schema, user.ID, getClientIP(r), r.UserAgent())
	if err != nil {
		// The account exists; the user can still log in explicitly.
		slog.ErrorContext(r.Context(), "failed to create session after signup", logger.UserID(user.ID), logger.Error(err))
	} else {
		h.setSessionCookie(w, sess.ID)
	}

	respondJSON(w, http.StatusCreated, user)
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, GetUser(r.Context()))
}
