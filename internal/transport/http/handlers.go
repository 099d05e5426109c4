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

// @title EventSaaS API
// @version 1.0.0
// @description Multi-tenant event management

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name eventsaas_session

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventsaas/eventsaas/internal/audit"
	"github.com/eventsaas/eventsaas/internal/billing"
	"github.com/eventsaas/eventsaas/internal/event"
	"github.com/eventsaas/eventsaas/internal/id"
	"github.com/eventsaas/eventsaas/internal/identity"
	"github.com/eventsaas/eventsaas/internal/observability/logger"
	"github.com/eventsaas/eventsaas/internal/observability/metrics"
	"github.com/eventsaas/eventsaas/internal/session"
	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	tenantService   *tenant.Service
	billingService  *billing.Service
	eventService    *event.Service
	identityService *identity.Service
	sessionService  *session.Service
	auditLogger     audit.Logger
	instruments     *metrics.Instruments
	sessionConfig   SessionConfig
}

// SessionConfig holds session cookie configuration. Cookies are host-only
// so a tenant's cookie is never sent to another tenant's domain.
type SessionConfig struct {
	CookieName     string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite http.SameSite
}

// NewHandler creates a new HTTP handler. instruments may be nil.
func NewHandler(
	tenantService *tenant.Service,
	billingService *billing.Service,
	eventService *event.Service,
	identityService *identity.Service,
	sessionService *session.Service,
	auditLogger audit.Logger,
	instruments *metrics.Instruments,
	sessionConfig SessionConfig,
) *Handler {
	return &Handler{
		tenantService:   tenantService,
		billingService:  billingService,
		eventService:    eventService,
		identityService: identityService,
		sessionService:  sessionService,
		auditLogger:     auditLogger,
		instruments:     instruments,
		sessionConfig:   sessionConfig,
	}
}

// NewRouter creates the HTTP router. Every request except /health is
// resolved to a company by host, then dispatched to the public or the
// tenant route table.
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.HealthCheck)

	public := h.PublicRouter()
	tenantSite := h.TenantRouter()
	r.With(h.TenantMiddleware, h.MetricsMiddleware).Mount("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, ok := tenant.CompanyFrom(r.Context()); ok && c.IsPublic() {
			public.ServeHTTP(w, r)
			return
		}
		tenantSite.ServeHTTP(w, r)
	}))

	return r
}

// HealthResponse is the body of the health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HealthCheck returns the health status
// @Summary Health Check
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: "eventsaas",
	})
}

// Helper functions
func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	maxAge := 86400
	if h.sessionService != nil {
		maxAge = int(h.sessionService.Lifetime().Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.sessionConfig.CookieName,
		Value:    sessionID,
		Path:     h.sessionConfig.CookiePath,
		Secure:   h.sessionConfig.CookieSecure,
		HttpOnly: h.sessionConfig.CookieHTTPOnly,
		SameSite: h.sessionConfig.CookieSameSite,
		MaxAge:   maxAge,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   h.sessionConfig.CookieName,
		Value:  "",
		Path:   h.sessionConfig.CookiePath,
		MaxAge: -1,
	})
}

func (h *Handler) getSessionFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(h.sessionConfig.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps domain errors onto HTTP statuses. Anything
// unrecognised is logged and reported as a generic 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tenant.ErrCompanyNotFound),
		errors.Is(err, tenant.ErrDomainNotFound),
		errors.Is(err, billing.ErrPlanNotFound),
		errors.Is(err, billing.ErrOrderNotFound),
		errors.Is(err, event.ErrEventNotFound),
		errors.Is(err, event.ErrRegistrationNotFound),
		errors.Is(err, identity.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tenant.ErrCompanyExists),
		errors.Is(err, tenant.ErrDomainExists),
		errors.Is(err, billing.ErrPlanExists),
		errors.Is(err, billing.ErrOrderNotPending),
		errors.Is(err, event.ErrAlreadyRegistered),
		errors.Is(err, identity.ErrUserAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, tenant.ErrInvalidName),
		errors.Is(err, tenant.ErrInvalidDomain),
		errors.Is(err, tenant.ErrInvalidSchemaName),
		errors.Is(err, tenant.ErrPublicTenant),
		errors.Is(err, billing.ErrInvalidPlan),
		errors.Is(err, billing.ErrInvalidPeriod),
		errors.Is(err, billing.ErrPlanInactive),
		errors.Is(err, event.ErrInvalidEvent),
		errors.Is(err, event.ErrRegistrationClosed),
		errors.Is(err, identity.ErrInvalidUsername),
		errors.Is(err, identity.ErrInvalidEmail),
		errors.Is(err, identity.ErrWeakPassword),
		errors.Is(err, identity.ErrPasswordMismatch):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			logger.Operation(op),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		respondError(w, status, "failed to "+op)
		return
	}
	respondError(w, status, rootMessage(err))
}

// rootMessage returns the message of the innermost sentinel so wrapped
// detail such as SQL text never reaches the client.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		tenant.ErrCompanyNotFound, tenant.ErrDomainNotFound, tenant.ErrCompanyExists,
		tenant.ErrDomainExists, tenant.ErrInvalidName, tenant.ErrInvalidDomain,
		tenant.ErrInvalidSchemaName, tenant.ErrPublicTenant,
		billing.ErrPlanNotFound, billing.ErrOrderNotFound, billing.ErrPlanExists,
		billing.ErrOrderNotPending, billing.ErrInvalidPeriod, billing.ErrPlanInactive,
		event.ErrEventNotFound, event.ErrRegistrationNotFound, event.ErrAlreadyRegistered,
		event.ErrRegistrationClosed,
		identity.ErrUserNotFound, identity.ErrUserAlreadyExists, identity.ErrInvalidUsername,
		identity.ErrInvalidEmail, identity.ErrWeakPassword, identity.ErrPasswordMismatch,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	// Validation errors carry a field-level reason after the sentinel.
	return err.Error()
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// pathID reads a UUID path parameter. ok is false when the value is not a
// UUID, which handlers answer with 404.
func pathID(r *http.Request, name string) (string, bool) {
	v := chi.URLParam(r, name)
	return v, id.Valid(v)
}

// IDsRequest carries the selection of a bulk action.
type IDsRequest struct {
	IDs []string `json:"ids"`
}

func (req IDsRequest) valid() bool {
	if len(req.IDs) == 0 {
		return false
	}
	for _, v := range req.IDs {
		if !id.Valid(v) {
			return false
		}
	}
	return true
}

func (h *Handler) auditRequest(r *http.Request, e audit.Event) {
	if h.auditLogger == nil {
		return
	}
	e.IPAddress = getClientIP(r)
	e.UserAgent = r.UserAgent()
	h.auditLogger.Log(r.Context(), e)
}
