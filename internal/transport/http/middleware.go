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
	"strings"
	"time"

	"github.com/eventsaas/eventsaas/internal/observability/logger"
	"github.com/eventsaas/eventsaas/internal/session"
	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/go-chi/chi/v5/middleware"
)

// SubscriptionCheckPath is where visitors of a lapsed tenant are sent.
const SubscriptionCheckPath = "/subscription-check/"

// subscriptionExempt lists tenant paths reachable while the subscription
// is inactive, so the tenant can log in and renew.
var subscriptionExempt = map[string]bool{
	SubscriptionCheckPath: true,
	"/plans/":             true,
	"/order/":             true,
	"/order/thankyou/":    true,
	"/orders/":            true,
	"/accounts/login/":    true,
	"/accounts/logout/":   true,
	"/health":             true,
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Host(r.Host),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Host(r.Host),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// TenantMiddleware resolves the request host to a company and binds it,
// and its schema, to the request context. Unknown hosts get 404.
func (h *Handler) TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		company, err := h.tenantService.Resolve(r.Context(), r.Host)
		if err != nil {
			if errors.Is(err, tenant.ErrDomainNotFound) {
				slog.WarnContext(r.Context(), "request for unknown host", logger.Host(r.Host))
				respondError(w, http.StatusNotFound, "no tenant is configured for this host")
				return
			}
			slog.ErrorContext(r.Context(), "failed to resolve tenant", logger.Host(r.Host), logger.Error(err))
			respondError(w, http.StatusInternalServerError, "failed to resolve tenant")
			return
		}

		ctx := tenant.WithCompany(r.Context(), company)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubscriptionMiddleware turns away requests to a tenant whose
// subscription has lapsed. Pages redirect to the subscription check;
// API calls get 402.
func (h *Handler) SubscriptionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		company, ok := tenant.CompanyFrom(r.Context())
		if !ok {
			respondError(w, http.StatusNotFound, "company not found")
			return
		}
		if company.IsPublic() || subscriptionExempt[r.URL.Path] ||
			company.SubscriptionActive(h.tenantService.Now()) {
			next.ServeHTTP(w, r)
			return
		}

		h.instruments.SubscriptionBlocked(r.Context(), company.SchemaName)
		slog.InfoContext(r.Context(), "request blocked by inactive subscription",
			logger.Schema(company.SchemaName),
			logger.Path(r.URL.Path),
		)

		if strings.HasPrefix(r.URL.Path, "/api/") {
			respondJSON(w, http.StatusPaymentRequired, map[string]any{
				"error":   "subscription inactive",
				"company": company.Name,
				"renew":   "/plans/",
			})
			return
		}
		http.Redirect(w, r, SubscriptionCheckPath, http.StatusSeeOther)
	})
}

// LoadSession attaches the session user to the context when the request
// carries a valid session for the current schema. It never rejects.
func (h *Handler) LoadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := h.getSessionFromCookie(r)
		if sessionID == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := h.sessionService.Get(r.Context(), sessionID)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionExpired):
				h.clearSessionCookie(w)
			case errors.Is(err, session.ErrSessionInvalid):
				slog.WarnContext(r.Context(), "discarding unreadable session", logger.Error(err))
				h.clearSessionCookie(w)
			default:
				slog.ErrorContext(r.Context(), "failed to load session", logger.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}

		schema, _ := tenant.SchemaFrom(r.Context())
		if sess.Schema != schema {
			slog.WarnContext(r.Context(), "session presented on another tenant",
				logger.Schema(schema),
				logger.String("session_schema", sess.Schema),
				logger.UserID(sess.UserID),
			)
			next.ServeHTTP(w, r)
			return
		}

		user, err := h.identityService.GetUser(r.Context(), sess.UserID)
		if err != nil || !user.IsActive {
			next.ServeHTTP(w, r)
			return
		}

		if err := h.sessionService.Refresh(r.Context(), sessionID); err != nil {
			slog.ErrorContext(r.Context(), "failed to refresh session", logger.Error(err))
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user, sess.ID)))
	})
}

// RequireAuth rejects anonymous requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUser(r.Context()) == nil {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireStaff admits staff and superusers of the current schema. Under
// the public host that means platform administrators.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := GetUser(r.Context())
		if u == nil {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if !u.IsStaff && !u.IsSuperuser {
			respondError(w, http.StatusForbidden, "staff access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CSRFMiddleware protects against Cross-Site Request Forgery for state-changing requests.
// We enforce a custom header 'X-CSRF-Token'.
func CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions || r.Method == http.MethodTrace {
			next.ServeHTTP(w, r)
			return
		}

		if r.Header.Get("X-CSRF-Token") == "" {
			slog.WarnContext(r.Context(), "missing CSRF token header", logger.Method(r.Method), logger.Path(r.URL.Path))
			respondError(w, http.StatusForbidden, "X-CSRF-Token header is required for state-changing requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// MetricsMiddleware records request latency per tenant schema.
func (h *Handler) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		schema, _ := tenant.SchemaFrom(r.Context())
		h.instruments.RequestDuration(r.Context(), schema, float64(time.Since(start).Microseconds())/1000)
	})
}
