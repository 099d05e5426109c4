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
	"net/http"
	"time"

	"github.com/eventsaas/eventsaas/internal/billing"
	"github.com/eventsaas/eventsaas/internal/id"
	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/go-chi/chi/v5"
)

// TenantRouter serves a tenant's own host: its event site, account pages,
// subscription ordering and JSON API.
func (h *Handler) TenantRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(h.SubscriptionMiddleware)
	r.Use(h.LoadSession)
	r.Use(CSRFMiddleware)

	r.Post("/accounts/login/", h.Login)
	r.Post("/accounts/logout/", h.Logout)
	r.Post("/accounts/signup/", h.Signup)
	r.With(RequireAuth).Get("/accounts/me/", h.Me)

	r.Get(SubscriptionCheckPath, h.SubscriptionCheck)
	r.Get("/plans/", h.TenantPlans)
	r.With(RequireStaff).Post("/order/", h.PlaceOrder)
	r.With(RequireStaff).Get("/order/thankyou/", h.OrderThankYou)
	r.With(RequireStaff).Get("/orders/", h.TenantOrders)

	r.Get("/", h.EventList)
	r.Get("/event/{eventID}/", h.EventDetail)
	r.With(RequireAuth).Post("/event/{eventID}/register/", h.RegisterForEvent)
	r.With(RequireAuth).Post("/event/{eventID}/cancel/", h.CancelRegistration)
	r.With(RequireAuth).Get("/my-registrations/", h.MyRegistrations)

	r.With(RequireStaff).Get("/company/{schema}/users/", h.CompanyUsers)

	r.Route("/admin/events", func(r chi.Router) {
		r.Use(RequireStaff)
		r.Get("/", h.AdminListEvents)
		r.Post("/", h.AdminCreateEvent)
		r.Get("/{eventID}/", h.AdminGetEvent)
		r.Put("/{eventID}/", h.AdminUpdateEvent)
		r.Delete("/{eventID}/", h.AdminDeleteEvent)
		r.Get("/{eventID}/registrations/", h.AdminListRegistrations)
	})

	r.Get("/api/tenant-info/", h.TenantInfo)
	r.Get("/api/events/", h.EventsAPI)

	return r
}

// currentCompany returns the company TenantMiddleware bound to the request.
func currentCompany(r *http.Request) *tenant.Company {
	c, _ := tenant.CompanyFrom(r.Context())
	return c
}

// SubscriptionStatus describes a tenant's subscription to its own visitors.
type SubscriptionStatus struct {
	Company              string          `json:"company"`
	IsActiveSubscription bool            `json:"is_active_subscription"`
	SubscriptionActive   bool            `json:"subscription_active"`
	OnTrial              bool            `json:"on_trial"`
	PaidUntil            *time.Time      `json:"paid_until"`
	CurrentPlanID        *string         `json:"current_plan_id"`
	Plans                []*billing.Plan `json:"plans"`
}

// SubscriptionCheck reports the tenant's subscription state and the plans
// on offer. Lapsed tenants are redirected here.
// @Summary Subscription status
// @Tags Billing
// @Produce json
// @Success 200 {object} SubscriptionStatus
// @Router /subscription-check/ [get]
func (h *Handler) SubscriptionCheck(w http.ResponseWriter, r *http.Request) {
	c := currentCompany(r)
	plans, err := h.billingService.ListPlans(r.Context(), true)
	if err != nil {
		respondServiceError(w, r, err, "list plans")
		return
	}
	respondJSON(w, http.StatusOK, SubscriptionStatus{
		Company:              c.Name,
		IsActiveSubscription: c.IsActiveSubscription,
		SubscriptionActive:   c.SubscriptionActive(h.tenantService.Now()),
		OnTrial:              c.OnTrial,
		PaidUntil:            c.PaidUntil,
		CurrentPlanID:        c.CurrentPlanID,
		Plans:                plans,
	})
}

// PlanView is an active plan as offered to a tenant.
type PlanView struct {
	*billing.Plan
	Price    string   `json:"price"`
	Features []string `json:"feature_list"`
	Current  bool     `json:"current"`
}

// TenantPlans lists the active plans, marking the tenant's current one.
func (h *Handler) TenantPlans(w http.ResponseWriter, r *http.Request) {
	c := currentCompany(r)
	plans, err := h.billingService.ListPlans(r.Context(), true)
	if err != nil {
		respondServiceError(w, r, err, "list plans")
		return
	}
	out := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		out = append(out, PlanView{
			Plan:     p,
			Price:    billing.FormatCents(p.PriceCents),
			Features: p.FeatureList(),
			Current:  c.CurrentPlanID != nil && *c.CurrentPlanID == p.ID,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// PlaceOrderRequest represents a subscription order
type PlaceOrderRequest struct {
	PlanID string `json:"plan_id"`
	Notes  string `json:"notes"`
}

// PlaceOrder records a pending order for the current tenant
// @Summary Place Order
// @Tags Billing
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body PlaceOrderRequest true "Order"
// @Success 201 {object} billing.Order
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /order/ [post]
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !id.Valid(req.PlanID) {
		respondError(w, http.StatusBadRequest, "plan_id is required")
		return
	}

	o, err := h.billingService.PlaceOrder(r.Context(), currentCompany(r).ID, req.PlanID, req.Notes, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "place order")
		return
	}
	w.Header().Set("Location", "/order/thankyou/?order="+o.ID)
	respondJSON(w, http.StatusCreated, o)
}

// OrderThankYou confirms an order placed by this tenant (?order=<id>).
func (h *Handler) OrderThankYou(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order")
	if !id.Valid(orderID) {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	o, err := h.billingService.GetOrder(r.Context(), orderID)
	if err != nil {
		respondServiceError(w, r, err, "load order")
		return
	}
	if o.CompanyID != currentCompany(r).ID {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"order":   o,
		"message": "Thank you. Your order is awaiting approval.",
	})
}

// TenantOrders lists the current tenant's orders, newest first.
func (h *Handler) TenantOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.billingService.ListOrders(r.Context(), billing.OrderFilter{CompanyID: currentCompany(r).ID})
	if err != nil {
		respondServiceError(w, r, err, "list orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// TenantInfoResponse is the public profile of the current tenant.
type TenantInfoResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
	SchemaName  string `json:"schema_name"`
}

// TenantInfo returns the current tenant's profile
// @Summary Tenant info
// @Tags API
// @Produce json
// @Success 200 {object} TenantInfoResponse
// @Failure 400 {object} map[string]string
// @Failure 402 {object} map[string]string
// @Router /api/tenant-info/ [get]
func (h *Handler) TenantInfo(w http.ResponseWriter, r *http.Request) {
	c := currentCompany(r)
	if c.IsPublic() {
		respondError(w, http.StatusBadRequest, "public schema")
		return
	}
	respondJSON(w, http.StatusOK, TenantInfoResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Logo:        c.LogoURL,
		SchemaName:  c.SchemaName,
	})
}

// EventsAPI lists published events by start date with registration counts.
func (h *Handler) EventsAPI(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventService.ListPublishedFlat(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "list events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}
