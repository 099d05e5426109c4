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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eventsaas/eventsaas/internal/billing"
	"github.com/eventsaas/eventsaas/internal/id"
	"github.com/eventsaas/eventsaas/internal/observability/logger"
	"github.com/eventsaas/eventsaas/internal/tenant"
)

// dateLayout is the wire format of calendar dates such as paid_until.
const dateLayout = "2006-01-02"

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateCompanyRequest represents company creation data
type CreateCompanyRequest struct {
	Name                 string  `json:"name" example:"Acme Events"`
	Domain               string  `json:"domain" example:"acme.localhost"`
	Description          string  `json:"description"`
	ContactEmail         string  `json:"contact_email"`
	Phone                string  `json:"phone"`
	LogoURL              string  `json:"logo_url"`
	OnTrial              *bool   `json:"on_trial"`
	IsActiveSubscription bool    `json:"is_active_subscription"`
	PaidUntil            *string `json:"paid_until" example:"2026-12-31"`
}

// AdminListCompanies lists tenant companies
func (h *Handler) AdminListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.tenantService.ListCompanies(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "list companies")
		return
	}
	respondJSON(w, http.StatusOK, companies)
}

// AdminCreateCompany creates a tenant with its primary domain and schema
// @Summary Create Company
// @Tags Admin
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body CreateCompanyRequest true "Company"
// @Success 201 {object} tenant.Company
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /admin/companies/ [post]
func (h *Handler) AdminCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req CreateCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	paidUntil, err := parseDate(req.PaidUntil)
	if err != nil {
		respondError(w, http.StatusBadRequest, "paid_until must be YYYY-MM-DD")
		return
	}
	onTrial := true
	if req.OnTrial != nil {
		onTrial = *req.OnTrial
	}

	company, err := h.tenantService.CreateCompany(r.Context(), tenant.NewCompany{
		Name:                 req.Name,
		Domain:               req.Domain,
		Description:          req.Description,
		ContactEmail:         req.ContactEmail,
		Phone:                req.Phone,
		LogoURL:              req.LogoURL,
		OnTrial:              onTrial,
		IsActiveSubscription: req.IsActiveSubscription,
		PaidUntil:            paidUntil,
		ActorID:              GetUserID(r.Context()),
	})
	if err != nil {
		respondServiceError(w, r, err, "create company")
		return
	}
	respondJSON(w, http.StatusCreated, company)
}

// CompanyAdminView is a company with its domains and orders.
type CompanyAdminView struct {
	Company            *tenant.Company  `json:"company"`
	PrimaryDomain      *tenant.Domain   `json:"primary_domain"`
	SubscriptionActive bool             `json:"subscription_active"`
	Orders             []*billing.Order `json:"orders"`
}

// AdminGetCompany shows one company
func (h *Handler) AdminGetCompany(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(r, "companyID")
	if !ok {
		respondError(w, http.StatusNotFound, "company not found")
		return
	}
	company, err := h.tenantService.GetCompany(r.Context(), companyID)
	if err != nil {
		respondServiceError(w, r, err, "load company")
		return
	}
	domain, err := h.tenantService.PrimaryDomain(r.Context(), companyID)
	if err != nil && !errors.Is(err, tenant.ErrDomainNotFound) {
		respondServiceError(w, r, err, "load company")
		return
	}
	orders, err := h.billingService.ListOrders(r.Context(), billing.OrderFilter{CompanyID: companyID})
	if err != nil {
		respondServiceError(w, r, err, "load company")
		return
	}
	respondJSON(w, http.StatusOK, CompanyAdminView{
		Company:            company,
		PrimaryDomain:      domain,
		SubscriptionActive: company.IsPublic() || company.SubscriptionActive(h.tenantService.Now()),
		Orders:             orders,
	})
}

// UpdateCompanyRequest carries an admin edit. Omitted fields are left
// unchanged.
type UpdateCompanyRequest struct {
	Description          *string `json:"description"`
	ContactEmail         *string `json:"contact_email"`
	Phone                *string `json:"phone"`
	LogoURL              *string `json:"logo_url"`
	IsActiveSubscription *bool   `json:"is_active_subscription"`
	OnTrial              *bool   `json:"on_trial"`
	PaidUntil            *string `json:"paid_until"`
	ClearPaidUntil       bool    `json:"clear_paid_until"`
	SubscriptionStart    *string `json:"subscription_start"`
}

// AdminUpdateCompany edits a company's profile and subscription fields
func (h *Handler) AdminUpdateCompany(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(r, "companyID")
	if !ok {
		respondError(w, http.StatusNotFound, "company not found")
		return
	}
	var req UpdateCompanyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	paidUntil, err := parseDate(req.PaidUntil)
	if err != nil {
		respondError(w, http.StatusBadRequest, "paid_until must be YYYY-MM-DD")
		return
	}
	var start *time.Time
	if req.SubscriptionStart != nil {
		t, err := time.Parse(time.RFC3339, *req.SubscriptionStart)
		if err != nil {
			respondError(w, http.StatusBadRequest, "subscription_start must be RFC 3339")
			return
		}
		start = &t
	}

	company, err := h.tenantService.UpdateCompany(r.Context(), companyID, tenant.CompanyUpdate{
		Description:          req.Description,
		ContactEmail:         req.ContactEmail,
		Phone:                req.Phone,
		LogoURL:              req.LogoURL,
		IsActiveSubscription: req.IsActiveSubscription,
		OnTrial:              req.OnTrial,
		PaidUntil:            paidUntil,
		ClearPaidUntil:       req.ClearPaidUntil,
		SubscriptionStart:    start,
	}, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "update company")
		return
	}
	respondJSON(w, http.StatusOK, company)
}

// AdminDeleteCompany removes a tenant and drops its schema
func (h *Handler) AdminDeleteCompany(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(r, "companyID")
	if !ok {
		respondError(w, http.StatusNotFound, "company not found")
		return
	}
	if err := h.tenantService.DeleteCompany(r.Context(), companyID, GetUserID(r.Context())); err != nil {
		respondServiceError(w, r, err, "delete company")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Bulk company actions.
const (
	ActionActivateSubscription   = "activate_subscription"
	ActionDeactivateSubscription = "deactivate_subscription"
	ActionMarkTrial              = "mark_trial"
	ActionRemoveTrial            = "remove_trial"
)

// CompanyActionRequest applies one bulk action to a selection of companies.
type CompanyActionRequest struct {
	Action string   `json:"action" example:"activate_subscription"`
	IDs    []string `json:"ids"`
}

// AdminCompanyAction runs a bulk subscription action
func (h *Handler) AdminCompanyAction(w http.ResponseWriter, r *http.Request) {
	var req CompanyActionRequest
	if err := decodeJSON(r, &req); err != nil || !(IDsRequest{IDs: req.IDs}).valid() {
		respondError(w, http.StatusBadRequest, "a non-empty list of company ids is required")
		return
	}

	actions := map[string]func(context.Context, []string, string) (int64, error){
		ActionActivateSubscription:   h.tenantService.ActivateSubscriptions,
		ActionDeactivateSubscription: h.tenantService.DeactivateSubscriptions,
		ActionMarkTrial:              h.tenantService.MarkTrial,
		ActionRemoveTrial:            h.tenantService.RemoveTrial,
	}
	apply, ok := actions[req.Action]
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown action")
		return
	}

	n, err := apply(r.Context(), req.IDs, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, req.Action)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"action": req.Action, "updated": n})
}

// AdminListDomains lists every domain with its tenant's status
func (h *Handler) AdminListDomains(w http.ResponseWriter, r *http.Request) {
	domains, err := h.tenantService.ListDomains(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "list domains")
		return
	}
	respondJSON(w, http.StatusOK, domains)
}

// AddDomainRequest attaches a host to a company.
type AddDomainRequest struct {
	CompanyID string `json:"company_id"`
	Domain    string `json:"domain" example:"events.acme.test"`
	IsPrimary bool   `json:"is_primary"`
}

// AdminAddDomain attaches a domain to a company
func (h *Handler) AdminAddDomain(w http.ResponseWriter, r *http.Request) {
	var req AddDomainRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !id.Valid(req.CompanyID) {
		respondError(w, http.StatusBadRequest, "company_id is required")
		return
	}
	d, err := h.tenantService.AddDomain(r.Context(), req.CompanyID, req.Domain, req.IsPrimary, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "add domain")
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

// AdminRemoveDomain detaches a domain
func (h *Handler) AdminRemoveDomain(w http.ResponseWriter, r *http.Request) {
	domainID, ok := pathID(r, "domainID")
	if !ok {
		respondError(w, http.StatusNotFound, "domain not found")
		return
	}
	if err := h.tenantService.RemoveDomain(r.Context(), domainID, GetUserID(r.Context())); err != nil {
		respondServiceError(w, r, err, "remove domain")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminListPlans lists all plans, inactive ones included
func (h *Handler) AdminListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.billingService.ListPlans(r.Context(), false)
	if err != nil {
		respondServiceError(w, r, err, "list plans")
		return
	}
	respondJSON(w, http.StatusOK, plans)
}

// AdminCreatePlan adds a plan
func (h *Handler) AdminCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req billing.PlanInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.billingService.CreatePlan(r.Context(), req, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "create plan")
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

// AdminGetPlan shows one plan
func (h *Handler) AdminGetPlan(w http.ResponseWriter, r *http.Request) {
	planID, ok := pathID(r, "planID")
	if !ok {
		respondError(w, http.StatusNotFound, "plan not found")
		return
	}
	p, err := h.billingService.GetPlan(r.Context(), planID)
	if err != nil {
		respondServiceError(w, r, err, "load plan")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// AdminUpdatePlan replaces a plan's editable fields
func (h *Handler) AdminUpdatePlan(w http.ResponseWriter, r *http.Request) {
	planID, ok := pathID(r, "planID")
	if !ok {
		respondError(w, http.StatusNotFound, "plan not found")
		return
	}
	var req billing.PlanInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.billingService.UpdatePlan(r.Context(), planID, req, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "update plan")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// AdminListOrders lists orders, optionally filtered by ?status= and ?company=
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	filter := billing.OrderFilter{
		Status:    billing.OrderStatus(r.URL.Query().Get("status")),
		CompanyID: r.URL.Query().Get("company"),
	}
	switch filter.Status {
	case "", billing.StatusPending, billing.StatusApproved, billing.StatusRejected:
	default:
		respondError(w, http.StatusBadRequest, "unknown order status")
		return
	}
	if filter.CompanyID != "" && !id.Valid(filter.CompanyID) {
		respondError(w, http.StatusBadRequest, "invalid company id")
		return
	}

	orders, err := h.billingService.ListOrders(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err, "list orders")
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// AdminGetOrder shows one order
func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		respondError(w, http.StatusNotFound, "order not found")
		return
	}
	o, err := h.billingService.GetOrder(r.Context(), orderID)
	if err != nil {
		respondServiceError(w, r, err, "load order")
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// AdminApproveOrders approves pending orders and activates the ordering
// companies' subscriptions
// @Summary Approve Orders
// @Tags Admin
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param request body IDsRequest true "Order IDs"
// @Success 200 {object} map[string]int
// @Failure 400 {object} map[string]string
// @Router /admin/orders/approve/ [post]
func (h *Handler) AdminApproveOrders(w http.ResponseWriter, r *http.Request) {
	var req IDsRequest
	if err := decodeJSON(r, &req); err != nil || !req.valid() {
		respondError(w, http.StatusBadRequest, "a non-empty list of order ids is required")
		return
	}
	n, err := h.billingService.ApproveOrders(r.Context(), req.IDs, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "approve orders")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"approved": n})
}

// AdminRejectOrders rejects pending orders
func (h *Handler) AdminRejectOrders(w http.ResponseWriter, r *http.Request) {
	var req IDsRequest
	if err := decodeJSON(r, &req); err != nil || !req.valid() {
		respondError(w, http.StatusBadRequest, "a non-empty list of order ids is required")
		return
	}
	n, err := h.billingService.RejectOrders(r.Context(), req.IDs, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "reject orders")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"rejected": n})
}

// AdminSweepSubscriptions runs the expiry sweep immediately.
func (h *Handler) AdminSweepSubscriptions(w http.ResponseWriter, r *http.Request) {
	n, err := h.tenantService.DeactivateExpired(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "deactivate expired subscriptions")
		return
	}
	slog.InfoContext(r.Context(), "manual subscription sweep",
		logger.UserID(GetUserID(r.Context())),
		logger.RowsAffected(int64(n)),
	)
	respondJSON(w, http.StatusOK, map[string]int{"deactivated": n})
}
