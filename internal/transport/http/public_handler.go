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
	"net/http"

	"github.com/eventsaas/eventsaas/internal/identity"
	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/go-chi/chi/v5"
)

// PublicRouter serves the control-plane host: the company directory and
// the platform administration API.
func (h *Handler) PublicRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(h.LoadSession)
	r.Use(CSRFMiddleware)

	r.Get("/", h.PublicHomepage)
	r.Get("/company/{schema}/", h.CompanyDetail)
	r.With(RequireStaff).Get("/company/{schema}/users/", h.CompanyUsers)

	r.Post("/accounts/login/", h.Login)
	r.Post("/accounts/logout/", h.Logout)
	r.With(RequireAuth).Get("/accounts/me/", h.Me)

	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireStaff)

		r.Get("/companies/", h.AdminListCompanies)
		r.Post("/companies/", h.AdminCreateCompany)
		r.Post("/companies/actions/", h.AdminCompanyAction)
		r.Get("/companies/{companyID}/", h.AdminGetCompany)
		r.Patch("/companies/{companyID}/", h.AdminUpdateCompany)
		r.Delete("/companies/{companyID}/", h.AdminDeleteCompany)

		r.Get("/domains/", h.AdminListDomains)
		r.Post("/domains/", h.AdminAddDomain)
		r.Delete("/domains/{domainID}/", h.AdminRemoveDomain)

		r.Get("/plans/", h.AdminListPlans)
		r.Post("/plans/", h.AdminCreatePlan)
		r.Get("/plans/{planID}/", h.AdminGetPlan)
		r.Put("/plans/{planID}/", h.AdminUpdatePlan)

		r.Get("/orders/", h.AdminListOrders)
		r.Post("/orders/approve/", h.AdminApproveOrders)
		r.Post("/orders/reject/", h.AdminRejectOrders)
		r.Get("/orders/{orderID}/", h.AdminGetOrder)

		r.Post("/subscriptions/sweep/", h.AdminSweepSubscriptions)
	})

	return r
}

// HomepageResponse is the public company directory.
type HomepageResponse struct {
	Companies []*tenant.Company `json:"companies"`
	Stats     tenant.Stats      `json:"stats"`
}

// PublicHomepage lists every tenant company with population counts.
// @Summary Company directory
// @Tags Public
// @Produce json
// @Success 200 {object} HomepageResponse
// @Router / [get]
func (h *Handler) PublicHomepage(w http.ResponseWriter, r *http.Request) {
	stats, companies, err := h.tenantService.Stats(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "list companies")
		return
	}
	respondJSON(w, http.StatusOK, HomepageResponse{Companies: companies, Stats: stats})
}

// CompanyDetailResponse is one company with its primary domain.
type CompanyDetailResponse struct {
	Company            *tenant.Company `json:"company"`
	PrimaryDomain      *tenant.Domain  `json:"primary_domain"`
	SubscriptionActive bool            `json:"subscription_active"`
}

// CompanyDetail shows a tenant company by schema name.
func (h *Handler) CompanyDetail(w http.ResponseWriter, r *http.Request) {
	company, ok := h.lookupTenantCompany(w, r)
	if !ok {
		return
	}

	domain, err := h.tenantService.PrimaryDomain(r.Context(), company.ID)
	if err != nil && !errors.Is(err, tenant.ErrDomainNotFound) {
		respondServiceError(w, r, err, "load company")
		return
	}

	respondJSON(w, http.StatusOK, CompanyDetailResponse{
		Company:            company,
		PrimaryDomain:      domain,
		SubscriptionActive: company.SubscriptionActive(h.tenantService.Now()),
	})
}

// CompanyUsersResponse is a tenant's user directory.
type CompanyUsersResponse struct {
	Company *tenant.Company `json:"company"`
	*identity.Directory
}

// CompanyUsers lists the users of a tenant. The public host may list any
// tenant; a tenant host may list only itself. Everything else is 404.
func (h *Handler) CompanyUsers(w http.ResponseWriter, r *http.Request) {
	current, _ := tenant.CompanyFrom(r.Context())
	if !tenant.CanViewCompany(current, chi.URLParam(r, "schema")) {
		respondError(w, http.StatusNotFound, "company not found")
		return
	}

	company, ok := h.lookupTenantCompany(w, r)
	if !ok {
		return
	}

	dir, err := h.identityService.ListUsers(tenant.WithCompany(r.Context(), company))
	if err != nil {
		respondServiceError(w, r, err, "list users")
		return
	}
	respondJSON(w, http.StatusOK, CompanyUsersResponse{Company: company, Directory: dir})
}

// lookupTenantCompany loads the non-public company named by the schema
// path parameter, answering 404 itself when there is none.
func (h *Handler) lookupTenantCompany(w http.ResponseWriter, r *http.Request) (*tenant.Company, bool) {
	schema := chi.URLParam(r, "schema")
	if tenant.ValidateSchemaName(schema) != nil || schema == tenant.PublicSchema {
		respondError(w, http.StatusNotFound, "company not found")
		return nil, false
	}
	company, err := h.tenantService.GetBySchema(r.Context(), schema)
	if err != nil {
		respondServiceError(w, r, err, "load company")
		return nil, false
	}
	return company, true
}
