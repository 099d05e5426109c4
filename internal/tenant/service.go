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

package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eventsaas/eventsaas/internal/audit"
	"github.com/eventsaas/eventsaas/internal/id"
	"github.com/eventsaas/eventsaas/internal/observability/logger"
	"github.com/eventsaas/eventsaas/internal/observability/metrics"
	"github.com/jonboulle/clockwork"
)

// Service provides company and domain management business logic
type Service struct {
	repo        Repository
	domains     DomainRepository
	provisioner SchemaProvisioner
	cache       DomainCache
	auditLogger audit.Logger
	clock       clockwork.Clock
	instruments *metrics.Instruments
}

// NewService creates a new tenant service. cache and instruments may be nil.
func NewService(
	repo Repository,
	domains DomainRepository,
	provisioner SchemaProvisioner,
	cache DomainCache,
	auditLogger audit.Logger,
	clock clockwork.Clock,
	instruments *metrics.Instruments,
) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		repo:        repo,
		domains:     domains,
		provisioner: provisioner,
		cache:       cache,
		auditLogger: auditLogger,
		clock:       clock,
		instruments: instruments,
	}
}

// NewCompany holds the input for CreateCompany.
type NewCompany struct {
	Name         string
	Domain       string
	Description  string
	ContactEmail string
	Phone        string
	LogoURL      string

	OnTrial              bool
	IsActiveSubscription bool
	PaidUntil            *time.Time

	// ActorID is recorded in the audit trail.
	ActorID string
}

// CreateCompany creates a tenant, its primary domain and its schema.
func (s *Service) CreateCompany(ctx context.Context, in NewCompany) (*Company, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	schema := SchemaNameFor(name)
	if err := ValidateSchemaName(schema); err != nil {
		return nil, fmt.Errorf("%w: %q", err, schema)
	}
	if schema == PublicSchema {
		return nil, fmt.Errorf("%w: %q is reserved", ErrInvalidSchemaName, schema)
	}

	host := NormalizeHost(in.Domain)
	if host == "" {
		return nil, ErrInvalidDomain
	}

	if _, err := s.repo.GetBySchema(ctx, schema); err == nil {
		return nil, fmt.Errorf("%w: schema %q", ErrCompanyExists, schema)
	} else if !errors.Is(err, ErrCompanyNotFound) {
		return nil, fmt.Errorf("failed to check schema: %w", err)
	}

	if _, err := s.domains.GetByHost(ctx, host); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrDomainExists, host)
	} else if !errors.Is(err, ErrDomainNotFound) {
		return nil, fmt.Errorf("failed to check domain: %w", err)
	}

	now := s.clock.Now()
	company := &Company{
		ID:                   id.NewUUIDv7(),
		Name:                 name,
		SchemaName:           schema,
		Description:          in.Description,
		ContactEmail:         in.ContactEmail,
		Phone:                in.Phone,
		LogoURL:              in.LogoURL,
		PaidUntil:            in.PaidUntil,
		OnTrial:              in.OnTrial,
		IsActiveSubscription: in.IsActiveSubscription,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	domain := &Domain{
		ID:        id.NewUUIDv7(),
		Domain:    host,
		CompanyID: company.ID,
		IsPrimary: true,
		CreatedAt: now,
	}

	if err := s.repo.Create(ctx, company, domain); err != nil {
		return nil, fmt.Errorf("failed to create company: %w", err)
	}

	if err := s.provisioner.Provision(ctx, schema); err != nil {
		// Roll back the control-plane rows so the name can be retried.
		if delErr := s.repo.Delete(ctx, company.ID); delErr != nil {
			slog.ErrorContext(ctx, "failed to remove company after provisioning error",
				logger.CompanyID(company.ID),
				logger.Error(delErr),
			)
		}
		return nil, fmt.Errorf("failed to provision schema %s: %w", schema, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCompanyCreated,
		Schema:   PublicSchema,
		ActorID:  in.ActorID,
		Resource: company.ID,
		Metadata: map[string]any{"schema_name": schema, "domain": host},
	})

	return company, nil
}

// SetupPublic makes sure the public tenant and the given domain exist.
// It reports whether the domain was newly created.
func (s *Service) SetupPublic(ctx context.Context, domain string) (*Company, bool, error) {
	host := NormalizeHost(domain)
	if host == "" {
		return nil, false, ErrInvalidDomain
	}

	company, err := s.repo.GetBySchema(ctx, PublicSchema)
	if errors.Is(err, ErrCompanyNotFound) {
		now := s.clock.Now()
		company = &Company{
			ID:                   id.NewUUIDv7(),
			Name:                 PublicCompanyName,
			SchemaName:           PublicSchema,
			IsActiveSubscription: true,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		d := &Domain{ID: id.NewUUIDv7(), Domain: host, CompanyID: company.ID, IsPrimary: true, CreatedAt: now}
		if err := s.repo.Create(ctx, company, d); err != nil {
			return nil, false, fmt.Errorf("failed to create public tenant: %w", err)
		}
		slog.InfoContext(ctx, "public tenant created", logger.Host(host))
		return company, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load public tenant: %w", err)
	}

	existing, err := s.domains.GetByHost(ctx, host)
	if err == nil {
		if existing.CompanyID != company.ID {
			return nil, false, fmt.Errorf("%w: %q belongs to another company", ErrDomainExists, host)
		}
		return company, false, nil
	}
	if !errors.Is(err, ErrDomainNotFound) {
		return nil, false, fmt.Errorf("failed to check domain: %w", err)
	}

	if _, err := s.AddDomain(ctx, company.ID, host, true, ""); err != nil {
		return nil, false, err
	}
	return company, true, nil
}

// Resolve maps a request host onto its company. Unknown hosts yield
// ErrDomainNotFound. The company row is always read fresh so that
// subscription changes take effect on the next request.
func (s *Service) Resolve(ctx context.Context, host string) (*Company, error) {
	host = NormalizeHost(host)
	if host == "" {
		return nil, ErrDomainNotFound
	}

	if s.cache != nil {
		res, err := s.cache.Get(ctx, host)
		switch {
		case err == nil:
			company, err := s.repo.GetByID(ctx, res.CompanyID)
			if err == nil {
				s.instruments.ResolveCache(ctx, true)
				return company, nil
			}
			if !errors.Is(err, ErrCompanyNotFound) {
				return nil, fmt.Errorf("failed to load company: %w", err)
			}
			// Stale entry; fall through to the database.
			s.invalidate(ctx, host)
		case !errors.Is(err, ErrCacheMiss):
			slog.WarnContext(ctx, "domain cache unavailable", logger.Host(host), logger.Error(err))
		}
		s.instruments.ResolveCache(ctx, false)
	}

	d, err := s.domains.GetByHost(ctx, host)
	if err != nil {
		return nil, err
	}
	company, err := s.repo.GetByID(ctx, d.CompanyID)
	if err != nil {
		if errors.Is(err, ErrCompanyNotFound) {
			return nil, ErrDomainNotFound
		}
		return nil, fmt.Errorf("failed to load company: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, host, Resolution{CompanyID: company.ID, Schema: company.SchemaName}); err != nil {
			slog.WarnContext(ctx, "failed to cache domain", logger.Host(host), logger.Error(err))
		}
	}
	return company, nil
}

// GetCompany retrieves a company by ID
func (s *Service) GetCompany(ctx context.Context, id string) (*Company, error) {
	return s.repo.GetByID(ctx, id)
}

// GetBySchema retrieves a company by schema name
func (s *Service) GetBySchema(ctx context.Context, schema string) (*Company, error) {
	return s.repo.GetBySchema(ctx, schema)
}

// ListCompanies lists every tenant company, excluding the public tenant.
func (s *Service) ListCompanies(ctx context.Context) ([]*Company, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	out := make([]*Company, 0, len(all))
	for _, c := range all {
		if !c.IsPublic() {
			out = append(out, c)
		}
	}
	return out, nil
}

// Stats counts tenant companies. Active means not on trial.
func (s *Service) Stats(ctx context.Context) (Stats, []*Company, error) {
	companies, err := s.ListCompanies(ctx)
	if err != nil {
		return Stats{}, nil, err
	}
	st := Stats{Total: len(companies)}
	for _, c := range companies {
		if c.OnTrial {
			st.Trial++
		} else {
			st.Active++
		}
	}
	return st, companies, nil
}

// PrimaryDomain returns the primary domain of a company, or its first
// domain if none is flagged primary.
func (s *Service) PrimaryDomain(ctx context.Context, companyID string) (*Domain, error) {
	domains, err := s.domains.ListForCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	if len(domains) == 0 {
		return nil, ErrDomainNotFound
	}
	for _, d := range domains {
		if d.IsPrimary {
			return d, nil
		}
	}
	return domains[0], nil
}

// ActivateSubscriptions sets is_active_subscription on the given companies.
func (s *Service) ActivateSubscriptions(ctx context.Context, ids []string, actorID string) (int64, error) {
	on := true
	return s.setFlags(ctx, ids, SubscriptionFlags{IsActive: &on}, "activate", actorID)
}

// DeactivateSubscriptions clears is_active_subscription on the given companies.
func (s *Service) DeactivateSubscriptions(ctx context.Context, ids []string, actorID string) (int64, error) {
	off := false
	return s.setFlags(ctx, ids, SubscriptionFlags{IsActive: &off}, "deactivate", actorID)
}

// MarkTrial puts the given companies on trial.
func (s *Service) MarkTrial(ctx context.Context, ids []string, actorID string) (int64, error) {
	on := true
	return s.setFlags(ctx, ids, SubscriptionFlags{OnTrial: &on}, "mark_trial", actorID)
}

// RemoveTrial takes the given companies off trial.
func (s *Service) RemoveTrial(ctx context.Context, ids []string, actorID string) (int64, error) {
	off := false
	return s.setFlags(ctx, ids, SubscriptionFlags{OnTrial: &off}, "remove_trial", actorID)
}

func (s *Service) setFlags(ctx context.Context, ids []string, flags SubscriptionFlags, action, actorID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.repo.SetSubscriptionFlags(ctx, ids, flags)
	if err != nil {
		return 0, fmt.Errorf("failed to %s subscriptions: %w", action, err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSubscriptionChanged,
		Schema:   PublicSchema,
		ActorID:  actorID,
		Resource: "company",
		Metadata: map[string]any{"action": action, "company_ids": ids, "updated": n},
	})
	return n, nil
}

// CompanyUpdate carries an admin edit. Nil fields are left unchanged.
type CompanyUpdate struct {
	Description          *string
	ContactEmail         *string
	Phone                *string
	LogoURL              *string
	IsActiveSubscription *bool
	OnTrial              *bool
	PaidUntil            *time.Time
	ClearPaidUntil       bool
	SubscriptionStart    *time.Time
}

// UpdateCompany applies an admin edit to a company.
func (s *Service) UpdateCompany(ctx context.Context, id string, u CompanyUpdate, actorID string) (*Company, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.ContactEmail != nil {
		c.ContactEmail = *u.ContactEmail
	}
	if u.Phone != nil {
		c.Phone = *u.Phone
	}
	if u.LogoURL != nil {
		c.LogoURL = *u.LogoURL
	}
	if u.IsActiveSubscription != nil {
		c.IsActiveSubscription = *u.IsActiveSubscription
	}
	if u.OnTrial != nil {
		c.OnTrial = *u.OnTrial
	}
	if u.ClearPaidUntil {
		c.PaidUntil = nil
	} else if u.PaidUntil != nil {
		d := Today(*u.PaidUntil)
		c.PaidUntil = &d
	}
	if u.SubscriptionStart != nil {
		c.SubscriptionStart = u.SubscriptionStart
	}
	c.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update company: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSubscriptionChanged,
		Schema:   PublicSchema,
		ActorID:  actorID,
		Resource: c.ID,
		Metadata: map[string]any{
			"action":                 "update",
			"is_active_subscription": c.IsActiveSubscription,
			"on_trial":               c.OnTrial,
		},
	})
	return c, nil
}

// DeleteCompany removes a tenant, its domains and orders, and drops its schema.
func (s *Service) DeleteCompany(ctx context.Context, id, actorID string) error {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if c.IsPublic() {
		return ErrPublicTenant
	}

	domains, err := s.domains.ListForCompany(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list domains: %w", err)
	}

	// The company row outlives its schema so a failed delete can be retried.
	if err := s.provisioner.Drop(ctx, c.SchemaName); err != nil {
		return fmt.Errorf("failed to drop schema %s: %w", c.SchemaName, err)
	}

	hosts := make([]string, 0, len(domains))
	for _, d := range domains {
		hosts = append(hosts, d.Domain)
	}
	defer s.invalidate(ctx, hosts...)

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeCompanyDeleted,
		Schema:   PublicSchema,
		ActorID:  actorID,
		Resource: id,
		Metadata: map[string]any{"schema_name": c.SchemaName},
	})
	return nil
}

// DeactivateExpired flips off every subscription whose paid_until is in
// the past and returns how many were changed.
func (s *Service) DeactivateExpired(ctx context.Context) (int, error) {
	schemas, err := s.repo.DeactivateExpired(ctx, Today(s.clock.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired subscriptions: %w", err)
	}
	for _, schema := range schemas {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeSubscriptionExpired,
			Schema:   PublicSchema,
			Resource: schema,
		})
	}
	return len(schemas), nil
}

// AddDomain attaches a host to a company.
func (s *Service) AddDomain(ctx context.Context, companyID, host string, primary bool, actorID string) (*Domain, error) {
	host = NormalizeHost(host)
	if host == "" {
		return nil, ErrInvalidDomain
	}
	if _, err := s.repo.GetByID(ctx, companyID); err != nil {
		return nil, err
	}
	if _, err := s.domains.GetByHost(ctx, host); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrDomainExists, host)
	} else if !errors.Is(err, ErrDomainNotFound) {
		return nil, fmt.Errorf("failed to check domain: %w", err)
	}

	d := &Domain{
		ID:        id.NewUUIDv7(),
		Domain:    host,
		CompanyID: companyID,
		IsPrimary: primary,
		CreatedAt: s.clock.Now(),
	}
	if err := s.domains.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("failed to create domain: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeDomainAdded,
		Schema:   PublicSchema,
		ActorID:  actorID,
		Resource: companyID,
		Metadata: map[string]any{"domain": host, "is_primary": primary},
	})
	return d, nil
}

// RemoveDomain detaches a host from its company.
func (s *Service) RemoveDomain(ctx context.Context, domainID, actorID string) error {
	d, err := s.domains.GetByID(ctx, domainID)
	if err != nil {
		return err
	}
	if err := s.domains.Delete(ctx, domainID); err != nil {
		return fmt.Errorf("failed to delete domain: %w", err)
	}
	s.invalidate(ctx, d.Domain)

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeDomainRemoved,
		Schema:   PublicSchema,
		ActorID:  actorID,
		Resource: d.CompanyID,
		Metadata: map[string]any{"domain": d.Domain},
	})
	return nil
}

// ListDomains lists every domain together with its tenant's status.
func (s *Service) ListDomains(ctx context.Context) ([]DomainStatus, error) {
	domains, err := s.domains.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	companies, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	byID := make(map[string]*Company, len(companies))
	for _, c := range companies {
		byID[c.ID] = c
	}

	today := s.clock.Now()
	out := make([]DomainStatus, 0, len(domains))
	for _, d := range domains {
		st := DomainStatus{Domain: d}
		if c, ok := byID[d.CompanyID]; ok {
			st.CompanyName = c.Name
			st.SchemaName = c.SchemaName
			st.SubscriptionActive = c.IsPublic() || c.SubscriptionActive(today)
			st.OnTrial = c.OnTrial
		}
		out = append(out, st)
	}
	return out, nil
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

func (s *Service) invalidate(ctx context.Context, hosts ...string) {
	if s.cache == nil || len(hosts) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, hosts...); err != nil {
		slog.WarnContext(ctx, "failed to invalidate domain cache", logger.Error(err))
	}
}
