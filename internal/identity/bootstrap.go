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

package identity

import (
	"context"
	"fmt"

	"github.com/eventsaas/eventsaas/internal/audit"
	"github.com/eventsaas/eventsaas/internal/tenant"
)

// Admin describes the superuser created while setting up a schema. An
// empty Password means no user is created.
type Admin struct {
	Username string
	Email    string
	Password string
}

func (a Admin) withDefaults(host string) Admin {
	if a.Username == "" {
		a.Username = "admin"
	}
	if a.Email == "" {
		a.Email = "admin@" + tenant.NormalizeHost(host)
	}
	return a
}

// BootstrapResult reports what a setup run changed.
type BootstrapResult struct {
	Company       *tenant.Company
	DomainCreated bool
	Admin         *User
	AdminCreated  bool
}

// BootstrapService creates the public tenant, command line tenants and
// their first administrators.
type BootstrapService struct {
	identityService *Service
	tenantService   *tenant.Service
	auditLogger     audit.Logger
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(identityService *Service, tenantService *tenant.Service, auditLogger audit.Logger) *BootstrapService {
	return &BootstrapService{
		identityService: identityService,
		tenantService:   tenantService,
		auditLogger:     auditLogger,
	}
}

// Public makes sure the public tenant answers on host and, when admin
// carries a password, that a platform superuser exists in the public
// schema. Running it again is harmless.
func (s *BootstrapService) Public(ctx context.Context, host string, admin Admin) (*BootstrapResult, error) {
	company, created, err := s.tenantService.SetupPublic(ctx, host)
	if err != nil {
		return nil, err
	}
	res := &BootstrapResult{Company: company, DomainCreated: created}
	if admin.Password == "" {
		return res, nil
	}
	if err := s.ensureAdmin(ctx, res, admin.withDefaults(host)); err != nil {
		return nil, err
	}
	return res, nil
}

// Tenant creates a company and its first superuser.
func (s *BootstrapService) Tenant(ctx context.Context, in tenant.NewCompany, admin Admin) (*BootstrapResult, error) {
	company, err := s.tenantService.CreateCompany(ctx, in)
	if err != nil {
		return nil, err
	}
	res := &BootstrapResult{Company: company, DomainCreated: true}
	if admin.Password == "" {
		return res, nil
	}
	if err := s.ensureAdmin(ctx, res, admin.withDefaults(in.Domain)); err != nil {
		return res, err
	}
	return res, nil
}

func (s *BootstrapService) ensureAdmin(ctx context.Context, res *BootstrapResult, admin Admin) error {
	ctx = tenant.WithCompany(ctx, res.Company)
	user, created, err := s.identityService.CreateSuperuser(ctx, admin.Username, admin.Email, admin.Password)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	res.Admin, res.AdminCreated = user, created
	if created {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAdminBootstrapped,
			Schema:   res.Company.SchemaName,
			ActorID:  audit.ActorSystemBootstrap,
			Resource: user.ID,
			Metadata: map[string]any{"username": user.Username},
		})
	}
	return nil
}
