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

package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eventsaas/eventsaas/internal/audit"
	"github.com/eventsaas/eventsaas/internal/id"
	"github.com/eventsaas/eventsaas/internal/observability/logger"
	"github.com/eventsaas/eventsaas/internal/observability/metrics"
	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/jonboulle/clockwork"
)

// Periods maps each billing period onto the number of days it buys.
type Periods struct {
	MonthlyDays int
	YearlyDays  int
}

// Days returns the subscription length for p.
func (d Periods) Days(p BillingPeriod) int {
	if p == PeriodYearly {
		return d.YearlyDays
	}
	return d.MonthlyDays
}

// Service provides plan and order business logic
type Service struct {
	plans       PlanRepository
	orders      OrderRepository
	periods     Periods
	auditLogger audit.Logger
	clock       clockwork.Clock
	instruments *metrics.Instruments
}

// NewService creates a new billing service
func NewService(
	plans PlanRepository,
	orders OrderRepository,
	periods Periods,
	auditLogger audit.Logger,
	clock clockwork.Clock,
	instruments *metrics.Instruments,
) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		plans:       plans,
		orders:      orders,
		periods:     periods,
		auditLogger: auditLogger,
		clock:       clock,
		instruments: instruments,
	}
}

// PlanInput holds the editable fields of a plan.
type PlanInput struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	PriceCents    int64         `json:"price_cents"`
	BillingPeriod BillingPeriod `json:"billing_period"`
	Features      string        `json:"features"`
	IsActive      *bool         `json:"is_active"`
}

func (in *PlanInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPlan)
	}
	if in.PriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidPlan)
	}
	if in.BillingPeriod == "" {
		in.BillingPeriod = PeriodMonthly
	}
	if !in.BillingPeriod.Valid() {
		return ErrInvalidPeriod
	}
	return nil
}

// CreatePlan adds a new plan. Plans are active unless stated otherwise.
func (s *Service) CreatePlan(ctx context.Context, in PlanInput, actorID string) (*Plan, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p := &Plan{
		ID:            id.NewUUIDv7(),
		Name:          in.Name,
		Description:   in.Description,
		PriceCents:    in.PriceCents,
		BillingPeriod: in.BillingPeriod,
		Features:      in.Features,
		IsActive:      in.IsActive == nil || *in.IsActive,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.plans.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}
	s.auditPlan(ctx, p, actorID)
	return p, nil
}

// UpdatePlan replaces the editable fields of a plan.
func (s *Service) UpdatePlan(ctx context.Context, planID string, in PlanInput, actorID string) (*Plan, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	p, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	p.Name = in.Name
	p.Description = in.Description
	p.PriceCents = in.PriceCents
	p.BillingPeriod = in.BillingPeriod
	p.Features = in.Features
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if err := s.plans.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}
	s.auditPlan(ctx, p, actorID)
	return p, nil
}

func (s *Service) auditPlan(ctx context.Context, p *Plan, actorID string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypePlanSaved,
		Schema:   tenant.PublicSchema,
		ActorID:  actorID,
		Resource: p.ID,
		Metadata: map[string]any{"name": p.Name, "price_cents": p.PriceCents, "is_active": p.IsActive},
	})
}

// GetPlan retrieves a plan by ID
func (s *Service) GetPlan(ctx context.Context, planID string) (*Plan, error) {
	return s.plans.GetByID(ctx, planID)
}

// ListPlans lists plans by price.
func (s *Service) ListPlans(ctx context.Context, activeOnly bool) ([]*Plan, error) {
	return s.plans.List(ctx, activeOnly)
}

// PlaceOrder records a pending order for an active plan. The amount and
// billing period are copied from the plan.
func (s *Service) PlaceOrder(ctx context.Context, companyID, planID, notes, actorID string) (*Order, error) {
	p, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrPlanInactive
	}

	o := &Order{
		ID:               id.NewUUIDv7(),
		CompanyID:        companyID,
		PlanID:           p.ID,
		Status:           StatusPending,
		TotalAmountCents: p.PriceCents,
		BillingPeriod:    p.BillingPeriod,
		Notes:            strings.TrimSpace(notes),
		CreatedAt:        s.clock.Now(),
		PlanName:         p.Name,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeOrderPlaced,
		Schema:   tenant.PublicSchema,
		ActorID:  actorID,
		Resource: o.ID,
		Metadata: map[string]any{"company_id": companyID, "plan_id": p.ID, "total_amount_cents": o.TotalAmountCents},
	})
	return o, nil
}

// GetOrder retrieves an order by ID
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListOrders lists orders newest first.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	return s.orders.List(ctx, filter)
}

// ApproveOrders approves every pending order in ids and extends the
// matching subscriptions. Orders that are not pending are skipped. It
// returns how many orders were approved.
func (s *Service) ApproveOrders(ctx context.Context, ids []string, actorID string) (int, error) {
	approved := 0
	for _, orderID := range ids {
		o, err := s.orders.GetByID(ctx, orderID)
		if errors.Is(err, ErrOrderNotFound) {
			continue
		}
		if err != nil {
			return approved, fmt.Errorf("failed to load order %s: %w", orderID, err)
		}
		if o.Status != StatusPending {
			continue
		}

		now := s.clock.Now()
		a := Approval{
			OrderID:   o.ID,
			CompanyID: o.CompanyID,
			PlanID:    o.PlanID,
			At:        now,
			PaidUntil: tenant.Today(now).AddDate(0, 0, s.periods.Days(o.BillingPeriod)),
		}
		if err := s.orders.Approve(ctx, a); err != nil {
			if errors.Is(err, ErrOrderNotPending) {
				continue
			}
			return approved, fmt.Errorf("failed to approve order %s: %w", orderID, err)
		}
		approved++

		slog.InfoContext(ctx, "order approved",
			logger.OrderID(o.ID),
			logger.CompanyID(o.CompanyID),
			logger.PlanID(o.PlanID),
		)
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeOrderApproved,
			Schema:   tenant.PublicSchema,
			ActorID:  actorID,
			Resource: o.ID,
			Metadata: map[string]any{
				"company_id": o.CompanyID,
				"plan_id":    o.PlanID,
				"paid_until": a.PaidUntil.Format("2006-01-02"),
			},
		})
	}
	s.instruments.OrdersApproved(ctx, approved)
	return approved, nil
}

// RejectOrders rejects those of ids that are still pending.
func (s *Service) RejectOrders(ctx context.Context, ids []string, actorID string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := s.orders.RejectPending(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to reject orders: %w", err)
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeOrderRejected,
		Schema:   tenant.PublicSchema,
		ActorID:  actorID,
		Resource: "order",
		Metadata: map[string]any{"order_ids": ids, "rejected": n},
	})
	return n, nil
}
