package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Domain errors
var (
	ErrPlanNotFound    = errors.New("plan not found")
	ErrPlanExists      = errors.New("plan already exists")
	ErrPlanInactive    = errors.New("plan is not available for new orders")
	ErrInvalidPlan     = errors.New("invalid plan")
	ErrInvalidPeriod   = errors.New("billing period must be monthly or yearly")
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderNotPending = errors.New("order is not pending")
)

// BillingPeriod is the cadence a plan is charged at.
type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodYearly  BillingPeriod = "yearly"
)

// Valid reports whether p is a known billing period.
func (p BillingPeriod) Valid() bool {
	return p == PeriodMonthly || p == PeriodYearly
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending  OrderStatus = "pending"
	StatusApproved OrderStatus = "approved"
	StatusRejected OrderStatus = "rejected"
)

// Plan is a subscription offering. Prices are stored in cents.
type Plan struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	PriceCents    int64         `json:"price_cents"`
	BillingPeriod BillingPeriod `json:"billing_period"`
	Features      string        `json:"features"`
	IsActive      bool          `json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
}

// FeatureList splits the features text into non-empty lines.
func (p *Plan) FeatureList() []string {
	var out []string
	for _, line := range strings.Split(p.Features, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Order is a tenant's request to subscribe to a plan.
type Order struct {
	ID               string        `json:"id"`
	CompanyID        string        `json:"company_id"`
	PlanID           string        `json:"plan_id"`
	Status           OrderStatus   `json:"status"`
	TotalAmountCents int64         `json:"total_amount_cents"`
	BillingPeriod    BillingPeriod `json:"billing_period"`
	Notes            string        `json:"notes"`
	CreatedAt        time.Time     `json:"created_at"`
	ApprovedAt       *time.Time    `json:"approved_at,omitempty"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`

	// Filled by listings.
	CompanyName string `json:"company_name,omitempty"`
	PlanName    string `json:"plan_name,omitempty"`
}

// OrderFilter narrows an order listing. Empty fields match everything.
type OrderFilter struct {
	CompanyID string
	Status    OrderStatus
}

// Approval is the state written when an order is approved.
type Approval struct {
	OrderID   string
	CompanyID string
	PlanID    string
	At        time.Time
	PaidUntil time.Time
}

// PlanRepository defines the interface for plan storage
type PlanRepository interface {
	Create(ctx context.Context, p *Plan) error
	Update(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, id string) (*Plan, error)
	// List returns plans ordered by price.
	List(ctx context.Context, activeOnly bool) ([]*Plan, error)
}

// OrderRepository defines the interface for order storage
type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	// List returns orders newest first.
	List(ctx context.Context, filter OrderFilter) ([]*Order, error)
	// Approve marks a pending order approved and extends the company's
	// subscription in one transaction. It returns ErrOrderNotPending if the
	// order left the pending state in the meantime.
	Approve(ctx context.Context, a Approval) error
	// RejectPending rejects those of ids that are still pending.
	RejectPending(ctx context.Context, ids []string) (int64, error)
}

// FormatCents renders an amount in cents as a decimal string.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
