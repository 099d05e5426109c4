package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/eventsaas/eventsaas/internal/billing"
	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/jackc/pgx/v5"
)

// PlanRepository implements billing.PlanRepository
type PlanRepository struct {
	db *DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *DB) *PlanRepository {
	return &PlanRepository{db: db}
}

var _ billing.PlanRepository = (*PlanRepository)(nil)

const planColumns = `id, name, description, price_cents, billing_period, features, is_active, created_at`

// Create inserts a plan
func (r *PlanRepository) Create(ctx context.Context, p *billing.Plan) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO public.plans (`+planColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.Name, p.Description, p.PriceCents, p.BillingPeriod, p.Features, p.IsActive, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return billing.ErrPlanExists
		}
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	return nil
}

// Update writes every editable plan field
func (r *PlanRepository) Update(ctx context.Context, p *billing.Plan) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE public.plans
		SET name = $2, description = $3, price_cents = $4, billing_period = $5, features = $6, is_active = $7
		WHERE id = $1
	`, p.ID, p.Name, p.Description, p.PriceCents, p.BillingPeriod, p.Features, p.IsActive)
	if err != nil {
		if isUniqueViolation(err) {
			return billing.ErrPlanExists
		}
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrPlanNotFound
	}
	return nil
}

// GetByID retrieves a plan by ID
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*billing.Plan, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+planColumns+` FROM public.plans WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[billing.Plan])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.ErrPlanNotFound
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

// List returns plans ordered by price
func (r *PlanRepository) List(ctx context.Context, activeOnly bool) ([]*billing.Plan, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+planColumns+` FROM public.plans
		WHERE is_active OR NOT $1
		ORDER BY price_cents, name
	`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	plans, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[billing.Plan])
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// OrderRepository implements billing.OrderRepository
type OrderRepository struct {
	db *DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

var _ billing.OrderRepository = (*OrderRepository)(nil)

const orderSelect = `
	SELECT o.id, o.company_id, o.plan_id, o.status, o.total_amount_cents, o.billing_period,
		o.notes, o.created_at, o.approved_at, o.paid_at, c.name, p.name
	FROM public.orders o
	JOIN public.companies c ON c.id = o.company_id
	JOIN public.plans p ON p.id = o.plan_id`

// Create inserts a pending order
func (r *OrderRepository) Create(ctx context.Context, o *billing.Order) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO public.orders (id, company_id, plan_id, status, total_amount_cents, billing_period, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.ID, o.CompanyID, o.PlanID, o.Status, o.TotalAmountCents, o.BillingPeriod, o.Notes, o.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: unknown company or plan", billing.ErrPlanNotFound)
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*billing.Order, error) {
	rows, err := r.db.pool.Query(ctx, orderSelect+` WHERE o.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[billing.Order])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// List returns orders newest first
func (r *OrderRepository) List(ctx context.Context, filter billing.OrderFilter) ([]*billing.Order, error) {
	var (
		conds []string
		args  []any
	)
	if filter.CompanyID != "" {
		args = append(args, filter.CompanyID)
		conds = append(conds, fmt.Sprintf("o.company_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("o.status = $%d", len(args)))
	}
	query := orderSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY o.created_at DESC"

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[billing.Order])
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Approve flips a pending order to approved and extends the company's
// subscription in the same transaction.
func (r *OrderRepository) Approve(ctx context.Context, a billing.Approval) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE public.orders
			SET status = 'approved', approved_at = $2, paid_at = $2
			WHERE id = $1 AND status = 'pending'
		`, a.OrderID, a.At)
		if err != nil {
			return fmt.Errorf("failed to approve order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return billing.ErrOrderNotPending
		}

		tag, err = tx.Exec(ctx, `
			UPDATE public.companies SET
				current_plan_id = $2,
				subscription_start = $3,
				paid_until = $4,
				is_active_subscription = TRUE,
				on_trial = FALSE,
				updated_at = $3
			WHERE id = $1
		`, a.CompanyID, a.PlanID, a.At, a.PaidUntil)
		if err != nil {
			return fmt.Errorf("failed to extend subscription: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return tenant.ErrCompanyNotFound
		}
		return nil
	})
}

// RejectPending rejects the orders in ids that are still pending
func (r *OrderRepository) RejectPending(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE public.orders SET status = 'rejected'
		WHERE id = ANY($1) AND status = 'pending'
	`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to reject orders: %w", err)
	}
	return tag.RowsAffected(), nil
}
