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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/jackc/pgx/v5"
)

const companyColumns = `
	id, name, schema_name, description, contact_email, phone, logo_url,
	subscription_start, paid_until, on_trial, is_active_subscription, current_plan_id,
	created_at, updated_at`

// CompanyRepository implements tenant.Repository
type CompanyRepository struct {
	db *DB
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

var _ tenant.Repository = (*CompanyRepository)(nil)

// Create inserts the company and its primary domain in one transaction
func (r *CompanyRepository) Create(ctx context.Context, c *tenant.Company, d *tenant.Domain) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO public.companies (
				id, name, schema_name, description, contact_email, phone, logo_url,
				subscription_start, paid_until, on_trial, is_active_subscription, current_plan_id,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`,
			c.ID, c.Name, c.SchemaName, c.Description, c.ContactEmail, c.Phone, c.LogoURL,
			c.SubscriptionStart, c.PaidUntil, c.OnTrial, c.IsActiveSubscription, c.CurrentPlanID,
			c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return tenant.ErrCompanyExists
			}
			return fmt.Errorf("failed to insert company: %w", err)
		}

		if d == nil {
			return nil
		}
		if err := insertDomain(ctx, tx, d); err != nil {
			return err
		}
		return nil
	})
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*tenant.Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM public.companies WHERE id = $1`, id)
}

// GetBySchema retrieves a company by schema name
func (r *CompanyRepository) GetBySchema(ctx context.Context, schema string) (*tenant.Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM public.companies WHERE schema_name = $1`, schema)
}

func (r *CompanyRepository) getOne(ctx context.Context, query string, arg any) (*tenant.Company, error) {
	c, err := scanCompany(r.db.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return c, nil
}

// List returns every company ordered by name
func (r *CompanyRepository) List(ctx context.Context) ([]*tenant.Company, error) {
	rows, err := r.db.pool.Query(ctx, `SELECT `+companyColumns+` FROM public.companies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []*tenant.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// Update writes the editable company fields
func (r *CompanyRepository) Update(ctx context.Context, c *tenant.Company) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE public.companies SET
			description = $2, contact_email = $3, phone = $4, logo_url = $5,
			subscription_start = $6, paid_until = $7, on_trial = $8,
			is_active_subscription = $9, current_plan_id = $10, updated_at = $11
		WHERE id = $1
	`,
		c.ID, c.Description, c.ContactEmail, c.Phone, c.LogoURL,
		c.SubscriptionStart, c.PaidUntil, c.OnTrial,
		c.IsActiveSubscription, c.CurrentPlanID, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrCompanyNotFound
	}
	return nil
}

// Delete removes a company; domains and orders cascade
func (r *CompanyRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM public.companies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrCompanyNotFound
	}
	return nil
}

// SetSubscriptionFlags bulk-updates the selected subscription flags.
// paid_until is never touched.
func (r *CompanyRepository) SetSubscriptionFlags(ctx context.Context, ids []string, flags tenant.SubscriptionFlags) (int64, error) {
	if len(ids) == 0 || (flags.IsActive == nil && flags.OnTrial == nil) {
		return 0, nil
	}
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE public.companies SET
			is_active_subscription = COALESCE($2, is_active_subscription),
			on_trial = COALESCE($3, on_trial),
			updated_at = NOW()
		WHERE id = ANY($1) AND schema_name <> 'public'
	`, ids, flags.IsActive, flags.OnTrial)
	if err != nil {
		return 0, fmt.Errorf("failed to update subscriptions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeactivateExpired clears is_active_subscription where paid_until < today
func (r *CompanyRepository) DeactivateExpired(ctx context.Context, today time.Time) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		UPDATE public.companies
		SET is_active_subscription = FALSE, updated_at = NOW()
		WHERE is_active_subscription AND paid_until IS NOT NULL AND paid_until < $1
		RETURNING schema_name
	`, today)
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate expired subscriptions: %w", err)
	}
	schemas, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate expired subscriptions: %w", err)
	}
	return schemas, nil
}

func scanCompany(row pgx.Row) (*tenant.Company, error) {
	var c tenant.Company
	err := row.Scan(
		&c.ID, &c.Name, &c.SchemaName, &c.Description, &c.ContactEmail, &c.Phone, &c.LogoURL,
		&c.SubscriptionStart, &c.PaidUntil, &c.OnTrial, &c.IsActiveSubscription, &c.CurrentPlanID,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
