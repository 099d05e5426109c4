package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/jackc/pgx/v5"
)

const domainColumns = `id, domain, company_id, is_primary, created_at`

// DomainRepository implements tenant.DomainRepository
type DomainRepository struct {
	db *DB
}

// NewDomainRepository creates a new domain repository
func NewDomainRepository(db *DB) *DomainRepository {
	return &DomainRepository{db: db}
}

var _ tenant.DomainRepository = (*DomainRepository)(nil)

// Create inserts a domain. A primary domain demotes the company's others.
func (r *DomainRepository) Create(ctx context.Context, d *tenant.Domain) error {
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		return insertDomain(ctx, tx, d)
	})
}

func insertDomain(ctx context.Context, tx pgx.Tx, d *tenant.Domain) error {
	if d.IsPrimary {
		if _, err := tx.Exec(ctx, `UPDATE public.domains SET is_primary = FALSE WHERE company_id = $1 AND is_primary`, d.CompanyID); err != nil {
			return fmt.Errorf("failed to demote primary domain: %w", err)
		}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO public.domains (id, domain, company_id, is_primary, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.Domain, d.CompanyID, d.IsPrimary, d.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return tenant.ErrDomainExists
		case isForeignKeyViolation(err):
			return tenant.ErrCompanyNotFound
		}
		return fmt.Errorf("failed to insert domain: %w", err)
	}
	return nil
}

// GetByID retrieves a domain by ID
func (r *DomainRepository) GetByID(ctx context.Context, id string) (*tenant.Domain, error) {
	return r.getOne(ctx, `SELECT `+domainColumns+` FROM public.domains WHERE id = $1`, id)
}

// GetByHost retrieves a domain by its normalized host name
func (r *DomainRepository) GetByHost(ctx context.Context, host string) (*tenant.Domain, error) {
	return r.getOne(ctx, `SELECT `+domainColumns+` FROM public.domains WHERE domain = $1`, host)
}

func (r *DomainRepository) getOne(ctx context.Context, query, arg string) (*tenant.Domain, error) {
	rows, err := r.db.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to get domain: %w", err)
	}
	d, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[tenant.Domain])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tenant.ErrDomainNotFound
		}
		return nil, fmt.Errorf("failed to get domain: %w", err)
	}
	return d, nil
}

// ListForCompany returns a company's domains, primary first
func (r *DomainRepository) ListForCompany(ctx context.Context, companyID string) ([]*tenant.Domain, error) {
	return r.list(ctx, `SELECT `+domainColumns+` FROM public.domains WHERE company_id = $1 ORDER BY is_primary DESC, domain`, companyID)
}

// List returns every domain ordered by host
func (r *DomainRepository) List(ctx context.Context) ([]*tenant.Domain, error) {
	return r.list(ctx, `SELECT `+domainColumns+` FROM public.domains ORDER BY domain`)
}

func (r *DomainRepository) list(ctx context.Context, query string, args ...any) ([]*tenant.Domain, error) {
	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	domains, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[tenant.Domain])
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return domains, nil
}

// Delete removes a domain
func (r *DomainRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM public.domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrDomainNotFound
	}
	return nil
}
