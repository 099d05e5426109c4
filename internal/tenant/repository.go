package tenant

import (
	"context"
	"errors"
	"time"
)

var (
	ErrCompanyNotFound   = errors.New("company not found")
	ErrCompanyExists     = errors.New("company already exists")
	ErrDomainNotFound    = errors.New("domain not found")
	ErrDomainExists      = errors.New("domain already exists")
	ErrInvalidSchemaName = errors.New("invalid schema name")
	ErrInvalidDomain     = errors.New("invalid domain")
	ErrInvalidName       = errors.New("company name is required")
	ErrPublicTenant      = errors.New("operation not allowed on the public tenant")
	ErrNoSchema          = errors.New("no tenant schema bound to context")
	ErrCacheMiss         = errors.New("domain cache miss")
)

// SubscriptionFlags selects which flags a bulk update sets. Nil fields are
// left untouched.
type SubscriptionFlags struct {
	IsActive *bool
	OnTrial  *bool
}

// Repository defines the interface for company storage in the public schema
type Repository interface {
	// Create inserts the company together with its primary domain.
	Create(ctx context.Context, c *Company, d *Domain) error
	GetByID(ctx context.Context, id string) (*Company, error)
	GetBySchema(ctx context.Context, schema string) (*Company, error)
	// List returns every company ordered by name, the public tenant included.
	List(ctx context.Context) ([]*Company, error)
	Update(ctx context.Context, c *Company) error
	Delete(ctx context.Context, id string) error
	SetSubscriptionFlags(ctx context.Context, ids []string, flags SubscriptionFlags) (int64, error)
	// DeactivateExpired clears is_active_subscription on companies whose
	// paid_until is before today and returns their schema names.
	DeactivateExpired(ctx context.Context, today time.Time) ([]string, error)
}

// DomainRepository defines the interface for domain storage
type DomainRepository interface {
	// Create inserts d. A primary domain demotes the company's other domains.
	Create(ctx context.Context, d *Domain) error
	GetByID(ctx context.Context, id string) (*Domain, error)
	GetByHost(ctx context.Context, host string) (*Domain, error)
	ListForCompany(ctx context.Context, companyID string) ([]*Domain, error)
	List(ctx context.Context) ([]*Domain, error)
	Delete(ctx context.Context, id string) error
}

// SchemaProvisioner creates and drops tenant schemas.
type SchemaProvisioner interface {
	// Provision creates the schema if needed and applies tenant migrations.
	Provision(ctx context.Context, schema string) error
	// Drop removes the schema. A missing schema is not an error.
	Drop(ctx context.Context, schema string) error
}

// Resolution is what the domain cache remembers about a host.
type Resolution struct {
	CompanyID string `json:"company_id"`
	Schema    string `json:"schema"`
}

// DomainCache caches host lookups. Get returns ErrCacheMiss when the host
// is not cached.
type DomainCache interface {
	Get(ctx context.Context, host string) (*Resolution, error)
	Set(ctx context.Context, host string, r Resolution) error
	Invalidate(ctx context.Context, hosts ...string) error
}
