package tenant

import (
	"time"
)

// PublicSchema is the control-plane schema holding companies, domains,
// plans and orders.
const PublicSchema = "public"

// PublicCompanyName is the display name of the control-plane tenant.
const PublicCompanyName = "Public Schema"

// Company is a tenant. Each company owns one database schema.
type Company struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SchemaName   string `json:"schema_name"`
	Description  string `json:"description"`
	ContactEmail string `json:"contact_email"`
	Phone        string `json:"phone"`
	LogoURL      string `json:"logo_url"`

	SubscriptionStart    *time.Time `json:"subscription_start,omitempty"`
	PaidUntil            *time.Time `json:"paid_until,omitempty"`
	OnTrial              bool       `json:"on_trial"`
	IsActiveSubscription bool       `json:"is_active_subscription"`
	CurrentPlanID        *string    `json:"current_plan_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPublic reports whether c is the control-plane tenant.
func (c *Company) IsPublic() bool {
	return c.SchemaName == PublicSchema
}

// SubscriptionActive reports whether the tenant may use its site on the
// given day. A nil paid_until never expires.
func (c *Company) SubscriptionActive(today time.Time) bool {
	if !c.IsActiveSubscription {
		return false
	}
	if c.PaidUntil == nil {
		return true
	}
	return !c.PaidUntil.Before(Today(today))
}

// Domain maps a host name onto a company.
type Domain struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	CompanyID string    `json:"company_id"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

// DomainStatus is a domain listed together with its tenant's state.
type DomainStatus struct {
	Domain             *Domain `json:"domain"`
	CompanyName        string  `json:"company_name"`
	SchemaName         string  `json:"schema_name"`
	SubscriptionActive bool    `json:"subscription_active"`
	OnTrial            bool    `json:"on_trial"`
}

// Stats summarises the tenant population for the public homepage.
type Stats struct {
	Total  int `json:"total_companies"`
	Active int `json:"active_companies"`
	Trial  int `json:"trial_companies"`
}

// Today truncates t to midnight UTC. Subscription dates are compared as
// calendar days.
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CanViewCompany reports whether a request served for current may see
// the company identified by targetSchema. The public tenant sees every
// company; any other tenant sees only itself.
func CanViewCompany(current *Company, targetSchema string) bool {
	if current == nil {
		return false
	}
	return current.IsPublic() || current.SchemaName == targetSchema
}
