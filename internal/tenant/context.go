package tenant

import "context"

type contextKey int

const (
	schemaKey contextKey = iota
	companyKey
)

// WithSchema returns a context whose tenant-scoped queries run in schema.
func WithSchema(ctx context.Context, schema string) context.Context {
	return context.WithValue(ctx, schemaKey, schema)
}

// SchemaFrom returns the schema bound to ctx.
func SchemaFrom(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(schemaKey).(string)
	return s, ok && s != ""
}

// WithCompany binds the resolved company and its schema to ctx.
func WithCompany(ctx context.Context, c *Company) context.Context {
	ctx = context.WithValue(ctx, companyKey, c)
	return WithSchema(ctx, c.SchemaName)
}

// CompanyFrom returns the company resolved for the current request.
func CompanyFrom(ctx context.Context) (*Company, bool) {
	c, ok := ctx.Value(companyKey).(*Company)
	return c, ok && c != nil
}
