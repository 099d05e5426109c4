package postgres

import (
	"context"
	"net/url"
	"testing"

	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementKind(t *testing.T) {
	assert.Equal(t, "SELECT", statementKind("\n\tselect 1"))
	assert.Equal(t, "UPDATE", statementKind("UPDATE public.orders SET status = 'rejected'"))
	assert.Equal(t, "OTHER", statementKind("TRUNCATE users"))
	assert.Equal(t, "UNKNOWN", statementKind("   "))
}

func TestWithSearchPath(t *testing.T) {
	got, err := withSearchPath("postgres://u:p@db:5432/eventsaas?sslmode=disable", "acme")
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "acme", u.Query().Get("search_path"))
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}

// TestPurpose: Validates that tenant-scoped queries never run without a schema.
// Scope: Unit Test
// Security: Multi-tenant Data Separation (CWE-284)
// Expected: inSchema fails closed before touching the pool.
// Test Case ID: ISO-02
func TestInSchema_FailsClosed(t *testing.T) {
	db := &DB{}
	called := false
	fn := func(pgx.Tx) error {
		called = true
		return nil
	}

	err := db.inSchema(context.Background(), fn)
	assert.ErrorIs(t, err, tenant.ErrNoSchema)

	err = db.inSchema(tenant.WithSchema(context.Background(), "pg_catalog"), fn)
	assert.ErrorIs(t, err, tenant.ErrInvalidSchemaName)
	assert.False(t, called)
}

func TestMigrator_RejectsPublicAndInvalid(t *testing.T) {
	m := NewMigrator(&DB{})
	ctx := context.Background()

	assert.ErrorIs(t, m.Provision(ctx, tenant.PublicSchema), tenant.ErrPublicTenant)
	assert.ErrorIs(t, m.Drop(ctx, tenant.PublicSchema), tenant.ErrPublicTenant)
	assert.ErrorIs(t, m.Drop(ctx, "bad-name"), tenant.ErrInvalidSchemaName)
}
