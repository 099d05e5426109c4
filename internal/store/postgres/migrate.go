package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/eventsaas/eventsaas/internal/observability/logger"
	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
)

//go:embed migrations/public/*.sql migrations/tenant/*.sql
var migrationFS embed.FS

const (
	publicMigrations = "migrations/public"
	tenantMigrations = "migrations/tenant"
)

// Migrator applies the public and per-tenant migrations and implements
// tenant.SchemaProvisioner.
type Migrator struct {
	db *DB
}

// NewMigrator creates a migrator for db.
func NewMigrator(db *DB) *Migrator {
	return &Migrator{db: db}
}

var _ tenant.SchemaProvisioner = (*Migrator)(nil)

// MigratePublic applies the control plane migrations to the public schema.
func (m *Migrator) MigratePublic(ctx context.Context) error {
	return m.up(ctx, publicMigrations, tenant.PublicSchema)
}

// MigrateTenants applies tenant migrations to every tenant schema and
// returns the number of schemas migrated.
func (m *Migrator) MigrateTenants(ctx context.Context) (int, error) {
	rows, err := m.db.pool.Query(ctx, `SELECT schema_name FROM public.companies WHERE schema_name <> $1 ORDER BY schema_name`, tenant.PublicSchema)
	if err != nil {
		return 0, fmt.Errorf("failed to list tenant schemas: %w", err)
	}
	schemas, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, fmt.Errorf("failed to list tenant schemas: %w", err)
	}

	for i, schema := range schemas {
		if err := m.Provision(ctx, schema); err != nil {
			return i, err
		}
	}
	return len(schemas), nil
}

// Provision creates the schema if needed and applies tenant migrations.
func (m *Migrator) Provision(ctx context.Context, schema string) error {
	if err := tenant.ValidateSchemaName(schema); err != nil {
		return err
	}
	if schema == tenant.PublicSchema {
		return tenant.ErrPublicTenant
	}
	if _, err := m.db.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}
	return m.up(ctx, tenantMigrations, schema)
}

// Drop removes a tenant schema with everything in it.
func (m *Migrator) Drop(ctx context.Context, schema string) error {
	if err := tenant.ValidateSchemaName(schema); err != nil {
		return err
	}
	if schema == tenant.PublicSchema {
		return tenant.ErrPublicTenant
	}
	if _, err := m.db.pool.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{schema}.Sanitize()+" CASCADE"); err != nil {
		return fmt.Errorf("failed to drop schema %s: %w", schema, err)
	}
	slog.InfoContext(ctx, "tenant schema dropped", logger.Schema(schema))
	return nil
}

func (m *Migrator) up(ctx context.Context, dir, schema string) error {
	src, err := iofs.New(migrationFS, dir)
	if err != nil {
		return fmt.Errorf("failed to open migrations %s: %w", dir, err)
	}

	dbURL, err := withSearchPath(m.db.url, schema)
	if err != nil {
		return err
	}

	mg, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return fmt.Errorf("failed to initialise migrations for %s: %w", schema, err)
	}
	defer func() {
		if srcErr, dbErr := mg.Close(); srcErr != nil || dbErr != nil {
			slog.WarnContext(ctx, "failed to close migrator", logger.Schema(schema), logger.Error(errors.Join(srcErr, dbErr)))
		}
	}()

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate schema %s: %w", schema, err)
	}

	version, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version for %s: %w", schema, err)
	}
	slog.InfoContext(ctx, "schema migrated",
		logger.Schema(schema),
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// withSearchPath points the connection URL at one schema so the
// migration driver keeps its version table inside that schema.
func withSearchPath(raw, schema string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid database url: %w", err)
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
