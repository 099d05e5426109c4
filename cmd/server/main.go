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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventsaas/eventsaas/internal/audit"
	"github.com/eventsaas/eventsaas/internal/billing"
	"github.com/eventsaas/eventsaas/internal/config"
	"github.com/eventsaas/eventsaas/internal/event"
	"github.com/eventsaas/eventsaas/internal/identity"
	"github.com/eventsaas/eventsaas/internal/observability/logger"
	"github.com/eventsaas/eventsaas/internal/observability/metrics"
	"github.com/eventsaas/eventsaas/internal/observability/tracing"
	"github.com/eventsaas/eventsaas/internal/session"
	"github.com/eventsaas/eventsaas/internal/store/postgres"
	"github.com/eventsaas/eventsaas/internal/store/redis"
	"github.com/eventsaas/eventsaas/internal/tenant"
	transportHTTP "github.com/eventsaas/eventsaas/internal/transport/http"
	"github.com/jonboulle/clockwork"
)

const usage = `usage: eventsaas [command]

commands:
  serve                                 run the HTTP server (default)
  migrate                               apply public and tenant migrations
  setup-public --domain HOST [flags]    create the public tenant, its domain and a platform admin
  setup-tenant NAME DOMAIN [flags]      create an active tenant with an admin user
`

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})

	cmd, args := "serve", []string(nil)
	if len(os.Args) > 1 {
		cmd, args = os.Args[1], os.Args[2:]
	}

	switch cmd {
	case "serve":
		err = runServe(cfg)
	case "migrate":
		err = runMigrate(cfg)
	case "setup-public":
		err = runSetupPublic(cfg, args)
	case "setup-tenant":
		err = runSetupTenant(cfg, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Printf("unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Printf("%s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}

func openDB(ctx context.Context, cfg *config.Config, instruments *metrics.Instruments) (*postgres.DB, error) {
	db, err := postgres.New(ctx, postgres.Config{
		URL:             cfg.Database.URL(),
		MaxConns:        cfg.Database.MaxOpenConns,
		MinConns:        cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		Instruments:     instruments,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("connected to database")
	return db, nil
}

// services bundles the domain services shared by every command.
type services struct {
	tenant    *tenant.Service
	billing   *billing.Service
	event     *event.Service
	identity  *identity.Service
	bootstrap *identity.BootstrapService
}

func newServices(cfg *config.Config, db *postgres.DB, cache tenant.DomainCache, auditLogger audit.Logger, clock clockwork.Clock, instruments *metrics.Instruments) *services {
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	svc := &services{
		tenant: tenant.NewService(
			postgres.NewCompanyRepository(db),
			postgres.NewDomainRepository(db),
			postgres.NewMigrator(db),
			cache,
			auditLogger,
			clock,
			instruments,
		),
		billing: billing.NewService(
			postgres.NewPlanRepository(db),
			postgres.NewOrderRepository(db),
			billing.Periods{MonthlyDays: cfg.Billing.MonthlyDays, YearlyDays: cfg.Billing.YearlyDays},
			auditLogger,
			clock,
			instruments,
		),
		event: event.NewService(
			postgres.NewEventRepository(db),
			postgres.NewRegistrationRepository(db),
			auditLogger,
			clock,
		),
		identity: identity.NewService(postgres.NewUserRepository(db), passwordHasher, auditLogger, clock),
	}
	svc.bootstrap = identity.NewBootstrapService(svc.identity, svc.tenant, auditLogger)
	return svc
}

func runServe(cfg *config.Config) error {
	slog.Info("starting eventsaas")
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
		tracer, _ = tracing.New(ctx, tracing.Config{Enabled: false, ServiceName: cfg.Observability.ServiceName})
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	var instruments *metrics.Instruments
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	} else if instruments, err = metrics.NewInstruments(meter); err != nil {
		slog.Error("failed to register instruments", logger.Error(err))
	}

	db, err := openDB(ctx, cfg, instruments)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	slog.Info("connected to redis")

	clock := clockwork.NewRealClock()
	auditLogger := audit.NewSlogLogger()
	svc := newServices(cfg, db, redis.NewDomainCache(rdb.Underlying(), cfg.Tenancy.DomainCacheTTL), auditLogger, clock, instruments)
	sessionService := session.NewService(
		redis.NewSessionRepository(rdb.Underlying(), clock),
		cfg.Session.Lifetime,
		cfg.Session.IdleTimeout,
		clock,
	)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	// Configure SameSite mode
	sameSite := http.SameSiteLaxMode
	switch cfg.Session.CookieSameSite {
	case "Strict":
		sameSite = http.SameSiteStrictMode
	case "None":
		sameSite = http.SameSiteNoneMode
	}

	handler := transportHTTP.NewHandler(
		svc.tenant,
		svc.billing,
		svc.event,
		svc.identity,
		sessionService,
		auditLogger,
		instruments,
		transportHTTP.SessionConfig{
			CookieName:     cfg.Session.CookieName,
			CookiePath:     cfg.Session.CookiePath,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieHTTPOnly: cfg.Session.CookieHTTPOnly,
			CookieSameSite: sameSite,
		},
	)
	router := transportHTTP.NewRouter(handler, rateLimiter)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepSubscriptions(sweepCtx, svc.tenant, tracer, clock, cfg.Tenancy.SweepInterval)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down server")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
	return nil
}

// sweepSubscriptions deactivates expired subscriptions once at start and
// then every interval until ctx is cancelled.
func sweepSubscriptions(ctx context.Context, svc *tenant.Service, tracer *tracing.Tracer, clock clockwork.Clock, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		spanCtx, span := tracer.StartBackground(ctx, "subscription.sweep", tenant.PublicSchema)
		n, err := svc.DeactivateExpired(spanCtx)
		if err != nil {
			span.RecordError(err)
			slog.ErrorContext(spanCtx, "subscription sweep failed", logger.Component("sweeper"), logger.Error(err))
		} else if n > 0 {
			slog.InfoContext(spanCtx, "expired subscriptions deactivated", logger.Component("sweeper"), logger.RowsAffected(int64(n)))
		}
		span.End()

		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := openDB(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	m := postgres.NewMigrator(db)
	fmt.Println("Applying public schema migrations...")
	if err := m.MigratePublic(ctx); err != nil {
		return err
	}
	n, err := m.MigrateTenants(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Migration successful. %d tenant schema(s) up to date.\n", n)
	return nil
}

func runSetupPublic(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("setup-public", flag.ContinueOnError)
	domain := fs.String("domain", cfg.Tenancy.PublicDomain, "host name of the platform admin site")
	admin := adminFlags(fs, "")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	db, err := openDB(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.NewMigrator(db).MigratePublic(ctx); err != nil {
		return err
	}

	svc := newServices(cfg, db, nil, audit.NewSlogLogger(), clockwork.NewRealClock(), nil)
	res, err := svc.bootstrap.Public(ctx, *domain, *admin)
	if err != nil {
		return err
	}
	host := tenant.NormalizeHost(*domain)
	if res.DomainCreated {
		fmt.Printf("Public tenant %q is served on %s.\n", res.Company.Name, host)
	} else {
		fmt.Printf("Domain %s already exists for the public tenant.\n", host)
	}
	printAdmin(res)
	if res.Admin == nil {
		fmt.Println("No platform admin created; pass --admin-password to create one.")
	}
	return nil
}

// adminFlags registers the --admin-* flags shared by the setup commands.
func adminFlags(fs *flag.FlagSet, defaultPassword string) *identity.Admin {
	a := &identity.Admin{}
	fs.StringVar(&a.Username, "admin-username", "admin", "username of the administrator")
	fs.StringVar(&a.Email, "admin-email", "", "email of the administrator (default admin@DOMAIN)")
	fs.StringVar(&a.Password, "admin-password", defaultPassword, "password of the administrator")
	return a
}

func printAdmin(res *identity.BootstrapResult) {
	switch {
	case res.Admin == nil:
	case res.AdminCreated:
		fmt.Printf("Created admin user %q.\n", res.Admin.Username)
	default:
		fmt.Printf("Admin user %q already exists.\n", res.Admin.Username)
	}
}

// setupTenantPaidUntil is the subscription end given to tenants created
// from the command line.
var setupTenantPaidUntil = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

func runSetupTenant(cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: setup-tenant NAME DOMAIN [--admin-username U] [--admin-email E] [--admin-password P]")
	}
	name, domain := args[0], args[1]

	fs := flag.NewFlagSet("setup-tenant", flag.ContinueOnError)
	admin := adminFlags(fs, "admin123")
	if err := fs.Parse(args[2:]); err != nil {
		return err
	}

	ctx := context.Background()
	db, err := openDB(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := newServices(cfg, db, nil, audit.NewSlogLogger(), clockwork.NewRealClock(), nil)
	paidUntil := setupTenantPaidUntil
	res, err := svc.bootstrap.Tenant(ctx, tenant.NewCompany{
		Name:                 name,
		Domain:               domain,
		IsActiveSubscription: true,
		OnTrial:              false,
		PaidUntil:            &paidUntil,
	}, *admin)
	if res != nil {
		fmt.Printf("Created tenant %q with schema %s on %s.\n", res.Company.Name, res.Company.SchemaName, tenant.NormalizeHost(domain))
	}
	if err != nil {
		return err
	}
	printAdmin(res)
	return nil
}
