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

//go:build integration
// +build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/eventsaas/eventsaas/internal/billing"
	"github.com/eventsaas/eventsaas/internal/event"
	"github.com/eventsaas/eventsaas/internal/id"
	"github.com/eventsaas/eventsaas/internal/identity"
	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	testDB       *DB
	testMigrator *Migrator
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("eventsaas"),
		tcpostgres.WithUsername("eventsaas"),
		tcpostgres.WithPassword("eventsaas"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
		os.Exit(1)
	}

	testDB, err = New(ctx, Config{URL: connStr, MaxConns: 5})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}

	testMigrator = NewMigrator(testDB)
	if err := testMigrator.MigratePublic(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate public schema: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
	}
	os.Exit(code)
}

func newCompany(t *testing.T, name string) *tenant.Company {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	c := &tenant.Company{
		ID:         id.NewUUIDv7(),
		Name:       name,
		SchemaName: tenant.SchemaNameFor(name),
		OnTrial:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	d := &tenant.Domain{
		ID:        id.NewUUIDv7(),
		Domain:    c.SchemaName + ".localhost",
		CompanyID: c.ID,
		IsPrimary: true,
		CreatedAt: now,
	}
	require.NoError(t, NewCompanyRepository(testDB).Create(ctx, c, d))
	require.NoError(t, testMigrator.Provision(ctx, c.SchemaName))
	t.Cleanup(func() {
		_ = testMigrator.Drop(context.Background(), c.SchemaName)
		_ = NewCompanyRepository(testDB).Delete(context.Background(), c.ID)
	})
	return c
}

func newUser(t *testing.T, ctx context.Context, username string) *identity.User {
	t.Helper()
	u := &identity.User{
		ID:           id.NewUUIDv7(),
		Username:     username,
		PasswordHash: "x",
		IsActive:     true,
		DateJoined:   time.Now().UTC(),
	}
	require.NoError(t, NewUserRepository(testDB).Create(ctx, u))
	return u
}

// TestPurpose: Validates that tenant-scoped repositories only see the schema bound to the context.
// Scope: Database Integration Test
// Security: Multi-tenant Data Separation (CWE-284)
// Expected: A user created in tenant A is invisible from tenant B; queries without a schema fail closed.
// Test Case ID: ISO-01
func TestUserRepository_SchemaIsolation(t *testing.T) {
	a := newCompany(t, "Alpha Events")
	b := newCompany(t, "Beta Events")
	users := NewUserRepository(testDB)

	ctxA := tenant.WithSchema(context.Background(), a.SchemaName)
	ctxB := tenant.WithSchema(context.Background(), b.SchemaName)

	alice := newUser(t, ctxA, "alice")

	got, err := users.GetByUsername(ctxA, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)

	_, err = users.GetByUsername(ctxB, "alice")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)

	// Same username is free in another tenant.
	newUser(t, ctxB, "alice")

	_, err = users.GetByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, tenant.ErrNoSchema)

	dup := &identity.User{ID: id.NewUUIDv7(), Username: "alice", PasswordHash: "x", DateJoined: time.Now()}
	assert.ErrorIs(t, users.Create(ctxA, dup), identity.ErrUserAlreadyExists)
}

// TestPurpose: Validates order approval as a single transaction over order and company.
// Scope: Database Integration Test
// Expected: Approval activates the company and sets paid_until; re-approval and rejection of approved orders are no-ops.
// Test Case ID: BIL-DB-01
func TestOrderRepository_ApproveAndReject(t *testing.T) {
	ctx := context.Background()
	c := newCompany(t, "Gamma Events")
	plans := NewPlanRepository(testDB)
	orders := NewOrderRepository(testDB)
	companies := NewCompanyRepository(testDB)

	plan := &billing.Plan{
		ID: id.NewUUIDv7(), Name: "Monthly " + c.SchemaName, PriceCents: 2900,
		BillingPeriod: billing.PeriodMonthly, IsActive: true, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, plans.Create(ctx, plan))

	mkOrder := func() *billing.Order {
		o := &billing.Order{
			ID: id.NewUUIDv7(), CompanyID: c.ID, PlanID: plan.ID, Status: billing.StatusPending,
			TotalAmountCents: plan.PriceCents, BillingPeriod: plan.BillingPeriod, CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, orders.Create(ctx, o))
		return o
	}
	first, second := mkOrder(), mkOrder()

	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	paidUntil := time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, orders.Approve(ctx, billing.Approval{
		OrderID: first.ID, CompanyID: c.ID, PlanID: plan.ID, At: at, PaidUntil: paidUntil,
	}))

	got, err := companies.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActiveSubscription)
	assert.False(t, got.OnTrial)
	require.NotNil(t, got.PaidUntil)
	assert.Equal(t, paidUntil, got.PaidUntil.UTC())
	require.NotNil(t, got.CurrentPlanID)
	assert.Equal(t, plan.ID, *got.CurrentPlanID)

	err = orders.Approve(ctx, billing.Approval{OrderID: first.ID, CompanyID: c.ID, PlanID: plan.ID, At: at, PaidUntil: paidUntil})
	assert.ErrorIs(t, err, billing.ErrOrderNotPending)

	n, err := orders.RejectPending(ctx, []string{first.ID, second.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	o, err := orders.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusRejected, o.Status)
	assert.Equal(t, c.Name, o.CompanyName)

	pending, err := orders.List(ctx, billing.OrderFilter{CompanyID: c.ID, Status: billing.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// Test Case ID: SUB-DB-01
func TestCompanyRepository_DeactivateExpired(t *testing.T) {
	ctx := context.Background()
	c := newCompany(t, "Delta Events")
	companies := NewCompanyRepository(testDB)

	yesterday := tenant.Today(time.Now()).AddDate(0, 0, -1)
	c.IsActiveSubscription = true
	c.PaidUntil = &yesterday
	c.UpdatedAt = time.Now()
	require.NoError(t, companies.Update(ctx, c))

	schemas, err := companies.DeactivateExpired(ctx, tenant.Today(time.Now()))
	require.NoError(t, err)
	assert.Contains(t, schemas, c.SchemaName)

	got, err := companies.GetBySchema(ctx, c.SchemaName)
	require.NoError(t, err)
	assert.False(t, got.IsActiveSubscription)

	on := true
	n, err := companies.SetSubscriptionFlags(ctx, []string{c.ID}, tenant.SubscriptionFlags{IsActive: &on})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// TestPurpose: Validates that registration capacity is enforced under the event row lock.
// Scope: Database Integration Test
// Expected: The second attendee of a one-seat event is refused; duplicates map to ErrAlreadyRegistered.
// Test Case ID: EVT-DB-01
func TestRegistrationRepository_Capacity(t *testing.T) {
	c := newCompany(t, "Epsilon Events")
	ctx := tenant.WithSchema(context.Background(), c.SchemaName)
	events := NewEventRepository(testDB)
	regs := NewRegistrationRepository(testDB)

	owner := newUser(t, ctx, "owner")
	guest := newUser(t, ctx, "guest")

	one := 1
	now := time.Now().UTC()
	e := &event.Event{
		ID: id.NewUUIDv7(), Title: "Meetup", StartDate: now.Add(24 * time.Hour), EndDate: now.Add(26 * time.Hour),
		MaxAttendees: &one, Status: event.StatusPublished, CreatedBy: owner.ID, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, events.Create(ctx, e))

	check := func(ev *event.Event, count int) error {
		if !ev.RegistrationOpen(time.Now(), count) {
			return event.ErrRegistrationClosed
		}
		return nil
	}
	reg := func(userID string) error {
		return regs.Register(ctx, &event.Registration{
			ID: id.NewUUIDv7(), EventID: e.ID, UserID: userID, Status: event.RegistrationConfirmed,
			RegisteredAt: now, UpdatedAt: now,
		}, check)
	}

	require.NoError(t, reg(owner.ID))
	assert.ErrorIs(t, reg(guest.ID), event.ErrRegistrationClosed)
	assert.ErrorIs(t, regs.Register(ctx, &event.Registration{
		ID: id.NewUUIDv7(), EventID: e.ID, UserID: owner.ID, Status: event.RegistrationConfirmed,
		RegisteredAt: now, UpdatedAt: now,
	}, nil), event.ErrAlreadyRegistered)

	got, err := events.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RegistrationCount)
	assert.Equal(t, 1, got.ConfirmedCount)

	mine, err := regs.ListForUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Meetup", mine[0].Event.Title)

	require.NoError(t, regs.Delete(ctx, e.ID, owner.ID))
	assert.ErrorIs(t, regs.Delete(ctx, e.ID, owner.ID), event.ErrRegistrationNotFound)
}
