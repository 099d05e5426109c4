package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/eventsaas/eventsaas/internal/audit"
	"github.com/eventsaas/eventsaas/internal/billing"
	"github.com/eventsaas/eventsaas/internal/event"
	"github.com/eventsaas/eventsaas/internal/id"
	"github.com/eventsaas/eventsaas/internal/identity"
	"github.com/eventsaas/eventsaas/internal/session"
	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// IN-MEMORY STORES
// =============================================================================

type memCompanies struct {
	mu   sync.Mutex
	byID map[string]*tenant.Company
	doms *memDomains
}

func (m *memCompanies) Create(ctx context.Context, c *tenant.Company, d *tenant.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.SchemaName == c.SchemaName || existing.Name == c.Name {
			return tenant.ErrCompanyExists
		}
	}
	cp := *c
	m.byID[c.ID] = &cp
	return m.doms.Create(ctx, d)
}

func (m *memCompanies) GetByID(ctx context.Context, id string) (*tenant.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, tenant.ErrCompanyNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCompanies) GetBySchema(ctx context.Context, schema string) (*tenant.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.SchemaName == schema {
			cp := *c
			return &cp, nil
		}
	}
	return nil, tenant.ErrCompanyNotFound
}

func (m *memCompanies) List(ctx context.Context) ([]*tenant.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*tenant.Company, 0, len(m.byID))
	for _, c := range m.byID {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memCompanies) Update(ctx context.Context, c *tenant.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[c.ID]; !ok {
		return tenant.ErrCompanyNotFound
	}
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memCompanies) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return tenant.ErrCompanyNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memCompanies) SetSubscriptionFlags(ctx context.Context, ids []string, flags tenant.SubscriptionFlags) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		c, ok := m.byID[id]
		if !ok || c.IsPublic() {
			continue
		}
		if flags.IsActive != nil {
			c.IsActiveSubscription = *flags.IsActive
		}
		if flags.OnTrial != nil {
			c.OnTrial = *flags.OnTrial
		}
		n++
	}
	return n, nil
}

func (m *memCompanies) DeactivateExpired(ctx context.Context, today time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.byID {
		if c.IsActiveSubscription && c.PaidUntil != nil && c.PaidUntil.Before(today) && !c.IsPublic() {
			c.IsActiveSubscription = false
			out = append(out, c.SchemaName)
		}
	}
	return out, nil
}

type memDomains struct {
	mu   sync.Mutex
	byID map[string]*tenant.Domain
}

func (m *memDomains) Create(ctx context.Context, d *tenant.Domain) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Domain == d.Domain {
			return tenant.ErrDomainExists
		}
		if d.IsPrimary && existing.CompanyID == d.CompanyID {
			existing.IsPrimary = false
		}
	}
	cp := *d
	m.byID[d.ID] = &cp
	return nil
}

func (m *memDomains) GetByID(ctx context.Context, id string) (*tenant.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.byID[id]
	if !ok {
		return nil, tenant.ErrDomainNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDomains) GetByHost(ctx context.Context, host string) (*tenant.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.byID {
		if d.Domain == host {
			cp := *d
			return &cp, nil
		}
	}
	return nil, tenant.ErrDomainNotFound
}

func (m *memDomains) ListForCompany(ctx context.Context, companyID string) ([]*tenant.Domain, error) {
	all, _ := m.List(ctx)
	var out []*tenant.Domain
	for _, d := range all {
		if d.CompanyID == companyID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDomains) List(ctx context.Context) ([]*tenant.Domain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*tenant.Domain, 0, len(m.byID))
	for _, d := range m.byID {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

func (m *memDomains) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return tenant.ErrDomainNotFound
	}
	delete(m.byID, id)
	return nil
}

type noopProvisioner struct{}

func (noopProvisioner) Provision(ctx context.Context, schema string) error { return nil }
func (noopProvisioner) Drop(ctx context.Context, schema string) error      { return nil }

type memPlans struct {
	mu   sync.Mutex
	byID map[string]*billing.Plan
}

func (m *memPlans) Create(ctx context.Context, p *billing.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Name == p.Name {
			return billing.ErrPlanExists
		}
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memPlans) Update(ctx context.Context, p *billing.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memPlans) GetByID(ctx context.Context, id string) (*billing.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, billing.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlans) List(ctx context.Context, activeOnly bool) ([]*billing.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*billing.Plan
	for _, p := range m.byID {
		if activeOnly && !p.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out, nil
}

type memOrders struct {
	mu        sync.Mutex
	byID      map[string]*billing.Order
	companies *memCompanies
}

func (m *memOrders) Create(ctx context.Context, o *billing.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *memOrders) GetByID(ctx context.Context, id string) (*billing.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return nil, billing.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) List(ctx context.Context, f billing.OrderFilter) ([]*billing.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*billing.Order{}
	for _, o := range m.byID {
		if f.CompanyID != "" && o.CompanyID != f.CompanyID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memOrders) Approve(ctx context.Context, a billing.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[a.OrderID]
	if !ok {
		return billing.ErrOrderNotFound
	}
	if o.Status != billing.StatusPending {
		return billing.ErrOrderNotPending
	}
	o.Status = billing.StatusApproved
	at := a.At
	o.ApprovedAt, o.PaidAt = &at, &at

	m.companies.mu.Lock()
	defer m.companies.mu.Unlock()
	c, ok := m.companies.byID[a.CompanyID]
	if !ok {
		return tenant.ErrCompanyNotFound
	}
	planID, paidUntil := a.PlanID, a.PaidUntil
	c.CurrentPlanID = &planID
	c.SubscriptionStart = &at
	c.PaidUntil = &paidUntil
	c.IsActiveSubscription = true
	c.OnTrial = false
	return nil
}

func (m *memOrders) RejectPending(ctx context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if o, ok := m.byID[id]; ok && o.Status == billing.StatusPending {
			o.Status = billing.StatusRejected
			n++
		}
	}
	return n, nil
}

// schemaStore keeps per-schema rows. Lookups without a schema in the
// context fail closed, as the database repositories do.
type schemaStore struct {
	mu     sync.Mutex
	users  map[string]map[string]*identity.User
	events map[string]map[string]*event.Event
	regs   map[string]map[string]*event.Registration
}

func newSchemaStore() *schemaStore {
	return &schemaStore{
		users:  map[string]map[string]*identity.User{},
		events: map[string]map[string]*event.Event{},
		regs:   map[string]map[string]*event.Registration{},
	}
}

func schemaOf(ctx context.Context) (string, error) {
	schema, ok := tenant.SchemaFrom(ctx)
	if !ok {
		return "", tenant.ErrNoSchema
	}
	return schema, nil
}

type memUsers struct{ s *schemaStore }

func (m memUsers) table(ctx context.Context) (map[string]*identity.User, error) {
	schema, err := schemaOf(ctx)
	if err != nil {
		return nil, err
	}
	if m.s.users[schema] == nil {
		m.s.users[schema] = map[string]*identity.User{}
	}
	return m.s.users[schema], nil
}

func (m memUsers) Create(ctx context.Context, u *identity.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, err := m.table(ctx)
	if err != nil {
		return err
	}
	for _, existing := range t {
		if existing.Username == u.Username {
			return identity.ErrUserAlreadyExists
		}
	}
	cp := *u
	t[u.ID] = &cp
	return nil
}

func (m memUsers) GetByID(ctx context.Context, id string) (*identity.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, err := m.table(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := t[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m memUsers) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, err := m.table(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range t {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

func (m memUsers) List(ctx context.Context) ([]*identity.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, err := m.table(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*identity.User, 0, len(t))
	for _, u := range t {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m memUsers) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, err := m.table(ctx)
	if err != nil {
		return err
	}
	if u, ok := t[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

type memEvents struct{ s *schemaStore }

func (m memEvents) tables(ctx context.Context) (map[string]*event.Event, map[string]*event.Registration, error) {
	schema, err := schemaOf(ctx)
	if err != nil {
		return nil, nil, err
	}
	if m.s.events[schema] == nil {
		m.s.events[schema] = map[string]*event.Event{}
		m.s.regs[schema] = map[string]*event.Registration{}
	}
	return m.s.events[schema], m.s.regs[schema], nil
}

func withCounts(e *event.Event, regs map[string]*event.Registration) *event.Event {
	cp := *e
	cp.RegistrationCount, cp.ConfirmedCount = 0, 0
	for _, r := range regs {
		if r.EventID != e.ID {
			continue
		}
		cp.RegistrationCount++
		if r.Status == event.RegistrationConfirmed {
			cp.ConfirmedCount++
		}
	}
	return &cp
}

func (m memEvents) Create(ctx context.Context, e *event.Event) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	events, _, err := m.tables(ctx)
	if err != nil {
		return err
	}
	cp := *e
	events[e.ID] = &cp
	return nil
}

func (m memEvents) Update(ctx context.Context, e *event.Event) error {
	return m.Create(ctx, e)
}

func (m memEvents) Delete(ctx context.Context, id string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	events, regs, err := m.tables(ctx)
	if err != nil {
		return err
	}
	if _, ok := events[id]; !ok {
		return event.ErrEventNotFound
	}
	delete(events, id)
	for k, r := range regs {
		if r.EventID == id {
			delete(regs, k)
		}
	}
	return nil
}

func (m memEvents) GetByID(ctx context.Context, id string) (*event.Event, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	events, regs, err := m.tables(ctx)
	if err != nil {
		return nil, err
	}
	e, ok := events[id]
	if !ok {
		return nil, event.ErrEventNotFound
	}
	return withCounts(e, regs), nil
}

func (m memEvents) List(ctx context.Context, f event.ListFilter) ([]*event.Event, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	events, regs, err := m.tables(ctx)
	if err != nil {
		return nil, err
	}
	out := []*event.Event{}
	for _, e := range events {
		if f.PublishedOnly && e.Status != event.StatusPublished {
			continue
		}
		out = append(out, withCounts(e, regs))
	}
	sort.Slice(out, func(i, j int) bool {
		if f.Ascending {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].StartDate.After(out[j].StartDate)
	})
	return out, nil
}

type memRegistrations struct{ s *schemaStore }

func (m memRegistrations) Register(ctx context.Context, r *event.Registration, check event.RegistrationCheck) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	events, regs, err := memEvents(m).tables(ctx)
	if err != nil {
		return err
	}
	e, ok := events[r.EventID]
	if !ok {
		return event.ErrEventNotFound
	}
	counted := withCounts(e, regs)
	if check != nil {
		if err := check(counted, counted.RegistrationCount); err != nil {
			return err
		}
	}
	for _, existing := range regs {
		if existing.EventID == r.EventID && existing.UserID == r.UserID {
			return event.ErrAlreadyRegistered
		}
	}
	cp := *r
	regs[r.ID] = &cp
	return nil
}

func (m memRegistrations) Get(ctx context.Context, eventID, userID string) (*event.Registration, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, regs, err := memEvents(m).tables(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range regs {
		if r.EventID == eventID && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, event.ErrRegistrationNotFound
}

func (m memRegistrations) Delete(ctx context.Context, eventID, userID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, regs, err := memEvents(m).tables(ctx)
	if err != nil {
		return err
	}
	for k, r := range regs {
		if r.EventID == eventID && r.UserID == userID {
			delete(regs, k)
			return nil
		}
	}
	return event.ErrRegistrationNotFound
}

func (m memRegistrations) list(ctx context.Context, keep func(*event.Registration) bool) ([]*event.Registration, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	events, regs, err := memEvents(m).tables(ctx)
	if err != nil {
		return nil, err
	}
	var out []*event.Registration
	for _, r := range regs {
		if !keep(r) {
			continue
		}
		cp := *r
		if e, ok := events[r.EventID]; ok {
			ec := *e
			cp.Event = &ec
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.After(out[j].RegisteredAt) })
	return out, nil
}

func (m memRegistrations) ListForUser(ctx context.Context, userID string) ([]*event.Registration, error) {
	return m.list(ctx, func(r *event.Registration) bool { return r.UserID == userID })
}

func (m memRegistrations) ListForEvent(ctx context.Context, eventID string) ([]*event.Registration, error) {
	return m.list(ctx, func(r *event.Registration) bool { return r.EventID == eventID })
}

type memSessions struct {
	mu      sync.Mutex
	byID    map[string]*session.Session
	corrupt map[string]bool
}

func (m *memSessions) Create(ctx context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[s.ID]; ok {
		return session.ErrSessionInvalid
	}
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memSessions) Get(ctx context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.corrupt[id] {
		return nil, session.ErrSessionInvalid
	}
	s, ok := m.byID[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) Update(ctx context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[s.ID]; !ok {
		return session.ErrSessionNotFound
	}
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *memSessions) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return session.ErrSessionNotFound
	}
	delete(m.byID, id)
	return nil
}

// =============================================================================
// TEST SERVER
// =============================================================================

const (
	publicHost = "admin.localhost"
	acmeHost   = "acme.localhost"
	betaHost   = "beta.localhost"
	lapsedHost = "lapsed.localhost"
	testCSRF   = "test-csrf"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t         *testing.T
	handler   *Handler
	router    *chi.Mux
	clock     *clockwork.FakeClock
	companies *memCompanies
	plans     *memPlans
	orders    *memOrders
	sessions  *memSessions

	public, acme, beta, lapsed *tenant.Company
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testNow)
	auditLogger := audit.NewSlogLoggerWith(slog.New(slog.NewTextHandler(io.Discard, nil)))

	domains := &memDomains{byID: map[string]*tenant.Domain{}}
	companies := &memCompanies{byID: map[string]*tenant.Company{}, doms: domains}
	plans := &memPlans{byID: map[string]*billing.Plan{}}
	orders := &memOrders{byID: map[string]*billing.Order{}, companies: companies}
	store := newSchemaStore()

	tenantService := tenant.NewService(companies, domains, noopProvisioner{}, nil, auditLogger, clock, nil)
	billingService := billing.NewService(plans, orders, billing.Periods{MonthlyDays: 30, YearlyDays: 365}, auditLogger, clock, nil)
	eventService := event.NewService(memEvents{store}, memRegistrations{store}, auditLogger, clock)
	identityService := identity.NewService(memUsers{store}, identity.NewPasswordHasher(1024, 1, 1, 16, 32), auditLogger, clock)
	sessions := &memSessions{byID: map[string]*session.Session{}, corrupt: map[string]bool{}}
	sessionService := session.NewService(sessions, 24*time.Hour, 2*time.Hour, clock)

	h := NewHandler(tenantService, billingService, eventService, identityService, sessionService, auditLogger, nil, SessionConfig{
		CookieName:     "eventsaas_session",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
	})

	srv := &testServer{
		t:         t,
		handler:   h,
		router:    NewRouter(h, nil),
		clock:     clock,
		companies: companies,
		plans:     plans,
		orders:    orders,
		sessions:  sessions,
	}

	var err error
	srv.public, _, err = tenantService.SetupPublic(ctx, publicHost)
	require.NoError(t, err)

	paidUntil := tenant.Today(testNow).AddDate(0, 1, 0)
	srv.acme, err = tenantService.CreateCompany(ctx, tenant.NewCompany{
		Name: "Acme", Domain: acmeHost, IsActiveSubscription: true, PaidUntil: &paidUntil,
	})
	require.NoError(t, err)
	srv.beta, err = tenantService.CreateCompany(ctx, tenant.NewCompany{
		Name: "Beta", Domain: betaHost, IsActiveSubscription: true,
	})
	require.NoError(t, err)
	srv.lapsed, err = tenantService.CreateCompany(ctx, tenant.NewCompany{
		Name: "Lapsed", Domain: lapsedHost, OnTrial: true,
	})
	require.NoError(t, err)

	return srv
}

// user creates an account in the company's schema and returns a session
// cookie for it.
func (s *testServer) user(c *tenant.Company, username string, staff bool) (*identity.User, *http.Cookie) {
	s.t.Helper()
	ctx := tenant.WithCompany(context.Background(), c)

	var (
		u   *identity.User
		err error
	)
	if staff {
		u, _, err = s.handler.identityService.CreateSuperuser(ctx, username, username+"@example.com", "password123")
	} else {
		u, err = s.handler.identityService.Signup(ctx, identity.SignupInput{
			Username: username, Email: username + "@example.com", Password: "password123",
		})
	}
	require.NoError(s.t, err)

	sess, err := s.handler.sessionService.Create(ctx, c.SchemaName, u.ID, "192.0.2.1", "test")
	require.NoError(s.t, err)
	return u, &http.Cookie{Name: "eventsaas_session", Value: sess.ID}
}

func (s *testServer) plan(name string, cents int64, period billing.BillingPeriod) *billing.Plan {
	s.t.Helper()
	p := &billing.Plan{
		ID: id.NewUUIDv7(), Name: name, PriceCents: cents, BillingPeriod: period,
		IsActive: true, CreatedAt: testNow,
	}
	require.NoError(s.t, s.plans.Create(context.Background(), p))
	return p
}

func (s *testServer) do(method, host, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, "http://"+host+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", testCSRF)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
