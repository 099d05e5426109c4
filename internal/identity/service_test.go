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

package identity

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/eventsaas/eventsaas/internal/audit"
	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockUserRepository is a simple in-memory implementation of UserRepository
type MockUserRepository struct {
	users map[string]*User
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *User) error {
	for _, u := range m.users {
		if u.Username == user.Username {
			return ErrUserAlreadyExists
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MockUserRepository) List(ctx context.Context) ([]*User, error) {
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *MockUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.LastLogin = &at
	return nil
}

// recordingAudit captures audit events
type recordingAudit struct {
	events []audit.Event
}

func (r *recordingAudit) Log(ctx context.Context, e audit.Event) {
	r.events = append(r.events, e)
}

func (r *recordingAudit) types() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// cheap parameters keep the tests fast
func testHasher() *PasswordHasher {
	return NewPasswordHasher(1024, 1, 1, 16, 32)
}

func newTestService() (*Service, *MockUserRepository, *recordingAudit) {
	repo := NewMockUserRepository()
	a := &recordingAudit{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	return NewService(repo, testHasher(), a, clock), repo, a
}

// TestPurpose: Validates Argon2id hashing round trips and rejects wrong passwords.
// Scope: Unit Test
// Security: Credential storage (CWE-916)
// Expected: Correct password verifies; wrong password and malformed hashes do not.
// Test Case ID: IDN-01
func TestPasswordHasher_HashVerify(t *testing.T) {
	h := testHasher()

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$m=1024,t=1,p=1$")

	ok, err := h.Verify("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("battery staple", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts must differ")

	_, err = h.Verify("x", "plaintext")
	assert.Error(t, err)
	_, err = h.Verify("x", "$bcrypt$v=19$m=1,t=1,p=1$AA$AA")
	assert.Error(t, err)
}

// TestPurpose: Validates self-service signup rules.
// Scope: Unit Test
// Expected: Valid signups create an active non-staff user; bad usernames, emails, short passwords, mismatches and duplicates are rejected.
// Test Case ID: IDN-02
func TestService_Signup(t *testing.T) {
	svc, _, a := newTestService()
	ctx := tenant.WithSchema(context.Background(), "acme")

	u, err := svc.Signup(ctx, SignupInput{Username: "alice", Email: "alice@acme.test", Password: "s3cretpass", PasswordConfirm: "s3cretpass"})
	require.NoError(t, err)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsStaff)
	assert.NotEqual(t, "s3cretpass", u.PasswordHash)
	assert.Equal(t, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC), u.DateJoined)

	cases := map[string]struct {
		in   SignupInput
		want error
	}{
		"empty username":  {SignupInput{Username: "", Password: "longenough"}, ErrInvalidUsername},
		"spaces":          {SignupInput{Username: "bob smith", Password: "longenough"}, ErrInvalidUsername},
		"bad email":       {SignupInput{Username: "bob", Email: "not-an-email", Password: "longenough"}, ErrInvalidEmail},
		"short password":  {SignupInput{Username: "bob", Password: "short"}, ErrWeakPassword},
		"mismatch":        {SignupInput{Username: "bob", Password: "longenough", PasswordConfirm: "different"}, ErrPasswordMismatch},
		"duplicate":       {SignupInput{Username: "alice", Password: "longenough"}, ErrUserAlreadyExists},
		"duplicate again": {SignupInput{Username: " alice ", Password: "longenough"}, ErrUserAlreadyExists},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	require.NotEmpty(t, a.events)
	assert.Equal(t, audit.TypeUserCreated, a.events[0].Type)
	assert.Equal(t, "acme", a.events[0].Schema)
}

// TestPurpose: Validates username/password authentication.
// Scope: Unit Test
// Security: Authentication (CWE-287)
// Expected: Valid credentials succeed and set last_login; unknown users and bad passwords return ErrInvalidCredentials; inactive users are refused.
// Test Case ID: IDN-03
func TestService_Authenticate(t *testing.T) {
	svc, repo, a := newTestService()
	ctx := context.Background()

	u, err := svc.Signup(ctx, SignupInput{Username: "alice", Password: "s3cretpass"})
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, "alice", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, repo.users[u.ID].LastLogin)

	_, err = svc.Authenticate(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "mallory", "s3cretpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	repo.users[u.ID].IsActive = false
	_, err = svc.Authenticate(ctx, "alice", "s3cretpass")
	assert.ErrorIs(t, err, ErrUserInactive)

	assert.Equal(t, []string{
		audit.TypeUserCreated,
		audit.TypeLoginFailed,
		audit.TypeLoginFailed,
		audit.TypeLoginFailed,
	}, a.types())
}

// Test Case ID: IDN-04
func TestService_CreateSuperuser_Idempotent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, created, err := svc.CreateSuperuser(ctx, "admin", "admin@acme.localhost", "admin123")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, u.IsStaff)
	assert.True(t, u.IsSuperuser)

	again, created, err := svc.CreateSuperuser(ctx, "admin", "other@acme.localhost", "whatever1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, u.ID, again.ID)
}

// Test Case ID: IDN-05
func TestService_ListUsers(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.CreateSuperuser(ctx, "root", "", "rootpassword")
	require.NoError(t, err)
	bob, err := svc.Signup(ctx, SignupInput{Username: "bob", Password: "bobpassword"})
	require.NoError(t, err)
	_, err = svc.Signup(ctx, SignupInput{Username: "alice", Password: "alicepassword"})
	require.NoError(t, err)
	repo.users[bob.ID].IsActive = false

	d, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Total)
	assert.Equal(t, 2, d.Active)
	assert.Equal(t, 1, d.Staff)
	assert.Equal(t, 1, d.Superusers)
	assert.Equal(t, "alice", d.Users[0].Username)
}
