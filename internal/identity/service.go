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
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"

	"github.com/eventsaas/eventsaas/internal/audit"
	"github.com/eventsaas/eventsaas/internal/id"
	"github.com/eventsaas/eventsaas/internal/observability/logger"
	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/argon2"
)

// PasswordHasher handles password hashing using Argon2id
type PasswordHasher struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

// NewPasswordHasher creates a new password hasher with Argon2id
func NewPasswordHasher(memory, iterations uint32, parallelism uint8, saltLength, keyLength uint32) *PasswordHasher {
	return &PasswordHasher{
		memory:      memory,
		iterations:  iterations,
		parallelism: parallelism,
		saltLength:  saltLength,
		keyLength:   keyLength,
	}
}

// Hash hashes a password using Argon2id
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey(
		[]byte(password),
		salt,
		h.iterations,
		h.memory,
		h.parallelism,
		h.keyLength,
	)

	// $argon2id$v=19$m=memory,t=iterations,p=parallelism$salt$hash
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.iterations,
		h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify verifies a password against a hash produced by Hash. The cost
// parameters are read from the encoded hash.
func (h *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	sections := strings.Split(strings.TrimPrefix(encodedHash, "$"), "$")
	if len(sections) != 5 || sections[0] != "argon2id" {
		return false, fmt.Errorf("invalid hash format: got %d sections", len(sections))
	}

	var version int
	if _, err := fmt.Sscanf(sections[1], "v=%d", &version); err != nil {
		return false, fmt.Errorf("invalid version: %w", err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("unsupported argon2 version %d", version)
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(sections[2], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("invalid parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(sections[3])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(sections[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	actualHash := argon2.IDKey(
		[]byte(password),
		salt,
		iterations,
		memory,
		parallelism,
		uint32(len(expectedHash)),
	)

	return subtle.ConstantTimeCompare(actualHash, expectedHash) == 1, nil
}

var usernamePattern = regexp.MustCompile(`^[\w.@+-]{1,150}$`)

const minPasswordLength = 8

// Service provides identity-related business logic
type Service struct {
	repo        UserRepository
	hasher      *PasswordHasher
	auditLogger audit.Logger
	clock       clockwork.Clock
}

// NewService creates a new identity service
func NewService(repo UserRepository, hasher *PasswordHasher, auditLogger audit.Logger, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
		clock:       clock,
	}
}

// SignupInput is a self-service account request.
type SignupInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Signup creates a regular active user in the current schema.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*User, error) {
	if in.PasswordConfirm != "" && in.PasswordConfirm != in.Password {
		return nil, ErrPasswordMismatch
	}
	u := &User{
		Username:  strings.TrimSpace(in.Username),
		Email:     strings.TrimSpace(in.Email),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		IsActive:  true,
	}
	if err := s.create(ctx, u, in.Password); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateSuperuser creates an active staff superuser. If the username is
// taken it returns the existing user with created set to false.
func (s *Service) CreateSuperuser(ctx context.Context, username, email, password string) (*User, bool, error) {
	username = strings.TrimSpace(username)
	existing, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, fmt.Errorf("failed to look up user: %w", err)
	}

	u := &User{
		Username:    username,
		Email:       strings.TrimSpace(email),
		IsStaff:     true,
		IsSuperuser: true,
		IsActive:    true,
	}
	if err := s.create(ctx, u, password); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (s *Service) create(ctx context.Context, u *User, password string) error {
	if !usernamePattern.MatchString(u.Username) {
		return ErrInvalidUsername
	}
	if u.Email != "" && !isValidEmail(u.Email) {
		return ErrInvalidEmail
	}
	if !isStrongPassword(password) {
		return ErrWeakPassword
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	u.ID = id.NewUUIDv7()
	u.PasswordHash = hash
	u.DateJoined = s.clock.Now()

	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrUserAlreadyExists) {
			return ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	schema, _ := tenant.SchemaFrom(ctx)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		Schema:   schema,
		ActorID:  u.ID,
		Resource: "user",
		Metadata: map[string]any{"username": u.Username, "is_staff": u.IsStaff},
	})
	return nil
}

// Authenticate verifies a username and password in the current schema.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	schema, _ := tenant.SchemaFrom(ctx)

	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		s.auditFailure(ctx, schema, "", username, "user_not_found")
		return nil, ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		if err != nil {
			slog.WarnContext(ctx, "unreadable password hash", logger.UserID(user.ID), logger.Error(err))
		}
		s.auditFailure(ctx, schema, user.ID, username, "invalid_password")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.auditFailure(ctx, schema, user.ID, username, "inactive")
		return nil, ErrUserInactive
	}

	now := s.clock.Now()
	if err := s.repo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		slog.ErrorContext(ctx, "failed to record last login", logger.UserID(user.ID), logger.Error(err))
	} else {
		user.LastLogin = &now
	}

	return user, nil
}

func (s *Service) auditFailure(ctx context.Context, schema, userID, username, reason string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginFailed,
		Schema:   schema,
		ActorID:  userID,
		Resource: username,
		Metadata: map[string]any{"reason": reason},
	})
}

// GetUser retrieves a user by ID
func (s *Service) GetUser(ctx context.Context, userID string) (*User, error) {
	return s.repo.GetByID(ctx, userID)
}

// ListUsers returns the users of the current schema with summary counts.
func (s *Service) ListUsers(ctx context.Context) (*Directory, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	d := &Directory{Users: users, Total: len(users)}
	for _, u := range users {
		if u.IsActive {
			d.Active++
		}
		if u.IsStaff {
			d.Staff++
		}
		if u.IsSuperuser {
			d.Superusers++
		}
	}
	return d, nil
}

func isValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func isStrongPassword(password string) bool {
	return len(password) >= minPasswordLength
}
