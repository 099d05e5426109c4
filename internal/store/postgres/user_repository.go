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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventsaas/eventsaas/internal/identity"
	"github.com/jackc/pgx/v5"
)

const userColumns = `
	id, username, email, first_name, last_name, password_hash,
	is_staff, is_superuser, is_active, last_login, date_joined`

// UserRepository implements identity.UserRepository against the users
// table of the schema bound to the request context.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

var _ identity.UserRepository = (*UserRepository)(nil)

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, u *identity.User) error {
	return r.db.inSchema(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (`+userColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash,
			u.IsStaff, u.IsSuperuser, u.IsActive, u.LastLogin, u.DateJoined,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return identity.ErrUserAlreadyExists
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*identity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UserRepository) getOne(ctx context.Context, query, arg string) (*identity.User, error) {
	var user *identity.User
	err := r.db.inSchema(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, arg)
		if err != nil {
			return err
		}
		user, err = pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[identity.User])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// List returns every user ordered by username
func (r *UserRepository) List(ctx context.Context) ([]*identity.User, error) {
	var users []*identity.User
	err := r.db.inSchema(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
		if err != nil {
			return err
		}
		users, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[identity.User])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UpdateLastLogin records a successful login
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.inSchema(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
		if err != nil {
			return fmt.Errorf("failed to update last login: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return identity.ErrUserNotFound
		}
		return nil
	})
}
