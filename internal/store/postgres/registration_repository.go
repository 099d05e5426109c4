package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventsaas/eventsaas/internal/event"
	"github.com/jackc/pgx/v5"
)

// RegistrationRepository implements event.RegistrationRepository inside
// the tenant schema.
type RegistrationRepository struct {
	db *DB
}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository(db *DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

var _ event.RegistrationRepository = (*RegistrationRepository)(nil)

// Register locks the event row so concurrent sign-ups see a stable count,
// runs check, then inserts the registration.
func (r *RegistrationRepository) Register(ctx context.Context, reg *event.Registration, check event.RegistrationCheck) error {
	return r.db.inSchema(ctx, func(tx pgx.Tx) error {
		var e event.Event
		err := tx.QueryRow(ctx, `
			SELECT id, title, start_date, end_date, max_attendees, registration_deadline, status
			FROM events WHERE id = $1
			FOR UPDATE
		`, reg.EventID).Scan(
			&e.ID, &e.Title, &e.StartDate, &e.EndDate, &e.MaxAttendees, &e.RegistrationDeadline, &e.Status,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return event.ErrEventNotFound
			}
			return fmt.Errorf("failed to lock event: %w", err)
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1`, reg.EventID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count registrations: %w", err)
		}
		if check != nil {
			if err := check(&e, count); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO registrations (id, event_id, user_id, status, notes, registered_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, reg.ID, reg.EventID, reg.UserID, reg.Status, reg.Notes, reg.RegisteredAt, reg.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return event.ErrAlreadyRegistered
			}
			return fmt.Errorf("failed to insert registration: %w", err)
		}
		return nil
	})
}

const registrationSelect = `
	SELECT r.id, r.event_id, r.user_id, r.status, r.notes, r.registered_at, r.updated_at,
		u.username,
		e.title, e.location, e.start_date, e.end_date, e.status
	FROM registrations r
	JOIN users u ON u.id = r.user_id
	JOIN events e ON e.id = r.event_id`

// Get retrieves one user's registration for an event
func (r *RegistrationRepository) Get(ctx context.Context, eventID, userID string) (*event.Registration, error) {
	var reg *event.Registration
	err := r.db.inSchema(ctx, func(tx pgx.Tx) error {
		var err error
		reg, err = scanRegistration(tx.QueryRow(ctx, registrationSelect+` WHERE r.event_id = $1 AND r.user_id = $2`, eventID, userID))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, event.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

// Delete removes a user's registration for an event
func (r *RegistrationRepository) Delete(ctx context.Context, eventID, userID string) error {
	return r.db.inSchema(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM registrations WHERE event_id = $1 AND user_id = $2`, eventID, userID)
		if err != nil {
			return fmt.Errorf("failed to delete registration: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return event.ErrRegistrationNotFound
		}
		return nil
	})
}

// ListForUser returns a user's registrations newest first
func (r *RegistrationRepository) ListForUser(ctx context.Context, userID string) ([]*event.Registration, error) {
	return r.list(ctx, registrationSelect+` WHERE r.user_id = $1 ORDER BY r.registered_at DESC`, userID)
}

// ListForEvent returns an event's registrations newest first
func (r *RegistrationRepository) ListForEvent(ctx context.Context, eventID string) ([]*event.Registration, error) {
	return r.list(ctx, registrationSelect+` WHERE r.event_id = $1 ORDER BY r.registered_at DESC`, eventID)
}

func (r *RegistrationRepository) list(ctx context.Context, query, arg string) ([]*event.Registration, error) {
	var regs []*event.Registration
	err := r.db.inSchema(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, arg)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			reg, err := scanRegistration(rows)
			if err != nil {
				return err
			}
			regs = append(regs, reg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}

func scanRegistration(row pgx.Row) (*event.Registration, error) {
	reg := &event.Registration{Event: &event.Event{}}
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &reg.Notes, &reg.RegisteredAt, &reg.UpdatedAt,
		&reg.Username,
		&reg.Event.Title, &reg.Event.Location, &reg.Event.StartDate, &reg.Event.EndDate, &reg.Event.Status,
	)
	if err != nil {
		return nil, err
	}
	reg.Event.ID = reg.EventID
	return reg, nil
}
