package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventsaas/eventsaas/internal/event"
	"github.com/jackc/pgx/v5"
)

const eventSelect = `
	SELECT e.id, e.title, e.description, e.location, e.start_date, e.end_date,
		e.max_attendees, e.registration_deadline, e.status, e.created_by,
		e.created_at, e.updated_at,
		(SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id),
		(SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.status = 'confirmed')
	FROM events e`

// EventRepository implements event.Repository inside the tenant schema
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

var _ event.Repository = (*EventRepository)(nil)

// Create inserts an event
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	return r.db.inSchema(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO events (
				id, title, description, location, start_date, end_date,
				max_attendees, registration_deadline, status, created_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			e.ID, e.Title, e.Description, e.Location, e.StartDate, e.EndDate,
			e.MaxAttendees, e.RegistrationDeadline, e.Status, e.CreatedBy, e.CreatedAt, e.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
		return nil
	})
}

// Update writes the editable event fields
func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	return r.db.inSchema(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE events SET
				title = $2, description = $3, location = $4, start_date = $5, end_date = $6,
				max_attendees = $7, registration_deadline = $8, status = $9, updated_at = $10
			WHERE id = $1
		`,
			e.ID, e.Title, e.Description, e.Location, e.StartDate, e.EndDate,
			e.MaxAttendees, e.RegistrationDeadline, e.Status, e.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return event.ErrEventNotFound
		}
		return nil
	})
}

// Delete removes an event; its registrations cascade
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	return r.db.inSchema(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete event: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return event.ErrEventNotFound
		}
		return nil
	})
}

// GetByID retrieves an event with its registration counts
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	var e *event.Event
	err := r.db.inSchema(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, eventSelect+` WHERE e.id = $1`, id)
		if err != nil {
			return err
		}
		e, err = pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByPos[event.Event])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// List returns events by start date, newest first unless filter.Ascending
func (r *EventRepository) List(ctx context.Context, filter event.ListFilter) ([]*event.Event, error) {
	query := eventSelect
	if filter.PublishedOnly {
		query += ` WHERE e.status = 'published'`
	}
	if filter.Ascending {
		query += ` ORDER BY e.start_date ASC`
	} else {
		query += ` ORDER BY e.start_date DESC`
	}

	var events []*event.Event
	err := r.db.inSchema(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query)
		if err != nil {
			return err
		}
		events, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByPos[event.Event])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}
