package event

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrEventNotFound        = errors.New("event not found")
	ErrInvalidEvent         = errors.New("invalid event")
	ErrRegistrationClosed   = errors.New("registration is closed for this event")
	ErrAlreadyRegistered    = errors.New("already registered for this event")
	ErrRegistrationNotFound = errors.New("no registration found for this event")
)

// Status is the publication state of an event.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusPublished || s == StatusCancelled
}

// Event is a tenant-owned event people can register for.
type Event struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Location             string     `json:"location"`
	StartDate            time.Time  `json:"start_date"`
	EndDate              time.Time  `json:"end_date"`
	MaxAttendees         *int       `json:"max_attendees"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	Status               Status     `json:"status"`
	CreatedBy            string     `json:"created_by"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// Filled by reads.
	RegistrationCount int `json:"registrations_count"`
	ConfirmedCount    int `json:"confirmed_count"`
}

// RegistrationOpen reports whether a new registration is accepted given
// count existing registrations.
func (e *Event) RegistrationOpen(now time.Time, count int) bool {
	if e.Status != StatusPublished {
		return false
	}
	if e.RegistrationDeadline != nil && now.After(*e.RegistrationDeadline) {
		return false
	}
	if e.MaxAttendees != nil && count >= *e.MaxAttendees {
		return false
	}
	return true
}

// AvailableSpots returns the remaining capacity, or nil when unlimited.
func (e *Event) AvailableSpots(count int) *int {
	if e.MaxAttendees == nil {
		return nil
	}
	n := *e.MaxAttendees - count
	return &n
}

// IsPast reports whether the event has ended.
func (e *Event) IsPast(now time.Time) bool {
	return now.After(e.EndDate)
}

// RegistrationStatus is the state of a registration.
type RegistrationStatus string

const (
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationWaitlist  RegistrationStatus = "waitlist"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// Registration links a user to an event. A user registers at most once
// per event.
type Registration struct {
	ID           string             `json:"id"`
	EventID      string             `json:"event_id"`
	UserID       string             `json:"user_id"`
	Status       RegistrationStatus `json:"status"`
	Notes        string             `json:"notes"`
	RegisteredAt time.Time          `json:"registered_at"`
	UpdatedAt    time.Time          `json:"updated_at"`

	// Filled by listings.
	Event    *Event `json:"event,omitempty"`
	Username string `json:"username,omitempty"`
}

// ListFilter narrows an event listing.
type ListFilter struct {
	PublishedOnly bool
	// Ascending orders by start date ascending instead of descending.
	Ascending bool
}

// Repository defines the interface for event storage in the tenant schema
type Repository interface {
	Create(ctx context.Context, e *Event) error
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, filter ListFilter) ([]*Event, error)
}

// RegistrationCheck decides whether a registration may be added to e,
// which currently has count registrations.
type RegistrationCheck func(e *Event, count int) error

// RegistrationRepository defines the interface for registration storage
type RegistrationRepository interface {
	// Register locks the event, runs check against the current count and
	// inserts r. A duplicate yields ErrAlreadyRegistered.
	Register(ctx context.Context, r *Registration, check RegistrationCheck) error
	Get(ctx context.Context, eventID, userID string) (*Registration, error)
	Delete(ctx context.Context, eventID, userID string) error
	ListForUser(ctx context.Context, userID string) ([]*Registration, error)
	ListForEvent(ctx context.Context, eventID string) ([]*Registration, error)
}
