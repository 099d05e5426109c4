package event

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eventsaas/eventsaas/internal/audit"
	"github.com/eventsaas/eventsaas/internal/id"
	"github.com/eventsaas/eventsaas/internal/tenant"
	"github.com/jonboulle/clockwork"
)

// Service provides event and registration business logic for the tenant
// bound to the request context.
type Service struct {
	events        Repository
	registrations RegistrationRepository
	auditLogger   audit.Logger
	clock         clockwork.Clock
}

// NewService creates a new event service
func NewService(events Repository, registrations RegistrationRepository, auditLogger audit.Logger, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		events:        events,
		registrations: registrations,
		auditLogger:   auditLogger,
		clock:         clock,
	}
}

// Listing splits published events around the current time.
type Listing struct {
	Upcoming []*Event `json:"upcoming_events"`
	Past     []*Event `json:"past_events"`
}

// ListPublished returns published events by start date, split into
// upcoming and past.
func (s *Service) ListPublished(ctx context.Context) (*Listing, error) {
	events, err := s.events.List(ctx, ListFilter{PublishedOnly: true, Ascending: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	now := s.clock.Now()
	out := &Listing{Upcoming: []*Event{}, Past: []*Event{}}
	for _, e := range events {
		if e.StartDate.Before(now) {
			out.Past = append(out.Past, e)
		} else {
			out.Upcoming = append(out.Upcoming, e)
		}
	}
	return out, nil
}

// ListPublishedFlat returns published events by start date ascending.
func (s *Service) ListPublishedFlat(ctx context.Context) ([]*Event, error) {
	return s.events.List(ctx, ListFilter{PublishedOnly: true, Ascending: true})
}

// GetPublished returns an event only if it is published.
func (s *Service) GetPublished(ctx context.Context, eventID string) (*Event, error) {
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusPublished {
		return nil, ErrEventNotFound
	}
	return e, nil
}

// Detail is a published event as seen by one visitor.
type Detail struct {
	Event            *Event        `json:"event"`
	RegistrationOpen bool          `json:"registration_open"`
	AvailableSpots   *int          `json:"available_spots"`
	IsPast           bool          `json:"is_past"`
	UserRegistered   bool          `json:"user_registered"`
	Registration     *Registration `json:"user_registration,omitempty"`
}

// GetDetail loads a published event. userID may be empty for anonymous
// visitors.
func (s *Service) GetDetail(ctx context.Context, eventID, userID string) (*Detail, error) {
	e, err := s.GetPublished(ctx, eventID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	d := &Detail{
		Event:            e,
		RegistrationOpen: e.RegistrationOpen(now, e.RegistrationCount),
		AvailableSpots:   e.AvailableSpots(e.RegistrationCount),
		IsPast:           e.IsPast(now),
	}
	if userID == "" {
		return d, nil
	}
	r, err := s.registrations.Get(ctx, eventID, userID)
	switch {
	case err == nil:
		d.UserRegistered = true
		d.Registration = r
	case !errors.Is(err, ErrRegistrationNotFound):
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	return d, nil
}

// Register signs userID up for a published event with open registration.
func (s *Service) Register(ctx context.Context, eventID, userID, notes string) (*Registration, error) {
	if _, err := s.GetPublished(ctx, eventID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	r := &Registration{
		ID:           id.NewUUIDv7(),
		EventID:      eventID,
		UserID:       userID,
		Status:       RegistrationConfirmed,
		Notes:        strings.TrimSpace(notes),
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	err := s.registrations.Register(ctx, r, func(e *Event, count int) error {
		if !e.RegistrationOpen(now, count) {
			return ErrRegistrationClosed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRegistrationCreated,
		Schema:   schemaOf(ctx),
		ActorID:  userID,
		Resource: eventID,
	})
	return r, nil
}

// CancelRegistration deletes userID's registration for an event.
func (s *Service) CancelRegistration(ctx context.Context, eventID, userID string) error {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return err
	}
	if err := s.registrations.Delete(ctx, eventID, userID); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRegistrationCancelled,
		Schema:   schemaOf(ctx),
		ActorID:  userID,
		Resource: eventID,
	})
	return nil
}

// MyRegistrations lists a user's registrations newest first.
func (s *Service) MyRegistrations(ctx context.Context, userID string) ([]*Registration, error) {
	return s.registrations.ListForUser(ctx, userID)
}

// Input holds the editable fields of an event.
type Input struct {
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Location             string     `json:"location"`
	StartDate            time.Time  `json:"start_date"`
	EndDate              time.Time  `json:"end_date"`
	MaxAttendees         *int       `json:"max_attendees"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	Status               Status     `json:"status"`
}

func (in *Input) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEvent)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidEvent)
	}
	if in.EndDate.Before(in.StartDate) {
		return fmt.Errorf("%w: end date is before start date", ErrInvalidEvent)
	}
	if in.MaxAttendees != nil && *in.MaxAttendees < 1 {
		return fmt.Errorf("%w: max attendees must be positive", ErrInvalidEvent)
	}
	if in.Status == "" {
		in.Status = StatusDraft
	}
	if !in.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, in.Status)
	}
	return nil
}

// CreateEvent adds an event owned by actorID.
func (s *Service) CreateEvent(ctx context.Context, in Input, actorID string) (*Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	e := &Event{
		ID:        id.NewUUIDv7(),
		CreatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(e, in)
	if err := s.events.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.auditEvent(ctx, e, actorID)
	return e, nil
}

// UpdateEvent replaces the editable fields of an event.
func (s *Service) UpdateEvent(ctx context.Context, eventID string, in Input, actorID string) (*Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	apply(e, in)
	e.UpdatedAt = s.clock.Now()
	if err := s.events.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	s.auditEvent(ctx, e, actorID)
	return e, nil
}

// DeleteEvent removes an event and its registrations.
func (s *Service) DeleteEvent(ctx context.Context, eventID, actorID string) error {
	if err := s.events.Delete(ctx, eventID); err != nil {
		return err
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeEventDeleted,
		Schema:   schemaOf(ctx),
		ActorID:  actorID,
		Resource: eventID,
	})
	return nil
}

// GetEvent loads any event regardless of status.
func (s *Service) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	return s.events.GetByID(ctx, eventID)
}

// ListAll lists every event, newest start date first.
func (s *Service) ListAll(ctx context.Context) ([]*Event, error) {
	return s.events.List(ctx, ListFilter{})
}

// ListRegistrations lists the registrations of one event.
func (s *Service) ListRegistrations(ctx context.Context, eventID string) ([]*Registration, error) {
	if _, err := s.events.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.registrations.ListForEvent(ctx, eventID)
}

func (s *Service) auditEvent(ctx context.Context, e *Event, actorID string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeEventSaved,
		Schema:   schemaOf(ctx),
		ActorID:  actorID,
		Resource: e.ID,
		Metadata: map[string]any{"title": e.Title, "status": string(e.Status)},
	})
}

func apply(e *Event, in Input) {
	e.Title = in.Title
	e.Description = in.Description
	e.Location = in.Location
	e.StartDate = in.StartDate
	e.EndDate = in.EndDate
	e.MaxAttendees = in.MaxAttendees
	e.RegistrationDeadline = in.RegistrationDeadline
	e.Status = in.Status
}

func schemaOf(ctx context.Context) string {
	schema, _ := tenant.SchemaFrom(ctx)
	return schema
}
