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

package http

import (
	"net/http"

	"github.com/eventsaas/eventsaas/internal/event"
)

// EventList lists the tenant's published events split into upcoming and past.
func (h *Handler) EventList(w http.ResponseWriter, r *http.Request) {
	listing, err := h.eventService.ListPublished(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "list events")
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

// EventDetail shows a published event as seen by the current visitor.
func (h *Handler) EventDetail(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventID")
	if !ok {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	d, err := h.eventService.GetDetail(r.Context(), eventID, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "load event")
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// RegisterRequest carries optional registration notes.
type RegisterRequest struct {
	Notes string `json:"notes"`
}

// RegisterForEvent signs the current user up for an event
// @Summary Register for event
// @Tags Events
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param eventID path string true "Event ID"
// @Success 201 {object} event.Registration
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /event/{eventID}/register/ [post]
func (h *Handler) RegisterForEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventID")
	if !ok {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	var req RegisterRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	reg, err := h.eventService.Register(r.Context(), eventID, GetUserID(r.Context()), req.Notes)
	if err != nil {
		respondServiceError(w, r, err, "register for event")
		return
	}
	respondJSON(w, http.StatusCreated, reg)
}

// CancelRegistration withdraws the current user from an event.
func (h *Handler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventID")
	if !ok {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	if err := h.eventService.CancelRegistration(r.Context(), eventID, GetUserID(r.Context())); err != nil {
		respondServiceError(w, r, err, "cancel registration")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "registration cancelled"})
}

// MyRegistrations lists the current user's registrations.
func (h *Handler) MyRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.eventService.MyRegistrations(r.Context(), GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "list registrations")
		return
	}
	if regs == nil {
		regs = []*event.Registration{}
	}
	respondJSON(w, http.StatusOK, regs)
}

func (h *Handler) AdminListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventService.ListAll(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "list events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

func (h *Handler) AdminCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req event.Input
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	e, err := h.eventService.CreateEvent(r.Context(), req, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "create event")
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

func (h *Handler) AdminGetEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventID")
	if !ok {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	e, err := h.eventService.GetEvent(r.Context(), eventID)
	if err != nil {
		respondServiceError(w, r, err, "load event")
		return
	}
	respondJSON(w, http.StatusOK, e)
}

func (h *Handler) AdminUpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventID")
	if !ok {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	var req event.Input
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	e, err := h.eventService.UpdateEvent(r.Context(), eventID, req, GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "update event")
		return
	}
	respondJSON(w, http.StatusOK, e)
}

func (h *Handler) AdminDeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventID")
	if !ok {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	if err := h.eventService.DeleteEvent(r.Context(), eventID, GetUserID(r.Context())); err != nil {
		respondServiceError(w, r, err, "delete event")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EventRegistrations is an event with its attendee list.
type EventRegistrations struct {
	Event         *event.Event          `json:"event"`
	Registrations []*event.Registration `json:"registrations"`
}

// AdminListRegistrations lists an event's registrations with counts.
func (h *Handler) AdminListRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID, ok := pathID(r, "eventID")
	if !ok {
		respondError(w, http.StatusNotFound, "event not found")
		return
	}
	e, err := h.eventService.GetEvent(r.Context(), eventID)
	if err != nil {
		respondServiceError(w, r, err, "load event")
		return
	}
	regs, err := h.eventService.ListRegistrations(r.Context(), eventID)
	if err != nil {
		respondServiceError(w, r, err, "list registrations")
		return
	}
	if regs == nil {
		regs = []*event.Registration{}
	}
	respondJSON(w, http.StatusOK, EventRegistrations{Event: e, Registrations: regs})
}
