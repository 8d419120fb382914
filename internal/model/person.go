// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// Validation errors for PersonInput.
var (
	ErrContentMissing = errors.New("content missing")
	ErrNameNotUnique  = errors.New("name must be unique")
)

// ID range for generated person identifiers.
const (
	MinPersonID = 1
	MaxPersonID = 20000
)

// Person is a single phonebook entry.
type Person struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// PersonInput is the request body accepted when creating a person.
type PersonInput struct {
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Validate checks that both name and number are present.
func (p *PersonInput) Validate() error {
	if p.Name == "" || p.Number == "" {
		return ErrContentMissing
	}
	return nil
}

// ParsePersonID converts a path segment into a person ID.
// Input that is not a whole number yields 0, which matches no stored person.
func ParsePersonID(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	if id, err := strconv.Atoi(raw); err == nil {
		return id
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0
	}

	return int(f)
}

// ErrorResponse is the JSON body returned for client errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PersonEvent is pushed to WebSocket subscribers when the phonebook changes.
type PersonEvent struct {
	Type      string    `json:"type"`
	ID        int       `json:"id"`
	Person    *Person   `json:"person,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Person event types.
const (
	EventTypeCreated = "created"
	EventTypeDeleted = "deleted"
)

// NewCreatedEvent creates an event announcing a newly created person.
func NewCreatedEvent(p Person) PersonEvent {
	return PersonEvent{
		Type:      EventTypeCreated,
		ID:        p.ID,
		Person:    &p,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeletedEvent creates an event announcing a delete request for id.
func NewDeletedEvent(id int) PersonEvent {
	return PersonEvent{
		Type:      EventTypeDeleted,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// DefaultPersons returns the entries the phonebook starts with.
func DefaultPersons() []Person {
	return []Person{
		{ID: 1, Name: "Arto Hellas", Number: "040-123456"},
		{ID: 2, Name: "Ada Lovelace", Number: "39-44-5323525"},
		{ID: 3, Name: "Dan Abramov", Number: "12-43-234242"},
		{ID: 4, Name: "Mary Poppendick", Number: "39-23-6423122"},
	}
}
