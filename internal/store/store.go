// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"
	"math/rand/v2"

	"github.com/vyrodovalexey/phonebook-api/internal/model"
)

// Store errors.
var (
	ErrNotFound         = errors.New("person not found")
	ErrAlreadyExists    = errors.New("person already exists")
	ErrIDSpaceExhausted = errors.New("no free person ID available")
	ErrInvalidPerson    = errors.New("person name and number are required")
	ErrUnsupported      = errors.New("operation not supported by store")
)

// MaxIDAttempts bounds how many IDs Create draws before giving up.
const MaxIDAttempts = 1000

// Store defines the interface for person storage operations.
type Store interface {
	// List returns all persons in insertion order.
	List(ctx context.Context) ([]model.Person, error)

	// Get retrieves a person by ID.
	Get(ctx context.Context, id int) (*model.Person, error)

	// FindByName retrieves a person by exact name.
	FindByName(ctx context.Context, name string) (*model.Person, error)

	// Create appends a new person with a generated ID and returns it.
	Create(ctx context.Context, name, number string) (*model.Person, error)

	// Delete removes the person with the given ID. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id int) error

	// Count returns the number of stored persons.
	Count(ctx context.Context) (int, error)
}

// Seeder is implemented by stores that accept persons with preassigned IDs.
type Seeder interface {
	Put(ctx context.Context, p model.Person) error
}

// IDGenerator returns a candidate person ID.
type IDGenerator func() int

// RandomID returns a pseudo-random ID in [model.MinPersonID, model.MaxPersonID].
// It does not look at existing IDs; Create handles collisions.
func RandomID() int {
	return model.MinPersonID + rand.IntN(model.MaxPersonID-model.MinPersonID+1) //nolint:gosec // not security sensitive
}

// options holds settings shared by the store implementations.
type options struct {
	nextID IDGenerator
}

// Option configures a store.
type Option func(*options)

// WithIDGenerator overrides the ID generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *options) {
		if gen != nil {
			o.nextID = gen
		}
	}
}

func newOptions(opts []Option) options {
	o := options{nextID: RandomID}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Seed stores each person with its preassigned ID.
func Seed(ctx context.Context, s Seeder, persons []model.Person) error {
	for _, p := range persons {
		if err := s.Put(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// drawID draws IDs until taken reports false for one.
func drawID(gen IDGenerator, taken func(id int) (bool, error)) (int, error) {
	for range MaxIDAttempts {
		id := gen()
		used, err := taken(id)
		if err != nil {
			return 0, err
		}
		if !used {
			return id, nil
		}
	}
	return 0, ErrIDSpaceExhausted
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
