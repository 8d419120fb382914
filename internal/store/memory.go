package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/vyrodovalexey/phonebook-api/internal/model"
)

var (
	_ Store  = (*MemoryStore)(nil)
	_ Seeder = (*MemoryStore)(nil)
)

// MemoryStore implements Store interface with in-memory storage.
type MemoryStore struct {
	mu      sync.RWMutex
	persons []model.Person
	nextID  IDGenerator
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := newOptions(opts)
	return &MemoryStore{
		persons: make([]model.Person, 0),
		nextID:  o.nextID,
	}
}

// List returns all persons in insertion order.
func (s *MemoryStore) List(ctx context.Context) ([]model.Person, error) {
	if err := checkContext(ctx); err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.persons), nil
}

// Get retrieves a person by ID.
func (s *MemoryStore) Get(ctx context.Context, id int) (*model.Person, error) {
	if err := checkContext(ctx); err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}

	p := s.persons[i]
	return &p, nil
}

// FindByName retrieves a person by exact name.
func (s *MemoryStore) FindByName(ctx context.Context, name string) (*model.Person, error) {
	if err := checkContext(ctx); err != nil {
		return nil, fmt.Errorf("find person by name: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.persons {
		if p.Name == name {
			return &p, nil
		}
	}

	return nil, ErrNotFound
}

// Create appends a new person with a generated ID.
func (s *MemoryStore) Create(ctx context.Context, name, number string) (*model.Person, error) {
	if err := checkContext(ctx); err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}

	if name == "" || number == "" {
		return nil, ErrInvalidPerson
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasName(name) {
		return nil, ErrAlreadyExists
	}

	id, err := drawID(s.nextID, func(id int) (bool, error) {
		return s.indexOf(id) >= 0, nil
	})
	if err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}

	p := model.Person{ID: id, Name: name, Number: number}
	s.persons = append(s.persons, p)

	return &p, nil
}

// Put stores a person with a preassigned ID.
func (s *MemoryStore) Put(ctx context.Context, p model.Person) error {
	if err := checkContext(ctx); err != nil {
		return fmt.Errorf("put person: %w", err)
	}

	if p.Name == "" || p.Number == "" {
		return ErrInvalidPerson
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(p.ID) >= 0 || s.hasName(p.Name) {
		return ErrAlreadyExists
	}

	s.persons = append(s.persons, p)

	return nil
}

// Delete removes the person with the given ID if present.
func (s *MemoryStore) Delete(ctx context.Context, id int) error {
	if err := checkContext(ctx); err != nil {
		return fmt.Errorf("delete person: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A fresh slice keeps earlier List results untouched.
	s.persons = slices.DeleteFunc(slices.Clone(s.persons), func(p model.Person) bool {
		return p.ID == id
	})

	return nil
}

// Count returns the number of stored persons.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := checkContext(ctx); err != nil {
		return 0, fmt.Errorf("count persons: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.persons), nil
}

// indexOf returns the slice position of id, or -1. Caller must hold the lock.
func (s *MemoryStore) indexOf(id int) int {
	return slices.IndexFunc(s.persons, func(p model.Person) bool {
		return p.ID == id
	})
}

// hasName reports whether name is taken. Caller must hold the lock.
func (s *MemoryStore) hasName(name string) bool {
	return slices.ContainsFunc(s.persons, func(p model.Person) bool {
		return p.Name == name
	})
}
