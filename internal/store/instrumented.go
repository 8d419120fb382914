package store

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vyrodovalexey/phonebook-api/internal/model"
)

var _ Store = (*InstrumentedStore)(nil)

// Operation outcomes used as metric label values.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

// InstrumentedStore wraps a Store and records Prometheus metrics.
type InstrumentedStore struct {
	next       Store
	operations *prometheus.CounterVec
	persons    prometheus.Gauge
}

// NewInstrumentedStore wraps next, registering its collectors with reg.
func NewInstrumentedStore(next Store, reg prometheus.Registerer) *InstrumentedStore {
	factory := promauto.With(reg)

	return &InstrumentedStore{
		next: next,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phonebook_store_operations_total",
				Help: "Total number of store operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		persons: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "phonebook_persons",
				Help: "Number of persons currently stored",
			},
		),
	}
}

// List returns all persons.
func (s *InstrumentedStore) List(ctx context.Context) ([]model.Person, error) {
	persons, err := s.next.List(ctx)
	s.observe("list", err)
	if err == nil {
		s.persons.Set(float64(len(persons)))
	}
	return persons, err
}

// Get retrieves a person by ID.
func (s *InstrumentedStore) Get(ctx context.Context, id int) (*model.Person, error) {
	p, err := s.next.Get(ctx, id)
	s.observe("get", err)
	return p, err
}

// FindByName retrieves a person by exact name.
func (s *InstrumentedStore) FindByName(ctx context.Context, name string) (*model.Person, error) {
	p, err := s.next.FindByName(ctx, name)
	s.observe("find_by_name", err)
	return p, err
}

// Create adds a new person.
func (s *InstrumentedStore) Create(ctx context.Context, name, number string) (*model.Person, error) {
	p, err := s.next.Create(ctx, name, number)
	s.observe("create", err)
	if err == nil {
		s.persons.Inc()
	}
	return p, err
}

// Delete removes a person by ID.
func (s *InstrumentedStore) Delete(ctx context.Context, id int) error {
	err := s.next.Delete(ctx, id)
	s.observe("delete", err)
	if err == nil {
		s.refreshCount(ctx)
	}
	return err
}

// Count returns the number of stored persons.
func (s *InstrumentedStore) Count(ctx context.Context) (int, error) {
	n, err := s.next.Count(ctx)
	s.observe("count", err)
	if err == nil {
		s.persons.Set(float64(n))
	}
	return n, err
}

// Put forwards seeding to the wrapped store when it supports it.
func (s *InstrumentedStore) Put(ctx context.Context, p model.Person) error {
	seeder, ok := s.next.(Seeder)
	if !ok {
		return ErrUnsupported
	}
	err := seeder.Put(ctx, p)
	s.observe("put", err)
	if err == nil {
		s.persons.Inc()
	}
	return err
}

// refreshCount sets the gauge from the wrapped store without counting an operation.
func (s *InstrumentedStore) refreshCount(ctx context.Context) {
	if n, err := s.next.Count(ctx); err == nil {
		s.persons.Set(float64(n))
	}
}

func (s *InstrumentedStore) observe(operation string, err error) {
	s.operations.WithLabelValues(operation, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrAlreadyExists):
		return outcomeConflict
	default:
		return outcomeError
	}
}
