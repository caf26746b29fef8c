package fixture

import (
	"context"

	"github.com/google/uuid"
)

// SetupFunc provisions chain state for a fixture and returns a value describing what it provisioned, such as
// deployed contract addresses and the accounts that own them.
type SetupFunc[T any] func(ctx context.Context) (T, error)

// Handle identifies a fixture to a Cache without regard to the type of value it sets up.
type Handle interface {
	// ID returns the unique key the fixture is cached under.
	ID() string

	// Name returns the human-readable name of the fixture.
	Name() string
}

// Fixture wraps a SetupFunc with an identity. Two fixtures are the same cache key only if they are the same
// *Fixture, so wrapping identical setup functions twice yields two independent fixtures.
type Fixture[T any] struct {
	// id is the key the fixture is cached under.
	id string

	// name is used in logs and errors.
	name string

	// setup is the procedure run on a cache miss.
	setup SetupFunc[T]
}

// New creates a Fixture with the given name, wrapping the provided setup procedure.
func New[T any](name string, setup SetupFunc[T]) *Fixture[T] {
	return &Fixture[T]{
		id:    uuid.NewString(),
		name:  name,
		setup: setup,
	}
}

// ID returns the unique key the fixture is cached under.
func (f *Fixture[T]) ID() string {
	return f.id
}

// Name returns the human-readable name of the fixture.
func (f *Fixture[T]) Name() string {
	return f.name
}
