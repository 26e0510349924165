// Package satellite holds the control units the coordinator pushes derived state into.
//
// A unit is created together with its Controller. The Unit only exposes reads
// and the Controller is its only writer.
package satellite

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

const (
	TemperatureControlName = "temperatureControl"
	LightControlName       = "lightControl"
	SecurityAlertName      = "securityAlert"
)

// StateStore persists the value written by each apply
type StateStore interface {
	SaveSatellite(ctx context.Context, name string, value string) error
}

// Controller is the write capability over a unit
type Controller[T any] interface {
	Apply(ctx context.Context, value T) error
}

// Unit holds a single piece of derived state
type Unit[T any] struct {
	name   string
	mu     sync.RWMutex
	value  T
	store  StateStore
	encode func(T) string
}

type Option[T any] func(*Unit[T])

// WithInitial restores a previously persisted value
func WithInitial[T any](value T) Option[T] {
	return func(u *Unit[T]) {
		u.value = value
	}
}

func WithStore[T any](store StateStore) Option[T] {
	return func(u *Unit[T]) {
		u.store = store
	}
}

func newUnit[T any](name string, encode func(T) string, opts ...Option[T]) (*Unit[T], Controller[T]) {
	u := &Unit[T]{name: name, encode: encode}
	for _, opt := range opts {
		opt(u)
	}
	return u, &controller[T]{unit: u}
}

func (u *Unit[T]) Name() string {
	return u.name
}

func (u *Unit[T]) Value() T {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.value
}

type controller[T any] struct {
	unit *Unit[T]
}

// Apply overwrites the unit value. With a store wired the value is persisted
// first and a store failure leaves the unit untouched.
func (c *controller[T]) Apply(ctx context.Context, value T) error {
	u := c.unit
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.store != nil {
		if err := u.store.SaveSatellite(ctx, u.name, u.encode(value)); err != nil {
			return errors.Wrapf(err, "persist %s", u.name)
		}
	}
	u.value = value
	return nil
}
