package events

import (
	"reflect"
	"sync"
)

// EventHandler defines a callback invoked with published event data. A returned error aborts the publish and is
// returned to the publisher.
type EventHandler[T any] func(T) error

// globalEventHandlers maps an event type to handlers that are called whenever any EventEmitter publishes an event of
// that type.
var globalEventHandlers = make(map[reflect.Type][]any)

// globalEventHandlersLock guards globalEventHandlers.
var globalEventHandlersLock sync.Mutex

// SubscribeAny adds an EventHandler for every event of type T, regardless of which EventEmitter publishes it.
// Note: handlers subscribed here live for the rest of the process, so short-lived objects should subscribe to a
// specific EventEmitter instead.
func SubscribeAny[T any](callback EventHandler[T]) {
	eventType := reflect.TypeOf((*T)(nil)).Elem()

	globalEventHandlersLock.Lock()
	defer globalEventHandlersLock.Unlock()
	globalEventHandlers[eventType] = append(globalEventHandlers[eventType], callback)
}

// EventEmitter publishes events of type T to its subscribed EventHandler objects and any global handlers for T.
// The zero value is ready to use.
type EventEmitter[T any] struct {
	// subscriptions defines the EventHandler methods invoked when a new event is published to this emitter.
	subscriptions []EventHandler[T]

	// subscriptionsLock guards subscriptions.
	subscriptionsLock sync.Mutex
}

// Publish emits the provided event by calling every subscribed EventHandler, then every global handler for the event
// type. The first error returned by a handler stops propagation and is returned.
func (e *EventEmitter[T]) Publish(event T) error {
	e.subscriptionsLock.Lock()
	subscriptions := append([]EventHandler[T](nil), e.subscriptions...)
	e.subscriptionsLock.Unlock()

	for _, subscription := range subscriptions {
		if err := subscription(event); err != nil {
			return err
		}
	}

	globalEventHandlersLock.Lock()
	callbacks := append([]any(nil), globalEventHandlers[reflect.TypeOf((*T)(nil)).Elem()]...)
	globalEventHandlersLock.Unlock()

	for _, callback := range callbacks {
		if err := callback.(EventHandler[T])(event); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe adds an EventHandler to this emitter.
func (e *EventEmitter[T]) Subscribe(callback EventHandler[T]) {
	e.subscriptionsLock.Lock()
	defer e.subscriptionsLock.Unlock()
	e.subscriptions = append(e.subscriptions, callback)
}
