package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestEventPublishingAndSubscribing creates EventEmitter objects, subscribes EventHandler callbacks to them, and
// ensures that the events are received as intended.
func TestEventPublishingAndSubscribing(t *testing.T) {
	// Define some event types
	type snapshotTakenEvent struct{}
	type snapshotRevertedEvent struct{}

	// Create event emitters for both events.
	takenEmitter1 := EventEmitter[snapshotTakenEvent]{}
	takenEmitter2 := EventEmitter[snapshotTakenEvent]{}
	revertedEmitter1 := EventEmitter[snapshotRevertedEvent]{}
	revertedEmitter2 := EventEmitter[snapshotRevertedEvent]{}

	// Track how many times each handler fires
	var takenEmitter1PublishCount,
		takenEmitter2PublishCount,
		revertedEmitter1PublishCount,
		revertedEmitter2PublishCount,
		takenGlobalPublishCount,
		revertedGlobalPublishCount int

	// Create our callback methods for each event, where we update our count of published events.
	takenEmitter1.Subscribe(func(event snapshotTakenEvent) error {
		takenEmitter1PublishCount++
		return nil
	})
	takenEmitter2.Subscribe(func(event snapshotTakenEvent) error {
		takenEmitter2PublishCount++
		return nil
	})
	revertedEmitter1.Subscribe(func(event snapshotRevertedEvent) error {
		revertedEmitter1PublishCount++
		return nil
	})
	revertedEmitter2.Subscribe(func(event snapshotRevertedEvent) error {
		revertedEmitter2PublishCount++
		return nil
	})
	SubscribeAny(func(event snapshotTakenEvent) error {
		takenGlobalPublishCount++
		return nil
	})
	SubscribeAny(func(event snapshotRevertedEvent) error {
		revertedGlobalPublishCount++
		return nil
	})

	// Publish events a given amount of times.
	const (
		expectedEventAEmitter1PublishCount = 2
		expectedEventAEmitter2PublishCount = 5
		expectedEventBEmitter1PublishCount = 9
		expectedEventBEmitter2PublishCount = 13
	)
	for i := 0; i < expectedEventAEmitter1PublishCount; i++ {
		err := takenEmitter1.Publish(snapshotTakenEvent{})
		assert.NoError(t, err)
	}
	for i := 0; i < expectedEventAEmitter2PublishCount; i++ {
		err := takenEmitter2.Publish(snapshotTakenEvent{})
		assert.NoError(t, err)
	}
	for i := 0; i < expectedEventBEmitter1PublishCount; i++ {
		err := revertedEmitter1.Publish(snapshotRevertedEvent{})
		assert.NoError(t, err)
	}
	for i := 0; i < expectedEventBEmitter2PublishCount; i++ {
		err := revertedEmitter2.Publish(snapshotRevertedEvent{})
		assert.NoError(t, err)
	}

	// Assert we received the expected amount of callbacks.
	assert.EqualValues(t, expectedEventAEmitter1PublishCount, takenEmitter1PublishCount)
	assert.EqualValues(t, expectedEventAEmitter2PublishCount, takenEmitter2PublishCount)
	assert.EqualValues(t, expectedEventBEmitter1PublishCount, revertedEmitter1PublishCount)
	assert.EqualValues(t, expectedEventBEmitter2PublishCount, revertedEmitter2PublishCount)
	assert.EqualValues(t, expectedEventAEmitter1PublishCount+expectedEventAEmitter2PublishCount, takenGlobalPublishCount)
	assert.EqualValues(t, expectedEventBEmitter1PublishCount+expectedEventBEmitter2PublishCount, revertedGlobalPublishCount)
}

// TestPublishStopsOnError ensures the first handler error is returned to the publisher and later handlers are not
// called.
func TestPublishStopsOnError(t *testing.T) {
	type blocksRemovedEvent struct{ count int }

	emitter := EventEmitter[blocksRemovedEvent]{}
	handlerErr := errors.New("handler failed")
	secondCalled := false
	emitter.Subscribe(func(event blocksRemovedEvent) error {
		return handlerErr
	})
	emitter.Subscribe(func(event blocksRemovedEvent) error {
		secondCalled = true
		return nil
	})

	err := emitter.Publish(blocksRemovedEvent{count: 1})
	assert.ErrorIs(t, err, handlerErr)
	assert.False(t, secondCalled)
}
