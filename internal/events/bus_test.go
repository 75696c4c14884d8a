package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBus(t *testing.T) {
	bus := NewBus()
	require.NotNil(t, bus)
	assert.Equal(t, 0, bus.SubscriberCount())
	assert.Equal(t, defaultBufferSize, bus.bufferSize)
}

func TestBusSubscribeUnsubscribe(t *testing.T) {
	bus := NewBus()

	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	assert.Equal(t, 2, bus.SubscriberCount())

	bus.Unsubscribe(ch1)
	assert.Equal(t, 1, bus.SubscriberCount())

	_, ok := <-ch1
	assert.False(t, ok, "unsubscribed channel should be closed")

	bus.Unsubscribe(ch2)
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestBusPublish(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	bus.Publish(NewWorkerStoppedEvent(3, StopPanicked, errors.New("boom")))

	select {
	case received := <-ch:
		assert.Equal(t, EventWorkerStopped, received.Type)
		assert.Equal(t, 3, received.WorkerID)
		assert.Equal(t, StopPanicked, received.Data.Reason)
		assert.Equal(t, "boom", received.Data.Error)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestBusPublishMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()

	bus.Publish(NewWorkerStartedEvent(0))

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case received := <-ch:
			assert.Equal(t, EventWorkerStarted, received.Type, "subscriber %d", i)
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestBusPublishNonBlocking(t *testing.T) {
	bus := NewBusWithBuffer(1)
	ch := bus.Subscribe()

	bus.Publish(NewWorkerStartedEvent(0))
	bus.Publish(NewWorkerStartedEvent(1))
	bus.Publish(NewWorkerStartedEvent(2))

	received := <-ch
	assert.Equal(t, 0, received.WorkerID)
	select {
	case extra := <-ch:
		t.Fatalf("expected overflow events to be dropped, got %+v", extra)
	default:
	}
}

func TestBusNilPublish(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(NewPoolShutdownEvent(0)) })
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	bus.Close()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, ok := <-ch
	assert.False(t, ok)

	late := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscribing after close should yield a closed channel")
	assert.NotPanics(t, func() { bus.Publish(NewPoolShutdownEvent(1)) })
}

func TestEventConstructors(t *testing.T) {
	dropped := NewTaskDroppedEvent(errors.New("queue closed"))
	assert.Equal(t, EventTaskDropped, dropped.Type)
	assert.Equal(t, -1, dropped.WorkerID)
	assert.Equal(t, "queue closed", dropped.Data.Error)

	shutdown := NewPoolShutdownEvent(4)
	assert.Equal(t, EventPoolShutdown, shutdown.Type)
	assert.Equal(t, 4, shutdown.Data.Discarded)

	stopped := NewWorkerStoppedEvent(1, StopTerminated, nil)
	assert.Empty(t, stopped.Data.Error)
	assert.False(t, stopped.Timestamp.IsZero())
}
