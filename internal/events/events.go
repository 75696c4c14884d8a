// Package events provides lifecycle notifications for the worker pool.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventWorkerStarted is emitted when a worker goroutine begins its loop
	EventWorkerStarted EventType = "worker_started"
	// EventWorkerStopped is emitted when a worker leaves its loop for good
	EventWorkerStopped EventType = "worker_stopped"
	// EventTaskDropped is emitted when a submitted task could not be queued
	EventTaskDropped EventType = "task_dropped"
	// EventPoolShutdown is emitted once every worker has been joined
	EventPoolShutdown EventType = "pool_shutdown"
)

// StopReason explains why a worker stopped
type StopReason string

const (
	StopTerminated StopReason = "terminated"
	StopQueueError StopReason = "queue_error"
	StopPanicked   StopReason = "panicked"
)

// Event represents a pool lifecycle event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	WorkerID  int       `json:"worker_id"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Reason    StopReason `json:"reason,omitempty"`
	Error     string     `json:"error,omitempty"`
	Discarded int        `json:"discarded,omitempty"`
}

// NewWorkerStartedEvent creates a worker started event
func NewWorkerStartedEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerStarted,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewWorkerStoppedEvent creates a worker stopped event
func NewWorkerStoppedEvent(workerID int, reason StopReason, err error) Event {
	return Event{
		Type:      EventWorkerStopped,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Reason: reason,
			Error:  errString(err),
		},
	}
}

// NewTaskDroppedEvent creates a task dropped event. WorkerID is -1 since no
// worker was involved.
func NewTaskDroppedEvent(err error) Event {
	return Event{
		Type:      EventTaskDropped,
		Timestamp: time.Now(),
		WorkerID:  -1,
		Data: EventData{
			Error: errString(err),
		},
	}
}

// NewPoolShutdownEvent creates a pool shutdown event
func NewPoolShutdownEvent(discarded int) Event {
	return Event{
		Type:      EventPoolShutdown,
		Timestamp: time.Now(),
		WorkerID:  -1,
		Data: EventData{
			Discarded: discarded,
		},
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
