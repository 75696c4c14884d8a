package worker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolhttpd/internal/events"
	"poolhttpd/internal/metrics"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestWorkerStopsOnTerminate(t *testing.T) {
	q := NewQueue()
	w := newWorker(7, q, metrics.New(), nil)
	assert.Equal(t, 7, w.ID())
	assert.Equal(t, "worker-7", w.tag)

	ran := make(chan struct{})
	require.NoError(t, q.Send(Work{Task: func() { close(ran) }}))
	require.NoError(t, q.Send(Terminate{}))

	<-ran
	assert.NoError(t, w.join())
	assert.Equal(t, StateStopped, w.State())

	// 停止後のエントリは誰にも取り出されない
	require.NoError(t, q.Send(Work{Task: func() {}}))
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, q.Len())
}

func TestWorkerStopsOnQueueError(t *testing.T) {
	bus := events.NewBus()
	ch := bus.Subscribe()

	q := NewQueue()
	w := newWorker(0, q, metrics.New(), bus)
	q.Close()

	assert.NoError(t, w.join(), "a closed queue is not a join failure")
	assert.Equal(t, StateStopped, w.State())

	var stopped events.Event
	for stopped.Type != events.EventWorkerStopped {
		select {
		case stopped = <-ch:
		case <-time.After(time.Second):
			t.Fatal("no worker_stopped event")
		}
	}
	assert.Equal(t, events.StopQueueError, stopped.Data.Reason)
}

func TestWorkerPanicBecomesJoinError(t *testing.T) {
	q := NewQueue()
	m := metrics.New()
	w := newWorker(3, q, m, nil)

	require.NoError(t, q.Send(Work{Task: func() { panic("bad task") }}))

	err := w.join()
	require.Error(t, err)

	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 3, pe.WorkerID)
	assert.Equal(t, "bad task", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Contains(t, err.Error(), "worker 3")

	assert.Equal(t, uint64(1), m.Panicked())
	assert.Zero(t, m.InFlight())
}

func TestWorkerJoinConsumesHandle(t *testing.T) {
	q := NewQueue()
	w := newWorker(1, q, metrics.New(), nil)
	require.NoError(t, q.Send(Work{Task: func() { panic("once") }}))

	assert.Error(t, w.join())
	assert.Nil(t, w.done)
	assert.NoError(t, w.join(), "second join is a no-op")
}

func TestWorkerIgnoresUnknownEntry(t *testing.T) {
	q := NewQueue()
	w := newWorker(0, q, metrics.New(), nil)

	require.NoError(t, q.Send(nil))
	require.NoError(t, q.Send(Terminate{}))

	assert.NoError(t, w.join())
}
