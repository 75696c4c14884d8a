package worker

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"poolhttpd/internal/events"
	"poolhttpd/internal/logger"
	"poolhttpd/internal/metrics"
)

// State はワーカーの状態を表す
type State int32

const (
	StateRunning State = iota
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PanicError はタスクの panic でワーカーが終了したことを表す
type PanicError struct {
	WorkerID int
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker %d: task panicked: %v", e.WorkerID, e.Value)
}

// Tag はログに使うワーカーの識別子を返す
func Tag(id int) string {
	return fmt.Sprintf("worker-%d", id)
}

// Worker はキューからエントリを取り出して実行する1本のゴルーチン
type Worker struct {
	id      int
	tag     string
	queue   *Queue
	metrics *metrics.Metrics
	bus     *events.Bus

	state atomic.Int32
	done  chan struct{} // join 後は nil
	err   error
}

// newWorker はワーカーを作成し、ゴルーチンを1本起動する
func newWorker(id int, queue *Queue, m *metrics.Metrics, bus *events.Bus) *Worker {
	w := &Worker{
		id:      id,
		tag:     Tag(id),
		queue:   queue,
		metrics: m,
		bus:     bus,
		done:    make(chan struct{}),
	}
	w.state.Store(int32(StateRunning))

	go w.run(w.done)
	return w
}

// ID はワーカー番号を返す
func (w *Worker) ID() int {
	return w.id
}

// State は現在の状態を返す
func (w *Worker) State() State {
	return State(w.state.Load())
}

// run はワーカーのメインループ
// Terminate を受け取るか、キューから受信できなくなった時点で抜け、二度と戻らない
func (w *Worker) run(done chan struct{}) {
	reason := events.StopTerminated
	defer func() {
		w.state.Store(int32(StateStopped))
		w.bus.Publish(events.NewWorkerStoppedEvent(w.id, reason, w.err))
		close(done)
	}()

	w.bus.Publish(events.NewWorkerStartedEvent(w.id))
	logger.Debug(w.tag, "Worker started")

	for {
		// ロックは取り出しの間だけ。タスク実行中は保持しない
		entry, err := w.queue.Receive()
		if err != nil {
			logger.Error(w.tag, "Failed to receive message: %v", err)
			reason = events.StopQueueError
			return
		}

		switch e := entry.(type) {
		case Work:
			logger.Debug(w.tag, "Received a task; executing")
			if err := w.execute(e.Task); err != nil {
				logger.Error(w.tag, "Worker stopping: %v", err)
				w.err = err
				reason = events.StopPanicked
				return
			}
		case Terminate:
			logger.Info(w.tag, "Received terminate signal")
			return
		default:
			logger.Warn(w.tag, "Ignoring unknown entry %T", entry)
		}
	}
}

// execute はタスクを同期的に実行する。panic はエラーとして返す
func (w *Worker) execute(task Task) (err error) {
	start := time.Now()
	w.metrics.TaskStarted()

	defer func() {
		r := recover()
		if r != nil {
			err = &PanicError{WorkerID: w.id, Value: r, Stack: debug.Stack()}
		}
		w.metrics.TaskFinished(time.Since(start), r != nil)
	}()

	task()
	return nil
}

// join はワーカーの終了を待つ
// ハンドルは最初の呼び出しで消費され、二回目以降は何もせず nil を返す
func (w *Worker) join() error {
	if w.done == nil {
		return nil
	}
	<-w.done
	w.done = nil
	return w.err
}
