package worker

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"poolhttpd/internal/events"
	"poolhttpd/internal/logger"
	"poolhttpd/internal/metrics"
)

// ErrInvalidPoolSize はワーカー数が 0 以下のときに返る
var ErrInvalidPoolSize = errors.New("pool size must be greater than zero")

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	Size    int              // ワーカー数（1以上）
	Metrics *metrics.Metrics // nil なら新規作成
	Events  *events.Bus      // nil ならイベントを発行しない
}

// Pool は固定数のワーカーと共有キューを持つ
type Pool struct {
	workers  []*Worker
	queue    *Queue
	metrics  *metrics.Metrics
	eventBus *events.Bus

	shutdownOnce sync.Once
}

var _ io.Closer = (*Pool)(nil)

// NewPool は size 個のワーカーを持つプールを作成する
func NewPool(size int) (*Pool, error) {
	return NewPoolWithConfig(PoolConfig{Size: size})
}

// MustNewPool は NewPool と同じだが、size が不正なら panic する
func MustNewPool(size int) *Pool {
	p, err := NewPool(size)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPoolWithConfig は設定を指定してプールを作成し、全ワーカーを起動する
// 不正なサイズの場合、ワーカーは一つも起動しない
func NewPoolWithConfig(config PoolConfig) (*Pool, error) {
	if config.Size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPoolSize, config.Size)
	}

	m := config.Metrics
	if m == nil {
		m = metrics.New()
	}

	p := &Pool{
		workers:  make([]*Worker, 0, config.Size),
		queue:    NewQueue(),
		metrics:  m,
		eventBus: config.Events,
	}
	for id := range config.Size {
		p.workers = append(p.workers, newWorker(id, p.queue, p.metrics, p.eventBus))
	}

	logger.Info("", "WorkerPool started with %d workers", config.Size)
	return p, nil
}

// Submit はタスクをキューに送る。ブロックせず、結果も返さない
// 送信に失敗した場合（停止後など）はログに残してタスクを捨てる
func (p *Pool) Submit(task Task) {
	if task == nil {
		logger.Warn("", "Ignoring nil task")
		return
	}

	p.metrics.RecordSubmitted()
	if err := p.queue.Send(Work{Task: task}); err != nil {
		p.metrics.RecordDropped(1)
		logger.Error("", "Failed to send task to pool: %v", err)
		p.eventBus.Publish(events.NewTaskDroppedEvent(err))
	}
}

// Shutdown はプールを停止する。最初の呼び出しだけが処理を行い、
// 全ワーカーの終了を待ってから戻る。以降の呼び出しも完了まで待つ
//
// タスク内から呼び出してはならない（自身の join を待ち続ける）
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(p.shutdown)
}

// Close は Shutdown を呼ぶ。常に nil を返す
func (p *Pool) Close() error {
	p.Shutdown()
	return nil
}

func (p *Pool) shutdown() {
	// join より先に全ての Terminate を送る。
	// 先に join すると、待機中のワーカーに停止信号が届かずに止まる
	logger.Info("", "Sending terminate message to all workers")
	for range p.workers {
		if err := p.queue.Send(Terminate{}); err != nil {
			logger.Error("", "Failed to send terminate message: %v", err)
		}
	}

	logger.Info("", "Shutting down all workers")
	for _, w := range p.workers {
		if err := w.join(); err != nil {
			p.metrics.RecordJoinFailure()
			logger.Error(w.tag, "Failed to join worker: %v", err)
		}
	}

	// Terminate の後ろに積まれたタスクは実行されない
	dropped := 0
	for _, e := range p.queue.Close() {
		if _, ok := e.(Work); ok {
			dropped++
		}
	}
	if dropped > 0 {
		p.metrics.RecordDropped(dropped)
		logger.Warn("", "Dropped %d tasks queued behind terminate signals", dropped)
	}

	p.eventBus.Publish(events.NewPoolShutdownEvent(dropped))
	logger.Info("", "WorkerPool stopped")
}

// Size はワーカー数を返す
func (p *Pool) Size() int {
	return len(p.workers)
}

// Live はまだループを抜けていないワーカー数を返す
func (p *Pool) Live() int {
	live := 0
	for _, w := range p.workers {
		if w.State() == StateRunning {
			live++
		}
	}
	return live
}

// Pending はキューで待機中のエントリ数を返す
func (p *Pool) Pending() int {
	return p.queue.Len()
}

// Metrics はメトリクスを返す
func (p *Pool) Metrics() *metrics.Metrics {
	return p.metrics
}

// WorkerStates は各ワーカーの状態をID順に返す
func (p *Pool) WorkerStates() []State {
	states := make([]State, len(p.workers))
	for i, w := range p.workers {
		states[i] = w.State()
	}
	return states
}
