package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int // P99 計算用に保持するサンプル数
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		MaxLatencySamples: 1000,
	}
}

// Metrics はワーカープールのタスク実行メトリクスを収集する
type Metrics struct {
	submitted    atomic.Uint64
	executed     atomic.Uint64
	panicked     atomic.Uint64
	dropped      atomic.Uint64
	joinFailures atomic.Uint64
	inFlight     atomic.Int64
	totalLatency atomic.Uint64

	mu                sync.RWMutex
	startTime         time.Time
	latencies         []time.Duration
	next              int
	maxLatencySamples int
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	max := config.MaxLatencySamples
	if max <= 0 {
		max = DefaultConfig().MaxLatencySamples
	}
	return &Metrics{
		startTime:         time.Now(),
		latencies:         make([]time.Duration, 0, max),
		maxLatencySamples: max,
	}
}

// RecordSubmitted はタスクの投入を記録する
func (m *Metrics) RecordSubmitted() {
	m.submitted.Add(1)
}

// RecordDropped は実行されずに捨てられたタスクを記録する
func (m *Metrics) RecordDropped(n int) {
	if n > 0 {
		m.dropped.Add(uint64(n))
	}
}

// RecordJoinFailure はワーカーの join 失敗を記録する
func (m *Metrics) RecordJoinFailure() {
	m.joinFailures.Add(1)
}

// TaskStarted は実行開始を記録する
func (m *Metrics) TaskStarted() {
	m.inFlight.Add(1)
}

// TaskFinished は実行完了を記録する。panicked はタスクが panic したかどうか
func (m *Metrics) TaskFinished(latency time.Duration, panicked bool) {
	m.inFlight.Add(-1)
	if panicked {
		m.panicked.Add(1)
	} else {
		m.executed.Add(1)
	}
	m.totalLatency.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	// 古いサンプルをリングバッファで上書きする
	if len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	} else {
		m.latencies[m.next] = latency
		m.next = (m.next + 1) % m.maxLatencySamples
	}
	m.mu.Unlock()
}

// Submitted は投入されたタスク数を返す
func (m *Metrics) Submitted() uint64 {
	return m.submitted.Load()
}

// Executed は正常終了したタスク数を返す
func (m *Metrics) Executed() uint64 {
	return m.executed.Load()
}

// Panicked は panic したタスク数を返す
func (m *Metrics) Panicked() uint64 {
	return m.panicked.Load()
}

// Dropped は捨てられたタスク数を返す
func (m *Metrics) Dropped() uint64 {
	return m.dropped.Load()
}

// JoinFailures は join に失敗したワーカー数を返す
func (m *Metrics) JoinFailures() uint64 {
	return m.joinFailures.Load()
}

// InFlight は実行中のタスク数を返す
func (m *Metrics) InFlight() int64 {
	return m.inFlight.Load()
}

// Finished は終了した（panic を含む）タスク数を返す
func (m *Metrics) Finished() uint64 {
	return m.executed.Load() + m.panicked.Load()
}

// Throughput は開始からの平均タスク完了数/秒を返す
func (m *Metrics) Throughput() float64 {
	elapsed := time.Since(m.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.Finished()) / elapsed
}

// AverageLatency は平均実行時間を返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.Finished()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalLatency.Load() / total)
}

// P99Latency はP99実行時間を返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.latencies) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	Submitted      uint64        `json:"submitted"`
	Executed       uint64        `json:"executed"`
	Panicked       uint64        `json:"panicked"`
	Dropped        uint64        `json:"dropped"`
	JoinFailures   uint64        `json:"join_failures"`
	InFlight       int64         `json:"in_flight"`
	Throughput     float64       `json:"throughput"`
	AverageLatency time.Duration `json:"average_latency_ns"`
	P99Latency     time.Duration `json:"p99_latency_ns"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Submitted:      m.Submitted(),
		Executed:       m.Executed(),
		Panicked:       m.Panicked(),
		Dropped:        m.Dropped(),
		JoinFailures:   m.JoinFailures(),
		InFlight:       m.InFlight(),
		Throughput:     m.Throughput(),
		AverageLatency: m.AverageLatency(),
		P99Latency:     m.P99Latency(),
		Elapsed:        time.Since(m.startTime),
	}
}
