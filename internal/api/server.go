package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"

	"poolhttpd/internal/events"
	"poolhttpd/internal/logger"
	"poolhttpd/internal/metrics"
	"poolhttpd/internal/worker"
)

const metricsNamespace = "poolhttpd"

// PoolInfo は管理APIが参照するプールの状態
type PoolInfo interface {
	Size() int
	Live() int
	Pending() int
	WorkerStates() []worker.State
	Metrics() *metrics.Metrics
}

// Ensure worker.Pool implements PoolInfo
var _ PoolInfo = (*worker.Pool)(nil)

// Server は管理APIサーバー
type Server struct {
	addr     string
	pool     PoolInfo
	bus      *events.Bus
	registry *prometheus.Registry
	router   *mux.Router

	mu        sync.RWMutex
	wsClients map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しい管理APIサーバーを作成する
// bus が nil の場合、/ws はイベントを配信しない
func NewServer(addr string, pool PoolInfo, bus *events.Bus) *Server {
	s := &Server{
		addr:      addr,
		pool:      pool,
		bus:       bus,
		registry:  prometheus.NewRegistry(),
		wsClients: make(map[*websocket.Conn]bool),
	}

	s.registry.MustRegister(metrics.NewCollector(metricsNamespace, pool.Metrics(), func() (int, int) {
		return pool.Live(), pool.Pending()
	}))

	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/workers", s.handleWorkers).Methods(http.MethodGet)
	r.HandleFunc("/api/metrics", s.handleMetrics).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.Handle("/ws", websocket.Handler(s.handleWebSocket))
	s.router = r

	return s
}

// Handler はルーティング済みの http.Handler を返す
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start はサーバーを開始し、ctx がキャンセルされるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve は l で待ち受ける
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// バックグラウンドでイベント配信
	go s.broadcastLoop(ctx)

	logger.Info("", "Admin server starting on http://%s", l.Addr())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.closeClients()
	}()

	if err := s.server.Serve(l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	PoolSize    int   `json:"pool_size"`
	LiveWorkers int   `json:"live_workers"`
	Pending     int   `json:"pending"`
	InFlight    int64 `json:"in_flight"`
}

func (s *Server) status() StatusResponse {
	return StatusResponse{
		PoolSize:    s.pool.Size(),
		LiveWorkers: s.pool.Live(),
		Pending:     s.pool.Pending(),
		InFlight:    s.pool.Metrics().InFlight(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.status())
}

// WorkerInfo はワーカー情報
type WorkerInfo struct {
	ID    int    `json:"id"`
	Tag   string `json:"tag"`
	State string `json:"state"`
}

func (s *Server) handleWorkers(w http.ResponseWriter, r *http.Request) {
	states := s.pool.WorkerStates()
	workers := make([]WorkerInfo, 0, len(states))
	for id, st := range states {
		workers = append(workers, WorkerInfo{
			ID:    id,
			Tag:   worker.Tag(id),
			State: st.String(),
		})
	}
	s.writeJSON(w, workers)
}

// MetricsResponse はメトリクスレスポンス
type MetricsResponse struct {
	Submitted    uint64  `json:"submitted"`
	Executed     uint64  `json:"executed"`
	Panicked     uint64  `json:"panicked"`
	Dropped      uint64  `json:"dropped"`
	JoinFailures uint64  `json:"join_failures"`
	InFlight     int64   `json:"in_flight"`
	Throughput   float64 `json:"throughput"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	P99LatencyMs float64 `json:"p99_latency_ms"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.pool.Metrics().Snapshot()
	s.writeJSON(w, MetricsResponse{
		Submitted:    snap.Submitted,
		Executed:     snap.Executed,
		Panicked:     snap.Panicked,
		Dropped:      snap.Dropped,
		JoinFailures: snap.JoinFailures,
		InFlight:     snap.InFlight,
		Throughput:   snap.Throughput,
		AvgLatencyMs: float64(snap.AverageLatency) / float64(time.Millisecond),
		P99LatencyMs: float64(snap.P99Latency) / float64(time.Millisecond),
	})
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// 接続直後に現在の状態を送る
	if data, err := json.Marshal(map[string]any{"type": "status", "status": s.status()}); err == nil {
		_ = websocket.Message.Send(ws, string(data))
	}

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

// ClientCount は接続中の WebSocket クライアント数を返す
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) closeClients() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ws := range s.wsClients {
		_ = ws.Close()
	}
}

// broadcastLoop はプールのイベントと定期的なステータスを配信する
func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	var eventCh <-chan events.Event
	if s.bus != nil {
		sub := s.bus.Subscribe()
		defer s.bus.Unsubscribe(sub)
		eventCh = sub
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-eventCh:
			if !ok {
				eventCh = nil
				continue
			}
			s.broadcast(map[string]any{
				"type":  "event",
				"event": e,
			})
		case <-ticker.C:
			if s.ClientCount() == 0 {
				continue
			}
			s.broadcast(map[string]any{
				"type":   "status",
				"status": s.status(),
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("", "Failed to encode JSON: %v", err)
	}
}
