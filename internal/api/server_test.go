package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"poolhttpd/internal/events"
	"poolhttpd/internal/worker"
)

func newTestPool(t *testing.T, size int, bus *events.Bus) *worker.Pool {
	t.Helper()
	pool, err := worker.NewPoolWithConfig(worker.PoolConfig{Size: size, Events: bus})
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)
	return pool
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHandleStatus(t *testing.T) {
	pool := newTestPool(t, 3, nil)
	ts := httptest.NewServer(NewServer(":0", pool, nil).Handler())
	defer ts.Close()

	var status StatusResponse
	getJSON(t, ts.URL+"/api/status", &status)

	assert.Equal(t, 3, status.PoolSize)
	assert.Equal(t, 3, status.LiveWorkers)
	assert.Zero(t, status.Pending)
}

func TestHandleWorkers(t *testing.T) {
	pool := newTestPool(t, 2, nil)
	ts := httptest.NewServer(NewServer(":0", pool, nil).Handler())
	defer ts.Close()

	var workers []WorkerInfo
	getJSON(t, ts.URL+"/api/workers", &workers)

	require.Len(t, workers, 2)
	assert.Equal(t, "worker-1", workers[1].Tag)
	assert.Equal(t, "running", workers[0].State)
}

func TestHandleMetrics(t *testing.T) {
	pool := newTestPool(t, 2, nil)
	done := make(chan struct{})
	pool.Submit(func() { close(done) })
	<-done

	ts := httptest.NewServer(NewServer(":0", pool, nil).Handler())
	defer ts.Close()

	var m MetricsResponse
	require.Eventually(t, func() bool {
		getJSON(t, ts.URL+"/api/metrics", &m)
		return m.Executed == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), m.Submitted)
}

func TestPrometheusEndpoint(t *testing.T) {
	pool := newTestPool(t, 4, nil)
	ts := httptest.NewServer(NewServer(":0", pool, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "poolhttpd_pool_workers_live 4")
	assert.Contains(t, string(body), "poolhttpd_pool_tasks_submitted_total 0")
}

func TestMethodNotAllowed(t *testing.T) {
	pool := newTestPool(t, 1, nil)
	ts := httptest.NewServer(NewServer(":0", pool, nil).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/status", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebSocketStreamsEvents(t *testing.T) {
	bus := events.NewBus()
	pool := newTestPool(t, 1, bus)
	s := NewServer("127.0.0.1:0", pool, bus)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, l) }()

	ws, err := websocket.Dial("ws://"+l.Addr().String()+"/ws", "", "http://localhost/")
	require.NoError(t, err)
	defer ws.Close()

	var msg string
	require.NoError(t, websocket.Message.Receive(ws, &msg))
	assert.Contains(t, msg, `"type":"status"`)

	// broadcastLoop が購読するまで待つ
	require.Eventually(t, func() bool {
		return bus.SubscriberCount() >= 1 && s.ClientCount() == 1
	}, time.Second, 5*time.Millisecond)

	bus.Publish(events.NewTaskDroppedEvent(worker.ErrQueueClosed))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for !strings.Contains(msg, `"type":"event"`) {
		require.NoError(t, websocket.Message.Receive(ws, &msg))
	}
	assert.Contains(t, msg, string(events.EventTaskDropped))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("admin server did not shut down")
	}
}

func TestStartListenError(t *testing.T) {
	pool := newTestPool(t, 1, nil)
	s := NewServer("256.0.0.1:bad", pool, nil)
	assert.Error(t, s.Start(context.Background()))
}
