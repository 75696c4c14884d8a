package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"poolhttpd/internal/logger"
	"poolhttpd/internal/worker"
)

// Submitter はタスクの投入先。worker.Pool が実装する
type Submitter interface {
	Submit(task worker.Task)
}

// ConnHandler は1つの接続を処理する
type ConnHandler interface {
	ServeConn(conn net.Conn, tag string)
}

// Ensure worker.Pool implements Submitter
var _ Submitter = (*worker.Pool)(nil)

// Config はDispatcherの設定
type Config struct {
	MaxConnections int     // 受け付ける接続数の上限（0で無制限）
	AcceptRate     float64 // 毎秒の受付数（0で無制限）
}

const acceptRetryDelay = 50 * time.Millisecond

// Dispatcher は接続を受け付け、接続ごとに1つのタスクをプールに投入する
type Dispatcher struct {
	listener net.Listener
	pool     Submitter
	handler  ConnHandler
	config   Config
	limiter  *rate.Limiter

	accepted atomic.Uint64
}

// New は新しいDispatcherを作成する
func New(listener net.Listener, pool Submitter, handler ConnHandler, config Config) *Dispatcher {
	d := &Dispatcher{
		listener: listener,
		pool:     pool,
		handler:  handler,
		config:   config,
	}
	if config.AcceptRate > 0 {
		burst := int(config.AcceptRate)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(config.AcceptRate), burst)
	}
	return d
}

// Addr は待ち受けアドレスを返す
func (d *Dispatcher) Addr() net.Addr {
	return d.listener.Addr()
}

// Accepted は受け付けた接続数を返す
func (d *Dispatcher) Accepted() uint64 {
	return d.accepted.Load()
}

// Serve は受付ループを実行する。ctx のキャンセル、リスナーのクローズ、
// または接続数の上限到達で nil を返す。リスナーは戻る前に閉じられる
func (d *Dispatcher) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer d.listener.Close()

	go func() {
		<-ctx.Done()
		_ = d.listener.Close()
	}()

	logger.Info("", "Listening on %s", d.listener.Addr())

	for {
		if limit := d.config.MaxConnections; limit > 0 && d.accepted.Load() >= uint64(limit) {
			logger.Info("", "Accepted %d connections, no longer accepting", limit)
			return nil
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		conn, err := d.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Warn("", "Accept timed out, retrying: %v", err)
				time.Sleep(acceptRetryDelay)
				continue
			}
			return fmt.Errorf("failed to accept connection: %w", err)
		}

		d.accepted.Add(1)
		d.pool.Submit(d.connTask(conn))
	}
}

// connTask は接続を所有し、応答後に閉じるタスクを作る
func (d *Dispatcher) connTask(conn net.Conn) worker.Task {
	tag := "conn-" + uuid.NewString()[:8]
	logger.Debug(tag, "Accepted connection from %s", conn.RemoteAddr())

	return func() {
		defer func() {
			if err := conn.Close(); err != nil {
				logger.Warn(tag, "Failed to close connection: %v", err)
			}
		}()
		d.handler.ServeConn(conn, tag)
	}
}
