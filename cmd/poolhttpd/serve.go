package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"poolhttpd/internal/api"
	"poolhttpd/internal/config"
	"poolhttpd/internal/events"
	"poolhttpd/internal/logger"
	"poolhttpd/internal/server"
	"poolhttpd/internal/site"
	"poolhttpd/internal/worker"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept connections and serve pages through the worker pool",
		Example: `  # デフォルト設定で起動
  poolhttpd serve

  # 設定ファイルから起動
  poolhttpd serve --config poolhttpd.yaml

  # 5接続で終了する
  poolhttpd serve --pool-size 4 --max-connections 5

  # 管理APIを有効化
  POOLHTTPD_ADMIN=true poolhttpd serve --admin-addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd.Flags())
			if err != nil {
				return err
			}
			cfg, err := buildConfig(v)
			if err != nil {
				return err
			}

			closer, err := logger.Setup(cfg.LoggerOptions())
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}

	addServeFlags(cmd.Flags())
	return cmd
}

// runServe はプールと待ち受けを起動し、終了まで待つ
// ディスパッチャが止まった後にプールを停止する
func runServe(ctx context.Context, cfg config.Config) error {
	l, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}
	return serveOn(ctx, l, cfg)
}

func serveOn(ctx context.Context, l net.Listener, cfg config.Config) error {
	bus := events.NewBus()
	defer bus.Close()

	pool, err := worker.NewPoolWithConfig(worker.PoolConfig{
		Size:   cfg.Server.PoolSize,
		Events: bus,
	})
	if err != nil {
		_ = l.Close()
		return err
	}

	var cache *site.PageCache
	if cfg.Site.Cache {
		cache, err = site.NewPageCache(cfg.Site.Root)
		if err != nil {
			_ = l.Close()
			pool.Shutdown()
			return fmt.Errorf("failed to start page cache: %w", err)
		}
		defer cache.Close()
	}

	handler := site.NewHandler(site.Config{
		Root:       cfg.Site.Root,
		Index:      cfg.Site.Index,
		NotFound:   cfg.Site.NotFound,
		ReadBuffer: cfg.Server.ReadBuffer,
		Delay:      time.Duration(cfg.Site.HandlerDelay),
	}, cache)

	dispatcher := server.New(l, pool, handler, server.Config{
		MaxConnections: cfg.Server.MaxConnections,
		AcceptRate:     cfg.Server.AcceptRate,
	})

	logger.Info("", "Serving pages from %s with %d workers", cfg.Site.Root, pool.Size())

	// ディスパッチャの終了で管理APIも止める
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		err := dispatcher.Serve(gctx)
		logger.Info("", "Shutting down.")
		pool.Shutdown()
		return err
	})

	if cfg.Admin.Enabled {
		admin := api.NewServer(cfg.Admin.Addr, pool, bus)
		g.Go(func() error {
			if err := admin.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	snap := pool.Metrics().Snapshot()
	logger.Info("", "Served %d connections (executed=%d dropped=%d panicked=%d)",
		dispatcher.Accepted(), snap.Executed, snap.Dropped, snap.Panicked)
	return nil
}
