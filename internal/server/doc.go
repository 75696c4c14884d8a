// Package server accepts TCP connections and hands each one to a worker pool.
//
// The Dispatcher submits exactly one task per accepted connection. The task
// owns the connection: it runs the handler and then closes it, so nothing
// needs to be reported back through the pool.
//
//	l, _ := net.Listen("tcp", "127.0.0.1:8080")
//	d := server.New(l, pool, site.NewHandler(cfg, nil), server.Config{})
//	err := d.Serve(ctx)
//
// MaxConnections stops the loop after that many accepts. AcceptRate throttles
// accepts with a token bucket.
package server
