// Package api serves the admin HTTP endpoints for a running pool.
//
// Routes:
//
//	GET /api/status   pool size, live workers, pending entries
//	GET /api/workers  per-worker state
//	GET /api/metrics  task counters and latency as JSON
//	GET /metrics      Prometheus exposition
//	    /ws           WebSocket stream of pool events and periodic status
package api
