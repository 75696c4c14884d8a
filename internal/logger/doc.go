// Package logger provides a small, thread-safe leveled logger.
//
// Each entry carries a timestamp, level, an optional tag (a worker or
// connection identifier) and the message.
//
// # Basic Usage
//
//	logger.Info("", "pool started")
//	logger.Info("worker-3", "received a task; executing")
//	logger.Error("conn-1f2e3d4c", "write failed: %v", err)
//
// # Output
//
// Setup reconfigures the Default logger from Options. When File is set the
// output goes to a size-rotated file managed by lumberjack; otherwise it goes
// to stdout. Format selects the bracketed text layout or one JSON object per
// line.
//
// # Thread Safety
//
// All logging operations are protected by a mutex and safe for concurrent use.
package logger
