// Package main is the entry point for poolhttpd.
package main

import (
	"os"

	"poolhttpd/internal/logger"
)

var (
	version = "dev"
)

func main() {
	if err := Execute(); err != nil {
		logger.Error("", "%v", err)
		os.Exit(1)
	}
}
