package site

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"poolhttpd/internal/logger"
)

const (
	StatusOK       = "HTTP/1.1 200 OK\r\n\r\n"
	StatusNotFound = "HTTP/1.1 404 NOT FOUND\r\n\r\n"
)

// requestLine はトップページへのリクエストとみなす先頭バイト列
var requestLine = []byte("GET / HTTP/1.1\r\n")

// Config はハンドラの設定
type Config struct {
	Root       string
	Index      string
	NotFound   string
	ReadBuffer int
	Delay      time.Duration // 応答後に接続を保持する時間
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Root:       ".",
		Index:      "main.html",
		NotFound:   "404.html",
		ReadBuffer: 512,
	}
}

// Handler は1つの接続に対して1回だけ応答する
type Handler struct {
	config Config
	cache  *PageCache
}

// NewHandler はハンドラを作成する。cache が nil なら毎回ディスクから読む
func NewHandler(config Config, cache *PageCache) *Handler {
	if config.ReadBuffer <= 0 {
		config.ReadBuffer = DefaultConfig().ReadBuffer
	}
	return &Handler{
		config: config,
		cache:  cache,
	}
}

// ServeConn はリクエストを読み、ファイル内容を返す
// 接続のクローズは呼び出し側が行う
func (h *Handler) ServeConn(conn net.Conn, tag string) {
	buf := make([]byte, h.config.ReadBuffer)
	n, err := conn.Read(buf)
	if err != nil {
		logger.Error(tag, "Failed to read from connection: %v", err)
		return
	}

	status, name := StatusNotFound, h.config.NotFound
	if bytes.HasPrefix(buf[:n], requestLine) {
		status, name = StatusOK, h.config.Index
	}

	contents, err := h.load(name)
	if err != nil {
		logger.Error(tag, "Failed to read file %s: %v", name, err)
		return
	}

	response := fmt.Sprintf("%s%s", status, contents)
	if _, err := conn.Write([]byte(response)); err != nil {
		logger.Error(tag, "Failed to write response: %v", err)
	}
	logger.Debug(tag, "Served %s from %s", name, conn.RemoteAddr())

	if h.config.Delay > 0 {
		time.Sleep(h.config.Delay)
	}
}

func (h *Handler) load(name string) ([]byte, error) {
	path := filepath.Join(h.config.Root, name)
	if h.cache != nil {
		return h.cache.Get(path)
	}
	return os.ReadFile(path)
}
