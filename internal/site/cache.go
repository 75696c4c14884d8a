package site

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"

	"poolhttpd/internal/logger"
)

// PageCache はファイル内容をメモリに保持する
// サイトルートの変更を fsnotify で監視し、変更されたファイルを破棄する
type PageCache struct {
	mu    sync.RWMutex
	pages map[string][]byte

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewPageCache は root を監視するキャッシュを作成する
func NewPageCache(root string) (*PageCache, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}

	c := &PageCache{
		pages:   make(map[string][]byte),
		watcher: watcher,
		done:    make(chan struct{}),
	}
	go c.watchLoop()
	return c, nil
}

// Get はファイル内容を返す。未読み込みならディスクから読む
func (c *PageCache) Get(path string) ([]byte, error) {
	key := filepath.Clean(path)

	c.mu.RLock()
	data, ok := c.pages[key]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	data, err := os.ReadFile(key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pages[key] = data
	c.mu.Unlock()

	logger.Debug("", "Cached %s (%s)", key, humanize.Bytes(uint64(len(data))))
	return data, nil
}

// Invalidate は path のキャッシュを破棄する
func (c *PageCache) Invalidate(path string) {
	key := filepath.Clean(path)

	c.mu.Lock()
	_, ok := c.pages[key]
	delete(c.pages, key)
	c.mu.Unlock()

	if ok {
		logger.Debug("", "Invalidated cached page %s", key)
	}
}

// Len はキャッシュ済みのページ数を返す
func (c *PageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}

// Close は監視を停止する
func (c *PageCache) Close() error {
	var err error
	c.once.Do(func() {
		err = c.watcher.Close()
		<-c.done
	})
	return err
}

func (c *PageCache) watchLoop() {
	defer close(c.done)

	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				c.Invalidate(event.Name)
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("", "Page cache watcher error: %v", err)
		}
	}
}
