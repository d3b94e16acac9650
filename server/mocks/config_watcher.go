package mocks

import (
	"sync"
	"sync/atomic"

	"github.com/huulkit/huulkit/config"
)

// ConfigWatcher is an in-memory config.Watcher driven by UpdateConfig.
type ConfigWatcher struct {
	current atomic.Value

	mu          sync.Mutex
	subscribers []chan *config.Config
}

var _ config.Watcher = (*ConfigWatcher)(nil)

func NewConfigWatcher(cfg *config.Config) *ConfigWatcher {
	w := &ConfigWatcher{}
	w.current.Store(cfg)
	return w
}

func (w *ConfigWatcher) GetCurrentConfig() *config.Config {
	return w.current.Load().(*config.Config)
}

func (w *ConfigWatcher) Subscribe() <-chan *config.Config {
	ch := make(chan *config.Config, 1)
	w.mu.Lock()
	w.subscribers = append(w.subscribers, ch)
	w.mu.Unlock()
	return ch
}

func (w *ConfigWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subscribers {
		close(ch)
	}
	w.subscribers = nil
	return nil
}

// UpdateConfig simulates a reload, delivering cfg the way the file watcher
// does: a pending stale update is replaced.
func (w *ConfigWatcher) UpdateConfig(cfg *config.Config) {
	w.current.Store(cfg)

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
		}
	}
}
