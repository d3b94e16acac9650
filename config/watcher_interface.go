package config

import "sync"

// Watcher defines the behavior we expect from any configuration watcher
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}

// StaticWatcher serves a fixed configuration, for runs without a config
// file. Subscribers never receive an update.
type StaticWatcher struct {
	cfg       *Config
	done      chan *Config
	closeOnce sync.Once
}

var _ Watcher = (*StaticWatcher)(nil)

func NewStaticWatcher(cfg *Config) *StaticWatcher {
	return &StaticWatcher{cfg: cfg, done: make(chan *Config)}
}

func (w *StaticWatcher) GetCurrentConfig() *Config { return w.cfg }

func (w *StaticWatcher) Subscribe() <-chan *Config { return w.done }

// Close closes the channel handed to subscribers.
func (w *StaticWatcher) Close() error {
	w.closeOnce.Do(func() { close(w.done) })
	return nil
}
