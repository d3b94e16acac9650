package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eapache/queue/v2"
	"github.com/huulkit/huulkit/errors"
	"github.com/huulkit/huulkit/server/metrics"
	"go.uber.org/zap"
)

// QueueMiddleware serves at most Concurrency requests at a time and parks
// the rest in a FIFO queue of bounded size. A finishing request hands its
// slot directly to the oldest waiter. Requests that arrive to a full queue
// get 503; waiters whose context ends leave the queue.
type QueueMiddleware struct {
	mu          sync.Mutex
	waiters     *queue.Queue[*waiter]
	waiting     int // live waiters; abandoned ones stay queued until skipped
	active      int
	concurrency int
	maxSize     int64

	metrics   *metrics.Metrics
	logger    *zap.Logger
	statePath string
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type waiter struct {
	ready     chan struct{}
	abandoned bool
}

// QueueState is the part of the queue configuration kept across restarts.
type QueueState struct {
	MaxSize     int64     `json:"max_size"`
	Concurrency int       `json:"concurrency"`
	QueueLength int       `json:"queue_length"`
	LastSaved   time.Time `json:"last_saved"`
}

// QueueConfig defines the operational parameters for the queue middleware.
type QueueConfig struct {
	Concurrency  int
	InitialSize  int64
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	StatePath    string        // empty disables persistence
	SaveInterval time.Duration // 0 saves only on shutdown
}

// NewQueueMiddleware initializes the queue, restoring a saved size if
// StatePath holds one.
func NewQueueMiddleware(cfg QueueConfig) *QueueMiddleware {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	qm := &QueueMiddleware{
		waiters:     queue.New[*waiter](),
		concurrency: cfg.Concurrency,
		maxSize:     cfg.InitialSize,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		statePath:   cfg.StatePath,
		done:        make(chan struct{}),
	}

	if qm.statePath != "" {
		if err := qm.loadState(); err != nil && !os.IsNotExist(err) {
			qm.logger.Warn("Failed to restore queue state", zap.Error(err))
			qm.countError("queue_load_state")
		}
		if cfg.SaveInterval > 0 {
			qm.wg.Add(1)
			go qm.persistStateRoutine(cfg.SaveInterval)
		}
	}
	return qm
}

// Handler wraps the model routes.
func (qm *QueueMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := GetRequestID(r.Context())

		if err := qm.acquire(r.Context()); err != nil {
			if err == errQueueFull {
				qm.countError("queue_full")
				if qm.metrics != nil {
					qm.metrics.QueueRejected.Inc()
				}
				errors.WriteError(w, errors.NewUnavailableError(requestID, "Too many requests in progress, try again shortly", err))
				return
			}
			errors.WriteError(w, errors.NewTimeoutError(requestID, err))
			return
		}
		defer qm.release()

		if qm.metrics != nil {
			qm.metrics.RequestDuration.WithLabelValues("queue_wait").Observe(time.Since(start).Seconds())
		}
		next.ServeHTTP(w, r)
	})
}

type queueError string

func (e queueError) Error() string { return string(e) }

const errQueueFull = queueError("queue is full")

func (qm *QueueMiddleware) acquire(ctx context.Context) error {
	qm.mu.Lock()
	if qm.active < qm.concurrency && qm.waiting == 0 {
		qm.active++
		qm.mu.Unlock()
		return nil
	}
	if int64(qm.waiting) >= qm.maxSize {
		qm.mu.Unlock()
		return errQueueFull
	}
	wt := &waiter{ready: make(chan struct{})}
	qm.waiters.Add(wt)
	qm.waiting++
	qm.observeDepth()
	qm.mu.Unlock()

	select {
	case <-wt.ready:
		return nil
	case <-ctx.Done():
		qm.mu.Lock()
		defer qm.mu.Unlock()
		select {
		case <-wt.ready:
			// Handed a slot just as we gave up; pass it on.
			qm.handOff()
		default:
			wt.abandoned = true
			qm.waiting--
			qm.observeDepth()
		}
		return ctx.Err()
	}
}

func (qm *QueueMiddleware) release() {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	qm.handOff()
}

// handOff gives the caller's slot to the oldest live waiter, or frees it.
// qm.mu must be held.
func (qm *QueueMiddleware) handOff() {
	for qm.waiters.Length() > 0 {
		wt := qm.waiters.Remove()
		if wt.abandoned {
			continue
		}
		qm.waiting--
		close(wt.ready)
		qm.observeDepth()
		return
	}
	qm.active--
	qm.observeDepth()
}

func (qm *QueueMiddleware) observeDepth() {
	if qm.metrics == nil {
		return
	}
	qm.metrics.QueueDepth.Set(float64(qm.waiting))
	qm.metrics.ActiveRequests.WithLabelValues("queued").Set(float64(qm.waiting))
}

// SetMaxSize changes how many requests may wait.
func (qm *QueueMiddleware) SetMaxSize(size int64) {
	qm.mu.Lock()
	qm.maxSize = size
	qm.mu.Unlock()
	if qm.statePath != "" {
		if err := qm.saveState(); err != nil {
			qm.countError("queue_persistence")
		}
	}
}

// GetMaxSize returns the current maximum queue size.
func (qm *QueueMiddleware) GetMaxSize() int64 {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.maxSize
}

// GetQueueSize returns the number of requests still waiting for a slot.
func (qm *QueueMiddleware) GetQueueSize() int {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.waiting
}

// GetActive returns the number of requests holding a slot.
func (qm *QueueMiddleware) GetActive() int {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	return qm.active
}

func (qm *QueueMiddleware) loadState() error {
	data, err := os.ReadFile(qm.statePath)
	if err != nil {
		return err
	}
	var state QueueState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	if state.MaxSize > 0 {
		qm.maxSize = state.MaxSize
	}
	return nil
}

func (qm *QueueMiddleware) saveState() error {
	qm.mu.Lock()
	state := QueueState{
		MaxSize:     qm.maxSize,
		Concurrency: qm.concurrency,
		QueueLength: qm.waiting,
		LastSaved:   time.Now(),
	}
	qm.mu.Unlock()

	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(qm.statePath), 0o755); err != nil {
		return err
	}
	tmpFile := qm.statePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpFile, qm.statePath)
}

func (qm *QueueMiddleware) persistStateRoutine(interval time.Duration) {
	defer qm.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := qm.saveState(); err != nil {
				qm.logger.Warn("Failed to save queue state", zap.Error(err))
				qm.countError("queue_persistence")
			}
		case <-qm.done:
			return
		}
	}
}

// Shutdown stops persistence, waits for in-flight and queued requests to
// drain until ctx ends, then saves the state one last time.
func (qm *QueueMiddleware) Shutdown(ctx context.Context) error {
	qm.closeOnce.Do(func() { close(qm.done) })
	qm.wg.Wait()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		qm.mu.Lock()
		idle := qm.active == 0 && qm.waiting == 0
		qm.mu.Unlock()
		if idle {
			break
		}
		select {
		case <-ctx.Done():
			qm.countError("queue_shutdown_timeout")
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if qm.statePath != "" {
		if err := qm.saveState(); err != nil {
			qm.countError("queue_persistence")
			return err
		}
	}
	return nil
}

func (qm *QueueMiddleware) countError(kind string) {
	if qm.metrics != nil {
		qm.metrics.ErrorsTotal.WithLabelValues(kind).Inc()
	}
}
