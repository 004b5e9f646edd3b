package mail

import (
	"context"
	log "log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config tunes the batching worker.
type Config struct {
	BatchSize     int
	BatchInterval time.Duration
	PollInterval  time.Duration
	RetryLimit    int
	RetryDelay    time.Duration

	// DrainQueueOnStop widens the shutdown drain from the in-memory batch
	// to everything still sitting in the queue. Default keeps the narrow
	// drain: queued-but-unbatched messages are abandoned on Stop.
	DrainQueueOnStop bool
}

func (c *Config) normalize() {
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.BatchInterval <= 0 {
		c.BatchInterval = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
}

// EnqueueHook runs when a message enters the queue.
type EnqueueHook func(m *Message)

// SendHook runs right before a delivery attempt sequence.
type SendHook func(m *Message)

// ResultHook runs after delivery resolved, with the final outcome.
type ResultHook func(m *Message, sent bool)

// Worker consumes the outbound queue in batches and sends each message with
// bounded retries. One consumer goroutine; explicit Start/Stop lifecycle.
type Worker struct {
	cfg    Config
	sender Sender
	queue  *queue

	started  atomic.Bool
	paused   atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	hookMu       sync.Mutex
	enqueueHooks []EnqueueHook
	preHooks     []SendHook
	postHooks    []ResultHook

	enqueued atomic.Uint64
	sent     atomic.Uint64
	failed   atomic.Uint64
}

func NewWorker(sender Sender, cfg Config) *Worker {
	cfg.normalize()
	return &Worker{
		cfg:    cfg,
		sender: sender,
		queue:  newQueue(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (w *Worker) RegisterEnqueueHook(fn EnqueueHook) {
	w.hookMu.Lock()
	defer w.hookMu.Unlock()
	w.enqueueHooks = append(w.enqueueHooks, fn)
}

func (w *Worker) RegisterPreSendHook(fn SendHook) {
	w.hookMu.Lock()
	defer w.hookMu.Unlock()
	w.preHooks = append(w.preHooks, fn)
}

func (w *Worker) RegisterPostSendHook(fn ResultHook) {
	w.hookMu.Lock()
	defer w.hookMu.Unlock()
	w.postHooks = append(w.postHooks, fn)
}

// Enqueue appends a message and returns immediately. Delivery is
// best-effort from here on; the caller learns the outcome only through
// hooks and counters.
func (w *Worker) Enqueue(m *Message) {
	w.queue.push(m)
	w.enqueued.Add(1)

	w.hookMu.Lock()
	hooks := w.enqueueHooks
	w.hookMu.Unlock()
	for _, fn := range hooks {
		fn(m)
	}

	log.Debug("Email queued", "id", m.ID, "to", m.To)
}

// Start launches the consumer. Calling Start twice is a no-op.
func (w *Worker) Start() {
	if !w.started.CompareAndSwap(false, true) {
		log.Warn("Mail worker already started")
		return
	}
	go w.run()
	log.Info("Mail worker started")
}

// Stop signals shutdown and blocks until the final drain finished.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	if w.started.Load() {
		<-w.done
	}
}

// Pause suppresses batch flushes; enqueue still succeeds. Backpressure, not
// failure.
func (w *Worker) Pause() {
	w.paused.Store(true)
	log.Info("Mail worker paused")
}

func (w *Worker) Resume() {
	w.paused.Store(false)
	log.Info("Mail worker resumed")
}

func (w *Worker) Paused() bool { return w.paused.Load() }

// Stats reports lifetime counters.
func (w *Worker) Stats() (enqueued, sent, failed uint64) {
	return w.enqueued.Load(), w.sent.Load(), w.failed.Load()
}

// Pending reports messages still waiting for their first batch.
func (w *Worker) Pending() int { return w.queue.len() }

func (w *Worker) run() {
	defer close(w.done)

	batch := make([]*Message, 0, w.cfg.BatchSize)
	lastFlush := time.Now()

	for {
		select {
		case <-w.stop:
			if w.cfg.DrainQueueOnStop {
				batch = append(batch, w.queue.drain()...)
			}
			if len(batch) > 0 {
				log.Info("Draining on shutdown", "batched", len(batch), "abandoned", w.queue.len())
				w.flush(batch)
			}
			return
		default:
		}

		if m, ok := w.queue.pop(w.cfg.PollInterval); ok {
			batch = append(batch, m)
		}

		if len(batch) == 0 {
			continue
		}
		if len(batch) < w.cfg.BatchSize && time.Since(lastFlush) < w.cfg.BatchInterval {
			continue
		}

		if w.paused.Load() {
			log.Info("Paused: skipping batch flush", "batched", len(batch))
			lastFlush = time.Now()
			continue
		}

		w.flush(batch)
		batch = batch[:0]
		lastFlush = time.Now()
	}
}

// flush sends every message in the batch, FIFO. Outcomes are independent;
// one failure never rolls back its neighbours.
func (w *Worker) flush(batch []*Message) {
	w.hookMu.Lock()
	pre := w.preHooks
	post := w.postHooks
	w.hookMu.Unlock()

	for _, m := range batch {
		for _, fn := range pre {
			fn(m)
		}
		ok := w.deliver(m)
		for _, fn := range post {
			fn(m, ok)
		}
	}
}

// deliver attempts the send up to RetryLimit times with exponential
// back-off (RetryDelay, doubling). Exhaustion marks the message failed; it
// is never re-enqueued.
func (w *Worker) deliver(m *Message) bool {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.cfg.RetryDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	attempt := 0
	op := func() error {
		attempt++
		if err := w.sender.Send(context.Background(), m); err != nil {
			log.Warn("Send attempt failed", "id", m.ID, "to", m.To, "attempt", attempt, "err", err)
			return err
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithMaxRetries(bo, uint64(w.cfg.RetryLimit-1)))
	if err != nil {
		w.failed.Add(1)
		log.Error("All send attempts failed", "id", m.ID, "to", m.To, "attempts", w.cfg.RetryLimit)
		return false
	}

	w.sent.Add(1)
	log.Info("Email sent", "id", m.ID, "to", m.To)
	return true
}
