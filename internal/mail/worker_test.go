package mail

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records delivery attempts and fails according to script.
type fakeSender struct {
	mu       sync.Mutex
	attempts []string
	times    []time.Time
	failFor  map[string]int // message ID -> failures before success (-1 = always)
	gate     chan struct{}  // when set, Send blocks until the gate closes
	seen     map[string]int
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: map[string]int{}, seen: map[string]int{}}
}

func (f *fakeSender) Send(_ context.Context, m *Message) error {
	f.mu.Lock()
	gate := f.gate
	f.attempts = append(f.attempts, m.ID)
	f.times = append(f.times, time.Now())
	f.seen[m.ID]++
	n := f.seen[m.ID]
	limit := f.failFor[m.ID]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if limit == -1 || n <= limit {
		return fmt.Errorf("scripted failure %d for %s", n, m.ID)
	}
	return nil
}

func (f *fakeSender) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func fastConfig() Config {
	return Config{
		BatchSize:     3,
		BatchInterval: time.Hour,
		PollInterval:  time.Millisecond,
		RetryLimit:    1,
		RetryDelay:    time.Millisecond,
	}
}

func TestBatchFlushOnSize(t *testing.T) {
	sender := newFakeSender()
	w := NewWorker(sender, fastConfig())

	for i := 0; i < 5; i++ {
		w.Enqueue(NewMessage("me@example.com", fmt.Sprintf("r%d@example.com", i), "hi", "body"))
	}

	w.Start()
	defer w.Stop()

	// Batch size 3, interval effectively never: exactly one flush happens.
	waitFor(t, func() bool { return sender.attemptCount() == 3 })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, sender.attemptCount())

	enqueued, sent, failed := w.Stats()
	assert.Equal(t, uint64(5), enqueued)
	assert.Equal(t, uint64(3), sent)
	assert.Equal(t, uint64(0), failed)
}

func TestFlushOrderIsFIFO(t *testing.T) {
	sender := newFakeSender()
	w := NewWorker(sender, fastConfig())

	var ids []string
	for i := 0; i < 3; i++ {
		m := NewMessage("me@example.com", "r@example.com", "hi", "body")
		ids = append(ids, m.ID)
		w.Enqueue(m)
	}

	w.Start()
	defer w.Stop()

	waitFor(t, func() bool { return sender.attemptCount() == 3 })
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Equal(t, ids, sender.attempts)
}

func TestRetryExhaustionDeclaresFailure(t *testing.T) {
	sender := newFakeSender()
	cfg := fastConfig()
	cfg.BatchSize = 1
	cfg.RetryLimit = 3
	w := NewWorker(sender, cfg)

	m := NewMessage("me@example.com", "r@example.com", "hi", "body")
	sender.failFor[m.ID] = -1
	w.Enqueue(m)

	w.Start()
	defer w.Stop()

	waitFor(t, func() bool {
		_, _, failed := w.Stats()
		return failed == 1
	})

	// Failure is declared only after exactly RetryLimit attempts.
	assert.Equal(t, 3, sender.attemptCount())
	_, sent, _ := w.Stats()
	assert.Equal(t, uint64(0), sent)
}

func TestRetrySucceedsMidway(t *testing.T) {
	sender := newFakeSender()
	cfg := fastConfig()
	cfg.BatchSize = 1
	cfg.RetryLimit = 3
	w := NewWorker(sender, cfg)

	m := NewMessage("me@example.com", "r@example.com", "hi", "body")
	sender.failFor[m.ID] = 2
	w.Enqueue(m)

	w.Start()
	defer w.Stop()

	waitFor(t, func() bool {
		_, sent, _ := w.Stats()
		return sent == 1
	})
	assert.Equal(t, 3, sender.attemptCount())
}

func TestRetryDelaysDouble(t *testing.T) {
	sender := newFakeSender()
	cfg := fastConfig()
	cfg.BatchSize = 1
	cfg.RetryLimit = 3
	cfg.RetryDelay = 20 * time.Millisecond
	w := NewWorker(sender, cfg)

	m := NewMessage("me@example.com", "r@example.com", "hi", "body")
	sender.failFor[m.ID] = -1
	w.Enqueue(m)

	w.Start()
	defer w.Stop()

	waitFor(t, func() bool {
		_, _, failed := w.Stats()
		return failed == 1
	})

	sender.mu.Lock()
	times := append([]time.Time(nil), sender.times...)
	sender.mu.Unlock()
	require.Len(t, times, 3)

	first := times[1].Sub(times[0])
	second := times[2].Sub(times[1])

	// Delays start at RetryDelay and double; sleeps may overshoot but never
	// undershoot, so lower bounds pin the policy.
	assert.GreaterOrEqual(t, first, cfg.RetryDelay)
	assert.GreaterOrEqual(t, second, 2*cfg.RetryDelay)
	assert.GreaterOrEqual(t, second, first)
}

func TestPauseSuppressesFlush(t *testing.T) {
	sender := newFakeSender()
	w := NewWorker(sender, fastConfig())
	w.Pause()

	for i := 0; i < 3; i++ {
		w.Enqueue(NewMessage("me@example.com", "r@example.com", "hi", "body"))
	}

	w.Start()
	defer w.Stop()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, sender.attemptCount(), "paused worker must not flush")

	w.Resume()
	waitFor(t, func() bool { return sender.attemptCount() == 3 })
}

func TestStopDrainsBatchOnly(t *testing.T) {
	sender := newFakeSender()
	gate := make(chan struct{})
	sender.gate = gate

	cfg := fastConfig()
	cfg.BatchSize = 1
	w := NewWorker(sender, cfg)

	first := NewMessage("me@example.com", "r0@example.com", "hi", "body")
	w.Enqueue(first)
	w.Start()

	// The consumer is now blocked inside the first delivery.
	waitFor(t, func() bool { return sender.attemptCount() == 1 })

	w.Enqueue(NewMessage("me@example.com", "r1@example.com", "hi", "body"))
	w.Enqueue(NewMessage("me@example.com", "r2@example.com", "hi", "body"))

	// Signal shutdown before releasing the blocked delivery, so the consumer
	// observes stop on its very next iteration.
	w.stopOnce.Do(func() { close(w.stop) })
	close(gate)
	w.Stop()

	// Queued-but-unbatched messages are abandoned by default.
	enqueued, sent, failed := w.Stats()
	assert.Equal(t, uint64(3), enqueued)
	assert.Equal(t, uint64(1), sent)
	assert.Equal(t, uint64(0), failed)
	assert.Equal(t, 2, w.Pending())
}

func TestStopDrainsQueueWhenConfigured(t *testing.T) {
	sender := newFakeSender()
	gate := make(chan struct{})
	sender.gate = gate

	cfg := fastConfig()
	cfg.BatchSize = 1
	cfg.DrainQueueOnStop = true
	w := NewWorker(sender, cfg)

	w.Enqueue(NewMessage("me@example.com", "r0@example.com", "hi", "body"))
	w.Start()
	waitFor(t, func() bool { return sender.attemptCount() == 1 })

	w.Enqueue(NewMessage("me@example.com", "r1@example.com", "hi", "body"))
	w.Enqueue(NewMessage("me@example.com", "r2@example.com", "hi", "body"))

	w.stopOnce.Do(func() { close(w.stop) })
	close(gate)
	w.Stop()

	enqueued, sent, failed := w.Stats()
	assert.Equal(t, uint64(3), enqueued)
	assert.Equal(t, enqueued, sent+failed, "every message resolves after a full drain")
	assert.Equal(t, 0, w.Pending())
}

func TestHooksSeeOutcome(t *testing.T) {
	sender := newFakeSender()
	cfg := fastConfig()
	cfg.BatchSize = 1
	w := NewWorker(sender, cfg)

	var mu sync.Mutex
	var pre, enq []string
	outcomes := map[string]bool{}

	w.RegisterEnqueueHook(func(m *Message) {
		mu.Lock()
		enq = append(enq, m.ID)
		mu.Unlock()
	})
	w.RegisterPreSendHook(func(m *Message) {
		mu.Lock()
		pre = append(pre, m.ID)
		mu.Unlock()
	})
	w.RegisterPostSendHook(func(m *Message, ok bool) {
		mu.Lock()
		outcomes[m.ID] = ok
		mu.Unlock()
	})

	good := NewMessage("me@example.com", "ok@example.com", "hi", "body")
	bad := NewMessage("me@example.com", "bad@example.com", "hi", "body")
	sender.failFor[bad.ID] = -1

	w.Enqueue(good)
	w.Enqueue(bad)
	w.Start()
	defer w.Stop()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(outcomes) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{good.ID, bad.ID}, enq)
	assert.ElementsMatch(t, []string{good.ID, bad.ID}, pre)
	assert.True(t, outcomes[good.ID])
	assert.False(t, outcomes[bad.ID])
}

func TestStartTwiceIsNoop(t *testing.T) {
	sender := newFakeSender()
	w := NewWorker(sender, fastConfig())
	w.Start()
	w.Start()
	w.Stop()
}

func TestQueueFIFO(t *testing.T) {
	q := newQueue()
	m1 := NewMessage("a@b.c", "x@y.z", "1", "")
	m2 := NewMessage("a@b.c", "x@y.z", "2", "")
	q.push(m1)
	q.push(m2)

	got, ok := q.pop(time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, m1.ID, got.ID)

	got, ok = q.pop(time.Millisecond)
	require.True(t, ok)
	assert.Equal(t, m2.ID, got.ID)

	_, ok = q.pop(time.Millisecond)
	assert.False(t, ok)
}
