package browser

import (
	"context"
	"fmt"
	log "log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config tunes the controller's retry and timing behavior.
type Config struct {
	SearchLimit   int
	PlayerTimeout time.Duration
	PollInterval  time.Duration

	RetryInitial  time.Duration
	RetryCap      time.Duration
	RetryAttempts int

	// JitterMin/JitterMax bound the human-like delay around driver calls.
	// Both zero disables the delay (tests).
	JitterMin time.Duration
	JitterMax time.Duration
}

func (c *Config) normalize() {
	if c.SearchLimit <= 0 {
		c.SearchLimit = 5
	}
	if c.PlayerTimeout <= 0 {
		c.PlayerTimeout = 10 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 200 * time.Millisecond
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = 500 * time.Millisecond
	}
	if c.RetryCap <= 0 {
		c.RetryCap = 4 * time.Second
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 4
	}
}

// DefaultJitter is the human-interaction delay range applied around every
// driver call in production.
const (
	DefaultJitterMin = 150 * time.Millisecond
	DefaultJitterMax = 600 * time.Millisecond
)

// Controller drives one browser. The driver handle is created lazily on
// first use and every public operation is serialized behind the controller
// lock, so the single handle never sees racing commands.
type Controller struct {
	mu sync.Mutex

	cfg       Config
	oracle    SearchOracle
	newDriver func(ctx context.Context) (Driver, error)

	driver Driver
	cache  []Result
	active *Result
	closed bool
}

// NewController wires a controller around a driver factory and a search
// oracle. The factory runs at most once per controller instance. A nil
// oracle falls back to the driver, if it implements SearchOracle.
func NewController(newDriver func(ctx context.Context) (Driver, error), oracle SearchOracle, cfg Config) *Controller {
	cfg.normalize()
	return &Controller{
		cfg:       cfg,
		oracle:    oracle,
		newDriver: newDriver,
	}
}

// Search queries the oracle and replaces the result cache wholesale.
func (c *Controller) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrBrowserClosed
	}
	if limit <= 0 || limit > c.cfg.SearchLimit {
		limit = c.cfg.SearchLimit
	}

	oracle := c.oracle
	if oracle == nil {
		d, err := c.getDriver(ctx)
		if err != nil {
			return nil, err
		}
		var ok bool
		if oracle, ok = d.(SearchOracle); !ok {
			return nil, fmt.Errorf("no search oracle configured")
		}
	}

	c.humanDelay()
	results, err := oracle.Search(ctx, query, limit)
	c.humanDelay()
	if err != nil {
		return nil, fmt.Errorf("video search: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w for %q", ErrNoResults, query)
	}
	if len(results) > limit {
		results = results[:limit]
	}

	c.cache = results
	log.Info("Search results cached", "query", query, "count", len(results))
	return results, nil
}

// Play resolves identifier against the cache, either a 1-based index or a
// case-insensitive title substring, then opens the target in a new tab and
// waits for the player to come up. Resolution failures never touch the
// driver.
func (c *Controller) Play(ctx context.Context, identifier string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Result{}, ErrBrowserClosed
	}

	target, err := c.resolve(identifier)
	if err != nil {
		return Result{}, err
	}

	log.Info("Opening video", "title", target.Title, "url", target.WatchURL)
	err = c.withRetry(ctx, func(d Driver) error {
		return d.OpenTab(ctx, target.WatchURL)
	})
	if err != nil {
		return Result{}, err
	}

	if err := c.waitPlayerReady(ctx); err != nil {
		return Result{}, err
	}

	c.active = &target
	return target, nil
}

// Pause is idempotent: an already-paused player is left alone.
func (c *Controller) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrBrowserClosed
	}
	return c.withRetry(ctx, func(d Driver) error {
		paused, err := d.Paused(ctx)
		if err != nil {
			return err
		}
		if paused {
			log.Debug("Pause requested, but video already paused")
			return nil
		}
		return d.Pause(ctx)
	})
}

// Resume is idempotent: an already-playing player is left alone.
func (c *Controller) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrBrowserClosed
	}
	return c.withRetry(ctx, func(d Driver) error {
		paused, err := d.Paused(ctx)
		if err != nil {
			return err
		}
		if !paused {
			log.Debug("Resume requested, but video already playing")
			return nil
		}
		return d.Play(ctx)
	})
}

func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrBrowserClosed
	}
	return c.withRetry(ctx, func(d Driver) error { return d.Toggle(ctx) })
}

// Next and Previous are best-effort; there is no guaranteed playlist
// context.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrBrowserClosed
	}
	return c.withRetry(ctx, func(d Driver) error { return d.Next(ctx) })
}

func (c *Controller) Previous(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrBrowserClosed
	}
	return c.withRetry(ctx, func(d Driver) error { return d.Previous(ctx) })
}

// CloseTab closes the focused tab. Closing the last one marks the whole
// session closed.
func (c *Controller) CloseTab(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrBrowserClosed
	}
	return c.withRetry(ctx, func(d Driver) error {
		remaining, err := d.CloseTab(ctx)
		if err != nil {
			return err
		}
		if remaining == 0 {
			log.Info("Last tab closed, session closed")
			c.closed = true
		}
		return nil
	})
}

// Close quits the browser and permanently closes this controller instance.
// A second Close is a no-op; a fresh controller gets a fresh driver.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cache = nil
	c.active = nil

	if c.driver == nil {
		return nil
	}
	d := c.driver
	c.driver = nil

	if err := d.Quit(ctx); err != nil {
		log.Error("Error quitting driver", "err", err)
		return err
	}
	log.Info("Browser closed")
	return nil
}

// Active returns the video set by the last successful Play, if any.
func (c *Controller) Active() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Result{}, false
	}
	return *c.active, true
}

// Results returns a copy of the cached search results.
func (c *Controller) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Result, len(c.cache))
	copy(out, c.cache)
	return out
}

// resolve maps the identifier onto the cache. Ambiguous substring matches
// tie-break to the first in cache order.
func (c *Controller) resolve(identifier string) (Result, error) {
	if len(c.cache) == 0 {
		return Result{}, fmt.Errorf("%w: nothing searched yet", ErrVideoNotFound)
	}

	if idx, err := strconv.Atoi(strings.TrimSpace(identifier)); err == nil {
		if idx < 1 || idx > len(c.cache) {
			return Result{}, fmt.Errorf("%w: index %d out of range", ErrVideoNotFound, idx)
		}
		return c.cache[idx-1], nil
	}

	needle := strings.ToLower(identifier)
	var matches []Result
	for _, r := range c.cache {
		if strings.Contains(strings.ToLower(r.Title), needle) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return Result{}, fmt.Errorf("%w: no title matches %q", ErrVideoNotFound, identifier)
	}
	if len(matches) > 1 {
		log.Warn("Multiple videos matched, choosing first", "identifier", identifier, "matches", len(matches))
	}
	return matches[0], nil
}

// getDriver lazily creates the single driver handle.
func (c *Controller) getDriver(ctx context.Context) (Driver, error) {
	if c.closed {
		return nil, ErrBrowserClosed
	}
	if c.driver != nil {
		return c.driver, nil
	}
	d, err := c.newDriver(ctx)
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}
	c.driver = d
	log.Info("Automation driver created")
	return d, nil
}

// withRetry runs op with the transient-failure policy: exponential back-off
// from RetryInitial, doubling, capped at RetryCap, at most RetryAttempts
// attempts, then the last error propagates. Non-transient errors abort
// immediately.
func (c *Controller) withRetry(ctx context.Context, op func(Driver) error) error {
	d, err := c.getDriver(ctx)
	if err != nil {
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInitial
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = c.cfg.RetryCap
	bo.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		c.humanDelay()
		err := op(d)
		c.humanDelay()
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			log.Warn("Driver call failed, retrying", "err", err)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.cfg.RetryAttempts-1)), ctx))
}

// waitPlayerReady polls the player surface until it reports ready or the
// ceiling elapses.
func (c *Controller) waitPlayerReady(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.PlayerTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ready, err := c.driver.PlayerReady(ctx)
		if err == nil && ready {
			log.Debug("Player ready")
			return nil
		}
		time.Sleep(c.cfg.PollInterval)
	}
	return ErrPlayerNotReady
}

func (c *Controller) humanDelay() {
	if c.cfg.JitterMax <= 0 {
		return
	}
	span := c.cfg.JitterMax - c.cfg.JitterMin
	d := c.cfg.JitterMin
	if span > 0 {
		d += time.Duration(rand.Int63n(int64(span)))
	}
	time.Sleep(d)
}
