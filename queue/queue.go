package queue

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"metricq"
	"metricq/internal/ratelimit"
)

const (
	defaultCapacity        = 64 * 1024
	defaultFlushInterval   = time.Second
	defaultShutdownTimeout = 30 * time.Second
	maxFlushInterval       = time.Minute

	// drainClockCheckBatch is how many entries are drained between clock
	// reads, so a busy consumer isn't dominated by time syscalls.
	drainClockCheckBatch = 32
)

// Recorder receives the queue's own operational measurements. All methods
// are called from the consumer goroutine.
type Recorder interface {
	MetricsEmitted()
	IOError()
	ValidationError()
	QueueLen(n int)
	IdlePercent(p float64)
}

type nopRecorder struct{}

func (nopRecorder) MetricsEmitted()     {}
func (nopRecorder) IOError()            {}
func (nopRecorder) ValidationError()    {}
func (nopRecorder) QueueLen(int)        {}
func (nopRecorder) IdlePercent(float64) {}

// Config tunes a background queue. Zero fields take defaults.
type Config struct {
	// Capacity bounds the number of buffered entries. Default 65536.
	Capacity int
	// FlushInterval is how often the stream is flushed while entries keep
	// arriving. Must be in (0, 1m). Default 1s.
	FlushInterval time.Duration
	// ShutdownTimeout bounds the final drain on Close. Must be > 0.
	// Default 30s.
	ShutdownTimeout time.Duration
	// Logger receives rate-limited diagnostics. Default slog.Default().
	Logger *slog.Logger
	// Recorder observes queue health. Default discards.
	Recorder Recorder
}

func (c Config) withDefaults() Config {
	if c.Capacity == 0 {
		c.Capacity = defaultCapacity
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Recorder == nil {
		c.Recorder = nopRecorder{}
	}
	if c.Capacity < 0 {
		panic("queue: capacity must be positive")
	}
	if c.FlushInterval <= 0 || c.FlushInterval >= maxFlushInterval {
		panic("queue: flush interval must be in (0, 1m)")
	}
	if c.ShutdownTimeout <= 0 {
		panic("queue: shutdown timeout must be positive")
	}
	return c
}

// Queue is a bounded entry sink drained by one background goroutine.
// Append and FlushAsync are safe for concurrent use and never block.
type Queue struct {
	mu             sync.Mutex
	ring           *ring
	pendingWaiters []chan struct{}
	shutDown       bool

	wakeCh     chan struct{}
	shutdownCh chan struct{}
	doneCh     chan struct{}

	flushInterval   time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	recorder        Recorder
	dropLimit       *ratelimit.Limiter
	streamLimit     *ratelimit.Limiter
}

// Handle owns the consumer goroutine's lifecycle.
type Handle struct {
	q         *Queue
	closeOnce sync.Once
}

// Start launches a background queue writing to stream.
// Params: stream destination for drained entries; cfg tuning, zero value
// for defaults. Panics on out-of-range explicit values.
// Returns: the producer-facing queue and the lifecycle handle.
func Start(stream metricq.EntryIoStream, cfg Config) (*Queue, *Handle) {
	cfg = cfg.withDefaults()
	q := &Queue{
		ring:            newRing(cfg.Capacity),
		wakeCh:          make(chan struct{}, 1),
		shutdownCh:      make(chan struct{}),
		doneCh:          make(chan struct{}),
		flushInterval:   cfg.FlushInterval,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          cfg.Logger,
		recorder:        cfg.Recorder,
		dropLimit:       ratelimit.New(time.Second),
		streamLimit:     ratelimit.New(time.Second),
	}
	c := &consumer{q: q, stream: stream, now: time.Now}
	go c.run()
	return q, &Handle{q: q}
}

// Append enqueues an entry, evicting the oldest when the queue is full.
// Entries appended after Close begins are dropped.
// Params: e finished entry.
// Returns: none; never blocks.
func (q *Queue) Append(e metricq.Entry) {
	q.mu.Lock()
	if q.shutDown {
		q.mu.Unlock()
		return
	}
	evicted := q.ring.push(e)
	q.mu.Unlock()

	if evicted && q.dropLimit.Allow() {
		q.logger.Error("metrics queue full, dropping oldest entry")
	}
	q.wake()
}

// FlushAsync registers a flush token. It resolves once every entry appended
// strictly before this call has reached the stream and the stream was
// flushed.
// Params: none.
// Returns: wait token; already resolved when the queue has shut down.
func (q *Queue) FlushAsync() metricq.FlushWait {
	q.mu.Lock()
	if q.shutDown {
		q.mu.Unlock()
		return metricq.ResolvedFlushWait()
	}
	done := make(chan struct{})
	q.pendingWaiters = append(q.pendingWaiters, done)
	q.mu.Unlock()

	q.wake()
	return metricq.NewFlushWait(done)
}

// Len reports the number of buffered entries.
// Params: none.
// Returns: current queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.length()
}

func (q *Queue) wake() {
	select {
	case q.wakeCh <- struct{}{}:
	default:
	}
}

func (q *Queue) pop() (metricq.Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.pop()
}

func (q *Queue) takeWaiters() []chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	waiters := q.pendingWaiters
	q.pendingWaiters = nil
	return waiters
}

func (q *Queue) capacity() int {
	return q.ring.capacity()
}

// Close signals shutdown and waits for the final drain. Entries still
// buffered are drained for at most ShutdownTimeout before the stream is
// flushed and closed.
// Params: none.
// Returns: after the consumer goroutine has exited.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.q.mu.Lock()
		h.q.shutDown = true
		h.q.mu.Unlock()
		close(h.q.shutdownCh)
	})
	<-h.q.doneCh
}

// Forget detaches the handle. The queue keeps accepting and draining
// entries for the lifetime of the process.
// Params: none.
// Returns: none.
func (h *Handle) Forget() {}

type drainResult int

const (
	drainDrained drainResult = iota
	drainHitDeadline
)

// wakerTracker resolves flush tokens once enough entries have drained.
// Taking the queue capacity as the budget is conservative: the queue is
// bounded, so every entry appended before a token was registered sits
// within the next capacity entries drained.
type wakerTracker struct {
	waiters           []chan struct{}
	entriesBeforeWake int
}

type consumer struct {
	q       *Queue
	stream  metricq.EntryIoStream
	tracker wakerTracker
	now     func() time.Time
	parked  time.Duration
}

func (c *consumer) run() {
	defer close(c.q.doneCh)
	for {
		nextFlush := c.now().Add(c.q.flushInterval)
		c.parked = 0
		for {
			result, n := c.drainUntilDeadline(nextFlush)
			c.handleWakers(n, result == drainDrained)
			if result == drainHitDeadline {
				break
			}
			if c.shutdownRequested() {
				c.shutdown()
				return
			}
			if len(c.tracker.waiters) > 0 {
				// pending flush tokens guarantee progress without parking
				continue
			}
			if !c.park(nextFlush) {
				break
			}
		}
		c.flush()
		c.q.recorder.QueueLen(c.q.Len())
		c.q.recorder.IdlePercent(100 * float64(c.parked) / float64(c.q.flushInterval))
	}
}

// drainUntilDeadline consumes entries until the queue is empty or the
// deadline passes, checking the clock once per batch.
func (c *consumer) drainUntilDeadline(deadline time.Time) (drainResult, int) {
	count := 0
	for {
		entry, ok := c.q.pop()
		if !ok {
			return drainDrained, count
		}
		c.consume(entry)
		count++
		if count%drainClockCheckBatch == 0 && !c.now().Before(deadline) {
			return drainHitDeadline, count
		}
	}
}

// consume hands one entry to the stream. Stream errors never stop the
// consumer; they are counted and logged at most once per second.
func (c *consumer) consume(entry metricq.Entry) {
	err := c.stream.Next(entry)
	if err == nil {
		c.q.recorder.MetricsEmitted()
		return
	}
	var verr *metricq.ValidationError
	if errors.As(err, &verr) {
		c.q.recorder.ValidationError()
		if c.q.streamLimit.Allow() {
			c.q.logger.Error("dropping invalid metrics entry", slog.Any("error", err))
		}
		return
	}
	c.q.recorder.IOError()
	if c.q.streamLimit.Allow() {
		c.q.logger.Error("failed to write metrics entry", slog.Any("error", err))
	}
}

func (c *consumer) handleWakers(batch int, drained bool) {
	t := &c.tracker
	if len(t.waiters) > 0 {
		t.entriesBeforeWake -= batch
		if t.entriesBeforeWake <= 0 || drained {
			c.flush()
			for _, w := range t.waiters {
				close(w)
			}
			t.waiters = t.waiters[:0]
			t.entriesBeforeWake = 0
		}
	}
	if len(t.waiters) == 0 {
		if incoming := c.q.takeWaiters(); len(incoming) > 0 {
			t.waiters = append(t.waiters, incoming...)
			t.entriesBeforeWake = c.q.capacity()
		}
	}
}

// park sleeps until new work arrives or the flush deadline passes.
// Returns false on deadline, true otherwise.
func (c *consumer) park(deadline time.Time) bool {
	wait := deadline.Sub(c.now())
	if wait <= 0 {
		return false
	}
	start := c.now()
	timer := time.NewTimer(wait)
	defer timer.Stop()
	defer func() { c.parked += c.now().Sub(start) }()
	select {
	case <-c.q.wakeCh:
		return true
	case <-c.q.shutdownCh:
		return true
	case <-timer.C:
		return false
	}
}

func (c *consumer) shutdownRequested() bool {
	select {
	case <-c.q.shutdownCh:
		return true
	default:
		return false
	}
}

func (c *consumer) shutdown() {
	deadline := c.now().Add(c.q.shutdownTimeout)
	result, n := c.drainUntilDeadline(deadline)
	c.handleWakers(n, result == drainDrained)
	if result == drainHitDeadline {
		c.q.logger.Warn("unable to drain metrics queue while shutting down")
	}
	c.flush()
	for _, w := range c.tracker.waiters {
		close(w)
	}
	for _, w := range c.q.takeWaiters() {
		close(w)
	}
	if closer, ok := c.stream.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.q.logger.Error("failed to close metrics stream", slog.Any("error", err))
		}
	}
}

func (c *consumer) flush() {
	if err := c.stream.Flush(); err != nil {
		c.q.recorder.IOError()
		if c.q.streamLimit.Allow() {
			c.q.logger.Error("failed to flush metrics stream", slog.Any("error", err))
		}
	}
}
