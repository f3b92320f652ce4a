package queue

import (
	"log/slog"
	"sync"
	"time"

	"metricq"
	"metricq/internal/ratelimit"
)

// Immediate is an entry sink without a background goroutine: every append
// writes and flushes synchronously under a lock. Intended for tests, CLIs,
// and short-lived processes where delivery latency beats throughput.
type Immediate struct {
	mu     sync.Mutex
	stream metricq.EntryIoStream
	logger *slog.Logger
	limit  *ratelimit.Limiter
}

// NewImmediate wraps a stream in a synchronous sink.
// Params: stream destination; logger for rate-limited diagnostics, nil for
// slog.Default().
// Returns: sink safe for concurrent use.
func NewImmediate(stream metricq.EntryIoStream, logger *slog.Logger) *Immediate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Immediate{
		stream: stream,
		logger: logger,
		limit:  ratelimit.New(time.Second),
	}
}

// Append writes and flushes the entry before returning.
// Params: e finished entry.
// Returns: none; stream errors are logged, not returned.
func (s *Immediate) Append(e metricq.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stream.Next(e); err != nil {
		if s.limit.Allow() {
			s.logger.Error("failed to write metrics entry", slog.Any("error", err))
		}
		return
	}
	if err := s.stream.Flush(); err != nil && s.limit.Allow() {
		s.logger.Error("failed to flush metrics stream", slog.Any("error", err))
	}
}

// FlushAsync flushes synchronously.
// Params: none.
// Returns: an already-resolved token.
func (s *Immediate) FlushAsync() metricq.FlushWait {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.stream.Flush(); err != nil && s.limit.Allow() {
		s.logger.Error("failed to flush metrics stream", slog.Any("error", err))
	}
	return metricq.ResolvedFlushWait()
}
