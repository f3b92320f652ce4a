package metricq

import "context"

// EntrySink accepts finished entries from producers.
// Params: Append never blocks; FlushAsync registers a completion token.
// Returns: none.
type EntrySink interface {
	Append(e Entry)
	FlushAsync() FlushWait
}

// FlushWait resolves once every entry appended strictly before it was
// created has reached the output and the output has been flushed.
type FlushWait struct {
	done <-chan struct{}
}

// NewFlushWait builds a token resolved by closing done.
// Params: done channel closed on completion.
// Returns: wait token.
func NewFlushWait(done <-chan struct{}) FlushWait {
	return FlushWait{done: done}
}

// ResolvedFlushWait returns an already-resolved token.
// Params: none.
// Returns: token whose Wait returns immediately.
func ResolvedFlushWait() FlushWait {
	ch := make(chan struct{})
	close(ch)
	return FlushWait{done: ch}
}

// Done exposes the completion channel for select loops.
// Params: none.
// Returns: channel closed on completion.
func (w FlushWait) Done() <-chan struct{} {
	return w.done
}

// Wait blocks until the flush completes or ctx is canceled.
// Params: ctx bounds the wait.
// Returns: ctx.Err() on cancellation, nil on completion.
func (w FlushWait) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
