package queue

import (
	"context"
	"testing"
	"time"
)

func TestImmediateWritesAndFlushesEachAppend(t *testing.T) {
	stream := &captureStream{}
	sink := NewImmediate(stream, nil)

	sink.Append(intEntry(1))
	sink.Append(intEntry(2))

	values, flushes := stream.snapshot()
	if len(values) != 2 || values[0] != 1 || values[1] != 2 {
		t.Fatalf("delivered %v, want [1 2]", values)
	}
	if flushes != 2 {
		t.Fatalf("flushes = %d, want one per append", flushes)
	}
}

func TestImmediateFlushAsyncResolvesInline(t *testing.T) {
	stream := &captureStream{}
	sink := NewImmediate(stream, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sink.FlushAsync().Wait(ctx); err != nil {
		t.Fatalf("FlushAsync did not resolve: %v", err)
	}
	if _, flushes := stream.snapshot(); flushes != 1 {
		t.Fatalf("flushes = %d, want 1", flushes)
	}
}
