package sysmetrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"metricq"
)

// recordingWriter captures entry fields in write order.
type recordingWriter struct {
	timestamps []time.Time
	names      []string
	strings    map[string]string
	metrics    map[string][]metricq.Observation
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{
		strings: map[string]string{},
		metrics: map[string][]metricq.Observation{},
	}
}

func (w *recordingWriter) Timestamp(t time.Time) { w.timestamps = append(w.timestamps, t) }

func (w *recordingWriter) Value(name string, value metricq.Value) {
	w.names = append(w.names, name)
	value.WriteValue(&recordingValue{w: w, name: name})
}

func (w *recordingWriter) Config(metricq.EntryConfig) {}

type recordingValue struct {
	w    *recordingWriter
	name string
}

func (v *recordingValue) String(value string) { v.w.strings[v.name] = value }

func (v *recordingValue) Metric(obs []metricq.Observation, _ metricq.Unit, _ []metricq.GroupPair, _ metricq.MetricFlags) {
	v.w.metrics[v.name] = obs
}

func (v *recordingValue) Error(*metricq.ValidationError) {}

type fakeSink struct {
	mu      sync.Mutex
	entries []metricq.Entry
}

func (s *fakeSink) Append(e metricq.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *fakeSink) FlushAsync() metricq.FlushWait { return metricq.ResolvedFlushWait() }

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type fakeCollector struct {
	name  string
	entry metricq.Entry
	err   error
	calls int
}

func (c *fakeCollector) Name() string { return c.name }

func (c *fakeCollector) Scrape(context.Context) (metricq.Entry, error) {
	c.calls++
	return c.entry, c.err
}

func TestSnapshotWritesSourceAndFields(t *testing.T) {
	at := time.Unix(100, 0)
	snap := Snapshot{
		Source: "cpu",
		Time:   at,
		Fields: []Field{
			{Name: "CPUUtilization", Value: metricq.Float(42.5)},
		},
	}

	w := newRecordingWriter()
	snap.WriteTo(w)

	if len(w.timestamps) != 1 || !w.timestamps[0].Equal(at) {
		t.Fatalf("timestamps = %v, want [%v]", w.timestamps, at)
	}
	if w.strings["Source"] != "cpu" {
		t.Fatalf("Source = %q, want cpu", w.strings["Source"])
	}
	obs := w.metrics["CPUUtilization"]
	if len(obs) != 1 {
		t.Fatalf("CPUUtilization observations = %v", obs)
	}
	if mean, _ := obs[0].Mean(); mean != 42.5 {
		t.Fatalf("CPUUtilization = %v, want 42.5", mean)
	}

	group := snap.SampleGroup()
	if len(group) != 1 || group[0] != (metricq.GroupPair{Name: "Source", Value: "cpu"}) {
		t.Fatalf("SampleGroup = %v", group)
	}
}

func TestFromSources(t *testing.T) {
	collectors, err := FromSources([]string{"cpu", "Memory", " disk "})
	if err != nil {
		t.Fatalf("FromSources: %v", err)
	}
	var names []string
	for _, c := range collectors {
		names = append(names, c.Name())
	}
	want := []string{"cpu", "memory", "disk"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("collector names = %v, want %v", names, want)
		}
	}

	if _, err := FromSources([]string{"gpu"}); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestRunnerScrapesOnInterval(t *testing.T) {
	sink := &fakeSink{}
	collector := &fakeCollector{name: "fake", entry: Snapshot{Source: "fake"}}
	runner := NewRunner([]Collector{collector}, sink, 5*time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runner.Run(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for sink.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("runner produced fewer than 2 entries in 5s")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestRunnerSkipsFailingCollector(t *testing.T) {
	sink := &fakeSink{}
	broken := &fakeCollector{name: "broken", err: errors.New("scrape failed")}
	healthy := &fakeCollector{name: "healthy", entry: Snapshot{Source: "healthy"}}
	runner := NewRunner([]Collector{broken, healthy}, sink, time.Minute, discardLogger())

	runner.collect(context.Background())

	if sink.count() != 1 {
		t.Fatalf("entries = %d, want 1", sink.count())
	}
	if broken.calls != 1 || healthy.calls != 1 {
		t.Fatalf("calls = %d/%d, want 1/1", broken.calls, healthy.calls)
	}
}

func TestMemoryScrape(t *testing.T) {
	entry, err := NewMemory().Scrape(context.Background())
	if err != nil {
		t.Skipf("virtual memory unavailable: %v", err)
	}
	snap, ok := entry.(Snapshot)
	if !ok {
		t.Fatalf("entry type = %T, want Snapshot", entry)
	}
	if snap.Source != "memory" {
		t.Fatalf("source = %q, want memory", snap.Source)
	}
	if len(snap.Fields) != 3 {
		t.Fatalf("fields = %d, want 3", len(snap.Fields))
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
