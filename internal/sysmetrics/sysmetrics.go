// Package sysmetrics scrapes host-level measurements (CPU, memory, disk)
// into metric entries for the delivery pipeline.
package sysmetrics

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"metricq"
)

// Field is one named value of a snapshot.
type Field struct {
	Name  string
	Value metricq.Value
}

// Snapshot is one scrape result. It groups by its source so adaptive
// sampling buckets CPU, memory, and disk traffic independently.
type Snapshot struct {
	Source string
	Time   time.Time
	Fields []Field
}

// WriteTo emits the snapshot's timestamp, source, and fields.
// Params: w destination writer.
// Returns: none.
func (s Snapshot) WriteTo(w metricq.EntryWriter) {
	w.Timestamp(s.Time)
	w.Value("Source", metricq.Str(s.Source))
	for _, f := range s.Fields {
		w.Value(f.Name, f.Value)
	}
}

// SampleGroup buckets snapshots by source.
// Params: none.
// Returns: group pairs for the sampler.
func (s Snapshot) SampleGroup() []metricq.GroupPair {
	return []metricq.GroupPair{{Name: "Source", Value: s.Source}}
}

// Collector scrapes one source into a metric entry.
// Params: context for cancellation and deadlines.
// Returns: one entry or scrape error.
type Collector interface {
	Name() string
	Scrape(ctx context.Context) (metricq.Entry, error)
}

// FromSources builds collectors for the configured source names.
// Params: sources list of cpu/memory/disk.
// Returns: collector list or error on an unknown source.
func FromSources(sources []string) ([]Collector, error) {
	collectors := make([]Collector, 0, len(sources))
	for _, source := range sources {
		switch strings.ToLower(strings.TrimSpace(source)) {
		case "cpu":
			collectors = append(collectors, NewCPU())
		case "memory":
			collectors = append(collectors, NewMemory())
		case "disk":
			collectors = append(collectors, NewDisk("/"))
		default:
			return nil, fmt.Errorf("unknown metric source %q", source)
		}
	}
	return collectors, nil
}

// Runner scrapes all collectors on a fixed interval and appends the
// resulting entries to a sink.
type Runner struct {
	collectors []Collector
	sink       metricq.EntrySink
	interval   time.Duration
	logger     *slog.Logger
}

// NewRunner builds a collection loop.
// Params: collectors sources to scrape; sink entry destination; interval
// scrape period; logger for scrape failures.
// Returns: runner instance.
func NewRunner(collectors []Collector, sink metricq.EntrySink, interval time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		collectors: collectors,
		sink:       sink,
		interval:   interval,
		logger:     logger,
	}
}

// Run executes the scrape loop until context cancellation.
// Params: ctx controls lifecycle.
// Returns: nil on graceful stop.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.collect(ctx)
		}
	}
}

// collect scrapes every collector once. A failing collector is logged and
// skipped; the others still report.
func (r *Runner) collect(ctx context.Context) {
	for _, collector := range r.collectors {
		entry, err := collector.Scrape(ctx)
		if err != nil {
			r.logger.Warn("metric scrape failed",
				slog.String("source", collector.Name()),
				slog.Any("error", err))
			continue
		}
		r.sink.Append(entry)
	}
}
