// Package pipeline assembles the delivery pipeline from validated config:
// codec, sampler, output stream, background queue, and optional system
// metric collectors.
package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"metricq"
	"metricq/emf"
	"metricq/internal/config"
	"metricq/internal/sysmetrics"
	"metricq/queue"
	"metricq/sample"
)

// Pipeline owns the running delivery components.
type Pipeline struct {
	queue       *queue.Queue
	handle      *queue.Handle
	runner      *sysmetrics.Runner
	closeOutput func() error
	logger      *slog.Logger
}

// NewFromConfig builds the pipeline from validated config.
// Params: cfg validated config; logger process logger.
// Returns: pipeline ready to Run, or a build error.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	var collectors []sysmetrics.Collector
	if cfg.Collect.Enabled {
		built, err := sysmetrics.FromSources(cfg.Collect.Sources)
		if err != nil {
			return nil, fmt.Errorf("build collectors: %w", err)
		}
		collectors = built
	}

	format := buildSampler(cfg.Sampler, buildCodec(cfg, logger))

	out, closeOutput, err := openOutput(cfg.Output.Path)
	if err != nil {
		return nil, err
	}

	stream := metricq.MergeGlobals(
		metricq.OutputTo(format, out),
		globalFields{service: cfg.Global.Service, host: cfg.Global.Host},
	)

	q, handle := queue.Start(stream, queue.Config{
		Capacity:        cfg.Queue.Capacity,
		FlushInterval:   cfg.Queue.FlushInterval.Duration,
		ShutdownTimeout: cfg.Queue.ShutdownTimeout.Duration,
		Logger:          logger,
		Recorder:        &queueStats{logger: logger},
	})

	p := &Pipeline{
		queue:       q,
		handle:      handle,
		closeOutput: closeOutput,
		logger:      logger,
	}
	if len(collectors) > 0 {
		p.runner = sysmetrics.NewRunner(collectors, q, cfg.Collect.Interval.Duration, logger)
	}
	return p, nil
}

// Sink exposes the pipeline's entry sink for embedding applications.
// Params: none.
// Returns: sink accepting entries until shutdown.
func (p *Pipeline) Sink() metricq.EntrySink {
	return p.queue
}

// Run drives the pipeline until context cancellation, then drains the
// queue and closes the output.
// Params: ctx controls lifecycle.
// Returns: close error, nil on clean shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.runner != nil {
		if err := p.runner.Run(ctx); err != nil {
			p.handle.Close()
			_ = p.closeOutput()
			return fmt.Errorf("run collectors: %w", err)
		}
	} else {
		<-ctx.Done()
	}

	p.handle.Close()
	if err := p.closeOutput(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// buildCodec configures the structured-metric serializer.
func buildCodec(cfg *config.Config, logger *slog.Logger) *emf.Emf {
	b := emf.NewBuilder(cfg.Global.Namespace, cfg.Codec.Dimensions).
		Logger(logger).
		SkipAllValidations(cfg.Codec.SkipValidations)
	for _, ns := range cfg.Codec.ExtraNamespaces {
		b = b.AddNamespace(ns)
	}
	if cfg.Codec.LogGroupName != "" {
		b = b.LogGroupName(cfg.Codec.LogGroupName)
	}
	return b.Build()
}

// buildSampler wraps the codec in the configured sampler.
func buildSampler(cfg config.SamplerConfig, codec *emf.Emf) metricq.Format {
	switch cfg.Mode {
	case "fixed":
		return sample.NewFixedFraction(codec, cfg.Rate)
	case "congress":
		interval := cfg.Interval.Duration
		target := uint64(float64(cfg.TargetEntriesPerSecond) * interval.Seconds())
		if target == 0 {
			target = 1
		}
		return sample.NewCongress(codec, sample.CongressConfig{
			Interval:                 interval,
			TargetEntriesPerInterval: target,
			ValidateGroups:           cfg.ValidateGroups,
		})
	default:
		return codec
	}
}

// openOutput resolves the output path to a buffered writer.
// Params: path "-" for stdout or a file path.
// Returns: writer, close func flushing buffered output, or open error.
func openOutput(path string) (*bufio.Writer, func() error, error) {
	if path == "-" {
		w := bufio.NewWriter(os.Stdout)
		return w, w.Flush, nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open output %q: %w", path, err)
	}
	w := bufio.NewWriter(file)
	closeOutput := func() error {
		if err := w.Flush(); err != nil {
			file.Close()
			return err
		}
		return file.Close()
	}
	return w, closeOutput, nil
}

// globalFields is the constant entry merged into every queued entry.
type globalFields struct {
	service string
	host    string
}

func (g globalFields) WriteTo(w metricq.EntryWriter) {
	w.Value("Service", metricq.Str(g.service))
	w.Value("Host", metricq.Str(g.host))
}

// queueStats surfaces queue health through the process logger.
type queueStats struct {
	logger           *slog.Logger
	emitted          atomic.Uint64
	ioErrors         atomic.Uint64
	validationErrors atomic.Uint64
	queueLen         atomic.Int64
}

func (s *queueStats) MetricsEmitted()  { s.emitted.Add(1) }
func (s *queueStats) IOError()         { s.ioErrors.Add(1) }
func (s *queueStats) ValidationError() { s.validationErrors.Add(1) }
func (s *queueStats) QueueLen(n int)   { s.queueLen.Store(int64(n)) }

func (s *queueStats) IdlePercent(p float64) {
	s.logger.Debug("queue interval",
		slog.Float64("idle_percent", p),
		slog.Int64("queue_len", s.queueLen.Load()),
		slog.Uint64("emitted", s.emitted.Load()),
		slog.Uint64("io_errors", s.ioErrors.Load()),
		slog.Uint64("validation_errors", s.validationErrors.Load()))
}
