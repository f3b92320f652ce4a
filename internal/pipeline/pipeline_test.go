package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"metricq"
	"metricq/internal/config"
	"metricq/sample"
)

type requestEntry struct {
	count uint64
}

func (e requestEntry) WriteTo(w metricq.EntryWriter) {
	w.Timestamp(time.Unix(0, 0))
	w.Value("Requests", metricq.Uint(e.count))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func loadConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

// TestPipelineWritesEntriesToFile drives a full pipeline from config to an
// output file and verifies the formatted line lands there on shutdown.
func TestPipelineWritesEntriesToFile(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "metrics.json")
	cfg := loadConfig(t, `
[global]
namespace = "TestApp"
service = "frontend"
host = "web-1"

[queue]
flush_interval = "10ms"

[output]
path = "`+outPath+`"
`)

	p, err := NewFromConfig(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	p.Sink().Append(requestEntry{count: 7})
	flush := p.Sink().FlushAsync()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := flush.Wait(waitCtx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline did not stop in 5s")
	}

	raw, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	line := string(raw)
	for _, want := range []string{`"Namespace":"TestApp"`, `"Service":"frontend"`, `"Host":"web-1"`, `"Requests":7`} {
		if !strings.Contains(line, want) {
			t.Fatalf("output %q missing %q", line, want)
		}
	}
}

// TestBuildSamplerModes verifies mode selection in front of the codec.
func TestBuildSamplerModes(t *testing.T) {
	cfg := loadConfig(t, `
[global]
namespace = "TestApp"
service = "frontend"
`)
	codec := buildCodec(cfg, discardLogger())

	if got := buildSampler(config.SamplerConfig{Mode: "none"}, codec); got != metricq.Format(codec) {
		t.Fatalf("none mode = %T, want codec passthrough", got)
	}
	fixed := buildSampler(config.SamplerConfig{Mode: "fixed", Rate: 0.5}, codec)
	if _, ok := fixed.(*sample.FixedFraction); !ok {
		t.Fatalf("fixed mode = %T, want *sample.FixedFraction", fixed)
	}
	congress := buildSampler(config.SamplerConfig{
		Mode:                   "congress",
		Interval:               config.Duration{Duration: time.Second},
		TargetEntriesPerSecond: 10,
	}, codec)
	if _, ok := congress.(*sample.Congress); !ok {
		t.Fatalf("congress mode = %T, want *sample.Congress", congress)
	}
}

// TestOpenOutputStdout resolves "-" without touching the filesystem.
func TestOpenOutputStdout(t *testing.T) {
	w, closeOutput, err := openOutput("-")
	if err != nil {
		t.Fatalf("openOutput: %v", err)
	}
	if w == nil {
		t.Fatal("nil writer for stdout")
	}
	if err := closeOutput(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// TestNewFromConfigRejectsBadOutput surfaces open errors at build time.
func TestNewFromConfigRejectsBadOutput(t *testing.T) {
	cfg := loadConfig(t, `
[global]
namespace = "TestApp"
service = "frontend"
`)
	cfg.Output.Path = filepath.Join(t.TempDir(), "missing-dir", "out.json")
	if _, err := NewFromConfig(cfg, discardLogger()); err == nil {
		t.Fatal("expected open error for missing directory")
	}
}
