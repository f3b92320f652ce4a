// Package sample provides entry samplers that sit in front of a sampled
// format. Dropped entries cost nothing; surviving entries carry their
// sample rate so downstream aggregation stays unbiased.
package sample

import (
	"io"
	"math"
	"math/rand/v2"

	"metricq"
)

// FixedFraction keeps a constant fraction of entries.
type FixedFraction struct {
	format metricq.SampledFormat
	rate   float32
	rand   func() float64
}

// NewFixedFraction wraps a sampled format with constant-probability
// sampling.
// Params: format downstream format; rate keep probability, finite and in
// (0, 1]. Panics outside that range.
// Returns: sampler usable as a metricq.Format.
func NewFixedFraction(format metricq.SampledFormat, rate float32) *FixedFraction {
	if math.IsNaN(float64(rate)) || math.IsInf(float64(rate), 0) || !(rate > 0) || rate > 1 {
		panic("sample: fixed fraction rate must be finite and in (0, 1]")
	}
	return &FixedFraction{
		format: format,
		rate:   rate,
		rand:   rand.Float64,
	}
}

// Format forwards the entry at the configured probability and silently
// drops it otherwise.
// Params: entry candidate; out destination writer.
// Returns: downstream error when the entry survives, nil when dropped.
func (f *FixedFraction) Format(entry metricq.Entry, out io.Writer) error {
	if f.rand() <= float64(f.rate) {
		return f.format.FormatWithSampleRate(entry, out, f.rate)
	}
	return nil
}
