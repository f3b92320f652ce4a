package emf

import (
	"io"
	"math"

	"metricq"
)

// FormatWithSampleRate serializes one entry that survived sampling at the
// given rate. Observation counts are scaled by a randomized multiplicity so
// the aggregate statistics stay unbiased.
// Params: entry sampled entry; out destination; rate sampling probability
// in (0, 1].
// Returns: validation error on a non-positive or NaN rate, IO errors
// otherwise.
func (e *Emf) FormatWithSampleRate(entry metricq.Entry, out io.Writer, rate float32) error {
	if !(rate > 0) {
		return metricq.Invalid("format with non-positive sample rate")
	}
	if rate >= 1 {
		return e.formatWithMultiplicity(entry, out, 0)
	}
	return e.formatWithMultiplicity(entry, out, rateToN(float64(rate), e.rand))
}

// rateToNAlpha computes the multiplicity floor n for a sampling rate along
// with the probability alpha of choosing n over n+1. Mixing n and n+1 with
// weight alpha keeps the expected multiplicity at exactly 1/rate.
func rateToNAlpha(rate float64) (uint64, float64) {
	inverse := 1 / rate
	n := uint64(inverse)
	alpha := float64(n+1) - inverse
	return n, alpha
}

func rateToN(rate float64, rnd func() float64) uint64 {
	if rate < 1/float64(math.MaxInt64) {
		return math.MaxUint64
	}
	n, alpha := rateToNAlpha(rate)
	if rnd() < alpha {
		return n
	}
	if n == math.MaxUint64 {
		return n
	}
	return n + 1
}
