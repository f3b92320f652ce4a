package metricq

import "math"

// Value is one named field of an entry: either a string or a metric.
// Params: implementations emit themselves through WriteValue.
// Returns: none.
type Value interface {
	WriteValue(w ValueWriter)
}

// ValueWriter receives the concrete shape of one value.
// Params: exactly one of String, Metric, or Error is called per value.
// Returns: none; validation failures accumulate in the owning formatter.
type ValueWriter interface {
	String(value string)
	Metric(distribution []Observation, unit Unit, dimensions []GroupPair, flags MetricFlags)
	Error(err *ValidationError)
}

type observationKind uint8

const (
	observationUnsigned observationKind = iota
	observationFloating
	observationRepeated
)

// Observation is one numeric sample: an unsigned integer, a float, or a
// pre-aggregated weighted sample whose mean is total/occurrences.
type Observation struct {
	kind        observationKind
	unsigned    uint64
	floating    float64
	occurrences uint64
}

// Unsigned builds an integer observation.
// Params: v sample value.
// Returns: observation.
func Unsigned(v uint64) Observation {
	return Observation{kind: observationUnsigned, unsigned: v}
}

// Floating builds a floating-point observation.
// Params: v sample value.
// Returns: observation.
func Floating(v float64) Observation {
	return Observation{kind: observationFloating, floating: v}
}

// Repeated builds a pre-aggregated observation representing `occurrences`
// samples with the given total.
// Params: total summed value; occurrences sample count.
// Returns: observation whose implied mean is total/occurrences.
func Repeated(total float64, occurrences uint64) Observation {
	return Observation{kind: observationRepeated, floating: total, occurrences: occurrences}
}

// Mean returns the observation's value collapsed to a float, with the
// occurrence count it carries. Repeated observations with zero occurrences
// yield mean 0.
// Params: none.
// Returns: mean value and occurrence count (1 for plain samples).
func (o Observation) Mean() (float64, uint64) {
	switch o.kind {
	case observationUnsigned:
		return float64(o.unsigned), 1
	case observationFloating:
		return o.floating, 1
	default:
		if o.occurrences == 0 {
			return 0, 0
		}
		return o.floating / float64(o.occurrences), o.occurrences
	}
}

// IsUnsigned reports whether the observation is a plain integer sample.
// Params: none.
// Returns: value and true when unsigned.
func (o Observation) IsUnsigned() (uint64, bool) {
	return o.unsigned, o.kind == observationUnsigned
}

// IsFloating reports whether the observation is a plain float sample.
// Params: none.
// Returns: value and true when floating.
func (o Observation) IsFloating() (float64, bool) {
	return o.floating, o.kind == observationFloating
}

// IsRepeated reports whether the observation is pre-aggregated.
// Params: none.
// Returns: total, occurrences, and true when repeated.
func (o Observation) IsRepeated() (float64, uint64, bool) {
	return o.floating, o.occurrences, o.kind == observationRepeated
}

// MetricFlags carries format-specific per-metric options.
// Params: combined with bitwise or.
// Returns: opaque flag set interpreted by the formatter.
type MetricFlags uint8

const (
	// FlagHighStorageResolution requests 1/second storage resolution.
	FlagHighStorageResolution MetricFlags = 1 << iota
	// FlagNoMetric keeps the value in the output line but emits no metric
	// metadata for it.
	FlagNoMetric
)

// Has reports whether all bits of flag are set.
// Params: flag bits to test.
// Returns: true when present.
func (f MetricFlags) Has(flag MetricFlags) bool {
	return f&flag == flag
}

// Str is a string field value.
type Str string

func (s Str) WriteValue(w ValueWriter) {
	w.String(string(s))
}

// Uint is a dimensionless integer metric with unit None.
type Uint uint64

func (u Uint) WriteValue(w ValueWriter) {
	w.Metric([]Observation{Unsigned(uint64(u))}, UnitNone, nil, 0)
}

// Float is a dimensionless floating-point metric with unit None.
type Float float64

func (f Float) WriteValue(w ValueWriter) {
	w.Metric([]Observation{Floating(float64(f))}, UnitNone, nil, 0)
}

// Metric is a fully specified metric value.
// Params: observations, unit, optional per-metric dimensions, and flags.
// Returns: value usable as an entry field.
type Metric struct {
	Observations []Observation
	Unit         Unit
	Dimensions   []GroupPair
	Flags        MetricFlags
}

func (m Metric) WriteValue(w ValueWriter) {
	w.Metric(m.Observations, m.Unit, m.Dimensions, m.Flags)
}

// DurationValue is a time span emitted in milliseconds.
type DurationValue struct {
	Millis float64
	Flags  MetricFlags
}

func (d DurationValue) WriteValue(w ValueWriter) {
	w.Metric([]Observation{Floating(d.Millis)}, UnitMilliseconds, nil, d.Flags)
}

// ClampFinite clamps v to the finite float64 range.
// Params: v input value.
// Returns: clamped value and false when the result is NaN.
func ClampFinite(v float64) (float64, bool) {
	if v > math.MaxFloat64 {
		v = math.MaxFloat64
	} else if v < -math.MaxFloat64 {
		v = -math.MaxFloat64
	}
	return v, !math.IsNaN(v)
}
