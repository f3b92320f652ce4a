// Package emf serializes entries into the CloudWatch Embedded Metric Format:
// newline-delimited, self-describing JSON lines. The encoder is incremental
// and reuses its buffers across calls, so steady-state formatting does not
// allocate.
package emf

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"

	"metricq"
	"metricq/internal/ratelimit"
)

type lineKind uint8

const (
	lineString lineKind = iota
	lineMetric
	lineUnfoundDimension
)

type lineData struct {
	kind    lineKind
	indexes bitset
}

// bitset tracks which output lines a metric name was written to.
type bitset []uint64

// insert reports whether i was newly added.
func (b *bitset) insert(i int) bool {
	word, bit := i/64, uint(i%64)
	for len(*b) <= word {
		*b = append(*b, 0)
	}
	if (*b)[word]&(1<<bit) != 0 {
		return false
	}
	(*b)[word] |= 1 << bit
	return true
}

// metricsForDimensionSet accumulates one split output line for a distinct
// per-metric dimension group.
type metricsForDimensionSet struct {
	fieldsBuf           *prefixedBuf
	metricsBuf          *prefixedBuf
	afterNamespaceIndex int
	index               int
}

type state struct {
	namespaces           []string // JSON-encoded
	eachDimensions       []string // JSON-encoded arrays
	logGroupAndTimestamp string
	dimensionSetMap      map[uint64]*metricsForDimensionSet
	dimensionSetOrder    []*metricsForDimensionSet

	stringFieldsBuf *prefixedBuf
	fieldsBuf       *prefixedBuf
	metricsBuf      *prefixedBuf
	dimensionsBuf   *prefixedBuf
	countsBuf       *prefixedBuf
	declBuf         *prefixedBuf

	afterNamespaceIndex    int
	allowIgnoredDimensions bool
}

// Emf formats entries into EMF lines. Not safe for concurrent use; the
// delivery queue drives one instance from its single consumer goroutine.
type Emf struct {
	state             state
	skipValidations   bool
	validationMapBase map[string]lineKind
	esc               *jsonEscaper
	logger            *slog.Logger
	nanLimit          *ratelimit.Limiter
	now               func() time.Time
	rand              func() float64
}

// Builder assembles an Emf instance.
type Builder struct {
	namespaces             []string
	defaultDimensions      [][]string
	extraDirectives        string
	skipValidations        bool
	allowIgnoredDimensions bool
	logGroupName           string
	logger                 *slog.Logger
}

// NewBuilder starts a codec builder.
// Params: namespace for emitted metrics; defaultDimensions the dimension
// sets every entry publishes under (pass [][]string{{}} to publish without
// dimensions).
// Returns: builder with all validations enabled.
func NewBuilder(namespace string, defaultDimensions [][]string) *Builder {
	if len(defaultDimensions) == 0 {
		panic("emf: without dimension sets no metrics can be published; pass [][]string{{}} to publish without dimensions")
	}
	return &Builder{
		namespaces:        []string{namespace},
		defaultDimensions: defaultDimensions,
	}
}

// AllValidations builds a codec with every structural check enabled.
// Params: namespace and default dimension sets.
// Returns: codec instance.
func AllValidations(namespace string, defaultDimensions [][]string) *Emf {
	return NewBuilder(namespace, defaultDimensions).Build()
}

// NoValidations builds a codec with all optional checks disabled. Intended
// for hot paths whose entries are proven valid by tests.
// Params: namespace and default dimension sets.
// Returns: codec instance.
func NoValidations(namespace string, defaultDimensions [][]string) *Emf {
	return NewBuilder(namespace, defaultDimensions).SkipAllValidations(true).Build()
}

// AddNamespace publishes all metrics to an additional namespace.
// Params: namespace extra target.
// Returns: builder for chaining.
func (b *Builder) AddNamespace(namespace string) *Builder {
	b.namespaces = append(b.namespaces, namespace)
	return b
}

// AllowIgnoredDimensions drops per-metric dimensions instead of splitting
// or rejecting entries that carry them.
// Params: allow toggle.
// Returns: builder for chaining.
func (b *Builder) AllowIgnoredDimensions(allow bool) *Builder {
	b.allowIgnoredDimensions = allow
	return b
}

// SkipAllValidations disables uniqueness, name, and dimension checks.
// Skipping trades safety for throughput; entries that fail with checks on
// are program errors.
// Params: skip toggle.
// Returns: builder for chaining.
func (b *Builder) SkipAllValidations(skip bool) *Builder {
	b.skipValidations = b.skipValidations || skip
	return b
}

// LogGroupName emits a LogGroupName key in the _aws block, used when
// shipping lines to a log agent over TCP/UDP.
// Params: name destination log group.
// Returns: builder for chaining.
func (b *Builder) LogGroupName(name string) *Builder {
	b.logGroupName = name
	return b
}

// Logger sets the logger for rate-limited diagnostics.
// Params: logger slog instance.
// Returns: builder for chaining.
func (b *Builder) Logger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Directive appends a custom metric directive emitted verbatim with every
// base line, for publishing specific metrics under extra dimension sets.
// Params: d directive definition.
// Returns: builder for chaining.
func (b *Builder) Directive(d Directive) *Builder {
	encoded, err := jsonAPI.MarshalToString(d)
	if err != nil {
		panic("emf: directive serialization cannot fail: " + err.Error())
	}
	b.extraDirectives += "," + encoded
	return b
}

// Build finalizes the codec.
// Params: none.
// Returns: ready Emf instance.
func (b *Builder) Build() *Emf {
	esc := newJSONEscaper()

	validationMapBase := make(map[string]lineKind)
	for _, set := range b.defaultDimensions {
		for _, dim := range set {
			if _, ok := validationMapBase[dim]; !ok {
				validationMapBase[dim] = lineUnfoundDimension
			}
		}
	}

	namespaces := make([]string, 0, len(b.namespaces))
	for _, ns := range b.namespaces {
		namespaces = append(namespaces, esc.encodeString(ns))
	}
	eachDimensions := make([]string, 0, len(b.defaultDimensions))
	for _, set := range b.defaultDimensions {
		eachDimensions = append(eachDimensions, esc.encodeStringArray(set))
	}

	const dimensionsAfterNS = `,"Dimensions":[`
	dimensionsPrefix := `{"_aws":{"CloudWatchMetrics":[{"Namespace":` + namespaces[0] + dimensionsAfterNS

	logGroupAndTimestamp := `],"Timestamp":`
	if b.logGroupName != "" {
		logGroupAndTimestamp = `],"LogGroupName":` + esc.encodeString(b.logGroupName) + `,"Timestamp":`
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Emf{
		state: state{
			namespaces:             namespaces,
			eachDimensions:         eachDimensions,
			logGroupAndTimestamp:   logGroupAndTimestamp,
			dimensionSetMap:        make(map[uint64]*metricsForDimensionSet),
			afterNamespaceIndex:    len(dimensionsPrefix) - len(dimensionsAfterNS),
			dimensionsBuf:          newPrefixedBuf(dimensionsPrefix, 256),
			fieldsBuf:              newPrefixedBuf("}", 2048),
			stringFieldsBuf:        newPrefixedBuf("", 2048),
			countsBuf:              newPrefixedBuf(`],"Counts":[`, 256),
			metricsBuf:             newPrefixedBuf(`],"Metrics":[`, 2048),
			declBuf:                newPrefixedBuf(b.extraDirectives, 256),
			allowIgnoredDimensions: b.allowIgnoredDimensions,
		},
		skipValidations:   b.skipValidations,
		validationMapBase: validationMapBase,
		esc:               esc,
		logger:            logger,
		nanLimit:          ratelimit.New(time.Second),
		now:               time.Now,
		rand:              rand.Float64,
	}
}

// Format serializes one entry into out with multiplicity 1 per observation.
// Params: e entry; out destination writer.
// Returns: *metricq.ValidationError for entry failures, IO errors otherwise.
func (e *Emf) Format(entry metricq.Entry, out io.Writer) error {
	return e.formatWithMultiplicity(entry, out, 0)
}

// multiplicity 0 means "unsampled": single plain observations may use the
// bare scalar form. Any other value forces the aggregate Values/Counts form
// with every count multiplied by it.
func (e *Emf) formatWithMultiplicity(entry metricq.Entry, out io.Writer, multiplicity uint64) error {
	st := &e.state
	st.stringFieldsBuf.clear()
	st.fieldsBuf.clear()
	st.metricsBuf.clear()
	st.declBuf.clear()
	clear(st.dimensionSetMap)
	st.dimensionSetOrder = st.dimensionSetOrder[:0]

	w := entryWriter{
		emf:          e,
		multiplicity: multiplicity,
	}
	if !e.skipValidations {
		w.validationMap = make(map[string]*lineData, len(e.validationMapBase))
		for name, kind := range e.validationMapBase {
			w.validationMap[name] = &lineData{kind: kind}
		}
	} else {
		w.validationMap = make(map[string]*lineData)
	}

	entry.WriteTo(&w)
	return w.finish(out)
}

type entryWriter struct {
	emf             *Emf
	validationMap   map[string]*lineData
	entryDimensions []string // JSON-encoded arrays, nil unless configured
	timestamp       time.Time
	hasTimestamp    bool
	multiplicity    uint64
	errs            metricq.ValidationErrorBuilder
	allowSplit      bool
	allowUnroutable bool
}

// Timestamp records the entry timestamp.
// Params: t wall-clock time of the measurements.
// Returns: none; a second call is a validation failure.
func (w *entryWriter) Timestamp(t time.Time) {
	if w.hasTimestamp {
		w.errs.Invalid("multiple timestamps written")
		return
	}
	w.timestamp = t
	w.hasTimestamp = true
}

// Value records one named field.
// Params: name field name; value string or metric payload.
// Returns: none.
func (w *entryWriter) Value(name string, value metricq.Value) {
	if w.validateName(name) {
		value.WriteValue(&valueWriter{name: name, w: w})
	}
}

// Config applies a per-entry directive.
// Params: cfg directive; unknown types are ignored.
// Returns: none.
func (w *entryWriter) Config(cfg metricq.EntryConfig) {
	switch c := cfg.(type) {
	case metricq.EntryDimensions:
		w.configEntryDimensions(c)
	case *metricq.EntryDimensions:
		w.configEntryDimensions(*c)
	case metricq.AllowSplitEntries, *metricq.AllowSplitEntries:
		w.allowSplit = true
	case metricq.AllowUnroutableEntries, *metricq.AllowUnroutableEntries:
		w.allowUnroutable = true
	}
}

func (w *entryWriter) configEntryDimensions(dims metricq.EntryDimensions) {
	if len(w.emf.state.dimensionSetOrder) != 0 {
		w.errs.Invalid("entry dimensions must be configured before emitting a metric with custom dimensions")
		return
	}
	if w.entryDimensions != nil {
		w.errs.Invalid("entry dimensions cannot be set twice")
		return
	}
	if dims.IsEmpty() {
		w.errs.Invalid("entry dimensions cannot be empty")
		return
	}
	if !w.emf.skipValidations {
		for _, set := range dims.DimensionSets {
			for _, dim := range set {
				if ld, ok := w.validationMap[dim]; ok {
					if ld.kind == lineMetric {
						w.errs.Extend(metricq.Invalid("duplicate field").ForField(dim))
					}
				} else {
					w.validationMap[dim] = &lineData{kind: lineUnfoundDimension}
				}
			}
		}
	}
	encoded := make([]string, 0, len(w.emf.state.eachDimensions)*len(dims.DimensionSets))
	for _, base := range w.emf.state.eachDimensions {
		for _, set := range dims.DimensionSets {
			encoded = append(encoded, w.emf.esc.extendEncodedArray(base, set))
		}
	}
	w.entryDimensions = encoded
}

func (w *entryWriter) validateName(name string) bool {
	if !w.emf.skipValidations {
		if name == "" {
			w.errs.Extend(metricq.Invalid("name can't be empty").ForField(""))
			return false
		}
		if name == "_aws" {
			w.errs.Extend(metricq.Invalid("name can't be `_aws`").ForField("_aws"))
			return false
		}
	}
	return true
}

// dimensionSetFor resolves (creating if needed) the split output line for a
// per-metric dimension group. Groups are keyed by an xxhash of the sorted
// pairs.
func (w *entryWriter) dimensionSetFor(dims []metricq.GroupPair) *metricsForDimensionSet {
	sorted := make([]metricq.GroupPair, len(dims))
	copy(sorted, dims)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Value < sorted[j].Value
	})

	var h xxhash.Digest
	h.Reset()
	for _, pair := range sorted {
		_, _ = h.WriteString(pair.Name)
		_, _ = h.Write([]byte{0xff})
		_, _ = h.WriteString(pair.Value)
		_, _ = h.Write([]byte{0xff})
	}
	key := h.Sum64()

	st := &w.emf.state
	if set, ok := st.dimensionSetMap[key]; ok {
		return set
	}

	eachDimensions := st.eachDimensions
	if w.entryDimensions != nil {
		eachDimensions = w.entryDimensions
	}
	set := w.newMetricsForDimensionSet(eachDimensions, sorted, len(st.dimensionSetOrder)+1)
	st.dimensionSetMap[key] = set
	st.dimensionSetOrder = append(st.dimensionSetOrder, set)
	return set
}

func (w *entryWriter) newMetricsForDimensionSet(eachDimensions []string, sorted []metricq.GroupPair, index int) *metricsForDimensionSet {
	esc := w.emf.esc
	names := make([]string, len(sorted))
	for i, pair := range sorted {
		names[i] = pair.Name
	}

	metricsBuf := make([]byte, 0, 2048)
	metricsBuf = append(metricsBuf, `{"_aws":{"CloudWatchMetrics":[{"Namespace":`...)
	metricsBuf = append(metricsBuf, w.emf.state.namespaces[0]...)
	afterNamespaceIndex := len(metricsBuf)
	metricsBuf = append(metricsBuf, `,"Dimensions":[`...)
	for i, base := range eachDimensions {
		if i > 0 {
			metricsBuf = append(metricsBuf, ',')
		}
		metricsBuf = append(metricsBuf, esc.extendEncodedArray(base, names)...)
	}
	metricsBuf = append(metricsBuf, `],"Metrics":[`...)

	fieldsBuf := make([]byte, 0, 2048)
	fieldsBuf = append(fieldsBuf, '}')
	for _, pair := range sorted {
		fieldsBuf = append(fieldsBuf, ',')
		fieldsBuf = append(fieldsBuf, esc.encodeString(pair.Name)...)
		fieldsBuf = append(fieldsBuf, ':')
		fieldsBuf = append(fieldsBuf, esc.encodeString(pair.Value)...)
	}

	return &metricsForDimensionSet{
		fieldsBuf:           fromPrefix(fieldsBuf),
		metricsBuf:          fromPrefix(metricsBuf),
		afterNamespaceIndex: afterNamespaceIndex,
		index:               index,
	}
}

func (w *entryWriter) finish(out io.Writer) error {
	st := &w.emf.state

	if !w.emf.skipValidations && !w.allowUnroutable {
		for dim, ld := range w.validationMap {
			if ld.kind == lineUnfoundDimension {
				w.errs.Extend(metricq.Invalid("missing dimension").ForField(dim))
			}
		}
	}

	timestamp := w.timestamp
	if !w.hasTimestamp {
		timestamp = w.emf.now()
	}
	millis := timestamp.UnixMilli()
	if millis < 0 {
		millis = 0
	}

	if err := w.errs.Build(); err != nil {
		return err
	}

	st.declBuf.raw(st.logGroupAndTimestamp).int(millis)
	st.stringFieldsBuf.raw("}\n")

	emittedAnyDimensionMetrics := false
	for _, set := range st.dimensionSetOrder {
		if set.fieldsBuf.isEmpty() {
			// skip metric line with no metrics
			continue
		}
		set.metricsBuf.raw("]}")
		metricsLen := set.metricsBuf.len()
		for _, ns := range st.namespaces[1:] {
			set.metricsBuf.
				raw(`,{"Namespace":`).
				raw(ns).
				extendFromWithin(set.afterNamespaceIndex, metricsLen)
		}
		set.metricsBuf.raw(st.logGroupAndTimestamp).int(millis)
		emittedAnyDimensionMetrics = true
		if err := writeAll(out, set.metricsBuf.bytes(), set.fieldsBuf.bytes(), st.stringFieldsBuf.bytes()); err != nil {
			return err
		}
	}

	// When a dimensioned line was emitted and no fields remain for the base
	// line, the base line is redundant. Otherwise emit it, so every format
	// call produces at least one life sign.
	if !emittedAnyDimensionMetrics || !st.fieldsBuf.isEmpty() {
		st.dimensionsBuf.clear()
		eachDimensions := st.eachDimensions
		if w.entryDimensions != nil {
			eachDimensions = w.entryDimensions
		}
		for i, dims := range eachDimensions {
			if i > 0 {
				st.dimensionsBuf.byte(',')
			}
			st.dimensionsBuf.raw(dims)
		}
		st.metricsBuf.raw("]}")
		metricsLen := st.metricsBuf.len()
		for _, ns := range st.namespaces[1:] {
			st.metricsBuf.
				raw(`,{"Namespace":`).
				raw(ns).
				rawBytes(st.dimensionsBuf.bytes()[st.afterNamespaceIndex:]).
				extendFromWithin(0, metricsLen)
		}
		if err := writeAll(out,
			st.dimensionsBuf.bytes(),
			st.metricsBuf.bytes(),
			st.declBuf.bytes(),
			st.fieldsBuf.bytes(),
			st.stringFieldsBuf.bytes(),
		); err != nil {
			return err
		}
	}
	return nil
}

func writeAll(out io.Writer, bufs ...[]byte) error {
	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

type valueWriter struct {
	name string
	w    *entryWriter
}

// String records a string field.
// Params: value field content.
// Returns: none.
func (v *valueWriter) String(value string) {
	w := v.w
	esc := w.emf.esc
	buf := w.emf.state.stringFieldsBuf
	buf.byte(',')
	esc.appendString(buf, v.name)
	buf.byte(':')
	esc.appendString(buf, value)

	if !w.emf.skipValidations {
		v.validateString()
	}
}

func (v *valueWriter) validateString() {
	w := v.w
	if ld, ok := w.validationMap[v.name]; ok {
		switch ld.kind {
		case lineMetric, lineString:
			w.errs.Extend(metricq.Invalid("duplicate field").ForField(v.name))
		case lineUnfoundDimension:
			ld.kind = lineString
		}
	} else {
		w.validationMap[v.name] = &lineData{kind: lineString}
	}
}

// Metric records a metric field.
// Params: distribution observations; unit wire unit; dimensions optional
// per-metric dimension pairs; flags format options.
// Returns: none.
func (v *valueWriter) Metric(distribution []metricq.Observation, unit metricq.Unit, dimensions []metricq.GroupPair, flags metricq.MetricFlags) {
	w := v.w
	st := &w.emf.state

	isGlobal := st.allowIgnoredDimensions || len(dimensions) == 0
	if !isGlobal && !w.allowSplit {
		w.errs.Extend(metricq.Invalid("can't use per-metric dimensions without split entries").ForField(v.name))
	}

	metricsBuf, fieldsBuf := st.metricsBuf, st.fieldsBuf
	index := 0
	if !isGlobal {
		set := w.dimensionSetFor(dimensions)
		metricsBuf, fieldsBuf, index = set.metricsBuf, set.fieldsBuf, set.index
	}

	if !w.emf.skipValidations {
		ld, ok := w.validationMap[v.name]
		if !ok {
			ld = &lineData{kind: lineMetric}
			w.validationMap[v.name] = ld
		}
		switch ld.kind {
		case lineUnfoundDimension:
			if w.allowUnroutable {
				ld.kind = lineMetric
				ld.indexes.insert(index)
			} else {
				w.errs.Extend(metricq.Invalid("can't use metric in dimension field").ForField(v.name))
			}
		case lineMetric:
			if !ld.indexes.insert(index) {
				w.errs.Extend(metricq.Invalid("duplicate field").ForField(v.name))
			}
		case lineString:
			w.errs.Extend(metricq.Invalid("duplicate field").ForField(v.name))
		}
	}

	v.writeMetric(fieldsBuf, metricsBuf, distribution, unit, flags)
}

// Error records a value-scoped validation failure.
// Params: err failure carrying one or more reasons.
// Returns: none.
func (v *valueWriter) Error(err *metricq.ValidationError) {
	v.w.errs.Extend(err.ForField(v.name))
}

func (v *valueWriter) writeMetric(fieldsBuf, metricsBuf *prefixedBuf, distribution []metricq.Observation, unit metricq.Unit, flags metricq.MetricFlags) {
	if len(distribution) == 0 {
		return // skip metric with no observations
	}

	// If the value write skips a NaN-only metric, the name has already been
	// written; roll the buffer back to before the leading comma.
	fieldsBufIndex := fieldsBuf.len()
	if skipped := v.writeMetricValue(fieldsBuf, distribution); skipped {
		fieldsBuf.truncate(fieldsBufIndex)
		return
	}

	if flags.Has(metricq.FlagNoMetric) {
		return
	}

	esc := v.w.emf.esc
	if !metricsBuf.isEmpty() {
		metricsBuf.byte(',')
	}
	metricsBuf.raw(`{"Name":`)
	esc.appendString(metricsBuf, v.name)
	if unit != metricq.UnitNone {
		metricsBuf.raw(`,"Unit":`)
		esc.appendString(metricsBuf, unit.Name())
	}
	if flags.Has(metricq.FlagHighStorageResolution) {
		metricsBuf.raw(`,"StorageResolution":1}`)
	} else {
		metricsBuf.byte('}')
	}
}

// writeMetricValue writes `,"name":<value>` and reports whether the whole
// metric was skipped because every observation was NaN.
func (v *valueWriter) writeMetricValue(fieldsBuf *prefixedBuf, distribution []metricq.Observation) bool {
	w := v.w
	esc := w.emf.esc
	counts := w.emf.state.countsBuf

	fieldsBuf.byte(',')
	esc.appendString(fieldsBuf, v.name)
	fieldsBuf.byte(':')

	if len(distribution) == 1 && w.multiplicity == 0 {
		if u, ok := distribution[0].IsUnsigned(); ok {
			fieldsBuf.uint(u)
			return false
		}
		if f, ok := distribution[0].IsFloating(); ok {
			clamped, finite := v.clampToFinite(f)
			if !finite {
				return true
			}
			fieldsBuf.float(clamped)
			return false
		}
	}

	fieldsBuf.raw(`{"Values":[`)
	counts.clear()
	wrote := false
	for _, obs := range distribution {
		if v.writeObservation(fieldsBuf, counts, obs, wrote) {
			wrote = true
		}
	}
	fieldsBuf.rawBytes(counts.bytes())
	counts.clear()
	fieldsBuf.raw("]}")
	return !wrote
}

// writeObservation appends one value/count pair, skipping NaN observations
// entirely so no dangling separators are left behind.
func (v *valueWriter) writeObservation(buf, counts *prefixedBuf, obs metricq.Observation, needComma bool) bool {
	multiplicity := v.w.multiplicity
	if multiplicity == 0 {
		multiplicity = 1
	}
	if u, ok := obs.IsUnsigned(); ok {
		if needComma {
			buf.byte(',')
			counts.byte(',')
		}
		buf.uint(u)
		counts.uint(multiplicity)
		return true
	}

	value := 0.0
	count := multiplicity
	if f, ok := obs.IsFloating(); ok {
		value = f
	} else {
		total, occurrences, _ := obs.IsRepeated()
		if occurrences != 0 {
			value = total / float64(occurrences)
		}
		count = saturatingMul(occurrences, multiplicity)
	}
	clamped, finite := v.clampToFinite(value)
	if !finite {
		return false
	}
	if needComma {
		buf.byte(',')
		counts.byte(',')
	}
	buf.float(clamped)
	counts.uint(count)
	return true
}

func (v *valueWriter) clampToFinite(f float64) (float64, bool) {
	clamped, finite := metricq.ClampFinite(f)
	if !finite && v.w.emf.nanLimit.Allow() {
		v.w.emf.logger.Error("skipping metric observation with NaN value",
			slog.String("metric", v.name))
	}
	return clamped, finite
}

func saturatingMul(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	product := a * b
	if product/b != a {
		return ^uint64(0)
	}
	return product
}
