package sample

import (
	"io"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"metricq"
)

const (
	// expMovingAverageWindow caps how many intervals the per-group load
	// average remembers.
	expMovingAverageWindow = 16
	// noObservationsTTL is how many consecutive empty intervals a group
	// survives before its state is dropped.
	noObservationsTTL = 8

	defaultInterval                 = 15 * time.Second
	defaultTargetEntriesPerInterval = 100 * 15
)

// expMovingAverage is an exponential moving average whose decay tightens
// as samples arrive, up to a fixed window.
type expMovingAverage struct {
	value   float64
	samples uint32
}

func (e *expMovingAverage) addSample(sample float64) {
	if e.samples < expMovingAverageWindow {
		e.samples++
	}
	decay := 1 / float64(e.samples)
	e.value = decay*sample + (1-decay)*e.value
}

// groupState tracks one sample group across intervals.
type groupState struct {
	sampleRate                float32
	average                   expMovingAverage
	currentObserved           uint64
	consecutiveNoObservations uint32
}

// updateAndRetain folds the finished interval into the group's average and
// reports whether the group should be kept.
func (g *groupState) updateAndRetain() bool {
	if g.currentObserved > 0 {
		g.average.addSample(float64(g.currentObserved))
		g.currentObserved = 0
		g.consecutiveNoObservations = 0
		return true
	}
	if g.consecutiveNoObservations >= noObservationsTTL {
		return false
	}
	g.consecutiveNoObservations++
	return true
}

// CongressConfig tunes a congressional sampler. Zero fields take defaults.
type CongressConfig struct {
	// Interval is the rate-recomputation period. Default 15s.
	Interval time.Duration
	// TargetEntriesPerInterval is the output volume the sampler converges
	// to across all groups. Default 1500.
	TargetEntriesPerInterval uint64
	// ValidateGroups rejects entries whose sample group repeats a name.
	ValidateGroups bool
	// Rand overrides the keep/drop randomness source, for tests.
	Rand func() float64
}

// Congress apportions a fixed output budget across sample groups the way
// congressional seats are apportioned: every active group gets a small
// guaranteed share (the senate) and the rest is distributed proportionally
// to observed volume (the house). Low-traffic groups stay visible while
// high-traffic groups absorb most of the sampling.
type Congress struct {
	format   metricq.SampledFormat
	interval time.Duration
	target   float64
	validate bool
	rand     func() float64
	now      func() time.Time

	mu                sync.Mutex
	nextIntervalStart time.Time
	currentObserved   uint64
	groups            map[uint64]*groupState
}

// NewCongress builds a congressional sampler in front of a sampled format.
// Params: format downstream format; cfg tuning, zero value for defaults.
// Returns: sampler usable as a metricq.Format.
func NewCongress(format metricq.SampledFormat, cfg CongressConfig) *Congress {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	target := cfg.TargetEntriesPerInterval
	if target == 0 {
		target = defaultTargetEntriesPerInterval
	}
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.Float64
	}
	return &Congress{
		format:   format,
		interval: interval,
		target:   float64(target),
		validate: cfg.ValidateGroups,
		rand:     rnd,
		now:      time.Now,
		groups:   make(map[uint64]*groupState),
	}
}

// CongressAtFixedEntriesPerSecond builds a congressional sampler targeting
// a steady output rate with the default interval.
// Params: format downstream format; entriesPerSecond output budget.
// Returns: sampler usable as a metricq.Format.
func CongressAtFixedEntriesPerSecond(format metricq.SampledFormat, entriesPerSecond uint64) *Congress {
	return NewCongress(format, CongressConfig{
		Interval:                 defaultInterval,
		TargetEntriesPerInterval: entriesPerSecond * uint64(defaultInterval/time.Second),
	})
}

// Format samples the entry by its group and forwards survivors with their
// current group rate.
// Params: entry candidate, grouped via metricq.GroupedEntry when it
// implements it; out destination writer.
// Returns: validation error on a malformed sample group, downstream errors
// when the entry survives, nil when dropped.
func (c *Congress) Format(entry metricq.Entry, out io.Writer) error {
	var group []metricq.GroupPair
	if grouped, ok := entry.(metricq.GroupedEntry); ok {
		group = grouped.SampleGroup()
	}
	sorted := sortedGroup(group)
	if c.validate {
		for i := 1; i < len(sorted); i++ {
			if sorted[i].Name == sorted[i-1].Name {
				return metricq.Invalid("duplicate name in sample group").ForField(sorted[i].Name)
			}
		}
	}

	rate := c.sampleRate(groupKey(sorted))
	if rate == 1.0 || c.rand() <= float64(rate) {
		return c.format.FormatWithSampleRate(entry, out, rate)
	}
	return nil
}

func sortedGroup(group []metricq.GroupPair) []metricq.GroupPair {
	sorted := make([]metricq.GroupPair, len(group))
	copy(sorted, group)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}
		return sorted[i].Value < sorted[j].Value
	})
	return sorted
}

func groupKey(sorted []metricq.GroupPair) uint64 {
	var h xxhash.Digest
	h.Reset()
	for _, pair := range sorted {
		_, _ = h.WriteString(pair.Name)
		_, _ = h.Write([]byte{0xff})
		_, _ = h.WriteString(pair.Value)
		_, _ = h.Write([]byte{0xff})
	}
	return h.Sum64()
}

// sampleRate records one observation for the group and returns its current
// rate. Interval rollover is detected lazily on the observation path, so an
// idle sampler does no background work.
func (c *Congress) sampleRate(key uint64) float32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.After(c.nextIntervalStart) {
		c.nextIntervalStart = now.Add(c.interval)
		c.updateRates()
	}

	c.currentObserved++
	state, ok := c.groups[key]
	if !ok {
		state = &groupState{sampleRate: 1.0}
		c.groups[key] = state
	}
	state.currentObserved++
	return state.sampleRate
}

// updateRates recomputes every group's rate from the finished interval.
// Caller holds the lock.
func (c *Congress) updateRates() {
	for key, state := range c.groups {
		if !state.updateAndRetain() {
			delete(c.groups, key)
		}
	}
	if len(c.groups) == 0 {
		c.currentObserved = 0
		return
	}

	observed := float64(c.currentObserved)
	c.currentObserved = 0

	if observed <= c.target {
		for _, state := range c.groups {
			state.sampleRate = 1.0
		}
		return
	}

	// Seats are apportioned in two chambers: the house is proportional to
	// each group's average volume, the senate guarantees every group an
	// equal floor. A group gets the house share when it exceeds the floor,
	// otherwise the floor capped at its own volume.
	flatRate := c.target / observed
	senate := c.target / float64(len(c.groups))
	congressSize := 0.0
	sizes := make(map[*groupState]float64, len(c.groups))
	for _, state := range c.groups {
		house := flatRate * state.average.value
		size := house
		if house < senate {
			size = math.Min(state.average.value, senate)
		}
		sizes[state] = size
		congressSize += size
	}

	scale := c.target / congressSize
	for _, state := range c.groups {
		if state.average.value <= 0 {
			state.sampleRate = 1.0
			continue
		}
		state.sampleRate = float32(math.Min(1, sizes[state]*scale/state.average.value))
	}
}
