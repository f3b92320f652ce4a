// Package metricq defines the contract between metric producers and the
// delivery pipeline: entries, values, observations, units, validation
// errors, and the stream/sink interfaces the rest of the module builds on.
package metricq

import "time"

// Entry describes one unit of work's measurements.
// Params: implementations emit their fields through WriteTo.
// Returns: none; an entry is consumed exactly once by a formatter.
type Entry interface {
	WriteTo(w EntryWriter)
}

// GroupPair is one (name, value) element of a sample group key.
// Params: name and value identify one axis of the group.
// Returns: pair used to bucket entries for adaptive sampling.
type GroupPair struct {
	Name  string
	Value string
}

// GroupedEntry is implemented by entries that opt into sample grouping.
// Entries without it fall into the sampler's single default group.
type GroupedEntry interface {
	Entry
	SampleGroup() []GroupPair
}

// EntryWriter receives an entry's timestamp, fields, and directives.
// Params: fed by Entry.WriteTo in field order.
// Returns: none; errors surface from the formatter that owns the writer.
type EntryWriter interface {
	Timestamp(t time.Time)
	Value(name string, value Value)
	Config(cfg EntryConfig)
}

// EntryConfig is a per-entry directive recognized by formatters.
// Unknown configs are ignored.
type EntryConfig interface {
	entryConfig()
}

// AllowSplitEntries permits metrics with per-metric dimensions to be split
// into independent output lines.
type AllowSplitEntries struct{}

func (AllowSplitEntries) entryConfig() {}

// AllowUnroutableEntries disables missing-dimension and duplicate-field
// routing validation for one entry. Used for error-report entries that must
// format even when global dimensions are absent.
type AllowUnroutableEntries struct{}

func (AllowUnroutableEntries) entryConfig() {}

// EntryDimensions appends extra dimension names to every configured
// dimension set for one entry.
// Params: DimensionSets lists the name groups to append.
// Returns: directive consumed by the formatter.
type EntryDimensions struct {
	DimensionSets [][]string
}

func (EntryDimensions) entryConfig() {}

// IsEmpty reports whether no dimension sets were configured.
// Params: none.
// Returns: true when DimensionSets is empty.
func (d EntryDimensions) IsEmpty() bool {
	return len(d.DimensionSets) == 0
}
