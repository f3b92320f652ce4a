package metricq

import (
	"io"
	"time"
)

// Format serializes entries into an output writer.
// Params: one entry and the destination writer per call.
// Returns: *ValidationError for entry-scoped failures, IO errors otherwise.
type Format interface {
	Format(e Entry, out io.Writer) error
}

// SampledFormat is a Format that can weight an entry by its sample rate.
// Params: rate in (0, 1] chosen by a sampler.
// Returns: error on invalid rate or underlying format failure.
type SampledFormat interface {
	Format
	FormatWithSampleRate(e Entry, out io.Writer, rate float32) error
}

// EntryIoStream couples a format with its destination.
// Params: entries via Next; Flush pushes buffered output downstream.
// Returns: formatting or IO errors.
type EntryIoStream interface {
	Next(e Entry) error
	Flush() error
}

type formatStream struct {
	format Format
	out    io.Writer
}

// OutputTo binds a format to a writer, producing a stream.
// Params: format serializer; out destination (flushed when it implements
// interface{ Flush() error }, closed on queue shutdown when it implements
// io.Closer).
// Returns: entry stream.
func OutputTo(format Format, out io.Writer) EntryIoStream {
	return &formatStream{format: format, out: out}
}

func (s *formatStream) Next(e Entry) error {
	return s.format.Format(e, s.out)
}

func (s *formatStream) Flush() error {
	if f, ok := s.out.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

type teeStream struct {
	s1, s2 EntryIoStream
}

// Tee writes each incoming entry to both streams. Useful for keeping a
// durable full log next to a sampled metric log.
// Params: s1, s2 destination streams.
// Returns: combined stream; Next/Flush run both sides and report the first
// error.
func Tee(s1, s2 EntryIoStream) EntryIoStream {
	return &teeStream{s1: s1, s2: s2}
}

func (t *teeStream) Next(e Entry) error {
	err1 := t.s1.Next(e)
	err2 := t.s2.Next(e)
	if err1 != nil {
		return err1
	}
	return err2
}

func (t *teeStream) Flush() error {
	err1 := t.s1.Flush()
	err2 := t.s2.Flush()
	if err1 != nil {
		return err1
	}
	return err2
}

type mergedEntry struct {
	globals Entry
	entry   Entry
}

func (m mergedEntry) WriteTo(w EntryWriter) {
	m.globals.WriteTo(w)
	m.entry.WriteTo(w)
}

func (m mergedEntry) SampleGroup() []GroupPair {
	if g, ok := m.entry.(GroupedEntry); ok {
		return g.SampleGroup()
	}
	return nil
}

type mergeGlobalsStream struct {
	stream  EntryIoStream
	globals Entry
}

// MergeGlobals merges the fields of globals into every entry written to the
// stream. This avoids storing constant "devops" fields (hostname, zone) on
// every entry.
// Params: stream destination; globals constant entry written first.
// Returns: wrapping stream.
func MergeGlobals(stream EntryIoStream, globals Entry) EntryIoStream {
	return &mergeGlobalsStream{stream: stream, globals: globals}
}

func (m *mergeGlobalsStream) Next(e Entry) error {
	return m.stream.Next(mergedEntry{globals: m.globals, entry: e})
}

func (m *mergeGlobalsStream) Flush() error {
	return m.stream.Flush()
}

// NullStream drops every entry written to it.
type NullStream struct{}

func (NullStream) Next(Entry) error { return nil }
func (NullStream) Flush() error     { return nil }

// BasicErrorMessage is an entry carrying a single error string. It opts out
// of dimension routing validation so it formats even when the stream's
// configured dimensions are absent.
type BasicErrorMessage struct {
	Message string
	Time    time.Time
}

func (m BasicErrorMessage) WriteTo(w EntryWriter) {
	w.Config(AllowUnroutableEntries{})
	if !m.Time.IsZero() {
		w.Timestamp(m.Time)
	}
	w.Value("Error", Str(m.Message))
}

// ReportError writes an error-message entry to the stream.
// Params: stream destination; message error text.
// Returns: stream error, if any.
func ReportError(stream EntryIoStream, message string) error {
	return stream.Next(BasicErrorMessage{Message: message})
}
