package emf

import (
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonEscaper escapes strings into JSON string literals through a reusable
// jsoniter stream, so the hot path doesn't allocate per field.
type jsonEscaper struct {
	stream *jsoniter.Stream
}

func newJSONEscaper() *jsonEscaper {
	return &jsonEscaper{stream: jsoniter.NewStream(jsonAPI, nil, 128)}
}

// appendString appends the quoted, escaped form of s to dst.
func (e *jsonEscaper) appendString(dst *prefixedBuf, s string) *prefixedBuf {
	e.stream.Reset(nil)
	e.stream.WriteString(s)
	return dst.rawBytes(e.stream.Buffer())
}

// encodeString returns the quoted, escaped form of s.
func (e *jsonEscaper) encodeString(s string) string {
	e.stream.Reset(nil)
	e.stream.WriteString(s)
	return string(e.stream.Buffer())
}

// encodeStringArray returns the JSON array literal for the given strings.
func (e *jsonEscaper) encodeStringArray(items []string) string {
	e.stream.Reset(nil)
	e.stream.WriteArrayStart()
	for i, item := range items {
		if i > 0 {
			e.stream.WriteMore()
		}
		e.stream.WriteString(item)
	}
	e.stream.WriteArrayEnd()
	return string(e.stream.Buffer())
}

// extendEncodedArray appends extra string elements to an already-encoded
// JSON array literal.
func (e *jsonEscaper) extendEncodedArray(encoded string, extra []string) string {
	out := make([]byte, 0, len(encoded)+16*len(extra))
	out = append(out, encoded[:len(encoded)-1]...)
	first := len(encoded) == 2
	for _, name := range extra {
		if !first {
			out = append(out, ',')
		}
		first = false
		out = append(out, e.encodeString(name)...)
	}
	return string(append(out, ']'))
}
