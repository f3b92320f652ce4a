package emf

import (
	"math"
	"strconv"
)

// A large entry shouldn't pin many MB of buffer memory forever.
const maxRetainedBuf = 1024 * 1024

// prefixedBuf is a byte buffer that always carries the same prefix. clear()
// truncates back to the prefix instead of freeing, so buffers are reused
// across format calls.
type prefixedBuf struct {
	prefixLen int
	buf       []byte
}

func newPrefixedBuf(prefix string, capacity int) *prefixedBuf {
	if capacity < len(prefix) {
		capacity = len(prefix)
	}
	buf := make([]byte, 0, capacity)
	buf = append(buf, prefix...)
	return &prefixedBuf{prefixLen: len(prefix), buf: buf}
}

// fromPrefix treats the whole current content as the prefix.
func fromPrefix(prefix []byte) *prefixedBuf {
	return &prefixedBuf{prefixLen: len(prefix), buf: prefix}
}

// isEmpty reports whether nothing was appended past the prefix.
func (b *prefixedBuf) isEmpty() bool {
	return len(b.buf) == b.prefixLen
}

func (b *prefixedBuf) clear() {
	if cap(b.buf) > maxRetainedBuf {
		next := make([]byte, b.prefixLen, maxRetainedBuf)
		copy(next, b.buf[:b.prefixLen])
		b.buf = next
		return
	}
	b.buf = b.buf[:b.prefixLen]
}

func (b *prefixedBuf) len() int {
	return len(b.buf)
}

func (b *prefixedBuf) truncate(n int) {
	b.buf = b.buf[:n]
}

func (b *prefixedBuf) byte(c byte) *prefixedBuf {
	b.buf = append(b.buf, c)
	return b
}

func (b *prefixedBuf) raw(s string) *prefixedBuf {
	b.buf = append(b.buf, s...)
	return b
}

func (b *prefixedBuf) rawBytes(p []byte) *prefixedBuf {
	b.buf = append(b.buf, p...)
	return b
}

func (b *prefixedBuf) uint(v uint64) *prefixedBuf {
	b.buf = strconv.AppendUint(b.buf, v, 10)
	return b
}

func (b *prefixedBuf) int(v int64) *prefixedBuf {
	b.buf = strconv.AppendInt(b.buf, v, 10)
	return b
}

// float appends a finite float the way encoding/json does: plain decimal
// notation in the human range, exponent notation outside it, no trailing
// ".0" on integral values.
func (b *prefixedBuf) float(v float64) *prefixedBuf {
	abs := math.Abs(v)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	b.buf = strconv.AppendFloat(b.buf, v, format, -1, 64)
	return b
}

// extendFromWithin re-appends the byte range [start, end) of the buffer's
// own content.
func (b *prefixedBuf) extendFromWithin(start, end int) *prefixedBuf {
	b.buf = append(b.buf, b.buf[start:end]...)
	return b
}

func (b *prefixedBuf) bytes() []byte {
	return b.buf
}
